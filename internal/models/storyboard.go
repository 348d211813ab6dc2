package models

import (
	"time"

	"github.com/google/uuid"
)

// StoryboardStatus определяет возможные статусы раскадровки.
// Совпадает с типом ENUM 'storyboard_status' в БД.
type StoryboardStatus string

const (
	StatusProcessing StoryboardStatus = "processing" // Идет разбивка на сцены и/или генерация изображений
	StatusCompleted  StoryboardStatus = "completed"  // Все сцены достигли терминального состояния
	StatusFailed     StoryboardStatus = "failed"     // Разбивка на сцены не дала ни одной сцены
)

// Известные визуальные стили. Произвольные строки допускаются,
// но промпт-таблицы определены только для этого набора.
const (
	StyleRealistic   = "realistic"
	StyleCinematic   = "cinematic"
	StyleSketch      = "sketch"
	StyleComic       = "comic"
	StyleWatercolor  = "watercolor"
	StyleVector      = "vector"
	StyleMinimalist  = "minimalist"
	StyleIllustrated = "illustrated"
)

// Известные цветовые темы.
const (
	ThemeModern     = "modern"
	ThemeVintage    = "vintage"
	ThemeVibrant    = "vibrant"
	ThemeMonochrome = "monochrome"
	ThemePastel     = "pastel"
	ThemeEarth      = "earth"
)

// Scene - одна сцена раскадровки. Всегда вложена в Storyboard,
// отдельно не адресуется.
type Scene struct {
	Index        int     `json:"index"` // Позиция в повествовании, 0-based, неизменяема
	SectionTitle string  `json:"section_title"`
	Text         string  `json:"text"`
	ImagePrompt  string  `json:"image_prompt"`        // Базовый промпт (до обогащения), из которого получено текущее изображение
	ImageURL     *string `json:"image_url,omitempty"` // NULL, пока изображение не сгенерировано
}

// HasImage сообщает, есть ли у сцены готовое изображение.
func (s *Scene) HasImage() bool {
	return s.ImageURL != nil && *s.ImageURL != ""
}

// Storyboard представляет раскадровку в базе данных.
// Инвариант: ненулевой Scene.ImageURL всегда получен из Scene.ImagePrompt,
// хранящегося рядом с ним (обновляются атомарно вместе).
type Storyboard struct {
	ID               uuid.UUID        `json:"id" db:"id"`
	OwnerID          uuid.UUID        `json:"owner_id" db:"owner_id"` // Субъект для проверки прав на генерацию
	Title            string           `json:"title" db:"title"`
	OriginalText     string           `json:"original_text" db:"original_text"`
	CharacterPersona string           `json:"character_persona" db:"character_persona"`
	VisualStyle      string           `json:"visual_style" db:"visual_style"`
	ColorTheme       string           `json:"color_theme" db:"color_theme"`
	Scenes           []Scene          `json:"scenes" db:"scenes"` // Порядок повествования, никогда не переупорядочивается
	Status           StoryboardStatus `json:"status" db:"status"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
}

// IsKnownVisualStyle проверяет, входит ли стиль в известный словарь.
func IsKnownVisualStyle(style string) bool {
	switch style {
	case StyleRealistic, StyleCinematic, StyleSketch, StyleComic,
		StyleWatercolor, StyleVector, StyleMinimalist, StyleIllustrated:
		return true
	default:
		return false
	}
}

// IsKnownColorTheme проверяет, входит ли тема в известный словарь.
func IsKnownColorTheme(theme string) bool {
	switch theme {
	case ThemeModern, ThemeVintage, ThemeVibrant, ThemeMonochrome, ThemePastel, ThemeEarth:
		return true
	default:
		return false
	}
}
