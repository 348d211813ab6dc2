package messaging

import (
	"time"

	"github.com/google/uuid"
)

// Действия, которые понимает воркер раскадровок.
const (
	ActionCreateStoryboard = "create_storyboard"
	ActionRegenerateScene  = "regenerate_scene"
)

// StoryboardTaskPayload - задача для воркера раскадровок.
type StoryboardTaskPayload struct {
	TaskID  string    `json:"task_id"`
	Action  string    `json:"action"` // ActionCreateStoryboard или ActionRegenerateScene
	OwnerID uuid.UUID `json:"owner_id"`

	// Поля создания раскадровки
	Text        string `json:"text,omitempty"`
	VisualStyle string `json:"visual_style,omitempty"`
	ColorTheme  string `json:"color_theme,omitempty"`
	SceneCount  int    `json:"scene_count,omitempty"`

	// Поля регенерации сцены
	StoryboardID   *uuid.UUID `json:"storyboard_id,omitempty"`
	SceneIndex     *int       `json:"scene_index,omitempty"`
	PromptOverride string     `json:"prompt_override,omitempty"`
}

// Статусы уведомлений о прогрессе генерации.
const (
	NotificationStatusProcessing     = "processing"
	NotificationStatusSceneCompleted = "scene_completed"
	NotificationStatusCompleted      = "completed"
	NotificationStatusFailed         = "failed"
)

// NotificationPayload - уведомление о прогрессе для внешних подписчиков.
type NotificationPayload struct {
	StoryboardID uuid.UUID `json:"storyboard_id"`
	OwnerID      uuid.UUID `json:"owner_id"`
	Status       string    `json:"status"`
	SceneIndex   *int      `json:"scene_index,omitempty"`
	ImageURL     *string   `json:"image_url,omitempty"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
