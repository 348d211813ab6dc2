// Package prompt собирает обогащенные и негативные промпты для генерации
// изображений. Все функции чистые и детерминированные.
package prompt

import (
	"strings"
)

const (
	// MaxPromptLength - верхняя граница длины обогащенного промпта.
	MaxPromptLength = 1800
	// maxDescriptionLen - бюджет на описание сцены внутри промпта.
	// Подобран так, чтобы после описания оставался запас не менее 100
	// символов на каждый из фиксированных суффиксов в пределах MaxPromptLength.
	maxDescriptionLen = 400

	qualityEnhancers = "high quality, sharp focus, detailed, professional composition"
)

// Input - параметры синтеза промпта для одной сцены.
type Input struct {
	ScenePrompt      string // Базовое описание сцены
	VisualStyle      string
	ColorTheme       string
	CharacterRef     string // Пусто, если якорь персонажа отсутствует
	MaintainClothing bool   // Должна ли одежда оставаться неизменной между сценами
}

// Префиксы шаблона по визуальному стилю.
var stylePrefixes = map[string]string{
	"realistic":   "Professional realistic storyboard frame:",
	"cinematic":   "Professional cinematic storyboard frame:",
	"sketch":      "Hand-drawn storyboard sketch:",
	"comic":       "Comic book storyboard panel:",
	"watercolor":  "Watercolor storyboard illustration:",
	"vector":      "Clean vector storyboard frame:",
	"minimalist":  "Minimalist storyboard frame:",
	"illustrated": "Illustrated storyboard frame:",
}

// Технические дескрипторы по визуальному стилю.
var styleDescriptors = map[string]string{
	"realistic":   "photorealistic rendering, natural skin texture, 50mm lens, shallow depth of field",
	"cinematic":   "film still quality, anamorphic framing, color graded, cinematic depth of field",
	"sketch":      "pencil linework, cross-hatching, rough gestural strokes, monochrome paper texture",
	"comic":       "bold ink outlines, halftone shading, dynamic panel composition",
	"watercolor":  "soft pigment washes, wet-on-wet blending, visible paper grain",
	"vector":      "flat shapes, crisp edges, limited palette, geometric simplification",
	"minimalist":  "sparse composition, generous negative space, restrained detail",
	"illustrated": "painterly brushwork, rich detail, storybook rendering",
}

// Дескрипторы настроения по визуальному стилю.
var styleMoods = map[string]string{
	"realistic":   "grounded, believable atmosphere",
	"cinematic":   "dramatic, immersive atmosphere",
	"sketch":      "raw, spontaneous energy",
	"comic":       "energetic, expressive tone",
	"watercolor":  "gentle, dreamlike mood",
	"vector":      "modern, graphic clarity",
	"minimalist":  "calm, contemplative mood",
	"illustrated": "warm, narrative charm",
}

// Выбор освещения по цветовой теме.
var lightingByTheme = map[string]string{
	"modern":     "natural",
	"vintage":    "soft",
	"vibrant":    "dramatic",
	"monochrome": "dramatic",
	"pastel":     "soft",
	"earth":      "natural",
}

var lightingClauses = map[string]string{
	"natural":  "natural lighting, balanced exposure",
	"dramatic": "dramatic lighting, strong contrast, pronounced shadows",
	"soft":     "soft diffused lighting, gentle shadows",
}

// Базовый список негативов: распространенные артефакты генерации.
var baseNegatives = []string{
	"blurry", "low quality", "distorted", "deformed",
	"extra limbs", "extra fingers", "bad anatomy",
	"watermark", "text", "signature", "logo",
	"duplicate subjects", "cropped",
}

// Негативы "дрейфа персонажа": добавляются только при наличии якоря
// персонажа, чтобы увести генератор от смены внешности между сценами.
var characterDriftNegatives = []string{
	"different face", "changed facial features",
	"different hairstyle", "different hair color",
	"different body proportions", "inconsistent character",
	"multiple versions of the same character",
	"character missing from frame",
}

// Synthesize строит обогащенный и негативный промпты для сцены.
// Отсутствующие необязательные поля деградируют до документированных
// значений по умолчанию, ошибок не бывает.
func Synthesize(in Input) (enhanced string, negative string) {
	var b strings.Builder

	prefix, ok := stylePrefixes[in.VisualStyle]
	if !ok {
		prefix = stylePrefixes["realistic"]
	}
	b.WriteString(prefix)
	b.WriteString(" ")
	b.WriteString(TruncateAtWord(in.ScenePrompt, maxDescriptionLen))

	if in.CharacterRef != "" {
		b.WriteString(". MANDATORY CHARACTER: ")
		b.WriteString(in.CharacterRef)
		b.WriteString(". The character MUST be visible and centrally framed in this scene." +
			" Facial features, hairstyle and body proportions MUST match this description exactly;" +
			" omitting or altering the character violates the brief.")
		if in.MaintainClothing {
			b.WriteString(" The character MUST wear the exact same outfit as in the other scenes.")
		} else {
			b.WriteString(" The character's clothing may differ from the other scenes.")
		}
	}

	lightKey, ok := lightingByTheme[in.ColorTheme]
	if !ok {
		lightKey = "natural"
	}
	b.WriteString(". ")
	b.WriteString(lightingClauses[lightKey])

	descriptor, ok := styleDescriptors[in.VisualStyle]
	if !ok {
		descriptor = styleDescriptors["realistic"]
	}
	b.WriteString(", ")
	b.WriteString(descriptor)

	mood, ok := styleMoods[in.VisualStyle]
	if !ok {
		mood = styleMoods["realistic"]
	}
	b.WriteString(", ")
	b.WriteString(mood)

	if in.CharacterRef != "" {
		b.WriteString(". Character consistency rules: same person, identical face, same hairstyle, same body proportions")
		if in.MaintainClothing {
			b.WriteString(", same outfit")
		}
	}

	b.WriteString(". ")
	b.WriteString(qualityEnhancers)

	negatives := make([]string, 0, len(baseNegatives)+len(characterDriftNegatives)+1)
	negatives = append(negatives, baseNegatives...)
	if in.CharacterRef != "" {
		negatives = append(negatives, characterDriftNegatives...)
		if in.MaintainClothing {
			negatives = append(negatives, "different outfit", "changed clothing")
		}
	}

	return b.String(), strings.Join(negatives, ", ")
}

// TruncateAtWord обрезает s до limit символов по границе слова.
// Слово никогда не разрезается посередине; кроме того, обрезка оставляет
// резерв под фиксированные суффиксы промпта.
func TruncateAtWord(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit > maxDescriptionLen {
		limit = maxDescriptionLen
	}
	if len(s) <= limit {
		return s
	}

	cut := s[:limit]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ,.;:")
}
