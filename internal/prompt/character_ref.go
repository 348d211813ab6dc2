package prompt

import "strings"

// maxCharacterRefLen ограничивает длину текстового якоря персонажа,
// чтобы он не вытеснял описание сцены из бюджета промпта.
const maxCharacterRefLen = 300

// Маркеры строк с описанием внешности персонажа.
var characterMarkers = []string{
	"appearance", "face", "hair", "eyes", "build", "wears", "wearing",
	"clothing", "outfit", "skin", "height", "features",
}

// ExtractCharacterRef извлекает из персоны персонажа короткий текстовый
// якорь для визуальной согласованности между сценами. Берутся строки,
// содержащие маркеры внешности; если таких нет, используется вся персона.
// Результат обрезается по границе слова.
func ExtractCharacterRef(persona string) string {
	persona = strings.TrimSpace(persona)
	if persona == "" {
		return ""
	}

	var picked []string
	for _, line := range strings.Split(persona, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		for _, marker := range characterMarkers {
			if strings.Contains(lower, marker) {
				picked = append(picked, line)
				break
			}
		}
	}

	ref := strings.Join(picked, " ")
	if ref == "" {
		ref = strings.Join(strings.Fields(persona), " ")
	}

	if len(ref) <= maxCharacterRefLen {
		return ref
	}
	cut := ref[:maxCharacterRefLen]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ,.;:")
}
