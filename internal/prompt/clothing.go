package prompt

import "strings"

// Эвристика смены одежды: детерминированное сопоставление ключевых слов
// по фиксированному словарю, без ML. Список не претендует на полноту,
// но должен воспроизводиться в точности: он напрямую управляет составом
// негативного промпта и, как следствие, визуальной непрерывностью.

var clothingChangePhrases = []string{
	"changes clothes", "changed clothes", "change of clothes",
	"new outfit", "different outfit", "puts on", "gets dressed",
	"changes into", "dressed in a new",
}

var dayIndicators = []string{
	"morning", "sunrise", "dawn", "noon", "midday", "afternoon", "daytime",
}

var nightIndicators = []string{
	"night", "evening", "sunset", "dusk", "midnight",
}

var transitionPhrases = []string{
	"next day", "next morning", "the following day", "the following morning",
	"that night", "days later", "weeks later", "months later", "years later",
	"the day after",
}

var settingChangePhrases = []string{
	"arrives at", "arrived at", "travels to", "traveled to",
	"returns home", "returned home", "leaves for", "left for", "back at",
}

var extraTimeIndicators = []string{
	"later that", "hours later",
}

// AllowClothingChange решает, допустима ли смена одежды для сцены.
// Возвращает true, если текст сцены содержит явную фразу о смене одежды,
// либо одновременно дневные и ночные маркеры (прошло время), либо явный
// переход день/ночь, либо смену локации вместе с маркером времени.
// Во всех остальных случаях одежда удерживается неизменной.
func AllowClothingChange(sceneText string) bool {
	text := strings.ToLower(sceneText)

	if containsAny(text, clothingChangePhrases) {
		return true
	}

	hasDay := containsAny(text, dayIndicators)
	hasNight := containsAny(text, nightIndicators)
	if hasDay && hasNight {
		return true
	}

	if containsAny(text, transitionPhrases) {
		return true
	}

	hasTime := hasDay || hasNight || containsAny(text, extraTimeIndicators)
	if containsAny(text, settingChangePhrases) && hasTime {
		return true
	}

	return false
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
