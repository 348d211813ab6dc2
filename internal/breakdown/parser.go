package breakdown

import (
	"encoding/json"
	"fmt"
	"strings"
)

// breakdownPayload - ожидаемая JSON-структура ответа текстового провайдера.
type breakdownPayload struct {
	Title            string         `json:"title"`
	CharacterPersona string         `json:"character_persona"`
	Scenes           []scenePayload `json:"scenes"`
}

type scenePayload struct {
	SectionTitle string `json:"section_title"`
	Text         string `json:"text"`
	ImagePrompt  string `json:"image_prompt"`
}

// extractJSON вырезает JSON-объект из свободного текста ответа модели.
// Модели любят оборачивать JSON в пояснения или markdown-блоки.
// Оборванный в конце объект не отбрасывается: закрытие скобок - забота fixJSON.
func extractJSON(raw string) (string, error) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", fmt.Errorf("no JSON object found in response")
	}
	end := strings.LastIndexByte(raw, '}')
	if end <= start {
		return raw[start:], nil
	}
	return raw[start : end+1], nil
}

// fixJSON проверяет и исправляет потенциально некорректный JSON.
// В частности, решает проблему незакрытых скобок в конце: модели нередко
// обрывают ответ, не добрав закрывающие скобки. Скобки закрываются
// в порядке, обратном вложенности.
func fixJSON(jsonStr string) string {
	if jsonStr == "" {
		return jsonStr
	}

	var stack []rune
	inString := false
	escaped := false

	for _, char := range jsonStr {
		if char == '"' && !escaped {
			inString = !inString
		}
		if !inString {
			switch char {
			case '{', '[':
				stack = append(stack, char)
			case '}', ']':
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
			}
		}
		if char == '\\' && !escaped {
			escaped = true
		} else {
			escaped = false
		}
	}

	fixed := jsonStr
	if inString {
		fixed += `"`
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			fixed += "}"
		} else {
			fixed += "]"
		}
	}
	return fixed
}

// parseBreakdown парсит сырой ответ модели в breakdownPayload.
func parseBreakdown(raw string) (*breakdownPayload, error) {
	blob, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}

	var payload breakdownPayload
	if err := json.Unmarshal([]byte(fixJSON(blob)), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse breakdown payload: %w", err)
	}
	return &payload, nil
}
