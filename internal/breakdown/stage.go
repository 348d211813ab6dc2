// Package breakdown превращает сырой повествовательный текст в структурный
// список сцен через текстовый AI провайдер. Ошибки провайдера и парсинга
// деградируют до заглушек вместо отказа: контракт со следующими стадиями -
// всегда ровно K сцен.
package breakdown

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyboard-server/internal/ai"
	"storyboard-server/internal/models"
)

const systemPromptTemplate = `You are a storyboard writer. Split the user's narrative text into exactly %d scenes.
Respond with a single JSON object and nothing else, in this exact shape:
{"title": "...", "character_persona": "...", "scenes": [{"section_title": "...", "text": "...", "image_prompt": "..."}]}
Rules:
- "scenes" must contain exactly %d entries in narrative order.
- "character_persona" describes the main character's appearance (face, hair, build, clothing) in enough detail to keep the character visually identical across every scene.
- Each "image_prompt" describes one visual moment of its scene in %s style.
- Do not wrap the JSON in markdown fences or commentary.`

// Result - исход разбивки. Fallback=true означает, что ответ провайдера
// не удалось разобрать и использовано заглушечное содержимое.
type Result struct {
	Title            string
	CharacterPersona string
	Scenes           []models.Scene
	Fallback         bool
	Usage            ai.UsageInfo
}

// Stage выполняет разбивку текста на сцены. Один вызов провайдера на
// раскадровку, без ретраев: отказ разбивки обрабатывается заглушкой.
type Stage struct {
	client  ai.Client
	logger  *zap.Logger
	timeout time.Duration
}

// NewStage создает стадию разбивки.
func NewStage(client ai.Client, timeout time.Duration, logger *zap.Logger) *Stage {
	return &Stage{
		client:  client,
		logger:  logger.Named("Breakdown"),
		timeout: timeout,
	}
}

// Breakdown запрашивает у провайдера ровно sceneCount сцен и нормализует
// ответ: короткий список дополняется заглушками, нечитаемый ответ целиком
// заменяется заглушечной раскадровкой. Возвращает ошибку только при
// отказе самого провайдера (не при кривом JSON).
func (s *Stage) Breakdown(ctx context.Context, ownerID uuid.UUID, rawText, visualStyle string, sceneCount int) (*Result, error) {
	log := s.logger.With(zap.String("owner_id", ownerID.String()), zap.Int("scene_count", sceneCount))

	systemPrompt := fmt.Sprintf(systemPromptTemplate, sceneCount, sceneCount, visualStyle)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, usage, err := s.client.GenerateText(callCtx, ownerID.String(), systemPrompt, rawText, ai.GenerationParams{
		Temperature: float64Ptr(0.3),
	})
	if err != nil {
		log.Error("Text provider call failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", models.ErrBreakdownFailed, err)
	}

	payload, parseErr := parseBreakdown(raw)
	if parseErr != nil {
		// Явная политика degrade-rather-than-fail: конвейер все равно
		// должен выдать хоть что-то.
		log.Warn("Failed to parse provider response, using placeholder storyboard",
			zap.Error(parseErr), zap.Int("response_chars", len(raw)))
		return s.placeholderResult(rawText, sceneCount, usage), nil
	}

	result := &Result{
		Title:            strings.TrimSpace(payload.Title),
		CharacterPersona: strings.TrimSpace(payload.CharacterPersona),
		Usage:            usage,
	}
	if result.Title == "" {
		result.Title = "Storyboard"
	}

	for i, sc := range payload.Scenes {
		if i >= sceneCount {
			// Лишние сцены отбрасываем: контракт - ровно K
			log.Debug("Provider returned extra scenes, trimming",
				zap.Int("returned", len(payload.Scenes)))
			break
		}
		result.Scenes = append(result.Scenes, models.Scene{
			Index:        i,
			SectionTitle: strings.TrimSpace(sc.SectionTitle),
			Text:         strings.TrimSpace(sc.Text),
			ImagePrompt:  strings.TrimSpace(sc.ImagePrompt),
		})
	}

	if len(result.Scenes) < sceneCount {
		log.Warn("Provider returned fewer scenes than requested, padding",
			zap.Int("returned", len(result.Scenes)))
		padScenes(result, rawText, sceneCount)
	}

	return result, nil
}

// placeholderResult строит одноcценную заглушечную раскадровку и дополняет
// ее до sceneCount сцен.
func (s *Stage) placeholderResult(rawText string, sceneCount int, usage ai.UsageInfo) *Result {
	result := &Result{
		Title:    "Storyboard",
		Fallback: true,
		Usage:    usage,
		Scenes: []models.Scene{{
			Index:        0,
			SectionTitle: "Scene 1",
			Text:         summarize(rawText),
			ImagePrompt:  summarize(rawText),
		}},
	}
	padScenes(result, rawText, sceneCount)
	return result
}

// padScenes дополняет список синтетическими сценами до ровно sceneCount.
func padScenes(result *Result, rawText string, sceneCount int) {
	for i := len(result.Scenes); i < sceneCount; i++ {
		result.Scenes = append(result.Scenes, models.Scene{
			Index:        i,
			SectionTitle: fmt.Sprintf("Scene %d", i+1),
			Text:         fmt.Sprintf("Scene %d: %s", i+1, summarize(rawText)),
			ImagePrompt:  fmt.Sprintf("Scene %d of the story: %s", i+1, summarize(rawText)),
		})
	}
}

// summarize возвращает короткую выжимку исходного текста для заглушек.
func summarize(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	const limit = 200
	if len(text) <= limit {
		return text
	}
	cut := text[:limit]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return cut
}

func float64Ptr(f float64) *float64 {
	return &f
}
