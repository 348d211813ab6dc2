package imagegen

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyboard-server/internal/models"
	"storyboard-server/internal/prompt"
	"storyboard-server/internal/storage"
	"storyboard-server/pkg/retry"
)

// StageConfig - настройки стадии генерации изображений.
type StageConfig struct {
	MaxAttempts int           // Максимум попыток на одну сцену
	RetryDelay  time.Duration // Фиксированная задержка между попытками
	CallTimeout time.Duration // Таймаут одного вызова провайдера
}

// SceneRequest описывает одну сцену для генерации изображения.
type SceneRequest struct {
	StoryboardID     uuid.UUID
	SceneIndex       int
	ScenePrompt      string
	VisualStyle      string
	ColorTheme       string
	CharacterRef     string
	MaintainClothing bool
	ReferenceImages  []string
}

// Stage выполняет синтез промпта, генерацию с ретраями и загрузку изображения в хранилище.
type Stage struct {
	generator Generator
	store     storage.ObjectStorage
	config    StageConfig
	logger    *zap.Logger
}

// NewStage создает стадию генерации изображений.
func NewStage(generator Generator, store storage.ObjectStorage, cfg StageConfig, logger *zap.Logger) *Stage {
	return &Stage{
		generator: generator,
		store:     store,
		config:    cfg,
		logger:    logger.Named("ImageStage"),
	}
}

// GenerateScene синтезирует промпт, генерирует изображение с ограниченным числом
// попыток и загружает результат в хранилище. Возвращает публичный URL изображения.
// При явном исчерпании квоты провайдера возвращает ошибку, различимую через
// models.IsRateLimited, без дальнейших попыток.
func (s *Stage) GenerateScene(ctx context.Context, req SceneRequest) (string, error) {
	log := s.logger.With(
		zap.String("storyboard_id", req.StoryboardID.String()),
		zap.Int("scene_index", req.SceneIndex),
	)

	enhanced, negative := prompt.Synthesize(prompt.Input{
		ScenePrompt:      req.ScenePrompt,
		VisualStyle:      req.VisualStyle,
		ColorTheme:       req.ColorTheme,
		CharacterRef:     req.CharacterRef,
		MaintainClothing: req.MaintainClothing,
	})

	genReq := GenerateRequest{
		Prompt:          enhanced,
		NegativePrompt:  negative,
		ReferenceImages: req.ReferenceImages,
	}

	var imageData []byte
	retryCfg := retry.Config{
		MaxAttempts: s.config.MaxAttempts,
		Delay:       s.config.RetryDelay,
		Retryable: func(err error) bool {
			// Исчерпание квоты провайдера не лечится повтором
			return !models.IsRateLimited(err)
		},
	}

	err := retry.Do(ctx, retryCfg, func(attemptCtx context.Context) error {
		callCtx, cancel := context.WithTimeout(attemptCtx, s.config.CallTimeout)
		defer cancel()

		data, genErr := s.generator.GenerateImage(callCtx, genReq)
		if genErr != nil {
			return genErr
		}
		imageData = data
		return nil
	})
	if err != nil {
		if models.IsRateLimited(err) {
			log.Warn("Scene generation aborted: provider quota exhausted", zap.Error(err))
			return "", err
		}
		log.Error("Scene generation failed after retries",
			zap.Int("max_attempts", s.config.MaxAttempts), zap.Error(err))
		return "", fmt.Errorf("%w: %v", models.ErrImageGenerationFailed, err)
	}

	objectPath := fmt.Sprintf("storyboards/%s/scene_%02d_%s.png",
		req.StoryboardID.String(), req.SceneIndex, uuid.New().String()[:8])
	publicURL, err := s.store.Upload(ctx, objectPath, imageData, "image/png")
	if err != nil {
		log.Error("Failed to upload scene image", zap.String("path", objectPath), zap.Error(err))
		return "", fmt.Errorf("%w: %v", models.ErrImageUploadFailed, err)
	}

	log.Info("Scene image generated and uploaded",
		zap.String("image_url", publicURL), zap.Int("size_bytes", len(imageData)))
	return publicURL, nil
}
