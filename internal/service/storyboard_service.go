// Package service содержит оркестратор конвейера раскадровок:
// авторизация, разбивка на сцены, генерация изображений и персистентность.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyboard-server/internal/breakdown"
	"storyboard-server/internal/entitlement"
	"storyboard-server/internal/imagegen"
	"storyboard-server/internal/messaging"
	"storyboard-server/internal/models"
	"storyboard-server/internal/prompt"
	"storyboard-server/internal/storage"
)

const (
	defaultSceneCount = 4
	maxSceneCount     = 10
)

// Config - параметры оркестратора.
type Config struct {
	SceneWorkers int // Размер пула воркеров генерации изображений
}

// CreateStoryboardParams - параметры запроса на создание раскадровки.
type CreateStoryboardParams struct {
	OwnerID     uuid.UUID
	Text        string
	VisualStyle string
	ColorTheme  string
	SceneCount  int // 0 означает значение по умолчанию
}

// StoryboardService оркестрирует полный цикл генерации раскадровки.
type StoryboardService struct {
	gate      *entitlement.Gate
	breakdown *breakdown.Stage
	images    *imagegen.Stage
	store     *storage.Adapter
	objects   storage.ObjectStorage
	publisher messaging.NotificationPublisher // может быть nil
	config    Config
	logger    *zap.Logger
}

// NewStoryboardService создает оркестратор.
func NewStoryboardService(
	gate *entitlement.Gate,
	breakdownStage *breakdown.Stage,
	imageStage *imagegen.Stage,
	store *storage.Adapter,
	objects storage.ObjectStorage,
	publisher messaging.NotificationPublisher,
	cfg Config,
	logger *zap.Logger,
) *StoryboardService {
	if cfg.SceneWorkers <= 0 {
		cfg.SceneWorkers = 2
	}
	return &StoryboardService{
		gate:      gate,
		breakdown: breakdownStage,
		images:    imageStage,
		store:     store,
		objects:   objects,
		publisher: publisher,
		config:    cfg,
		logger:    logger.Named("StoryboardService"),
	}
}

// CreateStoryboard выполняет полный конвейер: авторизация и списание,
// создание записи, разбивка на сцены, параллельная генерация изображений
// с инкрементальной персистентностью. Частичные отказы генерации не
// валят раскадровку: сцены без изображений остаются в статусе completed.
func (s *StoryboardService) CreateStoryboard(ctx context.Context, params CreateStoryboardParams) (*models.Storyboard, error) {
	if err := validateCreateParams(&params); err != nil {
		return nil, err
	}

	log := s.logger.With(zap.String("owner_id", params.OwnerID.String()))

	// Списание выполняется до любой работы; при отказе записи не создается
	decision, err := s.gate.Authorize(ctx, params.OwnerID)
	if err != nil {
		return nil, err
	}
	log.Info("Generation authorized",
		zap.Bool("consumed_free_story", decision.ConsumedFreeStory),
		zap.Int("new_balance", decision.NewBalance))

	now := time.Now()
	storyboard := &models.Storyboard{
		ID:           uuid.New(),
		OwnerID:      params.OwnerID,
		OriginalText: params.Text,
		VisualStyle:  params.VisualStyle,
		ColorTheme:   params.ColorTheme,
		Scenes:       []models.Scene{},
		Status:       models.StatusProcessing,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.store.Create(ctx, storyboard); err != nil {
		return nil, fmt.Errorf("failed to create storyboard record: %w", err)
	}
	log = log.With(zap.String("storyboard_id", storyboard.ID.String()))
	s.notify(ctx, storyboard, messaging.NotificationStatusProcessing, nil, nil, "")

	result, err := s.breakdown.Breakdown(ctx, params.OwnerID, params.Text, params.VisualStyle, params.SceneCount)
	if err != nil {
		// Списанное не возвращается
		if _, stErr := s.store.UpdateStatus(ctx, storyboard.ID, models.StatusFailed); stErr != nil {
			log.Error("Failed to mark storyboard as failed", zap.Error(stErr))
		}
		s.notify(ctx, storyboard, messaging.NotificationStatusFailed, nil, nil, err.Error())
		return nil, err
	}
	if result.Fallback {
		log.Warn("Breakdown degraded to placeholder scenes")
	}

	if _, err := s.store.SetBreakdown(ctx, storyboard.ID, result.Title, result.CharacterPersona, result.Scenes); err != nil {
		return nil, fmt.Errorf("failed to persist breakdown: %w", err)
	}
	storyboard.Title = result.Title
	storyboard.CharacterPersona = result.CharacterPersona
	storyboard.Scenes = result.Scenes

	characterRef := prompt.ExtractCharacterRef(result.CharacterPersona)
	generated, failed, rateLimited := s.generateScenes(ctx, storyboard, characterRef)

	// Раскадровка завершается и при частичных отказах: текст и промпты
	// всех сцен уже сохранены, недостающие изображения можно перегенерировать
	if _, err := s.store.UpdateStatus(ctx, storyboard.ID, models.StatusCompleted); err != nil {
		return nil, fmt.Errorf("failed to mark storyboard as completed: %w", err)
	}

	log.Info("Storyboard generation finished",
		zap.Int("total_scenes", len(storyboard.Scenes)),
		zap.Int("generated", generated),
		zap.Int("failed", failed),
		zap.Bool("rate_limited", rateLimited))

	final, err := s.store.GetByID(ctx, storyboard.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read final storyboard: %w", err)
	}
	s.notify(ctx, final, messaging.NotificationStatusCompleted, nil, nil, "")
	return final, nil
}

// generateScenes прогоняет все сцены через ограниченный пул воркеров.
// При исчерпании квоты провайдера пул останавливается: уже начатые сцены
// дорабатываются или отменяются, оставшиеся остаются без изображений.
func (s *StoryboardService) generateScenes(ctx context.Context, storyboard *models.Storyboard, characterRef string) (generated, failed int, rateLimited bool) {
	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg             sync.WaitGroup
		generatedCount atomic.Int32
		failedCount    atomic.Int32
		rateLimitHit   atomic.Bool
	)

	jobs := make(chan models.Scene)
	for i := 0; i < s.config.SceneWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for scene := range jobs {
				if genCtx.Err() != nil {
					// Пул остановлен, сцена остается без изображения
					continue
				}
				s.processScene(ctx, genCtx, cancel, storyboard, scene, characterRef,
					&generatedCount, &failedCount, &rateLimitHit)
			}
		}()
	}

	for _, scene := range storyboard.Scenes {
		jobs <- scene
	}
	close(jobs)
	wg.Wait()

	return int(generatedCount.Load()), int(failedCount.Load()), rateLimitHit.Load()
}

func (s *StoryboardService) processScene(
	ctx, genCtx context.Context,
	abort context.CancelFunc,
	storyboard *models.Storyboard,
	scene models.Scene,
	characterRef string,
	generatedCount, failedCount *atomic.Int32,
	rateLimitHit *atomic.Bool,
) {
	maintainClothing := characterRef != "" && !prompt.AllowClothingChange(scene.Text)

	url, err := s.images.GenerateScene(genCtx, imagegen.SceneRequest{
		StoryboardID:     storyboard.ID,
		SceneIndex:       scene.Index,
		ScenePrompt:      scene.ImagePrompt,
		VisualStyle:      storyboard.VisualStyle,
		ColorTheme:       storyboard.ColorTheme,
		CharacterRef:     characterRef,
		MaintainClothing: maintainClothing,
	})
	if err != nil {
		if models.IsRateLimited(err) {
			rateLimitHit.Store(true)
			abort()
			return
		}
		if errors.Is(err, context.Canceled) {
			return
		}
		failedCount.Add(1)
		s.logger.Warn("Scene image generation failed",
			zap.String("storyboard_id", storyboard.ID.String()),
			zap.Int("scene_index", scene.Index),
			zap.Error(err))
		return
	}

	scene.ImageURL = &url
	// Персистентность не зависит от genCtx: результат уже получен
	if _, err := s.store.UpdateScene(ctx, storyboard.ID, scene); err != nil {
		failedCount.Add(1)
		s.logger.Error("Failed to persist scene image",
			zap.String("storyboard_id", storyboard.ID.String()),
			zap.Int("scene_index", scene.Index),
			zap.Error(err))
		return
	}

	generatedCount.Add(1)
	s.notify(ctx, storyboard, messaging.NotificationStatusSceneCompleted, &scene.Index, &url, "")
}

// RegenerateScene перегенерирует изображение одной сцены, при необходимости
// с новым промптом. Операция не тарифицируется. Новый промпт сохраняется
// вместе со сбросом URL до генерации, чтобы промпт и изображение всегда
// соответствовали друг другу.
func (s *StoryboardService) RegenerateScene(ctx context.Context, storyboardID uuid.UUID, sceneIndex int, promptOverride string) (*models.Storyboard, error) {
	storyboard, err := s.store.GetByID(ctx, storyboardID)
	if err != nil {
		return nil, err
	}
	if sceneIndex < 0 || sceneIndex >= len(storyboard.Scenes) {
		return nil, fmt.Errorf("scene %d of storyboard %s: %w", sceneIndex, storyboardID, models.ErrNotFound)
	}

	scene := storyboard.Scenes[sceneIndex]
	if override := strings.TrimSpace(promptOverride); override != "" {
		scene.ImagePrompt = override
	}
	scene.ImageURL = nil
	if _, err := s.store.UpdateScene(ctx, storyboardID, scene); err != nil {
		return nil, fmt.Errorf("failed to persist scene prompt: %w", err)
	}

	characterRef := prompt.ExtractCharacterRef(storyboard.CharacterPersona)
	maintainClothing := characterRef != "" && !prompt.AllowClothingChange(scene.Text)

	url, err := s.images.GenerateScene(ctx, imagegen.SceneRequest{
		StoryboardID:     storyboardID,
		SceneIndex:       sceneIndex,
		ScenePrompt:      scene.ImagePrompt,
		VisualStyle:      storyboard.VisualStyle,
		ColorTheme:       storyboard.ColorTheme,
		CharacterRef:     characterRef,
		MaintainClothing: maintainClothing,
	})
	if err != nil {
		return nil, err
	}

	scene.ImageURL = &url
	if _, err := s.store.UpdateScene(ctx, storyboardID, scene); err != nil {
		return nil, fmt.Errorf("failed to persist regenerated scene: %w", err)
	}

	s.logger.Info("Scene regenerated",
		zap.String("storyboard_id", storyboardID.String()),
		zap.Int("scene_index", sceneIndex))

	final, err := s.store.GetByID(ctx, storyboardID)
	if err != nil {
		return nil, fmt.Errorf("failed to read storyboard after regeneration: %w", err)
	}
	s.notify(ctx, final, messaging.NotificationStatusSceneCompleted, &sceneIndex, &url, "")
	return final, nil
}

// GetStoryboard возвращает раскадровку по идентификатору.
func (s *StoryboardService) GetStoryboard(ctx context.Context, id uuid.UUID) (*models.Storyboard, error) {
	return s.store.GetByID(ctx, id)
}

// DeleteStoryboard удаляет раскадровку и её изображения из хранилища объектов.
func (s *StoryboardService) DeleteStoryboard(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	// Изображения чистим в лучшем случае: запись уже удалена
	if s.objects != nil {
		prefix := fmt.Sprintf("storyboards/%s/", id)
		if err := s.objects.DeletePrefix(ctx, prefix); err != nil {
			s.logger.Warn("Failed to delete storyboard images",
				zap.String("storyboard_id", id.String()),
				zap.Error(err))
		}
	}
	return nil
}

func (s *StoryboardService) notify(ctx context.Context, storyboard *models.Storyboard, status string, sceneIndex *int, imageURL *string, errMsg string) {
	if s.publisher == nil {
		return
	}
	payload := messaging.NotificationPayload{
		StoryboardID: storyboard.ID,
		OwnerID:      storyboard.OwnerID,
		Status:       status,
		SceneIndex:   sceneIndex,
		ImageURL:     imageURL,
		Error:        errMsg,
		Timestamp:    time.Now(),
	}
	if err := s.publisher.PublishNotification(ctx, payload); err != nil {
		s.logger.Warn("Failed to publish notification",
			zap.String("storyboard_id", storyboard.ID.String()),
			zap.String("status", status),
			zap.Error(err))
	}
}

func validateCreateParams(params *CreateStoryboardParams) error {
	if params.OwnerID == uuid.Nil {
		return fmt.Errorf("owner id is required: %w", models.ErrInvalidInput)
	}
	if strings.TrimSpace(params.Text) == "" {
		return fmt.Errorf("narrative text is required: %w", models.ErrInvalidInput)
	}
	if params.SceneCount == 0 {
		params.SceneCount = defaultSceneCount
	}
	if params.SceneCount < 1 || params.SceneCount > maxSceneCount {
		return fmt.Errorf("scene count must be between 1 and %d: %w", maxSceneCount, models.ErrInvalidInput)
	}
	return nil
}
