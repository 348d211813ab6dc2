// Package worker принимает задачи раскадровок из RabbitMQ
// и передает их оркестратору.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"storyboard-server/internal/messaging"
	"storyboard-server/internal/models"
	"storyboard-server/internal/service"
)

// Handler обрабатывает входящие сообщения очереди задач.
type Handler struct {
	logger  *zap.Logger
	service *service.StoryboardService
}

// NewHandler создает новый экземпляр Handler.
func NewHandler(logger *zap.Logger, svc *service.StoryboardService) *Handler {
	return &Handler{
		logger:  logger.Named("TaskHandler"),
		service: svc,
	}
}

// HandleDelivery обрабатывает одно сообщение.
// Возвращает true, если сообщение должно быть подтверждено (ack).
// Ошибки бизнес-логики подтверждаются: повтор задачи привел бы
// к повторному списанию кредитов.
func (h *Handler) HandleDelivery(ctx context.Context, msg amqp091.Delivery) bool {
	defer pushMetrics()

	var payload messaging.StoryboardTaskPayload
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		h.logger.Error("Failed to unmarshal task payload",
			zap.Error(err),
			zap.String("correlation_id", msg.CorrelationId),
			zap.ByteString("body", msg.Body))
		tasksFailed.WithLabelValues("unmarshal").Inc()
		return false // Nack - неизвестный формат
	}

	tasksReceived.Inc()
	log := h.logger.With(
		zap.String("task_id", payload.TaskID),
		zap.String("action", payload.Action),
		zap.String("owner_id", payload.OwnerID.String()))
	log.Info("Received storyboard task")

	startTime := time.Now()
	var err error
	switch payload.Action {
	case messaging.ActionCreateStoryboard, "":
		err = h.handleCreate(ctx, payload)
	case messaging.ActionRegenerateScene:
		err = h.handleRegenerate(ctx, payload)
	default:
		log.Error("Unknown task action")
		tasksFailed.WithLabelValues("unknown_action").Inc()
		return false
	}
	taskDuration.Observe(time.Since(startTime).Seconds())

	if err != nil {
		log.Error("Task processing failed", zap.Error(err))
		tasksFailed.WithLabelValues(failureReason(err)).Inc()
		return true // Ack: повтор не исправит бизнес-ошибку
	}

	tasksSucceeded.Inc()
	log.Info("Task processed successfully", zap.Duration("duration", time.Since(startTime)))
	return true
}

func (h *Handler) handleCreate(ctx context.Context, payload messaging.StoryboardTaskPayload) error {
	storyboard, err := h.service.CreateStoryboard(ctx, service.CreateStoryboardParams{
		OwnerID:     payload.OwnerID,
		Text:        payload.Text,
		VisualStyle: payload.VisualStyle,
		ColorTheme:  payload.ColorTheme,
		SceneCount:  payload.SceneCount,
	})
	if err != nil {
		return err
	}

	withImage := 0
	for i := range storyboard.Scenes {
		if storyboard.Scenes[i].HasImage() {
			withImage++
		}
	}
	scenesGenerated.Add(float64(withImage))
	scenesWithoutImage.Add(float64(len(storyboard.Scenes) - withImage))

	h.logger.Info("Storyboard created",
		zap.String("storyboard_id", storyboard.ID.String()),
		zap.Int("scene_count", len(storyboard.Scenes)),
		zap.Int("scenes_with_image", withImage))
	return nil
}

func (h *Handler) handleRegenerate(ctx context.Context, payload messaging.StoryboardTaskPayload) error {
	if payload.StoryboardID == nil || payload.SceneIndex == nil {
		return errors.New("regeneration task requires storyboard_id and scene_index")
	}
	_, err := h.service.RegenerateScene(ctx, *payload.StoryboardID, *payload.SceneIndex, payload.PromptOverride)
	return err
}

func failureReason(err error) string {
	var insufficientErr *models.InsufficientCreditsError
	switch {
	case errors.As(err, &insufficientErr):
		return "insufficient_credits"
	case errors.Is(err, models.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, models.ErrBreakdownFailed):
		return "breakdown"
	case errors.Is(err, models.ErrImageGenerationFailed):
		return "image_generation"
	case errors.Is(err, models.ErrImageUploadFailed):
		return "image_upload"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
