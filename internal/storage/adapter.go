package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyboard-server/internal/models"
	"storyboard-server/internal/repository"
)

// Backend обозначает бэкенд, принявший запись.
type Backend string

const (
	BackendPrimary  Backend = "primary"
	BackendFallback Backend = "fallback"
)

// WriteResult сообщает, какой бэкенд фактически принял запись.
type WriteResult struct {
	Backend Backend
}

// Adapter - адаптер персистентности с резервным бэкендом.
// Записи идут в основное хранилище и зеркалируются в резервное;
// при отказе основного запись считается успешной, если её принял резерв.
// Чтения предпочитают основное хранилище.
type Adapter struct {
	primary  repository.StoryboardRepository
	fallback repository.StoryboardRepository
	logger   *zap.Logger
}

// NewAdapter создает адаптер. primary может быть nil, если база недоступна
// с самого старта; тогда все операции обслуживает резервное хранилище.
func NewAdapter(primary, fallback repository.StoryboardRepository, logger *zap.Logger) *Adapter {
	return &Adapter{
		primary:  primary,
		fallback: fallback,
		logger:   logger.Named("PersistenceAdapter"),
	}
}

// Create сохраняет новую раскадровку.
func (a *Adapter) Create(ctx context.Context, storyboard *models.Storyboard) (WriteResult, error) {
	return a.write(ctx, "create", storyboard.ID, func(repo repository.StoryboardRepository) error {
		return repo.Create(ctx, storyboard)
	})
}

// SetBreakdown записывает результат разбивки на сцены.
func (a *Adapter) SetBreakdown(ctx context.Context, id uuid.UUID, title, characterPersona string, scenes []models.Scene) (WriteResult, error) {
	return a.write(ctx, "set_breakdown", id, func(repo repository.StoryboardRepository) error {
		return repo.SetBreakdown(ctx, id, title, characterPersona, scenes)
	})
}

// UpdateScene атомарно заменяет одну сцену.
func (a *Adapter) UpdateScene(ctx context.Context, id uuid.UUID, scene models.Scene) (WriteResult, error) {
	return a.write(ctx, "update_scene", id, func(repo repository.StoryboardRepository) error {
		return repo.UpdateScene(ctx, id, scene)
	})
}

// UpdateStatus обновляет статус раскадровки.
func (a *Adapter) UpdateStatus(ctx context.Context, id uuid.UUID, status models.StoryboardStatus) (WriteResult, error) {
	return a.write(ctx, "update_status", id, func(repo repository.StoryboardRepository) error {
		return repo.UpdateStatus(ctx, id, status)
	})
}

// GetByID читает раскадровку, предпочитая основное хранилище.
// Резерв опрашивается, когда основное недоступно или не знает запись
// (она могла быть создана во время отказа основного).
func (a *Adapter) GetByID(ctx context.Context, id uuid.UUID) (*models.Storyboard, error) {
	if a.primary != nil {
		storyboard, err := a.primary.GetByID(ctx, id)
		if err == nil {
			return storyboard, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			a.logger.Warn("Primary read failed, falling back",
				zap.String("storyboard_id", id.String()), zap.Error(err))
		}
	}
	return a.fallback.GetByID(ctx, id)
}

// Delete удаляет раскадровку из обоих бэкендов.
func (a *Adapter) Delete(ctx context.Context, id uuid.UUID) error {
	fallbackErr := a.fallback.Delete(ctx, id)
	if a.primary == nil {
		return fallbackErr
	}

	primaryErr := a.primary.Delete(ctx, id)
	if primaryErr == nil || fallbackErr == nil {
		return nil
	}
	if errors.Is(primaryErr, models.ErrNotFound) && errors.Is(fallbackErr, models.ErrNotFound) {
		return models.ErrNotFound
	}
	return primaryErr
}

// write выполняет запись в основное хранилище с зеркалированием в резерв.
func (a *Adapter) write(ctx context.Context, op string, id uuid.UUID, apply func(repository.StoryboardRepository) error) (WriteResult, error) {
	var primaryErr error
	if a.primary != nil {
		primaryErr = apply(a.primary)
	} else {
		primaryErr = errors.New("primary storage not configured")
	}

	// Резерв держим в актуальном состоянии всегда, чтобы чтения
	// оставались возможными при отказе основного посреди генерации
	fallbackErr := apply(a.fallback)

	if primaryErr == nil {
		if fallbackErr != nil {
			a.logger.Warn("Fallback mirror write failed",
				zap.String("operation", op),
				zap.String("storyboard_id", id.String()),
				zap.Error(fallbackErr))
		}
		return WriteResult{Backend: BackendPrimary}, nil
	}

	if fallbackErr == nil {
		a.logger.Warn("Primary write failed, served by fallback",
			zap.String("operation", op),
			zap.String("storyboard_id", id.String()),
			zap.Error(primaryErr))
		return WriteResult{Backend: BackendFallback}, nil
	}

	return WriteResult{}, fmt.Errorf("both storage backends failed for %s: primary: %v, fallback: %w", op, primaryErr, fallbackErr)
}
