package repository

import (
	"context"

	"github.com/google/uuid"

	"storyboard-server/internal/models"
)

// StoryboardRepository определяет интерфейс для работы с хранилищем раскадровок.
// Используем интерфейс для возможности мокирования в тестах.
type StoryboardRepository interface {
	Create(ctx context.Context, storyboard *models.Storyboard) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Storyboard, error)
	// SetBreakdown записывает результат разбивки на сцены: заголовок,
	// описание персонажа и массив сцен без изображений.
	SetBreakdown(ctx context.Context, id uuid.UUID, title, characterPersona string, scenes []models.Scene) error
	// UpdateScene атомарно заменяет одну сцену по её индексу.
	// Промпт и URL изображения в сцене всегда пишутся вместе.
	UpdateScene(ctx context.Context, id uuid.UUID, scene models.Scene) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.StoryboardStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}
