package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"storyboard-server/internal/models"
)

// memoryStoryboardRepository - потокобезопасное in-memory хранилище раскадровок.
// Служит резервным бэкендом при недоступности базы и хранилищем в тестах.
type memoryStoryboardRepository struct {
	mu          sync.RWMutex
	storyboards map[uuid.UUID]*models.Storyboard
}

var _ StoryboardRepository = (*memoryStoryboardRepository)(nil)

// NewMemoryStoryboardRepository создает пустое in-memory хранилище раскадровок.
func NewMemoryStoryboardRepository() StoryboardRepository {
	return &memoryStoryboardRepository{
		storyboards: make(map[uuid.UUID]*models.Storyboard),
	}
}

func (r *memoryStoryboardRepository) Create(ctx context.Context, storyboard *models.Storyboard) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.storyboards[storyboard.ID] = cloneStoryboard(storyboard)
	return nil
}

func (r *memoryStoryboardRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Storyboard, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	storyboard, ok := r.storyboards[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneStoryboard(storyboard), nil
}

func (r *memoryStoryboardRepository) SetBreakdown(ctx context.Context, id uuid.UUID, title, characterPersona string, scenes []models.Scene) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	storyboard, ok := r.storyboards[id]
	if !ok {
		return models.ErrNotFound
	}

	storyboard.Title = title
	storyboard.CharacterPersona = characterPersona
	storyboard.Scenes = cloneScenes(scenes)
	storyboard.UpdatedAt = time.Now()
	return nil
}

func (r *memoryStoryboardRepository) UpdateScene(ctx context.Context, id uuid.UUID, scene models.Scene) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	storyboard, ok := r.storyboards[id]
	if !ok {
		return models.ErrNotFound
	}
	if scene.Index < 0 || scene.Index >= len(storyboard.Scenes) {
		return models.ErrNotFound
	}

	storyboard.Scenes[scene.Index] = scene
	storyboard.UpdatedAt = time.Now()
	return nil
}

func (r *memoryStoryboardRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.StoryboardStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	storyboard, ok := r.storyboards[id]
	if !ok {
		return models.ErrNotFound
	}

	storyboard.Status = status
	storyboard.UpdatedAt = time.Now()
	return nil
}

func (r *memoryStoryboardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.storyboards[id]; !ok {
		return models.ErrNotFound
	}
	delete(r.storyboards, id)
	return nil
}

func cloneStoryboard(storyboard *models.Storyboard) *models.Storyboard {
	copied := *storyboard
	copied.Scenes = cloneScenes(storyboard.Scenes)
	return &copied
}

func cloneScenes(scenes []models.Scene) []models.Scene {
	copied := make([]models.Scene, len(scenes))
	for i, scene := range scenes {
		copied[i] = scene
		if scene.ImageURL != nil {
			url := *scene.ImageURL
			copied[i].ImageURL = &url
		}
	}
	return copied
}
