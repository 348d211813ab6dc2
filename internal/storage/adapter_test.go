package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storyboard-server/internal/mocks"
	"storyboard-server/internal/models"
	"storyboard-server/internal/repository"
	"storyboard-server/internal/storage"
)

func testStoryboard() *models.Storyboard {
	now := time.Now()
	return &models.Storyboard{
		ID:           uuid.New(),
		OwnerID:      uuid.New(),
		Title:        "The Lighthouse",
		OriginalText: "The keeper climbed the stairs as the storm rolled in.",
		VisualStyle:  models.StyleSketch,
		ColorTheme:   models.ThemeMonochrome,
		Scenes:       []models.Scene{},
		Status:       models.StatusProcessing,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestAdapter_WriteGoesToPrimary(t *testing.T) {
	primary := repository.NewMemoryStoryboardRepository()
	fallback := repository.NewMemoryStoryboardRepository()
	adapter := storage.NewAdapter(primary, fallback, zap.NewNop())

	storyboard := testStoryboard()
	result, err := adapter.Create(context.Background(), storyboard)

	require.NoError(t, err)
	assert.Equal(t, storage.BackendPrimary, result.Backend)

	got, err := adapter.GetByID(context.Background(), storyboard.ID)
	require.NoError(t, err)
	assert.Equal(t, storyboard.Title, got.Title)
}

func TestAdapter_PrimaryFailureFallsBack(t *testing.T) {
	primary := mocks.NewMockStoryboardRepository(t)
	primary.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	fallback := repository.NewMemoryStoryboardRepository()
	adapter := storage.NewAdapter(primary, fallback, zap.NewNop())

	storyboard := testStoryboard()
	result, err := adapter.Create(context.Background(), storyboard)

	require.NoError(t, err)
	assert.Equal(t, storage.BackendFallback, result.Backend)

	// Запись ушла в резерв целиком
	got, err := fallback.GetByID(context.Background(), storyboard.ID)
	require.NoError(t, err)
	assert.Equal(t, storyboard.Title, got.Title)
}

func TestAdapter_ReadFallsBackWhenPrimaryMisses(t *testing.T) {
	primary := mocks.NewMockStoryboardRepository(t)
	primary.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection refused"))
	primary.On("GetByID", mock.Anything, mock.Anything).Return(nil, models.ErrNotFound)

	fallback := repository.NewMemoryStoryboardRepository()
	adapter := storage.NewAdapter(primary, fallback, zap.NewNop())

	storyboard := testStoryboard()
	_, err := adapter.Create(context.Background(), storyboard)
	require.NoError(t, err)

	got, err := adapter.GetByID(context.Background(), storyboard.ID)
	require.NoError(t, err)
	assert.Equal(t, storyboard.ID, got.ID)
}

func TestAdapter_NilPrimaryServedByFallback(t *testing.T) {
	fallback := repository.NewMemoryStoryboardRepository()
	adapter := storage.NewAdapter(nil, fallback, zap.NewNop())

	storyboard := testStoryboard()
	result, err := adapter.Create(context.Background(), storyboard)

	require.NoError(t, err)
	assert.Equal(t, storage.BackendFallback, result.Backend)

	got, err := adapter.GetByID(context.Background(), storyboard.ID)
	require.NoError(t, err)
	assert.Equal(t, storyboard.ID, got.ID)
}

func TestAdapter_BothBackendsFailing(t *testing.T) {
	primary := mocks.NewMockStoryboardRepository(t)
	primary.On("UpdateStatus", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	fallback := repository.NewMemoryStoryboardRepository()
	adapter := storage.NewAdapter(primary, fallback, zap.NewNop())

	// Раскадровки нет ни в одном бэкенде
	_, err := adapter.UpdateStatus(context.Background(), uuid.New(), models.StatusCompleted)
	assert.Error(t, err)
}

func TestAdapter_SceneUpdateMirroredToFallback(t *testing.T) {
	primary := repository.NewMemoryStoryboardRepository()
	fallback := repository.NewMemoryStoryboardRepository()
	adapter := storage.NewAdapter(primary, fallback, zap.NewNop())

	storyboard := testStoryboard()
	_, err := adapter.Create(context.Background(), storyboard)
	require.NoError(t, err)

	scenes := []models.Scene{
		{Index: 0, SectionTitle: "Arrival", Text: "The keeper arrives.", ImagePrompt: "keeper at the door"},
	}
	_, err = adapter.SetBreakdown(context.Background(), storyboard.ID, storyboard.Title, "", scenes)
	require.NoError(t, err)

	url := "https://cdn.example.com/scene_00.png"
	scene := scenes[0]
	scene.ImageURL = &url
	_, err = adapter.UpdateScene(context.Background(), storyboard.ID, scene)
	require.NoError(t, err)

	// Резерв должен видеть ту же сцену
	fromFallback, err := fallback.GetByID(context.Background(), storyboard.ID)
	require.NoError(t, err)
	require.Len(t, fromFallback.Scenes, 1)
	assert.True(t, fromFallback.Scenes[0].HasImage())
}

func TestAdapter_DeleteNotFoundInBoth(t *testing.T) {
	fallback := repository.NewMemoryStoryboardRepository()
	adapter := storage.NewAdapter(nil, fallback, zap.NewNop())

	err := adapter.Delete(context.Background(), uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}
