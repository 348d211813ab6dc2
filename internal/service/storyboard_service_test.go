package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storyboard-server/internal/ai"
	"storyboard-server/internal/breakdown"
	"storyboard-server/internal/entitlement"
	"storyboard-server/internal/imagegen"
	"storyboard-server/internal/mocks"
	"storyboard-server/internal/models"
	"storyboard-server/internal/repository"
	"storyboard-server/internal/service"
	"storyboard-server/internal/storage"
)

type fixture struct {
	service     *service.StoryboardService
	aiClient    *mocks.MockAIClient
	generator   *mocks.MockGenerator
	objects     *mocks.MockObjectStorage
	creditStore *entitlement.MemoryStore
	repo        repository.StoryboardRepository
}

func newFixture(t *testing.T, sceneWorkers int) *fixture {
	t.Helper()
	logger := zap.NewNop()

	aiClient := mocks.NewMockAIClient(t)
	generator := mocks.NewMockGenerator(t)
	objects := mocks.NewMockObjectStorage(t)
	creditStore := entitlement.NewMemoryStore()
	repo := repository.NewMemoryStoryboardRepository()

	gate := entitlement.NewGate(creditStore, entitlement.Config{StoryCost: 4, FreeQuota: 2}, logger)
	breakdownStage := breakdown.NewStage(aiClient, 30*time.Second, logger)
	imageStage := imagegen.NewStage(generator, objects, imagegen.StageConfig{
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
		CallTimeout: time.Second,
	}, logger)
	adapter := storage.NewAdapter(nil, repo, logger)

	svc := service.NewStoryboardService(
		gate, breakdownStage, imageStage, adapter, objects, nil,
		service.Config{SceneWorkers: sceneWorkers}, logger)

	return &fixture{
		service:     svc,
		aiClient:    aiClient,
		generator:   generator,
		objects:     objects,
		creditStore: creditStore,
		repo:        repo,
	}
}

func breakdownJSON(sceneCount int) string {
	var scenes []string
	for i := 0; i < sceneCount; i++ {
		scenes = append(scenes, fmt.Sprintf(
			`{"section_title":"Scene %d","text":"The keeper acts in part %d.","image_prompt":"keeper scene %d in the lighthouse"}`,
			i+1, i+1, i+1))
	}
	return fmt.Sprintf(
		`{"title":"The Lighthouse","character_persona":"Appearance: tall man with a grey beard. Wears a navy coat.","scenes":[%s]}`,
		strings.Join(scenes, ","))
}

func createParams(ownerID uuid.UUID, sceneCount int) service.CreateStoryboardParams {
	return service.CreateStoryboardParams{
		OwnerID:     ownerID,
		Text:        "The keeper climbed the spiral stairs as the storm rolled in over the bay.",
		VisualStyle: models.StyleSketch,
		ColorTheme:  models.ThemeMonochrome,
		SceneCount:  sceneCount,
	}
}

func TestCreateStoryboard_HappyPath(t *testing.T) {
	f := newFixture(t, 2)
	ownerID := uuid.New()
	f.creditStore.Seed(ownerID, 6, 2) // квота исчерпана, платим кредитами

	f.aiClient.On("GenerateText", mock.Anything, ownerID.String(), mock.Anything, mock.Anything, mock.Anything).
		Return(breakdownJSON(3), ai.UsageInfo{TotalTokens: 500}, nil).Once()
	f.generator.On("GenerateImage", mock.Anything, mock.Anything).Return([]byte("png"), nil)
	f.objects.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("https://cdn.example.com/scene.png", nil)

	storyboard, err := f.service.CreateStoryboard(context.Background(), createParams(ownerID, 3))

	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, storyboard.Status)
	assert.Equal(t, "The Lighthouse", storyboard.Title)
	require.Len(t, storyboard.Scenes, 3)
	for _, scene := range storyboard.Scenes {
		assert.True(t, scene.HasImage(), "scene %d should have an image", scene.Index)
	}

	// Списано ровно 4 кредита
	account, err := f.creditStore.GetAccount(context.Background(), ownerID)
	require.NoError(t, err)
	assert.Equal(t, 2, account.Balance)
}

func TestCreateStoryboard_InsufficientCredits(t *testing.T) {
	f := newFixture(t, 2)
	ownerID := uuid.New()
	f.creditStore.Seed(ownerID, 2, 2)

	storyboard, err := f.service.CreateStoryboard(context.Background(), createParams(ownerID, 3))

	require.Error(t, err)
	assert.Nil(t, storyboard)

	var insufficientErr *models.InsufficientCreditsError
	require.True(t, errors.As(err, &insufficientErr))
	assert.Equal(t, 2, insufficientErr.Balance)
	assert.Equal(t, 4, insufficientErr.Cost)

	// До провайдеров дело не дошло, счет не изменился
	f.aiClient.AssertNotCalled(t, "GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	account, err := f.creditStore.GetAccount(context.Background(), ownerID)
	require.NoError(t, err)
	assert.Equal(t, 2, account.Balance)
}

func TestCreateStoryboard_PartialImageFailures(t *testing.T) {
	f := newFixture(t, 2)
	ownerID := uuid.New()
	f.creditStore.Seed(ownerID, 10, 2)

	f.aiClient.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(breakdownJSON(6), ai.UsageInfo{TotalTokens: 900}, nil).Once()

	// Сцены 2 и 5 стабильно падают на всех попытках
	failing := func(n int) func(imagegen.GenerateRequest) bool {
		needle := fmt.Sprintf("keeper scene %d ", n)
		return func(req imagegen.GenerateRequest) bool {
			return strings.Contains(req.Prompt, needle)
		}
	}
	transient := &models.ProviderError{Err: errors.New("API returned status 500")}
	f.generator.On("GenerateImage", mock.Anything, mock.MatchedBy(failing(2))).Return(nil, transient)
	f.generator.On("GenerateImage", mock.Anything, mock.MatchedBy(failing(5))).Return(nil, transient)
	f.generator.On("GenerateImage", mock.Anything, mock.Anything).Return([]byte("png"), nil)
	f.objects.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("https://cdn.example.com/scene.png", nil)

	storyboard, err := f.service.CreateStoryboard(context.Background(), createParams(ownerID, 6))

	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, storyboard.Status)
	require.Len(t, storyboard.Scenes, 6)

	withImage := 0
	for _, scene := range storyboard.Scenes {
		if scene.HasImage() {
			withImage++
		} else {
			// Текст и промпт сцены сохранены несмотря на отказ
			assert.NotEmpty(t, scene.Text)
			assert.NotEmpty(t, scene.ImagePrompt)
		}
	}
	assert.Equal(t, 4, withImage)
}

func TestCreateStoryboard_RateLimitStopsRemainingScenes(t *testing.T) {
	// Один воркер делает порядок обработки сцен детерминированным
	f := newFixture(t, 1)
	ownerID := uuid.New()
	f.creditStore.Seed(ownerID, 10, 2)

	f.aiClient.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(breakdownJSON(6), ai.UsageInfo{TotalTokens: 900}, nil).Once()

	rateLimited := &models.ProviderError{RateLimited: true, Err: errors.New("API returned status 429: quota exceeded")}
	firstScene := func(req imagegen.GenerateRequest) bool {
		return strings.Contains(req.Prompt, "keeper scene 1 ")
	}
	f.generator.On("GenerateImage", mock.Anything, mock.MatchedBy(firstScene)).Return([]byte("png"), nil).Once()
	f.generator.On("GenerateImage", mock.Anything, mock.Anything).Return(nil, rateLimited)
	f.objects.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("https://cdn.example.com/scene_00.png", nil).Once()

	storyboard, err := f.service.CreateStoryboard(context.Background(), createParams(ownerID, 6))

	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, storyboard.Status)
	require.Len(t, storyboard.Scenes, 6)

	assert.True(t, storyboard.Scenes[0].HasImage())
	for _, scene := range storyboard.Scenes[1:] {
		assert.False(t, scene.HasImage(), "scene %d should stay pending after rate limit", scene.Index)
	}
	// Одна успешная генерация и одна попытка, уткнувшаяся в квоту
	f.generator.AssertNumberOfCalls(t, "GenerateImage", 2)
}

func TestCreateStoryboard_BreakdownProviderFailureMarksFailed(t *testing.T) {
	f := newFixture(t, 2)
	ownerID := uuid.New()
	f.creditStore.Seed(ownerID, 10, 2)

	f.aiClient.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", ai.UsageInfo{}, errors.New("upstream timeout")).Once()

	storyboard, err := f.service.CreateStoryboard(context.Background(), createParams(ownerID, 3))

	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrBreakdownFailed)
	assert.Nil(t, storyboard)

	// Кредиты не возвращаются
	account, getErr := f.creditStore.GetAccount(context.Background(), ownerID)
	require.NoError(t, getErr)
	assert.Equal(t, 6, account.Balance)
}

func TestCreateStoryboard_ValidationRejectsEmptyText(t *testing.T) {
	f := newFixture(t, 2)

	_, err := f.service.CreateStoryboard(context.Background(), service.CreateStoryboardParams{
		OwnerID: uuid.New(),
		Text:    "   ",
	})

	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestRegenerateScene_WithPromptOverride(t *testing.T) {
	f := newFixture(t, 2)
	ownerID := uuid.New()
	f.creditStore.Seed(ownerID, 10, 2)

	f.aiClient.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(breakdownJSON(2), ai.UsageInfo{TotalTokens: 300}, nil).Once()
	f.generator.On("GenerateImage", mock.Anything, mock.Anything).Return([]byte("png"), nil)
	f.objects.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("https://cdn.example.com/scene.png", nil)

	created, err := f.service.CreateStoryboard(context.Background(), createParams(ownerID, 2))
	require.NoError(t, err)
	balanceBefore, err := f.creditStore.GetAccount(context.Background(), ownerID)
	require.NoError(t, err)

	regenerated, err := f.service.RegenerateScene(context.Background(), created.ID, 1, "keeper silhouetted against the beam")

	require.NoError(t, err)
	scene := regenerated.Scenes[1]
	assert.Equal(t, "keeper silhouetted against the beam", scene.ImagePrompt)
	assert.True(t, scene.HasImage())

	// Регенерация не тарифицируется
	balanceAfter, err := f.creditStore.GetAccount(context.Background(), ownerID)
	require.NoError(t, err)
	assert.Equal(t, balanceBefore.Balance, balanceAfter.Balance)
	assert.Equal(t, balanceBefore.FreeStoriesUsed, balanceAfter.FreeStoriesUsed)
}

func TestRegenerateScene_UnknownIndex(t *testing.T) {
	f := newFixture(t, 2)
	ownerID := uuid.New()
	f.creditStore.Seed(ownerID, 10, 2)

	f.aiClient.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(breakdownJSON(2), ai.UsageInfo{TotalTokens: 300}, nil).Once()
	f.generator.On("GenerateImage", mock.Anything, mock.Anything).Return([]byte("png"), nil)
	f.objects.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("https://cdn.example.com/scene.png", nil)

	created, err := f.service.CreateStoryboard(context.Background(), createParams(ownerID, 2))
	require.NoError(t, err)

	_, err = f.service.RegenerateScene(context.Background(), created.ID, 7, "")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRegenerateScene_GenerationFailureKeepsPromptWithoutImage(t *testing.T) {
	f := newFixture(t, 2)
	ownerID := uuid.New()
	f.creditStore.Seed(ownerID, 10, 2)

	f.aiClient.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(breakdownJSON(1), ai.UsageInfo{TotalTokens: 300}, nil).Once()
	f.generator.On("GenerateImage", mock.Anything, mock.Anything).Return([]byte("png"), nil).Once()
	f.objects.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("https://cdn.example.com/scene.png", nil).Once()

	created, err := f.service.CreateStoryboard(context.Background(), createParams(ownerID, 1))
	require.NoError(t, err)

	transient := &models.ProviderError{Err: errors.New("API returned status 500")}
	f.generator.On("GenerateImage", mock.Anything, mock.Anything).Return(nil, transient)

	_, err = f.service.RegenerateScene(context.Background(), created.ID, 0, "a completely new composition")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrImageGenerationFailed)

	// Новый промпт сохранен, старое изображение сброшено
	current, err := f.service.GetStoryboard(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "a completely new composition", current.Scenes[0].ImagePrompt)
	assert.False(t, current.Scenes[0].HasImage())
}

func TestDeleteStoryboard_RemovesRecordAndImages(t *testing.T) {
	f := newFixture(t, 2)
	ownerID := uuid.New()
	f.creditStore.Seed(ownerID, 10, 2)

	f.aiClient.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(breakdownJSON(1), ai.UsageInfo{TotalTokens: 300}, nil).Once()
	f.generator.On("GenerateImage", mock.Anything, mock.Anything).Return([]byte("png"), nil)
	f.objects.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("https://cdn.example.com/scene.png", nil)

	created, err := f.service.CreateStoryboard(context.Background(), createParams(ownerID, 1))
	require.NoError(t, err)

	f.objects.On("DeletePrefix", mock.Anything, fmt.Sprintf("storyboards/%s/", created.ID)).Return(nil).Once()

	require.NoError(t, f.service.DeleteStoryboard(context.Background(), created.ID))

	_, err = f.service.GetStoryboard(context.Background(), created.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	f.objects.AssertExpectations(t)
}
