package breakdown_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"storyboard-server/internal/ai"
	"storyboard-server/internal/breakdown"
	"storyboard-server/internal/mocks"
	"storyboard-server/internal/models"
)

const testRawText = "A robot learns to paint."

func newStage(t *testing.T) (*breakdown.Stage, *mocks.MockAIClient) {
	mockAI := mocks.NewMockAIClient(t)
	stage := breakdown.NewStage(mockAI, 30*time.Second, zap.NewNop())
	return stage, mockAI
}

// scenesJSON строит корректный JSON ответа провайдера с n сценами.
func scenesJSON(n int) string {
	scenes := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			scenes += ","
		}
		scenes += fmt.Sprintf(`{"section_title":"Part %d","text":"The robot paints, attempt %d.","image_prompt":"robot at an easel, take %d"}`, i+1, i+1, i+1)
	}
	return fmt.Sprintf(`{"title":"The Painter","character_persona":"A small round robot with blue eyes.","scenes":[%s]}`, scenes)
}

func TestBreakdown_ExactCount(t *testing.T) {
	stage, mockAI := newStage(t)
	mockAI.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, testRawText, mock.Anything).
		Return(scenesJSON(3), ai.UsageInfo{TotalTokens: 100}, nil).Once()

	result, err := stage.Breakdown(context.Background(), uuid.New(), testRawText, "realistic", 3)

	assert.NoError(t, err)
	assert.False(t, result.Fallback)
	assert.Equal(t, "The Painter", result.Title)
	assert.Equal(t, "A small round robot with blue eyes.", result.CharacterPersona)
	assert.Len(t, result.Scenes, 3)
	for i, sc := range result.Scenes {
		assert.Equal(t, i, sc.Index)
		assert.NotEmpty(t, sc.ImagePrompt)
	}
	mockAI.AssertExpectations(t)
}

func TestBreakdown_ShortResponsePadded(t *testing.T) {
	cases := []struct {
		name     string
		returned int
	}{
		{"zero scenes", 0},
		{"one short", 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stage, mockAI := newStage(t)
			mockAI.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return(scenesJSON(tc.returned), ai.UsageInfo{}, nil).Once()

			result, err := stage.Breakdown(context.Background(), uuid.New(), testRawText, "sketch", 5)

			assert.NoError(t, err)
			assert.Len(t, result.Scenes, 5)
			// Дополненные сцены имеют синтетические заголовки и валидные индексы
			for i := tc.returned; i < 5; i++ {
				assert.Equal(t, i, result.Scenes[i].Index)
				assert.Equal(t, fmt.Sprintf("Scene %d", i+1), result.Scenes[i].SectionTitle)
				assert.Contains(t, result.Scenes[i].Text, testRawText)
			}
		})
	}
}

func TestBreakdown_ExtraScenesTrimmed(t *testing.T) {
	stage, mockAI := newStage(t)
	mockAI.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(scenesJSON(6), ai.UsageInfo{}, nil).Once()

	result, err := stage.Breakdown(context.Background(), uuid.New(), testRawText, "comic", 3)

	assert.NoError(t, err)
	assert.Len(t, result.Scenes, 3)
}

func TestBreakdown_JSONWrappedInProse(t *testing.T) {
	stage, mockAI := newStage(t)
	wrapped := "Sure! Here is your storyboard:\n```json\n" + scenesJSON(2) + "\n```\nEnjoy!"
	mockAI.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(wrapped, ai.UsageInfo{}, nil).Once()

	result, err := stage.Breakdown(context.Background(), uuid.New(), testRawText, "realistic", 2)

	assert.NoError(t, err)
	assert.False(t, result.Fallback)
	assert.Equal(t, "The Painter", result.Title)
	assert.Len(t, result.Scenes, 2)
}

func TestBreakdown_TruncatedJSONRepaired(t *testing.T) {
	stage, mockAI := newStage(t)
	// Ответ оборван: не хватает закрывающих скобок
	truncated := `{"title":"Cut Short","character_persona":"A tall knight.","scenes":[{"section_title":"One","text":"The knight rides.","image_prompt":"knight on horseback"`
	mockAI.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(truncated, ai.UsageInfo{}, nil).Once()

	result, err := stage.Breakdown(context.Background(), uuid.New(), testRawText, "realistic", 2)

	assert.NoError(t, err)
	assert.False(t, result.Fallback)
	assert.Equal(t, "Cut Short", result.Title)
	assert.Len(t, result.Scenes, 2)
	assert.Equal(t, "knight on horseback", result.Scenes[0].ImagePrompt)
}

func TestBreakdown_UnparseableFallsBackToPlaceholder(t *testing.T) {
	stage, mockAI := newStage(t)
	mockAI.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("I'm sorry, I cannot help with that.", ai.UsageInfo{}, nil).Once()

	result, err := stage.Breakdown(context.Background(), uuid.New(), testRawText, "realistic", 3)

	// Парсинг не удался, но наверх ошибка не уходит
	assert.NoError(t, err)
	assert.True(t, result.Fallback)
	assert.Len(t, result.Scenes, 3)
	assert.Equal(t, "Storyboard", result.Title)
	assert.Contains(t, result.Scenes[0].Text, testRawText)
}

func TestBreakdown_ProviderErrorPropagates(t *testing.T) {
	stage, mockAI := newStage(t)
	mockAI.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", ai.UsageInfo{}, errors.New("connection refused")).Once()

	result, err := stage.Breakdown(context.Background(), uuid.New(), testRawText, "realistic", 3)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrBreakdownFailed)
	// Стадия не ретраит провайдера: ровно один вызов
	mockAI.AssertNumberOfCalls(t, "GenerateText", 1)
}
