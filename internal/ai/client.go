package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Константы цен (за 1М токенов в USD)
const (
	pricePerMillionInputTokensUSD  = 0.1
	pricePerMillionOutputTokensUSD = 0.4
)

// ErrTextGenerationFailed - ошибка при генерации текста AI.
var ErrTextGenerationFailed = errors.New("text generation failed")

// GenerationParams - параметры генерации. Используем указатели,
// чтобы отличить 0/0.0 от отсутствия.
type GenerationParams struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
}

// UsageInfo содержит информацию об использовании токенов и стоимости.
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	EstimatedCostUSD float64
}

// Client интерфейс для взаимодействия с текстовым AI API.
type Client interface {
	// GenerateText генерирует текст на основе системного промпта и ввода
	// пользователя. Возвращает сгенерированный текст, информацию об
	// использовании и ошибку.
	GenerateText(ctx context.Context, ownerID string, systemPrompt string, userInput string, params GenerationParams) (string, UsageInfo, error)
}

// Config - настройки текстового провайдера.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// openAIClient реализует Client поверх OpenAI-совместимого API.
type openAIClient struct {
	client *openaigo.Client
	model  string
	logger *zap.Logger
}

// NewClient создает клиент текстового провайдера. BaseURL позволяет
// направить запросы на любой OpenAI-совместимый endpoint.
func NewClient(cfg Config, logger *zap.Logger) Client {
	openaiConfig := openaigo.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		openaiConfig.BaseURL = cfg.BaseURL
	}
	openaiConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	client := openaigo.NewClientWithConfig(openaiConfig)

	logger.Info("Text AI client created",
		zap.String("base_url", cfg.BaseURL),
		zap.String("model", cfg.Model),
		zap.Duration("timeout", cfg.Timeout))

	return &openAIClient{
		client: client,
		model:  cfg.Model,
		logger: logger.Named("TextAI"),
	}
}

func calculateCost(promptTokens, completionTokens int) float64 {
	inputCost := float64(promptTokens) * pricePerMillionInputTokensUSD / 1_000_000.0
	outputCost := float64(completionTokens) * pricePerMillionOutputTokensUSD / 1_000_000.0
	return inputCost + outputCost
}

// GenerateText генерирует текст на основе системного промпта и ввода пользователя.
func (c *openAIClient) GenerateText(ctx context.Context, ownerID string, systemPrompt string, userInput string, params GenerationParams) (string, UsageInfo, error) {
	usageInfo := UsageInfo{}
	log := c.logger.With(zap.String("owner_id", ownerID), zap.String("model", c.model))

	if strings.TrimSpace(systemPrompt) == "" {
		return "", usageInfo, fmt.Errorf("%w: system prompt is empty", ErrTextGenerationFailed)
	}

	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if userInput != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{
			Role:    openaigo.ChatMessageRoleUser,
			Content: userInput,
		})
	}

	startTime := time.Now()
	log.Debug("Sending request to text AI",
		zap.Int("system_prompt_bytes", len(systemPrompt)),
		zap.Int("user_input_bytes", len(userInput)))

	resp, err := c.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: float32Val(params.Temperature),
		MaxTokens:   intVal(params.MaxTokens),
		TopP:        float32Val(params.TopP),
	})

	duration := time.Since(startTime)

	if err != nil {
		log.Error("Text AI request failed", zap.Duration("duration", duration), zap.Error(err))
		return "", usageInfo, fmt.Errorf("%w: %v", ErrTextGenerationFailed, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		log.Error("Text AI returned empty response", zap.Duration("duration", duration))
		return "", usageInfo, fmt.Errorf("%w: empty response", ErrTextGenerationFailed)
	}

	generatedText := resp.Choices[0].Message.Content
	log.Info("Text AI response received",
		zap.Duration("duration", duration),
		zap.Int("response_chars", len(generatedText)))

	if resp.Usage.TotalTokens > 0 {
		usageInfo.PromptTokens = resp.Usage.PromptTokens
		usageInfo.CompletionTokens = resp.Usage.CompletionTokens
		usageInfo.TotalTokens = resp.Usage.TotalTokens
	} else {
		// Некоторые совместимые endpoints не возвращают usage - оцениваем сами
		usageInfo = c.estimateUsage(systemPrompt, userInput, generatedText)
		log.Debug("Usage block missing in response, using estimated token counts",
			zap.Int("total_tokens_estimated", usageInfo.TotalTokens))
	}
	usageInfo.EstimatedCostUSD = calculateCost(usageInfo.PromptTokens, usageInfo.CompletionTokens)

	return generatedText, usageInfo, nil
}

// estimateUsage приблизительно считает токены через tiktoken, когда API
// не вернул usage. Менее точно, чем данные API.
func (c *openAIClient) estimateUsage(systemPrompt, userInput, response string) UsageInfo {
	tke, err := tiktoken.EncodingForModel(c.model)
	if err != nil {
		// Не удалось получить токенизатор для модели - возвращаем нули
		return UsageInfo{}
	}
	promptTokens := len(tke.Encode(systemPrompt, nil, nil)) + len(tke.Encode(userInput, nil, nil))
	completionTokens := len(tke.Encode(response, nil, nil))
	return UsageInfo{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}

func float32Val(f64 *float64) float32 {
	if f64 == nil {
		return 1.0
	}
	return float32(*f64)
}

func intVal(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
