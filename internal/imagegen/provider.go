package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"storyboard-server/internal/models"
)

// GenerateRequest - запрос к серверу генерации изображений.
type GenerateRequest struct {
	Prompt          string   `json:"prompt"`
	NegativePrompt  string   `json:"negative_prompt,omitempty"`
	ReferenceImages []string `json:"reference_images,omitempty"` // URL референсов персонажа для мультимодальной согласованности
	Ratio           string   `json:"ratio,omitempty"`
}

// Generator определяет интерфейс провайдера генерации изображений.
type Generator interface {
	// GenerateImage генерирует изображение по промпту и возвращает его байты.
	// Ошибка исчерпания квоты провайдера различима через models.IsRateLimited.
	GenerateImage(ctx context.Context, req GenerateRequest) ([]byte, error)
}

// ProviderConfig - настройки HTTP провайдера изображений.
type ProviderConfig struct {
	BaseURL string
	Timeout time.Duration
	Ratio   string // Соотношение сторон по умолчанию, например "16:9"
}

// httpGenerator реализует Generator поверх HTTP API сервера генерации.
type httpGenerator struct {
	config ProviderConfig
	client *http.Client
	logger *zap.Logger
}

// NewHTTPGenerator создает HTTP клиент провайдера изображений.
func NewHTTPGenerator(cfg ProviderConfig, logger *zap.Logger) Generator {
	return &httpGenerator{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.Named("ImageProvider"),
	}
}

// GenerateImage вызывает API генерации изображения.
func (g *httpGenerator) GenerateImage(ctx context.Context, req GenerateRequest) ([]byte, error) {
	log := g.logger.With(zap.String("api_url", g.config.BaseURL))

	if req.Ratio == "" {
		req.Ratio = g.config.Ratio
	}

	reqBodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	endpointURL := g.config.BaseURL + "/generate"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(reqBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "image/*")

	log.Debug("Sending request to image API", zap.Int("prompt_chars", len(req.Prompt)))
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, &models.ProviderError{Err: fmt.Errorf("http request failed: %w", err)}
	}
	defer resp.Body.Close()

	bodyBytes, readErr := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		providerErr := &models.ProviderError{
			RateLimited: isRateLimitResponse(resp.StatusCode, bodyBytes),
			Err:         fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(bodyBytes)),
		}
		if providerErr.RateLimited {
			log.Warn("Image API reported quota exhaustion", zap.Int("status_code", resp.StatusCode))
		} else {
			log.Error("Image API returned non-OK status",
				zap.Int("status_code", resp.StatusCode),
				zap.ByteString("response_body", bodyBytes))
		}
		return nil, providerErr
	}

	if readErr != nil {
		return nil, &models.ProviderError{Err: fmt.Errorf("failed to read response body: %w", readErr)}
	}
	if len(bodyBytes) == 0 {
		return nil, &models.ProviderError{Err: fmt.Errorf("API returned empty image data")}
	}

	log.Debug("Image API call successful", zap.Int("size_bytes", len(bodyBytes)))
	return bodyBytes, nil
}

// isRateLimitResponse распознает явное исчерпание квоты провайдера.
func isRateLimitResponse(statusCode int, body []byte) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	lower := strings.ToLower(string(body))
	return strings.Contains(lower, "quota exceeded") || strings.Contains(lower, "rate limit")
}
