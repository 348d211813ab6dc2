// Package retry предоставляет ограниченный ретрай с фиксированной задержкой.
// Один комбинатор вместо дублирования циклов ретрая по всем вызовам провайдеров.
package retry

import (
	"context"
	"time"
)

// Config параметризует поведение ретрая.
type Config struct {
	MaxAttempts int                   // Всего попыток, включая первую
	Delay       time.Duration         // Фиксированная задержка между попытками
	Retryable   func(err error) bool  // nil означает "ретраить любую ошибку"
}

// Do выполняет op до Config.MaxAttempts раз. Возвращает nil при первом
// успехе. Неретраябельная ошибка (по предикату Retryable) возвращается
// немедленно, без ожидания. Отмена контекста прерывает ожидание между
// попытками и возвращает ctx.Err().
func Do(ctx context.Context, cfg Config, op func(ctx context.Context) error) error {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if cfg.Retryable != nil && !cfg.Retryable(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}

		// Ожидание перед следующей попыткой с учетом отмены контекста
		if cfg.Delay > 0 {
			timer := time.NewTimer(cfg.Delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
	}
	return lastErr
}
