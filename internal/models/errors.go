package models

import (
	"errors"
	"fmt"
)

// Application-wide standard errors
var (
	// Common Resource/DB Errors
	ErrNotFound = errors.New("resource not found")

	// Request Errors
	ErrInvalidInput = errors.New("invalid input data")

	// Pipeline Errors
	ErrBreakdownFailed       = errors.New("scene breakdown failed")
	ErrImageGenerationFailed = errors.New("image generation failed")
	ErrImageUploadFailed     = errors.New("image upload failed")
)

// InsufficientCreditsError возвращается EntitlementGate, когда баланс
// не покрывает стоимость и бесплатная квота исчерпана. Не ретраится.
type InsufficientCreditsError struct {
	Balance int
	Cost    int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: balance %d, cost %d", e.Balance, e.Cost)
}

// ProviderError - ошибка внешнего AI провайдера. RateLimited - единственное
// поле, которое конвейер проверяет особо: оно прерывает оставшийся fan-out
// вместо ретрая.
type ProviderError struct {
	RateLimited bool
	Err         error
}

func (e *ProviderError) Error() string {
	if e.RateLimited {
		return fmt.Sprintf("provider rate limited: %v", e.Err)
	}
	return fmt.Sprintf("provider error: %v", e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsRateLimited сообщает, является ли ошибка (в любом месте цепочки)
// сигналом исчерпания квоты провайдера.
func IsRateLimited(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.RateLimited
}
