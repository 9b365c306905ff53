package ai

import (
	"context"
	stderrors "errors"

	"github.com/sony/gobreaker/v2"
	"google.golang.org/genai"

	"resumematch/internal/config"
	"resumematch/internal/errors"
)

// Breaker wraps calls to the analysis service with a circuit breaker. A nil
// Breaker runs calls directly.
type Breaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// AICircuitBreaker guards generateContent calls.
type AICircuitBreaker = Breaker[*genai.GenerateContentResponse]

// ModelCircuitBreaker guards model availability checks.
type ModelCircuitBreaker = Breaker[*genai.Model]

// NewAICircuitBreaker trips when the configured failure ratio is reached.
func NewAICircuitBreaker(cfg config.CircuitBreakerConfig, logger *errors.Logger) *AICircuitBreaker {
	return newBreaker[*genai.GenerateContentResponse]("AI-Analyze", cfg, logger,
		func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureThreshold
		})
}

// NewModelCircuitBreaker is more lenient: model info only feeds health checks.
func NewModelCircuitBreaker(cfg config.CircuitBreakerConfig, logger *errors.Logger) *ModelCircuitBreaker {
	return newBreaker[*genai.Model]("AI-Model", cfg, logger,
		func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.8
		})
}

func newBreaker[T any](name string, cfg config.CircuitBreakerConfig, logger *errors.Logger, readyToTrip func(gobreaker.Counts) bool) *Breaker[T] {
	if !cfg.Enabled {
		return nil
	}

	settings := gobreaker.Settings{
		Name:         name,
		MaxRequests:  cfg.MaxRequests,
		Interval:     cfg.Interval,
		Timeout:      cfg.Timeout,
		ReadyToTrip:  readyToTrip,
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger != nil {
				logger.Info("Circuit breaker state changed",
					"name", name,
					"from", from.String(),
					"to", to.String(),
					"failure_threshold", cfg.FailureThreshold)
			}
		},
	}

	return &Breaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// countsAsSuccess keeps caller mistakes out of the failure ratio. Rejected
// credentials, bad requests, missing keys and cancellations say nothing
// about the health of the service.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	if stderrors.Is(err, context.Canceled) {
		return true
	}
	appErr, ok := errors.AsAppError(err)
	if !ok {
		return false
	}
	switch appErr.Type {
	case errors.ErrorTypeConfig, errors.ErrorTypeValidation:
		return true
	case errors.ErrorTypeAPI:
		return appErr.Code == errors.ErrCodeAPIStatus
	}
	return false
}

// Execute runs fn under the breaker. An open breaker yields an ApiError.
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	if b == nil || b.cb == nil {
		return fn()
	}

	result, err := b.cb.Execute(fn)
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return result, errors.NewAPIError(errors.ErrCodeCircuitOpen, errors.MsgCircuitOpen, 0, err).
			WithContext("breaker", b.cb.Name())
	}
	return result, err
}

// GetStats returns circuit breaker statistics
func (b *Breaker[T]) GetStats() map[string]any {
	if b == nil || b.cb == nil {
		return map[string]any{
			"enabled": false,
		}
	}

	return map[string]any{
		"name":    b.cb.Name(),
		"state":   b.cb.State().String(),
		"counts":  b.cb.Counts(),
		"enabled": true,
	}
}

// IsHealthy returns true if the breaker is closed or disabled.
func (b *Breaker[T]) IsHealthy() bool {
	if b == nil || b.cb == nil {
		return true
	}
	return b.cb.State() == gobreaker.StateClosed
}
