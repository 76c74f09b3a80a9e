package analysis

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"resumesense/internal/config"
	"resumesense/internal/errors"
	"resumesense/internal/types"

	"github.com/sony/gobreaker/v2"
)

// UnavailableMessage is shown while the breaker refuses calls.
const UnavailableMessage = "Analysis service temporarily unavailable"

// CircuitBreaker guards calls to the analysis service. A nil *CircuitBreaker
// passes every call straight through.
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker[*types.AnalysisResult]
}

// NewCircuitBreaker returns nil when the breaker is disabled in config.
func NewCircuitBreaker(name string, cfg config.CircuitBreakerConfig, logger *errors.Logger) *CircuitBreaker {
	if !cfg.Enabled {
		return nil
	}
	if logger == nil {
		logger = errors.NewNopLogger()
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests &&
				failureRatio >= cfg.FailureThreshold
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
				"max_requests", cfg.MaxRequests,
				"failure_threshold", cfg.FailureThreshold)
		},
	}

	return &CircuitBreaker{
		cb: gobreaker.NewCircuitBreaker[*types.AnalysisResult](settings),
	}
}

// countsAsSuccess keeps caller mistakes out of the failure ratio: a 4xx from
// the service or a cancelled submission says nothing about service health.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	if stderrors.Is(err, context.Canceled) {
		return true
	}
	status := errors.StatusOf(err)
	return status >= http.StatusBadRequest && status < http.StatusInternalServerError
}

// Execute runs fn under breaker protection.
func (cb *CircuitBreaker) Execute(fn func() (*types.AnalysisResult, error)) (*types.AnalysisResult, error) {
	if cb == nil || cb.cb == nil {
		return fn()
	}
	result, err := cb.cb.Execute(fn)
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.NewUpstreamError(errors.ErrCodeUpstreamOpen, UnavailableMessage, http.StatusServiceUnavailable).
			WithContext("breaker", cb.cb.Name())
	}
	return result, err
}

// GetStats returns circuit breaker statistics
func (cb *CircuitBreaker) GetStats() map[string]any {
	if cb == nil || cb.cb == nil {
		return map[string]any{
			"enabled": false,
		}
	}

	counts := cb.cb.Counts()
	return map[string]any{
		"name":    cb.cb.Name(),
		"state":   cb.cb.State().String(),
		"enabled": true,
		"counts": map[string]uint32{
			"requests":             counts.Requests,
			"totalSuccesses":       counts.TotalSuccesses,
			"totalFailures":        counts.TotalFailures,
			"consecutiveSuccesses": counts.ConsecutiveSuccesses,
			"consecutiveFailures":  counts.ConsecutiveFailures,
		},
	}
}

// IsHealthy returns true if the circuit breaker is in closed state
func (cb *CircuitBreaker) IsHealthy() bool {
	if cb == nil || cb.cb == nil {
		return true
	}
	return cb.cb.State() == gobreaker.StateClosed
}

func (cb *CircuitBreaker) String() string {
	if cb == nil || cb.cb == nil {
		return "breaker(disabled)"
	}
	return fmt.Sprintf("breaker(%s, %s)", cb.cb.Name(), cb.cb.State())
}
