package inference

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"medmap-backend/application/ports"
	pkgerrors "medmap-backend/pkg/errors"
)

// SummarizerBreakerConfig holds circuit breaker tuning for the summarizer
type SummarizerBreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultSummarizerBreakerConfig returns the default breaker tuning
func DefaultSummarizerBreakerConfig() SummarizerBreakerConfig {
	return SummarizerBreakerConfig{
		Name:             "summarizer",
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// ResilientSummarizer wraps a summarizer with a circuit breaker so a dying
// model backend sheds load fast instead of stalling every generation
type ResilientSummarizer struct {
	inner   ports.Summarizer
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewResilientSummarizer wraps the given summarizer with a circuit breaker
func NewResilientSummarizer(inner ports.Summarizer, config SummarizerBreakerConfig, logger *zap.Logger) *ResilientSummarizer {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Summarizer circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &ResilientSummarizer{
		inner:   inner,
		breaker: breaker,
		logger:  logger,
	}
}

// Summarize delegates through the circuit breaker
func (s *ResilientSummarizer) Summarize(ctx context.Context, text string, maxLength, minLength int) (string, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.inner.Summarize(ctx, text, maxLength, minLength)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			s.logger.Warn("Summarizer circuit breaker rejected request",
				zap.String("state", s.breaker.State().String()),
				zap.Error(err),
			)
			return "", pkgerrors.ErrSummarizerUnavailable.Clone().WithCause(err)
		}
		return "", err
	}

	summary, ok := result.(string)
	if !ok {
		return "", pkgerrors.NewInferenceError("summarize", errors.New("unexpected breaker result type"))
	}
	return summary, nil
}
