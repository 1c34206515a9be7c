package sagas

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SagaStep represents a single step in a saga
type SagaStep struct {
	Name       string
	Execute    func(ctx context.Context, data interface{}) (interface{}, error)
	Compensate func(ctx context.Context, data interface{}) error
	MaxRetries int
	RetryDelay time.Duration
}

// Saga runs a series of steps in order. When a step fails, the compensations
// of every completed step run in reverse before the error is returned.
type Saga struct {
	id            string
	name          string
	steps         []SagaStep
	compensations []func(ctx context.Context) error
	logger        *zap.Logger
	fields        []zap.Field
}

// NewSaga creates a new saga instance
func NewSaga(name string, logger *zap.Logger) *Saga {
	return &Saga{
		id:     fmt.Sprintf("saga_%s", uuid.New().String()),
		name:   name,
		steps:  make([]SagaStep, 0),
		logger: logger,
	}
}

// AddStep adds a step to the saga
func (s *Saga) AddStep(step SagaStep) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// AddField attaches a context field carried on every log line of this run
func (s *Saga) AddField(key string, value interface{}) *Saga {
	s.fields = append(s.fields, zap.Any(key, value))
	return s
}

func (s *Saga) log() *zap.Logger {
	return s.logger.With(append([]zap.Field{
		zap.String("saga_id", s.id),
		zap.String("saga_name", s.name),
	}, s.fields...)...)
}

// Execute runs the saga
func (s *Saga) Execute(ctx context.Context, initialData interface{}) (interface{}, error) {
	logger := s.log()
	logger.Info("Starting saga execution", zap.Int("total_steps", len(s.steps)))

	var data interface{} = initialData
	completedSteps := 0

	for i, step := range s.steps {
		logger.Debug("Executing saga step",
			zap.String("step_name", step.Name),
			zap.Int("step_number", i+1),
		)

		result, err := s.executeStepWithRetry(ctx, logger, step, data)
		if err != nil {
			logger.Error("Saga step failed",
				zap.String("step_name", step.Name),
				zap.Error(err),
			)

			s.compensate(ctx, logger, completedSteps)
			return nil, fmt.Errorf("saga %s failed at step %s: %w", s.name, step.Name, err)
		}

		data = result
		completedSteps = i + 1

		// Compensations stay index-aligned with steps, nil when a step has none
		if step.Compensate != nil {
			stepData := data
			s.compensations = append(s.compensations, func(ctx context.Context) error {
				return step.Compensate(ctx, stepData)
			})
		} else {
			s.compensations = append(s.compensations, nil)
		}

		logger.Debug("Saga step completed successfully",
			zap.String("step_name", step.Name),
		)
	}

	logger.Info("Saga completed successfully",
		zap.Int("completed_steps", completedSteps),
	)

	return data, nil
}

// executeStepWithRetry executes a step with retry logic
func (s *Saga) executeStepWithRetry(ctx context.Context, logger *zap.Logger, step SagaStep, data interface{}) (interface{}, error) {
	maxRetries := step.MaxRetries
	if maxRetries == 0 {
		maxRetries = 1 // At least try once
	}

	retryDelay := step.RetryDelay
	if retryDelay == 0 {
		retryDelay = time.Second
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			logger.Debug("Retrying saga step",
				zap.String("step_name", step.Name),
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", maxRetries),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}

		result, err := step.Execute(ctx, data)
		if err == nil {
			return result, nil
		}

		lastErr = err
		logger.Warn("Saga step execution failed",
			zap.String("step_name", step.Name),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	return nil, fmt.Errorf("step %s failed after %d attempts: %w", step.Name, maxRetries, lastErr)
}

// compensate runs compensation logic in reverse order. A failing compensation
// is logged and the remaining ones still run.
func (s *Saga) compensate(ctx context.Context, logger *zap.Logger, steps int) {
	logger.Info("Starting saga compensation", zap.Int("steps_to_compensate", steps))

	for i := steps - 1; i >= 0; i-- {
		if i < len(s.compensations) && s.compensations[i] != nil {
			logger.Debug("Executing compensation", zap.Int("step_number", i+1))

			if err := s.compensations[i](ctx); err != nil {
				logger.Error("Compensation failed",
					zap.Int("step_number", i+1),
					zap.Error(err),
				)
			}
		}
	}
}

// SagaBuilder provides a fluent interface for building sagas
type SagaBuilder struct {
	saga *Saga
}

// NewSagaBuilder creates a new saga builder
func NewSagaBuilder(name string, logger *zap.Logger) *SagaBuilder {
	return &SagaBuilder{
		saga: NewSaga(name, logger),
	}
}

// WithStep adds a step to the saga
func (b *SagaBuilder) WithStep(name string, execute func(context.Context, interface{}) (interface{}, error)) *SagaBuilder {
	b.saga.AddStep(SagaStep{
		Name:    name,
		Execute: execute,
	})
	return b
}

// WithCompensableStep adds a step with compensation logic
func (b *SagaBuilder) WithCompensableStep(
	name string,
	execute func(context.Context, interface{}) (interface{}, error),
	compensate func(context.Context, interface{}) error,
) *SagaBuilder {
	b.saga.AddStep(SagaStep{
		Name:       name,
		Execute:    execute,
		Compensate: compensate,
	})
	return b
}

// WithRetryableStep adds a step with retry logic
func (b *SagaBuilder) WithRetryableStep(
	name string,
	execute func(context.Context, interface{}) (interface{}, error),
	maxRetries int,
	retryDelay time.Duration,
) *SagaBuilder {
	b.saga.AddStep(SagaStep{
		Name:       name,
		Execute:    execute,
		MaxRetries: maxRetries,
		RetryDelay: retryDelay,
	})
	return b
}

// WithField attaches a context field to the saga's log lines
func (b *SagaBuilder) WithField(key string, value interface{}) *SagaBuilder {
	b.saga.AddField(key, value)
	return b
}

// Build returns the constructed saga
func (b *SagaBuilder) Build() *Saga {
	return b.saga
}
