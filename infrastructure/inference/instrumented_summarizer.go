package inference

import (
	"context"
	"time"

	"medmap-backend/application/ports"
)

// Metrics records summarization backend calls; *observability.Collector
// implements it
type Metrics interface {
	ObserveInference(backend string, duration time.Duration, err error)
}

// InstrumentedSummarizer records duration and outcome for every backend call.
// It sits inside the circuit breaker so rejected requests do not skew the
// duration histogram.
type InstrumentedSummarizer struct {
	inner   ports.Summarizer
	backend string
	metrics Metrics
}

// NewInstrumentedSummarizer wraps the given summarizer with call metrics
func NewInstrumentedSummarizer(inner ports.Summarizer, backend string, metrics Metrics) *InstrumentedSummarizer {
	return &InstrumentedSummarizer{
		inner:   inner,
		backend: backend,
		metrics: metrics,
	}
}

// Summarize delegates to the wrapped summarizer and records the call
func (s *InstrumentedSummarizer) Summarize(ctx context.Context, text string, maxLength, minLength int) (string, error) {
	start := time.Now()
	summary, err := s.inner.Summarize(ctx, text, maxLength, minLength)
	s.metrics.ObserveInference(s.backend, time.Since(start), err)
	return summary, err
}
