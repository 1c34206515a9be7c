package observability

import (
	"context"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// Tracer wraps X-Ray subsegment plumbing for the generation pipeline. On
// Lambda the runtime opens the parent segment; outside one (local runs,
// tests) BeginSubsegment yields no segment and stages run untraced.
type Tracer struct {
	serviceName string
}

// NewTracer creates a new tracer instance
func NewTracer(serviceName string) *Tracer {
	return &Tracer{
		serviceName: serviceName,
	}
}

// TraceStage runs one stage of the generation pipeline inside a subsegment,
// annotated so traces can be filtered per stage. Stage errors are recorded
// on the subsegment and returned unchanged.
func (t *Tracer) TraceStage(ctx context.Context, stage string, fn func(context.Context) error) error {
	ctx, seg := xray.BeginSubsegment(ctx, "generation."+stage)
	if seg == nil {
		return fn(ctx)
	}

	seg.AddAnnotation("service", t.serviceName)
	seg.AddAnnotation("stage", stage)

	err := fn(ctx)
	seg.Close(err)
	return err
}
