package telemetry

import (
	"context"

	"github.com/smallbiznis/taskboard/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// CorrelationSpanProcessor tags every span with the request correlation id so
// traces can be joined with outbox events and logs.
type CorrelationSpanProcessor struct{}

func (p *CorrelationSpanProcessor) OnStart(ctx context.Context, s sdktrace.ReadWriteSpan) {
	if cid := correlation.ExtractCorrelationID(ctx); cid != "" {
		s.SetAttributes(attribute.String("correlation_id", cid))
	}
}

func (p *CorrelationSpanProcessor) OnEnd(sdktrace.ReadOnlySpan) {}

func (p *CorrelationSpanProcessor) Shutdown(context.Context) error { return nil }

func (p *CorrelationSpanProcessor) ForceFlush(context.Context) error { return nil }
