package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes board-level instruments.
type Metrics struct {
	rpcCalls          metric.Int64Counter
	tasksUpserted     metric.Int64Counter
	notificationsSent metric.Int64Counter
	notificationFails metric.Int64Counter
	agendaCache       metric.Int64Counter
	rateLimitDenied   metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return provider.Shutdown(ctx)
			},
		})
	}
	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "taskboard"
	}
	meter := provider.Meter(name)

	var m Metrics
	var err error
	if m.rpcCalls, err = meter.Int64Counter("taskboard_rpc_calls_total"); err != nil {
		return nil, err
	}
	if m.tasksUpserted, err = meter.Int64Counter("taskboard_tasks_upserted_total"); err != nil {
		return nil, err
	}
	if m.notificationsSent, err = meter.Int64Counter("taskboard_notifications_sent_total"); err != nil {
		return nil, err
	}
	if m.notificationFails, err = meter.Int64Counter("taskboard_notifications_failed_total"); err != nil {
		return nil, err
	}
	if m.agendaCache, err = meter.Int64Counter("taskboard_agenda_cache_lookups_total"); err != nil {
		return nil, err
	}
	if m.rateLimitDenied, err = meter.Int64Counter("taskboard_rate_limit_denied_total"); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Metrics) RecordRPC(ctx context.Context, name, outcome string) {
	if m == nil {
		return
	}
	m.rpcCalls.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("rpc", strings.TrimSpace(name)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)...))
}

// RecordTaskUpsert counts task writes; op is "insert" or "update".
func (m *Metrics) RecordTaskUpsert(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.tasksUpserted.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("operation", op),
	)...))
}

func (m *Metrics) RecordNotification(ctx context.Context, channel, eventType string, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(FilterAttributes(
		attribute.String("channel", channel),
		attribute.String("event_type", eventType),
	)...)
	if err != nil {
		m.notificationFails.Add(ctx, 1, attrs)
		return
	}
	m.notificationsSent.Add(ctx, 1, attrs)
}

func (m *Metrics) RecordAgendaCache(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.agendaCache.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
	)...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"rpc":         {},
	"outcome":     {},
	"operation":   {},
	"channel":     {},
	"event_type":  {},
	"endpoint":    {},
	"status_code": {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
