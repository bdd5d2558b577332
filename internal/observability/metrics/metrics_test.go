package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("rpc", "task_upsert"),
		attribute.String("task_id", "456"),
		attribute.String("channel", "sms"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "rpc" || attrs[1].Key != "channel" {
		t.Fatalf("unexpected attributes retained: %v", attrs)
	}
}

func TestMetricsRecordersTolerateNoopProvider(t *testing.T) {
	m, err := New(Config{}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	ctx := context.Background()
	m.RecordRPC(ctx, "task_upsert", "ok")
	m.RecordTaskUpsert(ctx, "insert")
	m.RecordNotification(ctx, "sms", "task.assigned", errors.New("boom"))
	m.RecordAgendaCache(ctx, true)
	m.RecordRateLimitDenied(ctx, "login")

	var nilMetrics *Metrics
	nilMetrics.RecordRPC(ctx, "task_upsert", "ok")
}

func TestHTTPMetricsCountsRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m, err := newHTTPMetrics(registry, Config{ServiceName: "taskboard", Environment: "test"})
	if err != nil {
		t.Fatalf("new http metrics: %v", err)
	}

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/api/tasks/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/api/tasks/1", "/api/tasks/2", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/tasks/:id", "204")); got != 2 {
		t.Fatalf("expected 2 task requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Fatalf("expected 1 unmatched request, got %v", got)
	}
}
