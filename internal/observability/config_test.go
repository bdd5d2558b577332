package observability

import (
	"testing"

	"github.com/smallbiznis/taskboard/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigReadsEnvironment(t *testing.T) {
	t.Setenv("LOG_LEVEL", " DEBUG ")
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "HTTP")

	cfg := LoadConfig(config.Config{AppName: "board", Environment: "production", OTLPEndpoint: "otel:4317"})

	assert.Equal(t, "board", cfg.ServiceName)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.OtelEnabled)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.Equal(t, "otel:4317", cfg.OtelExporterEndpoint)
	assert.True(t, cfg.Debug())
}

func TestDebugFollowsEnvironment(t *testing.T) {
	assert.True(t, Config{LogLevel: "info", Environment: "local"}.Debug())
	assert.False(t, Config{LogLevel: "info", Environment: "production"}.Debug())
}
