package observability

import (
	"go.opentelemetry.io/otel"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/connorodea/aidentalnotes/internal/config"
	"github.com/connorodea/aidentalnotes/internal/observability/logger"
	"github.com/connorodea/aidentalnotes/internal/observability/metrics"
	"github.com/connorodea/aidentalnotes/internal/observability/tracing"
)

var Module = fx.Module("observability",
	fx.Provide(newLogger),
	fx.Provide(newHTTPMetrics),
	fx.Provide(newGateMetrics),
	fx.Invoke(newTracerProvider),
)

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logger.New(cfg.LogLevel, cfg.Environment)
}

func newTracerProvider(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) error {
	_, err := tracing.NewProvider(lc, tracing.Config{
		Enabled:          cfg.TracingEnabled,
		ServiceName:      cfg.ServiceName,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.TracingExporterEndpoint,
		ExporterProtocol: cfg.TracingExporterProtocol,
		SamplingRatio:    cfg.TracingSamplingRatio,
	}, log)
	return err
}

func newHTTPMetrics(cfg config.Config) (*metrics.HTTPMetrics, error) {
	return metrics.NewHTTPMetrics(metrics.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	}, otel.GetMeterProvider())
}

func newGateMetrics(cfg config.Config) *metrics.GateMetrics {
	return metrics.GateWithConfig(metrics.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	})
}
