// Package monitoring 提供日志、指标与分布式追踪的初始化
package monitoring

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/turtacn/mfagate/internal/config"
	"github.com/turtacn/mfagate/pkg/logger"
)

// TracingManager owns the process-wide tracer provider.
// Spans of the verification engine and the HTTP layer are exported to Jaeger when tracing is enabled.
type TracingManager struct {
	provider *sdktrace.TracerProvider
	logger   logger.Logger
}

// NewTracingManager installs a Jaeger-backed tracer provider and the W3C propagators.
// With tracing disabled the global no-op provider stays in place.
func NewTracingManager(cfg *config.Config, log logger.Logger) (*TracingManager, error) {
	ctx := context.Background()
	tm := &TracingManager{logger: log.WithComponent("tracing")}
	if !cfg.Tracing.Enabled {
		tm.logger.Info(ctx, "Tracing is disabled")
		return tm, nil
	}

	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.Tracing.JaegerEndpoint)))
	if err != nil {
		return nil, fmt.Errorf("create jaeger exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(cfg.Tracing.ServiceName),
		semconv.DeploymentEnvironmentKey.String(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("create trace resource: %w", err)
	}

	// 父 span 已采样时始终采样，否则按比例采样
	tm.provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Tracing.SampleRate))),
	)
	otel.SetTracerProvider(tm.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	tm.logger.Info(ctx, "Tracing enabled",
		logger.String("endpoint", cfg.Tracing.JaegerEndpoint),
		logger.Any("sample_rate", cfg.Tracing.SampleRate))
	return tm, nil
}

// Shutdown flushes pending spans. It is a no-op when tracing is disabled.
func (tm *TracingManager) Shutdown(ctx context.Context) error {
	if tm.provider == nil {
		return nil
	}
	if err := tm.provider.Shutdown(ctx); err != nil {
		tm.logger.Error(ctx, "Failed to flush traces", err)
		return err
	}
	return nil
}

//Personal.AI order the ending
