package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"paper-agent-chat/backend/pkg/logger"
)

// SetupTracing installs a tracer provider with a stdout exporter. Swap the
// exporter for OTLP when a collector is available. The returned function
// flushes and shuts the provider down.
func SetupTracing(serviceName string) func() {
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		logger.GetGlobal().Error("failed to initialize trace exporter", "error", err.Error())
		return func() {}
	}
	res, _ := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	provider := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(ctx)
	}
}

// SetupPrometheusMetrics registers the otel prometheus bridge and serves
// /metrics on its own listener, separate from the API port.
func SetupPrometheusMetrics(addr string) *metric.MeterProvider {
	exp, err := prometheus.New()
	if err != nil {
		logger.GetGlobal().Error("failed to initialize prometheus exporter", "error", err.Error())
		return nil
	}
	mp := metric.NewMeterProvider(metric.WithReader(exp))

	if addr == "" {
		addr = ":9090"
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.GetGlobal().Error("metrics listener failed", "addr", addr, "error", err.Error())
		}
	}()
	return mp
}
