// Package hivetrace wires up the OpenTelemetry tracer provider the agentic
// loop's per-turn spans (internal/hive/worker) report into: an OTLP/gRPC
// exporter behind a batch span processor, disabled cleanly when no
// collector endpoint is configured.
package hivetrace

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config controls whether and where spans are exported.
type Config struct {
	// Endpoint is the OTLP/gRPC collector address (e.g. "localhost:4317").
	// Tracing is disabled when empty.
	Endpoint  string
	Insecure  bool
	ServiceID string // e.g. a run id, attached as a resource attribute
}

// Setup installs a global TracerProvider per cfg and returns a shutdown
// func. When cfg.Endpoint is empty it installs nothing, leaving the current
// global provider in place, and the shutdown func is a no-op.
func Setup(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	client := otlptracegrpc.NewClient(opts...)
	exporter, err := otlptrace.New(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", "hive"),
		attribute.String("hive.run_id", cfg.ServiceID),
	)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}
