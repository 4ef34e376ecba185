// Package tracing sets up OpenTelemetry trace export for pipeline runs.
package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	sferrors "github.com/vnykmshr/stageflow/pkg/common/errors"
	"github.com/vnykmshr/stageflow/pkg/common/validation"
)

// DefaultServiceName names the service in exported resources.
const DefaultServiceName = "stageflow"

// Provider owns a tracer provider installed as the global one.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// NewProvider exports spans over OTLP/gRPC to endpoint (host:port, no TLS)
// and installs the provider globally, so pipelines created afterwards
// trace into it.
func NewProvider(ctx context.Context, endpoint, service string) (*Provider, error) {
	if err := validation.ValidateNotEmpty("tracing", "endpoint", endpoint); err != nil {
		return nil, err
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, sferrors.NewOperationError("tracing", "NewExporter", err).WithContext(endpoint)
	}

	return newProvider(ctx, service, sdktrace.WithBatcher(exporter))
}

// NewProviderWithProcessor is NewProvider with a caller-supplied span
// processor instead of the OTLP exporter.
func NewProviderWithProcessor(ctx context.Context, service string, sp sdktrace.SpanProcessor) (*Provider, error) {
	return newProvider(ctx, service, sdktrace.WithSpanProcessor(sp))
}

func newProvider(ctx context.Context, service string, opt sdktrace.TracerProviderOption) (*Provider, error) {
	if service == "" {
		service = DefaultServiceName
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(service)),
	)
	if err != nil {
		return nil, sferrors.NewOperationError("tracing", "NewResource", err)
	}

	tp := sdktrace.NewTracerProvider(
		opt,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp}, nil
}

// TracerProvider returns the underlying SDK provider.
func (p *Provider) TracerProvider() *sdktrace.TracerProvider {
	return p.tp
}

// Shutdown flushes pending spans and stops export. It waits at most 5s
// beyond ctx.
func (p *Provider) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.tp.Shutdown(ctx); err != nil {
		return sferrors.NewOperationError("tracing", "Shutdown", err)
	}
	return nil
}
