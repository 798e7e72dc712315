/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package tracing configures the OpenTelemetry tracer provider of the operator.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	ServiceName = "b2-operator"
	TracerName  = "github.com/WirelessCar/b2-operator"

	shutdownTimeout = 5 * time.Second
)

var (
	ErrMissingEndpoint     = errors.New("tracing endpoint must be set when tracing is enabled")
	ErrInvalidSamplingRate = errors.New("sampling rate must be between 0.0 and 1.0")
)

type Config struct {
	Enabled bool
	// Endpoint is the OTLP gRPC collector address, e.g. "otel-collector:4317"
	Endpoint     string
	SamplingRate float64
	Insecure     bool
}

// Provider wraps the configured TracerProvider.
type Provider struct {
	tp     trace.TracerProvider
	tracer trace.Tracer
}

func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// TracerProvider returns the underlying provider so clients can create their own named tracers.
func (p *Provider) TracerProvider() trace.TracerProvider {
	return p.tp
}

// Shutdown flushes pending spans. The passed context is ignored since it is usually
// already canceled when the manager stops.
func (p *Provider) Shutdown(_ context.Context) error {
	sdkTP, ok := p.tp.(*sdktrace.TracerProvider)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return sdkTP.Shutdown(ctx)
}

// Setup returns a no-op provider when tracing is disabled, otherwise an OTLP exporting
// provider registered as the global provider.
func Setup(ctx context.Context, cfg Config, version string) (*Provider, error) {
	if !cfg.Enabled {
		tp := noop.NewTracerProvider()
		return &Provider{tp: tp, tracer: tp.Tracer(TracerName)}, nil
	}

	if cfg.Endpoint == "" {
		return nil, ErrMissingEndpoint
	}
	if cfg.SamplingRate < 0 || cfg.SamplingRate > 1 {
		return nil, fmt.Errorf("%w, got %f", ErrInvalidSamplingRate, cfg.SamplingRate)
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(ServiceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTEL resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{tp: tp, tracer: tp.Tracer(TracerName)}, nil
}

// Span attribute keys
var (
	AttrController = attribute.Key("b2_operator.controller")
	AttrAccount    = attribute.Key("b2_operator.account")
	AttrNamespace  = attribute.Key("b2_operator.namespace")
	AttrCategory   = attribute.Key("b2_operator.category")
)
