package main

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// setupTracing installs the global tracer provider for exporter. With
// "none" the default no-op provider stays in place, so an externally
// configured provider can still be used. The returned func flushes spans.
func setupTracing(exporter string, w io.Writer) (func(context.Context) error, error) {
	if exporter != "stdout" {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", "rentfit"))),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
