package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestSetupTracingStdoutExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	shutdown, err := setupTracing("stdout", &buf)
	if err != nil {
		t.Fatalf("setupTracing: %v", err)
	}

	_, span := otel.Tracer("rentfit/agreement").Start(context.Background(), "agreement.Sign")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !strings.Contains(buf.String(), "agreement.Sign") {
		t.Fatalf("expected exported span, got %q", buf.String())
	}
}

func TestSetupTracingNoneKeepsProvider(t *testing.T) {
	prev := otel.GetTracerProvider()

	var buf bytes.Buffer
	shutdown, err := setupTracing("none", &buf)
	if err != nil {
		t.Fatalf("setupTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if otel.GetTracerProvider() != prev {
		t.Fatal("expected global tracer provider to be left alone")
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}
