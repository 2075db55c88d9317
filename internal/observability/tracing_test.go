package observability

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultTracingConfig(t *testing.T) {
	cfg := DefaultTracingConfig()
	if cfg.ServiceName != "importgraph" {
		t.Fatalf("expected service name 'importgraph', got %s", cfg.ServiceName)
	}
	if cfg.SampleRate != 1.0 {
		t.Fatalf("expected sample rate 1.0, got %f", cfg.SampleRate)
	}
}

func TestInitTracing_NoEndpoint(t *testing.T) {
	ctx := context.Background()
	tp, err := InitTracing(ctx, &TracingConfig{ServiceName: "test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp.Tracer() == nil {
		t.Fatal("expected non-nil tracer")
	}
	if err := tp.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestInitTracing_NilConfig(t *testing.T) {
	tp, err := InitTracing(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp == nil {
		t.Fatal("expected non-nil tracer provider")
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{2.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
	}
	for _, tt := range tests {
		if got := Sampler(tt.rate).Description(); got != tt.want {
			t.Errorf("Sampler(%v) = %s, want %s", tt.rate, got, tt.want)
		}
	}
}

func TestPhaseSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer tp.Shutdown(context.Background())

	tracer := tp.Tracer(TracerName)
	ctx, parent := tracer.Start(context.Background(), "test")

	// Span helpers go through the global provider; record attributes on a
	// span from the local provider to check the helpers themselves.
	_, span := tracer.Start(ctx, "importgraph."+PhaseScan)
	RecordScanResult(span, 10, 9, 30, 1)
	RecordError(span, nil)
	RecordError(span, errors.New("boom"))
	span.End()

	_, span = tracer.Start(ctx, "importgraph."+PhaseAssemble)
	RecordGraphResult(span, 5, 4, 1)
	span.End()
	parent.End()

	ended := rec.Ended()
	if len(ended) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(ended))
	}
	scan := ended[0]
	if scan.Status().Code != codes.Error {
		t.Errorf("scan span status = %v", scan.Status())
	}
	if !hasAttr(scan.Attributes(), attribute.Int("scan.failure_count", 1)) {
		t.Errorf("scan attributes = %v", scan.Attributes())
	}
	if !hasAttr(ended[1].Attributes(), attribute.Int("graph.edge_count", 4)) {
		t.Errorf("assemble attributes = %v", ended[1].Attributes())
	}
}

func TestStartPhaseSpan(t *testing.T) {
	_, span := StartPhaseSpan(context.Background(), PhaseExport, attribute.String("format", "dot"))
	if span == nil {
		t.Fatal("expected non-nil span")
	}
	span.End()
}

func hasAttr(attrs []attribute.KeyValue, want attribute.KeyValue) bool {
	for _, a := range attrs {
		if a.Key == want.Key && a.Value == want.Value {
			return true
		}
	}
	return false
}
