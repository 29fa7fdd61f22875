package tracing

import (
	"context"
	"testing"

	"traceability-explorer/pkg/logger"
)

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false}, logger.Discard())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if p.Enabled() {
		t.Fatalf("expected disabled provider")
	}
	if p.Tracer("x") == nil {
		t.Fatalf("expected a no-op tracer")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown err: %v", err)
	}
}

func TestNewProvider_RejectsBadSampleRate(t *testing.T) {
	if _, err := NewProvider(context.Background(), Config{Enabled: true, SamplingRate: 2}, logger.Discard()); err == nil {
		t.Fatalf("expected error for sampling rate > 1")
	}
}

func TestSampler(t *testing.T) {
	if sampler(1).Description() != "AlwaysOnSampler" {
		t.Fatalf("unexpected sampler for 1: %s", sampler(1).Description())
	}
	if sampler(0).Description() != "AlwaysOffSampler" {
		t.Fatalf("unexpected sampler for 0: %s", sampler(0).Description())
	}
}
