package llmgateway

import (
	"context"
	"errors"
	"testing"
)

func TestGenerateUsesProfilePresets(t *testing.T) {
	var gotTemp float32
	var gotMax int
	p := ProviderFunc(func(ctx context.Context, modelTag string, messages []Message, temperature float32, maxTokens int) (string, error) {
		gotTemp = temperature
		gotMax = maxTokens
		return "ok", nil
	})

	gw := NewWithProvider(p, "test-model")
	reply, err := gw.Generate(context.Background(), ProfileExtraction, "system prompt", []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if reply != "ok" {
		t.Fatalf("reply = %q, want ok", reply)
	}
	if gotTemp != 0.1 {
		t.Fatalf("temperature = %v, want 0.1", gotTemp)
	}
	if gotMax != 400 {
		t.Fatalf("maxTokens = %d, want 400", gotMax)
	}
}

func TestGeneratePropagatesProviderError(t *testing.T) {
	wantErr := errors.New("boom")
	p := ProviderFunc(func(ctx context.Context, modelTag string, messages []Message, temperature float32, maxTokens int) (string, error) {
		return "", wantErr
	})

	gw := NewWithProvider(p, "test-model")
	if _, err := gw.Generate(context.Background(), ProfileConversation, "", nil); err == nil {
		t.Fatalf("expected error to propagate")
	}
}

func TestHealthCheckFalseOnError(t *testing.T) {
	p := ProviderFunc(func(ctx context.Context, modelTag string, messages []Message, temperature float32, maxTokens int) (string, error) {
		return "", errors.New("down")
	})
	gw := NewWithProvider(p, "test-model")
	if gw.HealthCheck(context.Background()) {
		t.Fatalf("expected HealthCheck to return false")
	}
}

func TestHealthCheckTrueOnSuccess(t *testing.T) {
	p := ProviderFunc(func(ctx context.Context, modelTag string, messages []Message, temperature float32, maxTokens int) (string, error) {
		return "pong", nil
	})
	gw := NewWithProvider(p, "test-model")
	if !gw.HealthCheck(context.Background()) {
		t.Fatalf("expected HealthCheck to return true")
	}
}
