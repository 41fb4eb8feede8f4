package agents

import (
	"context"
	"strings"
	"testing"

	"github.com/vulbsti/loanmatchmaker/llmgateway"
	"github.com/vulbsti/loanmatchmaker/model"
)

func TestRespondParsesToolCallDirective(t *testing.T) {
	p := llmgateway.ProviderFunc(func(ctx context.Context, modelTag string, messages []llmgateway.Message, temperature float32, maxTokens int) (string, error) {
		return `{"tool_call": "extract_parameters", "fragment": "I earn 15 lakhs a year"}`, nil
	})
	gw := llmgateway.NewWithProvider(p, "test-model")
	agent := NewConversationAgent(gw)

	reply := agent.Respond(context.Background(), nil, []model.Field{model.FieldAnnualIncome})
	if !reply.IsToolCall {
		t.Fatalf("expected tool-call directive")
	}
	if reply.Fragment != "I earn 15 lakhs a year" {
		t.Fatalf("Fragment = %q", reply.Fragment)
	}
}

func TestRespondSanitizesPlainReply(t *testing.T) {
	p := llmgateway.ProviderFunc(func(ctx context.Context, modelTag string, messages []llmgateway.Message, temperature float32, maxTokens int) (string, error) {
		return "```\nGot it! What's your credit score?\n```", nil
	})
	gw := llmgateway.NewWithProvider(p, "test-model")
	agent := NewConversationAgent(gw)

	reply := agent.Respond(context.Background(), nil, []model.Field{model.FieldCreditScore})
	if reply.IsToolCall {
		t.Fatalf("expected plain reply")
	}
	if strings.Contains(reply.Text, "```") {
		t.Fatalf("expected code fences stripped, got %q", reply.Text)
	}
}

func TestRespondFallsBackOnGatewayError(t *testing.T) {
	p := llmgateway.ProviderFunc(func(ctx context.Context, modelTag string, messages []llmgateway.Message, temperature float32, maxTokens int) (string, error) {
		return "", context.DeadlineExceeded
	})
	gw := llmgateway.NewWithProvider(p, "test-model")
	agent := NewConversationAgent(gw)

	reply := agent.Respond(context.Background(), nil, []model.Field{model.FieldLoanAmount})
	if reply.IsToolCall {
		t.Fatalf("expected fallback plain reply")
	}
	if reply.Text != FallbackPrompt([]model.Field{model.FieldLoanAmount}) {
		t.Fatalf("Text = %q, want deterministic fallback", reply.Text)
	}
}

func TestFallbackPromptCompletionMessage(t *testing.T) {
	got := FallbackPrompt(nil)
	if !strings.Contains(got, "matches") {
		t.Fatalf("expected completion message to mention matches, got %q", got)
	}
}
