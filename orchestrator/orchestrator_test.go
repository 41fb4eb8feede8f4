package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vulbsti/loanmatchmaker/catalogue"
	"github.com/vulbsti/loanmatchmaker/llmgateway"
	"github.com/vulbsti/loanmatchmaker/model"
	"github.com/vulbsti/loanmatchmaker/scoring"
	"github.com/vulbsti/loanmatchmaker/store"
)

const testSeed = `
lenders:
  - id: lender-1
    name: Test Bank
    interestRate: 7.5
    minLoanAmount: 100000
    maxLoanAmount: 50000000
    minIncome: 100000
    minCreditScore: 600
    employmentTypes: [any]
    processingTimeDays: 2
    features: []
`

func newTestCatalogue(t *testing.T) *catalogue.LenderCatalogue {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lenders.yaml")
	if err := os.WriteFile(path, []byte(testSeed), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cat, err := catalogue.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cat
}

func newTestOrchestrator(t *testing.T, provider llmgateway.Provider) (*Orchestrator, store.SessionStore, string) {
	t.Helper()
	s := store.NewMemoryStore()
	sess, err := s.Open(nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	gw := llmgateway.NewWithProvider(provider, "test-model")
	engine := scoring.NewEngine(scoring.NewRuleScorer(model.DefaultRateRange), nil, false)
	cat := newTestCatalogue(t)
	o := New(s, gw, engine, cat)
	return o, s, sess.SessionID
}

func TestHandleTurnContinuesWhenIncomplete(t *testing.T) {
	provider := llmgateway.ProviderFunc(func(ctx context.Context, modelTag string, messages []llmgateway.Message, temperature float32, maxTokens int) (string, error) {
		for _, m := range messages {
			if m.Role == "system" && strings.Contains(m.Content, "extraction") {
				return `{"loanAmount": 2000000}`, nil
			}
		}
		return "Thanks! What's your annual income?", nil
	})

	o, _, sid := newTestOrchestrator(t, provider)
	result, err := o.HandleTurn(context.Background(), sid, "I want 20 lakhs")
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if result.Action != ActionContinue {
		t.Fatalf("Action = %q, want continue", result.Action)
	}
	if result.CompletionPercent != 20 {
		t.Fatalf("CompletionPercent = %d, want 20", result.CompletionPercent)
	}
}

func TestHandleTurnTriggersMatchingOnComplete(t *testing.T) {
	provider := llmgateway.ProviderFunc(func(ctx context.Context, modelTag string, messages []llmgateway.Message, temperature float32, maxTokens int) (string, error) {
		for _, m := range messages {
			if strings.Contains(m.Content, "extraction assistant") {
				return `{"loanAmount": 2000000, "annualIncome": 1500000, "employmentStatus": "salaried", "creditScore": 760, "loanPurpose": "vehicle"}`, nil
			}
		}
		return "All set! Finding your matches now.", nil
	})

	o, _, sid := newTestOrchestrator(t, provider)
	result, err := o.HandleTurn(context.Background(), sid, "20 lakh for a car, salaried, 15 lakh income, credit score 760")
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if result.Action != ActionTriggerMatching {
		t.Fatalf("Action = %q, want trigger_matching", result.Action)
	}
	if result.CompletionPercent != 100 {
		t.Fatalf("CompletionPercent = %d, want 100", result.CompletionPercent)
	}
	if len(result.Matches) == 0 {
		t.Fatalf("expected at least one match")
	}
}

func TestHandleTurnUnknownSessionErrors(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, llmgateway.ProviderFunc(func(ctx context.Context, modelTag string, messages []llmgateway.Message, temperature float32, maxTokens int) (string, error) {
		return "", nil
	}))
	if _, err := o.HandleTurn(context.Background(), "does-not-exist", "hello"); err == nil {
		t.Fatalf("expected error for unknown session")
	}
}

func TestHandleTurnAppendsHistory(t *testing.T) {
	provider := llmgateway.ProviderFunc(func(ctx context.Context, modelTag string, messages []llmgateway.Message, temperature float32, maxTokens int) (string, error) {
		for _, m := range messages {
			if strings.Contains(m.Content, "extraction assistant") {
				return `{}`, nil
			}
		}
		return "How much would you like to borrow?", nil
	})

	o, s, sid := newTestOrchestrator(t, provider)
	if _, err := o.HandleTurn(context.Background(), sid, "hi there"); err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}

	snap, err := s.Load(sid)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap.History) != 2 {
		t.Fatalf("History length = %d, want 2 (user + bot)", len(snap.History))
	}
	if snap.History[0].Role != model.RoleUser || snap.History[1].Role != model.RoleBot {
		t.Fatalf("unexpected history roles: %v, %v", snap.History[0].Role, snap.History[1].Role)
	}
}
