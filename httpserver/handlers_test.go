package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vulbsti/loanmatchmaker/catalogue"
	"github.com/vulbsti/loanmatchmaker/llmgateway"
	"github.com/vulbsti/loanmatchmaker/model"
	"github.com/vulbsti/loanmatchmaker/orchestrator"
	"github.com/vulbsti/loanmatchmaker/ratelimiter"
	"github.com/vulbsti/loanmatchmaker/scoring"
	"github.com/vulbsti/loanmatchmaker/store"
	"github.com/vulbsti/loanmatchmaker/tracker"
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

func newTestServer(t *testing.T) *Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lenders.yaml")
	if err := os.WriteFile(path, []byte(testSeed), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cat, err := catalogue.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	s := store.NewMemoryStore()
	provider := llmgateway.ProviderFunc(func(ctx context.Context, modelTag string, messages []llmgateway.Message, temperature float32, maxTokens int) (string, error) {
		for _, m := range messages {
			if strings.Contains(m.Content, "extraction assistant") {
				return `{}`, nil
			}
		}
		return "How much would you like to borrow?", nil
	})
	gw := llmgateway.NewWithProvider(provider, "test-model")
	engine := scoring.NewEngine(scoring.NewRuleScorer(model.DefaultRateRange), nil, false)
	orch := orchestrator.New(s, gw, engine, cat)

	return New(Deps{
		Store:        s,
		Orchestrator: orch,
		Tracker:      tracker.New(s),
		Scoring:      engine,
		Catalogue:    cat,
		Limiter:      ratelimiter.New(),
		Gateway:      gw,
		CORSOrigins:  []string{"*"},
	})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateSessionAndHistory(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/chat/session", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var created envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	data := created.Data.(map[string]any)
	sessionID := data["sessionId"].(string)
	if _, ok := data["expiresAt"]; !ok {
		t.Fatalf("response missing expiresAt: %v", data)
	}
	if msg, ok := data["message"].(string); !ok || msg == "" {
		t.Fatalf("response missing non-empty message: %v", data)
	}

	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/chat/history/"+sessionID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var history envelope
	json.Unmarshal(rec.Body.Bytes(), &history)
	hdata := history.Data.(map[string]any)
	if _, ok := hdata["messages"]; !ok {
		t.Fatalf("history response missing messages: %v", hdata)
	}
	summary, ok := hdata["summary"].(map[string]any)
	if !ok {
		t.Fatalf("history response missing summary: %v", hdata)
	}
	for _, field := range []string{"messageCount", "durationMinutes", "parametersCollected", "lastActivity"} {
		if _, ok := summary[field]; !ok {
			t.Fatalf("summary missing %s: %v", field, summary)
		}
	}
}

func TestSendMessageAndStatus(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/chat/session", nil)
	var created envelope
	json.Unmarshal(rec.Body.Bytes(), &created)
	sessionID := created.Data.(map[string]any)["sessionId"].(string)

	rec = doJSON(t, s.Handler(), http.MethodPost, "/api/chat/message", map[string]string{
		"sessionId": sessionID,
		"message":   "I want a loan",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("send message status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var replied envelope
	json.Unmarshal(rec.Body.Bytes(), &replied)
	rdata := replied.Data.(map[string]any)
	if _, ok := rdata["response"]; !ok {
		t.Fatalf("message response missing response: %v", rdata)
	}
	if _, ok := rdata["completionPercentage"]; !ok {
		t.Fatalf("message response missing completionPercentage: %v", rdata)
	}

	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/loan/status/"+sessionID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, body = %s", rec.Code, rec.Body.String())
	}
	var status envelope
	json.Unmarshal(rec.Body.Bytes(), &status)
	sdata := status.Data.(map[string]any)
	for _, field := range []string{"completionPercentage", "collectedParameters", "missingParameters", "tracking", "isComplete"} {
		if _, ok := sdata[field]; !ok {
			t.Fatalf("status response missing %s: %v", field, sdata)
		}
	}
}

func TestSetParameterResponseShape(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/chat/session", nil)
	var created envelope
	json.Unmarshal(rec.Body.Bytes(), &created)
	sessionID := created.Data.(map[string]any)["sessionId"].(string)

	rec = doJSON(t, s.Handler(), http.MethodPut, "/api/loan/parameters/"+sessionID, map[string]any{
		"parameter": "loanAmount",
		"value":     2_000_000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("set parameter status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var updated envelope
	json.Unmarshal(rec.Body.Bytes(), &updated)
	udata := updated.Data.(map[string]any)
	for _, field := range []string{"sessionId", "parameters", "completionPercentage", "tracking"} {
		if _, ok := udata[field]; !ok {
			t.Fatalf("set parameter response missing %s: %v", field, udata)
		}
	}
}

func TestDeleteSessionResponseShape(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/chat/session", nil)
	var created envelope
	json.Unmarshal(rec.Body.Bytes(), &created)
	sessionID := created.Data.(map[string]any)["sessionId"].(string)

	rec = doJSON(t, s.Handler(), http.MethodDelete, "/api/chat/session/"+sessionID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete session status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var deleted envelope
	json.Unmarshal(rec.Body.Bytes(), &deleted)
	ddata := deleted.Data.(map[string]any)
	if ddata["sessionId"] != sessionID {
		t.Fatalf("delete response sessionId = %v, want %s", ddata["sessionId"], sessionID)
	}
	if ddata["status"] != "ended" {
		t.Fatalf("delete response status = %v, want ended", ddata["status"])
	}
}

func TestInvalidSessionIDRejected(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/loan/status/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUnknownSessionNotFound(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/loan/status/11111111-1111-4111-8111-111111111111", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body = %s", rec.Code, rec.Body.String())
	}
}

func TestListLenders(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/loan/lenders", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var health envelope
	json.Unmarshal(rec.Body.Bytes(), &health)
	hdata := health.Data.(map[string]any)
	if _, ok := hdata["status"]; !ok {
		t.Fatalf("health response missing status: %v", hdata)
	}
	services, ok := hdata["services"].(map[string]any)
	if !ok {
		t.Fatalf("health response missing services: %v", hdata)
	}
	for _, field := range []string{"database", "llm"} {
		if _, ok := services[field]; !ok {
			t.Fatalf("health services missing %s: %v", field, services)
		}
	}
	if _, ok := hdata["uptime"]; !ok {
		t.Fatalf("health response missing uptime: %v", hdata)
	}
	if _, ok := hdata["version"]; !ok {
		t.Fatalf("health response missing version: %v", hdata)
	}
}

func TestMatchingRateLimitExceeded(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/chat/session", nil)
	var created envelope
	json.Unmarshal(rec.Body.Bytes(), &created)
	sessionID := created.Data.(map[string]any)["sessionId"].(string)

	var lastOK *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		lastOK = doJSON(t, s.Handler(), http.MethodPost, "/api/loan/match", map[string]string{"sessionId": sessionID})
	}
	rec = doJSON(t, s.Handler(), http.MethodPost, "/api/loan/match", map[string]string{"sessionId": sessionID})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429, body = %s", rec.Code, rec.Body.String())
	}

	if lastOK.Code == http.StatusOK {
		var matched envelope
		json.Unmarshal(lastOK.Body.Bytes(), &matched)
		mdata := matched.Data.(map[string]any)
		for _, field := range []string{"matches", "totalMatches", "sessionId", "calculatedAt", "parameters"} {
			if _, ok := mdata[field]; !ok {
				t.Fatalf("match response missing %s: %v", field, mdata)
			}
		}
	}
}
