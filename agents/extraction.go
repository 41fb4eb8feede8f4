// Package agents implements the two LLM-driven roles from spec §4.5/§4.6:
// ExtractionAgent mines structured parameters out of free text;
// ConversationAgent drives the user-facing half of a turn.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vulbsti/loanmatchmaker/llmgateway"
	"github.com/vulbsti/loanmatchmaker/log"
	"github.com/vulbsti/loanmatchmaker/model"
	"github.com/vulbsti/loanmatchmaker/tracker"
)

const extractionSystemPrompt = `You are a loan parameter extraction assistant. Given a short conversation
window, return a single JSON object containing any of the following keys you can confidently infer from
the user's own words: loanAmount, annualIncome, employmentStatus, creditScore, loanPurpose,
debtToIncomeRatio, employmentDuration. Omit keys you cannot infer. Respond with JSON only, no prose.`

// ExtractionAgent mines a partial parameter map out of recent dialogue
// (spec §4.5, component C5).
type ExtractionAgent struct {
	gateway *llmgateway.Gateway
}

// NewExtractionAgent builds an ExtractionAgent over the given gateway.
func NewExtractionAgent(gw *llmgateway.Gateway) *ExtractionAgent {
	return &ExtractionAgent{gateway: gw}
}

// Extract builds a prompt from the last <= 5 turns plus the new
// utterance, asks the LLM for a JSON object, and post-processes the reply
// per spec §4.5 steps 1-5. Never returns an error for malformed LLM
// output: a parsing failure yields an empty map, observable to callers
// only as "no new parameters learned".
func (a *ExtractionAgent) Extract(ctx context.Context, recent []model.ChatMessage, utterance string) map[model.Field]any {
	turns := make([]llmgateway.Message, 0, len(recent)+1)
	for _, m := range recent {
		role := "user"
		if m.Role == model.RoleBot {
			role = "assistant"
		}
		turns = append(turns, llmgateway.Message{Role: role, Content: m.Content})
	}
	turns = append(turns, llmgateway.Message{Role: "user", Content: utterance})

	reply, err := a.gateway.Generate(ctx, llmgateway.ProfileExtraction, extractionSystemPrompt, turns)
	if err != nil {
		log.Log.Warnf("[extraction] llm call failed, treating as no extraction: %v", err)
		return map[model.Field]any{}
	}

	raw := parseFirstJSONObject(reply)
	if raw == nil {
		return map[model.Field]any{}
	}
	return PostProcess(raw)
}

// parseFirstJSONObject extracts and decodes the first JSON object literal
// from text, tolerating ```json fenced code blocks around it (spec §4.5
// step 1). Returns nil on any parse failure.
func parseFirstJSONObject(text string) map[string]any {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.Index(text, "{")
	if start < 0 {
		return nil
	}

	var out map[string]any
	if err := json.NewDecoder(strings.NewReader(text[start:])).Decode(&out); err != nil {
		return nil
	}
	return out
}

// PostProcess applies spec §4.5 steps 2-5 to a raw decoded JSON object:
// type coercion, monetary normalisation, enum canonicalisation, and
// validation. Entries that fail any step are dropped, never substituted.
func PostProcess(raw map[string]any) map[model.Field]any {
	out := make(map[model.Field]any)

	if v, ok := raw["loanAmount"]; ok {
		if amt, err := tracker.CoerceAmount(v); err == nil && model.ValidateLoanAmount(amt) == nil {
			out[model.FieldLoanAmount] = amt
		}
	}
	if v, ok := raw["annualIncome"]; ok {
		if amt, err := tracker.CoerceAmount(v); err == nil && model.ValidateAnnualIncome(amt) == nil {
			out[model.FieldAnnualIncome] = amt
		}
	}
	if v, ok := raw["employmentStatus"]; ok {
		if s, ok := v.(string); ok {
			if status := tracker.CanonicalizeEmploymentStatus(s); status != "" {
				out[model.FieldEmploymentStatus] = status
			}
		}
	}
	if v, ok := raw["creditScore"]; ok {
		if f, ok := asFloat(v); ok {
			score := int(f)
			if model.ValidateCreditScore(score) == nil {
				out[model.FieldCreditScore] = score
			}
		}
	}
	if v, ok := raw["loanPurpose"]; ok {
		if s, ok := v.(string); ok {
			if purpose := tracker.CanonicalizeLoanPurpose(s); purpose != "" {
				out[model.FieldLoanPurpose] = purpose
			}
		}
	}
	if v, ok := raw["debtToIncomeRatio"]; ok {
		if f, ok := asFloat(v); ok && model.ValidateDebtToIncomeRatio(f) == nil {
			out[model.FieldDebtToIncomeRatio] = f
		}
	}
	if v, ok := raw["employmentDuration"]; ok {
		if f, ok := asFloat(v); ok {
			dur := int(f)
			if model.ValidateEmploymentDuration(dur) == nil {
				out[model.FieldEmploymentDuration] = dur
			}
		}
	}
	return out
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(n, "%f", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}
