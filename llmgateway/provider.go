// Package llmgateway is the thin transport to an external text-in/text-out
// model (spec §4.4, component C4). It does not interpret response content;
// callers (ExtractionAgent, ConversationAgent) own prompt construction and
// reply parsing.
package llmgateway

import "context"

// Message is a single chat turn, provider-agnostic.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Provider is the generic LLM transport interface. Any client can
// implement this single method to plug into the gateway.
type Provider interface {
	ChatCompletion(ctx context.Context, model string, messages []Message, temperature float32, maxTokens int) (string, error)
}

// ProviderFunc adapts a plain function into a Provider, following the
// http.HandlerFunc convention.
type ProviderFunc func(ctx context.Context, model string, messages []Message, temperature float32, maxTokens int) (string, error)

// ChatCompletion implements Provider.
func (f ProviderFunc) ChatCompletion(ctx context.Context, model string, messages []Message, temperature float32, maxTokens int) (string, error) {
	return f(ctx, model, messages, temperature, maxTokens)
}
