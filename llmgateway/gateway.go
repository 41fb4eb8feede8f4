package llmgateway

import (
	"context"
	"errors"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/vulbsti/loanmatchmaker/model"
)

// Profile selects one of the two calling presets from spec §4.4.
type Profile string

const (
	// ProfileExtraction: low temperature, short budget, deterministic JSON
	// expected. Used by ExtractionAgent and step-5 acknowledgement calls.
	ProfileExtraction Profile = "extraction"
	// ProfileConversation: higher temperature, medium budget, prose expected.
	ProfileConversation Profile = "conversation"
)

// presets maps a Profile to its generation parameters.
var presets = map[Profile]struct {
	temperature float32
	maxTokens   int
	deadline    time.Duration
}{
	ProfileExtraction:   {temperature: 0.1, maxTokens: 400, deadline: 10 * time.Second},
	ProfileConversation: {temperature: 0.7, maxTokens: 600, deadline: 30 * time.Second},
}

// Config configures the OpenAI-compatible transport.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Gateway is the LLMGateway implementation backed by go-openai, wrapped
// behind the provider-agnostic Provider interface so tests can substitute
// a fake without touching a real endpoint.
type Gateway struct {
	provider Provider
	model    string
}

// New wraps the given openai-compatible configuration in a Gateway.
func New(cfg Config) *Gateway {
	oaCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaCfg.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(oaCfg)

	provider := ProviderFunc(func(ctx context.Context, modelTag string, messages []Message, temperature float32, maxTokens int) (string, error) {
		reqMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
		for _, m := range messages {
			reqMessages = append(reqMessages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
		}
		resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       modelTag,
			Messages:    reqMessages,
			Temperature: temperature,
			MaxTokens:   maxTokens,
		})
		if err != nil {
			return "", classify(err)
		}
		if len(resp.Choices) == 0 {
			return "", model.NewUpstreamDegradedError("empty choices in LLM response", nil)
		}
		return resp.Choices[0].Message.Content, nil
	})

	return &Gateway{provider: provider, model: cfg.Model}
}

// NewWithProvider constructs a Gateway over an arbitrary Provider, for tests
// and for alternate backends.
func NewWithProvider(p Provider, modelTag string) *Gateway {
	return &Gateway{provider: p, model: modelTag}
}

// Generate runs one completion under the given profile's preset
// temperature/token budget/deadline. systemPrompt may be empty.
func (g *Gateway) Generate(ctx context.Context, profile Profile, systemPrompt string, turns []Message) (string, error) {
	preset, ok := presets[profile]
	if !ok {
		return "", model.NewInternalError("unknown llmgateway profile: "+string(profile), nil)
	}

	ctx, cancel := context.WithTimeout(ctx, preset.deadline)
	defer cancel()

	messages := make([]Message, 0, len(turns)+1)
	if systemPrompt != "" {
		messages = append(messages, Message{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	messages = append(messages, turns...)

	text, err := g.provider.ChatCompletion(ctx, g.model, messages, preset.temperature, preset.maxTokens)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", model.NewUpstreamUnavailableError("llm call exceeded deadline", err)
		}
		return "", err
	}
	return text, nil
}

// HealthCheck reports whether the gateway can reach its backend, via a
// minimal, cheap completion request. Failures are swallowed into false.
func (g *Gateway) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := g.provider.ChatCompletion(ctx, g.model, []Message{{Role: "user", Content: "ping"}}, 0, 1)
	return err == nil
}

// classify maps a go-openai transport error onto the error kinds from
// spec §4.4: RateLimited, Quota, Timeout, Config, Unknown. "Quota" and
// "RateLimited" are both surfaced as model.KindUpstreamUnavailable since
// the spec treats them identically at the orchestrator boundary (never
// retried inside a turn); the distinction is preserved in the message
// text for logging.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429:
			if strings.Contains(strings.ToLower(apiErr.Message), "quota") {
				return model.NewUpstreamUnavailableError("quota exceeded", err)
			}
			return model.NewUpstreamUnavailableError("rate limited by llm provider", err)
		case 401, 403:
			return model.NewInternalError("llm provider configuration rejected credentials", err)
		case 408:
			return model.NewUpstreamUnavailableError("llm provider request timeout", err)
		}
		return model.NewUpstreamUnavailableError("llm provider error", err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return model.NewUpstreamUnavailableError("llm transport request error", err)
	}
	return model.NewUpstreamUnavailableError("unknown llm transport error", err)
}
