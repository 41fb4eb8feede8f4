package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/vulbsti/loanmatchmaker/llmgateway"
	"github.com/vulbsti/loanmatchmaker/log"
	"github.com/vulbsti/loanmatchmaker/model"
)

const conversationSystemPrompt = `You are a friendly loan advisor assistant collecting five pieces of
information from the user: loan amount, annual income, employment status, credit score, and loan purpose.

If the user's last message plausibly contains new information about any of these, respond with exactly
one JSON object: {"tool_call": "extract_parameters", "fragment": "<the relevant part of what they said>"}
and nothing else.

Otherwise, respond with a short, friendly plain-text message acknowledging what has been collected so far
and asking for the single highest-priority missing field. If nothing is missing, congratulate the user and
let them know their matches are ready. Never use JSON, code fences, or mention internal tool names in a
plain-text reply.`

// toolCallDirectivePattern matches the fixed tool-call JSON shape so we
// don't need a full schema validator for a two-field object.
var toolCallDirectivePattern = regexp.MustCompile(`(?s)\{.*"tool_call"\s*:\s*"extract_parameters".*\}`)

// Reply is the ConversationAgent's output for one turn: either a tool-call
// directive (IsToolCall=true) or a sanitised user-visible reply.
type Reply struct {
	IsToolCall bool
	Fragment   string // present only when IsToolCall
	Text       string // present only when !IsToolCall
}

// ConversationAgent produces either a tool-call directive or a natural
// reply from dialogue history and current tracker state (spec §4.6,
// component C6).
type ConversationAgent struct {
	gateway *llmgateway.Gateway
}

// NewConversationAgent builds a ConversationAgent over the given gateway.
func NewConversationAgent(gw *llmgateway.Gateway) *ConversationAgent {
	return &ConversationAgent{gateway: gw}
}

// Respond asks the LLM for the next turn given dialogue history, the
// current parameters, and the ordered missing-field list. On any gateway
// error it returns a deterministic fallback reply for the top-priority
// missing field (or a completion acknowledgement if nothing is missing),
// per spec §4.7 step 4's failure semantics.
func (c *ConversationAgent) Respond(ctx context.Context, history []model.ChatMessage, missing []model.Field) Reply {
	turns := make([]llmgateway.Message, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.Role == model.RoleBot {
			role = "assistant"
		}
		turns = append(turns, llmgateway.Message{Role: role, Content: m.Content})
	}

	text, err := c.gateway.Generate(ctx, llmgateway.ProfileConversation, conversationSystemPrompt, turns)
	if err != nil {
		log.Log.Warnf("[conversation] llm call failed, using deterministic fallback: %v", err)
		return Reply{Text: FallbackPrompt(missing)}
	}

	if match := toolCallDirectivePattern.FindString(text); match != "" {
		var directive struct {
			ToolCall string `json:"tool_call"`
			Fragment string `json:"fragment"`
		}
		if err := json.Unmarshal([]byte(match), &directive); err == nil && directive.ToolCall == "extract_parameters" {
			return Reply{IsToolCall: true, Fragment: directive.Fragment}
		}
	}

	return Reply{Text: Sanitize(text)}
}

// FallbackPrompt returns the deterministic question for the highest
// priority missing field, or a completion message when nothing remains.
func FallbackPrompt(missing []model.Field) string {
	if len(missing) == 0 {
		return "Thanks, I have everything I need. Let me find your best loan matches."
	}
	switch missing[0] {
	case model.FieldLoanAmount:
		return "How much would you like to borrow?"
	case model.FieldAnnualIncome:
		return "What's your annual income?"
	case model.FieldEmploymentStatus:
		return "What's your current employment status?"
	case model.FieldCreditScore:
		return "What's your credit score?"
	case model.FieldLoanPurpose:
		return "What will this loan be used for?"
	default:
		return fmt.Sprintf("Could you tell me more about your %s?", missing[0])
	}
}

var (
	codeFencePattern    = regexp.MustCompile("```[a-zA-Z]*")
	actionTagPattern    = regexp.MustCompile(`(?i)\[(?:action|progress|tool_call)[^\]]*\]`)
	strayToolCallPattern = regexp.MustCompile(`(?s)\{\s*"tool_call".*?\}`)
)

// Sanitize strips code fences, trailing action/progress annotations, and
// stray tool-call fragments from an LLM reply before it reaches the user
// (spec §4.6, §9's "treat LLM output as untrusted text").
func Sanitize(text string) string {
	text = codeFencePattern.ReplaceAllString(text, "")
	text = actionTagPattern.ReplaceAllString(text, "")
	text = strayToolCallPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
