// Package orchestrator implements the single external entry point for a
// chat turn (spec §4.7, component C7): Orchestrator.HandleTurn.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/vulbsti/loanmatchmaker/agents"
	"github.com/vulbsti/loanmatchmaker/catalogue"
	"github.com/vulbsti/loanmatchmaker/llmgateway"
	"github.com/vulbsti/loanmatchmaker/log"
	"github.com/vulbsti/loanmatchmaker/model"
	"github.com/vulbsti/loanmatchmaker/scoring"
	"github.com/vulbsti/loanmatchmaker/store"
	"github.com/vulbsti/loanmatchmaker/tracker"
)

// recentWindow is the number of prior turns fed to ExtractionAgent/
// ConversationAgent alongside the new utterance (spec §4.5: "last <= 5
// dialogue turns").
const recentWindow = 5

// defaultMatchTopK is the orchestrator-set K for ScoringEngine.Score
// (spec §4.8: "default 3-5; the orchestrator sets K").
const defaultMatchTopK = 5

// TurnResult is what HandleTurn returns to the caller (spec §4.7 step 8).
type TurnResult struct {
	SessionID         string
	Reply             string
	Action            string // "continue" or "trigger_matching"
	Matches           []model.LenderMatch
	CompletionPercent int
}

const (
	ActionContinue        = "continue"
	ActionTriggerMatching = "trigger_matching"
)

// Orchestrator is the single entry point for a chat turn.
type Orchestrator struct {
	store        store.SessionStore
	tracker      *tracker.ParameterTracker
	extraction   *agents.ExtractionAgent
	conversation *agents.ConversationAgent
	gateway      *llmgateway.Gateway
	scoring      *scoring.Engine
	catalogue    *catalogue.LenderCatalogue
	matchTopK    int
}

// New builds an Orchestrator over its collaborators.
func New(
	sessionStore store.SessionStore,
	gw *llmgateway.Gateway,
	scoringEngine *scoring.Engine,
	cat *catalogue.LenderCatalogue,
) *Orchestrator {
	return &Orchestrator{
		store:        sessionStore,
		tracker:      tracker.New(sessionStore),
		extraction:   agents.NewExtractionAgent(gw),
		conversation: agents.NewConversationAgent(gw),
		gateway:      gw,
		scoring:      scoringEngine,
		catalogue:    cat,
		matchTopK:    defaultMatchTopK,
	}
}

// withLock wraps one store mutation in the session's per-key lock. Used
// per discrete mutation rather than around the whole turn, so the lock is
// never held across an LLM call (spec §5).
func (o *Orchestrator) withLock(sessionID string, fn func() error) error {
	return o.store.WithSessionLock(sessionID, fn)
}

// HandleTurn implements spec §4.7's eight-step algorithm.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID, userText string) (*TurnResult, error) {
	// Step 1: validate session.
	snapshot, err := o.store.Load(sessionID)
	if err != nil {
		return nil, err
	}
	if !snapshot.Session.Usable(time.Now()) {
		return nil, model.NewExpiredError("session not usable: " + sessionID)
	}

	// Step 2: append user message.
	if err := o.withLock(sessionID, func() error {
		_, err := o.store.AppendMessage(sessionID, model.ChatMessage{Role: model.RoleUser, Content: userText})
		return err
	}); err != nil {
		return nil, err
	}

	// Step 3: extraction over the recent window + new utterance.
	recent := lastN(snapshot.History, recentWindow)
	extracted := o.extraction.Extract(ctx, recent, userText)

	learnedAny := false
	var tracking model.ParameterTracking
	for field, value := range extracted {
		var setErr error
		if lockErr := o.withLock(sessionID, func() error {
			_, t, err := o.tracker.Set(sessionID, field, value)
			if err == nil {
				tracking = t
				learnedAny = true
			}
			setErr = err
			return nil // validation failures here are not store-level failures
		}); lockErr != nil {
			return nil, lockErr
		}
		if setErr != nil {
			log.Log.Warnf("[orchestrator] dropping extracted field %s for session %s: %v", field, sessionID, setErr)
		}
	}

	if !learnedAny {
		// Tracking row may still be stale from before this turn's (empty)
		// extraction; re-read so step 4/5/6 see the committed state.
		_, tracking, err = o.store.GetParameters(sessionID)
		if err != nil {
			return nil, err
		}
	}
	missing := tracking.Missing()

	// Step 4: ask ConversationAgent for a reply using updated state.
	historyForReply := append(append([]model.ChatMessage{}, snapshot.History...), model.ChatMessage{Role: model.RoleUser, Content: userText})
	reply := o.conversation.Respond(ctx, lastN(historyForReply, recentWindow), missing)

	var replyText string
	if reply.IsToolCall {
		if learnedAny {
			// Step 5: synthesise a natural acknowledgement under the
			// extraction profile's low temperature for stable phrasing.
			replyText = o.acknowledge(ctx, extracted, missing)
		} else {
			replyText = agents.FallbackPrompt(missing)
		}
	} else {
		replyText = reply.Text
	}

	// Step 6: trigger matching if complete.
	action := ActionContinue
	var matches []model.LenderMatch
	if tracking.IsComplete() {
		params, _, err := o.store.GetParameters(sessionID)
		if err != nil {
			log.Log.Errorf("[orchestrator] matching_failed: could not reload parameters for session %s: %v", sessionID, err)
		} else {
			matches = o.scoring.Score(o.catalogue.List(), params, o.matchTopK)
			if lockErr := o.withLock(sessionID, func() error {
				return o.store.ReplaceMatches(sessionID, matches)
			}); lockErr != nil {
				log.Log.Errorf("[orchestrator] matching_failed: could not persist matches for session %s: %v", sessionID, lockErr)
			} else {
				action = ActionTriggerMatching
			}
		}
	}

	// Step 7: append bot message.
	if err := o.withLock(sessionID, func() error {
		_, err := o.store.AppendMessage(sessionID, model.ChatMessage{
			Role:      model.RoleBot,
			Content:   replyText,
			AgentType: model.AgentTypeConversation,
			Metadata: map[string]any{
				"action":            action,
				"completionPercent": tracking.CompletionPercent(),
			},
		})
		return err
	}); err != nil {
		return nil, err
	}

	// Step 8: touch and return.
	if err := o.store.Touch(sessionID); err != nil {
		return nil, err
	}

	return &TurnResult{
		SessionID:         sessionID,
		Reply:             replyText,
		Action:            action,
		Matches:           matches,
		CompletionPercent: tracking.CompletionPercent(),
	}, nil
}

// acknowledge synthesises a short, stable confirmation of newly-learned
// values plus a prompt for the next missing field (spec §4.7 step 5).
func (o *Orchestrator) acknowledge(ctx context.Context, extracted map[model.Field]any, missing []model.Field) string {
	prompt := fmt.Sprintf(
		"The user just provided: %v. Acknowledge this briefly and then ask for: %s. One or two sentences, no JSON.",
		extracted, nextMissingLabel(missing),
	)
	text, err := o.gateway.Generate(ctx, llmgateway.ProfileExtraction, "You write brief, friendly acknowledgements.", []llmgateway.Message{{Role: "user", Content: prompt}})
	if err != nil {
		log.Log.Warnf("[orchestrator] acknowledgement llm call failed, using deterministic fallback: %v", err)
		return agents.FallbackPrompt(missing)
	}
	return agents.Sanitize(text)
}

func nextMissingLabel(missing []model.Field) string {
	if len(missing) == 0 {
		return "nothing else, everything is collected"
	}
	return string(missing[0])
}

// lastN returns the last n messages of history (or all of it if shorter).
func lastN(history []model.ChatMessage, n int) []model.ChatMessage {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
