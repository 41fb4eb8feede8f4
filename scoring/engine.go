package scoring

import (
	"time"

	"github.com/vulbsti/loanmatchmaker/log"
	"github.com/vulbsti/loanmatchmaker/model"
)

// scorer is satisfied by both RuleScorer and NeuralScorer.
type scorer interface {
	Score(lenders []model.Lender, params model.LoanParameters, k int) []model.LenderMatch
}

// Engine combines the rule-based and neural scoring paths with the
// path-selection and fallback policy from spec §4.8: neural is attempted
// only when the feature flag is on and both model assets loaded
// successfully at startup; any failure during a request falls back to the
// rule-based path for that request, logged but never surfaced.
type Engine struct {
	rule          *RuleScorer
	neural        *NeuralScorer
	neuralEnabled bool
}

// NewEngine builds an Engine. neuralEnabled gates whether neural is even
// attempted; neural may be nil (asset load failed or disabled), in which
// case the engine silently runs rule-only.
func NewEngine(rule *RuleScorer, neural *NeuralScorer, neuralEnabled bool) *Engine {
	return &Engine{rule: rule, neural: neural, neuralEnabled: neuralEnabled}
}

// Score runs the active path against the given lenders/params and returns
// the top k ranked matches, each stamped with CalculatedAt. Deterministic
// given fixed inputs: repeated calls on the same lender set produce
// identical rankings and finalScore vectors (spec §8 testable property).
func (e *Engine) Score(lenders []model.Lender, params model.LoanParameters, k int) []model.LenderMatch {
	var matches []model.LenderMatch

	if e.neuralEnabled && e.neural != nil {
		matches = e.safeNeuralScore(lenders, params, k)
	}
	if matches == nil {
		matches = e.rule.Score(lenders, params, k)
	}

	now := time.Now()
	for i := range matches {
		matches[i].CalculatedAt = now
	}
	return matches
}

// safeNeuralScore isolates the neural path so a panic inside inference
// (e.g. a malformed weight vector slipping past load-time validation)
// degrades to the rule-based path for this request instead of crashing
// the turn, per spec §4.8's "any loading or inference error ... falls
// back to the rule-based path".
func (e *Engine) safeNeuralScore(lenders []model.Lender, params model.LoanParameters, k int) (matches []model.LenderMatch) {
	defer func() {
		if r := recover(); r != nil {
			log.Log.Warnf("[scoring] neural path panicked, falling back to rule-based: %v", r)
			matches = nil
		}
	}()
	return e.neural.Score(lenders, params, k)
}
