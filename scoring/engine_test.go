package scoring

import (
	"testing"

	"github.com/vulbsti/loanmatchmaker/model"
)

func TestEngineFallsBackWhenNeuralUnavailable(t *testing.T) {
	e := NewEngine(NewRuleScorer(model.DefaultRateRange), nil, true)
	matches := e.Score([]model.Lender{sampleLender()}, sampleParams(), 5)
	if len(matches) != 1 {
		t.Fatalf("expected rule-path fallback to produce 1 match, got %d", len(matches))
	}
	if matches[0].Path != "rule" {
		t.Fatalf("Path = %q, want rule", matches[0].Path)
	}
}

func TestEngineUsesRuleWhenNeuralFlagOff(t *testing.T) {
	neural := &NeuralScorer{
		desc:    StandardizationDescriptor{Mean: make([]float64, featureCount), Std: make([]float64, featureCount)},
		weights: ModelWeights{Weights: make([]float64, featureCount)},
	}
	e := NewEngine(NewRuleScorer(model.DefaultRateRange), neural, false)
	matches := e.Score([]model.Lender{sampleLender()}, sampleParams(), 5)
	if matches[0].Path != "rule" {
		t.Fatalf("Path = %q, want rule (neural disabled by flag)", matches[0].Path)
	}
}

func TestEngineUsesNeuralWhenEnabled(t *testing.T) {
	neural := &NeuralScorer{
		desc:    StandardizationDescriptor{Mean: make([]float64, featureCount), Std: make([]float64, featureCount)},
		weights: ModelWeights{Weights: make([]float64, featureCount)},
	}
	e := NewEngine(NewRuleScorer(model.DefaultRateRange), neural, true)
	matches := e.Score([]model.Lender{sampleLender()}, sampleParams(), 5)
	if len(matches) != 1 || matches[0].Path != "neural" {
		t.Fatalf("expected neural path result, got %+v", matches)
	}
}

func TestNeuralFeatureVectorIncomeMultipleGuard(t *testing.T) {
	l := sampleLender()
	l.MinIncome = 0
	f := featureVector(l, sampleParams())
	if f[8] != 1.0 {
		t.Fatalf("incomeMultiple = %v, want 1.0 when MinIncome<=0", f[8])
	}
}
