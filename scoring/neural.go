package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/vulbsti/loanmatchmaker/model"
)

// StandardizationDescriptor is the JSON artefact the neural scorer loads
// alongside the model graph (spec §6 "Model asset format"): ordered
// feature names and the per-feature mean/std used to standardise raw
// feature vectors before inference.
type StandardizationDescriptor struct {
	FeatureNames []string  `json:"feature_names"`
	Mean         []float64 `json:"mean"`
	Std          []float64 `json:"std"`
	InputSize    int       `json:"input_size"`
}

// ModelWeights is the model graph artefact. No ONNX/TensorFlow/gonum-style
// inference runtime appears anywhere in the example pack (confirmed by
// inspection), so the "pre-trained scoring model" spec §4.8 describes is
// realised here as a single dense layer plus sigmoid — the standard
// interoperable serialisation of that model family is just its weight
// vector and bias, which this JSON document carries directly.
type ModelWeights struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

// NeuralScorer is the optional scoring path (spec §4.8): same Score
// contract as the rule scorer, a ten-feature input vector per lender,
// probability-based ranking, fixed linear
// synthesis of eligibility/affordability/specialisation for presentation
// parity.
type NeuralScorer struct {
	desc    StandardizationDescriptor
	weights ModelWeights
}

// LoadNeuralScorer loads both artefacts. Either file missing or malformed
// is reported as an error; callers (ScoringEngine) treat that as "neural
// path unavailable" and fall back silently per spec §4.8's path-selection
// rule.
func LoadNeuralScorer(standardizationPath, modelPath string) (*NeuralScorer, error) {
	descRaw, err := os.ReadFile(standardizationPath)
	if err != nil {
		return nil, fmt.Errorf("reading standardisation descriptor: %w", err)
	}
	var desc StandardizationDescriptor
	if err := json.Unmarshal(descRaw, &desc); err != nil {
		return nil, fmt.Errorf("parsing standardisation descriptor: %w", err)
	}

	weightsRaw, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, fmt.Errorf("reading model graph: %w", err)
	}
	var weights ModelWeights
	if err := json.Unmarshal(weightsRaw, &weights); err != nil {
		return nil, fmt.Errorf("parsing model graph: %w", err)
	}

	if len(desc.Mean) != featureCount || len(desc.Std) != featureCount {
		return nil, fmt.Errorf("standardisation descriptor has %d features, want %d", len(desc.Mean), featureCount)
	}
	if len(weights.Weights) != featureCount {
		return nil, fmt.Errorf("model graph has %d weights, want %d", len(weights.Weights), featureCount)
	}

	return &NeuralScorer{desc: desc, weights: weights}, nil
}

const featureCount = 10

// featureVector builds the ten-dimensional feature vector from spec §4.8:
// four normalised magnitudes, three binary compatibilities, three ratios.
// incomeMultiple guards divide-by-zero: when l.MinIncome <= 0 the ratio is
// fixed at 1.0 ("no constraint, fully satisfied").
func featureVector(l model.Lender, p model.LoanParameters) [featureCount]float64 {
	var f [featureCount]float64

	loanAmount := floatOf(p.LoanAmount)
	annualIncome := floatOf(p.AnnualIncome)
	creditScore := floatOfInt(p.CreditScore)

	f[0] = loanAmount / 1_000_000
	f[1] = annualIncome / 500_000
	f[2] = creditScore / 850
	f[3] = l.InterestRate / 20

	employmentMatch := 0.0
	if p.EmploymentStatus != nil && l.AcceptsEmployment(*p.EmploymentStatus) {
		employmentMatch = 1.0
	}
	purposeMatch := 0.0
	if l.LoanPurpose == nil || (p.LoanPurpose != nil && *p.LoanPurpose == *l.LoanPurpose) {
		purposeMatch = 1.0
	}
	specialPresent := 0.0
	if specialEligibilityBonus(l, p) {
		specialPresent = 1.0
	}
	f[4] = employmentMatch
	f[5] = purposeMatch
	f[6] = specialPresent

	loanMultiple := 0.0
	if l.MaxLoanAmount > 0 {
		loanMultiple = loanAmount / float64(l.MaxLoanAmount)
	}
	incomeMultiple := 1.0
	if l.MinIncome > 0 {
		incomeMultiple = annualIncome / float64(l.MinIncome)
	}
	creditRatio := (creditScore - float64(l.MinCreditScore)) / 550

	f[7] = loanMultiple
	f[8] = incomeMultiple
	f[9] = creditRatio

	return f
}

func floatOf(v *int64) float64 {
	if v == nil {
		return 0
	}
	return float64(*v)
}

func floatOfInt(v *int) float64 {
	if v == nil {
		return 0
	}
	return float64(*v)
}

func (s *NeuralScorer) standardize(f [featureCount]float64) [featureCount]float64 {
	var out [featureCount]float64
	for i := range f {
		std := s.desc.Std[i]
		if std == 0 {
			std = 1
		}
		out[i] = (f[i] - s.desc.Mean[i]) / std
	}
	return out
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// predict returns the model's probability in [0,1] for one lender.
func (s *NeuralScorer) predict(l model.Lender, p model.LoanParameters) float64 {
	f := s.standardize(featureVector(l, p))
	z := s.weights.Bias
	for i, w := range s.weights.Weights {
		z += w * f[i]
	}
	return sigmoid(z)
}

// Score ranks lenders by model probability descending and returns the top
// k. Eligibility/affordability/specialisation are synthesised from the
// final score by fixed linear factors for presentation parity (spec
// §4.8); reasons reuse the same deterministic rule set as RuleScorer so
// explanations stay consistent across paths.
func (s *NeuralScorer) Score(lenders []model.Lender, params model.LoanParameters, k int) []model.LenderMatch {
	matches := make([]model.LenderMatch, 0, len(lenders))

	for _, l := range lenders {
		prob := s.predict(l, params)
		final := int(math.Round(prob * 100))

		_, checks := eligibilityChecks(l, params)
		affordability := affordabilityScore(l.InterestRate, model.DefaultRateRange)
		specialization := specializationScore(l, params)

		matches = append(matches, model.LenderMatch{
			LenderID:            l.ID,
			LenderName:          l.Name,
			EligibilityScore:    clamp100(int(math.Round(float64(final) * 0.8))),
			AffordabilityScore:  clamp100(int(math.Round(float64(final) * 0.75))),
			SpecializationScore: clamp100(int(math.Round(float64(final) * 0.65))),
			FinalScore:          final,
			Confidence:          confidenceScore(clamp100(int(math.Round(float64(final)*0.8))), params),
			Reasons:             reasonsFor(l, params, checks, affordability, specialization),
			Warnings:            warningsFor(l, params),
			Path:                "neural",
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].FinalScore > matches[j].FinalScore
	})

	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	for i := range matches {
		matches[i].Rank = i + 1
	}
	return matches
}
