// Package scoring implements the hybrid ScoringEngine from spec §4.8
// (component C8): a deterministic rule-based scorer that is always
// available, and an optional neural scorer used when its model assets are
// present and loadable.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/vulbsti/loanmatchmaker/model"
)

// RuleScorer is the reference implementation: five boolean eligibility
// checks, a linear affordability inversion, and a deterministic
// specialisation bonus table (spec §4.8, §9).
type RuleScorer struct {
	rateRange model.CatalogueRateRange
}

// NewRuleScorer builds a RuleScorer against the given reference rate
// range (spec §4.8 documents minRate 2.99, maxRate 15.99).
func NewRuleScorer(rateRange model.CatalogueRateRange) *RuleScorer {
	return &RuleScorer{rateRange: rateRange}
}

// eligibilityChecks evaluates the five boolean checks from spec §4.8 and
// returns how many passed alongside the individual results, in check order.
func eligibilityChecks(l model.Lender, p model.LoanParameters) (passed int, results [5]bool) {
	if p.LoanAmount != nil && *p.LoanAmount >= l.MinLoanAmount && *p.LoanAmount <= l.MaxLoanAmount {
		results[0] = true
	}
	if p.AnnualIncome != nil && *p.AnnualIncome >= l.MinIncome {
		results[1] = true
	}
	if p.CreditScore != nil && *p.CreditScore >= l.MinCreditScore {
		results[2] = true
	}
	if p.EmploymentStatus != nil && l.AcceptsEmployment(*p.EmploymentStatus) {
		results[3] = true
	}
	if l.LoanPurpose == nil || (p.LoanPurpose != nil && *p.LoanPurpose == *l.LoanPurpose) {
		results[4] = true
	}
	for _, r := range results {
		if r {
			passed++
		}
	}
	return passed, results
}

// affordabilityScore linearly inverts the lender's interest rate against
// the reference rate range, clamped to [0,100] (spec §4.8).
func affordabilityScore(rate float64, rng model.CatalogueRateRange) int {
	if rng.MaxRate <= rng.MinRate {
		return 50
	}
	frac := (rng.MaxRate - rate) / (rng.MaxRate - rng.MinRate)
	return clamp100(int(math.Round(frac * 100)))
}

// specialEligibilityBonus implements the table in spec §9: +30 when the
// lender's specialEligibility tag's user condition is satisfied.
func specialEligibilityBonus(l model.Lender, p model.LoanParameters) bool {
	switch l.SpecialEligibility {
	case "high-income":
		return p.AnnualIncome != nil && *p.AnnualIncome >= 100_000
	case "student":
		return p.LoanPurpose != nil && *p.LoanPurpose == model.PurposeEducation
	case "business":
		return p.EmploymentStatus != nil && *p.EmploymentStatus == model.EmploymentSelfEmployed
	case "startup":
		return p.LoanPurpose != nil && *p.LoanPurpose == model.PurposeStartup
	case "eco":
		return p.LoanPurpose != nil && *p.LoanPurpose == model.PurposeEco
	case "luxury":
		return p.LoanPurpose != nil && *p.LoanPurpose == model.PurposeVehicle &&
			p.LoanAmount != nil && *p.LoanAmount >= 50_000
	default:
		return false
	}
}

// specializationScore implements spec §4.8's full formula: base 50, raised
// to 100 / lowered to 20 on purpose match/mismatch, +30 special
// eligibility, +20 premium marker, +15 large marker, clamped [0,100].
func specializationScore(l model.Lender, p model.LoanParameters) int {
	score := 50
	if l.LoanPurpose != nil {
		if p.LoanPurpose != nil && *p.LoanPurpose == *l.LoanPurpose {
			score = 100
		} else {
			score = 20
		}
	}
	if specialEligibilityBonus(l, p) {
		score += 30
	}
	if p.CreditScore != nil && *p.CreditScore >= 750 && l.HasFeature("premium") {
		score += 20
	}
	if p.LoanAmount != nil && *p.LoanAmount >= 100_000 && l.HasFeature("large") {
		score += 15
	}
	return clamp100(score)
}

// confidenceScore implements spec §4.8: starts at eligibilityScore, +10 if
// DTI < 0.4, +5 if employmentDuration >= 24 months, x0.9 if
// eligibilityScore < 90, clamped [0,100] and rounded.
func confidenceScore(eligibility int, p model.LoanParameters) int {
	c := float64(eligibility)
	if p.DebtToIncomeRatio != nil && *p.DebtToIncomeRatio < 0.4 {
		c += 10
	}
	if p.EmploymentDuration != nil && *p.EmploymentDuration >= 24 {
		c += 5
	}
	if eligibility < 90 {
		c *= 0.9
	}
	return clamp100(int(math.Round(c)))
}

func clamp100(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Score ranks every lender in catalogue against params and returns the
// top k (rule-based path). Lenders with fewer than 4 of 5 eligibility
// checks passing are assigned finalScore 0 and excluded from the result
// (spec §4.8, testable property). The slice is sorted by finalScore
// descending and Rank is filled in 1-based.
func (s *RuleScorer) Score(lenders []model.Lender, params model.LoanParameters, k int) []model.LenderMatch {
	matches := make([]model.LenderMatch, 0, len(lenders))

	for _, l := range lenders {
		passed, checks := eligibilityChecks(l, params)
		if passed < 4 {
			continue
		}

		eligibility := 100 * passed / 5
		affordability := affordabilityScore(l.InterestRate, s.rateRange)
		specialization := specializationScore(l, params)
		final := int(math.Round(0.40*float64(eligibility) + 0.35*float64(affordability) + 0.25*float64(specialization)))
		confidence := confidenceScore(eligibility, params)

		matches = append(matches, model.LenderMatch{
			LenderID:            l.ID,
			LenderName:          l.Name,
			EligibilityScore:    eligibility,
			AffordabilityScore:  affordability,
			SpecializationScore: specialization,
			FinalScore:          final,
			Confidence:          confidence,
			Reasons:             reasonsFor(l, params, checks, affordability, specialization),
			Warnings:            warningsFor(l, params),
			Path:                "rule",
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

// reasonsFor generates the deterministic explanation strings from spec
// §4.8: one per check passed, plus rate/specialisation callouts when the
// relevant score range is hit.
func reasonsFor(l model.Lender, p model.LoanParameters, checks [5]bool, affordability, specialization int) []string {
	var reasons []string
	if checks[0] {
		reasons = append(reasons, fmt.Sprintf("loan amount fits within %s's lending range", l.Name))
	}
	if checks[1] {
		reasons = append(reasons, "annual income comfortably covers this lender's minimum")
	}
	if checks[2] && p.CreditScore != nil {
		reasons = append(reasons, fmt.Sprintf("your credit score of %d meets this lender's requirement", *p.CreditScore))
	}
	if checks[3] {
		reasons = append(reasons, "your employment type is accepted by this lender")
	}
	if affordability >= 80 {
		reasons = append(reasons, fmt.Sprintf("competitive interest rate of %.2f%%", l.InterestRate))
	}
	if specialization >= 90 && p.LoanPurpose != nil {
		reasons = append(reasons, fmt.Sprintf("specialises in %s loans", *p.LoanPurpose))
	}
	return reasons
}

// warningsFor flags the borderline cases from spec §4.8.
func warningsFor(l model.Lender, p model.LoanParameters) []string {
	var warnings []string
	if p.LoanAmount != nil && l.MaxLoanAmount > 0 && float64(*p.LoanAmount) > 0.9*float64(l.MaxLoanAmount) {
		warnings = append(warnings, "requested amount is close to this lender's maximum")
	}
	if p.AnnualIncome != nil && l.MinIncome > 0 {
		multiple := float64(*p.AnnualIncome) / float64(l.MinIncome)
		if multiple >= 1.0 && multiple < 1.5 {
			warnings = append(warnings, "income is close to this lender's minimum requirement")
		}
	}
	if p.CreditScore != nil {
		delta := *p.CreditScore - l.MinCreditScore
		if delta >= 0 && delta < 50 {
			warnings = append(warnings, "credit score is close to this lender's minimum requirement")
		}
	}
	return warnings
}
