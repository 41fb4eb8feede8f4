package tracker

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vulbsti/loanmatchmaker/model"
)

// CoerceAmount converts raw into an int64 and applies the crore/lakh
// normalisation rule of spec §4.3: bare integers >= 10^5 are already INR;
// a raw value <= 10 is interpreted as crores (x10^7); a raw value in
// (10, 1000] is interpreted as lakhs (x10^5). Values that still fall
// outside bounds after normalisation are left for the caller's bounds
// check to reject.
func CoerceAmount(raw any) (int64, error) {
	f, err := toFloat(raw)
	if err != nil {
		return 0, model.NewValidationError("amount", err.Error())
	}
	return NormalizeAmount(f), nil
}

// NormalizeAmount applies the magnitude-detection rule in isolation, so
// extraction post-processing and direct tracker.Set share one
// implementation.
func NormalizeAmount(v float64) int64 {
	switch {
	case v >= 100_000:
		return int64(v)
	case v <= 10:
		return int64(v * 1e7)
	case v <= 1000:
		return int64(v * 1e5)
	default:
		return int64(v)
	}
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		s := strings.TrimSpace(v)
		s = strings.ReplaceAll(s, ",", "")
		s = strings.TrimPrefix(s, "₹")
		s = strings.TrimSpace(s)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse numeric value %q", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", raw)
	}
}

func coerceInt(raw any, field model.Field) (int, error) {
	f, err := toFloat(raw)
	if err != nil {
		return 0, model.NewValidationError(string(field), err.Error())
	}
	return int(f), nil
}

func coerceFloat(raw any, field model.Field) (float64, error) {
	f, err := toFloat(raw)
	if err != nil {
		return 0, model.NewValidationError(string(field), err.Error())
	}
	return f, nil
}

// coerceString accepts a plain string or one of the enum types ExtractionAgent
// may have already canonicalised (model.EmploymentStatus, model.LoanPurpose),
// so tracker.Set works whether it is called with raw user/LLM text (the
// PUT-parameter HTTP path) or an already-typed value (the orchestrator's
// extraction path).
func coerceString(raw any, field model.Field) (string, error) {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v), nil
	case model.EmploymentStatus:
		return string(v), nil
	case model.LoanPurpose:
		return string(v), nil
	default:
		return "", model.NewValidationError(string(field), fmt.Sprintf("expected string, got %T", raw))
	}
}

// employmentSynonymOrder maps free-form phrases to canonical EmploymentStatus
// values (spec §4.5). Matching is case-insensitive substring containment,
// checked in map-iteration-independent priority via the ordered slice
// below so longer, more specific phrases are tried first.
var employmentSynonymOrder = []struct {
	phrase string
	status model.EmploymentStatus
}{
	{"self employed", model.EmploymentSelfEmployed},
	{"self-employed", model.EmploymentSelfEmployed},
	{"business owner", model.EmploymentSelfEmployed},
	{"entrepreneur", model.EmploymentSelfEmployed},
	{"freelance", model.EmploymentFreelancer},
	{"contractor", model.EmploymentFreelancer},
	{"gig", model.EmploymentFreelancer},
	{"student", model.EmploymentStudent},
	{"studying", model.EmploymentStudent},
	{"unemployed", model.EmploymentUnemployed},
	{"jobless", model.EmploymentUnemployed},
	{"between jobs", model.EmploymentUnemployed},
	{"software engineer", model.EmploymentSalaried},
	{"engineer", model.EmploymentSalaried},
	{"employed", model.EmploymentSalaried},
	{"salaried", model.EmploymentSalaried},
	{"job", model.EmploymentSalaried},
	{"working", model.EmploymentSalaried},
}

// CanonicalizeEmploymentStatus canonicalises a free-form phrase into an
// EmploymentStatus, or returns "" when nothing matches (spec §4.5: unknown
// strings are discarded, not substituted).
func CanonicalizeEmploymentStatus(raw string) model.EmploymentStatus {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if status := model.EmploymentStatus(s); isValidEmploymentStatus(status) {
		return status
	}
	for _, e := range employmentSynonymOrder {
		if strings.Contains(s, e.phrase) {
			return e.status
		}
	}
	return ""
}

func isValidEmploymentStatus(s model.EmploymentStatus) bool {
	return model.ValidateEmploymentStatus(s) == nil
}

// loanPurposeSynonymOrder maps free-form phrases to canonical LoanPurpose
// values (spec §4.5). Ordered most-specific-first so e.g. "business loan
// for a car" still resolves to vehicle only when "car" appears without a
// stronger business-purpose signal earlier in the list.
var loanPurposeSynonymOrder = []struct {
	phrase  string
	purpose model.LoanPurpose
}{
	{"startup", model.PurposeStartup},
	{"start-up", model.PurposeStartup},
	{"new business", model.PurposeStartup},
	{"eco", model.PurposeEco},
	{"solar", model.PurposeEco},
	{"green", model.PurposeEco},
	{"electric vehicle", model.PurposeEco},
	{"gold", model.PurposeGoldBacked},
	{"emergency", model.PurposeEmergency},
	{"medical", model.PurposeEmergency},
	{"hospital", model.PurposeEmergency},
	{"business", model.PurposeBusiness},
	{"shop", model.PurposeBusiness},
	{"mba", model.PurposeEducation},
	{"study", model.PurposeEducation},
	{"studies", model.PurposeEducation},
	{"college", model.PurposeEducation},
	{"tuition", model.PurposeEducation},
	{"education", model.PurposeEducation},
	{"home", model.PurposeHome},
	{"house", model.PurposeHome},
	{"apartment", model.PurposeHome},
	{"flat", model.PurposeHome},
	{"bmw", model.PurposeVehicle},
	{"car", model.PurposeVehicle},
	{"bike", model.PurposeVehicle},
	{"vehicle", model.PurposeVehicle},
	{"auto", model.PurposeVehicle},
	{"personal", model.PurposePersonal},
}

// CanonicalizeLoanPurpose canonicalises a free-form phrase into a
// LoanPurpose, or returns "" when nothing matches.
func CanonicalizeLoanPurpose(raw string) model.LoanPurpose {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if purpose := model.LoanPurpose(s); isValidLoanPurpose(purpose) {
		return purpose
	}
	for _, p := range loanPurposeSynonymOrder {
		if strings.Contains(s, p.phrase) {
			return p.purpose
		}
	}
	return ""
}

func isValidLoanPurpose(p model.LoanPurpose) bool {
	return model.ValidateLoanPurpose(p) == nil
}
