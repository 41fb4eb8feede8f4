// Package tracker implements the per-session parameter collection state
// machine (spec §4.3, component C3): value normalisation, validation, and
// atomic persistence of the five required loan parameters plus the two
// optional ones.
package tracker

import (
	"github.com/vulbsti/loanmatchmaker/model"
	"github.com/vulbsti/loanmatchmaker/store"
)

// ParameterTracker drives LoanParameters/ParameterTracking reads and
// writes through a SessionStore. It holds no session state itself; the
// store is the single source of truth, so a ParameterTracker is cheap to
// construct and safe to share.
type ParameterTracker struct {
	store store.SessionStore
}

// New returns a ParameterTracker backed by the given store.
func New(s store.SessionStore) *ParameterTracker {
	return &ParameterTracker{store: s}
}

// Get returns the current parameters and tracking row for a session.
func (t *ParameterTracker) Get(sessionID string) (model.LoanParameters, model.ParameterTracking, error) {
	return t.store.GetParameters(sessionID)
}

// Missing returns the required fields not yet set, in fixed priority order.
func (t *ParameterTracker) Missing(sessionID string) ([]model.Field, error) {
	_, tracking, err := t.store.GetParameters(sessionID)
	if err != nil {
		return nil, err
	}
	return tracking.Missing(), nil
}

// IsComplete reports whether all five required fields are set.
func (t *ParameterTracker) IsComplete(sessionID string) (bool, error) {
	_, tracking, err := t.store.GetParameters(sessionID)
	if err != nil {
		return false, err
	}
	return tracking.IsComplete(), nil
}

// Set normalises and validates raw for field, then persists the value and
// the corresponding tracking boolean atomically. On validation failure the
// stored parameters and tracking are left untouched and the returned error
// has Kind == model.KindValidation. Setting the same value twice is a
// no-op beyond re-persisting identical state (idempotent per spec §4.3).
func (t *ParameterTracker) Set(sessionID string, field model.Field, raw any) (model.LoanParameters, model.ParameterTracking, error) {
	params, tracking, err := t.store.GetParameters(sessionID)
	if err != nil {
		return params, tracking, err
	}

	newParams := params
	switch field {
	case model.FieldLoanAmount:
		v, verr := CoerceAmount(raw)
		if verr != nil {
			return params, tracking, verr
		}
		if verr := model.ValidateLoanAmount(v); verr != nil {
			return params, tracking, verr
		}
		newParams.LoanAmount = &v

	case model.FieldAnnualIncome:
		v, verr := CoerceAmount(raw)
		if verr != nil {
			return params, tracking, verr
		}
		if verr := model.ValidateAnnualIncome(v); verr != nil {
			return params, tracking, verr
		}
		newParams.AnnualIncome = &v

	case model.FieldEmploymentStatus:
		v, verr := coerceString(raw, field)
		if verr != nil {
			return params, tracking, verr
		}
		status := CanonicalizeEmploymentStatus(v)
		if status == "" {
			return params, tracking, model.NewValidationError(string(field), "unrecognised employmentStatus value")
		}
		if verr := model.ValidateEmploymentStatus(status); verr != nil {
			return params, tracking, verr
		}
		newParams.EmploymentStatus = &status

	case model.FieldCreditScore:
		v, verr := coerceInt(raw, field)
		if verr != nil {
			return params, tracking, verr
		}
		if verr := model.ValidateCreditScore(v); verr != nil {
			return params, tracking, verr
		}
		newParams.CreditScore = &v

	case model.FieldLoanPurpose:
		v, verr := coerceString(raw, field)
		if verr != nil {
			return params, tracking, verr
		}
		purpose := CanonicalizeLoanPurpose(v)
		if purpose == "" {
			return params, tracking, model.NewValidationError(string(field), "unrecognised loanPurpose value")
		}
		if verr := model.ValidateLoanPurpose(purpose); verr != nil {
			return params, tracking, verr
		}
		newParams.LoanPurpose = &purpose

	case model.FieldDebtToIncomeRatio:
		v, verr := coerceFloat(raw, field)
		if verr != nil {
			return params, tracking, verr
		}
		if verr := model.ValidateDebtToIncomeRatio(v); verr != nil {
			return params, tracking, verr
		}
		newParams.DebtToIncomeRatio = &v

	case model.FieldEmploymentDuration:
		v, verr := coerceInt(raw, field)
		if verr != nil {
			return params, tracking, verr
		}
		if verr := model.ValidateEmploymentDuration(v); verr != nil {
			return params, tracking, verr
		}
		newParams.EmploymentDuration = &v

	default:
		return params, tracking, model.NewNotFoundError("unknown field: " + string(field))
	}

	newTracking := tracking
	if isRequired(field) {
		newTracking = tracking.WithSet(field)
	}

	if err := t.store.SaveParameters(sessionID, newParams, newTracking); err != nil {
		return params, tracking, err
	}
	return newParams, newTracking, nil
}

func isRequired(f model.Field) bool {
	for _, rf := range model.RequiredFieldOrder {
		if rf == f {
			return true
		}
	}
	return false
}
