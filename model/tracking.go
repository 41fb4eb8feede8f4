package model

// ParameterTracking is the per-session derived completeness record (spec §3).
type ParameterTracking struct {
	HasLoanAmount      bool
	HasAnnualIncome    bool
	HasEmploymentStatus bool
	HasCreditScore     bool
	HasLoanPurpose     bool
}

// CompletionPercent returns 20 * number of true required-field booleans,
// always one of {0,20,40,60,80,100} per spec §3's invariant.
func (t ParameterTracking) CompletionPercent() int {
	n := 0
	if t.HasLoanAmount {
		n++
	}
	if t.HasAnnualIncome {
		n++
	}
	if t.HasEmploymentStatus {
		n++
	}
	if t.HasCreditScore {
		n++
	}
	if t.HasLoanPurpose {
		n++
	}
	return 20 * n
}

// IsComplete reports whether all five required fields are present.
func (t ParameterTracking) IsComplete() bool {
	return t.CompletionPercent() == 100
}

// Has reports whether the given required field is currently set.
func (t ParameterTracking) Has(f Field) bool {
	switch f {
	case FieldLoanAmount:
		return t.HasLoanAmount
	case FieldAnnualIncome:
		return t.HasAnnualIncome
	case FieldEmploymentStatus:
		return t.HasEmploymentStatus
	case FieldCreditScore:
		return t.HasCreditScore
	case FieldLoanPurpose:
		return t.HasLoanPurpose
	default:
		return false
	}
}

// Missing returns the required fields not yet set, in the fixed priority
// order from spec §4.3.
func (t ParameterTracking) Missing() []Field {
	out := make([]Field, 0, len(RequiredFieldOrder))
	for _, f := range RequiredFieldOrder {
		if !t.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Collected returns the required fields already set, in the fixed
// priority order from spec §4.3 (the inverse of Missing).
func (t ParameterTracking) Collected() []Field {
	out := make([]Field, 0, len(RequiredFieldOrder))
	for _, f := range RequiredFieldOrder {
		if t.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// WithSet returns a copy of t with the given required field's boolean set
// to true. Used by tracker.Set to keep the write atomic with the value
// persist.
func (t ParameterTracking) WithSet(f Field) ParameterTracking {
	switch f {
	case FieldLoanAmount:
		t.HasLoanAmount = true
	case FieldAnnualIncome:
		t.HasAnnualIncome = true
	case FieldEmploymentStatus:
		t.HasEmploymentStatus = true
	case FieldCreditScore:
		t.HasCreditScore = true
	case FieldLoanPurpose:
		t.HasLoanPurpose = true
	}
	return t
}
