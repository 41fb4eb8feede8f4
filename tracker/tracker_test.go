package tracker

import (
	"testing"

	"github.com/vulbsti/loanmatchmaker/model"
	"github.com/vulbsti/loanmatchmaker/store"
)

func newTestTracker(t *testing.T) (*ParameterTracker, string) {
	t.Helper()
	s := store.NewMemoryStore()
	sess, err := s.Open(nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return New(s), sess.SessionID
}

func TestSetLoanAmountCroreNormalisation(t *testing.T) {
	tr, sid := newTestTracker(t)

	params, tracking, err := tr.Set(sid, model.FieldLoanAmount, 2.0)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if params.LoanAmount == nil || *params.LoanAmount != 20_000_000 {
		t.Fatalf("LoanAmount = %v, want 20000000", params.LoanAmount)
	}
	if !tracking.HasLoanAmount {
		t.Fatalf("HasLoanAmount not set")
	}
	if tracking.CompletionPercent() != 20 {
		t.Fatalf("CompletionPercent = %d, want 20", tracking.CompletionPercent())
	}
}

func TestSetLoanAmountLakhNormalisation(t *testing.T) {
	tr, sid := newTestTracker(t)

	params, _, err := tr.Set(sid, model.FieldLoanAmount, 50.0)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if *params.LoanAmount != 5_000_000 {
		t.Fatalf("LoanAmount = %d, want 5000000", *params.LoanAmount)
	}
}

func TestSetLoanAmountAlreadyINR(t *testing.T) {
	tr, sid := newTestTracker(t)

	params, _, err := tr.Set(sid, model.FieldLoanAmount, 2_000_000.0)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if *params.LoanAmount != 2_000_000 {
		t.Fatalf("LoanAmount = %d, want 2000000", *params.LoanAmount)
	}
}

func TestSetInvalidValueLeavesStateUnchanged(t *testing.T) {
	tr, sid := newTestTracker(t)

	if _, _, err := tr.Set(sid, model.FieldCreditScore, 950); err == nil {
		t.Fatalf("expected validation error for creditScore=950")
	}

	params, tracking, err := tr.Get(sid)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if params.CreditScore != nil {
		t.Fatalf("CreditScore should remain unset, got %v", *params.CreditScore)
	}
	if tracking.HasCreditScore {
		t.Fatalf("HasCreditScore should remain false")
	}
}

func TestEmploymentStatusSynonym(t *testing.T) {
	tr, sid := newTestTracker(t)

	params, _, err := tr.Set(sid, model.FieldEmploymentStatus, "software engineer")
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if params.EmploymentStatus == nil || *params.EmploymentStatus != model.EmploymentSalaried {
		t.Fatalf("EmploymentStatus = %v, want salaried", params.EmploymentStatus)
	}
}

func TestLoanPurposeSynonym(t *testing.T) {
	tr, sid := newTestTracker(t)

	params, _, err := tr.Set(sid, model.FieldLoanPurpose, "BMW")
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if params.LoanPurpose == nil || *params.LoanPurpose != model.PurposeVehicle {
		t.Fatalf("LoanPurpose = %v, want vehicle", params.LoanPurpose)
	}
}

func TestMissingOrder(t *testing.T) {
	tr, sid := newTestTracker(t)

	if _, _, err := tr.Set(sid, model.FieldLoanAmount, 500_000.0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	missing, err := tr.Missing(sid)
	if err != nil {
		t.Fatalf("Missing: %v", err)
	}
	want := []model.Field{
		model.FieldAnnualIncome,
		model.FieldEmploymentStatus,
		model.FieldCreditScore,
		model.FieldLoanPurpose,
	}
	if len(missing) != len(want) {
		t.Fatalf("Missing() = %v, want %v", missing, want)
	}
	for i := range want {
		if missing[i] != want[i] {
			t.Fatalf("Missing()[%d] = %v, want %v", i, missing[i], want[i])
		}
	}
}

func TestIsCompleteAfterAllFiveFields(t *testing.T) {
	tr, sid := newTestTracker(t)

	steps := []struct {
		field model.Field
		value any
	}{
		{model.FieldLoanAmount, 2_000_000.0},
		{model.FieldAnnualIncome, 1_500_000.0},
		{model.FieldEmploymentStatus, "salaried"},
		{model.FieldCreditScore, 760},
		{model.FieldLoanPurpose, "vehicle"},
	}
	for _, st := range steps {
		if _, _, err := tr.Set(sid, st.field, st.value); err != nil {
			t.Fatalf("Set(%v): %v", st.field, err)
		}
	}

	complete, err := tr.IsComplete(sid)
	if err != nil {
		t.Fatalf("IsComplete: %v", err)
	}
	if !complete {
		t.Fatalf("expected IsComplete true after all five fields set")
	}
}

func TestUnrecognisedSynonymRejected(t *testing.T) {
	tr, sid := newTestTracker(t)

	if _, _, err := tr.Set(sid, model.FieldLoanPurpose, "spaceship"); err == nil {
		t.Fatalf("expected error for unrecognised loanPurpose")
	}
}
