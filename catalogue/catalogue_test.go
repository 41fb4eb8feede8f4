package catalogue

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "lenders.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

const sampleSeed = `
lenders:
  - id: lender-1
    name: First National
    interestRate: 7.5
    minLoanAmount: 100000
    maxLoanAmount: 5000000
    minIncome: 300000
    minCreditScore: 650
    employmentTypes: [salaried, self-employed]
    processingTimeDays: 3
    features: [premium]
  - id: lender-2
    name: EduFund
    interestRate: 5.5
    minLoanAmount: 100000
    maxLoanAmount: 2000000
    minIncome: 100000
    minCreditScore: 600
    employmentTypes: [any]
    loanPurpose: education
    specialEligibility: student
    processingTimeDays: 5
    features: []
`

func TestLoadAndList(t *testing.T) {
	path := writeSeed(t, sampleSeed)

	cat, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cat.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", cat.Len())
	}

	lenders := cat.List()
	if len(lenders) != 2 {
		t.Fatalf("List() returned %d lenders, want 2", len(lenders))
	}
}

func TestByID(t *testing.T) {
	path := writeSeed(t, sampleSeed)
	cat, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	l, err := cat.ByID("lender-2")
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if l.Name != "EduFund" {
		t.Errorf("Name = %q, want EduFund", l.Name)
	}
	if l.SpecialEligibility != "student" {
		t.Errorf("SpecialEligibility = %q, want student", l.SpecialEligibility)
	}

	if _, err := cat.ByID("nope"); err == nil {
		t.Fatalf("ByID(nope) expected error, got nil")
	}
}

func TestLoadDuplicateID(t *testing.T) {
	path := writeSeed(t, `
lenders:
  - id: dup
    name: A
    interestRate: 5
    minLoanAmount: 100000
    maxLoanAmount: 500000
    minIncome: 100000
    minCreditScore: 600
    employmentTypes: [any]
    processingTimeDays: 1
  - id: dup
    name: B
    interestRate: 6
    minLoanAmount: 100000
    maxLoanAmount: 500000
    minIncome: 100000
    minCreditScore: 600
    employmentTypes: [any]
    processingTimeDays: 1
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for duplicate lender id")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing seed file")
	}
}
