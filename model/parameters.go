package model

import "fmt"

// EmploymentStatus enumerates the allowed values of LoanParameters.EmploymentStatus (spec §3).
type EmploymentStatus string

const (
	EmploymentSalaried      EmploymentStatus = "salaried"
	EmploymentSelfEmployed  EmploymentStatus = "self-employed"
	EmploymentFreelancer    EmploymentStatus = "freelancer"
	EmploymentStudent       EmploymentStatus = "student"
	EmploymentUnemployed    EmploymentStatus = "unemployed"
)

var validEmploymentStatuses = map[EmploymentStatus]bool{
	EmploymentSalaried:     true,
	EmploymentSelfEmployed: true,
	EmploymentFreelancer:   true,
	EmploymentStudent:      true,
	EmploymentUnemployed:   true,
}

// LoanPurpose enumerates the allowed values of LoanParameters.LoanPurpose (spec §3).
type LoanPurpose string

const (
	PurposeHome        LoanPurpose = "home"
	PurposeVehicle      LoanPurpose = "vehicle"
	PurposeEducation    LoanPurpose = "education"
	PurposeBusiness     LoanPurpose = "business"
	PurposeStartup      LoanPurpose = "startup"
	PurposeEco          LoanPurpose = "eco"
	PurposeEmergency    LoanPurpose = "emergency"
	PurposeGoldBacked   LoanPurpose = "gold-backed"
	PurposePersonal     LoanPurpose = "personal"
)

var validLoanPurposes = map[LoanPurpose]bool{
	PurposeHome:      true,
	PurposeVehicle:   true,
	PurposeEducation: true,
	PurposeBusiness:  true,
	PurposeStartup:   true,
	PurposeEco:       true,
	PurposeEmergency: true,
	PurposeGoldBacked: true,
	PurposePersonal:  true,
}

// Field identifies one of the five required parameters, used for the
// fixed priority ordering in spec §4.3 `missing`.
type Field string

const (
	FieldLoanAmount        Field = "loanAmount"
	FieldAnnualIncome       Field = "annualIncome"
	FieldEmploymentStatus   Field = "employmentStatus"
	FieldCreditScore        Field = "creditScore"
	FieldLoanPurpose        Field = "loanPurpose"
	FieldDebtToIncomeRatio  Field = "debtToIncomeRatio"
	FieldEmploymentDuration Field = "employmentDuration"
)

// RequiredFieldOrder is the sole tie-break used when deciding which
// missing parameter to ask for next (spec §4.3).
var RequiredFieldOrder = []Field{
	FieldLoanAmount,
	FieldAnnualIncome,
	FieldEmploymentStatus,
	FieldCreditScore,
	FieldLoanPurpose,
}

// Bounds from spec §3.
const (
	MinLoanAmount  = 100_000
	MaxLoanAmount  = 100_000_000
	MinAnnualIncome = 100_000
	MaxAnnualIncome = 50_000_000
	MinCreditScore  = 300
	MaxCreditScore  = 850
)

// LoanParameters holds the five required and two optional structured
// fields the orchestrator collects over a conversation (spec §3).
type LoanParameters struct {
	LoanAmount        *int64
	AnnualIncome      *int64
	EmploymentStatus  *EmploymentStatus
	CreditScore       *int
	LoanPurpose       *LoanPurpose
	DebtToIncomeRatio *float64
	EmploymentDuration *int
}

// ValidateLoanAmount checks the field domain from spec §3.
func ValidateLoanAmount(v int64) error {
	if v < MinLoanAmount || v > MaxLoanAmount {
		return NewValidationError(string(FieldLoanAmount), fmt.Sprintf("loanAmount %d out of bounds [%d, %d]", v, MinLoanAmount, MaxLoanAmount))
	}
	return nil
}

// ValidateAnnualIncome checks the field domain from spec §3.
func ValidateAnnualIncome(v int64) error {
	if v < MinAnnualIncome || v > MaxAnnualIncome {
		return NewValidationError(string(FieldAnnualIncome), fmt.Sprintf("annualIncome %d out of bounds [%d, %d]", v, MinAnnualIncome, MaxAnnualIncome))
	}
	return nil
}

// ValidateEmploymentStatus checks the field domain from spec §3.
func ValidateEmploymentStatus(v EmploymentStatus) error {
	if !validEmploymentStatuses[v] {
		return NewValidationError(string(FieldEmploymentStatus), fmt.Sprintf("unknown employmentStatus %q", v))
	}
	return nil
}

// ValidateCreditScore checks the field domain from spec §3.
func ValidateCreditScore(v int) error {
	if v < MinCreditScore || v > MaxCreditScore {
		return NewValidationError(string(FieldCreditScore), fmt.Sprintf("creditScore %d out of bounds [%d, %d]", v, MinCreditScore, MaxCreditScore))
	}
	return nil
}

// ValidateLoanPurpose checks the field domain from spec §3.
func ValidateLoanPurpose(v LoanPurpose) error {
	if !validLoanPurposes[v] {
		return NewValidationError(string(FieldLoanPurpose), fmt.Sprintf("unknown loanPurpose %q", v))
	}
	return nil
}

// ValidateDebtToIncomeRatio checks the optional field domain from spec §3.
func ValidateDebtToIncomeRatio(v float64) error {
	if v < 0 || v > 1 {
		return NewValidationError(string(FieldDebtToIncomeRatio), fmt.Sprintf("debtToIncomeRatio %f out of bounds [0,1]", v))
	}
	return nil
}

// ValidateEmploymentDuration checks the optional field domain from spec §3.
func ValidateEmploymentDuration(v int) error {
	if v < 0 {
		return NewValidationError(string(FieldEmploymentDuration), fmt.Sprintf("employmentDuration %d must be >= 0", v))
	}
	return nil
}
