package model

// Lender is a static catalogue record (spec §3). Read-mostly after boot;
// LenderCatalogue is the sole owner.
type Lender struct {
	ID                 string           `yaml:"id"`
	Name               string           `yaml:"name"`
	InterestRate       float64          `yaml:"interestRate"`
	MinLoanAmount      int64            `yaml:"minLoanAmount"`
	MaxLoanAmount      int64            `yaml:"maxLoanAmount"`
	MinIncome          int64            `yaml:"minIncome"`
	MinCreditScore     int              `yaml:"minCreditScore"`
	EmploymentTypes    []string         `yaml:"employmentTypes"` // "any" = universal
	LoanPurpose        *LoanPurpose     `yaml:"loanPurpose,omitempty"`
	SpecialEligibility string           `yaml:"specialEligibility,omitempty"`
	ProcessingTimeDays int              `yaml:"processingTimeDays"`
	Features           []string         `yaml:"features"`
}

// AcceptsEmployment reports whether the lender accepts the given
// employment status (spec §4.8 eligibility check 4).
func (l Lender) AcceptsEmployment(status EmploymentStatus) bool {
	for _, t := range l.EmploymentTypes {
		if t == "any" || EmploymentStatus(t) == status {
			return true
		}
	}
	return false
}

// HasFeature reports whether the lender's feature set contains tag.
func (l Lender) HasFeature(tag string) bool {
	for _, f := range l.Features {
		if f == tag {
			return true
		}
	}
	return false
}

// CatalogueRateRange is the documented reference range used to invert
// interest rates into an affordability score (spec §4.8).
type CatalogueRateRange struct {
	MinRate float64
	MaxRate float64
}

// DefaultRateRange is the catalogue-wide observed range documented in spec §4.8.
var DefaultRateRange = CatalogueRateRange{MinRate: 2.99, MaxRate: 15.99}
