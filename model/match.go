package model

import "time"

// LenderMatch is a per-(session,lender) scoring result (spec §3). Derived;
// ScoringEngine owns these rows and replaces all of a session's rows
// atomically on each run.
type LenderMatch struct {
	SessionID           string
	LenderID            string
	LenderName          string
	EligibilityScore    int
	AffordabilityScore  int
	SpecializationScore int
	FinalScore          int
	Confidence          int
	Reasons             []string
	Warnings            []string
	Rank                int
	Path                string // "rule" or "neural", for diagnostics only
	CalculatedAt        time.Time
}
