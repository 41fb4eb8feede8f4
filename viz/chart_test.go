package viz

import (
	"strings"
	"testing"
	"time"

	"github.com/vulbsti/loanmatchmaker/model"
)

func sampleMatches() []model.LenderMatch {
	return []model.LenderMatch{
		{SessionID: "s1", LenderID: "lender-1", LenderName: "Test Bank", EligibilityScore: 100, AffordabilityScore: 80, SpecializationScore: 70, FinalScore: 87, Confidence: 90, Rank: 1, Path: "rule", CalculatedAt: time.Unix(0, 0)},
		{SessionID: "s1", LenderID: "lender-2", LenderName: "EduFund", EligibilityScore: 100, AffordabilityScore: 60, SpecializationScore: 90, FinalScore: 79, Confidence: 85, Rank: 2, Path: "rule", CalculatedAt: time.Unix(0, 0)},
	}
}

func TestBuildEmptyMatches(t *testing.T) {
	r := NewMatchChartRenderer()
	bar := r.Build("Your Matches", nil)
	if bar == nil {
		t.Fatalf("Build returned nil")
	}
}

func TestRenderContainsLenderNames(t *testing.T) {
	r := NewMatchChartRenderer()
	var sb strings.Builder
	if err := r.Render(&sb, "Your Matches", sampleMatches()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := sb.String()
	if !strings.Contains(out, "Test Bank") {
		t.Fatalf("rendered output missing lender name")
	}
	if !strings.Contains(out, "Final Score") {
		t.Fatalf("rendered output missing series name")
	}
}

func TestSaveToFile(t *testing.T) {
	r := NewMatchChartRenderer()
	path := t.TempDir() + "/matches.html"
	if err := r.SaveToFile(path, "Your Matches", sampleMatches()); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}
}
