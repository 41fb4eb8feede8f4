// Package viz renders a ranked bar chart of a session's lender matches.
// Grounded on the teacher's visualize/graph.go: same go-echarts component
// construction (charts.With...Opts, opts.Initialization) and
// components.Page/SaveToFile rendering shape, repurposed from a
// force-directed knowledge graph to a grouped bar chart of match scores.
package viz

import (
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/vulbsti/loanmatchmaker/model"
)

// MatchChartRenderer builds a bar chart comparing ranked lender matches.
type MatchChartRenderer struct{}

// NewMatchChartRenderer returns a MatchChartRenderer.
func NewMatchChartRenderer() *MatchChartRenderer {
	return &MatchChartRenderer{}
}

// Build constructs the go-echarts bar chart for a ranked set of matches.
// Matches are expected already sorted by Rank ascending (ScoringEngine's
// output order); Build does not re-sort.
func (r *MatchChartRenderer) Build(title string, matches []model.LenderMatch) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("%d lenders matched", len(matches)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithInitializationOpts(opts.Initialization{
			Width:  "1000px",
			Height: "600px",
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Lender"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Score", Min: 0, Max: 100}),
	)

	if len(matches) == 0 {
		return bar
	}

	names := make([]string, 0, len(matches))
	final := make([]opts.BarData, 0, len(matches))
	eligibility := make([]opts.BarData, 0, len(matches))
	affordability := make([]opts.BarData, 0, len(matches))
	specialization := make([]opts.BarData, 0, len(matches))

	for _, m := range matches {
		names = append(names, fmt.Sprintf("#%d %s", m.Rank, m.LenderName))
		final = append(final, opts.BarData{Value: m.FinalScore})
		eligibility = append(eligibility, opts.BarData{Value: m.EligibilityScore})
		affordability = append(affordability, opts.BarData{Value: m.AffordabilityScore})
		specialization = append(specialization, opts.BarData{Value: m.SpecializationScore})
	}

	bar.SetXAxis(names).
		AddSeries("Final Score", final).
		AddSeries("Eligibility", eligibility).
		AddSeries("Affordability", affordability).
		AddSeries("Specialization", specialization).
		SetSeriesOptions(charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))

	return bar
}

// Render writes the chart page to w.
func (r *MatchChartRenderer) Render(w io.Writer, title string, matches []model.LenderMatch) error {
	bar := r.Build(title, matches)
	page := components.NewPage()
	page.AddCharts(bar)
	return page.Render(w)
}

// SaveToFile renders the chart page to filename.
func (r *MatchChartRenderer) SaveToFile(filename, title string, matches []model.LenderMatch) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("viz: create %s: %w", filename, err)
	}
	defer f.Close()
	return r.Render(f, title, matches)
}
