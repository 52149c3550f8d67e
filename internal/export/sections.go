package export

import (
	"github.com/TobiSchelling/KeywordGap/internal/gap"
	"github.com/TobiSchelling/KeywordGap/internal/keyword"
)

// Section is one exported table.
type Section struct {
	Slug     string
	Title    string
	Category gap.Category
	Rows     []gap.Opportunity
}

// Sections lists every table of a result in workbook order.
func Sections(res *gap.Result) []Section {
	c := res.Classification
	out := []Section{
		{"priority_matrix", "Priority Matrix", "", c.PriorityMatrix()},
		{"quick_wins", "Quick Wins", gap.QuickWin, c.QuickWins},
		{"steal_opportunities", "Steal Opportunities", gap.StealOpportunity, c.StealOpportunities},
		{"client_wins", "Client Wins", gap.ClientWin, c.ClientWins},
		{"defensive", "Defensive Keywords", gap.Defensive, c.Defensive},
	}
	for _, st := range keyword.Stages {
		out = append(out, Section{
			Slug:     string(st) + "_gaps",
			Title:    st.Label() + " Gaps",
			Category: gap.ContentGap,
			Rows:     c.ContentGaps.ByStage(st),
		})
	}
	return append(out, Section{"trending", "Trending", gap.Trending, c.Trending})
}

// SectionBySlug finds one table by its slug.
func SectionBySlug(res *gap.Result, slug string) (Section, bool) {
	for _, s := range Sections(res) {
		if s.Slug == slug {
			return s, true
		}
	}
	return Section{}, false
}

// Slugs lists the slug of every table.
func Slugs() []string {
	secs := Sections(&gap.Result{})
	out := make([]string, len(secs))
	for i, s := range secs {
		out[i] = s.Slug
	}
	return out
}
