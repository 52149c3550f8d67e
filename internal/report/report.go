// Package report assembles a markdown write-up of an analysis run and
// renders it to HTML.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/TobiSchelling/KeywordGap/internal/export"
	"github.com/TobiSchelling/KeywordGap/internal/gap"
	"github.com/TobiSchelling/KeywordGap/internal/insights"
)

// MaxRows caps the rows shown per category table.
const MaxRows = 20

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Markdown builds the report for res. ins may be nil.
func Markdown(res *gap.Result, ins *insights.Insight) string {
	var b strings.Builder
	s := res.Summary

	b.WriteString("# Keyword Gap Analysis\n\n")
	fmt.Fprintf(&b, "Run `%s`, generated %s.\n\n", res.RunID, res.CreatedAt.Format("2006-01-02 15:04"))

	b.WriteString("## Executive Summary\n\n")
	b.WriteString("| Metric | Client | Competitor |\n|---|---:|---:|\n")
	fmt.Fprintf(&b, "| Total keywords | %d | %d |\n", s.Client.TotalKeywords, s.Competitor.TotalKeywords)
	fmt.Fprintf(&b, "| Average position | %s | %s |\n", avg(s.Client), avg(s.Competitor))
	fmt.Fprintf(&b, "| Total traffic | %.0f | %.0f |\n", s.Client.TotalTraffic, s.Competitor.TotalTraffic)
	fmt.Fprintf(&b, "| Traffic value | $%.2f | $%.2f |\n", s.Client.TotalTrafficCost, s.Competitor.TotalTrafficCost)
	fmt.Fprintf(&b, "| Top 3 | %d | %d |\n", s.Client.Top3Count, s.Competitor.Top3Count)
	fmt.Fprintf(&b, "| Top 10 | %d | %d |\n", s.Client.Top10Count, s.Competitor.Top10Count)
	fmt.Fprintf(&b, "| Position 11+ | %d | %d |\n", s.Client.Beyond10Count, s.Competitor.Beyond10Count)
	fmt.Fprintf(&b, "| Market share | %.1f%% | %.1f%% |\n\n", s.MarketShare.ClientPct, s.MarketShare.CompetitorPct)
	fmt.Fprintf(&b, "**Opportunity score:** %.0f\n\n", s.OpportunityScore)

	c := res.Classification
	b.WriteString("## Opportunities\n\n")
	fmt.Fprintf(&b, "- Quick Wins: %d\n- Steal Opportunities: %d\n- Defensive Keywords: %d\n- Client Wins: %d\n- Content Gaps: %d\n- Trending: %d\n\n",
		len(c.QuickWins), len(c.StealOpportunities), len(c.Defensive), len(c.ClientWins), c.ContentGaps.Total(), len(c.Trending))

	for _, sec := range export.Sections(res) {
		if sec.Slug == "priority_matrix" {
			continue
		}
		fmt.Fprintf(&b, "### %s (%d)\n\n", sec.Title, len(sec.Rows))
		if len(sec.Rows) == 0 {
			b.WriteString("_None found._\n\n")
			continue
		}
		writeTable(&b, sec.Category, sec.Rows)
	}

	if ins != nil {
		b.WriteString("## AI Insights\n\n")
		if ins.Provider != "" {
			fmt.Fprintf(&b, "_Generated by %s._\n\n", ins.Provider)
		}
		b.WriteString(ins.Text)
		b.WriteString("\n")
	}

	return b.String()
}

func avg(m gap.SideMetrics) string {
	if !m.HasData {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", m.AvgPosition)
}

func writeTable(b *strings.Builder, cat gap.Category, rows []gap.Opportunity) {
	headers := export.Headers(cat)
	b.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	b.WriteString(strings.Repeat("|---", len(headers)) + "|\n")

	for _, o := range rows[:min(MaxRows, len(rows))] {
		cells := export.Row(cat, o)
		out := make([]string, len(cells))
		for i, v := range cells {
			out[i] = cellText(v)
		}
		b.WriteString("| " + strings.Join(out, " | ") + " |\n")
	}
	if len(rows) > MaxRows {
		fmt.Fprintf(b, "\n_%d more rows in the full export._\n", len(rows)-MaxRows)
	}
	b.WriteString("\n")
}

func cellText(v any) string {
	s := export.FormatCell(v)
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// HTML renders markdown to HTML. Raw HTML in the input is not passed through.
func HTML(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(text) + "</pre>")
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Document wraps rendered markdown in a standalone HTML page.
func Document(title, text string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 1100px; margin: 2rem auto; padding: 0 1rem; color: #222; }
table { border-collapse: collapse; margin: 1rem 0; font-size: 0.9rem; }
th, td { border: 1px solid #ddd; padding: 0.3rem 0.6rem; }
th { background: #f4f4f4; }
</style>
</head>
<body>
%s
</body>
</html>
`, template.HTMLEscapeString(title), HTML(text))
}
