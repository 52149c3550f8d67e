package insights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/TobiSchelling/KeywordGap/internal/gap"
	"github.com/TobiSchelling/KeywordGap/internal/llm"
)

// UnavailableText is returned when no LLM provider is configured.
const UnavailableText = "AI analysis unavailable - no LLM provider configured"

// ErrorPrefix starts the text of a failed insight.
const ErrorPrefix = "Error generating insights: "

// topN is how many keywords per category the prompt lists.
const topN = 5

const analysisPrompt = `You are an expert SEO strategist conducting a comprehensive keyword gap analysis.

Based on the following data, provide strategic insights and actionable recommendations.

%s
Focus on actionable insights that will drive organic visibility improvements.

Respond with ONLY this JSON:
{
    "executive_summary": "Key findings in 2-3 paragraphs. Use markdown for emphasis.",
    "immediate_actions": ["Action for the next 30 days"],
    "medium_term_strategy": ["Step for the next 3 months"],
    "long_term_investments": ["Longer-term opportunity"],
    "content_calendar": ["Content piece and target keyword"],
    "technical_priorities": ["Technical SEO task"]
}`

// section maps a JSON key of the reply onto a markdown heading.
type section struct {
	key   string
	title string
}

var sections = []section{
	{"immediate_actions", "Immediate Actions (next 30 days)"},
	{"medium_term_strategy", "Medium-Term Strategy (next 3 months)"},
	{"long_term_investments", "Long-Term Investments"},
	{"content_calendar", "Content Calendar"},
	{"technical_priorities", "Technical SEO Priorities"},
}

// Insight is the outcome of one generation attempt. Text is always set and
// safe to display.
type Insight struct {
	Text        string
	Provider    string
	Failed      bool
	Unavailable bool
	Duration    time.Duration
}

// Generator turns engine output into strategy recommendations.
type Generator struct {
	provider  llm.Provider
	maxTokens int
	timeout   time.Duration
}

// NewGenerator creates a generator. provider may be nil.
func NewGenerator(provider llm.Provider, maxTokens int, timeout time.Duration) *Generator {
	return &Generator{provider: provider, maxTokens: maxTokens, timeout: timeout}
}

// Available reports whether a provider is set.
func (g *Generator) Available() bool {
	return g != nil && g.provider != nil
}

// Generate asks the provider for recommendations on res. It never returns an
// error: failures are reported through Insight.Failed and the text.
func (g *Generator) Generate(ctx context.Context, res *gap.Result) (ins Insight) {
	if !g.Available() {
		return Insight{Text: UnavailableText, Unavailable: true}
	}

	ins.Provider = g.provider.Name()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			ins.Text = ErrorPrefix + fmt.Sprint(r)
			ins.Failed = true
		}
		ins.Duration = time.Since(start)
	}()

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	reply, err := g.provider.Generate(ctx, BuildPrompt(res), g.maxTokens)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = errors.New("empty response")
	}
	if err != nil {
		slog.Warn("insight generation failed", "provider", ins.Provider, "error", err)
		ins.Text = ErrorPrefix + err.Error()
		ins.Failed = true
		return ins
	}

	ins.Text = assemble(reply)
	slog.Info("insights generated", "provider", ins.Provider, "chars", len(ins.Text))
	return ins
}

// assemble renders a JSON reply as markdown, or returns the reply verbatim
// when it is not the requested JSON.
func assemble(reply string) string {
	parsed := llm.ParseJSONResponse(reply)
	if parsed == nil {
		return strings.TrimSpace(reply)
	}

	var b strings.Builder
	if s := getStr(parsed, "executive_summary"); s != "" {
		b.WriteString("### Executive Summary\n\n")
		b.WriteString(s)
		b.WriteString("\n\n")
	}
	for _, sec := range sections {
		items := getList(parsed, sec.key)
		if len(items) == 0 {
			continue
		}
		fmt.Fprintf(&b, "### %s\n\n", sec.title)
		for _, it := range items {
			fmt.Fprintf(&b, "- %s\n", it)
		}
		b.WriteString("\n")
	}

	out := strings.TrimSpace(b.String())
	if out == "" {
		return strings.TrimSpace(reply)
	}
	return out
}

func getStr(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func getList(m map[string]any, key string) []string {
	switch v := m[key].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	return nil
}

// BuildPrompt summarizes a result for the LLM: both sides' overview, the
// size of each category and its top keywords.
func BuildPrompt(res *gap.Result) string {
	p := message.NewPrinter(language.English)
	var b strings.Builder

	side := func(title string, m gap.SideMetrics) {
		p.Fprintf(&b, "%s OVERVIEW:\n", title)
		p.Fprintf(&b, "- Total Keywords: %d\n", m.TotalKeywords)
		p.Fprintf(&b, "- Average Position: %.2f\n", m.AvgPosition)
		p.Fprintf(&b, "- Total Traffic: %.0f\n", m.TotalTraffic)
		p.Fprintf(&b, "- Traffic Cost: $%.2f\n\n", m.TotalTrafficCost)
	}
	side("CLIENT", res.Summary.Client)
	side("COMPETITOR", res.Summary.Competitor)

	c := res.Classification
	p.Fprintf(&b, "MARKET SHARE: client %.1f%%, competitor %.1f%%\n\n",
		res.Summary.MarketShare.ClientPct, res.Summary.MarketShare.CompetitorPct)

	b.WriteString("KEY OPPORTUNITIES:\n")
	p.Fprintf(&b, "Quick Wins (client ranks 6-10, competitor ranks 1-5): %d\n", len(c.QuickWins))
	p.Fprintf(&b, "Steal Opportunities (client ranks 11+ or absent, competitor ranks 1-5): %d\n", len(c.StealOpportunities))
	p.Fprintf(&b, "Defensive Keywords (client ranks 1-5, competitor close behind): %d\n", len(c.Defensive))
	p.Fprintf(&b, "Client Wins (client outranks competitor on page one): %d\n", len(c.ClientWins))
	p.Fprintf(&b, "Content Gaps: TOFU %d, MOFU %d, BOFU %d\n\n",
		len(c.ContentGaps.TOFU), len(c.ContentGaps.MOFU), len(c.ContentGaps.BOFU))

	b.WriteString("TOP KEYWORDS BY CATEGORY:\n")
	lists := []struct {
		name string
		opps []gap.Opportunity
	}{
		{"QUICK WINS", c.QuickWins},
		{"STEAL OPPORTUNITIES", c.StealOpportunities},
		{"DEFENSIVE KEYWORDS", c.Defensive},
		{"TRENDING", c.Trending},
	}
	for _, l := range lists {
		if len(l.opps) == 0 {
			continue
		}
		p.Fprintf(&b, "\n%s:\n", l.name)
		for _, o := range l.opps[:min(topN, len(l.opps))] {
			p.Fprintf(&b, "- %s (Volume: %d, Difficulty: %.0f)\n", o.Keyword, o.SearchVolume, o.Difficulty)
		}
	}

	return fmt.Sprintf(analysisPrompt, b.String())
}
