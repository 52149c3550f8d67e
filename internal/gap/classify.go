package gap

import (
	"sort"

	"github.com/samber/lo"

	"github.com/TobiSchelling/KeywordGap/internal/keyword"
)

// Category names an opportunity class.
type Category string

const (
	QuickWin         Category = "quick_win"
	StealOpportunity Category = "steal_opportunity"
	Defensive        Category = "defensive"
	ClientWin        Category = "client_win"
	ContentGap       Category = "content_gap"
	Trending         Category = "trending"
)

// Label returns the display name of the category.
func (c Category) Label() string {
	switch c {
	case QuickWin:
		return "Quick Win"
	case StealOpportunity:
		return "Steal Opportunity"
	case Defensive:
		return "Defensive"
	case ClientWin:
		return "Client Win"
	case ContentGap:
		return "Content Gap"
	case Trending:
		return "Trending"
	}
	return string(c)
}

// MinOpportunityVolume is the search volume floor for Quick Wins, Steal
// Opportunities and trending keywords.
const MinOpportunityVolume = 100

// Opportunity is one classified keyword. Score holds the category's own
// measure: opportunity score for Quick Wins, potential traffic for Steal
// Opportunities, threat level for Defensive keywords and win margin for
// Client Wins. Value is the potential traffic value of a Steal Opportunity.
type Opportunity struct {
	Keyword            string
	Category           Category
	ClientPosition     int
	CompetitorPosition int
	SearchVolume       int
	Difficulty         float64
	CPC                float64
	CompetitorTraffic  float64
	TrafficCost        float64
	Intent             string
	SERPFeatures       string
	Stage              keyword.FunnelStage
	ClientURL          string
	CompetitorURL      string
	Score              float64
	Value              float64
	PriorityScore      float64
}

// ContentGaps groups content gap keywords by funnel stage.
type ContentGaps struct {
	TOFU []Opportunity
	MOFU []Opportunity
	BOFU []Opportunity
}

// ByStage returns the gaps for one stage.
func (g ContentGaps) ByStage(s keyword.FunnelStage) []Opportunity {
	switch s {
	case keyword.StageMOFU:
		return g.MOFU
	case keyword.StageBOFU:
		return g.BOFU
	default:
		return g.TOFU
	}
}

// Total returns the number of gaps across all stages.
func (g ContentGaps) Total() int {
	return len(g.TOFU) + len(g.MOFU) + len(g.BOFU)
}

// Classification is the full set of category tables for one run.
type Classification struct {
	QuickWins          []Opportunity
	StealOpportunities []Opportunity
	Defensive          []Opportunity
	ClientWins         []Opportunity
	ContentGaps        ContentGaps
	Trending           []Opportunity
}

// PriorityMatrix merges Quick Wins, Steal Opportunities and Defensive
// keywords, highest priority first.
func (c Classification) PriorityMatrix() []Opportunity {
	all := make([]Opportunity, 0, len(c.QuickWins)+len(c.StealOpportunities)+len(c.Defensive))
	all = append(all, c.QuickWins...)
	all = append(all, c.StealOpportunities...)
	all = append(all, c.Defensive...)
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].PriorityScore != all[j].PriorityScore {
			return all[i].PriorityScore > all[j].PriorityScore
		}
		return all[i].Keyword < all[j].Keyword
	})
	return all
}

// Counts returns the size of each category table.
func (c Classification) Counts() map[Category]int {
	return map[Category]int{
		QuickWin:         len(c.QuickWins),
		StealOpportunity: len(c.StealOpportunities),
		Defensive:        len(c.Defensive),
		ClientWin:        len(c.ClientWins),
		ContentGap:       c.ContentGaps.Total(),
		Trending:         len(c.Trending),
	}
}

// Classify runs each category pass independently over the joined rows.
func Classify(rows []Joined) Classification {
	return Classification{
		QuickWins:          pass(rows, QuickWin, quickWin),
		StealOpportunities: pass(rows, StealOpportunity, steal),
		Defensive:          pass(rows, Defensive, defensive),
		ClientWins:         pass(rows, ClientWin, clientWin),
		ContentGaps: ContentGaps{
			TOFU: pass(rows, ContentGap, contentGap(keyword.StageTOFU)),
			MOFU: pass(rows, ContentGap, contentGap(keyword.StageMOFU)),
			BOFU: pass(rows, ContentGap, contentGap(keyword.StageBOFU)),
		},
		Trending: pass(rows, Trending, trending),
	}
}

// rule fills the category-specific fields of o and reports whether j
// belongs to the category.
type rule func(j Joined, o *Opportunity) bool

func pass(rows []Joined, cat Category, match rule) []Opportunity {
	out := lo.FilterMap(rows, func(j Joined, _ int) (Opportunity, bool) {
		o := base(j, cat)
		if !match(j, &o) {
			return Opportunity{}, false
		}
		return o, true
	})
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return out[a].Keyword < out[b].Keyword
	})
	return out
}

func base(j Joined, cat Category) Opportunity {
	p := j.primary()
	return Opportunity{
		Keyword:            j.Keyword,
		Category:           cat,
		ClientPosition:     j.ClientPosition(),
		CompetitorPosition: j.CompetitorPosition(),
		SearchVolume:       p.SearchVolume,
		Difficulty:         p.KeywordDifficulty,
		CPC:                p.CPC,
		CompetitorTraffic:  j.Competitor.Traffic,
		TrafficCost:        p.TrafficCost,
		Intent:             lo.Ternary(j.Competitor.Intent != "", j.Competitor.Intent, j.Client.Intent),
		SERPFeatures:       lo.Ternary(j.Competitor.SERPFeatures != "", j.Competitor.SERPFeatures, j.Client.SERPFeatures),
		Stage:              j.Stage(),
		ClientURL:          j.Client.URL,
		CompetitorURL:      j.Competitor.URL,
		PriorityScore:      j.PriorityScore(),
	}
}

// useCompetitorMetrics switches o's volume-type fields to the competitor's
// record, for categories judged on the competitor's keyword.
func useCompetitorMetrics(j Joined, o *Opportunity) {
	o.SearchVolume = j.Competitor.SearchVolume
	o.Difficulty = j.Competitor.KeywordDifficulty
	o.CPC = j.Competitor.CPC
	o.TrafficCost = j.Competitor.TrafficCost
}

// Client ranks 6-10 while the competitor holds the top 5.
func quickWin(j Joined, o *Opportunity) bool {
	c, k := j.ClientPosition(), j.CompetitorPosition()
	if !keyword.Between(c, 6, 10) || !keyword.Between(k, 1, 5) {
		return false
	}
	vc := j.Client.SearchVolume
	if vc < MinOpportunityVolume {
		return false
	}
	o.Score = float64(vc) * (1 - j.Client.KeywordDifficulty/100)
	return true
}

// Client is off page one or absent while the competitor holds the top 5.
func steal(j Joined, o *Opportunity) bool {
	c, k := j.ClientPosition(), j.CompetitorPosition()
	if !keyword.BeyondPageOne(c) || !keyword.Between(k, 1, 5) {
		return false
	}
	if j.Competitor.SearchVolume < MinOpportunityVolume {
		return false
	}
	useCompetitorMetrics(j, o)
	o.Score = j.Competitor.Traffic * 0.3
	o.Value = j.Competitor.TrafficCost * 0.3
	return true
}

// Client holds the top 5 and the competitor is within five places behind
// or ahead on page one.
func defensive(j Joined, o *Opportunity) bool {
	c, k := j.ClientPosition(), j.CompetitorPosition()
	if !keyword.Between(c, 1, 5) || !keyword.Between(k, 2, 10) || k >= c+5 {
		return false
	}
	o.Score = float64(j.Client.SearchVolume) / float64(k)
	return true
}

// Client ranks on page one and ahead of the competitor.
func clientWin(j Joined, o *Opportunity) bool {
	c, k := j.ClientPosition(), j.CompetitorPosition()
	if !keyword.InTop(c, 10) || c >= k {
		return false
	}
	o.Score = float64(k - c)
	return true
}

func contentGap(stage keyword.FunnelStage) rule {
	return func(j Joined, o *Opportunity) bool {
		if j.Stage() != stage {
			return false
		}
		if !keyword.BeyondPageOne(j.ClientPosition()) || !keyword.Between(j.CompetitorPosition(), 1, 5) {
			return false
		}
		useCompetitorMetrics(j, o)
		o.Score = o.PriorityScore
		return true
	}
}

// Competitor keyword with rising search interest.
func trending(j Joined, o *Opportunity) bool {
	if !j.HasCompetitor() || j.Competitor.Trend <= 0 || j.Competitor.SearchVolume < MinOpportunityVolume {
		return false
	}
	useCompetitorMetrics(j, o)
	o.Score = j.Competitor.Trend
	return true
}
