package gap

import (
	"github.com/samber/lo"

	"github.com/TobiSchelling/KeywordGap/internal/keyword"
)

// SideMetrics rolls up one source's rankings.
type SideMetrics struct {
	TotalKeywords    int     `json:"total_keywords" yaml:"total_keywords"`
	AvgPosition      float64 `json:"avg_position" yaml:"avg_position"`
	TotalTraffic     float64 `json:"total_traffic" yaml:"total_traffic"`
	TotalTrafficCost float64 `json:"total_traffic_cost" yaml:"total_traffic_cost"`
	Top3Count        int     `json:"top_3_count" yaml:"top_3_count"`
	Top10Count       int     `json:"top_10_count" yaml:"top_10_count"`
	Beyond10Count    int     `json:"keywords_11_plus" yaml:"keywords_11_plus"`
	// HasData is false for an empty table, where AvgPosition is reported as 0.
	HasData bool `json:"has_data" yaml:"has_data"`
}

// MarketShare is the traffic-weighted split between the two sources, in
// percent. Both are 0 when neither side has traffic.
type MarketShare struct {
	ClientPct     float64 `json:"client_pct" yaml:"client_pct"`
	CompetitorPct float64 `json:"competitor_pct" yaml:"competitor_pct"`
}

// Summary is the executive rollup of a run.
type Summary struct {
	Client      SideMetrics `json:"client" yaml:"client"`
	Competitor  SideMetrics `json:"competitor" yaml:"competitor"`
	MarketShare MarketShare `json:"market_share" yaml:"market_share"`
	// OpportunityScore is the total competitor search volume on keywords
	// where the competitor outranks the client.
	OpportunityScore float64 `json:"opportunity_score" yaml:"opportunity_score"`
}

// Summarize computes the rollup for two deduplicated tables.
func Summarize(client, competitor keyword.Table) Summary {
	s := Summary{
		Client:     sideMetrics(client),
		Competitor: sideMetrics(competitor),
	}

	total := s.Client.TotalTraffic + s.Competitor.TotalTraffic
	if total > 0 {
		s.MarketShare.ClientPct = s.Client.TotalTraffic / total * 100
		s.MarketShare.CompetitorPct = 100 - s.MarketShare.ClientPct
	}

	s.OpportunityScore = lo.SumBy(Join(client, competitor), func(j Joined) float64 {
		if j.HasCompetitor() && j.CompetitorPosition() < j.ClientPosition() {
			return float64(j.Competitor.SearchVolume)
		}
		return 0
	})
	return s
}

func sideMetrics(t keyword.Table) SideMetrics {
	if t.Empty() {
		return SideMetrics{}
	}

	recs := t.Records
	return SideMetrics{
		TotalKeywords:    len(recs),
		AvgPosition:      float64(lo.SumBy(recs, func(r keyword.Record) int { return r.Position })) / float64(len(recs)),
		TotalTraffic:     lo.SumBy(recs, func(r keyword.Record) float64 { return r.Traffic }),
		TotalTrafficCost: lo.SumBy(recs, func(r keyword.Record) float64 { return r.TrafficCost }),
		Top3Count:        lo.CountBy(recs, func(r keyword.Record) bool { return keyword.InTop(r.Position, 3) }),
		Top10Count:       lo.CountBy(recs, func(r keyword.Record) bool { return keyword.InTop(r.Position, 10) }),
		Beyond10Count:    lo.CountBy(recs, func(r keyword.Record) bool { return keyword.BeyondPageOne(r.Position) }),
		HasData:          true,
	}
}
