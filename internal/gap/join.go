package gap

import (
	"sort"

	"github.com/TobiSchelling/KeywordGap/internal/keyword"
)

// Joined pairs the client's and competitor's view of one keyword. A side
// that does not rank for the keyword holds keyword.Missing.
type Joined struct {
	Keyword    string
	Client     keyword.Record
	Competitor keyword.Record
}

// HasClient reports whether the client ranks for the keyword.
func (j Joined) HasClient() bool {
	return keyword.IsRanking(j.Client.Position)
}

// HasCompetitor reports whether the competitor ranks for the keyword.
func (j Joined) HasCompetitor() bool {
	return keyword.IsRanking(j.Competitor.Position)
}

// ClientPosition returns the client's effective position.
func (j Joined) ClientPosition() int {
	return keyword.EffectivePosition(j.Client)
}

// CompetitorPosition returns the competitor's effective position.
func (j Joined) CompetitorPosition() int {
	return keyword.EffectivePosition(j.Competitor)
}

// PositionDelta is competitor position minus client position. Positive
// means the client ranks better.
func (j Joined) PositionDelta() int {
	return j.CompetitorPosition() - j.ClientPosition()
}

// Stage maps the keyword's intent onto a funnel stage, preferring the
// competitor's intent label.
func (j Joined) Stage() keyword.FunnelStage {
	intent := j.Competitor.Intent
	if intent == "" {
		intent = j.Client.Intent
	}
	return keyword.StageFor(intent)
}

// primary returns the record whose metrics describe the keyword: the
// client's when it ranks, otherwise the competitor's.
func (j Joined) primary() keyword.Record {
	if j.HasClient() {
		return j.Client
	}
	return j.Competitor
}

// PriorityScore weighs volume, traffic value and ease of ranking.
func (j Joined) PriorityScore() float64 {
	p := j.primary()
	return float64(p.SearchVolume)*0.4 + p.TrafficCost*0.3 + (100-p.KeywordDifficulty)*0.3
}

// Join performs an outer join of two deduplicated tables on keyword. The
// result holds exactly one row per keyword in either table, sorted by
// keyword.
func Join(client, competitor keyword.Table) []Joined {
	rows := make(map[string]*Joined, client.Len()+competitor.Len())

	for _, r := range client.Records {
		if _, ok := rows[r.Keyword]; ok {
			continue
		}
		rows[r.Keyword] = &Joined{Keyword: r.Keyword, Client: r, Competitor: keyword.Missing(r.Keyword)}
	}
	for _, r := range competitor.Records {
		j, ok := rows[r.Keyword]
		if !ok {
			rows[r.Keyword] = &Joined{Keyword: r.Keyword, Client: keyword.Missing(r.Keyword), Competitor: r}
			continue
		}
		if j.HasCompetitor() {
			continue
		}
		j.Competitor = r
	}

	out := make([]Joined, 0, len(rows))
	for _, j := range rows {
		out = append(out, *j)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Keyword < out[b].Keyword })
	return out
}
