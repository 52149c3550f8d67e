package gap

import (
	"github.com/samber/lo"

	"github.com/TobiSchelling/KeywordGap/internal/keyword"
)

// Filter holds the tunable thresholds applied to both tables before
// deduplication. They never appear inside category predicates.
type Filter struct {
	MinSearchVolume      int
	MaxKeywordDifficulty float64
}

// NoFilter keeps every row.
func NoFilter() Filter {
	return Filter{MinSearchVolume: 0, MaxKeywordDifficulty: 100}
}

// Apply returns the rows of t that pass the filter.
func (f Filter) Apply(t keyword.Table) keyword.Table {
	return t.WithRecords(lo.Filter(t.Records, func(r keyword.Record, _ int) bool {
		return r.SearchVolume >= f.MinSearchVolume && r.KeywordDifficulty <= f.MaxKeywordDifficulty
	}))
}
