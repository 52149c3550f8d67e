package gap

import (
	"github.com/samber/lo"

	"github.com/TobiSchelling/KeywordGap/internal/keyword"
)

// Deduplicate collapses repeated keywords to the row with the best (lowest)
// position. Ties keep the first row seen. Every URL seen for a keyword is
// gathered into AllURLs on the surviving row. Output follows the order in
// which keywords first appear.
func Deduplicate(t keyword.Table) keyword.Table {
	best := make(map[string]int, len(t.Records))
	urls := make(map[string][]string, len(t.Records))
	var out []keyword.Record

	for _, r := range t.Records {
		seen := r.AllURLs
		if len(seen) == 0 && r.URL != "" {
			seen = []string{r.URL}
		}
		urls[r.Keyword] = append(urls[r.Keyword], seen...)

		idx, ok := best[r.Keyword]
		if !ok {
			best[r.Keyword] = len(out)
			out = append(out, r)
			continue
		}
		if keyword.EffectivePosition(r) < keyword.EffectivePosition(out[idx]) {
			out[idx] = r
		}
	}

	for i := range out {
		all := lo.Uniq(lo.Compact(urls[out[i].Keyword]))
		if len(all) == 0 {
			all = nil
		}
		out[i].AllURLs = all
	}
	return t.WithRecords(out)
}
