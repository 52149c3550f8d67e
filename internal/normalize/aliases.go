package normalize

import "strings"

// Canonical field names.
const (
	FieldKeyword          = "keyword"
	FieldPosition         = "position"
	FieldPreviousPosition = "previous_position"
	FieldSearchVolume     = "search_volume"
	FieldDifficulty       = "keyword_difficulty"
	FieldCPC              = "cpc"
	FieldURL              = "url"
	FieldTraffic          = "traffic"
	FieldTrafficPct       = "traffic_pct"
	FieldTrafficCost      = "traffic_cost"
	FieldCompetition      = "competition"
	FieldNumberOfResults  = "number_of_results"
	FieldTrends           = "trends"
	FieldTimestamp        = "timestamp"
	FieldSERPFeatures     = "serp_features"
	FieldIntent           = "intent"
	FieldPositionType     = "position_type"
)

// RequiredFields must resolve to a column or the file is rejected.
var RequiredFields = []string{FieldKeyword, FieldPosition, FieldSearchVolume, FieldDifficulty}

// Alias lists the header names accepted for one canonical field.
type Alias struct {
	Field string
	Names []string
}

// Aliases is an ordered alias table. Resolution walks it in order.
type Aliases []Alias

// DefaultAliases returns the header names seen in common SEO tool exports.
func DefaultAliases() Aliases {
	return Aliases{
		{FieldKeyword, []string{"Keyword", "Keywords", "Search Term", "Query"}},
		{FieldPosition, []string{"Position", "Rank", "Current Position"}},
		{FieldPreviousPosition, []string{"Previous position", "Previous Rank", "Prev Position"}},
		{FieldSearchVolume, []string{"Search Volume", "Volume", "SV", "Monthly Searches"}},
		{FieldDifficulty, []string{"Keyword Difficulty", "Difficulty", "KD", "KD %", "Competition Score"}},
		{FieldCPC, []string{"CPC", "Cost Per Click", "Avg CPC", "CPC (USD)"}},
		{FieldURL, []string{"URL", "Landing Page", "Page URL"}},
		{FieldTraffic, []string{"Traffic", "Est Traffic", "Estimated Traffic", "Organic Traffic"}},
		{FieldTrafficPct, []string{"Traffic (%)", "Traffic %", "traffic_percent", "Traffic Share", "Share"}},
		{FieldTrafficCost, []string{"Traffic Cost", "Est Cost", "Estimated Cost", "Value"}},
		{FieldCompetition, []string{"Competition", "Competitive Density", "Density"}},
		{FieldNumberOfResults, []string{"Number of Results", "Results", "Total Results"}},
		{FieldTrends, []string{"Trends", "Trend", "Search Trend"}},
		{FieldTimestamp, []string{"Timestamp", "Date", "Last Updated"}},
		{FieldSERPFeatures, []string{"SERP Features by Keyword", "SERP Features", "Features"}},
		{FieldIntent, []string{"Keyword Intents", "Intent", "Search Intent", "User Intent"}},
		{FieldPositionType, []string{"Position Type", "Type", "Result Type", "SERP Type"}},
	}
}

// Names returns the accepted header names for field, canonical name last.
func (a Aliases) Names(field string) []string {
	for _, al := range a {
		if al.Field == field {
			return append(append([]string(nil), al.Names...), field)
		}
	}
	return nil
}

// Resolve maps each canonical field to the index of the first matching
// header. Matching ignores case and surrounding whitespace, and a header
// is claimed by at most one field.
func (a Aliases) Resolve(headers []string) map[string]int {
	folded := make([]string, len(headers))
	for i, h := range headers {
		folded[i] = fold(h)
	}

	claimed := make(map[int]bool, len(headers))
	resolved := make(map[string]int, len(a))
	for _, al := range a {
		accept := make(map[string]bool, len(al.Names)+1)
		accept[fold(al.Field)] = true
		for _, n := range al.Names {
			accept[fold(n)] = true
		}
		for i, h := range folded {
			if !claimed[i] && accept[h] {
				resolved[al.Field] = i
				claimed[i] = true
				break
			}
		}
	}
	return resolved
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
