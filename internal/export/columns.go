package export

import (
	"fmt"
	"strconv"

	"github.com/TobiSchelling/KeywordGap/internal/gap"
	"github.com/TobiSchelling/KeywordGap/internal/keyword"
)

// NotRanking is the display text for an Unranked position.
const NotRanking = "Not ranking"

// Column is one output column. Value returns an int, float64 or string so
// spreadsheet cells keep their numeric type.
type Column struct {
	Header string
	Value  func(o gap.Opportunity) any
}

func position(pos int) any {
	if !keyword.IsRanking(pos) {
		return NotRanking
	}
	return pos
}

var (
	colKeyword     = Column{"Keyword", func(o gap.Opportunity) any { return o.Keyword }}
	colCategory    = Column{"Category", func(o gap.Opportunity) any { return o.Category.Label() }}
	colStage       = Column{"Stage", func(o gap.Opportunity) any { return o.Stage.Label() }}
	colClientPos   = Column{"Client Position", func(o gap.Opportunity) any { return position(o.ClientPosition) }}
	colCompPos     = Column{"Competitor Position", func(o gap.Opportunity) any { return position(o.CompetitorPosition) }}
	colVolume      = Column{"Search Volume", func(o gap.Opportunity) any { return o.SearchVolume }}
	colDifficulty  = Column{"Difficulty", func(o gap.Opportunity) any { return o.Difficulty }}
	colCPC         = Column{"CPC", func(o gap.Opportunity) any { return o.CPC }}
	colTrafficCost = Column{"Traffic Cost", func(o gap.Opportunity) any { return o.TrafficCost }}
	colIntent      = Column{"Intent", func(o gap.Opportunity) any { return o.Intent }}
	colPriority    = Column{"Priority Score", func(o gap.Opportunity) any { return o.PriorityScore }}
	colClientURL   = Column{"Client URL", func(o gap.Opportunity) any { return o.ClientURL }}
	colCompURL     = Column{"Competitor URL", func(o gap.Opportunity) any { return o.CompetitorURL }}
)

func score(header string) Column {
	return Column{header, func(o gap.Opportunity) any { return o.Score }}
}

var columnSets = map[gap.Category][]Column{
	gap.QuickWin: {
		colKeyword, colClientPos, colCompPos, colVolume, colDifficulty, colTrafficCost,
		score("Opportunity Score"), colPriority, colClientURL, colCompURL,
	},
	gap.StealOpportunity: {
		colKeyword, colClientPos, colCompPos, colVolume, colDifficulty, colCPC, colTrafficCost,
		score("Potential Traffic"),
		{"Potential Value", func(o gap.Opportunity) any { return o.Value }},
		colPriority, colCompURL,
	},
	gap.Defensive: {
		colKeyword, colClientPos, colCompPos, colVolume, colTrafficCost,
		score("Threat Level"), colPriority, colClientURL,
	},
	gap.ClientWin: {
		colKeyword, colClientPos, colCompPos, colVolume, colTrafficCost,
		{"Win Margin", func(o gap.Opportunity) any { return int(o.Score) }},
		colPriority,
	},
}

var genericColumns = []Column{
	colKeyword, colCategory, colStage, colClientPos, colCompPos, colVolume, colDifficulty, colIntent, colPriority,
}

// Columns returns the fixed column order for a category. Content gaps,
// trending keywords and mixed tables such as the priority matrix share one
// generic layout.
func Columns(cat gap.Category) []Column {
	if cols, ok := columnSets[cat]; ok {
		return cols
	}
	return genericColumns
}

// Headers returns the header row for a category.
func Headers(cat gap.Category) []string {
	cols := Columns(cat)
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Header
	}
	return out
}

// Row returns o's cells in column order.
func Row(cat gap.Category, o gap.Opportunity) []any {
	cols := Columns(cat)
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = c.Value(o)
	}
	return out
}

// FormatCell renders a cell value as text.
func FormatCell(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', 2, 64)
	default:
		return fmt.Sprint(x)
	}
}
