package normalize

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/TobiSchelling/KeywordGap/internal/ingest"
	"github.com/TobiSchelling/KeywordGap/internal/keyword"
)

// DefaultDifficulty replaces an unparsable keyword difficulty.
const DefaultDifficulty = 50

// MaxCount bounds position and search volume cells.
const MaxCount = math.MaxInt32

// Result is a normalized table plus what was dropped on the way.
type Result struct {
	Table   keyword.Table
	Skipped []ParseError
	// Columns maps each resolved canonical field to the header it came from.
	Columns map[string]string
}

// Normalize resolves raw's headers against aliases and coerces every row
// into a keyword.Record. Rows whose keyword, position or search volume
// cannot be parsed are dropped and reported in Result.Skipped.
func Normalize(source string, raw *ingest.RawTable, aliases Aliases) (*Result, error) {
	if aliases == nil {
		aliases = DefaultAliases()
	}

	cols := aliases.Resolve(raw.Headers)
	var missing []string
	for _, f := range RequiredFields {
		if _, ok := cols[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		expected := make(map[string][]string, len(missing))
		for _, f := range missing {
			expected[f] = aliases.Names(f)
		}
		return nil, &SchemaError{Source: source, Missing: missing, Expected: expected}
	}

	res := &Result{
		Table:   keyword.Table{Source: source},
		Columns: make(map[string]string, len(cols)),
	}
	for field, idx := range cols {
		res.Columns[field] = raw.Headers[idx]
	}

	for i, row := range raw.Rows {
		rec, perr := coerceRow(row, cols)
		if perr != nil {
			perr.Source = source
			perr.Row = i + 1
			res.Skipped = append(res.Skipped, *perr)
			continue
		}
		res.Table.Records = append(res.Table.Records, rec)
	}

	if res.Table.Empty() {
		return nil, &EmptyDatasetError{Source: source, Skipped: len(res.Skipped)}
	}
	return res, nil
}

func coerceRow(row []string, cols map[string]int) (keyword.Record, *ParseError) {
	get := func(field string) string {
		idx, ok := cols[field]
		if !ok {
			return ""
		}
		return ingest.Cell(row, idx)
	}

	var r keyword.Record

	r.Keyword = CleanKeyword(get(FieldKeyword))
	if r.Keyword == "" {
		return r, &ParseError{Field: FieldKeyword, Value: get(FieldKeyword)}
	}

	pos, ok := parsePosition(get(FieldPosition))
	if !ok {
		return r, &ParseError{Field: FieldPosition, Value: get(FieldPosition)}
	}
	r.Position = pos

	vol, ok := parseNumber(get(FieldSearchVolume))
	if !ok || vol < 0 || vol > MaxCount {
		return r, &ParseError{Field: FieldSearchVolume, Value: get(FieldSearchVolume)}
	}
	r.SearchVolume = int(math.Round(vol))

	r.PreviousPosition = r.Position
	if prev, ok := parsePosition(get(FieldPreviousPosition)); ok {
		r.PreviousPosition = prev
	}

	r.KeywordDifficulty = DefaultDifficulty
	if kd, ok := parseNumber(get(FieldDifficulty)); ok {
		r.KeywordDifficulty = math.Min(100, math.Max(0, kd))
	}

	r.CPC = nonNegative(get(FieldCPC))
	r.Traffic = nonNegative(get(FieldTraffic))
	r.TrafficPct = nonNegative(get(FieldTrafficPct))
	r.TrafficCost = nonNegative(get(FieldTrafficCost))
	r.Competition = nonNegative(get(FieldCompetition))
	r.NumberOfResults = nonNegative(get(FieldNumberOfResults))
	r.Trend = parseTrend(get(FieldTrends))

	r.URL = get(FieldURL)
	if r.URL != "" {
		r.AllURLs = []string{r.URL}
	}
	r.Intent = get(FieldIntent)
	r.SERPFeatures = get(FieldSERPFeatures)
	r.PositionType = get(FieldPositionType)
	r.Timestamp = get(FieldTimestamp)

	r.PositionChange = r.PreviousPosition - r.Position
	r.OpportunityScore = float64(r.SearchVolume) * r.TrafficPct / (r.KeywordDifficulty + 1)
	r.CompetitiveThreat = float64(r.Position) * r.TrafficCost

	return r, nil
}

// CleanKeyword applies NFC normalization, trims the keyword and collapses
// runs of internal whitespace. Case is preserved.
func CleanKeyword(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// parseNumber accepts plain numbers plus thousands separators, a leading
// currency sign and a trailing percent sign.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parsePosition accepts a whole number within [1, MaxCount].
func parsePosition(s string) (int, bool) {
	v, ok := parseNumber(s)
	if !ok || v != math.Trunc(v) || v < 1 || v > MaxCount {
		return 0, false
	}
	return int(v), true
}

func nonNegative(s string) float64 {
	v, ok := parseNumber(s)
	if !ok || v < 0 {
		return 0
	}
	return v
}

// parseTrend reads either a single number or a series of monthly trend
// values, returning the series momentum (last minus first).
func parseTrend(s string) float64 {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t'
	})
	if len(parts) <= 1 {
		v, ok := parseNumber(s)
		if !ok {
			return 0
		}
		return v
	}

	var values []float64
	for _, p := range parts {
		if v, ok := parseNumber(p); ok {
			values = append(values, v)
		}
	}
	if len(values) < 2 {
		return 0
	}
	return values[len(values)-1] - values[0]
}
