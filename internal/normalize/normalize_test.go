package normalize

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/TobiSchelling/KeywordGap/internal/ingest"
)

func raw(headers []string, rows ...[]string) *ingest.RawTable {
	return &ingest.RawTable{Name: "test.csv", Headers: headers, Rows: rows}
}

var semrushHeaders = []string{
	"Keyword", "Position", "Previous position", "Search Volume", "Keyword Difficulty",
	"CPC", "URL", "Traffic", "Traffic (%)", "Traffic Cost", "Competition",
	"Number of Results", "Trends", "Timestamp", "SERP Features by Keyword",
	"Keyword Intents", "Position Type",
}

func TestNormalizeFullRow(t *testing.T) {
	res, err := Normalize("client", raw(semrushHeaders, []string{
		"running  shoes ", "8", "12", "1,500", "30", "$1.20", "https://a.com/shoes",
		"120", "2.5%", "144", "0.4", "1000000", "0.5,0.6,0.9", "2026-01-01",
		"Featured snippet", "Commercial", "Organic",
	}), DefaultAliases())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Table.Source != "client" {
		t.Errorf("expected source 'client', got %q", res.Table.Source)
	}
	if res.Table.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", res.Table.Len())
	}

	r := res.Table.Records[0]
	if r.Keyword != "running shoes" {
		t.Errorf("expected cleaned keyword, got %q", r.Keyword)
	}
	if r.Position != 8 || r.PreviousPosition != 12 {
		t.Errorf("unexpected positions: %d / %d", r.Position, r.PreviousPosition)
	}
	if r.SearchVolume != 1500 {
		t.Errorf("expected volume 1500, got %d", r.SearchVolume)
	}
	if r.CPC != 1.2 || r.TrafficPct != 2.5 || r.TrafficCost != 144 {
		t.Errorf("unexpected money fields: cpc=%v pct=%v cost=%v", r.CPC, r.TrafficPct, r.TrafficCost)
	}
	if r.PositionChange != 4 {
		t.Errorf("expected position change 4, got %d", r.PositionChange)
	}
	wantOpp := 1500 * 2.5 / 31
	if math.Abs(r.OpportunityScore-wantOpp) > 1e-9 {
		t.Errorf("expected opportunity %.4f, got %.4f", wantOpp, r.OpportunityScore)
	}
	if r.CompetitiveThreat != 8*144 {
		t.Errorf("expected competitive threat %v, got %v", 8*144, r.CompetitiveThreat)
	}
	if math.Abs(r.Trend-0.4) > 1e-9 {
		t.Errorf("expected trend momentum 0.4, got %v", r.Trend)
	}
	if len(r.AllURLs) != 1 || r.AllURLs[0] != "https://a.com/shoes" {
		t.Errorf("expected AllURLs seeded with URL, got %v", r.AllURLs)
	}
	if r.Intent != "Commercial" || r.SERPFeatures != "Featured snippet" || r.PositionType != "Organic" {
		t.Errorf("unexpected string fields: %+v", r)
	}
	if res.Columns["search_volume"] != "Search Volume" {
		t.Errorf("expected resolved column mapping, got %v", res.Columns)
	}
}

func TestNormalizeAliasesCaseInsensitive(t *testing.T) {
	res, err := Normalize("competitor", raw(
		[]string{" keywords ", "RANK", "monthly searches", "kd"},
		[]string{"boots", "2", "800", "40"},
	), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := res.Table.Records[0]
	if r.Keyword != "boots" || r.Position != 2 || r.SearchVolume != 800 || r.KeywordDifficulty != 40 {
		t.Errorf("unexpected record: %+v", r)
	}
}

func TestNormalizeCanonicalNames(t *testing.T) {
	res, err := Normalize("client", raw(
		[]string{"keyword", "position", "search_volume", "keyword_difficulty"},
		[]string{"boots", "2", "800", "40"},
	), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Table.Len() != 1 {
		t.Errorf("expected 1 record, got %d", res.Table.Len())
	}
}

func TestNormalizeFirstHeaderWins(t *testing.T) {
	res, err := Normalize("client", raw(
		[]string{"Keyword", "Rank", "Position", "Volume", "KD"},
		[]string{"boots", "4", "9", "100", "10"},
	), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := res.Table.Records[0].Position; got != 4 {
		t.Errorf("expected first matching header (Rank=4), got %d", got)
	}
}

func TestNormalizeSchemaError(t *testing.T) {
	_, err := Normalize("client", raw([]string{"Keyword", "URL"}, []string{"boots", "x"}), nil)

	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	want := []string{"position", "search_volume", "keyword_difficulty"}
	if len(schemaErr.Missing) != len(want) {
		t.Fatalf("expected missing %v, got %v", want, schemaErr.Missing)
	}
	for i := range want {
		if schemaErr.Missing[i] != want[i] {
			t.Errorf("missing[%d]: expected %q, got %q", i, want[i], schemaErr.Missing[i])
		}
	}
	if !strings.Contains(err.Error(), "search_volume") {
		t.Errorf("expected field name in message, got %q", err.Error())
	}
}

func TestNormalizeSchemaErrorListsCallerAliases(t *testing.T) {
	aliases := Aliases{
		{FieldKeyword, []string{"Term"}},
		{FieldPosition, []string{"Rank"}},
		{FieldSearchVolume, []string{"Hits"}},
		{FieldDifficulty, []string{"KD"}},
	}
	_, err := Normalize("competitor", raw([]string{"Term", "Rank", "KD"}, []string{"boots", "1", "5"}), aliases)

	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	names := schemaErr.Expected[FieldSearchVolume]
	if len(names) == 0 || names[0] != "Hits" {
		t.Errorf("expected caller aliases for search_volume, got %v", names)
	}
	if !strings.Contains(err.Error(), "Hits") {
		t.Errorf("expected caller alias in message, got %q", err.Error())
	}
	if strings.Contains(err.Error(), "Monthly Searches") {
		t.Errorf("expected default aliases to stay out of the message, got %q", err.Error())
	}
}

func TestNormalizeDropsUnparsableRequired(t *testing.T) {
	headers := []string{"Keyword", "Position", "Search Volume", "Keyword Difficulty"}
	res, err := Normalize("client", raw(headers,
		[]string{"good", "3", "100", "20"},
		[]string{"bad position", "n/a", "100", "20"},
		[]string{"zero position", "0", "100", "20"},
		[]string{"bad volume", "4", "", "20"},
		[]string{"negative volume", "4", "-5", "20"},
		[]string{"", "4", "100", "20"},
		[]string{"bad difficulty", "5", "300", "hard"},
	), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Table.Len() != 2 {
		t.Fatalf("expected 2 surviving rows, got %d", res.Table.Len())
	}
	if len(res.Skipped) != 5 {
		t.Fatalf("expected 5 skipped rows, got %d", len(res.Skipped))
	}
	if res.Skipped[0].Row != 2 || res.Skipped[0].Field != FieldPosition {
		t.Errorf("unexpected first skip: %+v", res.Skipped[0])
	}
	if res.Skipped[2].Field != FieldSearchVolume {
		t.Errorf("expected search_volume skip, got %+v", res.Skipped[2])
	}
	if res.Skipped[4].Field != FieldKeyword {
		t.Errorf("expected keyword skip, got %+v", res.Skipped[4])
	}

	last := res.Table.Records[1]
	if last.KeywordDifficulty != DefaultDifficulty {
		t.Errorf("expected default difficulty %d, got %v", DefaultDifficulty, last.KeywordDifficulty)
	}
}

func TestNormalizeBoundsCounts(t *testing.T) {
	headers := []string{"Keyword", "Position", "Previous position", "Search Volume", "Keyword Difficulty"}
	res, err := Normalize("client", raw(headers,
		[]string{"huge position", "1e30", "", "100", "10"},
		[]string{"huge volume", "3", "", "1e30", "10"},
		[]string{"fractional position", "3.7", "", "100", "10"},
		[]string{"whole float", "4.0", "1e30", "2,500.4", "10"},
		[]string{"fractional previous", "5", "2.5", "100", "10"},
	), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Skipped) != 3 {
		t.Fatalf("expected 3 skipped rows, got %+v", res.Skipped)
	}
	wantFields := []string{FieldPosition, FieldSearchVolume, FieldPosition}
	for i, f := range wantFields {
		if res.Skipped[i].Field != f {
			t.Errorf("skip %d: expected field %s, got %s", i, f, res.Skipped[i].Field)
		}
	}

	if res.Table.Len() != 2 {
		t.Fatalf("expected 2 surviving rows, got %d", res.Table.Len())
	}
	for _, r := range res.Table.Records {
		if r.Position < 1 || r.SearchVolume < 0 || r.PreviousPosition < 1 {
			t.Errorf("out of range record kept: %+v", r)
		}
	}
	whole := res.Table.Records[0]
	if whole.Position != 4 || whole.SearchVolume != 2500 {
		t.Errorf("expected position 4 and volume 2500, got %d and %d", whole.Position, whole.SearchVolume)
	}
	if whole.PreviousPosition != 4 {
		t.Errorf("expected oversized previous position to fall back to 4, got %d", whole.PreviousPosition)
	}
	if prev := res.Table.Records[1].PreviousPosition; prev != 5 {
		t.Errorf("expected fractional previous position to fall back to 5, got %d", prev)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	headers := []string{"Keyword", "Position", "Search Volume", "Keyword Difficulty", "CPC", "Previous position", "Traffic"}
	res, err := Normalize("client", raw(headers,
		[]string{"boots", "6", "100", "150", "free", "", "NaN"},
	), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := res.Table.Records[0]
	if r.KeywordDifficulty != 100 {
		t.Errorf("expected difficulty clamped to 100, got %v", r.KeywordDifficulty)
	}
	if r.CPC != 0 {
		t.Errorf("expected cpc 0, got %v", r.CPC)
	}
	if r.PreviousPosition != 6 {
		t.Errorf("expected previous position to default to position, got %d", r.PreviousPosition)
	}
	if r.Traffic != 0 {
		t.Errorf("expected NaN traffic to become 0, got %v", r.Traffic)
	}
	if r.PositionChange != 0 {
		t.Errorf("expected zero position change, got %d", r.PositionChange)
	}
}

func TestNormalizeEmptyDataset(t *testing.T) {
	headers := []string{"Keyword", "Position", "Search Volume", "Keyword Difficulty"}

	_, err := Normalize("competitor", raw(headers), nil)
	var emptyErr *EmptyDatasetError
	if !errors.As(err, &emptyErr) {
		t.Fatalf("expected EmptyDatasetError, got %v", err)
	}
	if emptyErr.Source != "competitor" {
		t.Errorf("expected source competitor, got %q", emptyErr.Source)
	}

	_, err = Normalize("competitor", raw(headers, []string{"x", "oops", "1", "1"}), nil)
	if !errors.As(err, &emptyErr) || emptyErr.Skipped != 1 {
		t.Fatalf("expected EmptyDatasetError with 1 skipped, got %v", err)
	}
}

func TestCleanKeyword(t *testing.T) {
	tests := map[string]string{
		"  shoes  ":             "shoes",
		"red\t\trunning  shoes": "red running shoes",
		"cafe\u0301":           "caf\u00e9",
		"Shoes":                 "Shoes",
	}
	for in, want := range tests {
		if got := CleanKeyword(in); got != want {
			t.Errorf("CleanKeyword(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseTrend(t *testing.T) {
	tests := map[string]float64{
		"":             0,
		"0.8":          0.8,
		"1.0,0.5,0.25": -0.75,
		"junk":         0,
	}
	for in, want := range tests {
		if got := parseTrend(in); math.Abs(got-want) > 1e-9 {
			t.Errorf("parseTrend(%q) = %v, want %v", in, got, want)
		}
	}
}
