package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/TobiSchelling/KeywordGap/internal/gap"
	"github.com/TobiSchelling/KeywordGap/internal/keyword"
)

func sampleResult() *gap.Result {
	client := keyword.Table{Source: keyword.SourceClient, Records: []keyword.Record{
		{Keyword: "shoes", Position: 8, SearchVolume: 500, KeywordDifficulty: 30, Traffic: 40, TrafficCost: 20},
		{Keyword: "boots", Position: 3, SearchVolume: 600, KeywordDifficulty: 20, Traffic: 90, TrafficCost: 45},
	}}
	competitor := keyword.Table{Source: keyword.SourceCompetitor, Records: []keyword.Record{
		{Keyword: "shoes", Position: 3, SearchVolume: 500, KeywordDifficulty: 30, Traffic: 120},
		{Keyword: "boots", Position: 4, SearchVolume: 600, KeywordDifficulty: 20, Traffic: 70},
		{Keyword: "socks", Position: 2, SearchVolume: 800, KeywordDifficulty: 40, Traffic: 200, TrafficCost: 150, URL: "https://rival.com/socks"},
	}}
	return gap.NewEngine(gap.NoFilter()).Run(client, competitor)
}

func TestColumnsFixedOrder(t *testing.T) {
	h := Headers(gap.QuickWin)
	if h[0] != "Keyword" || h[1] != "Client Position" || h[2] != "Competitor Position" {
		t.Errorf("unexpected quick win headers: %v", h)
	}
	if got := Headers(gap.ContentGap); strings.Join(got, ",") != strings.Join(Headers(""), ",") {
		t.Errorf("expected content gaps to use the generic layout, got %v", got)
	}
	for _, cat := range []gap.Category{gap.QuickWin, gap.StealOpportunity, gap.Defensive, gap.ClientWin, gap.Trending} {
		if len(Row(cat, gap.Opportunity{})) != len(Headers(cat)) {
			t.Errorf("%s: row width differs from header width", cat)
		}
	}
}

func TestWriteCSVNotRanking(t *testing.T) {
	res := sampleResult()
	var buf bytes.Buffer
	if err := WriteCSV(&buf, gap.StealOpportunity, res.Classification.StealOpportunities); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	recs, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading back CSV: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(recs))
	}
	row := recs[1]
	if row[0] != "socks" {
		t.Errorf("expected socks, got %q", row[0])
	}
	if row[1] != NotRanking {
		t.Errorf("expected %q for client position, got %q", NotRanking, row[1])
	}
	if row[2] != "2" {
		t.Errorf("expected competitor position 2, got %q", row[2])
	}
	if row[len(row)-1] != "https://rival.com/socks" {
		t.Errorf("expected competitor URL last, got %q", row[len(row)-1])
	}
}

func TestWriteCSVEmptyHasHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, gap.Defensive, nil); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "Keyword,Client Position") {
		t.Errorf("expected header row, got %q", buf.String())
	}
}

func TestWriteSummaryJSON(t *testing.T) {
	res := sampleResult()
	var buf bytes.Buffer
	if err := WriteSummaryJSON(&buf, res); err != nil {
		t.Fatalf("WriteSummaryJSON failed: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if doc["run_id"] != res.RunID {
		t.Errorf("expected run_id %q, got %v", res.RunID, doc["run_id"])
	}
	summary := doc["summary"].(map[string]any)
	client := summary["client"].(map[string]any)
	if client["total_keywords"].(float64) != 2 {
		t.Errorf("expected 2 client keywords, got %v", client["total_keywords"])
	}
	counts := doc["counts"].(map[string]any)
	if counts["quick_wins"].(float64) != 1 {
		t.Errorf("expected 1 quick win, got %v", counts["quick_wins"])
	}
}

func TestWriteSummaryYAML(t *testing.T) {
	res := sampleResult()
	var buf bytes.Buffer
	if err := WriteSummaryYAML(&buf, res); err != nil {
		t.Fatalf("WriteSummaryYAML failed: %v", err)
	}

	var doc Document
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if doc.Summary.Competitor.TotalKeywords != 3 {
		t.Errorf("expected 3 competitor keywords, got %d", doc.Summary.Competitor.TotalKeywords)
	}
	if !strings.Contains(buf.String(), "market_share:") {
		t.Error("expected snake_case market_share key")
	}
}

func TestWriteXLSX(t *testing.T) {
	res := sampleResult()
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, res); err != nil {
		t.Fatalf("WriteXLSX failed: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("opening workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	want := []string{"Summary", "Priority Matrix", "Quick Wins", "Steal Opportunities", "Client Wins",
		"Defensive Keywords", "TOFU Gaps", "MOFU Gaps", "BOFU Gaps", "Trending"}
	if strings.Join(sheets, "|") != strings.Join(want, "|") {
		t.Errorf("expected sheets %v, got %v", want, sheets)
	}

	rows, err := f.GetRows("Quick Wins")
	if err != nil {
		t.Fatalf("reading Quick Wins: %v", err)
	}
	if len(rows) != 2 || rows[1][0] != "shoes" {
		t.Errorf("unexpected Quick Wins rows: %v", rows)
	}

	rows, err = f.GetRows("MOFU Gaps")
	if err != nil {
		t.Fatalf("reading MOFU Gaps: %v", err)
	}
	if len(rows) != 1 || rows[0][0] != "Keyword" {
		t.Errorf("expected header-only sheet, got %v", rows)
	}
}

func TestWriteAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	paths, err := WriteAll(dir, sampleResult(), []string{FormatCSV, FormatJSON, FormatYAML, FormatXLSX})
	if err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}
	if len(paths) != len(Slugs())+3 {
		t.Errorf("expected %d files, got %d", len(Slugs())+3, len(paths))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, BaseName+"_quick_wins.csv")); err != nil {
		t.Errorf("expected quick wins CSV: %v", err)
	}
}

func TestWriteAllUnknownFormat(t *testing.T) {
	_, err := WriteAll(t.TempDir(), sampleResult(), []string{"pdf"})
	if !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestSectionBySlug(t *testing.T) {
	res := sampleResult()
	s, ok := SectionBySlug(res, "defensive")
	if !ok || s.Category != gap.Defensive || len(s.Rows) != 1 {
		t.Errorf("unexpected defensive section: %+v", s)
	}
	if _, ok := SectionBySlug(res, "nope"); ok {
		t.Error("expected unknown slug to be missing")
	}
}
