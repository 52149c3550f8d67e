package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TobiSchelling/KeywordGap/internal/config"
	"github.com/TobiSchelling/KeywordGap/internal/gap"
	"github.com/TobiSchelling/KeywordGap/internal/keyword"
	"github.com/TobiSchelling/KeywordGap/internal/normalize"
)

const clientCSV = `Keyword,Position,Search Volume,Keyword Difficulty,Traffic,URL
running shoes,8,500,30,40,https://client.com/shoes
trail boots,3,600,20,90,https://client.com/boots
broken row,abc,100,10,0,
`

const competitorCSV = `keyword,rank,volume,kd,traffic,url
running shoes,3,500,30,120,https://rival.com/shoes
trail boots,4,600,20,70,https://rival.com/boots
wool socks,2,800,40,200,https://rival.com/socks
`

type mockProvider struct {
	response string
}

func (m *mockProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return m.response, nil
}
func (m *mockProvider) IsConfigured() bool { return true }
func (m *mockProvider) Name() string       { return "mock" }

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestRunFromFiles(t *testing.T) {
	p := New(config.Default(), nil)
	r := p.Run(context.Background(),
		Input{Path: writeFile(t, "client.csv", clientCSV)},
		Input{Path: writeFile(t, "competitor.csv", competitorCSV)},
		Options{},
	)

	if err := r.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Steps) != 3 {
		t.Errorf("expected 3 steps without insights, got %d", len(r.Steps))
	}
	if r.Analysis == nil {
		t.Fatal("expected analysis result")
	}
	if len(r.Analysis.Classification.QuickWins) != 1 {
		t.Errorf("expected 1 quick win, got %d", len(r.Analysis.Classification.QuickWins))
	}
	if len(r.Analysis.Classification.StealOpportunities) != 1 {
		t.Errorf("expected 1 steal opportunity, got %d", len(r.Analysis.Classification.StealOpportunities))
	}
	if got := len(r.Skipped[keyword.SourceClient]); got != 1 {
		t.Errorf("expected 1 skipped client row, got %d", got)
	}
	if !strings.Contains(r.Steps[1].Summary, "1 and 0 rows skipped") {
		t.Errorf("expected skipped rows in summary, got %q", r.Steps[1].Summary)
	}
	if r.Analysis.Filter.MinSearchVolume != 100 {
		t.Errorf("expected configured filter, got %+v", r.Analysis.Filter)
	}
}

func TestRunFromReaders(t *testing.T) {
	p := New(config.Default(), nil)
	f := gap.NoFilter()
	r := p.Run(context.Background(),
		Input{Name: "client.csv", Reader: strings.NewReader(clientCSV)},
		Input{Name: "competitor.tsv", Reader: strings.NewReader(strings.ReplaceAll(competitorCSV, ",", "\t"))},
		Options{Filter: &f},
	)
	if err := r.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Analysis.Competitor.Len() != 3 {
		t.Errorf("expected 3 competitor keywords, got %d", r.Analysis.Competitor.Len())
	}
	if r.Analysis.Filter != f {
		t.Errorf("expected override filter, got %+v", r.Analysis.Filter)
	}
}

func TestRunSchemaError(t *testing.T) {
	p := New(config.Default(), nil)
	r := p.Run(context.Background(),
		Input{Name: "client.csv", Reader: strings.NewReader("Keyword,Volume\nshoes,100\n")},
		Input{Name: "competitor.csv", Reader: strings.NewReader(competitorCSV)},
		Options{Insights: true},
	)

	err := r.Err()
	var schemaErr *normalize.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if schemaErr.Source != keyword.SourceClient {
		t.Errorf("expected client source, got %q", schemaErr.Source)
	}
	if r.Analysis != nil || r.Insight != nil {
		t.Error("expected no analysis after a failed step")
	}
	if len(r.Steps) != 2 {
		t.Errorf("expected to stop after Normalize, got %d steps", len(r.Steps))
	}
}

func TestRunLoadError(t *testing.T) {
	p := New(config.Default(), nil)
	r := p.Run(context.Background(),
		Input{Path: filepath.Join(t.TempDir(), "missing.csv")},
		Input{Name: "competitor.pdf", Reader: strings.NewReader("x")},
		Options{},
	)
	if r.Err() == nil {
		t.Fatal("expected load error")
	}
	if len(r.Steps) != 1 || r.Steps[0].Name != "Load" {
		t.Errorf("expected only the Load step, got %+v", r.Steps)
	}
}

func TestRunWithInsights(t *testing.T) {
	p := New(config.Default(), &mockProvider{response: `{"executive_summary": "Push running shoes."}`})
	if !p.InsightsAvailable() {
		t.Fatal("expected insights to be available")
	}

	r := p.Run(context.Background(),
		Input{Name: "client.csv", Reader: strings.NewReader(clientCSV)},
		Input{Name: "competitor.csv", Reader: strings.NewReader(competitorCSV)},
		Options{Insights: true},
	)
	if r.Insight == nil {
		t.Fatal("expected an insight")
	}
	if !strings.Contains(r.Insight.Text, "Push running shoes.") {
		t.Errorf("unexpected insight text %q", r.Insight.Text)
	}
	last := r.Steps[len(r.Steps)-1]
	if last.Name != "Insights" || !strings.HasPrefix(last.Summary, "Insights success") {
		t.Errorf("unexpected insights step %+v", last)
	}
}

func TestRunInsightsUnavailable(t *testing.T) {
	r := New(config.Default(), nil).Run(context.Background(),
		Input{Name: "client.csv", Reader: strings.NewReader(clientCSV)},
		Input{Name: "competitor.csv", Reader: strings.NewReader(competitorCSV)},
		Options{Insights: true},
	)
	if r.Insight == nil || !r.Insight.Unavailable {
		t.Errorf("expected unavailable insight, got %+v", r.Insight)
	}
	if r.Err() != nil {
		t.Errorf("expected unavailable insights not to fail the run, got %v", r.Err())
	}
}
