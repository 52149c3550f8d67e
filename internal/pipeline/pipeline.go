package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/KeywordGap/internal/config"
	"github.com/TobiSchelling/KeywordGap/internal/gap"
	"github.com/TobiSchelling/KeywordGap/internal/ingest"
	"github.com/TobiSchelling/KeywordGap/internal/insights"
	"github.com/TobiSchelling/KeywordGap/internal/keyword"
	"github.com/TobiSchelling/KeywordGap/internal/llm"
	"github.com/TobiSchelling/KeywordGap/internal/metrics"
	"github.com/TobiSchelling/KeywordGap/internal/normalize"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Input is one ranking export: a file on disk, or an upload read from
// Reader with Name supplying the extension.
type Input struct {
	Name   string
	Path   string
	Reader io.Reader
}

func (in Input) load() (*ingest.RawTable, error) {
	if in.Reader != nil {
		return ingest.Read(in.Name, in.Reader)
	}
	return ingest.ReadFile(in.Path)
}

// Options tune a single run.
type Options struct {
	// Filter overrides the configured analysis thresholds when set.
	Filter *gap.Filter
	// Insights requests AI recommendations after the analysis.
	Insights bool
}

// Result holds the results of a full pipeline run.
type Result struct {
	Steps    []StepResult
	Analysis *gap.Result
	Insight  *insights.Insight
	// Skipped lists rows dropped during normalization, per source.
	Skipped map[string][]normalize.ParseError
}

// Err returns the first step error, if any.
func (r *Result) Err() error {
	for _, s := range r.Steps {
		if s.Err != nil {
			return s.Err
		}
	}
	return nil
}

// Pipeline orchestrates the load, normalize, analyze and insights steps.
type Pipeline struct {
	cfg       *config.Config
	filter    gap.Filter
	generator *insights.Generator
}

// New creates a new pipeline. provider may be nil, in which case insight
// requests report that AI analysis is unavailable.
func New(cfg *config.Config, provider llm.Provider) *Pipeline {
	ic := cfg.Insights
	return &Pipeline{
		cfg: cfg,
		filter: gap.Filter{
			MinSearchVolume:      cfg.Analysis.MinSearchVolume,
			MaxKeywordDifficulty: cfg.Analysis.MaxKeywordDifficulty,
		},
		generator: insights.NewGenerator(llm.NewLimited(provider, ic.RequestsPerMinute), ic.MaxTokens, ic.Timeout),
	}
}

// Filter returns the configured analysis filter.
func (p *Pipeline) Filter() gap.Filter {
	return p.filter
}

// InsightsAvailable reports whether an LLM provider is configured.
func (p *Pipeline) InsightsAvailable() bool {
	return p.generator.Available()
}

// Run executes the pipeline for one client/competitor pair.
func (p *Pipeline) Run(ctx context.Context, client, competitor Input, opts Options) *Result {
	r := &Result{Skipped: make(map[string][]normalize.ParseError)}
	start := time.Now()

	// Step 1: Load
	raws, step := p.runLoad(ctx, client, competitor)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		metrics.AnalysisRuns.WithLabelValues("failure").Inc()
		return r
	}

	// Step 2: Normalize
	tables, step := p.runNormalize(raws, r)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		metrics.AnalysisRuns.WithLabelValues("failure").Inc()
		return r
	}

	// Step 3: Analyze
	filter := p.filter
	if opts.Filter != nil {
		filter = *opts.Filter
	}
	r.Analysis, step = p.runAnalyze(filter, tables[0], tables[1])
	r.Steps = append(r.Steps, step)
	metrics.AnalysisRuns.WithLabelValues("success").Inc()
	metrics.AnalysisDuration.Observe(time.Since(start).Seconds())

	// Step 4: Insights
	if opts.Insights {
		r.Insight, step = p.runInsights(ctx, r.Analysis)
		r.Steps = append(r.Steps, step)
	}

	return r
}

func (p *Pipeline) runLoad(ctx context.Context, client, competitor Input) ([2]*ingest.RawTable, StepResult) {
	slog.Info("Step 1/4: Loading ranking exports...")
	var raws [2]*ingest.RawTable

	g, _ := errgroup.WithContext(ctx)
	for i, in := range []Input{client, competitor} {
		g.Go(func() error {
			raw, err := in.load()
			if err != nil {
				return err
			}
			raws[i] = raw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return raws, StepResult{Name: "Load", Err: err}
	}

	return raws, StepResult{
		Name: "Load",
		Summary: fmt.Sprintf("Read %d client rows from %s and %d competitor rows from %s",
			len(raws[0].Rows), displayName(client), len(raws[1].Rows), displayName(competitor)),
	}
}

func (p *Pipeline) runNormalize(raws [2]*ingest.RawTable, r *Result) ([2]keyword.Table, StepResult) {
	slog.Info("Step 2/4: Normalizing records...")
	var tables [2]keyword.Table
	sources := [2]string{keyword.SourceClient, keyword.SourceCompetitor}

	var errs []error
	for i, raw := range raws {
		res, err := normalize.Normalize(sources[i], raw, nil)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		tables[i] = res.Table
		if n := len(res.Skipped); n > 0 {
			r.Skipped[sources[i]] = res.Skipped
			metrics.RowsSkipped.WithLabelValues(sources[i]).Add(float64(n))
			slog.Warn("rows skipped during normalization", "source", sources[i], "skipped", n,
				"first", res.Skipped[0].Error())
		}
	}
	if len(errs) > 0 {
		return tables, StepResult{Name: "Normalize", Err: errors.Join(errs...)}
	}

	return tables, StepResult{
		Name: "Normalize",
		Summary: fmt.Sprintf("%d client and %d competitor keywords (%d and %d rows skipped)",
			tables[0].Len(), tables[1].Len(),
			len(r.Skipped[keyword.SourceClient]), len(r.Skipped[keyword.SourceCompetitor])),
	}
}

func (p *Pipeline) runAnalyze(filter gap.Filter, client, competitor keyword.Table) (*gap.Result, StepResult) {
	slog.Info("Step 3/4: Classifying keywords...", "min_volume", filter.MinSearchVolume, "max_difficulty", filter.MaxKeywordDifficulty)
	res := gap.NewEngine(filter).Run(client, competitor)

	for cat, n := range res.Classification.Counts() {
		metrics.Opportunities.WithLabelValues(string(cat)).Add(float64(n))
	}

	c := res.Classification
	return res, StepResult{
		Name: "Analyze",
		Summary: fmt.Sprintf("%d keywords compared: %d quick wins, %d steal opportunities, %d defensive, %d client wins, %d content gaps",
			len(res.Joined), len(c.QuickWins), len(c.StealOpportunities), len(c.Defensive), len(c.ClientWins), c.ContentGaps.Total()),
	}
}

func (p *Pipeline) runInsights(ctx context.Context, res *gap.Result) (*insights.Insight, StepResult) {
	slog.Info("Step 4/4: Generating AI insights...")
	ins := p.generator.Generate(ctx, res)

	outcome := "success"
	switch {
	case ins.Unavailable:
		outcome = "unavailable"
	case ins.Failed:
		outcome = "error"
	}
	metrics.InsightRequests.WithLabelValues(outcome).Inc()

	step := StepResult{Name: "Insights", Summary: fmt.Sprintf("Insights %s", outcome)}
	if ins.Provider != "" {
		step.Summary += fmt.Sprintf(" (%s, %s)", ins.Provider, ins.Duration.Round(time.Millisecond))
	}
	return &ins, step
}

func displayName(in Input) string {
	if in.Path != "" {
		return filepath.Base(in.Path)
	}
	return in.Name
}
