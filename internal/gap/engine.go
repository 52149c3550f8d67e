package gap

import (
	"time"

	"github.com/google/uuid"

	"github.com/TobiSchelling/KeywordGap/internal/keyword"
)

// Result holds everything one analysis run produces.
type Result struct {
	RunID          string
	CreatedAt      time.Time
	Filter         Filter
	Client         keyword.Table
	Competitor     keyword.Table
	Joined         []Joined
	Classification Classification
	Summary        Summary
}

// Engine runs the comparison for one client/competitor pair. It holds no
// per-run state and may be shared.
type Engine struct {
	filter Filter
}

// NewEngine creates an engine applying f to both tables.
func NewEngine(f Filter) *Engine {
	return &Engine{filter: f}
}

// Filter returns the engine's filter.
func (e *Engine) Filter() Filter {
	return e.filter
}

// Run filters and deduplicates both tables, joins them, and produces the
// classification and summary.
func (e *Engine) Run(client, competitor keyword.Table) *Result {
	client = Deduplicate(e.filter.Apply(client))
	competitor = Deduplicate(e.filter.Apply(competitor))
	joined := Join(client, competitor)

	return &Result{
		RunID:          uuid.NewString(),
		CreatedAt:      time.Now(),
		Filter:         e.filter,
		Client:         client,
		Competitor:     competitor,
		Joined:         joined,
		Classification: Classify(joined),
		Summary:        Summarize(client, competitor),
	}
}
