package keyword

// Source names used throughout a run.
const (
	SourceClient     = "client"
	SourceCompetitor = "competitor"
)

// Record is one keyword ranking row after normalization.
type Record struct {
	Keyword           string
	Position          int
	PreviousPosition  int
	SearchVolume      int
	KeywordDifficulty float64
	CPC               float64
	URL               string
	AllURLs           []string
	Traffic           float64
	TrafficPct        float64
	TrafficCost       float64
	Competition       float64
	NumberOfResults   float64
	Trend             float64
	Intent            string
	SERPFeatures      string
	PositionType      string
	Timestamp         string

	// Derived during normalization.
	PositionChange    int
	OpportunityScore  float64
	CompetitiveThreat float64
}

// Table is the normalized ranking export of one source.
type Table struct {
	Source  string
	Records []Record
}

// Len returns the number of records.
func (t Table) Len() int {
	return len(t.Records)
}

// Empty reports whether the table holds no records.
func (t Table) Empty() bool {
	return len(t.Records) == 0
}

// WithRecords returns a table for the same source holding records.
func (t Table) WithRecords(records []Record) Table {
	return Table{Source: t.Source, Records: records}
}
