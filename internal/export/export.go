// Package export writes analysis results as CSV tables, an XLSX workbook
// and JSON or YAML summary documents.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/TobiSchelling/KeywordGap/internal/gap"
)

// Output formats understood by WriteAll.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Formats lists every supported output format.
var Formats = []string{FormatCSV, FormatXLSX, FormatJSON, FormatYAML}

// ErrUnknownFormat is returned for a format not in Formats.
var ErrUnknownFormat = errors.New("unknown export format")

// BaseName is the file name stem of every exported file.
const BaseName = "keyword_gap_analysis"

// WriteCSV writes one category table with its header row.
func WriteCSV(w io.Writer, cat gap.Category, rows []gap.Opportunity) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Headers(cat)); err != nil {
		return err
	}
	for _, o := range rows {
		cells := Row(cat, o)
		rec := make([]string, len(cells))
		for i, v := range cells {
			rec[i] = FormatCell(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Document is the summary document written as JSON or YAML.
type Document struct {
	RunID       string         `json:"run_id" yaml:"run_id"`
	GeneratedAt time.Time      `json:"generated_at" yaml:"generated_at"`
	Filter      FilterDoc      `json:"filter" yaml:"filter"`
	Summary     gap.Summary    `json:"summary" yaml:"summary"`
	Counts      map[string]int `json:"counts" yaml:"counts"`
}

// FilterDoc records the thresholds a run used.
type FilterDoc struct {
	MinSearchVolume      int     `json:"min_search_volume" yaml:"min_search_volume"`
	MaxKeywordDifficulty float64 `json:"max_keyword_difficulty" yaml:"max_keyword_difficulty"`
}

// NewDocument builds the summary document for a result.
func NewDocument(res *gap.Result) Document {
	counts := make(map[string]int)
	for _, s := range Sections(res) {
		counts[s.Slug] = len(s.Rows)
	}
	return Document{
		RunID:       res.RunID,
		GeneratedAt: res.CreatedAt.UTC(),
		Filter: FilterDoc{
			MinSearchVolume:      res.Filter.MinSearchVolume,
			MaxKeywordDifficulty: res.Filter.MaxKeywordDifficulty,
		},
		Summary: res.Summary,
		Counts:  counts,
	}
}

// WriteSummaryJSON writes the summary document as indented JSON.
func WriteSummaryJSON(w io.Writer, res *gap.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewDocument(res))
}

// WriteSummaryYAML writes the summary document as YAML.
func WriteSummaryYAML(w io.Writer, res *gap.Result) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(NewDocument(res)); err != nil {
		return err
	}
	return enc.Close()
}

// WriteXLSX writes the whole result as one workbook: a Summary sheet followed
// by one sheet per table. Empty tables still get their header row.
func WriteXLSX(w io.Writer, res *gap.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	const summarySheet = "Summary"
	if err := f.SetSheetName(f.GetSheetName(0), summarySheet); err != nil {
		return fmt.Errorf("naming summary sheet: %w", err)
	}
	if err := writeSummarySheet(f, summarySheet, res, bold); err != nil {
		return err
	}

	for _, s := range Sections(res) {
		if _, err := f.NewSheet(s.Title); err != nil {
			return fmt.Errorf("adding sheet %s: %w", s.Title, err)
		}
		header := make([]any, 0)
		for _, h := range Headers(s.Category) {
			header = append(header, h)
		}
		if err := setRow(f, s.Title, 1, header); err != nil {
			return err
		}
		if err := f.SetRowStyle(s.Title, 1, 1, bold); err != nil {
			return fmt.Errorf("styling %s: %w", s.Title, err)
		}
		for i, o := range s.Rows {
			if err := setRow(f, s.Title, i+2, Row(s.Category, o)); err != nil {
				return err
			}
		}
	}

	_, err = f.WriteTo(w)
	return err
}

func writeSummarySheet(f *excelize.File, sheet string, res *gap.Result, bold int) error {
	sum := res.Summary
	rows := [][]any{
		{"Metric", "Client", "Competitor"},
		{"Total Keywords", sum.Client.TotalKeywords, sum.Competitor.TotalKeywords},
		{"Average Position", sum.Client.AvgPosition, sum.Competitor.AvgPosition},
		{"Total Traffic", sum.Client.TotalTraffic, sum.Competitor.TotalTraffic},
		{"Traffic Value", sum.Client.TotalTrafficCost, sum.Competitor.TotalTrafficCost},
		{"Top 3 Rankings", sum.Client.Top3Count, sum.Competitor.Top3Count},
		{"Top 10 Rankings", sum.Client.Top10Count, sum.Competitor.Top10Count},
		{"Rankings 11+", sum.Client.Beyond10Count, sum.Competitor.Beyond10Count},
		{"Market Share %", sum.MarketShare.ClientPct, sum.MarketShare.CompetitorPct},
		{},
		{"Opportunity Score", sum.OpportunityScore},
		{"Run ID", res.RunID},
	}
	for i, r := range rows {
		if err := setRow(f, sheet, i+1, r); err != nil {
			return err
		}
	}
	return f.SetRowStyle(sheet, 1, 1, bold)
}

func setRow(f *excelize.File, sheet string, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("writing %s row %d: %w", sheet, row, err)
	}
	return nil
}

// WriteAll writes the requested formats into dir and returns the paths it
// created. CSV output produces one file per table.
func WriteAll(dir string, res *gap.Result, formats []string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	var written []string
	create := func(name string, write func(io.Writer) error) error {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := write(f); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	for _, format := range formats {
		var err error
		switch format {
		case FormatCSV:
			for _, s := range Sections(res) {
				err = create(BaseName+"_"+s.Slug+".csv", func(w io.Writer) error {
					return WriteCSV(w, s.Category, s.Rows)
				})
				if err != nil {
					break
				}
			}
		case FormatXLSX:
			err = create(BaseName+".xlsx", func(w io.Writer) error { return WriteXLSX(w, res) })
		case FormatJSON:
			err = create(BaseName+"_summary.json", func(w io.Writer) error { return WriteSummaryJSON(w, res) })
		case FormatYAML:
			err = create(BaseName+"_summary.yaml", func(w io.Writer) error { return WriteSummaryYAML(w, res) })
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownFormat, format)
		}
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
