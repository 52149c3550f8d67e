package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
)

// RawTable is an uploaded ranking export before any column resolution.
type RawTable struct {
	Name    string
	Headers []string
	Rows    [][]string
}

// SupportedExtensions lists the file extensions Read understands.
var SupportedExtensions = []string{".csv", ".txt", ".tsv", ".xlsx", ".xlsm"}

// ErrUnsupportedFormat is returned for files with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ReadFile opens and parses a ranking export from disk.
func ReadFile(path string) (*RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close()

	return Read(filepath.Base(path), f)
}

// Read parses a ranking export, choosing the parser from name's extension.
func Read(name string, r io.Reader) (*RawTable, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".csv", ".txt":
		return readDelimited(name, r, ',')
	case ".tsv":
		return readDelimited(name, r, '\t')
	case ".xlsx", ".xlsm":
		return readWorkbook(name, r)
	default:
		return nil, eris.Wrapf(ErrUnsupportedFormat, "ingest: %s (use one of %s)", name, strings.Join(SupportedExtensions, ", "))
	}
}

func readDelimited(name string, r io.Reader, comma rune) (*RawTable, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	t := &RawTable{Name: name}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				// Bad lines are skipped, not fatal.
				continue
			}
			return nil, eris.Wrapf(err, "ingest: read %s", name)
		}
		if blank(row) {
			continue
		}
		if t.Headers == nil {
			t.Headers = cleanHeaders(row)
			continue
		}
		t.Rows = append(t.Rows, row)
	}

	if t.Headers == nil {
		return nil, eris.Errorf("ingest: %s has no header row", name)
	}
	return t, nil
}

func readWorkbook(name string, r io.Reader) (*RawTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open workbook %s", name)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, eris.Errorf("ingest: workbook %s has no sheets", name)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read sheet %q of %s", sheets[0], name)
	}

	t := &RawTable{Name: name}
	for _, row := range rows {
		if blank(row) {
			continue
		}
		if t.Headers == nil {
			t.Headers = cleanHeaders(row)
			continue
		}
		t.Rows = append(t.Rows, row)
	}

	if t.Headers == nil {
		return nil, eris.Errorf("ingest: %s has no header row", name)
	}
	return t, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func cleanHeaders(row []string) []string {
	headers := make([]string, len(row))
	for i, h := range row {
		if i == 0 {
			h = string(bytes.TrimPrefix([]byte(h), utf8BOM))
		}
		headers[i] = strings.TrimSpace(h)
	}
	return headers
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Cell returns the trimmed value at idx, or "" when the row is short.
func Cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
