package normalize

import (
	"fmt"
	"strings"
)

// SchemaError reports required columns that no header could be resolved to.
// Expected holds the accepted header names for each missing field.
type SchemaError struct {
	Source   string
	Missing  []string
	Expected map[string][]string
}

func (e *SchemaError) Error() string {
	var hints []string
	for _, field := range e.Missing {
		if names := e.Expected[field]; len(names) > 0 {
			hints = append(hints, fmt.Sprintf("%s (e.g. %s)", field, strings.Join(names[:min(3, len(names))], ", ")))
		} else {
			hints = append(hints, field)
		}
	}
	return fmt.Sprintf("%s: missing required columns: %s", e.Source, strings.Join(hints, "; "))
}

// ParseError describes a row dropped because a required numeric field
// could not be parsed. Row is 1-based and counts data rows only.
type ParseError struct {
	Source string
	Row    int
	Field  string
	Value  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s row %d: cannot parse %s from %q", e.Source, e.Row, e.Field, e.Value)
}

// EmptyDatasetError is returned when a file parses but yields no usable rows.
type EmptyDatasetError struct {
	Source  string
	Skipped int
}

func (e *EmptyDatasetError) Error() string {
	if e.Skipped > 0 {
		return fmt.Sprintf("%s: no valid keyword rows (%d rows skipped)", e.Source, e.Skipped)
	}
	return fmt.Sprintf("%s: no keyword rows", e.Source)
}
