package dataprocessing

import (
	"errors"
	"fmt"
	"strings"
)

// Logical column names understood by the normalizer.
const (
	ColumnMeterID     = "meter_id"
	ColumnOutageTime  = "outage_time"
	ColumnRestoreTime = "restore_time"
)

// ErrMissingColumn is wrapped by every SchemaError.
var ErrMissingColumn = errors.New("missing required column")

// Table is a raw sheet: a header row and data rows of cell strings.
// Rows may be shorter than Headers; missing cells read as "".
//
// Rows hold stored cell values, so date cells arrive as Excel serials.
// Display, when set, is aligned with Rows and holds the text a spreadsheet
// shows; it fills record Fields in place of the stored values.
type Table struct {
	Label   string
	Headers []string
	Rows    [][]string
	Display [][]string
}

// ColumnSpec maps one logical column to the physical labels it may appear as.
type ColumnSpec struct {
	Logical  string
	Aliases  []string
	Required bool
}

// ColumnMapping is the set of logical columns a sheet is normalized against.
type ColumnMapping struct {
	Columns []ColumnSpec
}

// DefaultColumnMapping accepts both observed naming conventions.
func DefaultColumnMapping() ColumnMapping {
	return ColumnMapping{Columns: []ColumnSpec{
		{Logical: ColumnMeterID, Aliases: []string{"Meter No", "Meterno"}, Required: true},
		{Logical: ColumnOutageTime, Aliases: []string{"Outage Date Time", "OutageDateTime"}, Required: true},
		{Logical: ColumnRestoreTime, Aliases: []string{"Restore Date Time", "RestoreDateTime"}, Required: true},
	}}
}

// Spec returns the spec of a logical column.
func (m ColumnMapping) Spec(logical string) (ColumnSpec, bool) {
	for _, c := range m.Columns {
		if c.Logical == logical {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// Validate checks that the mapping can drive the aggregations.
func (m ColumnMapping) Validate() error {
	seen := make(map[string]bool)
	for _, c := range m.Columns {
		if c.Logical == "" {
			return fmt.Errorf("column mapping: empty logical name")
		}
		if seen[c.Logical] {
			return fmt.Errorf("column mapping: duplicate logical column %q", c.Logical)
		}
		seen[c.Logical] = true
		if len(c.Aliases) == 0 {
			return fmt.Errorf("column mapping: %q has no aliases", c.Logical)
		}
	}
	for _, required := range []string{ColumnMeterID, ColumnOutageTime} {
		if !seen[required] {
			return fmt.Errorf("column mapping: %q must be mapped", required)
		}
	}
	return nil
}

// SchemaError reports a required column absent from a period's header row.
type SchemaError struct {
	Period  string
	Column  string
	Aliases []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("period %q: %s %q (accepted labels: %s)",
		e.Period, ErrMissingColumn, e.Column, strings.Join(e.Aliases, ", "))
}

// Unwrap lets errors.Is match ErrMissingColumn.
func (e *SchemaError) Unwrap() error {
	return ErrMissingColumn
}

// NormalizedTable is a copy of a Table with trimmed labels and resolved
// logical columns. Index holds the header position of each resolved column.
type NormalizedTable struct {
	Label   string
	Headers []string
	Rows    [][]string
	Display [][]string
	Index   map[string]int
}

// Cell returns the trimmed cell of a logical column, "" when unmapped or short.
func (t *NormalizedTable) Cell(row []string, logical string) string {
	idx, ok := t.Index[logical]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// Normalize trims all header labels and resolves every logical column of
// mapping. The input table is not modified.
func Normalize(table Table, mapping ColumnMapping) (*NormalizedTable, error) {
	headers := make([]string, len(table.Headers))
	for i, h := range table.Headers {
		headers[i] = strings.TrimSpace(h)
	}

	index := make(map[string]int, len(mapping.Columns))
	for _, spec := range mapping.Columns {
		idx := resolveColumn(headers, spec.Aliases)
		if idx < 0 {
			if spec.Required {
				column := spec.Logical
				if len(spec.Aliases) > 0 {
					column = spec.Aliases[0]
				}
				return nil, &SchemaError{Period: table.Label, Column: column, Aliases: spec.Aliases}
			}
			continue
		}
		index[spec.Logical] = idx
	}

	return &NormalizedTable{
		Label:   table.Label,
		Headers: headers,
		Rows:    copyRows(table.Rows),
		Display: copyRows(table.Display),
		Index:   index,
	}, nil
}

func copyRows(rows [][]string) [][]string {
	if rows == nil {
		return nil
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

// resolveColumn prefers an exact label match and falls back to a
// case-insensitive one.
func resolveColumn(headers, aliases []string) int {
	for _, alias := range aliases {
		want := strings.TrimSpace(alias)
		for i, h := range headers {
			if h == want {
				return i
			}
		}
	}
	for _, alias := range aliases {
		want := strings.TrimSpace(alias)
		for i, h := range headers {
			if strings.EqualFold(h, want) {
				return i
			}
		}
	}
	return -1
}
