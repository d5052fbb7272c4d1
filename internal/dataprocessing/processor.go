package dataprocessing

import (
	"strings"

	"outagecli/pkg/contracts/domain"
)

// SheetProcessor chains the schema normalizer and the date extractor.
type SheetProcessor struct {
	options ProcessingOptions
}

// NewSheetProcessor creates a new sheet processor
func NewSheetProcessor(options ProcessingOptions) *SheetProcessor {
	return &SheetProcessor{options: options}
}

// Process normalizes table and extracts its records. A *SchemaError is
// returned when a required column is missing.
func (p *SheetProcessor) Process(table Table) (*domain.RecordSet, error) {
	if p.options.DropEmptyRows {
		table = dropEmptyRows(table)
	}
	normalized, err := Normalize(table, p.options.Mapping)
	if err != nil {
		return nil, err
	}
	return ExtractDates(normalized), nil
}

// dropEmptyRows returns a shallow copy of table without all-blank rows,
// keeping Display aligned.
func dropEmptyRows(table Table) Table {
	out := Table{Label: table.Label, Headers: table.Headers, Rows: make([][]string, 0, len(table.Rows))}
	if table.Display != nil {
		out.Display = make([][]string, 0, len(table.Display))
	}
	for i, row := range table.Rows {
		if isBlankRow(row) && (i >= len(table.Display) || isBlankRow(table.Display[i])) {
			continue
		}
		out.Rows = append(out.Rows, row)
		if table.Display != nil {
			var shown []string
			if i < len(table.Display) {
				shown = table.Display[i]
			}
			out.Display = append(out.Display, shown)
		}
	}
	return out
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
