package workbook

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"outagecli/internal/dataprocessing"
)

// ErrSheetNotFound is returned when a workbook has no sheet for a period.
var ErrSheetNotFound = errors.New("sheet not found")

// Reader reads outage sheets from an xlsx workbook.
type Reader struct {
	file   *excelize.File
	source string
	logger *slog.Logger
}

// Open opens the workbook at path.
func Open(path string, logger *slog.Logger) (*Reader, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	return newReader(f, path, logger), nil
}

// OpenReader reads a workbook from r. source names it in logs and errors.
func OpenReader(r io.Reader, source string, logger *slog.Logger) (*Reader, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook %s: %w", source, err)
	}
	return newReader(f, source, logger), nil
}

func newReader(f *excelize.File, source string, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		file:   f,
		source: source,
		logger: logger.With(slog.String("component", "workbook_reader")),
	}
}

// Close releases the workbook.
func (r *Reader) Close() error {
	return r.file.Close()
}

// SheetNames lists the sheets of the workbook in tab order.
func (r *Reader) SheetNames() []string {
	return r.file.GetSheetList()
}

// ReadSheet returns the sheet named period as a raw table labelled period.
// Rows carry stored cell values and Display the formatted text.
// Sheet names are matched after trimming, so "November " serves "November".
// The header row is the first row holding any non-blank cell.
func (r *Reader) ReadSheet(period string) (dataprocessing.Table, error) {
	sheet, ok := r.findSheet(period)
	if !ok {
		return dataprocessing.Table{}, fmt.Errorf("%w: %q in %s", ErrSheetNotFound, period, r.source)
	}

	// Stored values keep date cells as serials whatever their number format;
	// the formatted read only feeds passthrough fields.
	rows, err := r.file.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return dataprocessing.Table{}, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	shown, err := r.file.GetRows(sheet)
	if err != nil {
		return dataprocessing.Table{}, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	table := dataprocessing.Table{Label: period}
	headerRow := -1
	for i, row := range rows {
		if !isBlank(row) {
			headerRow = i
			break
		}
	}
	if headerRow == -1 {
		r.logger.Warn("Sheet has no header row",
			slog.String("source", r.source),
			slog.String("sheet", sheet))
		return table, nil
	}

	table.Headers = rows[headerRow]
	table.Rows = rows[headerRow+1:]
	if len(shown) > headerRow {
		table.Display = shown[headerRow+1:]
	}

	r.logger.Debug("Sheet read",
		slog.String("source", r.source),
		slog.String("sheet", sheet),
		slog.Int("header_row", headerRow+1),
		slog.Int("data_rows", len(table.Rows)))

	return table, nil
}

func (r *Reader) findSheet(period string) (string, bool) {
	want := strings.TrimSpace(period)
	sheets := r.file.GetSheetList()
	for _, name := range sheets {
		if name == period || strings.TrimSpace(name) == want {
			return name, true
		}
	}
	for _, name := range sheets {
		if strings.EqualFold(strings.TrimSpace(name), want) {
			return name, true
		}
	}
	return "", false
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
