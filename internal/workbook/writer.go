package workbook

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"outagecli/pkg/contracts/domain"
)

// DefaultMatrixSheet is the sheet name of an exported outage matrix.
const DefaultMatrixSheet = "OUTPUT"

// DefaultDailySheet is the sheet name of exported daily counts.
const DefaultDailySheet = "DAILY"

// MatrixOptions configures a matrix export.
type MatrixOptions struct {
	Sheet      string
	MeterLabel string
	// DailySheet, when set, adds a (date, count) sheet next to the matrix.
	DailySheet string
	Daily      domain.DailyCount
}

func (o MatrixOptions) withDefaults() MatrixOptions {
	if o.Sheet == "" {
		o.Sheet = DefaultMatrixSheet
	}
	if o.MeterLabel == "" {
		o.MeterLabel = "Meter No"
	}
	return o
}

// NewMatrixFile builds a workbook holding m. The caller closes it.
func NewMatrixFile(m *domain.OutageMatrix, opts MatrixOptions) (*excelize.File, error) {
	opts = opts.withDefaults()

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), opts.Sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet %q: %w", opts.Sheet, err)
	}
	if err := writeMatrixSheet(f, opts.Sheet, opts.MeterLabel, m); err != nil {
		f.Close()
		return nil, err
	}
	if opts.DailySheet != "" {
		if err := WriteDailyCounts(f, opts.DailySheet, opts.Daily); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// SaveMatrix writes m to a new workbook at path.
func SaveMatrix(path string, m *domain.OutageMatrix, opts MatrixOptions) error {
	f, err := NewMatrixFile(m, opts)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

// WriteMatrix streams a workbook holding m to w.
func WriteMatrix(w io.Writer, m *domain.OutageMatrix, opts MatrixOptions) error {
	f, err := NewMatrixFile(m, opts)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// SaveDailyCounts writes daily as a single-sheet workbook at path.
func SaveDailyCounts(path string, daily domain.DailyCount) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := WriteDailyCounts(f, DefaultDailySheet, daily); err != nil {
		return err
	}
	if err := f.DeleteSheet(f.GetSheetName(0)); err != nil {
		return fmt.Errorf("failed to drop default sheet: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

// writeMatrixSheet lays out one header row (meter label, ISO dates) and one
// row per meter with integer counts.
func writeMatrixSheet(f *excelize.File, sheet, meterLabel string, m *domain.OutageMatrix) error {
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to open stream writer for %q: %w", sheet, err)
	}
	if err := sw.SetColWidth(1, 1, 16); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	header := make([]interface{}, 0, len(m.Dates)+1)
	header = append(header, excelize.Cell{StyleID: headerStyle, Value: meterLabel})
	for _, d := range m.Dates {
		header = append(header, excelize.Cell{StyleID: headerStyle, Value: d.String()})
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	for i, row := range m.Rows {
		values := make([]interface{}, 0, len(row.Counts)+1)
		values = append(values, row.MeterID)
		for _, count := range row.Counts {
			values = append(values, count)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, values); err != nil {
			return fmt.Errorf("failed to write row for meter %s: %w", row.MeterID, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet %q: %w", sheet, err)
	}
	return nil
}

// WriteDailyCounts adds a (date, count) sheet to f.
func WriteDailyCounts(f *excelize.File, sheet string, daily domain.DailyCount) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %q: %w", sheet, err)
	}
	if err := f.SetSheetRow(sheet, "A1", &[]interface{}{"Outage Date", "Number of Records"}); err != nil {
		return fmt.Errorf("failed to write daily header: %w", err)
	}
	for i, dc := range daily {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &[]interface{}{dc.Date.String(), dc.Count}); err != nil {
			return fmt.Errorf("failed to write daily row %s: %w", dc.Date, err)
		}
	}
	return nil
}

// ReadMatrix loads a matrix sheet written by SaveMatrix.
func ReadMatrix(path, sheet string) (*domain.OutageMatrix, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()
	return readMatrixSheet(f, sheet)
}

// ReadMatrixFrom loads a matrix sheet from r.
func ReadMatrixFrom(r io.Reader, sheet string) (*domain.OutageMatrix, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook: %w", err)
	}
	defer f.Close()
	return readMatrixSheet(f, sheet)
}

func readMatrixSheet(f *excelize.File, sheet string) (*domain.OutageMatrix, error) {
	if sheet == "" {
		sheet = DefaultMatrixSheet
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrSheetNotFound, sheet, err)
	}
	if len(rows) == 0 || len(rows[0]) < 2 {
		return nil, fmt.Errorf("sheet %q has no date columns", sheet)
	}

	m := &domain.OutageMatrix{Rows: []domain.MatrixRow{}}
	for _, label := range rows[0][1:] {
		d, err := domain.ParseDate(strings.TrimSpace(label))
		if err != nil {
			return nil, fmt.Errorf("sheet %q: bad date header: %w", sheet, err)
		}
		m.Dates = append(m.Dates, d)
	}
	m.Binding = domain.MonthBinding{Year: m.Dates[0].Year, Month: m.Dates[0].Month}

	for i, row := range rows[1:] {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		counts := make([]int, len(m.Dates))
		for j := range counts {
			if j+1 >= len(row) || strings.TrimSpace(row[j+1]) == "" {
				continue
			}
			n, err := strconv.Atoi(strings.TrimSpace(row[j+1]))
			if err != nil {
				return nil, fmt.Errorf("sheet %q row %d: bad count %q: %w", sheet, i+2, row[j+1], err)
			}
			counts[j] = n
		}
		m.Rows = append(m.Rows, domain.MatrixRow{MeterID: strings.TrimSpace(row[0]), Counts: counts})
	}
	return m, nil
}
