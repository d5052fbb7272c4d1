package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidBinding is returned for a month binding outside 1..12 or year 1..9999.
var ErrInvalidBinding = errors.New("invalid month binding")

// OutageRecord represents one row of an outage sheet.
// OutageTime and OutageDate are nil when the source value could not be parsed.
type OutageRecord struct {
	Row         int               `json:"row"`
	MeterID     string            `json:"meter_id"`
	OutageTime  *time.Time        `json:"outage_time,omitempty"`
	RestoreTime *time.Time        `json:"restore_time,omitempty"`
	OutageDate  *Date             `json:"outage_date,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}

// HasDate reports whether the record takes part in date-keyed aggregations.
func (r OutageRecord) HasDate() bool {
	return r.OutageDate != nil
}

// ParseWarning describes a timestamp cell that could not be parsed.
// It is informational; the record is kept with a nil timestamp.
type ParseWarning struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Value  string `json:"value"`
}

// RecordSet is the normalized content of one period (sheet).
type RecordSet struct {
	Period   string         `json:"period"`
	Columns  []string       `json:"columns"`
	Records  []OutageRecord `json:"records"`
	Warnings []ParseWarning `json:"warnings,omitempty"`
}

// Len returns the number of records in the set, including undated ones.
func (s *RecordSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// DayCount is one entry of a DailyCount.
type DayCount struct {
	Date  Date `json:"date"`
	Count int  `json:"count"`
}

// DailyCount lists outage counts per calendar date, ascending, sparse.
type DailyCount []DayCount

// Total returns the sum of all counts.
func (dc DailyCount) Total() int {
	total := 0
	for _, c := range dc {
		total += c.Count
	}
	return total
}

// MonthBinding fixes the column range of an OutageMatrix.
type MonthBinding struct {
	Year  int        `json:"year" validate:"min=1,max=9999"`
	Month time.Month `json:"month" validate:"min=1,max=12"`
}

// NewMonthBinding validates and returns a binding.
func NewMonthBinding(year int, month time.Month) (MonthBinding, error) {
	b := MonthBinding{Year: year, Month: month}
	if err := b.Validate(); err != nil {
		return MonthBinding{}, err
	}
	return b, nil
}

// ParseMonthBinding parses "YYYY-MM".
func ParseMonthBinding(s string) (MonthBinding, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return MonthBinding{}, fmt.Errorf("%w: %q: %v", ErrInvalidBinding, s, err)
	}
	return NewMonthBinding(t.Year(), t.Month())
}

// Validate checks that the binding names a real month.
func (b MonthBinding) Validate() error {
	if b.Month < time.January || b.Month > time.December {
		return fmt.Errorf("%w: month %d", ErrInvalidBinding, int(b.Month))
	}
	if b.Year < 1 || b.Year > 9999 {
		return fmt.Errorf("%w: year %d", ErrInvalidBinding, b.Year)
	}
	return nil
}

// Days returns the calendar length of the bound month.
func (b MonthBinding) Days() int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(b.Year, b.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Dates returns every date of the bound month in ascending order.
func (b MonthBinding) Dates() []Date {
	n := b.Days()
	dates := make([]Date, n)
	for day := 1; day <= n; day++ {
		dates[day-1] = Date{Year: b.Year, Month: b.Month, Day: day}
	}
	return dates
}

// Contains reports whether t falls in the bound year and month.
func (b MonthBinding) Contains(t time.Time) bool {
	return t.Year() == b.Year && t.Month() == b.Month
}

// String returns "YYYY-MM".
func (b MonthBinding) String() string {
	return fmt.Sprintf("%04d-%02d", b.Year, int(b.Month))
}

// MatrixRow holds one meter's counts, aligned with OutageMatrix.Dates.
type MatrixRow struct {
	MeterID string `json:"meter_id"`
	Counts  []int  `json:"counts"`
}

// Total returns the number of outages of the row.
func (r MatrixRow) Total() int {
	total := 0
	for _, c := range r.Counts {
		total += c
	}
	return total
}

// OutageMatrix is a dense meter-by-day count grid for one month.
// Every row has exactly len(Dates) counts; 0 means "no outage that day".
type OutageMatrix struct {
	Binding MonthBinding `json:"binding"`
	Dates   []Date       `json:"dates"`
	Rows    []MatrixRow  `json:"rows"`
}

// Row returns the row of meter.
func (m *OutageMatrix) Row(meterID string) (MatrixRow, bool) {
	for _, row := range m.Rows {
		if row.MeterID == meterID {
			return row, true
		}
	}
	return MatrixRow{}, false
}

// Cell returns the count for meter on date. ok is false when the meter has
// no row or the date lies outside the bound month.
func (m *OutageMatrix) Cell(meterID string, date Date) (count int, ok bool) {
	row, found := m.Row(meterID)
	if !found {
		return 0, false
	}
	for i, d := range m.Dates {
		if d == date {
			return row.Counts[i], true
		}
	}
	return 0, false
}

// ColumnCount returns the number of date columns.
func (m *OutageMatrix) ColumnCount() int {
	return len(m.Dates)
}

// QueryResult is the answer of a meter+date record lookup.
type QueryResult struct {
	MeterID string         `json:"meter_id"`
	Date    Date           `json:"date"`
	Count   int            `json:"count"`
	Records []OutageRecord `json:"records"`
}

// RecordTotals separates raw record count from the records usable by
// date-keyed aggregations.
type RecordTotals struct {
	Total        int `json:"total"`
	WithDate     int `json:"with_date"`
	Unparseable  int `json:"unparseable"`
	WithoutMeter int `json:"without_meter"`
}

// PeriodFailure records a period that could not be loaded.
type PeriodFailure struct {
	Period  string `json:"period"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
}

// Dataset is everything loaded from one workbook.
type Dataset struct {
	Source      string                  `json:"source"`
	LoadedAt    time.Time               `json:"loaded_at"`
	PeriodNames []string                `json:"periods"`
	Periods     map[string]*RecordSet   `json:"-"`
	Bindings    map[string]MonthBinding `json:"-"`
	Failures    []PeriodFailure         `json:"failures,omitempty"`
}

// PeriodSummary describes one loaded period.
type PeriodSummary struct {
	Name     string       `json:"name"`
	Binding  string       `json:"binding"`
	Columns  []string     `json:"columns"`
	Totals   RecordTotals `json:"totals"`
	Warnings int          `json:"warnings"`
}

// Period returns the record set of name.
func (d *Dataset) Period(name string) (*RecordSet, bool) {
	if d == nil {
		return nil, false
	}
	set, ok := d.Periods[name]
	return set, ok
}

// Binding returns the month the matrix of name is bound to.
func (d *Dataset) Binding(name string) (MonthBinding, bool) {
	if d == nil {
		return MonthBinding{}, false
	}
	b, ok := d.Bindings[name]
	return b, ok
}
