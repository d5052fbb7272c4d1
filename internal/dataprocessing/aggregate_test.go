package dataprocessing

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outagecli/pkg/contracts/domain"
)

// buildSet runs rows of (meter, outage timestamp) through the real pipeline.
func buildSet(t *testing.T, period string, rows ...[2]string) *domain.RecordSet {
	t.Helper()
	table := Table{
		Label:   period,
		Headers: []string{"Meter No", "Outage Date Time", "Restore Date Time"},
	}
	for _, r := range rows {
		table.Rows = append(table.Rows, []string{r[0], r[1], ""})
	}
	set, err := NewSheetProcessor(DefaultOptions()).Process(table)
	require.NoError(t, err)
	return set
}

func novemberScenario(t *testing.T) *domain.RecordSet {
	return buildSet(t, "November",
		[2]string{"M1", "2025-11-05 01:00"},
		[2]string{"M1", "2025-11-05 07:30"},
		[2]string{"M1", "2025-11-05 23:59"},
		[2]string{"M1", "2025-11-06 12:00"},
	)
}

func TestCountDailyScenario(t *testing.T) {
	got := CountDaily(novemberScenario(t))
	assert.Equal(t, domain.DailyCount{
		{Date: domain.NewDate(2025, time.November, 5), Count: 3},
		{Date: domain.NewDate(2025, time.November, 6), Count: 1},
	}, got)
}

func TestCountDailyEmpty(t *testing.T) {
	got := CountDaily(&domain.RecordSet{})
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Empty(t, CountDaily(nil))
}

func TestCountDailySortsAscending(t *testing.T) {
	set := buildSet(t, "mixed",
		[2]string{"M1", "2025-12-02 00:00"},
		[2]string{"M2", "2024-12-31 00:00"},
		[2]string{"M3", "2025-01-15 00:00"},
		[2]string{"", "2025-01-15 10:00"},
	)
	got := CountDaily(set)
	require.Len(t, got, 3)
	assert.Equal(t, "2024-12-31", got[0].Date.String())
	assert.Equal(t, "2025-01-15", got[1].Date.String())
	assert.Equal(t, 2, got[1].Count)
	assert.Equal(t, "2025-12-02", got[2].Date.String())
}

func TestDailySumEqualsDatedRecords(t *testing.T) {
	set := buildSet(t, "props",
		[2]string{"M1", "2025-11-01 00:00"},
		[2]string{"M2", "bad"},
		[2]string{"M3", ""},
		[2]string{"M1", "2025-10-31 23:00"},
		[2]string{"M2", "2025-11-01 05:00"},
	)
	totals := Totals(set)
	assert.Equal(t, totals.WithDate, CountDaily(set).Total())
	assert.Equal(t, 5, totals.Total)
	assert.Equal(t, 3, totals.WithDate)
	assert.Equal(t, 2, totals.Unparseable)
}

func TestBuildMatrixScenario(t *testing.T) {
	matrix := BuildMatrix(novemberScenario(t), domain.MonthBinding{Year: 2025, Month: time.November})

	require.Len(t, matrix.Rows, 1)
	assert.Equal(t, 30, matrix.ColumnCount())

	row, ok := matrix.Row("M1")
	require.True(t, ok)
	require.Len(t, row.Counts, 30)
	for i, count := range row.Counts {
		switch matrix.Dates[i].Day {
		case 5:
			assert.Equal(t, 3, count)
		case 6:
			assert.Equal(t, 1, count)
		default:
			assert.Equal(t, 0, count, "day %d", matrix.Dates[i].Day)
		}
	}

	cell, ok := matrix.Cell("M1", domain.NewDate(2025, time.November, 5))
	assert.True(t, ok)
	assert.Equal(t, 3, cell)
}

func TestBuildMatrixColumnCount(t *testing.T) {
	tests := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2024, time.February, 29},
		{2025, time.February, 28},
		{1900, time.February, 28},
		{2000, time.February, 29},
		{2025, time.April, 30},
		{2025, time.November, 30},
		{2025, time.December, 31},
		{2025, time.January, 31},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d-%02d", tt.year, int(tt.month)), func(t *testing.T) {
			matrix := BuildMatrix(&domain.RecordSet{}, domain.MonthBinding{Year: tt.year, Month: tt.month})
			assert.Equal(t, tt.want, matrix.ColumnCount())
			assert.Equal(t, 1, matrix.Dates[0].Day)
			assert.Equal(t, tt.want, matrix.Dates[len(matrix.Dates)-1].Day)
			assert.Empty(t, matrix.Rows)
		})
	}
}

func TestBuildMatrixFiltersToBoundMonth(t *testing.T) {
	set := buildSet(t, "December",
		[2]string{"M2", "2025-12-31 23:59"},
		[2]string{"M1", "2025-12-01 00:00"},
		[2]string{"M3", "2025-11-30 23:59"},
		[2]string{"M4", "2024-12-15 10:00"},
		[2]string{"M5", "unparseable"},
		[2]string{"", "2025-12-10 10:00"},
	)
	matrix := BuildMatrix(set, domain.MonthBinding{Year: 2025, Month: time.December})

	require.Len(t, matrix.Rows, 2)
	assert.Equal(t, "M1", matrix.Rows[0].MeterID)
	assert.Equal(t, "M2", matrix.Rows[1].MeterID)
	for _, row := range matrix.Rows {
		assert.Len(t, row.Counts, 31)
		assert.Equal(t, 1, row.Total())
	}
	_, ok := matrix.Row("M3")
	assert.False(t, ok)
	_, ok = matrix.Cell("M1", domain.NewDate(2025, time.November, 30))
	assert.False(t, ok)
}

func TestQueryRecords(t *testing.T) {
	set := buildSet(t, "November",
		[2]string{"M1", "2025-11-05 01:00"},
		[2]string{"M2", "2025-11-05 02:00"},
		[2]string{"M1", "2025-11-05 03:00"},
		[2]string{"M1", "2025-11-06 03:00"},
		[2]string{"M1", "broken"},
	)
	date := domain.NewDate(2025, time.November, 5)

	got := QueryRecords(set, "M1", date)
	assert.Equal(t, 2, got.Count)
	require.Len(t, got.Records, 2)
	assert.Equal(t, 1, got.Records[0].Row)
	assert.Equal(t, 3, got.Records[1].Row)

	padded := QueryRecords(set, "  M1 ", date)
	assert.Equal(t, got.Records, padded.Records)

	viaFilters := FilterByDate(FilterByMeter(set, "M1"), date)
	assert.Equal(t, got.Records, viaFilters.Records)
	reversed := FilterByMeter(FilterByDate(set, date), "M1")
	assert.Equal(t, got.Records, reversed.Records)

	again := QueryRecords(set, "M1", date)
	assert.Equal(t, got, again)
}

func TestQueryAbsentMeter(t *testing.T) {
	got := QueryRecords(novemberScenario(t), "M9", domain.NewDate(2025, time.November, 5))
	assert.Equal(t, 0, got.Count)
	assert.NotNil(t, got.Records)
	assert.Empty(t, got.Records)

	assert.Equal(t, 0, QueryRecords(nil, "M1", domain.NewDate(2025, time.November, 5)).Count)
}

func TestUnparseableRecordScenario(t *testing.T) {
	set := buildSet(t, "November",
		[2]string{"M1", "2025-11-05 01:00"},
		[2]string{"M1", "31/31/2025 99:99"},
	)

	assert.Equal(t, 2, set.Len())
	assert.Len(t, set.Warnings, 1)
	assert.Equal(t, 1, CountDaily(set).Total())

	matrix := BuildMatrix(set, domain.MonthBinding{Year: 2025, Month: time.November})
	row, ok := matrix.Row("M1")
	require.True(t, ok)
	assert.Equal(t, 1, row.Total())

	for _, d := range (domain.MonthBinding{Year: 2025, Month: time.November}).Dates() {
		for _, r := range QueryRecords(set, "M1", d).Records {
			assert.Equal(t, 1, r.Row)
		}
	}
}

func TestMeters(t *testing.T) {
	set := buildSet(t, "p",
		[2]string{"M2", "2025-11-05 01:00"},
		[2]string{"", "2025-11-05 01:00"},
		[2]string{"M1", "bad"},
		[2]string{"M2", "2025-11-06 01:00"},
	)
	assert.Equal(t, []string{"M1", "M2"}, Meters(set))
	assert.Empty(t, Meters(nil))
	assert.Equal(t, 1, Totals(set).WithoutMeter)
}
