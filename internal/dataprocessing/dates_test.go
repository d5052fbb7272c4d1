package dataprocessing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outagecli/pkg/contracts/domain"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
		ok    bool
	}{
		{"2025-11-05 14:30:00", time.Date(2025, 11, 5, 14, 30, 0, 0, time.UTC), true},
		{"2025-11-05T14:30:00Z", time.Date(2025, 11, 5, 14, 30, 0, 0, time.UTC), true},
		{"2025-11-05", time.Date(2025, 11, 5, 0, 0, 0, 0, time.UTC), true},
		{"11/5/2025 14:30", time.Date(2025, 11, 5, 14, 30, 0, 0, time.UTC), true},
		{"11/05/2025 2:30 PM", time.Date(2025, 11, 5, 14, 30, 0, 0, time.UTC), true},
		{"11/5/25 14:30", time.Date(2025, 11, 5, 14, 30, 0, 0, time.UTC), true},
		{"5-Nov-2025 09:15", time.Date(2025, 11, 5, 9, 15, 0, 0, time.UTC), true},
		{"45966.5", time.Date(2025, 11, 5, 12, 0, 0, 0, time.UTC), true},
		{"  2025-11-05 14:30  ", time.Date(2025, 11, 5, 14, 30, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"not a date", time.Time{}, false},
		{"2025-13-45", time.Time{}, false},
		{"-3", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
			}
		})
	}
}

func TestExtractDates(t *testing.T) {
	table := Table{
		Label:   "November",
		Headers: []string{"Meter No", "Outage Date Time", "Restore Date Time", "Feeder"},
		Rows: [][]string{
			{"M1", "2025-11-05 08:00", "2025-11-05 09:00", "F1"},
			{" M2 ", "garbage", "", "F2"},
			{"M3", "2025-11-06 10:00", "later"},
		},
	}
	normalized, err := Normalize(table, DefaultColumnMapping())
	require.NoError(t, err)

	set := ExtractDates(normalized)
	require.Len(t, set.Records, 3)
	assert.Equal(t, "November", set.Period)

	first := set.Records[0]
	assert.Equal(t, 1, first.Row)
	assert.Equal(t, "M1", first.MeterID)
	require.NotNil(t, first.OutageDate)
	assert.Equal(t, domain.NewDate(2025, time.November, 5), *first.OutageDate)
	require.NotNil(t, first.RestoreTime)
	assert.Equal(t, "F1", first.Fields["Feeder"])

	second := set.Records[1]
	assert.Equal(t, "M2", second.MeterID)
	assert.Nil(t, second.OutageTime)
	assert.Nil(t, second.OutageDate)
	assert.False(t, second.HasDate())

	third := set.Records[2]
	assert.Nil(t, third.RestoreTime)
	assert.Equal(t, "", third.Fields["Feeder"])

	assert.Equal(t, []domain.ParseWarning{
		{Row: 2, Column: "Outage Date Time", Value: "garbage"},
		{Row: 3, Column: "Restore Date Time", Value: "later"},
	}, set.Warnings)
}

func TestSheetProcessorEmptyRows(t *testing.T) {
	table := Table{
		Label:   "December",
		Headers: []string{"Meterno", "OutageDateTime", "RestoreDateTime"},
		Rows: [][]string{
			{"", " ", ""},
			{"M1", "45992.0416666667", ""},
			{},
		},
		Display: [][]string{
			{"", " ", ""},
			{"M1", "12/1/25 1:00", ""},
			{},
		},
	}

	t.Run("kept by default", func(t *testing.T) {
		set, err := NewSheetProcessor(DefaultOptions()).Process(table)
		require.NoError(t, err)
		assert.Equal(t, 3, set.Len())

		totals := Totals(set)
		assert.Equal(t, 3, totals.Total)
		assert.Equal(t, 1, totals.WithDate)
		assert.Equal(t, 2, totals.WithoutMeter)
	})

	t.Run("dropped on request", func(t *testing.T) {
		opts := DefaultOptions()
		opts.DropEmptyRows = true
		set, err := NewSheetProcessor(opts).Process(table)
		require.NoError(t, err)
		require.Equal(t, 1, set.Len())

		record := set.Records[0]
		assert.Equal(t, "M1", record.MeterID)
		require.NotNil(t, record.OutageDate)
		assert.Equal(t, domain.NewDate(2025, time.December, 1), *record.OutageDate)
		assert.Equal(t, "12/1/25 1:00", record.Fields["OutageDateTime"])
	})
}

func TestExtractDatesFieldsFallBackToStoredValues(t *testing.T) {
	set, err := NewSheetProcessor(DefaultOptions()).Process(Table{
		Label:   "November",
		Headers: []string{"Meter No", "Outage Date Time", "Restore Date Time"},
		Rows: [][]string{
			{"M1", "45966.6041666667", ""},
			{"M2", "2025-11-06 10:00", ""},
		},
		Display: [][]string{
			{"M1", "05/11/2025 14:30", ""},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())

	assert.Equal(t, "05/11/2025 14:30", set.Records[0].Fields["Outage Date Time"])
	assert.Equal(t, domain.NewDate(2025, time.November, 5), *set.Records[0].OutageDate)
	assert.Equal(t, "2025-11-06 10:00", set.Records[1].Fields["Outage Date Time"])
}

func TestSheetProcessorSchemaError(t *testing.T) {
	p := NewSheetProcessor(DefaultOptions())
	_, err := p.Process(Table{Label: "January", Headers: []string{"Meter No"}})
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "January", schemaErr.Period)
}
