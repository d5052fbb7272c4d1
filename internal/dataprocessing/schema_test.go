package dataprocessing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		headers   []string
		wantIndex map[string]int
		wantErr   string
	}{
		{
			name:      "spaced convention with padding",
			headers:   []string{" Meter No ", "Outage Date Time  ", "Restore Date Time", "Feeder"},
			wantIndex: map[string]int{ColumnMeterID: 0, ColumnOutageTime: 1, ColumnRestoreTime: 2},
		},
		{
			name:      "compact convention",
			headers:   []string{"Feeder", "Meterno", "OutageDateTime", "RestoreDateTime"},
			wantIndex: map[string]int{ColumnMeterID: 1, ColumnOutageTime: 2, ColumnRestoreTime: 3},
		},
		{
			name:      "case insensitive fallback",
			headers:   []string{"METER NO", "outage date time", "Restore Date Time"},
			wantIndex: map[string]int{ColumnMeterID: 0, ColumnOutageTime: 1, ColumnRestoreTime: 2},
		},
		{
			name:    "missing outage column",
			headers: []string{"Meter No", "Restore Date Time"},
			wantErr: "Outage Date Time",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := Table{Label: "November", Headers: tt.headers}
			got, err := Normalize(table, DefaultColumnMapping())
			if tt.wantErr != "" {
				require.Error(t, err)
				var schemaErr *SchemaError
				require.True(t, errors.As(err, &schemaErr))
				assert.Equal(t, "November", schemaErr.Period)
				assert.Equal(t, tt.wantErr, schemaErr.Column)
				assert.ErrorIs(t, err, ErrMissingColumn)
				assert.Contains(t, err.Error(), "November")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantIndex, got.Index)
		})
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	table := Table{
		Label:   "January",
		Headers: []string{" Meter No ", " Outage Date Time", "Restore Date Time "},
		Rows:    [][]string{{"M1", "2025-01-02 10:00", ""}},
	}

	got, err := Normalize(table, DefaultColumnMapping())
	require.NoError(t, err)

	got.Rows[0][0] = "changed"
	assert.Equal(t, " Meter No ", table.Headers[0])
	assert.Equal(t, "M1", table.Rows[0][0])
	assert.Equal(t, []string{"Meter No", "Outage Date Time", "Restore Date Time"}, got.Headers)
}

func TestNormalizeOptionalColumn(t *testing.T) {
	mapping := DefaultColumnMapping()
	for i := range mapping.Columns {
		if mapping.Columns[i].Logical == ColumnRestoreTime {
			mapping.Columns[i].Required = false
		}
	}

	got, err := Normalize(Table{Headers: []string{"Meter No", "Outage Date Time"}}, mapping)
	require.NoError(t, err)
	_, mapped := got.Index[ColumnRestoreTime]
	assert.False(t, mapped)
	assert.Equal(t, "", got.Cell([]string{"M1", "x"}, ColumnRestoreTime))
}

func TestColumnMappingValidate(t *testing.T) {
	assert.NoError(t, DefaultColumnMapping().Validate())

	noMeter := ColumnMapping{Columns: []ColumnSpec{
		{Logical: ColumnOutageTime, Aliases: []string{"Outage"}},
	}}
	assert.Error(t, noMeter.Validate())

	dup := ColumnMapping{Columns: []ColumnSpec{
		{Logical: ColumnMeterID, Aliases: []string{"Meter"}},
		{Logical: ColumnMeterID, Aliases: []string{"Meterno"}},
		{Logical: ColumnOutageTime, Aliases: []string{"Outage"}},
	}}
	assert.Error(t, dup.Validate())

	noAliases := ColumnMapping{Columns: []ColumnSpec{
		{Logical: ColumnMeterID},
		{Logical: ColumnOutageTime, Aliases: []string{"Outage"}},
	}}
	assert.Error(t, noAliases.Validate())
}
