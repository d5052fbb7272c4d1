package dataprocessing

import (
	"sort"

	"outagecli/pkg/contracts/domain"
)

// meterDay keys the sparse grouping of BuildMatrix.
type meterDay struct {
	meter string
	date  domain.Date
}

// BuildMatrix counts outages per meter and day inside binding and densifies
// the result: every row spans all days of the month, absent days are 0.
// Only meters with at least one outage in the month get a row; rows are
// ordered by meter id.
func BuildMatrix(set *domain.RecordSet, binding domain.MonthBinding) *domain.OutageMatrix {
	matrix := &domain.OutageMatrix{
		Binding: binding,
		Dates:   binding.Dates(),
		Rows:    []domain.MatrixRow{},
	}
	if set == nil {
		return matrix
	}

	sparse := make(map[meterDay]int)
	meters := make(map[string]bool)
	for _, record := range set.Records {
		if record.OutageTime == nil || record.MeterID == "" {
			continue
		}
		if !binding.Contains(*record.OutageTime) {
			continue
		}
		sparse[meterDay{meter: record.MeterID, date: *record.OutageDate}]++
		meters[record.MeterID] = true
	}

	for _, meter := range sortedKeys(meters) {
		counts := make([]int, len(matrix.Dates))
		for i, date := range matrix.Dates {
			counts[i] = sparse[meterDay{meter: meter, date: date}]
		}
		matrix.Rows = append(matrix.Rows, domain.MatrixRow{MeterID: meter, Counts: counts})
	}
	return matrix
}

// sortedKeys extracts and sorts keys from a map[string]bool
func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
