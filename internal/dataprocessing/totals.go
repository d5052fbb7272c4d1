package dataprocessing

import (
	"outagecli/pkg/contracts/domain"
)

// Totals reports the raw record count next to the number of records usable
// by date-keyed aggregations.
func Totals(set *domain.RecordSet) domain.RecordTotals {
	var totals domain.RecordTotals
	if set == nil {
		return totals
	}
	for _, record := range set.Records {
		totals.Total++
		if record.HasDate() {
			totals.WithDate++
		} else {
			totals.Unparseable++
		}
		if record.MeterID == "" {
			totals.WithoutMeter++
		}
	}
	return totals
}

// Meters lists the distinct non-empty meter ids of set, ascending.
func Meters(set *domain.RecordSet) []string {
	seen := make(map[string]bool)
	if set != nil {
		for _, record := range set.Records {
			if record.MeterID != "" {
				seen[record.MeterID] = true
			}
		}
	}
	return sortedKeys(seen)
}
