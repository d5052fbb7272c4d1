package dataprocessing

import (
	"strings"

	"outagecli/pkg/contracts/domain"
)

// QueryRecords returns the records of meter on date, in source order.
// No match is a zero-count result, not an error.
func QueryRecords(set *domain.RecordSet, meterID string, date domain.Date) domain.QueryResult {
	meterID = strings.TrimSpace(meterID)
	result := domain.QueryResult{
		MeterID: meterID,
		Date:    date,
		Records: []domain.OutageRecord{},
	}
	if set == nil {
		return result
	}

	for _, record := range set.Records {
		if record.MeterID != meterID || !record.HasDate() {
			continue
		}
		if *record.OutageDate == date {
			result.Records = append(result.Records, record)
		}
	}
	result.Count = len(result.Records)
	return result
}

// FilterByMeter returns a record set holding only meterID's records.
func FilterByMeter(set *domain.RecordSet, meterID string) *domain.RecordSet {
	meterID = strings.TrimSpace(meterID)
	return filter(set, func(r domain.OutageRecord) bool {
		return r.MeterID == meterID
	})
}

// FilterByDate returns a record set holding only records dated date.
func FilterByDate(set *domain.RecordSet, date domain.Date) *domain.RecordSet {
	return filter(set, func(r domain.OutageRecord) bool {
		return r.HasDate() && *r.OutageDate == date
	})
}

func filter(set *domain.RecordSet, keep func(domain.OutageRecord) bool) *domain.RecordSet {
	out := &domain.RecordSet{Records: []domain.OutageRecord{}}
	if set == nil {
		return out
	}
	out.Period = set.Period
	out.Columns = set.Columns
	for _, record := range set.Records {
		if keep(record) {
			out.Records = append(out.Records, record)
		}
	}
	return out
}
