package dataprocessing

import (
	"sort"

	"outagecli/pkg/contracts/domain"
)

// CountDaily groups records by outage date and counts them, ascending by
// date. Records without a date are skipped.
func CountDaily(set *domain.RecordSet) domain.DailyCount {
	result := domain.DailyCount{}
	if set == nil {
		return result
	}

	counts := make(map[domain.Date]int)
	for _, record := range set.Records {
		if !record.HasDate() {
			continue
		}
		counts[*record.OutageDate]++
	}

	for _, date := range sortedDates(counts) {
		result = append(result, domain.DayCount{Date: date, Count: counts[date]})
	}
	return result
}

// sortedDates extracts and sorts the keys of a date-keyed map.
func sortedDates(m map[domain.Date]int) []domain.Date {
	dates := make([]domain.Date, 0, len(m))
	for d := range m {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Before(dates[j])
	})
	return dates
}
