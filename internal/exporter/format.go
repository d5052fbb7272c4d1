package exporter

import (
	"strconv"
	"time"

	"outagecli/pkg/contracts/domain"
)

// timestampLayout is how parsed timestamps are written back out.
const timestampLayout = "2006-01-02 15:04:05"

func formatInt(i int) string {
	return strconv.Itoa(i)
}

// formatTimestamp renders a nil timestamp as an empty cell.
func formatTimestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timestampLayout)
}

func formatDate(d *domain.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}
