package dataprocessing

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"outagecli/pkg/contracts/domain"
)

// timestampLayouts are tried in order. Month-first slash layouts match what
// Excel renders for the default "m/d/yy h:mm" number format.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"1/2/2006",
	"1/2/06 15:04:05",
	"1/2/06 15:04",
	"1/2/06 3:04 PM",
	"1/2/06",
	"1-2-06 15:04",
	"2-Jan-2006 15:04:05",
	"2-Jan-2006 15:04",
	"2-Jan-2006",
	"02 Jan 2006 15:04",
	"Jan 2, 2006 15:04",
	"Jan 2, 2006",
}

// Excel serials before this are not plausible outage timestamps (1900-01-01).
const minExcelSerial = 1.0

// ParseTimestamp coerces a cell value into a time. It never fails loudly:
// ok is false for empty or unrecognized input. Numeric input is read as an
// Excel serial date.
func ParseTimestamp(value string) (t time.Time, ok bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	if serial, err := strconv.ParseFloat(value, 64); err == nil {
		if serial < minExcelSerial {
			return time.Time{}, false
		}
		parsed, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}

	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// ExtractDates parses the timestamp columns of a normalized table and builds
// the period's RecordSet. Unparseable timestamps yield nil fields and a
// ParseWarning; they never abort extraction.
func ExtractDates(table *NormalizedTable) *domain.RecordSet {
	set := &domain.RecordSet{
		Period:  table.Label,
		Columns: append([]string(nil), table.Headers...),
		Records: make([]domain.OutageRecord, 0, len(table.Rows)),
	}

	outageLabel := table.label(ColumnOutageTime)
	restoreLabel := table.label(ColumnRestoreTime)

	for i, row := range table.Rows {
		rowNum := i + 1
		record := domain.OutageRecord{
			Row:     rowNum,
			MeterID: table.Cell(row, ColumnMeterID),
			Fields:  make(map[string]string, len(table.Headers)),
		}
		shown := row
		if i < len(table.Display) && table.Display[i] != nil {
			shown = table.Display[i]
		}
		for col, header := range table.Headers {
			if header == "" {
				continue
			}
			if col < len(shown) {
				record.Fields[header] = strings.TrimSpace(shown[col])
			} else {
				record.Fields[header] = ""
			}
		}

		raw := table.Cell(row, ColumnOutageTime)
		if ts, ok := ParseTimestamp(raw); ok {
			date := domain.DateOf(ts)
			record.OutageTime = &ts
			record.OutageDate = &date
		} else {
			set.Warnings = append(set.Warnings, domain.ParseWarning{Row: rowNum, Column: outageLabel, Value: raw})
		}

		if _, mapped := table.Index[ColumnRestoreTime]; mapped {
			rawRestore := table.Cell(row, ColumnRestoreTime)
			if ts, ok := ParseTimestamp(rawRestore); ok {
				record.RestoreTime = &ts
			} else if rawRestore != "" {
				set.Warnings = append(set.Warnings, domain.ParseWarning{Row: rowNum, Column: restoreLabel, Value: rawRestore})
			}
		}

		set.Records = append(set.Records, record)
	}

	return set
}

// label returns the physical header resolved for a logical column.
func (t *NormalizedTable) label(logical string) string {
	if idx, ok := t.Index[logical]; ok && idx < len(t.Headers) {
		return t.Headers[idx]
	}
	return logical
}
