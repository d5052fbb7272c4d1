package exporter

import (
	"fmt"
	"io"
	"log/slog"

	"outagecli/pkg/contracts/domain"
)

// Column headers of the exported daily table.
const (
	HeaderOutageDate = "Outage Date"
	HeaderCount      = "Number of Records"
)

// DailyExporter writes aggregation results as CSV.
type DailyExporter struct {
	csvWriter *CSVWriter
}

// NewDailyExporter creates a new exporter writing under baseDir
func NewDailyExporter(baseDir string, logger *slog.Logger) *DailyExporter {
	return &DailyExporter{csvWriter: NewCSVWriter(baseDir, logger)}
}

// ExportDailyCounts writes the two-column daily table to outputPath.
func (d *DailyExporter) ExportDailyCounts(daily domain.DailyCount, outputPath string) error {
	if err := d.csvWriter.WriteCSV(outputPath, dailyOptions(daily)); err != nil {
		return fmt.Errorf("failed to export daily counts: %w", err)
	}
	return nil
}

// WriteDailyCounts streams the daily table to out.
func (d *DailyExporter) WriteDailyCounts(out io.Writer, daily domain.DailyCount) error {
	return Encode(out, dailyOptions(daily))
}

func dailyOptions(daily domain.DailyCount) WriteOptions {
	records := make([][]string, 0, len(daily))
	for _, dc := range daily {
		records = append(records, []string{dc.Date.String(), formatInt(dc.Count)})
	}
	return WriteOptions{
		Headers:   []string{HeaderOutageDate, HeaderCount},
		Records:   records,
		BOMPrefix: true,
	}
}

// ExportQuery writes the matched records of a query to outputPath: the
// source row number, the parsed timestamps, then every source column.
func (d *DailyExporter) ExportQuery(result domain.QueryResult, columns []string, outputPath string) error {
	stream, err := d.csvWriter.CreateStreamWriter(outputPath, queryHeaders(columns))
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}

	for _, record := range result.Records {
		if err := stream.WriteRecord(queryRow(record, columns)); err != nil {
			stream.Close()
			return fmt.Errorf("failed to write row %d: %w", record.Row, err)
		}
	}

	if err := stream.Close(); err != nil {
		return fmt.Errorf("failed to close query export: %w", err)
	}
	return nil
}

// WriteQuery streams the matched records of a query to out.
func (d *DailyExporter) WriteQuery(out io.Writer, result domain.QueryResult, columns []string) error {
	records := make([][]string, 0, len(result.Records))
	for _, record := range result.Records {
		records = append(records, queryRow(record, columns))
	}
	return Encode(out, WriteOptions{Headers: queryHeaders(columns), Records: records, BOMPrefix: true})
}

// ExportMatrix writes the matrix as CSV: meter label, then one column per day.
func (d *DailyExporter) ExportMatrix(m *domain.OutageMatrix, meterLabel, outputPath string) error {
	headers := make([]string, 0, len(m.Dates)+1)
	headers = append(headers, meterLabel)
	for _, date := range m.Dates {
		headers = append(headers, date.String())
	}

	records := make([][]string, 0, len(m.Rows))
	for _, row := range m.Rows {
		record := make([]string, 0, len(row.Counts)+1)
		record = append(record, row.MeterID)
		for _, c := range row.Counts {
			record = append(record, formatInt(c))
		}
		records = append(records, record)
	}

	return d.csvWriter.WriteCSV(outputPath, WriteOptions{Headers: headers, Records: records, BOMPrefix: true})
}

func queryHeaders(columns []string) []string {
	headers := make([]string, 0, len(columns)+3)
	headers = append(headers, "Row", "Parsed Outage Time", "Parsed Outage Date")
	return append(headers, columns...)
}

func queryRow(record domain.OutageRecord, columns []string) []string {
	row := make([]string, 0, len(columns)+3)
	row = append(row, formatInt(record.Row), formatTimestamp(record.OutageTime), formatDate(record.OutageDate))
	for _, col := range columns {
		row = append(row, record.Fields[col])
	}
	return row
}
