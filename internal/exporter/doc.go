// Package exporter writes outage aggregation results as CSV.
//
// CSVWriter is the low-level writer: whole-file writes, appends and a
// streaming mode, all UTF-8 with an optional BOM so Excel opens the files
// with the right encoding. DailyExporter builds on it for the three result
// shapes: daily counts, record query rows and the meter by day matrix.
//
//	exp := exporter.NewDailyExporter("reports", logger)
//	err := exp.ExportDailyCounts(daily, "november_daily.csv")
package exporter
