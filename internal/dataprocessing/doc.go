// Package dataprocessing holds the outage aggregation core. Every function
// here is a pure in-memory transformation: no I/O, no shared state.
//
// # Architecture
//
//  1. Normalize: trims header labels and resolves logical columns through a
//     configurable ColumnMapping, failing with *SchemaError when a required
//     column is absent.
//  2. ExtractDates: coerces timestamp cells; an unparseable cell leaves the
//     record with a nil timestamp and a ParseWarning.
//  3. CountDaily, BuildMatrix, QueryRecords, Totals: aggregations over the
//     resulting domain.RecordSet.
//
// # Usage
//
//	processor := dataprocessing.NewSheetProcessor(dataprocessing.DefaultOptions())
//	set, err := processor.Process(table)
//	if err != nil {
//	    var schemaErr *dataprocessing.SchemaError
//	    if errors.As(err, &schemaErr) { ... }
//	}
//	daily := dataprocessing.CountDaily(set)
//	matrix := dataprocessing.BuildMatrix(set, domain.MonthBinding{Year: 2025, Month: time.November})
//
// # Data Flow
//
//	Table → Normalize → ExtractDates → RecordSet → {CountDaily | BuildMatrix | QueryRecords}
package dataprocessing
