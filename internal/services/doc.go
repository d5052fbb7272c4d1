// Package services holds the orchestration layer between the outage
// aggregation core and its surfaces (CLI and HTTP API).
//
// OutageService owns one source workbook. Load reads its period sheets,
// normalizes them concurrently and caches the resulting dataset keyed by the
// workbook's content digest. Every query method loads through that cache, so
// an edited workbook is picked up on the next request.
//
// A period whose header row lacks a required column is recorded as a
// PeriodFailure and skipped. Only when no period loads does Load fail, with
// ErrNoPeriodsLoaded.
package services
