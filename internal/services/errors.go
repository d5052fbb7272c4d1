package services

import "errors"

// Outage service errors
var (
	// ErrNoPeriodsLoaded means every configured period failed to load.
	ErrNoPeriodsLoaded = errors.New("no periods loaded")

	// ErrPeriodNotFound means the requested period is not in the dataset.
	ErrPeriodNotFound = errors.New("period not found")

	// ErrWorkbookUnavailable means the source workbook could not be read.
	ErrWorkbookUnavailable = errors.New("workbook unavailable")

	// ErrWorkbookUnreadable means the workbook exists but is not a valid
	// xlsx file. It is always reported together with ErrWorkbookUnavailable.
	ErrWorkbookUnreadable = errors.New("workbook unreadable")

	// ErrExportFailed means a matrix workbook could not be written.
	ErrExportFailed = errors.New("matrix export failed")

	// ErrNoBinding means a matrix was requested for a period with no month.
	ErrNoBinding = errors.New("period has no month binding")
)
