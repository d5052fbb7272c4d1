package dataprocessing

import (
	"outagecli/pkg/contracts/domain"
)

// Processor turns one raw sheet into a normalized record set.
type Processor interface {
	// Process validates the sheet's schema and extracts its records
	Process(table Table) (*domain.RecordSet, error)
}

// ProcessingOptions configures processing behavior
type ProcessingOptions struct {
	// Mapping resolves physical column labels to logical columns
	Mapping ColumnMapping

	// DropEmptyRows skips rows whose cells are all blank. Off by default so
	// record totals match the sheet's row count.
	DropEmptyRows bool
}

// DefaultOptions returns default processing options
func DefaultOptions() ProcessingOptions {
	return ProcessingOptions{
		Mapping: DefaultColumnMapping(),
	}
}
