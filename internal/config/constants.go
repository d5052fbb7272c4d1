package config

import "time"

// Application constants
const (
	AppName = "outage-report"

	DefaultWorkbook    = "Power outage.xlsx"
	DefaultOutputSheet = "OUTPUT"
	DefaultMeterLabel  = "Meter No"

	// Rate Limiting
	DefaultRateLimit = 100 // requests per second
	DefaultBurstSize = 50

	DefaultRequestTimeout = 60 * time.Second

	// Cache Settings
	DefaultCacheTTL  = 15 * time.Minute
	DefaultCacheSize = 8

	// Largest workbook accepted as input.
	MaxWorkbookSize = 50 * 1024 * 1024
)
