// Package config loads the application configuration.
//
// Values are resolved in this order, later sources winning:
//
//	1. Default()
//	2. a YAML file (OUTAGE_CONFIG_FILE, config.yaml or configs/config.yaml)
//	3. OUTAGE_* environment variables
//
// Example file:
//
//	source:
//	  workbook: "Power outage.xlsx"
//	  periods:
//	    November: "2025-11"
//	    December: "2025-12"
//	  meter_columns: ["Meter No", "Meterno"]
//	cache:
//	  ttl: 10m
//
// The same settings from the environment:
//
//	OUTAGE_SOURCE_WORKBOOK="Power outage.xlsx"
//	OUTAGE_SOURCE_PERIODS="November:2025-11,December:2025-12"
//	OUTAGE_CACHE_TTL=10m
package config
