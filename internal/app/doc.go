// Package app wires the outage report web service together and manages its
// lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration (defaults, config file, OUTAGE_* environment)
//	2. Initialize logging and OpenTelemetry
//	3. Build the workbook cache and the outage service
//	4. Set up middleware, handlers and the HTTP server
//
// # Usage
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// Run blocks until SIGINT or SIGTERM, then shuts the server down within the
// configured shutdown timeout and flushes telemetry.
//
// BuildOutageService is shared with the command line tool so both read the
// workbook the same way.
package app
