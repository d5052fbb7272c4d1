// Command outage-web serves outage counts from the configured workbook over
// HTTP. Configuration comes from config.yaml and OUTAGE_* variables.
package main

import (
	"log/slog"
	"os"

	"outagecli/internal/app"
)

func main() {
	application, err := app.NewApplication()
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
