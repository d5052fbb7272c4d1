package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"outagecli/internal/cache"
	"outagecli/pkg/contracts"
	"outagecli/pkg/contracts/domain"
)

// DatasetLoader is the part of OutageService health checks need.
type DatasetLoader interface {
	Source() string
	Load(ctx context.Context) (*domain.Dataset, error)
	CacheStats() *cache.Stats
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	outages   DatasetLoader
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a health service reporting on outages.
func NewHealthService(version string, outages DatasetLoader, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		outages:   outages,
		startTime: time.Now(),
		logger:    logger.With(slog.String("service", "health")),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck reports ready once the workbook is readable and at least
// one period loads.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services: map[string]ServiceHealth{
			"workbook": hs.checkWorkbook(),
			"dataset":  hs.checkDataset(ctx),
		},
	}

	for _, sh := range status.Services {
		if sh.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}

	if status.Status != "ready" {
		hs.logger.WarnContext(ctx, "Readiness check failed",
			slog.String("workbook", status.Services["workbook"].Message),
			slog.String("dataset", status.Services["dataset"].Message))
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	info := contracts.GetVersionInfo()
	result := map[string]interface{}{
		"version":     hs.version,
		"api_version": contracts.APIVersion,
		"build_time":  info.BuildTime,
		"git_commit":  info.GitCommit,
		"go_version":  runtime.Version(),
		"os":          runtime.GOOS,
		"arch":        runtime.GOARCH,
		"uptime":      time.Since(hs.startTime).Seconds(),
		"start_time":  hs.startTime.Format(time.RFC3339),
	}
	if hs.outages != nil {
		if stats := hs.outages.CacheStats(); stats != nil {
			result["cache"] = stats
		}
	}
	return result
}

func (hs *HealthService) checkWorkbook() ServiceHealth {
	if hs.outages == nil {
		return ServiceHealth{Status: "not_ready", Message: "no outage service configured"}
	}
	info, err := os.Stat(hs.outages.Source())
	if err != nil {
		return ServiceHealth{Status: "not_ready", Message: err.Error()}
	}
	if info.IsDir() {
		return ServiceHealth{Status: "not_ready", Message: hs.outages.Source() + " is a directory"}
	}
	return ServiceHealth{Status: "ready", Message: fmt.Sprintf("%d bytes", info.Size())}
}

func (hs *HealthService) checkDataset(ctx context.Context) ServiceHealth {
	if hs.outages == nil {
		return ServiceHealth{Status: "not_ready", Message: "no outage service configured"}
	}
	ds, err := hs.outages.Load(ctx)
	switch {
	case errors.Is(err, ErrNoPeriodsLoaded) && ds != nil:
		return ServiceHealth{Status: "not_ready", Message: fmt.Sprintf("no periods loaded, %d failed", len(ds.Failures))}
	case err != nil:
		return ServiceHealth{Status: "not_ready", Message: err.Error()}
	}

	msg := fmt.Sprintf("%d periods loaded", len(ds.PeriodNames))
	if len(ds.Failures) > 0 {
		msg += fmt.Sprintf(", %d failed", len(ds.Failures))
	}
	return ServiceHealth{Status: "ready", Message: msg}
}
