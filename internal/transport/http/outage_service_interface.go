package http

import (
	"context"
	"io"

	"outagecli/internal/cache"
	"outagecli/pkg/contracts/domain"
)

// OutageServiceInterface defines the outage operations served over HTTP.
type OutageServiceInterface interface {
	Periods(ctx context.Context) ([]domain.PeriodSummary, []domain.PeriodFailure, error)
	DailyCounts(ctx context.Context, period string) (domain.DailyCount, error)
	Matrix(ctx context.Context, period string, binding *domain.MonthBinding) (*domain.OutageMatrix, error)
	Query(ctx context.Context, period, meter string, date domain.Date) (domain.QueryResult, error)
	Totals(ctx context.Context, period string) (domain.RecordTotals, error)
	Meters(ctx context.Context, period string) ([]string, error)
	Columns(ctx context.Context, period string) ([]string, error)
	ExportMatrix(ctx context.Context, w io.Writer, period string, binding *domain.MonthBinding) error

	Invalidate() int
	CacheStats() *cache.Stats
}
