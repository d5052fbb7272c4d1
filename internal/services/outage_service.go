package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"outagecli/internal/cache"
	"outagecli/internal/dataprocessing"
	"outagecli/internal/infrastructure"
	"outagecli/internal/workbook"
	"outagecli/pkg/contracts/domain"
)

// OutageServiceConfig describes where outage records come from.
type OutageServiceConfig struct {
	// Workbook is the path of the source xlsx file.
	Workbook string
	// Periods maps sheet names to their matrix month. When empty every
	// sheet of the workbook is loaded and bindings are inferred.
	Periods map[string]domain.MonthBinding
	// Processing controls schema normalization.
	Processing dataprocessing.ProcessingOptions
	// Matrix controls spreadsheet export layout.
	Matrix workbook.MatrixOptions
}

// Option configures an OutageService.
type Option func(*OutageService)

// WithCache serves repeated loads of an unchanged workbook from c.
func WithCache(c *cache.WorkbookCache) Option {
	return func(s *OutageService) { s.cache = c }
}

// WithMetrics records load and aggregation metrics.
func WithMetrics(m *infrastructure.OutageMetrics) Option {
	return func(s *OutageService) { s.metrics = m }
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *OutageService) { s.tracer = t }
}

// OutageService loads outage workbooks and answers aggregation queries.
// It is safe for concurrent use.
type OutageService struct {
	cfg     OutageServiceConfig
	cache   *cache.WorkbookCache
	metrics *infrastructure.OutageMetrics
	tracer  trace.Tracer
	logger  *slog.Logger
	loads   singleflight.Group
}

// NewOutageService creates a new outage service
func NewOutageService(cfg OutageServiceConfig, logger *slog.Logger, opts ...Option) *OutageService {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Processing.Mapping.Columns) == 0 {
		cfg.Processing = dataprocessing.DefaultOptions()
	}

	s := &OutageService{
		cfg:    cfg,
		tracer: otel.Tracer(infrastructure.InstrumentationName),
		logger: logger.With(slog.String("component", "outage_service")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Source returns the configured workbook path.
func (s *OutageService) Source() string {
	return s.cfg.Workbook
}

// Load reads every period of the workbook. Periods that fail schema
// validation or are missing from the workbook are recorded as failures and
// do not stop the others. When no period loads, the partial dataset is
// returned together with ErrNoPeriodsLoaded.
func (s *OutageService) Load(ctx context.Context) (*domain.Dataset, error) {
	ctx, span := s.tracer.Start(ctx, "outage.load",
		trace.WithAttributes(attribute.String("workbook", s.cfg.Workbook)))
	defer span.End()

	key, err := cache.KeyForFile(s.cfg.Workbook)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrWorkbookUnavailable, err)
	}

	if s.cache != nil {
		if ds, ok := s.cache.Get(key); ok {
			s.metrics.RecordCacheLookup(ctx, true)
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return ds, nil
		}
		s.metrics.RecordCacheLookup(ctx, false)
	}

	// Concurrent callers missing the cache share one read.
	v, err, _ := s.loads.Do(key.Path+"\x00"+key.Digest, func() (interface{}, error) {
		return s.loadWorkbook(ctx, key)
	})
	ds, _ := v.(*domain.Dataset)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return ds, err
	}
	return ds, nil
}

func (s *OutageService) loadWorkbook(ctx context.Context, key cache.Key) (*domain.Dataset, error) {
	start := time.Now()

	reader, err := workbook.Open(s.cfg.Workbook, s.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrWorkbookUnavailable, ErrWorkbookUnreadable, err)
	}
	defer reader.Close()

	periods, missing := s.selectPeriods(reader.SheetNames())

	tables, readFailures := readSheets(reader, periods)

	type result struct {
		set     *domain.RecordSet
		failure *domain.PeriodFailure
	}
	results := make([]result, len(periods))

	processor := dataprocessing.NewSheetProcessor(s.cfg.Processing)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := range tables {
		if readFailures[i] != nil {
			results[i].failure = readFailures[i]
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			set, err := processor.Process(tables[i])
			if err != nil {
				results[i].failure = periodFailure(tables[i].Label, err)
				return nil
			}
			results[i].set = set
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ds := &domain.Dataset{
		Source:   s.cfg.Workbook,
		LoadedAt: time.Now(),
		Periods:  make(map[string]*domain.RecordSet),
		Bindings: make(map[string]domain.MonthBinding),
	}

	for i, r := range results {
		period := periods[i]
		if r.failure != nil {
			s.logger.WarnContext(ctx, "Period skipped",
				slog.String("period", period),
				slog.String("column", r.failure.Column),
				slog.String("reason", r.failure.Message))
			s.metrics.RecordPeriodFailure(ctx, period)
			ds.Failures = append(ds.Failures, *r.failure)
			continue
		}

		ds.PeriodNames = append(ds.PeriodNames, period)
		ds.Periods[period] = r.set
		if b, ok := s.bindingFor(period, r.set); ok {
			ds.Bindings[period] = b
		}

		for _, w := range r.set.Warnings {
			s.logger.DebugContext(ctx, "Unparseable timestamp",
				slog.String("period", period),
				slog.Int("row", w.Row),
				slog.String("column", w.Column),
				slog.String("value", w.Value))
		}
		s.metrics.RecordPeriodLoad(ctx, period, r.set.Len(), len(r.set.Warnings))

		s.logger.InfoContext(ctx, "Period loaded",
			slog.String("period", period),
			slog.Int("records", r.set.Len()),
			slog.Int("warnings", len(r.set.Warnings)))
	}

	for _, period := range missing {
		s.logger.WarnContext(ctx, "Period sheet not found", slog.String("period", period))
		s.metrics.RecordPeriodFailure(ctx, period)
		ds.Failures = append(ds.Failures, domain.PeriodFailure{
			Period:  period,
			Message: workbook.ErrSheetNotFound.Error(),
		})
	}

	s.metrics.RecordLoad(ctx, time.Since(start))

	if len(ds.PeriodNames) == 0 {
		return ds, ErrNoPeriodsLoaded
	}

	if s.cache != nil {
		s.cache.Set(key, ds)
	}
	return ds, nil
}

// sheetReader reads one period's sheet of an open workbook.
type sheetReader interface {
	ReadSheet(period string) (dataprocessing.Table, error)
}

// readSheets reads the sheet of every period. A sheet that cannot be read
// fails its own period only.
func readSheets(r sheetReader, periods []string) ([]dataprocessing.Table, []*domain.PeriodFailure) {
	tables := make([]dataprocessing.Table, len(periods))
	failures := make([]*domain.PeriodFailure, len(periods))
	for i, period := range periods {
		table, err := r.ReadSheet(period)
		if err != nil {
			failures[i] = periodFailure(period, err)
			continue
		}
		tables[i] = table
	}
	return tables, failures
}

// selectPeriods returns the sheets to load in workbook order, and the
// configured periods the workbook lacks.
func (s *OutageService) selectPeriods(sheets []string) (found, missing []string) {
	present := make(map[string]bool)
	for _, sheet := range sheets {
		name := strings.TrimSpace(sheet)
		if present[name] {
			continue
		}
		if _, ok := s.cfg.Periods[name]; ok || len(s.cfg.Periods) == 0 {
			found = append(found, name)
			present[name] = true
		}
	}
	for period := range s.cfg.Periods {
		if !present[period] {
			missing = append(missing, period)
		}
	}
	sort.Strings(missing)
	return found, missing
}

// bindingFor prefers the configured month, then the month holding most
// dated records.
func (s *OutageService) bindingFor(period string, set *domain.RecordSet) (domain.MonthBinding, bool) {
	if b, ok := s.cfg.Periods[period]; ok {
		return b, true
	}
	return InferBinding(set)
}

// InferBinding picks the month with the most dated records; ties go to the
// earlier month.
func InferBinding(set *domain.RecordSet) (domain.MonthBinding, bool) {
	counts := make(map[domain.MonthBinding]int)
	for _, r := range set.Records {
		if r.OutageDate != nil {
			counts[domain.MonthBinding{Year: r.OutageDate.Year, Month: r.OutageDate.Month}]++
		}
	}

	var best domain.MonthBinding
	bestCount := 0
	for b, n := range counts {
		earlier := b.Year < best.Year || (b.Year == best.Year && b.Month < best.Month)
		if n > bestCount || (n == bestCount && earlier) {
			best, bestCount = b, n
		}
	}
	return best, bestCount > 0
}

func periodFailure(period string, err error) *domain.PeriodFailure {
	failure := &domain.PeriodFailure{Period: period, Message: err.Error()}
	var schemaErr *dataprocessing.SchemaError
	if errors.As(err, &schemaErr) {
		failure.Column = schemaErr.Column
	}
	return failure
}

// period loads the dataset and looks up one record set.
func (s *OutageService) period(ctx context.Context, name string) (*domain.Dataset, *domain.RecordSet, error) {
	ds, err := s.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	set, ok := ds.Period(strings.TrimSpace(name))
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrPeriodNotFound, name)
	}
	return ds, set, nil
}

// Periods summarizes every loaded period in workbook order, and returns the
// failures of the last load.
func (s *OutageService) Periods(ctx context.Context) ([]domain.PeriodSummary, []domain.PeriodFailure, error) {
	ds, err := s.Load(ctx)
	if err != nil {
		return nil, nil, err
	}

	summaries := make([]domain.PeriodSummary, 0, len(ds.PeriodNames))
	for _, name := range ds.PeriodNames {
		set := ds.Periods[name]
		summary := domain.PeriodSummary{
			Name:     name,
			Columns:  set.Columns,
			Totals:   dataprocessing.Totals(set),
			Warnings: len(set.Warnings),
		}
		if b, ok := ds.Binding(name); ok {
			summary.Binding = b.String()
		}
		summaries = append(summaries, summary)
	}
	return summaries, ds.Failures, nil
}

// DailyCounts returns the per-day record counts of period.
func (s *OutageService) DailyCounts(ctx context.Context, period string) (domain.DailyCount, error) {
	_, set, err := s.period(ctx, period)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "outage.daily", trace.WithAttributes(attribute.String("period", period)))
	defer span.End()

	start := time.Now()
	daily := dataprocessing.CountDaily(set)
	s.metrics.RecordAggregation(ctx, "daily", period, time.Since(start))
	span.SetAttributes(attribute.Int("days", len(daily)))
	return daily, nil
}

// Matrix builds the meter by day matrix of period. A nil binding uses the
// period's own month.
func (s *OutageService) Matrix(ctx context.Context, period string, binding *domain.MonthBinding) (*domain.OutageMatrix, error) {
	ds, set, err := s.period(ctx, period)
	if err != nil {
		return nil, err
	}

	var b domain.MonthBinding
	if binding != nil {
		if err := binding.Validate(); err != nil {
			return nil, err
		}
		b = *binding
	} else {
		var ok bool
		if b, ok = ds.Binding(strings.TrimSpace(period)); !ok {
			return nil, fmt.Errorf("%w: %q", ErrNoBinding, period)
		}
	}

	ctx, span := s.tracer.Start(ctx, "outage.matrix", trace.WithAttributes(
		attribute.String("period", period),
		attribute.String("binding", b.String())))
	defer span.End()

	start := time.Now()
	m := dataprocessing.BuildMatrix(set, b)
	s.metrics.RecordAggregation(ctx, "matrix", period, time.Since(start))
	span.SetAttributes(attribute.Int("meters", len(m.Rows)), attribute.Int("days", m.ColumnCount()))
	return m, nil
}

// Query returns the records of meter on date within period.
func (s *OutageService) Query(ctx context.Context, period, meter string, date domain.Date) (domain.QueryResult, error) {
	_, set, err := s.period(ctx, period)
	if err != nil {
		return domain.QueryResult{}, err
	}

	ctx, span := s.tracer.Start(ctx, "outage.query", trace.WithAttributes(
		attribute.String("period", period),
		attribute.String("meter", meter),
		attribute.String("date", date.String())))
	defer span.End()

	start := time.Now()
	result := dataprocessing.QueryRecords(set, meter, date)
	s.metrics.RecordAggregation(ctx, "query", period, time.Since(start))
	span.SetAttributes(attribute.Int("count", result.Count))
	return result, nil
}

// Totals returns the record totals of period.
func (s *OutageService) Totals(ctx context.Context, period string) (domain.RecordTotals, error) {
	_, set, err := s.period(ctx, period)
	if err != nil {
		return domain.RecordTotals{}, err
	}
	return dataprocessing.Totals(set), nil
}

// Meters returns the distinct meter ids of period.
func (s *OutageService) Meters(ctx context.Context, period string) ([]string, error) {
	_, set, err := s.period(ctx, period)
	if err != nil {
		return nil, err
	}
	return dataprocessing.Meters(set), nil
}

// Columns returns the source column labels of period in sheet order.
func (s *OutageService) Columns(ctx context.Context, period string) ([]string, error) {
	_, set, err := s.period(ctx, period)
	if err != nil {
		return nil, err
	}
	return set.Columns, nil
}

// ExportMatrix writes the matrix workbook of period to w, with a daily
// count sheet alongside.
func (s *OutageService) ExportMatrix(ctx context.Context, w io.Writer, period string, binding *domain.MonthBinding) error {
	m, err := s.Matrix(ctx, period, binding)
	if err != nil {
		return err
	}
	daily, err := s.DailyCounts(ctx, period)
	if err != nil {
		return err
	}

	opts := s.cfg.Matrix
	if opts.DailySheet == "" {
		opts.DailySheet = workbook.DefaultDailySheet
	}
	opts.Daily = daily
	if err := workbook.WriteMatrix(w, m, opts); err != nil {
		return fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	return nil
}

// Invalidate drops cached datasets of the workbook and reports how many.
func (s *OutageService) Invalidate() int {
	if s.cache == nil {
		return 0
	}
	n := s.cache.InvalidatePath(s.cfg.Workbook)
	s.logger.Info("Cache invalidated", slog.Int("entries", n))
	return n
}

// CacheStats reports cache usage, or nil when caching is off.
func (s *OutageService) CacheStats() *cache.Stats {
	if s.cache == nil {
		return nil
	}
	stats := s.cache.GetStats()
	return &stats
}
