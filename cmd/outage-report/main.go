// Command outage-report counts outage records in a workbook: per-day totals,
// a meter by day matrix for one month and the records behind a single cell.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"outagecli/internal/app"
	"outagecli/internal/config"
	"outagecli/internal/exporter"
	"outagecli/internal/infrastructure"
	"outagecli/internal/services"
	"outagecli/internal/validation"
	"outagecli/internal/workbook"
	"outagecli/pkg/contracts"
	"outagecli/pkg/contracts/domain"
)

// Exit codes
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

type options struct {
	configFile string
	in         string
	periods    string
	period     string
	year       int
	month      int
	out        string
	dailyCSV   string
	matrixCSV  string
	meter      string
	date       string
	queryCSV   string
	logLevel   string
	version    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("outage-report", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.configFile, "config", "", "config file (defaults to config.yaml lookup)")
	fs.StringVar(&opts.in, "in", "", "input workbook (overrides source.workbook)")
	fs.StringVar(&opts.periods, "periods", "", "sheet to month bindings, e.g. November:2025-11,December:2025-12")
	fs.StringVar(&opts.period, "period", "", "period to report (defaults to the first loaded period)")
	fs.IntVar(&opts.year, "year", 0, "matrix year (with -month, overrides the period's binding)")
	fs.IntVar(&opts.month, "month", 0, "matrix month 1-12 (with -year)")
	fs.StringVar(&opts.out, "out", "", "write the matrix workbook (.xlsx) here")
	fs.StringVar(&opts.dailyCSV, "daily-csv", "", "write daily counts as CSV here")
	fs.StringVar(&opts.matrixCSV, "matrix-csv", "", "write the matrix as CSV here")
	fs.StringVar(&opts.meter, "meter", "", "meter id to query (with -date)")
	fs.StringVar(&opts.date, "date", "", "day to query, YYYY-MM-DD (with -meter)")
	fs.StringVar(&opts.queryCSV, "query-csv", "", "write the queried records as CSV here")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.BoolVar(&opts.version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if (opts.year == 0) != (opts.month == 0) {
		return nil, errors.New("-year and -month must be given together")
	}
	if (opts.meter == "") != (opts.date == "") {
		return nil, errors.New("-meter and -date must be given together")
	}
	if opts.queryCSV != "" && opts.meter == "" {
		return nil, errors.New("-query-csv needs -meter and -date")
	}
	return opts, nil
}

// run executes the command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitUsage
	}
	if opts.version {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return exitOK
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitUsage
	}

	logger := infrastructure.WithComponent(infrastructure.NewLogger(stderr, cfg.Logging.Level), "cli")
	ctx = infrastructure.EnsureTraceID(ctx)
	logger.InfoContext(ctx, "Starting outage report",
		slog.String("version", contracts.Version),
		slog.String("workbook", cfg.Source.Workbook))

	if err := validatePaths(logger, cfg, opts); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitFailure
	}

	svc, wc, err := app.BuildOutageService(cfg, logger)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitUsage
	}
	if wc != nil {
		defer wc.Stop()
	}

	if err := report(ctx, svc, cfg, opts, stdout, stderr, logger); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitFailure
	}
	return exitOK
}

func loadConfig(opts *options) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if opts.configFile != "" {
		cfg, err = config.LoadFrom(opts.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if opts.in != "" {
		cfg.Source.Workbook = opts.in
	}
	if opts.periods != "" {
		periods, err := parsePeriods(opts.periods)
		if err != nil {
			return nil, err
		}
		cfg.Source.Periods = periods
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if _, err := cfg.Source.Bindings(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parsePeriods reads "Sheet:YYYY-MM" pairs separated by commas. The last
// colon splits, so sheet names may contain colons.
func parsePeriods(s string) (map[string]string, error) {
	periods := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		i := strings.LastIndex(pair, ":")
		if i <= 0 || i == len(pair)-1 {
			return nil, fmt.Errorf("invalid period binding %q, want Sheet:YYYY-MM", pair)
		}
		periods[strings.TrimSpace(pair[:i])] = strings.TrimSpace(pair[i+1:])
	}
	return periods, nil
}

func validatePaths(logger *slog.Logger, cfg *config.Config, opts *options) error {
	v := validation.NewFileValidator(logger, config.MaxWorkbookSize)
	if err := v.ValidateWorkbook(cfg.Source.Workbook); err != nil {
		return err
	}

	outputs := []struct {
		path string
		ext  string
	}{
		{opts.out, ".xlsx"},
		{opts.dailyCSV, ".csv"},
		{opts.matrixCSV, ".csv"},
		{opts.queryCSV, ".csv"},
	}
	for _, o := range outputs {
		if o.path == "" {
			continue
		}
		if err := v.ValidateOutputFile(o.path, o.ext); err != nil {
			return err
		}
	}
	return nil
}

func report(ctx context.Context, svc *services.OutageService, cfg *config.Config, opts *options, stdout, stderr io.Writer, logger *slog.Logger) error {
	start := time.Now()

	ds, err := svc.Load(ctx)
	if ds != nil {
		printFailures(stderr, ds.Failures)
	}
	if err != nil {
		return err
	}

	period := opts.period
	if period == "" {
		period = ds.PeriodNames[0]
	}

	daily, err := svc.DailyCounts(ctx, period)
	if err != nil {
		return err
	}
	totals, err := svc.Totals(ctx, period)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Period: %s\n\n", period)
	printDaily(stdout, daily)
	fmt.Fprintf(stdout, "\nTotal records: %d\n", totals.Total)
	fmt.Fprintf(stdout, "Records with a valid outage date: %d\n", totals.WithDate)
	if totals.Unparseable > 0 {
		fmt.Fprintf(stdout, "Records with an unparseable outage time: %d\n", totals.Unparseable)
	}
	if totals.WithoutMeter > 0 {
		fmt.Fprintf(stdout, "Records without a meter: %d\n", totals.WithoutMeter)
	}

	exp := exporter.NewDailyExporter("", logger)
	if opts.dailyCSV != "" {
		if err := exp.ExportDailyCounts(daily, opts.dailyCSV); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Daily counts written to %s\n", opts.dailyCSV)
	}

	if opts.out != "" || opts.matrixCSV != "" {
		if err := writeMatrix(ctx, svc, exp, cfg, opts, period, daily, stdout); err != nil {
			return err
		}
	}

	if opts.meter != "" {
		if err := query(ctx, svc, exp, opts, period, stdout); err != nil {
			return err
		}
	}

	logger.InfoContext(ctx, "Outage report complete",
		slog.String("period", period),
		slog.Int("records", totals.Total),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func writeMatrix(ctx context.Context, svc *services.OutageService, exp *exporter.DailyExporter, cfg *config.Config, opts *options, period string, daily domain.DailyCount, stdout io.Writer) error {
	var binding *domain.MonthBinding
	if opts.year != 0 {
		b, err := domain.NewMonthBinding(opts.year, time.Month(opts.month))
		if err != nil {
			return err
		}
		binding = &b
	}

	m, err := svc.Matrix(ctx, period, binding)
	if err != nil {
		return err
	}

	if opts.out != "" {
		err := workbook.SaveMatrix(opts.out, m, workbook.MatrixOptions{
			Sheet:      cfg.Source.OutputSheet,
			MeterLabel: cfg.Source.MeterLabel,
			DailySheet: workbook.DefaultDailySheet,
			Daily:      daily,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Matrix for %s (%d meters x %d days) written to %s\n",
			m.Binding, len(m.Rows), m.ColumnCount(), opts.out)
	}
	if opts.matrixCSV != "" {
		if err := exp.ExportMatrix(m, cfg.Source.MeterLabel, opts.matrixCSV); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Matrix CSV written to %s\n", opts.matrixCSV)
	}
	return nil
}

func query(ctx context.Context, svc *services.OutageService, exp *exporter.DailyExporter, opts *options, period string, stdout io.Writer) error {
	date, err := domain.ParseDate(opts.date)
	if err != nil {
		return err
	}
	result, err := svc.Query(ctx, period, opts.meter, date)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "\nMeter %s on %s: %d records\n", result.MeterID, result.Date, result.Count)
	for _, r := range result.Records {
		fmt.Fprintf(stdout, "  row %d  outage %s  restore %s\n", r.Row, clock(r.OutageTime), clock(r.RestoreTime))
	}

	if opts.queryCSV != "" {
		columns, err := svc.Columns(ctx, period)
		if err != nil {
			return err
		}
		if err := exp.ExportQuery(result, columns, opts.queryCSV); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Query rows written to %s\n", opts.queryCSV)
	}
	return nil
}

func clock(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

func printDaily(w io.Writer, daily domain.DailyCount) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Outage Date\tNumber of Records")
	for _, dc := range daily {
		fmt.Fprintf(tw, "%s\t%d\n", dc.Date, dc.Count)
	}
	tw.Flush()
}

func printFailures(w io.Writer, failures []domain.PeriodFailure) {
	for _, f := range failures {
		if f.Column != "" {
			fmt.Fprintf(w, "warning: period %s skipped: missing column %q\n", f.Period, f.Column)
			continue
		}
		fmt.Fprintf(w, "warning: period %s skipped: %s\n", f.Period, f.Message)
	}
}
