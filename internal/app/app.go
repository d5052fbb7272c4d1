package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"outagecli/internal/cache"
	"outagecli/internal/config"
	apierrors "outagecli/internal/errors"
	"outagecli/internal/infrastructure"
	customMiddleware "outagecli/internal/middleware"
	"outagecli/internal/services"
	handlers "outagecli/internal/transport/http"
	"outagecli/internal/workbook"
	"outagecli/pkg/contracts"
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.OutageMetrics
	Cache         *cache.WorkbookCache
	OutageService *services.OutageService
	HealthService *services.HealthService
	ErrorHandler  *apierrors.ErrorHandler
}

// NewApplication loads configuration, initializes logging and builds the
// application.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(cfg, logger)
}

// New builds the application from an already loaded configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.String("workbook", cfg.Source.Workbook))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.NewOutageMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create outage metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		ErrorHandler:  apierrors.NewErrorHandler(logger, cfg.Logging.Development),
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	svc, wc, err := BuildOutageService(a.Config, a.Logger,
		services.WithMetrics(a.Metrics),
		services.WithTracer(a.OTelProviders.Tracer))
	if err != nil {
		return err
	}
	a.OutageService = svc
	a.Cache = wc
	a.HealthService = services.NewHealthService(contracts.Version, svc, a.Logger)
	return nil
}

// BuildOutageService wires an outage service from configuration. The cache
// is nil when disabled; callers own it and must Stop it.
func BuildOutageService(cfg *config.Config, logger *slog.Logger, opts ...services.Option) (*services.OutageService, *cache.WorkbookCache, error) {
	bindings, err := cfg.Source.Bindings()
	if err != nil {
		return nil, nil, apierrors.NewConfigError("invalid period bindings", err)
	}

	svcCfg := services.OutageServiceConfig{
		Workbook: cfg.Source.Workbook,
		Periods:  bindings,
		Matrix: workbook.MatrixOptions{
			Sheet:      cfg.Source.OutputSheet,
			MeterLabel: cfg.Source.MeterLabel,
		},
	}
	svcCfg.Processing.Mapping = cfg.Source.ColumnMapping()
	svcCfg.Processing.DropEmptyRows = cfg.Source.DropEmptyRows

	var wc *cache.WorkbookCache
	if cfg.Cache.Enabled && cfg.Cache.MaxSize > 0 {
		wc = cache.NewWorkbookCache(cfg.Cache.TTL, cfg.Cache.MaxSize)
		opts = append(opts, services.WithCache(wc))
	}

	return services.NewOutageService(svcCfg, logger, opts...), wc, nil
}

// setupRouter configures the HTTP router with all routes.
// Ordering: RequestID → RealIP → OTel → Logger → Recoverer → security → CORS → rate limit.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics).Handler)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.ErrorHandler))
	r.Use(customMiddleware.SecurityHeaders)

	if a.Config.Security.EnableCORS {
		r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
			AllowedOrigins: a.Config.Security.AllowedOrigins,
			Logger:         a.Logger,
		}))
	}

	if a.Config.Security.RateLimit.Enabled {
		r.Use(customMiddleware.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.Logger,
			a.ErrorHandler,
		).Handler)
	}

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	r.Handle("/metrics", handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP))

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Mount("/health", healthHandler.Routes())
		r.Get("/version", healthHandler.Version)

		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout))
			outageHandler := handlers.NewOutageHandler(a.OutageService, a.Logger, a.ErrorHandler)
			r.Mount("/v1", outageHandler.Routes())
		})
	})

	a.Router = r
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start serves HTTP in the background and warms the dataset. A listener
// failure calls cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// performStartupHealthCheck loads the workbook once so the first request
// hits a warm cache and configuration problems show up in the startup log.
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	ds, err := a.OutageService.Load(ctx)
	if ds != nil {
		for _, f := range ds.Failures {
			a.Logger.WarnContext(ctx, "Period failed to load",
				slog.String("period", f.Period),
				slog.String("column", f.Column),
				slog.String("message", f.Message))
		}
	}
	if err != nil {
		return err
	}

	a.Logger.InfoContext(ctx, "Workbook loaded",
		slog.Any("periods", ds.PeriodNames),
		slog.Int("failures", len(ds.Failures)))
	return nil
}

// Stop shuts the server down and releases background resources.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	if a.Cache != nil {
		a.Cache.Stop()
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")

	// Last, so the shutdown records above still reach the file.
	if infrastructure.LogFileOpen() {
		if err := infrastructure.CloseLogFile(); err != nil {
			errs = append(errs, fmt.Errorf("log file close error: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
		a.Logger.ErrorContext(ctx, "Server stopped unexpectedly")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout+5*time.Second)
	defer stopCancel()
	return a.Stop(stopCtx)
}
