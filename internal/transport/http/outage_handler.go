package http

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "outagecli/internal/errors"
	"outagecli/internal/exporter"
	mw "outagecli/internal/middleware"
	"outagecli/internal/services"
	"outagecli/pkg/contracts/domain"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeCSV  = "text/csv; charset=utf-8"
)

// OutageHandler serves outage aggregations with RFC 7807 errors.
type OutageHandler struct {
	service      OutageServiceInterface
	exporter     *exporter.DailyExporter
	validator    *mw.Validator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewOutageHandler creates a new outage handler
func NewOutageHandler(service OutageServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *OutageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}
	return &OutageHandler{
		service:      service,
		exporter:     exporter.NewDailyExporter("", logger),
		validator:    mw.NewValidator(),
		logger:       logger.With(slog.String("component", "outage_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the outage routes
func (h *OutageHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/periods", h.ListPeriods)
	r.Route("/periods/{period}", func(r chi.Router) {
		r.Use(h.PeriodCtx)
		r.Get("/daily", h.GetDailyCounts)
		r.Get("/totals", h.GetTotals)
		r.Get("/meters", h.GetMeters)
		r.Get("/records", h.QueryRecords)
		r.Get("/matrix", h.GetMatrix)
		r.Get("/matrix.xlsx", h.DownloadMatrix)
	})

	r.Get("/cache", h.GetCacheStats)
	r.Post("/cache/invalidate", h.InvalidateCache)

	return r
}

type periodParam struct {
	Period string `json:"period" validate:"required,period"`
}

// PeriodCtx middleware validates the period parameter
func (h *OutageHandler) PeriodCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.validator.Struct(periodParam{Period: chi.URLParam(r, "period")}); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// period returns the trimmed period URL parameter.
func period(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "period"))
}

// ListPeriods handles GET /periods
func (h *OutageHandler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	summaries, failures, err := h.service.Periods(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status":   "success",
		"data":     summaries,
		"failures": failures,
		"count":    len(summaries),
	})
}

// GetDailyCounts handles GET /periods/{period}/daily
func (h *OutageHandler) GetDailyCounts(w http.ResponseWriter, r *http.Request) {
	format, ok := h.format(w, r)
	if !ok {
		return
	}

	daily, err := h.service.DailyCounts(r.Context(), period(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if format == "csv" {
		var buf bytes.Buffer
		if err := h.exporter.WriteDailyCounts(&buf, daily); err != nil {
			h.fail(w, r, err)
			return
		}
		h.attachment(w, r, contentTypeCSV, period(r)+"_daily.csv", buf.Bytes())
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   daily,
		"count":  len(daily),
		"total":  daily.Total(),
	})
}

// GetTotals handles GET /periods/{period}/totals
func (h *OutageHandler) GetTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.service.Totals(r.Context(), period(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   totals,
	})
}

// GetMeters handles GET /periods/{period}/meters
func (h *OutageHandler) GetMeters(w http.ResponseWriter, r *http.Request) {
	meters, err := h.service.Meters(r.Context(), period(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   meters,
		"count":  len(meters),
	})
}

type recordsParams struct {
	Meter  string `json:"meter" validate:"required"`
	Date   string `json:"date" validate:"required,isodate"`
	Format string `json:"format" validate:"omitempty,oneof=json csv"`
}

// QueryRecords handles GET /periods/{period}/records?meter=&date=
func (h *OutageHandler) QueryRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := recordsParams{
		Meter:  strings.TrimSpace(q.Get("meter")),
		Date:   strings.TrimSpace(q.Get("date")),
		Format: q.Get("format"),
	}
	if err := h.validator.Struct(params); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	date, err := parseQueryDate(params.Date)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	result, err := h.service.Query(r.Context(), period(r), params.Meter, date)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if params.Format == "csv" {
		columns, err := h.service.Columns(r.Context(), period(r))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		var buf bytes.Buffer
		if err := h.exporter.WriteQuery(&buf, result, columns); err != nil {
			h.fail(w, r, err)
			return
		}
		name := fmt.Sprintf("%s_%s_%s.csv", period(r), params.Meter, params.Date)
		h.attachment(w, r, contentTypeCSV, name, buf.Bytes())
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   result,
		"count":  result.Count,
	})
}

type matrixParams struct {
	Year  int `json:"year" validate:"omitempty,min=1,max=9999"`
	Month int `json:"month" validate:"omitempty,min=1,max=12"`
}

// GetMatrix handles GET /periods/{period}/matrix[?year=&month=]
func (h *OutageHandler) GetMatrix(w http.ResponseWriter, r *http.Request) {
	binding, ok := h.binding(w, r)
	if !ok {
		return
	}

	start := time.Now()
	m, err := h.service.Matrix(r.Context(), period(r), binding)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.DebugContext(r.Context(), "matrix built",
		slog.String("period", period(r)),
		slog.String("binding", m.Binding.String()),
		slog.Int("meters", len(m.Rows)),
		slog.Duration("duration", time.Since(start)))

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   m,
		"count":  len(m.Rows),
	})
}

// DownloadMatrix handles GET /periods/{period}/matrix.xlsx[?year=&month=]
func (h *OutageHandler) DownloadMatrix(w http.ResponseWriter, r *http.Request) {
	binding, ok := h.binding(w, r)
	if !ok {
		return
	}

	// buffered so a failure can still be reported as a problem response
	var buf bytes.Buffer
	if err := h.service.ExportMatrix(r.Context(), &buf, period(r), binding); err != nil {
		h.fail(w, r, err)
		return
	}
	h.attachment(w, r, contentTypeXLSX, period(r)+"_matrix.xlsx", buf.Bytes())
}

// GetCacheStats handles GET /cache
func (h *OutageHandler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	stats := h.service.CacheStats()
	render.JSON(w, r, map[string]interface{}{
		"status":  "success",
		"enabled": stats != nil,
		"data":    stats,
	})
}

// InvalidateCache handles POST /cache/invalidate
func (h *OutageHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	n := h.service.Invalidate()
	h.logger.InfoContext(r.Context(), "cache invalidated over HTTP",
		slog.Int("entries", n),
		slog.String("request_id", middleware.GetReqID(r.Context())))

	render.JSON(w, r, map[string]interface{}{
		"status":      "success",
		"invalidated": n,
	})
}

// binding parses the optional year/month override. Both or neither must be
// given.
func (h *OutageHandler) binding(w http.ResponseWriter, r *http.Request) (*domain.MonthBinding, bool) {
	q := r.URL.Query()
	rawYear, rawMonth := strings.TrimSpace(q.Get("year")), strings.TrimSpace(q.Get("month"))
	if rawYear == "" && rawMonth == "" {
		return nil, true
	}
	if rawYear == "" || rawMonth == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("month", "year and month must be given together"))
		return nil, false
	}

	var params matrixParams
	var err error
	if params.Year, err = strconv.Atoi(rawYear); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("year", "year must be a valid integer"))
		return nil, false
	}
	if params.Month, err = strconv.Atoi(rawMonth); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("month", "month must be a valid integer"))
		return nil, false
	}
	if err := h.validator.Struct(params); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return nil, false
	}

	return &domain.MonthBinding{Year: params.Year, Month: time.Month(params.Month)}, true
}

type formatParam struct {
	Format string `json:"format" validate:"omitempty,oneof=json csv"`
}

func (h *OutageHandler) format(w http.ResponseWriter, r *http.Request) (string, bool) {
	p := formatParam{Format: r.URL.Query().Get("format")}
	if err := h.validator.Struct(p); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return "", false
	}
	return p.Format, true
}

func (h *OutageHandler) attachment(w http.ResponseWriter, r *http.Request, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.WarnContext(r.Context(), "failed to write download",
			slog.String("file", filename),
			slog.String("error", err.Error()))
	}
}

// parseQueryDate reads the date query parameter. The isodate validator
// accepts the same form, so failure here means the two disagree.
func parseQueryDate(value string) (domain.Date, error) {
	date, err := domain.ParseDate(value)
	if err != nil {
		return domain.Date{}, apierrors.NewAppValidationError("date must be a date in YYYY-MM-DD form", err).
			WithContext("date", value)
	}
	return date, nil
}

// fail maps service errors onto API errors.
func (h *OutageHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrPeriodNotFound):
		err = apierrors.PeriodNotFound(period(r))
	case errors.Is(err, services.ErrNoPeriodsLoaded):
		err = apierrors.NoData(err)
	case errors.Is(err, services.ErrWorkbookUnreadable):
		err = apierrors.NewParsingError("outage workbook could not be parsed", err)
	case errors.Is(err, services.ErrExportFailed):
		err = apierrors.NewStorageError("failed to write matrix workbook", err)
	case errors.Is(err, services.ErrWorkbookUnavailable):
		err = apierrors.NewUnavailableError("outage workbook unavailable", err)
	case errors.Is(err, services.ErrNoBinding):
		err = apierrors.ErrValidation("month", "period has no month binding; pass year and month")
	}
	h.errorHandler.HandleError(w, r, err)
}
