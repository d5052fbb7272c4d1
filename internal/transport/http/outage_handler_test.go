package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"outagecli/internal/cache"
	apierrors "outagecli/internal/errors"
	"outagecli/internal/services"
	"outagecli/pkg/contracts/domain"
)

// MockOutageService is a mock implementation of OutageServiceInterface
type MockOutageService struct {
	mock.Mock
}

func (m *MockOutageService) Periods(ctx context.Context) ([]domain.PeriodSummary, []domain.PeriodFailure, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]domain.PeriodSummary), args.Get(1).([]domain.PeriodFailure), args.Error(2)
}

func (m *MockOutageService) DailyCounts(ctx context.Context, period string) (domain.DailyCount, error) {
	args := m.Called(period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.DailyCount), args.Error(1)
}

func (m *MockOutageService) Matrix(ctx context.Context, period string, binding *domain.MonthBinding) (*domain.OutageMatrix, error) {
	args := m.Called(period, binding)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OutageMatrix), args.Error(1)
}

func (m *MockOutageService) Query(ctx context.Context, period, meter string, date domain.Date) (domain.QueryResult, error) {
	args := m.Called(period, meter, date)
	return args.Get(0).(domain.QueryResult), args.Error(1)
}

func (m *MockOutageService) Totals(ctx context.Context, period string) (domain.RecordTotals, error) {
	args := m.Called(period)
	return args.Get(0).(domain.RecordTotals), args.Error(1)
}

func (m *MockOutageService) Meters(ctx context.Context, period string) ([]string, error) {
	args := m.Called(period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockOutageService) Columns(ctx context.Context, period string) ([]string, error) {
	args := m.Called(period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockOutageService) ExportMatrix(ctx context.Context, w io.Writer, period string, binding *domain.MonthBinding) error {
	args := m.Called(period, binding)
	if args.Error(0) == nil {
		_, _ = w.Write([]byte("PK-fake-xlsx"))
	}
	return args.Error(0)
}

func (m *MockOutageService) Invalidate() int {
	return m.Called().Int(0)
}

func (m *MockOutageService) CacheStats() *cache.Stats {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*cache.Stats)
}

func newTestRouter(svc *MockOutageService) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewOutageHandler(svc, logger, apierrors.NewErrorHandler(logger, false))
	r := chi.NewRouter()
	r.Mount("/api/v1", h.Routes())
	return r
}

func do(t *testing.T, handler http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestOutageHandler_ListPeriods(t *testing.T) {
	svc := new(MockOutageService)
	svc.On("Periods").Return(
		[]domain.PeriodSummary{{Name: "November", Binding: "2025-11", Totals: domain.RecordTotals{Total: 6, WithDate: 5}}},
		[]domain.PeriodFailure{{Period: "December", Column: "Restore Date Time", Message: "missing column"}},
		nil,
	)

	rec := do(t, newTestRouter(svc), http.MethodGet, "/api/v1/periods")
	assert.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, float64(1), body["count"])
	failures := body["failures"].([]interface{})
	require.Len(t, failures, 1)
	assert.Equal(t, "December", failures[0].(map[string]interface{})["period"])
	svc.AssertExpectations(t)
}

func TestOutageHandler_DailyCounts(t *testing.T) {
	daily := domain.DailyCount{
		{Date: domain.NewDate(2025, time.November, 5), Count: 3},
		{Date: domain.NewDate(2025, time.November, 6), Count: 1},
	}

	tests := []struct {
		name           string
		target         string
		setupMock      func(*MockOutageService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "json",
			target: "/api/v1/periods/November/daily",
			setupMock: func(m *MockOutageService) {
				m.On("DailyCounts", "November").Return(daily, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"count":2,"data":[{"date":"2025-11-05","count":3},{"date":"2025-11-06","count":1}],"status":"success","total":4}`,
		},
		{
			name:   "period with spaces",
			target: "/api/v1/periods/Nov%202025/daily",
			setupMock: func(m *MockOutageService) {
				m.On("DailyCounts", "Nov 2025").Return(domain.DailyCount{}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"count":0`,
		},
		{
			name:   "unknown period",
			target: "/api/v1/periods/March/daily",
			setupMock: func(m *MockOutageService) {
				m.On("DailyCounts", "March").Return(nil, services.ErrPeriodNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"PERIOD_NOT_FOUND"`,
		},
		{
			name:   "no periods loaded",
			target: "/api/v1/periods/November/daily",
			setupMock: func(m *MockOutageService) {
				m.On("DailyCounts", "November").Return(nil, services.ErrNoPeriodsLoaded)
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `"NO_PERIODS_LOADED"`,
		},
		{
			name:   "workbook unavailable",
			target: "/api/v1/periods/November/daily",
			setupMock: func(m *MockOutageService) {
				m.On("DailyCounts", "November").Return(nil, services.ErrWorkbookUnavailable)
			},
			expectedStatus: http.StatusServiceUnavailable,
		},
		{
			name:   "workbook unreadable",
			target: "/api/v1/periods/November/daily",
			setupMock: func(m *MockOutageService) {
				m.On("DailyCounts", "November").Return(nil, errors.Join(services.ErrWorkbookUnavailable, services.ErrWorkbookUnreadable))
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `"PARSING"`,
		},
		{
			name:   "internal error",
			target: "/api/v1/periods/November/daily",
			setupMock: func(m *MockOutageService) {
				m.On("DailyCounts", "November").Return(nil, errors.New("disk on fire"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "bad format",
			target:         "/api/v1/periods/November/daily?format=xml",
			setupMock:      func(m *MockOutageService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"VALIDATION_FAILED"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockOutageService)
			tt.setupMock(svc)

			rec := do(t, newTestRouter(svc), http.MethodGet, tt.target)
			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedBody != "" {
				assert.Contains(t, rec.Body.String(), tt.expectedBody)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestOutageHandler_DailyCountsCSV(t *testing.T) {
	svc := new(MockOutageService)
	svc.On("DailyCounts", "November").Return(domain.DailyCount{{Date: domain.NewDate(2025, time.November, 5), Count: 3}}, nil)

	rec := do(t, newTestRouter(svc), http.MethodGet, "/api/v1/periods/November/daily?format=csv")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contentTypeCSV, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "November_daily.csv")
	assert.Contains(t, rec.Body.String(), "Outage Date,Number of Records\n2025-11-05,3\n")
}

func TestOutageHandler_QueryRecords(t *testing.T) {
	date := domain.NewDate(2025, time.November, 5)
	result := domain.QueryResult{MeterID: "M1", Date: date, Count: 1, Records: []domain.OutageRecord{{Row: 2, MeterID: "M1"}}}

	t.Run("json", func(t *testing.T) {
		svc := new(MockOutageService)
		svc.On("Query", "November", "M1", date).Return(result, nil)

		rec := do(t, newTestRouter(svc), http.MethodGet, "/api/v1/periods/November/records?meter=M1&date=2025-11-05")
		assert.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, float64(1), body["count"])
		svc.AssertExpectations(t)
	})

	t.Run("csv", func(t *testing.T) {
		svc := new(MockOutageService)
		svc.On("Query", "November", "M1", date).Return(result, nil)
		svc.On("Columns", "November").Return([]string{"Meter No"}, nil)

		rec := do(t, newTestRouter(svc), http.MethodGet, "/api/v1/periods/November/records?meter=M1&date=2025-11-05&format=csv")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte{0xEF, 0xBB, 0xBF}))
		assert.Contains(t, rec.Body.String(), "Row,Parsed Outage Time,Parsed Outage Date,Meter No")
		svc.AssertExpectations(t)
	})

	t.Run("missing and malformed params", func(t *testing.T) {
		svc := new(MockOutageService)
		rec := do(t, newTestRouter(svc), http.MethodGet, "/api/v1/periods/November/records?date=05/11/2025")
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		body := decode(t, rec)
		details := body["details"].([]interface{})
		fields := make([]string, 0, len(details))
		for _, d := range details {
			fields = append(fields, d.(map[string]interface{})["field"].(string))
		}
		assert.ElementsMatch(t, []string{"meter", "date"}, fields)
		svc.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestOutageHandler_Matrix(t *testing.T) {
	binding := domain.MonthBinding{Year: 2025, Month: time.February}
	m := &domain.OutageMatrix{Binding: binding, Dates: binding.Dates(), Rows: []domain.MatrixRow{{MeterID: "M1", Counts: make([]int, 28)}}}

	t.Run("own binding", func(t *testing.T) {
		svc := new(MockOutageService)
		svc.On("Matrix", "February", (*domain.MonthBinding)(nil)).Return(m, nil)

		rec := do(t, newTestRouter(svc), http.MethodGet, "/api/v1/periods/February/matrix")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"2025-02-28"`)
		svc.AssertExpectations(t)
	})

	t.Run("explicit binding", func(t *testing.T) {
		svc := new(MockOutageService)
		svc.On("Matrix", "February", &binding).Return(m, nil)

		rec := do(t, newTestRouter(svc), http.MethodGet, "/api/v1/periods/February/matrix?year=2025&month=2")
		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("no binding", func(t *testing.T) {
		svc := new(MockOutageService)
		svc.On("Matrix", "Extra", (*domain.MonthBinding)(nil)).Return(nil, services.ErrNoBinding)

		rec := do(t, newTestRouter(svc), http.MethodGet, "/api/v1/periods/Extra/matrix")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	for _, target := range []string{
		"/api/v1/periods/February/matrix?year=2025",
		"/api/v1/periods/February/matrix?year=2025&month=13",
		"/api/v1/periods/February/matrix?year=abc&month=2",
	} {
		svc := new(MockOutageService)
		rec := do(t, newTestRouter(svc), http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		svc.AssertNotCalled(t, "Matrix", mock.Anything, mock.Anything)
	}
}

func TestOutageHandler_DownloadMatrix(t *testing.T) {
	svc := new(MockOutageService)
	svc.On("ExportMatrix", "November", (*domain.MonthBinding)(nil)).Return(nil)

	rec := do(t, newTestRouter(svc), http.MethodGet, "/api/v1/periods/November/matrix.xlsx")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contentTypeXLSX, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=November_matrix.xlsx`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "PK-fake-xlsx", rec.Body.String())

	svc = new(MockOutageService)
	svc.On("ExportMatrix", "March", (*domain.MonthBinding)(nil)).Return(services.ErrPeriodNotFound)
	rec = do(t, newTestRouter(svc), http.MethodGet, "/api/v1/periods/March/matrix.xlsx")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	svc = new(MockOutageService)
	svc.On("ExportMatrix", "November", (*domain.MonthBinding)(nil)).Return(services.ErrExportFailed)
	rec = do(t, newTestRouter(svc), http.MethodGet, "/api/v1/periods/November/matrix.xlsx")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"STORAGE"`)
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
}

func TestParseQueryDate(t *testing.T) {
	date, err := parseQueryDate("2025-11-05")
	require.NoError(t, err)
	assert.Equal(t, domain.NewDate(2025, time.November, 5), date)

	_, err = parseQueryDate("2025-02-30")
	var appErr *apierrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apierrors.ErrTypeValidation, appErr.Type)
	assert.Equal(t, "2025-02-30", appErr.Context["date"])

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := httptest.NewRecorder()
	apierrors.NewErrorHandler(logger, false).HandleError(rec, httptest.NewRequest(http.MethodGet, "/records", nil), err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "2025-02-30")
}

func TestOutageHandler_TotalsAndMeters(t *testing.T) {
	svc := new(MockOutageService)
	svc.On("Totals", "November").Return(domain.RecordTotals{Total: 6, WithDate: 5, Unparseable: 1, WithoutMeter: 1}, nil)
	svc.On("Meters", "November").Return([]string{"M1", "M2"}, nil)
	router := newTestRouter(svc)

	rec := do(t, router, http.MethodGet, "/api/v1/periods/November/totals")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","data":{"total":6,"with_date":5,"unparseable":1,"without_meter":1}}`, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/api/v1/periods/November/meters")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","data":["M1","M2"],"count":2}`, rec.Body.String())
}

func TestOutageHandler_InvalidPeriodName(t *testing.T) {
	svc := new(MockOutageService)
	rec := do(t, newTestRouter(svc), http.MethodGet, "/api/v1/periods/a%5Bb/totals")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Totals", mock.Anything)
}

func TestOutageHandler_Cache(t *testing.T) {
	svc := new(MockOutageService)
	svc.On("Invalidate").Return(2)
	svc.On("CacheStats").Return(&cache.Stats{Entries: 1, MaxSize: 8})
	router := newTestRouter(svc)

	rec := do(t, router, http.MethodPost, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decode(t, rec)["invalidated"])

	rec = do(t, router, http.MethodGet, "/api/v1/cache")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["enabled"])
	svc.AssertExpectations(t)
}
