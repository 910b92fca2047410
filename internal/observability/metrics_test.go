package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveReport(t *testing.T) {
	before := testutil.ToFloat64(reportsTotal.WithLabelValues("most_wins", "ok"))
	ObserveReport("most_wins", 10, 150*time.Millisecond, nil)
	assert.Equal(t, before+1, testutil.ToFloat64(reportsTotal.WithLabelValues("most_wins", "ok")))
	assert.Equal(t, 10.0, testutil.ToFloat64(reportRows.WithLabelValues("most_wins")))

	failed := testutil.ToFloat64(reportsTotal.WithLabelValues("most_wins", "error"))
	ObserveReport("most_wins", 0, time.Millisecond, errors.New("boom"))
	assert.Equal(t, failed+1, testutil.ToFloat64(reportsTotal.WithLabelValues("most_wins", "error")))
	assert.Equal(t, 10.0, testutil.ToFloat64(reportRows.WithLabelValues("most_wins")))
}

func TestObserveCacheAndStorage(t *testing.T) {
	hits := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("hit"))
	ObserveCache(true)
	ObserveCache(false)
	assert.Equal(t, hits+1, testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("hit")))

	saves := testutil.ToFloat64(storageOperationsTotal.WithLabelValues("save", "ok"))
	ObserveStorage("save", nil)
	assert.Equal(t, saves+1, testutil.ToFloat64(storageOperationsTotal.WithLabelValues("save", "ok")))
}

func TestMetricsMiddleware(t *testing.T) {
	e := echo.New()
	e.Use(MetricsMiddleware)
	e.GET("/api/v1/runs/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	})

	labels := []string{http.MethodGet, "/api/v1/runs/:id", "404"}
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(labels...))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/abc", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(labels...)))
}
