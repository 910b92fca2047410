package observability

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "f1report_runs_total",
			Help: "Total number of report runs by final status.",
		},
		[]string{"status"},
	)

	reportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "f1report_reports_total",
			Help: "Total number of rendered reports by name and outcome.",
		},
		[]string{"report", "status"},
	)

	reportDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "f1report_report_duration_seconds",
			Help:    "Query plus render latency per report.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"report"},
	)

	reportRows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "f1report_report_rows",
			Help: "Rows returned by the latest execution of each report query.",
		},
		[]string{"report"},
	)

	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "f1report_cache_lookups_total",
			Help: "Result cache lookups by outcome.",
		},
		[]string{"result"},
	)

	storageOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "f1report_storage_operations_total",
			Help: "Artifact storage operations by kind and outcome.",
		},
		[]string{"operation", "status"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "f1report_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "f1report_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		runsTotal,
		reportsTotal,
		reportDurationSeconds,
		reportRows,
		cacheLookupsTotal,
		storageOperationsTotal,
		httpRequestsTotal,
		httpRequestDurationSeconds,
	)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveRun counts a finished run.
func ObserveRun(runStatus string) {
	runsTotal.WithLabelValues(runStatus).Inc()
}

// ObserveReport records the outcome of a single report.
func ObserveReport(name string, rows int, elapsed time.Duration, err error) {
	reportsTotal.WithLabelValues(name, status(err)).Inc()
	reportDurationSeconds.WithLabelValues(name).Observe(elapsed.Seconds())
	if err == nil {
		reportRows.WithLabelValues(name).Set(float64(rows))
	}
}

// ObserveCache counts a cache hit or miss.
func ObserveCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveStorage counts an artifact storage call.
func ObserveStorage(operation string, err error) {
	storageOperationsTotal.WithLabelValues(operation, status(err)).Inc()
}

// MetricsMiddleware records request counts and latency by route pattern.
func MetricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		code := c.Response().Status
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		}
		path := c.Path()
		if path == "" {
			path = "unmatched"
		}
		labels := []string{c.Request().Method, path, strconv.Itoa(code)}
		httpRequestsTotal.WithLabelValues(labels...).Inc()
		httpRequestDurationSeconds.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		return err
	}
}
