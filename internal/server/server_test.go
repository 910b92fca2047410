package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"f1report/internal/config"
	"f1report/internal/domain/query"
	"f1report/internal/models"
	"f1report/internal/service"
	"f1report/internal/storage"
	"f1report/internal/table"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emptyWarehouse struct{}

func (emptyWarehouse) Execute(ctx context.Context, q query.Query) (*table.Table, error) {
	return nil, context.Canceled
}

func (emptyWarehouse) Close() error { return nil }

type testEnv struct {
	server  *Server
	history *service.MemoryRunRepository
	storage storage.Storage
}

func setupTestServer(t *testing.T) testEnv {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := storage.NewLocalStorage(t.TempDir(), logger)
	require.NoError(t, err)
	history := service.NewMemoryRunRepository()
	conn := service.ConnectorFunc(func(ctx context.Context) (service.Warehouse, error) {
		return emptyWarehouse{}, nil
	})
	runner := service.NewRunner(conn, store, history, service.RunnerConfig{Prefix: "runs"}, logger)
	processor := service.NewRunProcessor(runner, history, logger, time.Minute)

	return testEnv{
		server:  NewServer(config.Config{}, runner, processor, history, store, logger),
		history: history,
		storage: store,
	}
}

func (e testEnv) do(t *testing.T, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthCheck(t *testing.T) {
	env := setupTestServer(t)
	rec := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupTestServer(t)
	env.do(t, http.MethodGet, "/health", nil)

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "f1report_http_requests_total")
}

func TestListReports(t *testing.T) {
	env := setupTestServer(t)
	rec := env.do(t, http.MethodGet, "/api/v1/reports", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.EqualValues(t, 10, body["count"])
	reports := body["reports"].([]interface{})
	first := reports[0].(map[string]interface{})
	assert.Equal(t, "top_drivers_points", first["name"])
	assert.Equal(t, "pie", first["chart"])
}

func TestCreateRunQueuesRun(t *testing.T) {
	env := setupTestServer(t)
	rec := env.do(t, http.MethodPost, "/api/v1/runs", strings.NewReader(`{"reports":["most_wins"]}`))
	require.Equal(t, http.StatusAccepted, rec.Code)

	body := decode(t, rec)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "queued", body["status"])

	run, err := env.history.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusQueued, run.Status)
}

func TestCreateRunUnknownReport(t *testing.T) {
	env := setupTestServer(t)
	rec := env.do(t, http.MethodPost, "/api/v1/runs", strings.NewReader(`{"reports":["pit_stops"]}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "pit_stops")
}

func TestGetRunNotFound(t *testing.T) {
	env := setupTestServer(t)
	rec := env.do(t, http.MethodGet, "/api/v1/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Run not found", decode(t, rec)["error"])
}

func saveFinishedRun(t *testing.T, env testEnv, id string, content []byte) *models.Run {
	t.Helper()
	ctx := context.Background()
	run := &models.Run{
		ID:        id,
		StartedAt: time.Now(),
		Reports:   []models.ReportResult{{Position: 1, Name: "most_wins", Status: models.ResultStatusOK}},
	}
	if content != nil {
		run.FileKey = "runs/" + id + "/f1-report-20240302-150000.xlsx"
		require.NoError(t, env.storage.Save(ctx, run.FileKey, bytes.NewReader(content)))
	}
	run.Finish(time.Now())
	require.NoError(t, env.history.Save(ctx, run))
	return run
}

func TestGetAndListRuns(t *testing.T) {
	env := setupTestServer(t)
	saveFinishedRun(t, env, "run-1", nil)

	rec := env.do(t, http.MethodGet, "/api/v1/runs/run-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "succeeded", decode(t, rec)["status"])

	rec = env.do(t, http.MethodGet, "/api/v1/runs?status=succeeded&page_size=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 1, body["total"])
	assert.EqualValues(t, 5, body["page_size"])
}

func TestDownloadRun(t *testing.T) {
	env := setupTestServer(t)
	content := []byte("PK\x03\x04 workbook")
	saveFinishedRun(t, env, "run-1", content)

	rec := env.do(t, http.MethodGet, "/api/v1/runs/run-1/download", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, content, rec.Body.Bytes())
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "f1-report-20240302-150000.xlsx")
}

func TestDownloadRunWithoutFile(t *testing.T) {
	env := setupTestServer(t)
	saveFinishedRun(t, env, "run-1", nil)

	rec := env.do(t, http.MethodGet, "/api/v1/runs/run-1/download", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadUnfinishedRun(t *testing.T) {
	env := setupTestServer(t)
	require.NoError(t, env.history.Save(context.Background(), &models.Run{
		ID:        "run-1",
		Status:    models.RunStatusRunning,
		StartedAt: time.Now(),
	}))

	rec := env.do(t, http.MethodGet, "/api/v1/runs/run-1/download", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancelIdleRun(t *testing.T) {
	env := setupTestServer(t)
	rec := env.do(t, http.MethodPost, "/api/v1/runs/run-1/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
