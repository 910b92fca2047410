package server

import (
	"context"
	"errors"
	"net/http"
	"path"
	"strconv"
	"time"

	"f1report/internal/config"
	"f1report/internal/domain/report"
	"f1report/internal/models"
	"f1report/internal/observability"
	"f1report/internal/service"
	"f1report/internal/storage"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// HTTPServer is the lifecycle surface used by the application
type HTTPServer interface {
	Start(address string) error
	Shutdown(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	echo      *echo.Echo
	runner    *service.Runner
	processor *service.RunProcessor
	history   service.RunRepository
	storage   storage.Storage
	logger    *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(
	cfg config.Config,
	runner *service.Runner,
	processor *service.RunProcessor,
	history service.RunRepository,
	store storage.Storage,
	logger *logrus.Logger,
) *Server {
	e := echo.New()
	e.Debug = cfg.Server.Debug
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(observability.MetricsMiddleware)

	if cfg.Server.Debug {
		e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
			Format: "${time_rfc3339} ${method} ${uri} ${status} ${latency_human} ${error}\n",
		}))
	}

	server := &Server{
		echo:      e,
		runner:    runner,
		processor: processor,
		history:   history,
		storage:   store,
		logger:    logger,
	}

	e.HTTPErrorHandler = server.handleError
	server.setupRoutes()
	return server
}

// Start starts the HTTP server
func (s *Server) Start(address string) error {
	s.logger.WithField("address", address).Info("Запуск HTTP сервера")
	if err := s.echo.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Остановка HTTP сервера")
	return s.echo.Shutdown(ctx)
}

// ServeHTTP lets the server be used as an http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// setupRoutes configures the server routes
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api/v1")
	{
		api.GET("/reports", s.listReports)

		runs := api.Group("/runs")
		{
			runs.POST("", s.createRun)
			runs.GET("", s.listRuns)
			runs.GET("/:id", s.getRun)
			runs.POST("/:id/cancel", s.cancelRun)
			runs.GET("/:id/download", s.downloadRun)
		}
	}
}

// healthCheck handles health check requests
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "f1report",
	})
}

type reportInfo struct {
	Position int    `json:"position"`
	Name     string `json:"name"`
	Title    string `json:"title"`
	Chart    string `json:"chart"`
}

// listReports returns the report catalog
func (s *Server) listReports(c echo.Context) error {
	defs := s.runner.Catalog()
	reports := make([]reportInfo, len(defs))
	for i, def := range defs {
		reports[i] = reportInfo{Position: i + 1, Name: def.Name, Title: def.Title, Chart: string(def.Chart)}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"reports": reports,
		"count":   len(reports),
	})
}

// createRun ставит новый прогон в очередь
func (s *Server) createRun(c echo.Context) error {
	var req struct {
		Reports []string `json:"reports"`
	}
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			s.logger.WithError(err).Error("Не удалось разобрать запрос")
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
		}
	}

	id, err := s.processor.Submit(c.Request().Context(), req.Reports)
	switch {
	case err == nil:
	case errors.Is(err, report.ErrUnknownReport):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrQueueFull), errors.Is(err, service.ErrProcessorStopped):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.WithError(err).Error("Не удалось поставить прогон в очередь")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to queue run")
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"id":     id,
		"status": models.RunStatusQueued,
	})
}

// listRuns handles listing runs
func (s *Server) listRuns(c echo.Context) error {
	params := service.ListRunParams{
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "page_size"),
	}
	if v := c.QueryParam("status"); v != "" {
		st := models.RunStatus(v)
		params.Status = &st
	}

	list, err := service.ListRuns(c.Request().Context(), s.history, params)
	if err != nil {
		s.logger.WithError(err).Error("Не удалось получить список прогонов")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list runs")
	}
	return c.JSON(http.StatusOK, list)
}

// getRun handles getting a single run
func (s *Server) getRun(c echo.Context) error {
	run, err := s.loadRun(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, run)
}

// cancelRun прерывает выполняющийся прогон
func (s *Server) cancelRun(c echo.Context) error {
	if err := s.processor.Cancel(c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Run is not running")
	}
	return c.JSON(http.StatusAccepted, map[string]string{
		"message": "Run cancellation requested",
	})
}

// downloadRun отдает книгу прогона из хранилища
func (s *Server) downloadRun(c echo.Context) error {
	run, err := s.loadRun(c)
	if err != nil {
		return err
	}

	if !run.IsFinished() {
		return echo.NewHTTPError(http.StatusConflict, "Run is not finished yet")
	}
	if !run.HasFile() {
		return echo.NewHTTPError(http.StatusNotFound, "Run file not found")
	}

	ctx := c.Request().Context()
	rc, err := s.storage.Get(ctx, run.FileKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Run file not found")
		}
		s.logger.WithError(err).WithField("file_key", run.FileKey).Error("Не удалось прочитать файл прогона")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to read run file")
	}
	defer rc.Close()

	if size, err := s.storage.GetSize(ctx, run.FileKey); err == nil {
		c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(size, 10))
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+path.Base(run.FileKey)+`"`)
	return c.Stream(http.StatusOK, xlsxContentType, rc)
}

func (s *Server) loadRun(c echo.Context) (*models.Run, error) {
	run, err := s.history.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrRunNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "Run not found")
		}
		s.logger.WithError(err).Error("Не удалось получить прогон")
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "Failed to get run")
	}
	return run, nil
}

// handleError отвечает на ошибки в формате {"error": "..."}
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	} else {
		s.logger.WithError(err).WithField("path", c.Path()).Error("Необработанная ошибка запроса")
	}

	if err := c.JSON(code, map[string]string{"error": msg}); err != nil {
		s.logger.WithError(err).Warn("Не удалось отправить ответ с ошибкой")
	}
}

func queryInt(c echo.Context, name string) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return n
}
