package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sync"
	"time"

	"f1report/internal/cache"
	"f1report/internal/chart"
	"f1report/internal/domain/query"
	"f1report/internal/domain/report"
	"f1report/internal/models"
	"f1report/internal/observability"
	"f1report/internal/storage"
	"f1report/internal/table"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrConnect помечает прогон, для которого не удалось открыть соединение.
var ErrConnect = errors.New("warehouse connection failed")

// Warehouse выполняет запросы отчётов через одно открытое соединение.
type Warehouse interface {
	Execute(ctx context.Context, q query.Query) (*table.Table, error)
	Close() error
}

// Connector открывает соединение с хранилищем данных.
type Connector interface {
	Connect(ctx context.Context) (Warehouse, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context) (Warehouse, error)

// Connect calls f.
func (f ConnectorFunc) Connect(ctx context.Context) (Warehouse, error) { return f(ctx) }

// Renderer собирает диаграммы всех отчётов прогона в один файл.
type Renderer interface {
	Render(ctx context.Context, def report.Definition, t *table.Table) error
	WriteTo(w io.Writer) (int64, error)
	Close() error
}

// RunnerConfig настройки прогона
type RunnerConfig struct {
	QueryTimeout time.Duration
	Prefix       string
}

// RunOptions параметры одного прогона
type RunOptions struct {
	// ID задается заранее для прогонов из очереди
	ID string
	// Only ограничивает прогон перечисленными отчётами
	Only []string
}

// Runner выполняет каталог отчётов: запрос, таблица, приведение типов, диаграмма.
type Runner struct {
	connector   Connector
	catalog     []report.Definition
	newRenderer func() Renderer
	storage     storage.Storage
	history     RunRepository
	cache       cache.Cache
	cfg         RunnerConfig
	logger      *logrus.Logger
	now         func() time.Time
}

// RunnerOption настраивает необязательные зависимости Runner.
type RunnerOption func(*Runner)

// WithCache включает кэш результатов запросов.
func WithCache(c cache.Cache) RunnerOption {
	return func(r *Runner) { r.cache = c }
}

// WithCatalog заменяет каталог отчётов.
func WithCatalog(defs []report.Definition) RunnerOption {
	return func(r *Runner) { r.catalog = defs }
}

// WithRenderer заменяет построитель книги.
func WithRenderer(newRenderer func() Renderer) RunnerOption {
	return func(r *Runner) { r.newRenderer = newRenderer }
}

// NewRunner создает исполнителя отчётов
func NewRunner(
	connector Connector,
	store storage.Storage,
	history RunRepository,
	cfg RunnerConfig,
	logger *logrus.Logger,
	opts ...RunnerOption,
) *Runner {
	r := &Runner{
		connector: connector,
		catalog:   report.Catalog(),
		storage:   store,
		history:   history,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
	r.newRenderer = func() Renderer { return chart.NewWorkbook(logger) }
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Catalog returns the definitions the runner executes.
func (r *Runner) Catalog() []report.Definition {
	return append([]report.Definition(nil), r.catalog...)
}

// Run выполняет выбранные отчёты по порядку каталога. Ошибка возвращается
// только если прогон не удалось начать; сбои отдельных отчётов отражены в
// статусе прогона.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*models.Run, error) {
	defs, err := report.Select(r.catalog, opts.Only)
	if err != nil {
		return nil, err
	}

	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}

	run := &models.Run{
		ID:        id,
		Status:    models.RunStatusRunning,
		StartedAt: r.now(),
		Parameters: models.JSON{
			"reports":       names,
			"query_timeout": r.cfg.QueryTimeout.String(),
		},
	}
	logger := r.logger.WithField("run_id", id)
	r.record(ctx, run)

	logger.WithField("reports", len(defs)).Info("Подключение к хранилищу данных")
	wh, err := r.connector.Connect(ctx)
	if err != nil {
		logger.WithError(err).Error("Не удалось подключиться к хранилищу данных")
		run.Error = err.Error()
		r.finish(ctx, run)
		return run, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	logger.Info("Соединение с хранилищем данных установлено")

	closeConn := closeOnce(wh)
	// после явного закрытия ниже повторный вызов ничего не делает
	defer func() { _ = closeConn() }()

	wb := r.newRenderer()
	defer wb.Close()

	for i, def := range defs {
		if ctx.Err() != nil {
			run.Reports = append(run.Reports, models.ReportResult{
				Position: i + 1,
				Name:     def.Name,
				Title:    def.Title,
				Chart:    string(def.Chart),
				Status:   models.ResultStatusSkipped,
				Error:    ctx.Err().Error(),
			})
			continue
		}
		run.Reports = append(run.Reports, r.runReport(ctx, wh, wb, i+1, def))
	}

	if err := closeConn(); err != nil {
		logger.WithError(err).Warn("Ошибка закрытия соединения")
		run.Warning = fmt.Sprintf("close connection: %v", err)
	} else {
		logger.Info("Соединение закрыто")
	}

	if key, err := r.save(ctx, run, wb); err != nil {
		logger.WithError(err).Error("Ошибка сохранения книги отчётов")
		run.Error = err.Error()
	} else {
		run.FileKey = key
	}

	r.finish(ctx, run)
	logger.WithFields(logrus.Fields{
		"status":   run.Status,
		"failed":   run.Failed(),
		"file_key": run.FileKey,
	}).Info("Прогон завершен")
	return run, nil
}

// runReport выполняет один отчёт; любая ошибка или паника остаётся внутри отчёта.
func (r *Runner) runReport(ctx context.Context, wh Warehouse, wb Renderer, pos int, def report.Definition) (res models.ReportResult) {
	start := time.Now()
	res = models.ReportResult{
		Position: pos,
		Name:     def.Name,
		Title:    def.Title,
		Chart:    string(def.Chart),
	}
	logger := r.logger.WithFields(logrus.Fields{"report": def.Name, "position": pos})

	step := "validate"
	var failure error
	defer func() {
		if p := recover(); p != nil {
			failure = fmt.Errorf("panic during %s: %v", step, p)
			logger.WithField("stack", string(debug.Stack())).Error("Паника при построении отчёта")
		}
		if failure != nil {
			res.Status = models.ResultStatusFailed
			res.Error = failure.Error()
			logger.WithField("step", step).WithError(failure).Error("Отчёт не построен")
		}
		elapsed := time.Since(start)
		res.DurationMs = elapsed.Milliseconds()
		observability.ObserveReport(def.Name, res.Rows, elapsed, failure)
	}()

	if err := query.Validate(def.SQL); err != nil {
		failure = fmt.Errorf("validate query: %w", err)
		return res
	}

	step = "query"
	t, cached, err := r.fetch(ctx, wh, def)
	if err != nil {
		failure = err
		return res
	}

	step = "prepare"
	if err := def.Prepare(t); err != nil {
		failure = fmt.Errorf("prepare table: %w", err)
		return res
	}

	step = "render"
	if err := wb.Render(ctx, def, t); err != nil {
		failure = fmt.Errorf("render %s: %w", def.Chart, err)
		return res
	}

	res.Status = models.ResultStatusOK
	res.Rows = t.Len()
	res.Cached = cached
	logger.WithFields(logrus.Fields{"rows": res.Rows, "cached": cached}).Info("Отчёт построен")
	return res
}

// fetch returns the raw result table, from the cache when possible.
func (r *Runner) fetch(ctx context.Context, wh Warehouse, def report.Definition) (*table.Table, bool, error) {
	if r.cache != nil {
		t, ok, err := r.cache.Get(ctx, def.SQL)
		if err != nil {
			r.logger.WithError(err).WithField("report", def.Name).Warn("Кэш недоступен")
		}
		observability.ObserveCache(ok)
		if ok {
			return t, true, nil
		}
	}

	t, err := wh.Execute(ctx, query.Query{ID: def.Name, SQL: def.SQL, Timeout: r.cfg.QueryTimeout})
	if err != nil {
		return nil, false, fmt.Errorf("run query: %w", err)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, def.SQL, t); err != nil {
			r.logger.WithError(err).WithField("report", def.Name).Warn("Не удалось сохранить результат в кэш")
		}
	}
	return t, false, nil
}

// save пишет книгу в хранилище под ключом <prefix>/<run-id>/f1-report-<время>.xlsx
func (r *Runner) save(ctx context.Context, run *models.Run, wb Renderer) (string, error) {
	var buf bytes.Buffer
	if _, err := wb.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("write workbook: %w", err)
	}

	name := fmt.Sprintf("f1-report-%s.xlsx", run.StartedAt.UTC().Format("20060102-150405"))
	key := r.storage.JoinPath(r.cfg.Prefix, run.ID, name)
	// сохранение не должно прерываться вместе с прогоном
	if err := r.storage.Save(context.WithoutCancel(ctx), key, bytes.NewReader(buf.Bytes())); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return key, nil
}

func (r *Runner) record(ctx context.Context, run *models.Run) {
	if r.history == nil {
		return
	}
	if err := r.history.Save(context.WithoutCancel(ctx), run); err != nil {
		r.logger.WithError(err).WithField("run_id", run.ID).Warn("Не удалось записать историю прогона")
	}
}

func (r *Runner) finish(ctx context.Context, run *models.Run) {
	run.Finish(r.now())
	observability.ObserveRun(string(run.Status))
	r.record(ctx, run)
}

// closeOnce closes the warehouse on the first call and returns that result afterwards.
func closeOnce(wh Warehouse) func() error {
	var (
		once sync.Once
		err  error
	)
	return func() error {
		once.Do(func() { err = wh.Close() })
		return err
	}
}

// ExitCode maps a run outcome to the process exit status:
// 0 all reports succeeded, 1 the connection or setup failed, 2 some report failed.
func ExitCode(run *models.Run, err error) int {
	switch {
	case err != nil:
		return 1
	case run == nil:
		return 1
	case run.Status == models.RunStatusSucceeded:
		return 0
	default:
		return 2
	}
}
