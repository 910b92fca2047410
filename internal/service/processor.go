package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"f1report/internal/domain/report"
	"f1report/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultRunTimeout = 30 * time.Minute
	defaultQueueSize  = 16
)

var (
	// ErrQueueFull возвращается, когда очередь прогонов переполнена.
	ErrQueueFull = errors.New("run queue is full")
	// ErrProcessorStopped возвращается после остановки процессора.
	ErrProcessorStopped = errors.New("run processor is stopped")
)

// Task представляет поставленный в очередь прогон
type Task struct {
	ID      string
	Only    []string
	Timeout time.Duration
}

// RunProcessor выполняет прогоны из очереди по одному, в фоне
type RunProcessor struct {
	runner  *Runner
	history RunRepository
	logger  *logrus.Logger
	timeout time.Duration

	mu            sync.RWMutex
	stopped       bool
	started       atomic.Bool
	tasks         chan Task
	cancellations sync.Map // map[string]context.CancelFunc
	done          chan struct{}
}

// NewRunProcessor создает фоновый процессор прогонов
func NewRunProcessor(runner *Runner, history RunRepository, logger *logrus.Logger, timeout time.Duration) *RunProcessor {
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}
	return &RunProcessor{
		runner:  runner,
		history: history,
		logger:  logger,
		timeout: timeout,
		tasks:   make(chan Task, defaultQueueSize),
		done:    make(chan struct{}),
	}
}

// Submit ставит прогон в очередь и возвращает его ID
func (p *RunProcessor) Submit(ctx context.Context, only []string) (string, error) {
	defs, err := report.Select(p.runner.catalog, only)
	if err != nil {
		return "", err
	}
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}

	task := Task{ID: uuid.NewString(), Only: only, Timeout: p.timeout}
	run := &models.Run{
		ID:         task.ID,
		Status:     models.RunStatusQueued,
		StartedAt:  time.Now(),
		Parameters: models.JSON{"reports": names},
	}
	if err := p.history.Save(ctx, run); err != nil {
		return "", fmt.Errorf("ошибка записи прогона в очередь: %w", err)
	}

	if err := p.enqueue(task); err != nil {
		p.reject(task.ID, err)
		return "", err
	}
	p.logger.WithField("run_id", task.ID).Info("Прогон поставлен в очередь")
	return task.ID, nil
}

func (p *RunProcessor) enqueue(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrProcessorStopped
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *RunProcessor) reject(id string, cause error) {
	run := &models.Run{ID: id, StartedAt: time.Now(), Error: cause.Error()}
	run.Finish(time.Now())
	if err := p.history.Save(context.Background(), run); err != nil {
		p.logger.WithError(err).WithField("run_id", id).Warn("Не удалось отметить отклоненный прогон")
	}
}

// Cancel отменяет выполняющийся прогон
func (p *RunProcessor) Cancel(id string) error {
	if cancel, exists := p.cancellations.Load(id); exists {
		if cancelFunc, ok := cancel.(context.CancelFunc); ok {
			cancelFunc()
			return nil
		}
	}
	return fmt.Errorf("%w: %s is not running", ErrRunNotFound, id)
}

// Start обрабатывает очередь до вызова Stop или отмены контекста
func (p *RunProcessor) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.process(ctx, task)
		}
	}
}

// Stop закрывает очередь и ждет завершения текущего прогона
func (p *RunProcessor) Stop() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.tasks)
	}
	p.mu.Unlock()

	if p.started.Load() {
		<-p.done
	}
}

func (p *RunProcessor) process(parent context.Context, task Task) {
	ctx, cancel := context.WithTimeout(parent, task.Timeout)
	defer cancel()

	p.cancellations.Store(task.ID, cancel)
	defer p.cancellations.Delete(task.ID)

	logger := p.logger.WithField("run_id", task.ID)
	run, err := p.runner.Run(ctx, RunOptions{ID: task.ID, Only: task.Only})
	if err != nil {
		logger.WithError(err).Error("Прогон завершился ошибкой")
		return
	}
	logger.WithField("status", run.Status).Info("Фоновый прогон завершен")
}
