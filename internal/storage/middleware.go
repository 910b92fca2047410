package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"f1report/internal/observability"

	"github.com/sirupsen/logrus"
)

// LoggingMiddleware добавляет логирование и метрики к операциям хранилища
type LoggingMiddleware struct {
	Storage
	logger *logrus.Logger
}

// NewLoggingMiddleware создает новый logging middleware
func NewLoggingMiddleware(storage Storage, logger *logrus.Logger) Storage {
	return &LoggingMiddleware{Storage: storage, logger: logger}
}

// Save логирует операцию сохранения
func (m *LoggingMiddleware) Save(ctx context.Context, key string, reader io.Reader) error {
	start := time.Now()
	logger := m.logger.WithFields(logrus.Fields{
		"operation": "save",
		"key":       key,
	})

	logger.Debug("Начало сохранения файла")

	err := m.Storage.Save(ctx, key, reader)
	observability.ObserveStorage("save", err)

	duration := time.Since(start)
	if err != nil {
		logger.WithError(err).WithField("duration", duration).Error("Ошибка сохранения файла")
	} else {
		logger.WithField("duration", duration).Info("Файл сохранен успешно")
	}

	return err
}

// Get логирует операцию получения
func (m *LoggingMiddleware) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	start := time.Now()
	logger := m.logger.WithFields(logrus.Fields{
		"operation": "get",
		"key":       key,
	})

	reader, err := m.Storage.Get(ctx, key)
	observability.ObserveStorage("get", err)

	duration := time.Since(start)
	if err != nil {
		logger.WithError(err).WithField("duration", duration).Warn("Ошибка получения файла")
	} else {
		logger.WithField("duration", duration).Debug("Файл получен успешно")
	}

	return reader, err
}

// RetryMiddleware повторяет операции, завершившиеся временной ошибкой
type RetryMiddleware struct {
	Storage
	maxRetries int
	retryDelay time.Duration
	logger     *logrus.Logger
}

// NewRetryMiddleware создает новый retry middleware
func NewRetryMiddleware(storage Storage, maxRetries int, retryDelay time.Duration, logger *logrus.Logger) Storage {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &RetryMiddleware{
		Storage:    storage,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// Save повторяет сохранение только для перематываемого источника
func (m *RetryMiddleware) Save(ctx context.Context, key string, reader io.Reader) error {
	seeker, ok := reader.(io.Seeker)
	if !ok {
		return m.Storage.Save(ctx, key, reader)
	}
	first := true
	return m.retryOperation(ctx, "save", func() error {
		if !first {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return err
			}
		}
		first = false
		return m.Storage.Save(ctx, key, reader)
	})
}

// Get выполняет операцию получения с retry
func (m *RetryMiddleware) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	var result io.ReadCloser
	err := m.retryOperation(ctx, "get", func() error {
		var err error
		result, err = m.Storage.Get(ctx, key)
		return err
	})
	return result, err
}

// retryOperation выполняет операцию с retry логикой
func (m *RetryMiddleware) retryOperation(ctx context.Context, operation string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !shouldRetry(lastErr) {
			break
		}

		if attempt < m.maxRetries {
			m.logger.WithFields(logrus.Fields{
				"operation":   operation,
				"attempt":     attempt + 1,
				"max_retries": m.maxRetries,
			}).WithError(lastErr).Warn("Повтор операции после ошибки")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.retryDelay):
			}
		}
	}

	return lastErr
}

// shouldRetry отсекает ошибки, которые повтор не исправит
func shouldRetry(err error) bool {
	return !errors.Is(err, ErrNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// ValidationMiddleware проверяет ключи перед обращением к хранилищу
type ValidationMiddleware struct {
	Storage
}

// NewValidationMiddleware создает новый validation middleware
func NewValidationMiddleware(storage Storage) Storage {
	return &ValidationMiddleware{Storage: storage}
}

func (m *ValidationMiddleware) Save(ctx context.Context, key string, reader io.Reader) error {
	if err := m.ValidateKey(key); err != nil {
		return err
	}
	return m.Storage.Save(ctx, key, reader)
}

func (m *ValidationMiddleware) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := m.ValidateKey(key); err != nil {
		return nil, err
	}
	return m.Storage.Get(ctx, key)
}

func (m *ValidationMiddleware) Exists(ctx context.Context, key string) (bool, error) {
	if err := m.ValidateKey(key); err != nil {
		return false, err
	}
	return m.Storage.Exists(ctx, key)
}

func (m *ValidationMiddleware) GetSize(ctx context.Context, key string) (int64, error) {
	if err := m.ValidateKey(key); err != nil {
		return 0, err
	}
	return m.Storage.GetSize(ctx, key)
}
