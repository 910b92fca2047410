package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"f1report/internal/config"

	"github.com/sirupsen/logrus"
)

const (
	// Типы хранилищ
	StorageTypeLocal = "local"
	StorageTypeS3    = "s3"

	// Настройки retry
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
)

// ErrNotFound возвращается, когда артефакт отсутствует в хранилище.
var ErrNotFound = errors.New("artifact not found")

// Storage интерфейс для работы с хранилищем книг отчётов
type Storage interface {
	Save(ctx context.Context, key string, reader io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	GetSize(ctx context.Context, key string) (int64, error)

	// GetURL возвращает адрес артефакта для вывода пользователю
	GetURL(ctx context.Context, key string) (string, error)

	JoinPath(elem ...string) string
	ValidateKey(key string) error
}

// New создает хранилище по конфигурации и оборачивает его в middleware.
func New(cfg config.Storage, logger *logrus.Logger) (Storage, error) {
	var (
		s   Storage
		err error
	)

	switch cfg.Type {
	case StorageTypeS3:
		s, err = NewS3Storage(cfg.S3, logger)
		if err != nil {
			return nil, fmt.Errorf("ошибка создания S3 хранилища: %w", err)
		}
	case StorageTypeLocal:
		s, err = NewLocalStorage(cfg.BasePath, logger)
		if err != nil {
			return nil, fmt.Errorf("ошибка создания локального хранилища: %w", err)
		}
	default:
		return nil, fmt.Errorf("неподдерживаемый тип хранилища: %s", cfg.Type)
	}

	return wrapWithMiddleware(s, logger), nil
}

// wrapWithMiddleware оборачивает хранилище в middleware
func wrapWithMiddleware(s Storage, logger *logrus.Logger) Storage {
	if logger != nil {
		s = NewLoggingMiddleware(s, logger)
	}
	s = NewRetryMiddleware(s, DefaultMaxRetries, DefaultRetryDelay, logger)
	return NewValidationMiddleware(s)
}
