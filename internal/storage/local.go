package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// LocalStorage хранит книги отчётов в каталоге на диске.
type LocalStorage struct {
	basePath    string
	permissions os.FileMode
	logger      *logrus.Logger
}

// NewLocalStorage создает локальное хранилище, базовый каталог создаётся при необходимости.
func NewLocalStorage(basePath string, logger *logrus.Logger) (*LocalStorage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("базовый путь не может быть пустым")
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("ошибка определения базового пути: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("ошибка создания базовой директории: %w", err)
	}

	return &LocalStorage{basePath: abs, permissions: 0o755, logger: logger}, nil
}

// Save записывает файл через временный файл, чтобы неполная книга не была видна по ключу.
func (l *LocalStorage) Save(ctx context.Context, key string, reader io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath := l.getFullPath(key)

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, l.permissions); err != nil {
		return fmt.Errorf("ошибка создания директории: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("ошибка создания файла: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return fmt.Errorf("ошибка записи файла: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("ошибка записи файла: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return fmt.Errorf("ошибка перемещения файла: %w", err)
	}
	return nil
}

// Get открывает файл на чтение
func (l *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	file, err := os.Open(l.getFullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("ошибка открытия файла: %w", err)
	}
	return file, nil
}

// Exists проверяет существование файла
func (l *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(l.getFullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("ошибка проверки существования файла: %w", err)
	}
	return true, nil
}

// GetSize возвращает размер файла
func (l *LocalStorage) GetSize(ctx context.Context, key string) (int64, error) {
	info, err := os.Stat(l.getFullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return 0, fmt.Errorf("ошибка получения информации о файле: %w", err)
	}
	return info.Size(), nil
}

// GetURL возвращает файловый URL
func (l *LocalStorage) GetURL(ctx context.Context, key string) (string, error) {
	return "file://" + filepath.ToSlash(l.getFullPath(key)), nil
}

// JoinPath объединяет элементы ключа
func (l *LocalStorage) JoinPath(elem ...string) string {
	return filepath.ToSlash(filepath.Join(elem...))
}

// ValidateKey запрещает выход за пределы базового каталога
func (l *LocalStorage) ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("ключ файла не может быть пустым")
	}
	if filepath.IsAbs(key) || strings.HasPrefix(key, "/") {
		return fmt.Errorf("ключ файла должен быть относительным: %s", key)
	}
	for _, part := range strings.Split(filepath.ToSlash(key), "/") {
		if part == ".." {
			return fmt.Errorf("ключ файла не может содержать '..'")
		}
	}
	return nil
}

func (l *LocalStorage) getFullPath(key string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(key))
}
