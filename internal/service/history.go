package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"f1report/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrRunNotFound возвращается, когда прогона с указанным ID нет в истории.
var ErrRunNotFound = errors.New("run not found")

// RunRepository интерфейс для работы с историей прогонов
type RunRepository interface {
	// Save создает или обновляет прогон вместе с результатами отчётов
	Save(ctx context.Context, run *models.Run) error
	GetByID(ctx context.Context, id string) (*models.Run, error)
	List(ctx context.Context, params ListRunParams) ([]models.Run, int64, error)
}

// ListRunParams параметры для получения списка прогонов
type ListRunParams struct {
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Status   *models.RunStatus `json:"status,omitempty"`
}

// normalize приводит параметры пагинации к допустимым значениям
func (p *ListRunParams) normalize() {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

// RunList результат получения списка прогонов с пагинацией
type RunList struct {
	Runs       []models.Run `json:"runs"`
	Total      int64        `json:"total"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalPages int          `json:"total_pages"`
}

// ListRuns получает страницу истории прогонов
func ListRuns(ctx context.Context, repo RunRepository, params ListRunParams) (*RunList, error) {
	params.normalize()

	runs, total, err := repo.List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка прогонов: %w", err)
	}

	return &RunList{
		Runs:       runs,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: int((total + int64(params.PageSize) - 1) / int64(params.PageSize)),
	}, nil
}

// GormRunRepository реализация репозитория прогонов для GORM
type GormRunRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewGormRunRepository создает новый GORM репозиторий прогонов
func NewGormRunRepository(db *gorm.DB, logger *logrus.Logger) *GormRunRepository {
	return &GormRunRepository{db: db, logger: logger}
}

// Save сохраняет прогон и результаты отчётов
func (r *GormRunRepository) Save(ctx context.Context, run *models.Run) error {
	err := r.db.WithContext(ctx).
		Session(&gorm.Session{FullSaveAssociations: true}).
		Save(run).Error
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

// GetByID получает прогон по ID вместе с результатами
func (r *GormRunRepository) GetByID(ctx context.Context, id string) (*models.Run, error) {
	var run models.Run
	err := r.db.WithContext(ctx).
		Preload("Reports", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		First(&run, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}
	return &run, nil
}

// List получает список прогонов с фильтрацией и пагинацией
func (r *GormRunRepository) List(ctx context.Context, params ListRunParams) ([]models.Run, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Run{})

	// Фильтрация по статусу
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (params.Page - 1) * params.PageSize
	var runs []models.Run
	err := query.
		Preload("Reports", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Order("started_at DESC").
		Offset(offset).
		Limit(params.PageSize).
		Find(&runs).Error

	return runs, total, err
}

// MemoryRunRepository хранит историю в памяти процесса, когда БД не настроена
type MemoryRunRepository struct {
	mu   sync.RWMutex
	runs map[string]models.Run
}

// NewMemoryRunRepository создает пустую историю в памяти
func NewMemoryRunRepository() *MemoryRunRepository {
	return &MemoryRunRepository{runs: make(map[string]models.Run)}
}

// Save сохраняет копию прогона
func (r *MemoryRunRepository) Save(ctx context.Context, run *models.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = copyRun(run)
	return nil
}

// GetByID возвращает копию прогона
func (r *MemoryRunRepository) GetByID(ctx context.Context, id string) (*models.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	out := copyRun(&run)
	return &out, nil
}

// List возвращает прогоны, начиная с последнего
func (r *MemoryRunRepository) List(ctx context.Context, params ListRunParams) ([]models.Run, int64, error) {
	r.mu.RLock()
	all := make([]models.Run, 0, len(r.runs))
	for _, run := range r.runs {
		if params.Status != nil && run.Status != *params.Status {
			continue
		}
		all = append(all, copyRun(&run))
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].StartedAt.After(all[j].StartedAt) })

	total := int64(len(all))
	from := (params.Page - 1) * params.PageSize
	if from >= len(all) {
		return []models.Run{}, total, nil
	}
	to := from + params.PageSize
	if to > len(all) {
		to = len(all)
	}
	return all[from:to], total, nil
}

func copyRun(run *models.Run) models.Run {
	out := *run
	out.Reports = append([]models.ReportResult(nil), run.Reports...)
	if run.Parameters != nil {
		out.Parameters = make(models.JSON, len(run.Parameters))
		for k, v := range run.Parameters {
			out.Parameters[k] = v
		}
	}
	if run.FinishedAt != nil {
		at := *run.FinishedAt
		out.FinishedAt = &at
	}
	return out
}
