package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// RunStatus статус прогона отчётов
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

// ResultStatus статус отдельного отчёта внутри прогона
type ResultStatus string

const (
	ResultStatusOK      ResultStatus = "ok"
	ResultStatusFailed  ResultStatus = "failed"
	ResultStatusSkipped ResultStatus = "skipped"
)

// Run represents one execution of the report catalog
type Run struct {
	ID         string         `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Status     RunStatus      `json:"status" gorm:"size:20;not null;default:'running';index"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	FileKey    string         `json:"file_key,omitempty" gorm:"size:512"`
	Error      string         `json:"error,omitempty" gorm:"size:2000"`
	Warning    string         `json:"warning,omitempty" gorm:"size:2000"`
	Parameters JSON           `json:"parameters,omitempty" gorm:"type:jsonb"`
	Reports    []ReportResult `json:"reports,omitempty" gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
}

// ReportResult is the outcome of one report within a run
type ReportResult struct {
	ID         uint         `json:"-" gorm:"primarykey"`
	RunID      string       `json:"-" gorm:"size:36;not null;index"`
	Position   int          `json:"position"`
	Name       string       `json:"name" gorm:"size:100;not null"`
	Title      string       `json:"title" gorm:"size:255"`
	Chart      string       `json:"chart" gorm:"size:20"`
	Status     ResultStatus `json:"status" gorm:"size:20;not null"`
	Rows       int          `json:"rows"`
	Cached     bool         `json:"cached"`
	DurationMs int64        `json:"duration_ms"`
	Error      string       `json:"error,omitempty" gorm:"size:2000"`
}

// JSON is a custom type for handling JSONB data
type JSON map[string]interface{}

// Value implements the driver.Valuer interface for JSON
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for JSON
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSON", value)
	}

	return json.Unmarshal(bytes, j)
}

// TableName specifies the table name for the Run model
func (Run) TableName() string {
	return "runs"
}

// TableName specifies the table name for the ReportResult model
func (ReportResult) TableName() string {
	return "run_reports"
}

// IsFinished returns true once the run reached a final status
func (r *Run) IsFinished() bool {
	return r.Status != RunStatusQueued && r.Status != RunStatusRunning
}

// HasFile returns true if the run produced a workbook
func (r *Run) HasFile() bool {
	return r.FileKey != ""
}

// Failed returns the number of reports that did not succeed
func (r *Run) Failed() int {
	n := 0
	for _, rep := range r.Reports {
		if rep.Status != ResultStatusOK {
			n++
		}
	}
	return n
}

// Finish sets the final status derived from the report results
func (r *Run) Finish(at time.Time) {
	r.FinishedAt = &at
	switch failed := r.Failed(); {
	case r.Error != "" && len(r.Reports) == 0:
		r.Status = RunStatusFailed
	case failed == 0 && r.Error == "":
		r.Status = RunStatusSucceeded
	case failed == len(r.Reports):
		r.Status = RunStatusFailed
	default:
		r.Status = RunStatusPartial
	}
}
