package query

import "time"

// Query описывает SQL-запрос отчёта, отправляемый в хранилище данных.
type Query struct {
	ID      string
	SQL     string
	Params  []any
	Timeout time.Duration
}
