package table

import (
	"fmt"
	"strings"
)

// Table is a result set labeled with the report's column names.
type Table struct {
	Columns []string
	Rows    [][]any
}

// New builds a table and checks every row against the column count.
func New(columns []string, rows [][]any) (*Table, error) {
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values, expected %d", i, len(row), len(columns))
		}
	}
	if rows == nil {
		rows = make([][]any, 0)
	}
	return &Table{Columns: columns, Rows: rows}, nil
}

// Relabel replaces the driver column names with the declared labels.
func (t *Table) Relabel(labels []string) error {
	if len(labels) != len(t.Columns) {
		return fmt.Errorf("query returned %d columns %v, report declares %d labels %v",
			len(t.Columns), t.Columns, len(labels), labels)
	}
	t.Columns = append([]string(nil), labels...)
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool { return len(t.Rows) == 0 }

// Index returns the position of a column, case-insensitively.
func (t *Table) Index(column string) (int, error) {
	for i, c := range t.Columns {
		if strings.EqualFold(c, column) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("column %q not found in %v", column, t.Columns)
}

// Column returns the raw values of a column.
func (t *Table) Column(column string) ([]any, error) {
	idx, err := t.Index(column)
	if err != nil {
		return nil, err
	}
	values := make([]any, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values, nil
}

// Floats returns a column as float64. Nil cells become zero.
func (t *Table) Floats(column string) ([]float64, error) {
	values, err := t.Column(column)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		f, err := toFloat(v)
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: %w", column, i, err)
		}
		out[i] = f
	}
	return out, nil
}

// Strings returns a column formatted as text.
func (t *Table) Strings(column string) ([]string, error) {
	values, err := t.Column(column)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = toString(v)
	}
	return out, nil
}
