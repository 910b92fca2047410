package report

import (
	"fmt"
	"strings"

	"f1report/internal/table"
)

// ChartKind обозначает тип диаграммы отчёта.
type ChartKind string

const (
	ChartPie     ChartKind = "pie"
	ChartDonut   ChartKind = "donut"
	ChartScatter ChartKind = "scatter"
	ChartBar     ChartKind = "bar"
	ChartStem    ChartKind = "stem"
	ChartBox     ChartKind = "box"
	ChartViolin  ChartKind = "violin"
	ChartTreemap ChartKind = "treemap"
)

// Definition описывает один отчёт: запрос, ожидаемые колонки и диаграмму.
type Definition struct {
	Name    string
	Title   string
	SQL     string
	Columns []string
	Chart   ChartKind

	// Category и Value задают подписи и величины для pie/donut/bar/stem/box/violin/treemap.
	Category string
	Value    string

	// X, Y и Group используются диаграммой рассеяния; Group разбивает точки на серии.
	X     string
	Y     string
	Group string

	XLabel string
	YLabel string

	Coerce     []table.Coercion
	LabelWidth int
}

// Validate проверяет, что колонки диаграммы объявлены в отчёте.
func (d Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("report name cannot be empty")
	}
	if strings.TrimSpace(d.SQL) == "" {
		return fmt.Errorf("report %s: sql cannot be empty", d.Name)
	}
	if len(d.Columns) == 0 {
		return fmt.Errorf("report %s: no columns declared", d.Name)
	}

	var bound []string
	switch d.Chart {
	case ChartScatter:
		bound = []string{d.X, d.Y}
		if d.Group != "" {
			bound = append(bound, d.Group)
		}
	case ChartPie, ChartDonut, ChartBar, ChartStem, ChartBox, ChartViolin, ChartTreemap:
		bound = []string{d.Category, d.Value}
	default:
		return fmt.Errorf("report %s: unknown chart kind %q", d.Name, d.Chart)
	}
	for _, c := range d.Coerce {
		bound = append(bound, c.Column)
	}
	for _, col := range bound {
		if !d.HasColumn(col) {
			return fmt.Errorf("report %s: column %q is not declared", d.Name, col)
		}
	}
	return nil
}

// HasColumn reports whether the column is one of the declared labels.
func (d Definition) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// Prepare приводит таблицу к виду, который ожидает диаграмма.
func (d Definition) Prepare(t *table.Table) error {
	if err := t.Relabel(d.Columns); err != nil {
		return err
	}
	if err := t.Apply(d.Coerce); err != nil {
		return err
	}
	if d.LabelWidth > 0 {
		if err := t.Wrap(d.Category, d.LabelWidth); err != nil {
			return err
		}
	}
	return nil
}
