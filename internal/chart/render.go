package chart

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"f1report/internal/domain/report"
	"f1report/internal/table"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// sheetRef addresses the data block written at A1 of a report sheet.
type sheetRef struct {
	name    string
	columns []string
	rows    int
}

func (s *sheetRef) colName(column string) (string, int, error) {
	for i, c := range s.columns {
		if strings.EqualFold(c, column) {
			name, err := excelize.ColumnNumberToName(i + 1)
			return name, i + 1, err
		}
	}
	return "", 0, fmt.Errorf("column %q not found", column)
}

// rangeOf returns an absolute reference to rows [from, to] of a column.
func (s *sheetRef) rangeOf(column string, from, to int) (string, error) {
	col, _, err := s.colName(column)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("'%s'!$%s$%d:$%s$%d", s.name, col, from, col, to), nil
}

func (s *sheetRef) dataRange(column string) (string, error) {
	return s.rangeOf(column, 2, s.rows+1)
}

// cell returns an absolute reference to a single cell of a column.
func (s *sheetRef) cell(column string, row int) (string, error) {
	col, _, err := s.colName(column)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("'%s'!$%s$%d", s.name, col, row), nil
}

func (s *sheetRef) header(column string) (string, error) {
	return s.cell(column, 1)
}

// anchor is the top-left cell for a chart placed right of the data.
func (s *sheetRef) anchor(extraCols int) string {
	cell, _ := excelize.CoordinatesToCellName(len(s.columns)+extraCols+2, 2)
	return cell
}

func title(text string) []excelize.RichTextRun {
	if text == "" {
		return nil
	}
	return []excelize.RichTextRun{{Text: text}}
}

func boolPtr(b bool) *bool { return &b }

func solid(color string) excelize.Fill {
	return excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1}
}

// addChart places a chart of the common size. Colors vary by point only
// when the chart asks for it.
func (w *Workbook) addChart(sheet, cell string, c *excelize.Chart) error {
	c.Dimension = excelize.ChartDimension{Width: chartWidth, Height: chartHeight}
	if c.VaryColors == nil {
		c.VaryColors = boolPtr(false)
	}
	return w.f.AddChart(sheet, cell, c)
}

func (w *Workbook) renderPie(s *sheetRef, def report.Definition) error {
	cats, err := s.dataRange(def.Category)
	if err != nil {
		return err
	}
	vals, err := s.dataRange(def.Value)
	if err != nil {
		return err
	}
	name, err := s.header(def.Value)
	if err != nil {
		return err
	}

	c := &excelize.Chart{
		Type:       excelize.Pie,
		Series:     []excelize.ChartSeries{{Name: name, Categories: cats, Values: vals}},
		Title:      title(def.Title),
		VaryColors: boolPtr(true),
		Legend:     excelize.ChartLegend{Position: "right"},
		PlotArea:   excelize.ChartPlotArea{ShowPercent: true},
	}
	if def.Chart == report.ChartDonut {
		c.Type = excelize.Doughnut
		c.HoleSize = 70
	}
	return w.addChart(s.name, s.anchor(0), c)
}

func (w *Workbook) renderBar(s *sheetRef, def report.Definition) error {
	cats, err := s.dataRange(def.Category)
	if err != nil {
		return err
	}
	vals, err := s.dataRange(def.Value)
	if err != nil {
		return err
	}
	name, err := s.header(def.Value)
	if err != nil {
		return err
	}

	return w.addChart(s.name, s.anchor(0), &excelize.Chart{
		Type: excelize.Bar,
		Series: []excelize.ChartSeries{{
			Name: name, Categories: cats, Values: vals, Fill: solid(Palette(1)[0]),
		}},
		Title:  title(def.Title),
		Legend: excelize.ChartLegend{Position: "none"},
		XAxis:  excelize.ChartAxis{ReverseOrder: true, Title: title(def.XLabel)},
		YAxis:  excelize.ChartAxis{Title: title(def.YLabel)},
	})
}

// renderStem draws markers without connecting lines.
func (w *Workbook) renderStem(s *sheetRef, def report.Definition) error {
	cats, err := s.dataRange(def.Category)
	if err != nil {
		return err
	}
	vals, err := s.dataRange(def.Value)
	if err != nil {
		return err
	}
	name, err := s.header(def.Value)
	if err != nil {
		return err
	}

	color := Palette(3)[1]
	return w.addChart(s.name, s.anchor(0), &excelize.Chart{
		Type: excelize.Line,
		Series: []excelize.ChartSeries{{
			Name:       name,
			Categories: cats,
			Values:     vals,
			Line:       excelize.ChartLine{Type: excelize.ChartLineNone},
			Marker:     excelize.ChartMarker{Symbol: "circle", Size: 8, Fill: solid(color)},
		}},
		Title:  title(def.Title),
		Legend: excelize.ChartLegend{Position: "none"},
		XAxis:  excelize.ChartAxis{Title: title(def.XLabel)},
		YAxis:  excelize.ChartAxis{Title: title(def.YLabel)},
	})
}

// renderScatter adds one series per group; rows must already be grouped.
func (w *Workbook) renderScatter(s *sheetRef, def report.Definition, columns []string, rows [][]any) error {
	type span struct {
		key, label string
		from, to   int
	}
	var spans []span
	if def.Group == "" {
		name, err := s.header(def.Y)
		if err != nil {
			return err
		}
		spans = []span{{label: name, from: 2, to: len(rows) + 1}}
	} else {
		idx := -1
		for i, c := range columns {
			if strings.EqualFold(c, def.Group) {
				idx = i
			}
		}
		if idx < 0 {
			return fmt.Errorf("column %q not found", def.Group)
		}
		for i, row := range rows {
			key := fmt.Sprint(row[idx])
			if len(spans) > 0 && spans[len(spans)-1].key == key {
				spans[len(spans)-1].to = i + 2
				continue
			}
			// series names are cell references, so point at the group cell
			label, err := s.cell(def.Group, i+2)
			if err != nil {
				return err
			}
			spans = append(spans, span{key: key, label: label, from: i + 2, to: i + 2})
		}
	}

	colors := Palette(len(spans))
	series := make([]excelize.ChartSeries, 0, len(spans))
	for i, sp := range spans {
		xs, err := s.rangeOf(def.X, sp.from, sp.to)
		if err != nil {
			return err
		}
		ys, err := s.rangeOf(def.Y, sp.from, sp.to)
		if err != nil {
			return err
		}
		series = append(series, excelize.ChartSeries{
			Name:       sp.label,
			Categories: xs,
			Values:     ys,
			Line:       excelize.ChartLine{Type: excelize.ChartLineNone},
			Marker:     excelize.ChartMarker{Symbol: "circle", Size: 9, Fill: solid(colors[i])},
		})
	}

	legend := "right"
	if def.Group == "" {
		legend = "none"
	}
	return w.addChart(s.name, s.anchor(0), &excelize.Chart{
		Type:   excelize.Scatter,
		Series: series,
		Title:  title(def.Title),
		Legend: excelize.ChartLegend{Position: legend},
		XAxis:  excelize.ChartAxis{Title: title(def.XLabel)},
		YAxis:  excelize.ChartAxis{Title: title(def.YLabel)},
	})
}

// renderDistribution draws a five-number summary per category as a stacked
// horizontal bar: an offset bar up to the minimum, then the four quartile
// ranges.
func (w *Workbook) renderDistribution(s *sheetRef, def report.Definition, t *table.Table) error {
	cats, err := t.Strings(def.Category)
	if err != nil {
		return err
	}
	vals, err := t.Floats(def.Value)
	if err != nil {
		return err
	}

	var order []string
	groups := map[string][]float64{}
	for i, c := range cats {
		if _, ok := groups[c]; !ok {
			order = append(order, c)
		}
		groups[c] = append(groups[c], vals[i])
	}

	// summary block sits two columns right of the data
	startCol := len(s.columns) + 2
	headers := []string{def.Category, "MIN", "Q1", "MEDIAN", "Q3", "MAX", "", "BASE", "MIN_Q1", "Q1_MEDIAN", "MEDIAN_Q3", "Q3_MAX"}
	for i, h := range headers {
		if h == "" {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(startCol+i, 1)
		if err := w.f.SetCellValue(s.name, cell, h); err != nil {
			return err
		}
		if w.headerStyle != 0 {
			_ = w.f.SetCellStyle(s.name, cell, cell, w.headerStyle)
		}
	}
	for r, c := range order {
		sum := Summarize(groups[c])
		seg := sum.Segments()
		values := []any{c, sum.Min, sum.Q1, sum.Median, sum.Q3, sum.Max, nil, seg[0], seg[1], seg[2], seg[3], seg[4]}
		for i, v := range values {
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(startCol+i, r+2)
			if err := w.f.SetCellValue(s.name, cell, v); err != nil {
				return err
			}
		}
	}

	ref := func(col, from, to int) string {
		name, _ := excelize.ColumnNumberToName(col)
		if from == to {
			return fmt.Sprintf("'%s'!$%s$%d", s.name, name, from)
		}
		return fmt.Sprintf("'%s'!$%s$%d:$%s$%d", s.name, name, from, name, to)
	}
	last := len(order) + 1
	catRange := ref(startCol, 2, last)

	colors := Palette(4)
	if def.Chart == report.ChartViolin {
		colors = []string{colors[1], colors[2], colors[2], colors[1]}
	}
	series := []excelize.ChartSeries{{
		Name:       ref(startCol+7, 1, 1),
		Categories: catRange,
		Values:     ref(startCol+7, 2, last),
		Fill:       solid("D9D9D9"),
	}}
	for i := 0; i < 4; i++ {
		series = append(series, excelize.ChartSeries{
			Name:       ref(startCol+8+i, 1, 1),
			Categories: catRange,
			Values:     ref(startCol+8+i, 2, last),
			Fill:       solid(colors[i]),
		})
	}

	anchor, _ := excelize.CoordinatesToCellName(startCol+len(headers)+1, 2)
	return w.addChart(s.name, anchor, &excelize.Chart{
		Type:   excelize.BarStacked,
		Series: series,
		Title:  title(def.Title),
		Legend: excelize.ChartLegend{Position: "bottom"},
		XAxis:  excelize.ChartAxis{ReverseOrder: true, Title: title(def.YLabel)},
		YAxis:  excelize.ChartAxis{Title: title(def.XLabel)},
	})
}

// renderTreemap paints squarified tiles as merged, filled cell blocks.
func (w *Workbook) renderTreemap(s *sheetRef, def report.Definition, t *table.Table) error {
	labels, err := t.Strings(def.Category)
	if err != nil {
		return err
	}
	vals, err := t.Floats(def.Value)
	if err != nil {
		return err
	}

	startCol := len(s.columns) + 2
	startRow := 2
	first, _ := excelize.ColumnNumberToName(startCol)
	last, _ := excelize.ColumnNumberToName(startCol + treemapCols - 1)
	if err := w.f.SetColWidth(s.name, first, last, 6); err != nil {
		return err
	}

	titleCell, _ := excelize.CoordinatesToCellName(startCol, 1)
	if err := w.f.SetCellValue(s.name, titleCell, def.Title); err != nil {
		return err
	}
	if w.headerStyle != 0 {
		_ = w.f.SetCellStyle(s.name, titleCell, titleCell, w.headerStyle)
	}

	bounds := Rect{W: treemapCols, H: treemapRows}
	tiles := Squarify(vals, bounds)
	cells := Snap(tiles, bounds, treemapCols, treemapRows)
	if hidden := droppedTiles(tiles, cells); len(hidden) > 0 {
		names := make([]string, len(hidden))
		for i, idx := range hidden {
			names[i] = fmt.Sprintf("%s (%s)", labels[idx], strconv.FormatFloat(vals[idx], 'f', -1, 64))
		}
		w.logger.WithFields(logrus.Fields{
			"report":  def.Name,
			"dropped": names,
		}).Warn("Слишком малые значения не поместились в сетку treemap")

		noteCell, _ := excelize.CoordinatesToCellName(startCol, startRow+treemapRows+1)
		if err := w.f.SetCellValue(s.name, noteCell, "not shown: "+strings.Join(names, ", ")); err != nil {
			return err
		}
	}
	colors := Palette(len(cells))
	for i, gc := range cells {
		tl, _ := excelize.CoordinatesToCellName(startCol+gc.Col0, startRow+gc.Row0)
		br, _ := excelize.CoordinatesToCellName(startCol+gc.Col1-1, startRow+gc.Row1-1)
		if tl != br {
			if err := w.f.MergeCell(s.name, tl, br); err != nil {
				return err
			}
		}

		text := labels[gc.Index] + "\n" + strconv.FormatFloat(vals[gc.Index], 'f', -1, 64)
		if err := w.f.SetCellValue(s.name, tl, text); err != nil {
			return err
		}
		style, err := w.f.NewStyle(&excelize.Style{
			Fill:      solid(colors[i]),
			Font:      &excelize.Font{Color: textColor(colors[i]), Size: 8},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
			Border: []excelize.Border{
				{Type: "left", Color: "FFFFFF", Style: 2},
				{Type: "top", Color: "FFFFFF", Style: 2},
				{Type: "bottom", Color: "FFFFFF", Style: 2},
				{Type: "right", Color: "FFFFFF", Style: 2},
			},
		})
		if err != nil {
			return err
		}
		if err := w.f.SetCellStyle(s.name, tl, br, style); err != nil {
			return err
		}
	}
	return nil
}

// droppedTiles returns the item indices of tiles that Snap left without cells.
func droppedTiles(tiles []Tile, cells []GridCell) []int {
	placed := make(map[int]bool, len(cells))
	for _, c := range cells {
		placed[c.Index] = true
	}
	var out []int
	for _, t := range tiles {
		if !placed[t.Index] {
			out = append(out, t.Index)
		}
	}
	return out
}

// groupRows returns the rows stably sorted so equal group values are adjacent,
// keeping the first-appearance order of groups.
func groupRows(t *table.Table, group string) ([][]any, error) {
	idx, err := t.Index(group)
	if err != nil {
		return nil, err
	}
	rank := map[string]int{}
	for _, row := range t.Rows {
		key := fmt.Sprint(row[idx])
		if _, ok := rank[key]; !ok {
			rank[key] = len(rank)
		}
	}
	rows := append([][]any(nil), t.Rows...)
	sort.SliceStable(rows, func(a, b int) bool {
		return rank[fmt.Sprint(rows[a][idx])] < rank[fmt.Sprint(rows[b][idx])]
	})
	return rows, nil
}
