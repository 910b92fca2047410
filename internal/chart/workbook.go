package chart

import (
	"context"
	"fmt"
	"io"
	"strings"

	"f1report/internal/domain/report"
	"f1report/internal/table"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const (
	maxSheetName = 31

	chartWidth  = 720
	chartHeight = 480

	treemapCols = 16
	treemapRows = 30
)

// MimeType is the content type of the rendered workbook.
const MimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Workbook renders one sheet per report into a single XLSX file.
type Workbook struct {
	f           *excelize.File
	logger      *logrus.Logger
	sheets      []string
	headerStyle int
}

// NewWorkbook создает пустую книгу отчётов.
func NewWorkbook(logger *logrus.Logger) *Workbook {
	f := excelize.NewFile()

	// Стиль для заголовков
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 12},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6E6FA"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		logger.WithError(err).Warn("Ошибка создания стиля заголовка")
	}

	return &Workbook{f: f, logger: logger, headerStyle: headerStyle}
}

// Sheets returns the rendered sheet names in order.
func (w *Workbook) Sheets() []string {
	return append([]string(nil), w.sheets...)
}

// File exposes the underlying workbook.
func (w *Workbook) File() *excelize.File { return w.f }

// Render writes the table of one report and its chart to a new sheet.
// An empty table produces a sheet with the header and a note, no chart.
func (w *Workbook) Render(ctx context.Context, def report.Definition, t *table.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sheet, err := w.addSheet(def)
	if err != nil {
		return err
	}

	logger := w.logger.WithFields(logrus.Fields{
		"report": def.Name,
		"sheet":  sheet,
		"chart":  def.Chart,
		"rows":   t.Len(),
	})

	rows := t.Rows
	if def.Chart == report.ChartScatter && def.Group != "" && !t.Empty() {
		// series ranges need each group in consecutive rows
		rows, err = groupRows(t, def.Group)
		if err != nil {
			return err
		}
	}
	if err := w.writeData(sheet, t.Columns, rows); err != nil {
		return err
	}

	if t.Empty() {
		if err := w.f.SetCellValue(sheet, "A2", "no rows returned"); err != nil {
			return err
		}
		logger.Warn("Запрос не вернул строк, диаграмма пропущена")
		return nil
	}

	s := &sheetRef{name: sheet, columns: t.Columns, rows: len(rows)}
	switch def.Chart {
	case report.ChartPie, report.ChartDonut:
		err = w.renderPie(s, def)
	case report.ChartBar:
		err = w.renderBar(s, def)
	case report.ChartStem:
		err = w.renderStem(s, def)
	case report.ChartScatter:
		err = w.renderScatter(s, def, t.Columns, rows)
	case report.ChartBox, report.ChartViolin:
		err = w.renderDistribution(s, def, t)
	case report.ChartTreemap:
		err = w.renderTreemap(s, def, t)
	default:
		err = fmt.Errorf("unsupported chart kind %q", def.Chart)
	}
	if err != nil {
		return fmt.Errorf("render %s chart: %w", def.Chart, err)
	}

	logger.Debug("Диаграмма построена")
	return nil
}

// WriteTo writes the workbook in XLSX format.
func (w *Workbook) WriteTo(out io.Writer) (int64, error) {
	if len(w.sheets) > 0 {
		w.f.SetActiveSheet(0)
	}
	return w.f.WriteTo(out)
}

// Close releases the workbook resources.
func (w *Workbook) Close() error {
	return w.f.Close()
}

func (w *Workbook) addSheet(def report.Definition) (string, error) {
	name := sheetName(len(w.sheets)+1, def.Name)
	if len(w.sheets) == 0 {
		if err := w.f.SetSheetName("Sheet1", name); err != nil {
			return "", fmt.Errorf("rename sheet: %w", err)
		}
	} else if _, err := w.f.NewSheet(name); err != nil {
		return "", fmt.Errorf("create sheet %q: %w", name, err)
	}
	w.sheets = append(w.sheets, name)
	return name, nil
}

func (w *Workbook) writeData(sheet string, columns []string, rows [][]any) error {
	for i, header := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := w.f.SetCellValue(sheet, cell, header); err != nil {
			return err
		}
		if w.headerStyle != 0 {
			if err := w.f.SetCellStyle(sheet, cell, cell, w.headerStyle); err != nil {
				return err
			}
		}
	}

	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := w.f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("write cell %s: %w", cell, err)
			}
		}
	}

	last, err := excelize.ColumnNumberToName(len(columns))
	if err != nil {
		return err
	}
	return w.f.SetColWidth(sheet, "A", last, 24)
}

func sheetName(n int, name string) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']', '\'':
			return '_'
		}
		return r
	}, name)
	full := fmt.Sprintf("%02d_%s", n, clean)
	if len([]rune(full)) > maxSheetName {
		full = string([]rune(full)[:maxSheetName])
	}
	return full
}
