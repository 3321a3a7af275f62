package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	tasksSheet   = "SEO Tasks"
	summarySheet = "Summary"
)

var (
	taskHeaders = []any{"#", "Task", "Category", "Priority", "Effort (hrs)", "Impact", "How to Fix", "Status"}

	columnWidths = []struct {
		col   string
		width float64
	}{
		{"A", 5}, {"B", 45}, {"C", 15}, {"D", 10}, {"E", 12}, {"F", 10}, {"G", 35}, {"H", 12},
	}

	priorityFills = map[string]string{
		PriorityCritical: "FEE2E2",
		PriorityHigh:     "FED7AA",
		PriorityMedium:   "FEF3C7",
		PriorityLow:      "D1FAE5",
	}
)

// RenderXlsx builds the task list workbook. Without a template it lays out a
// styled task sheet plus a summary sheet. With a template, placeholders are
// replaced in every string cell and tasks are written from the {{tasks}} row,
// or appended to the first sheet when no such row exists.
func RenderXlsx(template []byte, values map[string]string, tasks []Task, summary Summary) ([]byte, error) {
	var (
		f   *excelize.File
		err error
	)
	if len(template) == 0 {
		f, err = defaultWorkbook(values, tasks, summary)
	} else {
		f, err = fillWorkbook(template, values, tasks)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("report: write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func defaultWorkbook(values map[string]string, tasks []Task, summary Summary) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), tasksSheet); err != nil {
		return nil, fmt.Errorf("report: rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"3B82F6"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF", Size: 11},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}
	if err = f.SetSheetRow(tasksSheet, "A1", &taskHeaders); err != nil {
		return nil, err
	}
	if err = f.SetCellStyle(tasksSheet, "A1", "H1", headerStyle); err != nil {
		return nil, err
	}
	if err = writeTaskRows(f, tasksSheet, 2, tasks, true); err != nil {
		return nil, err
	}
	for _, cw := range columnWidths {
		if err = f.SetColWidth(tasksSheet, cw.col, cw.col, cw.width); err != nil {
			return nil, err
		}
	}

	if _, err = f.NewSheet(summarySheet); err != nil {
		return nil, err
	}
	rows := [][]any{
		{"Site", values["site.name"]},
		{"Date", values["audit.date"]},
		{"Audit Type", values["audit.type"]},
		{"Model", values["audit.model"]},
		{"Verdict", summary.Verdict},
		{"Score", summary.Score},
		{"Critical", summary.Critical},
		{"High", summary.High},
		{"Medium", summary.Medium},
		{"Low", summary.Low},
		{"Total Tasks", summary.Total},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err = f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, err
		}
	}
	if err = f.SetColWidth(summarySheet, "A", "A", 14); err != nil {
		return nil, err
	}
	if err = f.SetColWidth(summarySheet, "B", "B", 40); err != nil {
		return nil, err
	}
	return f, nil
}

func fillWorkbook(template []byte, values map[string]string, tasks []Task) (*excelize.File, error) {
	f, err := excelize.OpenReader(bytes.NewReader(template))
	if err != nil {
		return nil, fmt.Errorf("report: open xlsx template: %w", err)
	}

	markerSheet, markerRow := "", 0
	for _, sheet := range f.GetSheetList() {
		rows, errRows := f.GetRows(sheet)
		if errRows != nil {
			_ = f.Close()
			return nil, errRows
		}
		for r, row := range rows {
			for c, value := range row {
				if !strings.Contains(value, "{{") {
					continue
				}
				cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
				if markerRow == 0 && HasPlaceholder(value, TasksKey) {
					markerSheet, markerRow = sheet, r+1
					if errSet := f.SetCellValue(sheet, cell, ""); errSet != nil {
						_ = f.Close()
						return nil, errSet
					}
					continue
				}
				if errSet := f.SetCellValue(sheet, cell, Substitute(value, values)); errSet != nil {
					_ = f.Close()
					return nil, errSet
				}
			}
		}
	}

	if markerRow == 0 {
		markerSheet = f.GetSheetName(0)
		rows, errRows := f.GetRows(markerSheet)
		if errRows != nil {
			_ = f.Close()
			return nil, errRows
		}
		markerRow = len(rows) + 1
	} else if len(tasks) > 1 {
		if err = f.InsertRows(markerSheet, markerRow+1, len(tasks)-1); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	if err = writeTaskRows(f, markerSheet, markerRow, tasks, false); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

// writeTaskRows writes tasks from startRow on. fill colours each row by priority.
func writeTaskRows(f *excelize.File, sheet string, startRow int, tasks []Task, fill bool) error {
	styles := make(map[string]int, len(priorityFills))
	for i, t := range tasks {
		row := startRow + i
		cell, _ := excelize.CoordinatesToCellName(1, row)
		values := []any{t.Number, t.Task, t.Category, t.Priority, t.Effort, t.Impact, t.HowToFix, t.Status}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
		if !fill {
			continue
		}
		color, ok := priorityFills[t.Priority]
		if !ok {
			continue
		}
		style, ok := styles[t.Priority]
		if !ok {
			var err error
			style, err = f.NewStyle(&excelize.Style{
				Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
				Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
			})
			if err != nil {
				return err
			}
			styles[t.Priority] = style
		}
		last, _ := excelize.CoordinatesToCellName(len(values), row)
		if err := f.SetCellStyle(sheet, cell, last, style); err != nil {
			return err
		}
	}
	return nil
}
