package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/boardtrack/boardtrack/internal/logging"
	"github.com/boardtrack/boardtrack/pkg/models"
)

const sheetName = "Project Board Status"

// maxColumnWidth caps auto-sized Excel columns.
const maxColumnWidth = 50

// WriteExcel writes records to an Excel workbook with a styled header
// row and auto-sized columns.
func WriteExcel(records []models.ReportRecord, outputFile string) error {
	wb := excelize.NewFile()
	defer wb.Close()

	index, err := wb.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	wb.SetActiveSheet(index)
	wb.DeleteSheet("Sheet1")

	headerStyle, err := wb.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"366092"}},
		Font: &excelize.Font{Color: "FFFFFF", Bold: true},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	widths := make([]int, len(models.ReportColumns))

	for col, header := range models.ReportColumns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to compute cell name: %w", err)
		}
		if err := wb.SetCellValue(sheetName, cell, header); err != nil {
			return fmt.Errorf("failed to write header cell: %w", err)
		}
		if err := wb.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to style header cell: %w", err)
		}
		widths[col] = len(header)
	}

	for row, record := range records {
		for col, value := range record.Values() {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return fmt.Errorf("failed to compute cell name: %w", err)
			}
			if err := wb.SetCellValue(sheetName, cell, value); err != nil {
				return fmt.Errorf("failed to write cell: %w", err)
			}
			if len(value) > widths[col] {
				widths[col] = len(value)
			}
		}
	}

	for col := range models.ReportColumns {
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return fmt.Errorf("failed to compute column name: %w", err)
		}
		width := widths[col] + 2
		if width > maxColumnWidth {
			width = maxColumnWidth
		}
		if err := wb.SetColWidth(sheetName, name, name, float64(width)); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	if err := wb.SaveAs(outputFile); err != nil {
		return fmt.Errorf("failed to save excel output %s: %w", outputFile, err)
	}

	logging.Info("exported report",
		"format", "excel",
		"records", len(records),
		"output", outputFile)
	return nil
}
