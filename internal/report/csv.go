// Package report renders normalized report records to CSV, Markdown and
// Excel files. The renderers are pure formatting; all business logic
// runs upstream in the reconciler.
package report

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/boardtrack/boardtrack/internal/logging"
	"github.com/boardtrack/boardtrack/pkg/models"
)

// WriteCSV writes records to a CSV file with the fixed column header.
func WriteCSV(records []models.ReportRecord, outputFile string) error {
	f, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", outputFile, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	if err := w.Write(models.ReportColumns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, record := range records {
		if err := w.Write(record.Values()); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush csv output: %w", err)
	}

	logging.Info("exported report",
		"format", "csv",
		"records", len(records),
		"output", outputFile)
	return nil
}
