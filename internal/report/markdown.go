package report

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/boardtrack/boardtrack/internal/logging"
	"github.com/boardtrack/boardtrack/pkg/models"
)

// escapeMarkdown makes a value safe inside a markdown table cell.
func escapeMarkdown(text string) string {
	return strings.ReplaceAll(strings.ReplaceAll(text, "|", `\|`), "\n", " ")
}

// WriteMarkdown writes records as a markdown status report with a status
// summary, a condensed table, and a detail section per record.
func WriteMarkdown(records []models.ReportRecord, outputFile string) error {
	var b strings.Builder

	b.WriteString("# Project Board Status Report\n\n")
	fmt.Fprintf(&b, "Generated on: %s\n\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Total Items: %d\n\n", len(records))

	// Summary by status
	statusCounts := make(map[string]int)
	for _, record := range records {
		statusCounts[record.Status]++
	}
	statuses := make([]string, 0, len(statusCounts))
	for status := range statusCounts {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)

	b.WriteString("## Status Summary\n\n")
	for _, status := range statuses {
		fmt.Fprintf(&b, "- %s: %d\n", status, statusCounts[status])
	}
	b.WriteString("\n")

	// Condensed table
	b.WriteString("## Detailed Item List\n\n")
	b.WriteString("| ReqID | Title | Source | Status | Priority | Created | Updated |\n")
	b.WriteString("|-------|-------|--------|--------|----------|---------|----------|\n")
	for _, record := range records {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
			escapeMarkdown(record.ReqID),
			escapeMarkdown(record.Title),
			escapeMarkdown(record.Source),
			escapeMarkdown(record.Status),
			escapeMarkdown(record.Priority),
			record.CreatedDate,
			record.UpdateDate)
	}

	// Detail sections
	b.WriteString("\n## Detailed Item Information\n\n")
	for _, record := range records {
		fmt.Fprintf(&b, "### %s - %s\n\n", record.ReqID, record.Title)
		fmt.Fprintf(&b, "**Source:** %s\n\n", record.Source)
		fmt.Fprintf(&b, "**URL:** %s\n\n", record.IssueURL)
		fmt.Fprintf(&b, "**Status:** %s\n\n", record.Status)
		fmt.Fprintf(&b, "**Priority:** %s\n\n", record.Priority)

		if record.BusinessNeed != "N/A" {
			fmt.Fprintf(&b, "**Business Need:** %s\n\n", record.BusinessNeed)
		}
		if record.AcceptanceCriteria != "N/A" {
			fmt.Fprintf(&b, "**Acceptance Criteria:** %s\n\n", record.AcceptanceCriteria)
		}
		if record.PRURL != "N/A" {
			fmt.Fprintf(&b, "**Pull Request:** %s\n\n", record.PRURL)
		}
		if record.CommitSHA != "N/A" {
			fmt.Fprintf(&b, "**Commit SHA:** %s\n\n", record.CommitSHA)
		}

		b.WriteString("---\n\n")
	}

	if err := os.WriteFile(outputFile, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write markdown output %s: %w", outputFile, err)
	}

	logging.Info("exported report",
		"format", "markdown",
		"records", len(records),
		"output", outputFile)
	return nil
}
