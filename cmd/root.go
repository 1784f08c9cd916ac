// Package cmd provides the command-line interface for the boardtrack tool.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "boardtrack",
	Short: "Boardtrack exports GitHub project board status reports",
	Long: `Boardtrack exports the full item list of a GitHub project board and
generates stakeholder-facing status reports in CSV, Markdown, or Excel format.

Reports link pull request approvals to the issues they close and can optionally
fill missing requirement fields using AI extraction over issue content.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add persistent flags that will be available to all commands
	rootCmd.PersistentFlags().StringP("owner", "o", "", "Project owner (organization or user)")
	rootCmd.PersistentFlags().StringP("repo", "r", "", "Repository name (optional, restricts org-level boards to one repository)")

	// Add the export command
	rootCmd.AddCommand(exportCmd)
}
