package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/boardtrack/boardtrack/internal/config"
	"github.com/boardtrack/boardtrack/internal/extract"
	"github.com/boardtrack/boardtrack/internal/github"
	"github.com/boardtrack/boardtrack/internal/logging"
	"github.com/boardtrack/boardtrack/internal/reconcile"
	"github.com/boardtrack/boardtrack/internal/report"
	"github.com/boardtrack/boardtrack/pkg/models"
)

// exportCmd exports one project board into a status report file.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a project board to a status report",
	Long: `Export all items of a GitHub project board to a stakeholder report.

The report links pull request review approvals to the issues those pull
requests close, resolves missing requirement fields from issue bodies and
labels, and optionally falls back to AI extraction for fields no other
source can fill.

Examples:
  # Export to CSV
  boardtrack export --owner myorg --project 1 --format csv --output report.csv

  # Export to Markdown including pull requests
  boardtrack export --owner myorg --project 1 --format markdown --include-pr

  # Export with AI extraction for missing fields
  boardtrack export --owner myorg --project 1 --ai-extract

Environment Variables:
  GITHUB_TOKEN             GitHub personal access token (required)
  AZURE_OPENAI_ENDPOINT    Azure OpenAI endpoint URL (for --ai-extract)
  AZURE_OPENAI_API_KEY     Azure OpenAI API key (for --ai-extract)
  AZURE_OPENAI_DEPLOYMENT  Deployment name (default: gpt-4.1-mini)
  BOARDTRACK_CACHE_DIR     Extraction cache directory (default: .ai_cache)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := cmd.Flags().GetString("owner")
		if err != nil {
			return err
		}
		repo, err := cmd.Flags().GetString("repo")
		if err != nil {
			return err
		}
		project, err := cmd.Flags().GetInt("project")
		if err != nil {
			return err
		}
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			return err
		}
		output, err := cmd.Flags().GetString("output")
		if err != nil {
			return err
		}
		token, err := cmd.Flags().GetString("token")
		if err != nil {
			return err
		}
		state, err := cmd.Flags().GetString("state")
		if err != nil {
			return err
		}
		includePRs, err := cmd.Flags().GetBool("include-pr")
		if err != nil {
			return err
		}
		aiExtract, err := cmd.Flags().GetBool("ai-extract")
		if err != nil {
			return err
		}

		if owner == "" {
			return fmt.Errorf("owner flag is required")
		}
		if project == 0 {
			return fmt.Errorf("project flag is required")
		}
		if !validFormat(format) {
			return fmt.Errorf("invalid format %q, expected csv, markdown or excel", format)
		}
		if !validState(state) {
			return fmt.Errorf("invalid state %q, expected open, closed or all", state)
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		applyFlagOverrides(cmd, cfg, token)

		if err := config.ValidateGitHubConfig(cfg); err != nil {
			return err
		}
		if aiExtract {
			if err := config.ValidateAIConfig(cfg); err != nil {
				return err
			}
		}

		if output == "" {
			output = defaultOutputFile(format)
		}

		logging.Info("starting export",
			"owner", owner,
			"project", project,
			"format", format,
			"include_pr", includePRs,
			"ai_extract", aiExtract)

		githubClient, err := github.NewClient(cfg.GitHub)
		if err != nil {
			return fmt.Errorf("failed to initialize github client: %w", err)
		}

		title, items, err := githubClient.FetchProjectItems(owner, project)
		if err != nil {
			return fmt.Errorf("failed to fetch project items: %w", err)
		}

		items = filterItems(items, repo)

		logging.Info("found project items",
			"project_title", title,
			"item_count", len(items))

		var extractor reconcile.FieldExtractor
		if aiExtract {
			cache, err := extract.NewFileStore(cfg.AI.CacheDir, owner, project)
			if err != nil {
				logging.Warn("extraction cache unavailable, extractions will not persist",
					"error", err)
				extractor = extract.NewExtractor(cfg.AI.Endpoint, cfg.AI.APIKey, cfg.AI.Deployment,
					extract.NewMemoryStore(), githubClient)
			} else {
				extractor = extract.NewExtractor(cfg.AI.Endpoint, cfg.AI.APIKey, cfg.AI.Deployment,
					cache, githubClient)
			}
		}

		// State filtering happens inside the reconciler so that merged
		// pull requests still contribute approvals to the open issues
		// they close before being dropped from the output.
		reconciler := reconcile.New(extractor, reconcile.Options{
			IncludePullRequests: includePRs,
			AIExtraction:        aiExtract,
			Filter: func(item models.ProjectItem) bool {
				return matchesState(item, state)
			},
		})
		result := reconciler.Reconcile(context.Background(), items)

		if result.Degraded > 0 {
			logging.Warn("some items degraded to placeholders after extraction failures",
				"degraded_count", result.Degraded)
		}

		switch format {
		case "csv":
			err = report.WriteCSV(result.Records, output)
		case "markdown":
			err = report.WriteMarkdown(result.Records, output)
		case "excel":
			err = report.WriteExcel(result.Records, output)
		}
		if err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}

		logging.Info("export complete",
			"records", len(result.Records),
			"output", output)

		return nil
	},
}

func init() {
	exportCmd.Flags().IntP("project", "p", 0, "Project board number")
	exportCmd.Flags().StringP("format", "f", "csv", "Output format: csv, markdown or excel")
	exportCmd.Flags().String("output", "", "Output file path (default: project_board_report.<ext>)")
	exportCmd.Flags().String("token", "", "GitHub personal access token (or set GITHUB_TOKEN)")
	exportCmd.Flags().String("state", "all", "Filter items by state: open, closed or all")
	exportCmd.Flags().Bool("include-pr", false, "Include pull requests in the report")
	exportCmd.Flags().Bool("ai-extract", false, "Fill missing fields using AI extraction")
	exportCmd.Flags().String("ai-endpoint", "", "Azure OpenAI endpoint URL (or set AZURE_OPENAI_ENDPOINT)")
	exportCmd.Flags().String("ai-key", "", "Azure OpenAI API key (or set AZURE_OPENAI_API_KEY)")
	exportCmd.Flags().String("ai-deployment", "", "Azure OpenAI deployment name (or set AZURE_OPENAI_DEPLOYMENT)")
	exportCmd.Flags().String("cache-dir", "", "Extraction cache directory (or set BOARDTRACK_CACHE_DIR)")
}

// applyFlagOverrides lets explicit flags win over environment values.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config, token string) {
	if token != "" {
		cfg.GitHub.Token = token
	}
	if v, _ := cmd.Flags().GetString("ai-endpoint"); v != "" {
		cfg.AI.Endpoint = v
	}
	if v, _ := cmd.Flags().GetString("ai-key"); v != "" {
		cfg.AI.APIKey = v
	}
	if v, _ := cmd.Flags().GetString("ai-deployment"); v != "" {
		cfg.AI.Deployment = v
	}
	if v, _ := cmd.Flags().GetString("cache-dir"); v != "" {
		cfg.AI.CacheDir = v
	}
}

// validFormat reports whether format names a supported renderer.
func validFormat(format string) bool {
	switch format {
	case "csv", "markdown", "excel":
		return true
	}
	return false
}

// validState reports whether state names a supported filter.
func validState(state string) bool {
	switch strings.ToLower(state) {
	case "open", "closed", "all":
		return true
	}
	return false
}

// defaultOutputFile derives the default output path for a format.
func defaultOutputFile(format string) string {
	switch format {
	case "markdown":
		return "project_board_report.md"
	case "excel":
		return "project_board_report.xlsx"
	default:
		return "project_board_report.csv"
	}
}

// filterItems restricts items to one repository. Empty repo keeps
// everything; draft items have no repository and always survive.
func filterItems(items []models.ProjectItem, repo string) []models.ProjectItem {
	if repo == "" {
		return items
	}

	var filtered []models.ProjectItem
	for _, item := range items {
		if item.Kind != models.KindDraft && !strings.EqualFold(item.Repository.Name, repo) {
			continue
		}
		filtered = append(filtered, item)
	}
	return filtered
}

// matchesState compares an item's state against the filter. Merged pull
// requests count as closed.
func matchesState(item models.ProjectItem, state string) bool {
	if state == "" || state == "all" || item.Kind == models.KindDraft {
		return true
	}

	itemState := strings.ToLower(item.State)
	switch strings.ToLower(state) {
	case "open":
		return itemState == "open"
	case "closed":
		return itemState == "closed" || itemState == "merged"
	default:
		return true
	}
}
