package reconcile

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/boardtrack/boardtrack/internal/extract"
	"github.com/boardtrack/boardtrack/internal/fields"
	"github.com/boardtrack/boardtrack/internal/logging"
	"github.com/boardtrack/boardtrack/pkg/models"
)

// Missing is the placeholder rendered for any field no resolution tier
// could fill. Output fields are never empty or absent.
const Missing = "N/A"

// FieldExtractor is the AI extraction seam. The concrete implementation
// lives in internal/extract; tests substitute a stub.
type FieldExtractor interface {
	Extract(ctx context.Context, item models.ProjectItem) (map[string]string, error)
}

// Options controls reconciliation behavior.
type Options struct {
	// IncludePullRequests keeps pull request items in the output
	IncludePullRequests bool

	// AIExtraction enables the AI fallback tier for unresolved fields
	AIExtraction bool

	// Filter drops items from the output when it returns false. The
	// approval harvest still sees every pull request, so approvals on
	// filtered-out PRs reach the issues they close. nil keeps everything.
	Filter func(item models.ProjectItem) bool
}

// Reconciler runs the two-pass pipeline over one batch of project items.
type Reconciler struct {
	extractor FieldExtractor
	options   Options
}

// New creates a reconciler. extractor may be nil when AI extraction is
// disabled.
func New(extractor FieldExtractor, options Options) *Reconciler {
	return &Reconciler{
		extractor: extractor,
		options:   options,
	}
}

// Result is the outcome of one reconciliation run.
type Result struct {
	// Records holds the normalized report rows in input order
	Records []models.ReportRecord

	// Degraded counts items whose AI extraction failed and whose
	// affected fields fell back to the missing placeholder
	Degraded int
}

// resolvableColumns are the report columns filled through the fallback
// chain. Title, Source, Issue_URL and the two date columns always come
// straight from the item.
var resolvableColumns = []string{
	"ReqID", "Business_Need", "Acceptance_Criteria", "Design_Artifact_URLs",
	"Test_Case_ID", "Test_Evidence_URL", "PR_URL", "Commit_SHA", "Status",
	"Priority", "Risk_Owner", "Approval_Product", "Approval_QA_Lead",
	"Approval_Sponsor", "Release_Version", "Change_Log",
}

// Reconcile processes items in two passes: the first harvests pull
// request approvals into an issue-keyed map, the second resolves every
// field of every item and emits records in the original input order.
// Pull requests are dropped unless Options.IncludePullRequests is set.
// A single item's extraction failure degrades that item's fields and
// never aborts the batch.
func (r *Reconciler) Reconcile(ctx context.Context, items []models.ProjectItem) Result {
	// Pass 1: harvest approvals from pull requests
	var prs []models.ProjectItem
	for _, item := range items {
		if item.Kind == models.KindPullRequest {
			prs = append(prs, item)
		}
	}
	approvalMap := BuildApprovalMap(prs)

	logging.Debug("approval harvesting complete",
		"pull_requests", len(prs),
		"issues_with_approvals", len(approvalMap))

	// Pass 2: resolve fields and build records
	result := Result{}
	for _, item := range items {
		if item.Kind == models.KindPullRequest && !r.options.IncludePullRequests {
			continue
		}
		if r.options.Filter != nil && !r.options.Filter(item) {
			continue
		}

		resolved, degraded := r.resolveFields(ctx, item)
		if degraded {
			result.Degraded++
		}

		r.applyApprovals(item, approvalMap, resolved)
		result.Records = append(result.Records, buildRecord(item, resolved))
	}

	return result
}

// resolver is one tier of the fallback chain: given an item and a
// target column it either produces a value or reports absence.
type resolver func(item models.ProjectItem, column string) (string, bool)

// chain is the ordered resolution tiers applied before the AI fallback.
var chain = []resolver{
	resolveProjectField,
	resolveBodySection,
	resolveLabelPriority,
	resolveAssigneeOwner,
	resolveItemDefault,
}

// resolveFields runs every resolvable column through the chain, then
// the AI tier for anything still unresolved, then the missing
// placeholder. The returned bool reports whether extraction failed for
// this item.
func (r *Reconciler) resolveFields(ctx context.Context, item models.ProjectItem) (map[string]string, bool) {
	resolved := make(map[string]string, len(resolvableColumns))

	for _, column := range resolvableColumns {
		for _, tier := range chain {
			if value, ok := tier(item, column); ok {
				resolved[column] = value
				break
			}
		}
	}

	degraded := false
	// Drafts carry no repository or number, so they have no stable cache
	// key and no comments to fetch; extraction is skipped for them.
	if r.options.AIExtraction && r.extractor != nil && item.Kind != models.KindDraft && r.needsExtraction(resolved) {
		extracted, err := r.extractor.Extract(ctx, item)
		if err != nil {
			logging.Warn("field extraction failed, degrading to placeholders",
				"item", item.CacheKey(),
				"error", err)
			degraded = true
		}
		mergeExtracted(resolved, extracted)
	}

	for _, column := range resolvableColumns {
		if resolved[column] == "" {
			resolved[column] = Missing
		}
	}

	return resolved, degraded
}

// needsExtraction reports whether any AI-covered column is still
// unresolved, so cached extractions are not fetched pointlessly.
func (r *Reconciler) needsExtraction(resolved map[string]string) bool {
	for _, column := range extract.FieldColumns {
		if resolved[column] == "" {
			return true
		}
	}
	return false
}

// mergeExtracted fills unresolved columns from the extraction mapping
// without overwriting values earlier tiers resolved. Placeholder values
// from the backend are skipped; they carry no information.
func mergeExtracted(resolved map[string]string, extracted map[string]string) {
	for field, value := range extracted {
		column, ok := extract.FieldColumns[field]
		if !ok {
			continue
		}
		if value == "" || value == extract.NotFound {
			continue
		}
		if resolved[column] == "" {
			resolved[column] = value
		}
	}
}

// applyApprovals overwrites the approval columns from pass 1 data.
// For issues and discussions, pull-request-sourced approvers take
// precedence over board fields; for pull requests the columns reflect
// the item's own reviewers. The upstream approval signal does not
// distinguish roles, so all three columns carry the same list.
func (r *Reconciler) applyApprovals(item models.ProjectItem, approvalMap map[int][]string, resolved map[string]string) {
	var approvers []string
	switch item.Kind {
	case models.KindPullRequest:
		approvers = Approvers(item.Reviews)
	case models.KindIssue, models.KindDiscussion:
		approvers = approvalMap[item.Number]
	}

	if len(approvers) == 0 {
		return
	}

	joined := strings.Join(approvers, ", ")
	resolved["Approval_Product"] = joined
	resolved["Approval_QA_Lead"] = joined
	resolved["Approval_Sponsor"] = joined
}

// resolveProjectField matches the item's raw board fields against the
// target column via the field normalizer. Empty values do not count.
// Raw names are visited in sorted order so that two board fields
// resolving to the same column pick the same winner on every run.
func resolveProjectField(item models.ProjectItem, column string) (string, bool) {
	names := make([]string, 0, len(item.ProjectFields))
	for raw := range item.ProjectFields {
		names = append(names, raw)
	}
	sort.Strings(names)

	for _, raw := range names {
		value := item.ProjectFields[raw]
		if strings.TrimSpace(value) == "" {
			continue
		}
		if canonical, ok := fields.Normalize(raw); ok && canonical == column {
			return value, true
		}
	}
	return "", false
}

// bodySections maps columns to the body section heading they are
// extracted from.
var bodySections = map[string]string{
	"Business_Need":       "Business Need",
	"Acceptance_Criteria": "Acceptance Criteria",
}

// resolveBodySection extracts labeled sections from the item body.
func resolveBodySection(item models.ProjectItem, column string) (string, bool) {
	section, ok := bodySections[column]
	if !ok {
		return "", false
	}
	if value := fields.ExtractSection(item.Body, section); value != "" {
		return value, true
	}
	return "", false
}

// resolveLabelPriority derives Priority from issue labels.
func resolveLabelPriority(item models.ProjectItem, column string) (string, bool) {
	if column != "Priority" {
		return "", false
	}
	if value := fields.PriorityFromLabels(item.Labels); value != "" {
		return value, true
	}
	return "", false
}

// resolveAssigneeOwner falls back to the first assignee for the owner
// column.
func resolveAssigneeOwner(item models.ProjectItem, column string) (string, bool) {
	if column != "Risk_Owner" || len(item.Assignees) == 0 {
		return "", false
	}
	return item.Assignees[0], true
}

// resolveItemDefault fills columns that have a natural default on the
// item itself: the number as ReqID, the API state as Status, and the
// pull request's own URL and head commit.
func resolveItemDefault(item models.ProjectItem, column string) (string, bool) {
	switch column {
	case "ReqID":
		if item.Number > 0 {
			return strconv.Itoa(item.Number), true
		}
	case "Status":
		if item.State != "" {
			return item.State, true
		}
	case "PR_URL":
		if item.Kind == models.KindPullRequest && item.URL != "" {
			return item.URL, true
		}
	case "Commit_SHA":
		if item.Kind == models.KindPullRequest && item.CommitSHA != "" {
			return item.CommitSHA, true
		}
	}
	return "", false
}

// sourceName maps an item kind to the report's Source column value.
func sourceName(kind models.ItemKind) string {
	switch kind {
	case models.KindPullRequest:
		return "Pull Request"
	case models.KindDiscussion:
		return "Discussion"
	case models.KindDraft:
		return "Draft"
	default:
		return "Issue"
	}
}

// formatDate renders a timestamp as a date-only string.
func formatDate(t time.Time) string {
	if t.IsZero() {
		return Missing
	}
	return t.Format("2006-01-02")
}

// orMissing substitutes the placeholder for empty values.
func orMissing(value string) string {
	if strings.TrimSpace(value) == "" {
		return Missing
	}
	return value
}

// buildRecord assembles the final normalized row.
func buildRecord(item models.ProjectItem, resolved map[string]string) models.ReportRecord {
	return models.ReportRecord{
		ReqID:              orMissing(resolved["ReqID"]),
		Title:              orMissing(item.Title),
		Source:             sourceName(item.Kind),
		IssueURL:           orMissing(item.URL),
		BusinessNeed:       orMissing(resolved["Business_Need"]),
		AcceptanceCriteria: orMissing(resolved["Acceptance_Criteria"]),
		DesignArtifactURLs: orMissing(resolved["Design_Artifact_URLs"]),
		TestCaseID:         orMissing(resolved["Test_Case_ID"]),
		TestEvidenceURL:    orMissing(resolved["Test_Evidence_URL"]),
		PRURL:              orMissing(resolved["PR_URL"]),
		CommitSHA:          orMissing(resolved["Commit_SHA"]),
		Status:             orMissing(resolved["Status"]),
		Priority:           orMissing(resolved["Priority"]),
		RiskOwner:          orMissing(resolved["Risk_Owner"]),
		ApprovalProduct:    orMissing(resolved["Approval_Product"]),
		ApprovalQALead:     orMissing(resolved["Approval_QA_Lead"]),
		ApprovalSponsor:    orMissing(resolved["Approval_Sponsor"]),
		ReleaseVersion:     orMissing(resolved["Release_Version"]),
		CreatedDate:        formatDate(item.CreatedAt),
		UpdateDate:         formatDate(item.UpdatedAt),
		ChangeLog:          orMissing(resolved["Change_Log"]),
	}
}
