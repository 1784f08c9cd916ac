package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardtrack/boardtrack/pkg/models"
)

// stubExtractor implements FieldExtractor with a function field,
// matching how client seams are mocked elsewhere in the codebase.
type stubExtractor struct {
	ExtractFunc func(ctx context.Context, item models.ProjectItem) (map[string]string, error)
	calls       int
}

func (s *stubExtractor) Extract(ctx context.Context, item models.ProjectItem) (map[string]string, error) {
	s.calls++
	if s.ExtractFunc != nil {
		return s.ExtractFunc(ctx, item)
	}
	return map[string]string{}, nil
}

func issue(number int, body string) models.ProjectItem {
	return models.ProjectItem{
		Kind:       models.KindIssue,
		Repository: models.Repository{Owner: "acme", Name: "api"},
		Number:     number,
		Title:      "Issue title",
		URL:        "https://github.com/acme/api/issues/42",
		Body:       body,
		State:      "OPEN",
		CreatedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestReconcileEndToEnd(t *testing.T) {
	// One issue resolvable from its body, one PR approving it.
	items := []models.ProjectItem{
		issue(10, "Business Need: reduce latency"),
		{
			Kind:          models.KindPullRequest,
			Repository:    models.Repository{Owner: "acme", Name: "api"},
			Number:        11,
			Title:         "Fix latency",
			URL:           "https://github.com/acme/api/pull/11",
			State:         "MERGED",
			ClosingIssues: []int{10},
			Reviews: []models.Review{
				{Reviewer: "bob", State: "APPROVED", SubmittedAt: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)},
			},
		},
	}

	result := New(nil, Options{}).Reconcile(context.Background(), items)

	require.Len(t, result.Records, 1, "PR must be filtered out by default")
	record := result.Records[0]

	assert.Equal(t, "reduce latency", record.BusinessNeed)
	assert.Equal(t, "bob", record.ApprovalProduct)
	assert.Equal(t, "bob", record.ApprovalQALead)
	assert.Equal(t, "bob", record.ApprovalSponsor)
	assert.NotEqual(t, "Pull Request", record.Source)
}

func TestPRApproversOverrideBoardApprovals(t *testing.T) {
	// Board-sourced approval fields yield to review-sourced approvers.
	item := issue(10, "")
	item.ProjectFields = map[string]string{"Approval_Product": "board-person"}

	items := []models.ProjectItem{
		item,
		{
			Kind:          models.KindPullRequest,
			Number:        11,
			ClosingIssues: []int{10},
			Reviews: []models.Review{
				{Reviewer: "bob", State: "APPROVED"},
			},
		},
	}

	result := New(nil, Options{}).Reconcile(context.Background(), items)

	require.Len(t, result.Records, 1)
	assert.Equal(t, "bob", result.Records[0].ApprovalProduct)
	assert.Equal(t, "bob", result.Records[0].ApprovalQALead)
	assert.Equal(t, "bob", result.Records[0].ApprovalSponsor)
}

func TestBoardApprovalsKeptWithoutPRData(t *testing.T) {
	item := issue(10, "")
	item.ProjectFields = map[string]string{"Approval_Product": "board-person"}

	result := New(nil, Options{}).Reconcile(context.Background(), []models.ProjectItem{item})

	require.Len(t, result.Records, 1)
	assert.Equal(t, "board-person", result.Records[0].ApprovalProduct)
}

func TestReconcileIncludePullRequests(t *testing.T) {
	items := []models.ProjectItem{
		issue(10, ""),
		{
			Kind:       models.KindPullRequest,
			Repository: models.Repository{Owner: "acme", Name: "api"},
			Number:     11,
			Title:      "A fix",
			URL:        "https://github.com/acme/api/pull/11",
			State:      "MERGED",
			CommitSHA:  "abc123",
			Reviews: []models.Review{
				{Reviewer: "carol", State: "APPROVED"},
			},
		},
	}

	result := New(nil, Options{IncludePullRequests: true}).Reconcile(context.Background(), items)

	require.Len(t, result.Records, 2)
	prRecord := result.Records[1]
	assert.Equal(t, "Pull Request", prRecord.Source)
	assert.Equal(t, "https://github.com/acme/api/pull/11", prRecord.PRURL)
	assert.Equal(t, "abc123", prRecord.CommitSHA)

	// The PR's approval columns reflect its own reviewers
	assert.Equal(t, "carol", prRecord.ApprovalProduct)
}

func TestFilteredPRsStillContributeApprovals(t *testing.T) {
	// An output filter keeping only open items must not starve the
	// approval harvest of the merged PRs that close them.
	items := []models.ProjectItem{
		issue(10, ""),
		{
			Kind:          models.KindPullRequest,
			Number:        11,
			State:         "MERGED",
			ClosingIssues: []int{10},
			Reviews: []models.Review{
				{Reviewer: "bob", State: "APPROVED"},
			},
		},
	}

	openOnly := func(item models.ProjectItem) bool {
		return item.State == "OPEN"
	}
	result := New(nil, Options{IncludePullRequests: true, Filter: openOnly}).Reconcile(context.Background(), items)

	require.Len(t, result.Records, 1, "merged PR must be dropped from the output")
	assert.Equal(t, "Issue", result.Records[0].Source)
	assert.Equal(t, "bob", result.Records[0].ApprovalProduct)
}

func TestReconcilePreservesInputOrder(t *testing.T) {
	items := []models.ProjectItem{
		issue(1, ""),
		{Kind: models.KindPullRequest, Number: 2, Title: "pr"},
		issue(3, ""),
	}

	result := New(nil, Options{}).Reconcile(context.Background(), items)

	require.Len(t, result.Records, 2)
	assert.Equal(t, "1", result.Records[0].ReqID)
	assert.Equal(t, "3", result.Records[1].ReqID)
}

func TestProjectFieldBeatsBodySection(t *testing.T) {
	item := issue(10, "Business Need: from the body")
	item.ProjectFields = map[string]string{"Business_Need": "from the board"}

	result := New(nil, Options{}).Reconcile(context.Background(), []models.ProjectItem{item})

	require.Len(t, result.Records, 1)
	assert.Equal(t, "from the board", result.Records[0].BusinessNeed)
}

func TestEmptyProjectFieldFallsThrough(t *testing.T) {
	item := issue(10, "Business Need: from the body")
	item.ProjectFields = map[string]string{"Business_Need": "  "}

	result := New(nil, Options{}).Reconcile(context.Background(), []models.ProjectItem{item})

	require.Len(t, result.Records, 1)
	assert.Equal(t, "from the body", result.Records[0].BusinessNeed)
}

func TestUnresolvedFieldsRenderPlaceholder(t *testing.T) {
	result := New(nil, Options{}).Reconcile(context.Background(), []models.ProjectItem{issue(10, "")})

	require.Len(t, result.Records, 1)
	record := result.Records[0]

	assert.Equal(t, "N/A", record.BusinessNeed)
	assert.Equal(t, "N/A", record.AcceptanceCriteria)
	assert.Equal(t, "N/A", record.TestCaseID)
	assert.Equal(t, "N/A", record.Priority)
	assert.Equal(t, "N/A", record.ReleaseVersion)

	// Every field is populated; none renders as the empty string
	for i, value := range record.Values() {
		assert.NotEmpty(t, value, "column %s must not be empty", models.ReportColumns[i])
	}
}

func TestLabelAndAssigneeTiers(t *testing.T) {
	item := issue(10, "")
	item.Labels = []string{"bug", "p1"}
	item.Assignees = []string{"dana", "erin"}

	result := New(nil, Options{}).Reconcile(context.Background(), []models.ProjectItem{item})

	require.Len(t, result.Records, 1)
	assert.Equal(t, "P1", result.Records[0].Priority)
	assert.Equal(t, "dana", result.Records[0].RiskOwner)
}

func TestOwnerFieldBeatsAssignee(t *testing.T) {
	item := issue(10, "")
	item.Assignees = []string{"dana"}
	item.ProjectFields = map[string]string{"Owner": "frank"}

	result := New(nil, Options{}).Reconcile(context.Background(), []models.ProjectItem{item})

	require.Len(t, result.Records, 1)
	assert.Equal(t, "frank", result.Records[0].RiskOwner)
}

func TestCollidingProjectFieldsResolveDeterministically(t *testing.T) {
	// Both raw names normalize to Risk_Owner; the first in sorted raw
	// name order wins on every run.
	item := issue(10, "")
	item.ProjectFields = map[string]string{
		"Owner":      "frank",
		"Risk Owner": "grace",
	}

	for i := 0; i < 10; i++ {
		result := New(nil, Options{}).Reconcile(context.Background(), []models.ProjectItem{item})
		require.Len(t, result.Records, 1)
		assert.Equal(t, "frank", result.Records[0].RiskOwner)
	}
}

func TestAITierFillsUnresolvedOnly(t *testing.T) {
	extractor := &stubExtractor{
		ExtractFunc: func(ctx context.Context, item models.ProjectItem) (map[string]string, error) {
			return map[string]string{
				"business_need":   "inferred need [AI-Extracted]",
				"release_version": "v2.0 [AI-Extracted]",
				"risk":            "N/A",
			}, nil
		},
	}

	item := issue(10, "Business Need: from the body")
	result := New(extractor, Options{AIExtraction: true}).Reconcile(context.Background(), []models.ProjectItem{item})

	require.Len(t, result.Records, 1)
	record := result.Records[0]

	// Body tier resolved Business_Need first; AI must not overwrite it
	assert.Equal(t, "from the body", record.BusinessNeed)
	assert.Equal(t, "v2.0 [AI-Extracted]", record.ReleaseVersion)

	// Backend placeholders carry no information
	assert.Equal(t, "N/A", record.RiskOwner)
	assert.Equal(t, 0, result.Degraded)
}

func TestAIExtractionFailureDegradesItem(t *testing.T) {
	extractor := &stubExtractor{
		ExtractFunc: func(ctx context.Context, item models.ProjectItem) (map[string]string, error) {
			return map[string]string{}, errors.New("backend timeout")
		},
	}

	items := []models.ProjectItem{issue(10, ""), issue(20, "")}
	result := New(extractor, Options{AIExtraction: true}).Reconcile(context.Background(), items)

	// Both items survive; both degrade
	require.Len(t, result.Records, 2)
	assert.Equal(t, 2, result.Degraded)
	assert.Equal(t, "N/A", result.Records[0].BusinessNeed)
	assert.Equal(t, "N/A", result.Records[1].BusinessNeed)
}

func TestAIExtractionSkippedWhenResolved(t *testing.T) {
	extractor := &stubExtractor{}

	item := issue(10, "")
	item.ProjectFields = map[string]string{
		"Business_Need":        "need",
		"Acceptance_Criteria":  "criteria",
		"Test_Case_ID":         "TC-1",
		"Test_Evidence_URL":    "https://example.com/evidence",
		"Design_Artifact_URLs": "https://example.com/design",
		"Risk_Owner":           "dana",
		"Release_Version":      "v1.0",
		"Change_Log":           "initial",
	}

	result := New(extractor, Options{AIExtraction: true}).Reconcile(context.Background(), []models.ProjectItem{item})

	require.Len(t, result.Records, 1)
	assert.Equal(t, 0, extractor.calls, "fully resolved items must not invoke the extractor")
}

func TestClosingReferenceToMissingIssueIsIgnored(t *testing.T) {
	items := []models.ProjectItem{
		issue(10, ""),
		{
			Kind:          models.KindPullRequest,
			Number:        11,
			ClosingIssues: []int{999},
			Reviews: []models.Review{
				{Reviewer: "bob", State: "APPROVED"},
			},
		},
	}

	result := New(nil, Options{}).Reconcile(context.Background(), items)

	require.Len(t, result.Records, 1)
	assert.Equal(t, "N/A", result.Records[0].ApprovalProduct)
}

func TestDraftItemRecord(t *testing.T) {
	draft := models.ProjectItem{
		Kind:  models.KindDraft,
		Title: "Draft idea",
		State: "Draft",
	}

	result := New(nil, Options{}).Reconcile(context.Background(), []models.ProjectItem{draft})

	require.Len(t, result.Records, 1)
	record := result.Records[0]
	assert.Equal(t, "Draft", record.Source)
	assert.Equal(t, "Draft", record.Status)
	assert.Equal(t, "N/A", record.ReqID)
	assert.Equal(t, "N/A", record.IssueURL)
}

func TestDraftItemsSkipExtraction(t *testing.T) {
	extractor := &stubExtractor{}
	draft := models.ProjectItem{
		Kind:  models.KindDraft,
		Title: "Draft idea",
		Body:  "Business context without structure",
		State: "Draft",
	}

	result := New(extractor, Options{AIExtraction: true}).Reconcile(context.Background(), []models.ProjectItem{draft})

	require.Len(t, result.Records, 1)
	assert.Equal(t, 0, extractor.calls, "drafts have no cache identity and must not be extracted")
	assert.Equal(t, 0, result.Degraded)
}

func TestDateFormatting(t *testing.T) {
	result := New(nil, Options{}).Reconcile(context.Background(), []models.ProjectItem{issue(10, "")})

	require.Len(t, result.Records, 1)
	assert.Equal(t, "2024-01-01", result.Records[0].CreatedDate)
	assert.Equal(t, "2024-01-02", result.Records[0].UpdateDate)
}
