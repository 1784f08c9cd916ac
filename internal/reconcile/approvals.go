// Package reconcile turns raw project board items into normalized report
// records. It links pull request approvals to the issues they close and
// resolves every report field through an ordered fallback chain.
package reconcile

import (
	"github.com/boardtrack/boardtrack/internal/logging"
	"github.com/boardtrack/boardtrack/pkg/models"
)

// approvedState is the review state that makes a reviewer an approver.
const approvedState = "APPROVED"

// Approvers reduces a review list to the reviewers whose most recent
// review is an approval. Only the chronologically last review per
// reviewer counts; when two reviews share a timestamp, the one later in
// the list wins. Reviewers appear in first-review order.
func Approvers(reviews []models.Review) []string {
	latest := make(map[string]models.Review)
	var order []string

	for _, review := range reviews {
		if review.Reviewer == "" {
			continue
		}
		prev, seen := latest[review.Reviewer]
		if !seen {
			order = append(order, review.Reviewer)
			latest[review.Reviewer] = review
			continue
		}
		// Equal timestamps fall through to the later list entry
		if !review.SubmittedAt.Before(prev.SubmittedAt) {
			latest[review.Reviewer] = review
		}
	}

	var approvers []string
	for _, reviewer := range order {
		if latest[reviewer].State == approvedState {
			approvers = append(approvers, reviewer)
		}
	}

	return approvers
}

// BuildApprovalMap consumes pull request items and produces a mapping
// from issue number to the merged approver list of every pull request
// that closes it. Approvers are deduplicated across pull requests in
// first-seen order. Issues no pull request references get no entry.
func BuildApprovalMap(prs []models.ProjectItem) map[int][]string {
	approvals := make(map[int][]string)
	seen := make(map[int]map[string]bool)

	for _, pr := range prs {
		approvers := Approvers(pr.Reviews)
		if len(approvers) == 0 || len(pr.ClosingIssues) == 0 {
			continue
		}

		for _, issue := range pr.ClosingIssues {
			if seen[issue] == nil {
				seen[issue] = make(map[string]bool)
			}
			for _, approver := range approvers {
				if seen[issue][approver] {
					continue
				}
				seen[issue][approver] = true
				approvals[issue] = append(approvals[issue], approver)
			}
		}

		logging.Debug("mapped pull request approvals",
			"pr", pr.Number,
			"closing_issues", pr.ClosingIssues,
			"approvers", approvers)
	}

	return approvals
}
