package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/boardtrack/boardtrack/pkg/models"
)

func review(reviewer, state string, at time.Time) models.Review {
	return models.Review{Reviewer: reviewer, State: state, SubmittedAt: at}
}

func TestApprovers(t *testing.T) {
	t1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	testCases := []struct {
		name     string
		reviews  []models.Review
		expected []string
	}{
		{
			name: "Single approval",
			reviews: []models.Review{
				review("alice", "APPROVED", t1),
			},
			expected: []string{"alice"},
		},
		{
			name: "Approval revoked by later changes requested",
			reviews: []models.Review{
				review("alice", "APPROVED", t1),
				review("alice", "CHANGES_REQUESTED", t2),
			},
			expected: nil,
		},
		{
			name: "Changes requested then approved",
			reviews: []models.Review{
				review("alice", "CHANGES_REQUESTED", t1),
				review("alice", "APPROVED", t2),
			},
			expected: []string{"alice"},
		},
		{
			name: "Equal timestamps, later list entry wins",
			reviews: []models.Review{
				review("alice", "APPROVED", t1),
				review("alice", "DISMISSED", t1),
			},
			expected: nil,
		},
		{
			name: "Multiple reviewers keep first-review order",
			reviews: []models.Review{
				review("bob", "APPROVED", t1),
				review("alice", "APPROVED", t2),
				review("bob", "APPROVED", t2),
			},
			expected: []string{"bob", "alice"},
		},
		{
			name: "Commented reviewers excluded",
			reviews: []models.Review{
				review("alice", "COMMENTED", t1),
				review("bob", "APPROVED", t1),
			},
			expected: []string{"bob"},
		},
		{
			name:     "No reviews",
			reviews:  nil,
			expected: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Approvers(tc.reviews))
		})
	}
}

func TestBuildApprovalMap(t *testing.T) {
	t1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	pr := func(number int, closing []int, reviews ...models.Review) models.ProjectItem {
		return models.ProjectItem{
			Kind:          models.KindPullRequest,
			Repository:    models.Repository{Owner: "acme", Name: "api"},
			Number:        number,
			ClosingIssues: closing,
			Reviews:       reviews,
		}
	}

	t.Run("Two PRs merge approvers in first-seen order without duplicates", func(t *testing.T) {
		prs := []models.ProjectItem{
			pr(11, []int{10}, review("alice", "APPROVED", t1), review("bob", "APPROVED", t1)),
			pr(12, []int{10}, review("bob", "APPROVED", t1), review("carol", "APPROVED", t1)),
		}

		approvals := BuildApprovalMap(prs)
		assert.Equal(t, []string{"alice", "bob", "carol"}, approvals[10])
	})

	t.Run("PR with no closing references contributes nothing", func(t *testing.T) {
		prs := []models.ProjectItem{
			pr(11, nil, review("alice", "APPROVED", t1)),
		}

		approvals := BuildApprovalMap(prs)
		assert.Empty(t, approvals)
	})

	t.Run("Unreferenced issues are absent, not empty", func(t *testing.T) {
		prs := []models.ProjectItem{
			pr(11, []int{10}, review("alice", "APPROVED", t1)),
		}

		approvals := BuildApprovalMap(prs)
		_, ok := approvals[99]
		assert.False(t, ok)
	})

	t.Run("One PR closing multiple issues feeds each", func(t *testing.T) {
		prs := []models.ProjectItem{
			pr(11, []int{10, 20}, review("alice", "APPROVED", t1)),
		}

		approvals := BuildApprovalMap(prs)
		assert.Equal(t, []string{"alice"}, approvals[10])
		assert.Equal(t, []string{"alice"}, approvals[20])
	})
}
