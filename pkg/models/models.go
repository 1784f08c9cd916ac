// Package models defines data structures shared across the application.
package models

import (
	"fmt"
	"time"
)

// ItemKind identifies the type of a project board item.
type ItemKind string

const (
	// KindIssue is a regular GitHub issue.
	KindIssue ItemKind = "Issue"

	// KindPullRequest is a pull request tracked on the board.
	KindPullRequest ItemKind = "PullRequest"

	// KindDiscussion is a GitHub discussion tracked on the board.
	KindDiscussion ItemKind = "Discussion"

	// KindDraft is a draft issue that exists only on the board.
	KindDraft ItemKind = "Draft"
)

// Repository identifies the repository an item belongs to.
type Repository struct {
	// Owner is the organization or user that owns the repository
	Owner string

	// Name is the repository name without the owner prefix
	Name string
}

// String returns the repository in "owner/name" form.
func (r Repository) String() string {
	return r.Owner + "/" + r.Name
}

// Review is a single pull request review as returned by the API.
type Review struct {
	// Reviewer is the login of the user who submitted the review
	Reviewer string

	// State is the review state (e.g. "APPROVED", "CHANGES_REQUESTED")
	State string

	// SubmittedAt is when the review was submitted
	SubmittedAt time.Time
}

// ProjectItem represents one entry on a GitHub project board as delivered
// by the GraphQL API. It is constructed once per response page and treated
// as immutable for the rest of the run.
type ProjectItem struct {
	// Kind distinguishes issues, pull requests, discussions and drafts
	Kind ItemKind

	// Repository is the repository the item lives in (empty for drafts)
	Repository Repository

	// Number is the issue or pull request number, unique within a repository
	Number int

	// Title is the item's title
	Title string

	// URL is the canonical web URL of the item
	URL string

	// Body is the full markdown body, may be empty
	Body string

	// State is the current state reported by GitHub (e.g. "OPEN", "MERGED")
	State string

	// CreatedAt is when the item was created
	CreatedAt time.Time

	// UpdatedAt is when the item was last updated
	UpdatedAt time.Time

	// Assignees holds assignee logins in board order
	Assignees []string

	// Labels holds label names attached to the item
	Labels []string

	// ProjectFields maps raw custom field names to their values. Keys are
	// not normalized; casing and spacing are whatever the board uses.
	ProjectFields map[string]string

	// ClosingIssues lists issue numbers this pull request closes on merge.
	// Only populated for pull requests.
	ClosingIssues []int

	// Reviews holds the pull request's reviews in submission order.
	// Only populated for pull requests.
	Reviews []Review

	// CommitSHA is the head commit oid for pull requests
	CommitSHA string
}

// CacheKey returns the composite key used by the extraction cache,
// in the form "owner/repo#number".
func (p ProjectItem) CacheKey() string {
	return fmt.Sprintf("%s#%d", p.Repository.String(), p.Number)
}

// ReportColumns is the fixed column order of the stakeholder report.
var ReportColumns = []string{
	"ReqID", "Title", "Source", "Issue_URL", "Business_Need",
	"Acceptance_Criteria", "Design_Artifact_URLs", "Test_Case_ID",
	"Test_Evidence_URL", "PR_URL", "Commit_SHA", "Status", "Priority",
	"Risk_Owner", "Approval_Product", "Approval_QA_Lead",
	"Approval_Sponsor", "Release_Version", "Created_Date",
	"Update_Date", "Change_Log",
}

// ReportRecord is one normalized row of the stakeholder report. Every
// field is populated with either a resolved value or the literal "N/A"
// placeholder; no field is ever left empty in rendered output.
type ReportRecord struct {
	ReqID              string
	Title              string
	Source             string
	IssueURL           string
	BusinessNeed       string
	AcceptanceCriteria string
	DesignArtifactURLs string
	TestCaseID         string
	TestEvidenceURL    string
	PRURL              string
	CommitSHA          string
	Status             string
	Priority           string
	RiskOwner          string
	ApprovalProduct    string
	ApprovalQALead     string
	ApprovalSponsor    string
	ReleaseVersion     string
	CreatedDate        string
	UpdateDate         string
	ChangeLog          string
}

// Values returns the record's fields in ReportColumns order.
func (r ReportRecord) Values() []string {
	return []string{
		r.ReqID, r.Title, r.Source, r.IssueURL, r.BusinessNeed,
		r.AcceptanceCriteria, r.DesignArtifactURLs, r.TestCaseID,
		r.TestEvidenceURL, r.PRURL, r.CommitSHA, r.Status, r.Priority,
		r.RiskOwner, r.ApprovalProduct, r.ApprovalQALead,
		r.ApprovalSponsor, r.ReleaseVersion, r.CreatedDate,
		r.UpdateDate, r.ChangeLog,
	}
}
