// Package fields maps raw project board field names onto the report's
// canonical column vocabulary and provides the heuristics used to fill
// columns from issue bodies and labels.
package fields

import (
	"regexp"
	"strings"
)

// aliases maps known raw field names to canonical column keys. Matching
// against this table is exact and case-sensitive; it exists for names
// that normalization alone cannot resolve (e.g. "Owner").
var aliases = map[string]string{
	"Owner":          "Risk_Owner",
	"Risk Owner":     "Risk_Owner",
	"Req ID":         "ReqID",
	"Requirement ID": "ReqID",
	"URL":            "Issue_URL",
	"Release":        "Release_Version",
	"Milestone":      "Release_Version",
	"Changelog":      "Change_Log",
	"Design Docs":    "Design_Artifact_URLs",
}

// canonicalColumns lists the columns a project board field may resolve to.
// Chosen to be pairwise non-colliding after normalization.
var canonicalColumns = []string{
	"ReqID", "Title", "Status", "Priority", "Business_Need",
	"Acceptance_Criteria", "Design_Artifact_URLs", "Test_Case_ID",
	"Test_Evidence_URL", "PR_URL", "Commit_SHA", "Risk_Owner",
	"Approval_Product", "Approval_QA_Lead", "Approval_Sponsor",
	"Release_Version", "Change_Log", "Issue_URL",
}

var separatorRun = regexp.MustCompile(`[\s_\-]+`)

// normalizeName lower-cases a field name and collapses whitespace,
// underscores and hyphens to a single separator so that "Business Need",
// "business_need" and "Business-Need" all compare equal.
func normalizeName(name string) string {
	return strings.TrimSpace(separatorRun.ReplaceAllString(strings.ToLower(name), " "))
}

// Normalize maps a raw custom field name to a canonical column key.
// It tries an exact alias match first, then compares normalized forms.
// The second return value is false when no canonical column applies.
func Normalize(raw string) (string, bool) {
	if canonical, ok := aliases[raw]; ok {
		return canonical, true
	}

	normalized := normalizeName(raw)
	if normalized == "" {
		return "", false
	}

	for _, column := range canonicalColumns {
		if normalizeName(column) == normalized {
			return column, true
		}
	}

	for alias, canonical := range aliases {
		if normalizeName(alias) == normalized {
			return canonical, true
		}
	}

	return "", false
}
