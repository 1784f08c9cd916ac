package fields

import (
	"regexp"
	"strings"
)

// sectionHeader matches markdown headers ("# Name", "## Name") and bold
// labels ("**Name**" or "Name:") commonly used to structure issue bodies.
func isSectionHeader(line string) bool {
	return strings.HasPrefix(line, "#") || strings.HasPrefix(line, "**")
}

// ExtractSection pulls the content of a named section out of an issue
// body. A section starts at a header or bold line containing the section
// name and runs until the next header. Inline "Name: value" labels are
// also recognized. Returns "" when the section is absent.
func ExtractSection(body string, sectionName string) string {
	if body == "" {
		return ""
	}

	lowerName := strings.ToLower(sectionName)
	var content []string
	inSection := false

	for _, line := range strings.Split(body, "\n") {
		lowerLine := strings.ToLower(line)
		switch {
		case !inSection && strings.Contains(lowerLine, lowerName) && isSectionHeader(line):
			inSection = true
		case !inSection && strings.HasPrefix(lowerLine, lowerName+":"):
			// Inline label form: "Business Need: reduce latency"
			value := strings.TrimSpace(line[len(sectionName)+1:])
			if value != "" {
				return value
			}
			inSection = true
		case inSection && isSectionHeader(line):
			return strings.TrimSpace(strings.Join(content, "\n"))
		case inSection:
			content = append(content, line)
		}
	}

	return strings.TrimSpace(strings.Join(content, "\n"))
}

var numericPriority = regexp.MustCompile(`(?i)^p[0-9]$`)

// severityWords maps bare severity labels to a priority value.
var severityWords = map[string]string{
	"critical": "Critical",
	"blocker":  "Critical",
	"urgent":   "High",
	"high":     "High",
	"medium":   "Medium",
	"low":      "Low",
}

// PriorityFromLabels derives a priority value from issue labels. Labels
// containing "priority" win, then numeric "p0".."p9" markers, then bare
// severity words. Returns "" when no label carries a priority signal.
func PriorityFromLabels(labels []string) string {
	for _, label := range labels {
		if strings.Contains(strings.ToLower(label), "priority") {
			return label
		}
	}

	for _, label := range labels {
		if numericPriority.MatchString(label) {
			return strings.ToUpper(label)
		}
	}

	for _, label := range labels {
		if priority, ok := severityWords[strings.ToLower(label)]; ok {
			return priority
		}
	}

	return ""
}
