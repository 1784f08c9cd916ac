package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/boardtrack/boardtrack/internal/logging"
	"github.com/boardtrack/boardtrack/pkg/models"
)

const (
	// extractionTemperature keeps the backend deterministic enough for
	// repeatable extractions.
	extractionTemperature = 0.1
	extractionMaxTokens   = 800

	// maxComments bounds how many comments are sent as context.
	maxComments = 10

	requestTimeout = 60 * time.Second
)

// Annotation marks values that were inferred by the extraction backend
// rather than read from the board or the issue body.
const Annotation = " [AI-Extracted]"

// NotFound is the backend's placeholder for fields it could not extract.
const NotFound = "N/A"

// FieldColumns maps backend extraction field names to report columns.
var FieldColumns = map[string]string{
	"business_need":        "Business_Need",
	"acceptance_criteria":  "Acceptance_Criteria",
	"test_case_ids":        "Test_Case_ID",
	"test_evidence_url":    "Test_Evidence_URL",
	"design_artifacts_url": "Design_Artifact_URLs",
	"risk":                 "Risk_Owner",
	"release_version":      "Release_Version",
	"change_log":           "Change_Log",
}

// extractionFields lists the backend field names in prompt order.
var extractionFields = []string{
	"business_need", "acceptance_criteria", "test_case_ids",
	"test_evidence_url", "design_artifacts_url", "risk",
	"release_version", "change_log",
}

// CommentSource supplies recent discussion comments used as extraction
// context. Implementations may hit the network; failures are tolerated.
type CommentSource interface {
	IssueComments(repo models.Repository, number int) ([]string, error)
}

// Extractor calls the Azure OpenAI chat completions endpoint to pull
// structured fields out of item bodies, consulting the cache first.
type Extractor struct {
	endpoint   string
	apiKey     string
	deployment string
	cache      Store
	comments   CommentSource
	client     *http.Client
}

// NewExtractor creates an extractor against the given Azure OpenAI
// endpoint. The endpoint is the full URL including deployment and API
// version. comments may be nil, in which case extraction runs on the
// item body and labels alone.
func NewExtractor(endpoint, apiKey, deployment string, cache Store, comments CommentSource) *Extractor {
	return &Extractor{
		endpoint:   endpoint,
		apiKey:     apiKey,
		deployment: deployment,
		cache:      cache,
		comments:   comments,
		client:     &http.Client{Timeout: requestTimeout},
	}
}

// Extract returns the extracted field mapping for an item. Cached
// results are reused as long as the item has not been updated since the
// extraction ran; otherwise the backend is invoked and the result is
// cached. Returned values carry the [AI-Extracted] annotation.
func (e *Extractor) Extract(ctx context.Context, item models.ProjectItem) (map[string]string, error) {
	key := item.CacheKey()

	if entry, ok := e.cache.Get(key); ok && !e.cache.IsStale(entry, item.UpdatedAt) {
		logging.Debug("using cached extraction",
			"key", key,
			"extracted_at", entry.Timestamp)
		return annotate(entry.Fields), nil
	}

	logging.Info("extracting fields",
		"key", key,
		"deployment", e.deployment)

	var comments []string
	if e.comments != nil {
		fetched, err := e.comments.IssueComments(item.Repository, item.Number)
		if err != nil {
			logging.Warn("failed to fetch comments for extraction context",
				"key", key,
				"error", err)
		} else {
			comments = fetched
		}
	}

	messages := buildPrompt(item.Body, comments, item.Labels)

	content, err := e.callChatCompletion(ctx, messages)
	if err != nil {
		return map[string]string{}, fmt.Errorf("extraction backend call failed: %w", err)
	}

	extracted, err := parseResponse(content)
	if err != nil {
		return map[string]string{}, fmt.Errorf("failed to parse extraction response: %w", err)
	}

	entry := Entry{
		Fields:         extracted,
		Timestamp:      time.Now().Format(time.RFC3339),
		Model:          e.deployment,
		IssueUpdatedAt: item.UpdatedAt.Format(time.RFC3339),
	}
	if err := e.cache.Put(key, entry); err != nil {
		logging.Warn("failed to persist extraction cache entry",
			"key", key,
			"error", err)
	}

	return annotate(extracted), nil
}

// chatMessage is one entry in the chat completions messages array.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens"`
	ResponseFormat responseFormat `json:"response_format"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// callChatCompletion posts the prompt to the Azure OpenAI endpoint and
// returns the raw message content, which should be a JSON object.
func (e *Extractor) callChatCompletion(ctx context.Context, messages []chatMessage) (string, error) {
	if e.apiKey == "" {
		return "", fmt.Errorf("azure openai api key not set")
	}

	payload := chatRequest{
		Messages:       messages,
		Temperature:    extractionTemperature,
		MaxTokens:      extractionMaxTokens,
		ResponseFormat: responseFormat{Type: "json_object"},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("extraction backend returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("extraction backend returned no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

const systemPrompt = `You are a requirements analyst extracting structured data from GitHub issues.

Extract the following fields if present in the issue body or comments:

1. business_need: Why this issue matters (business value, problem being solved). Look for sections like "Business Need", "Why", "Problem Statement", "Value".

2. acceptance_criteria: What defines completion (testable conditions). Look for sections like "Acceptance Criteria", "Definition of Done", "Requirements", "Success Criteria".

3. test_case_ids: Test case references (comma-separated IDs or URLs). Look for test case numbers, QA references, or test plan links.

4. test_evidence_url: Links to test results, test reports, or QA validation. Look for URLs to test systems, test run results, or evidence of testing.

5. design_artifacts_url: Links to design documents, diagrams, architecture docs, mockups, or specifications.

6. risk: Risk level and description. Look for "Risk:" labels or sections describing security, technical, or business risks. Extract both level (High/Medium/Low) and description.

7. release_version: Target release version or milestone. Look for version numbers, release names, or milestone references.

8. change_log: Summary of what changed or will change. Look for "Changes", "What's Changed", "Modifications", or implementation details.

IMPORTANT:
- Return "N/A" for any field not found or not clearly stated
- Return ONLY valid JSON with these exact field names
- Do not make assumptions - only extract what is explicitly stated
- Keep extracted values concise (under 200 chars per field)`

// buildPrompt assembles the chat messages for one item. Comments beyond
// maxComments are dropped.
func buildPrompt(body string, comments []string, labels []string) []chatMessage {
	if len(comments) > maxComments {
		comments = comments[:maxComments]
	}

	commentsText := "No comments"
	if len(comments) > 0 {
		commentsText = strings.Join(comments, "\n\n")
	}

	labelsText := "None"
	if len(labels) > 0 {
		labelsText = strings.Join(labels, ", ")
	}

	if body == "" {
		body = "No description provided"
	}

	userPrompt := fmt.Sprintf(`Issue Content:

%s

---

Comments:
%s

---

Labels: %s

---

Extract the structured fields as JSON.`, body, commentsText, labelsText)

	return []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}
}

// parseResponse decodes the backend's JSON object into the fixed field
// set, defaulting absent fields to N/A.
func parseResponse(content string) (map[string]string, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, err
	}

	fields := make(map[string]string, len(extractionFields))
	for _, name := range extractionFields {
		value := NotFound
		if v, ok := raw[name]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				value = strings.TrimSpace(s)
			}
		}
		fields[name] = value
	}

	return fields, nil
}

// annotate marks every concrete value as AI-inferred so renderers can
// distinguish inferred data from authoritative board fields.
func annotate(fields map[string]string) map[string]string {
	annotated := make(map[string]string, len(fields))
	for key, value := range fields {
		if value != "" && value != NotFound {
			annotated[key] = value + Annotation
		} else {
			annotated[key] = value
		}
	}
	return annotated
}
