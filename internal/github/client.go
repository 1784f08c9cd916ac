// Package github provides functionality for interacting with the GitHub API.
package github

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/go-github/v41/github"
	"golang.org/x/oauth2"

	"github.com/boardtrack/boardtrack/internal/config"
	"github.com/boardtrack/boardtrack/internal/logging"
	"github.com/boardtrack/boardtrack/pkg/models"
)

// Client encapsulates the GitHub REST API client. The REST surface is
// used for issue comments; project board data comes from the GraphQL
// client in projects.go.
type Client struct {
	client *github.Client
	domain string
	token  string
}

// NewClient creates a new GitHub API client from the given configuration.
// It initializes the client with the appropriate base URL, authenticates
// with the GitHub API, and tests the connection. It returns the configured
// client or an error if initialization fails.
func NewClient(cfg config.GitHubConfig) (*Client, error) {
	token := cfg.Token
	if token == "" {
		return nil, fmt.Errorf("github token not found in configuration")
	}

	domain := cfg.Domain
	if domain == "" {
		domain = "github.com"
	}

	// Construct API URL based on domain
	var apiURL string
	if domain == "github.com" {
		apiURL = "https://api.github.com/"
	} else {
		apiURL = fmt.Sprintf("https://%s/api/v3/", domain)
	}

	logging.Debug("github configuration",
		"domain", domain,
		"api_url", apiURL,
		"token", logging.MaskSensitive(token))

	// Create the oauth2 client
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(context.Background(), ts)

	// Create GitHub client with custom base URL
	client := github.NewClient(tc)

	// If not using default GitHub.com, set custom API endpoint
	if domain != "github.com" {
		parsedURL, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github api url: %w", err)
		}

		client.BaseURL = parsedURL
		client.UploadURL = parsedURL
	}

	// Test the token
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		logging.Error("failed to test github token", "error", err)
		return nil, fmt.Errorf("error testing github token: %w", err)
	}

	logging.Info("github authentication successful",
		"username", user.GetLogin())

	return &Client{client: client, domain: domain, token: token}, nil
}

// maxCommentsPerIssue bounds the comment fetch; the extraction prompt
// only uses the ten most recent anyway.
const maxCommentsPerIssue = 10

// IssueComments retrieves recent comments for an issue, formatted as
// extraction context lines ("Comment by <login> on <date>: <body>").
func (c *Client) IssueComments(repo models.Repository, number int) ([]string, error) {
	ctx := context.Background()

	logging.Debug("retrieving issue comments",
		"repository", repo.String(),
		"issue_number", number)

	opts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: maxCommentsPerIssue},
	}
	comments, _, err := c.client.Issues.ListComments(ctx, repo.Owner, repo.Name, number, opts)
	if err != nil {
		logging.Error("error retrieving issue comments",
			"repository", repo.String(),
			"issue_number", number,
			"error", err)
		return nil, fmt.Errorf("failed to retrieve comments for issue %s#%d: %v", repo.Name, number, err)
	}

	formatted := make([]string, 0, len(comments))
	for _, comment := range comments {
		formatted = append(formatted, fmt.Sprintf("Comment by %s on %s:\n%s",
			comment.GetUser().GetLogin(),
			comment.GetCreatedAt().Format("2006-01-02"),
			comment.GetBody()))
	}

	return formatted, nil
}
