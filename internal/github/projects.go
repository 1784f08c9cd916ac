package github

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	gh "github.com/cli/go-gh/v2/pkg/api"
	graphql "github.com/cli/shurcooL-graphql"

	"github.com/boardtrack/boardtrack/internal/logging"
	"github.com/boardtrack/boardtrack/pkg/models"
)

// fieldCommon selects the field name on any ProjectV2 field type.
type fieldCommon struct {
	Common struct {
		Name string
	} `graphql:"... on ProjectV2FieldCommon"`
}

// fieldValueNode is one entry of a project item's fieldValues union.
type fieldValueNode struct {
	TypeName string `graphql:"__typename"`
	Text     struct {
		Text  string
		Field fieldCommon
	} `graphql:"... on ProjectV2ItemFieldTextValue"`
	Number struct {
		Number float64
		Field  fieldCommon
	} `graphql:"... on ProjectV2ItemFieldNumberValue"`
	Date struct {
		Date  string
		Field fieldCommon
	} `graphql:"... on ProjectV2ItemFieldDateValue"`
	SingleSelect struct {
		Name  string
		Field fieldCommon
	} `graphql:"... on ProjectV2ItemFieldSingleSelectValue"`
}

// name returns the raw field name of whichever union member is set.
func (v fieldValueNode) name() string {
	switch v.TypeName {
	case "ProjectV2ItemFieldTextValue":
		return v.Text.Field.Common.Name
	case "ProjectV2ItemFieldNumberValue":
		return v.Number.Field.Common.Name
	case "ProjectV2ItemFieldDateValue":
		return v.Date.Field.Common.Name
	case "ProjectV2ItemFieldSingleSelectValue":
		return v.SingleSelect.Field.Common.Name
	}
	return ""
}

// value returns the field value of whichever union member is set.
func (v fieldValueNode) value() string {
	switch v.TypeName {
	case "ProjectV2ItemFieldTextValue":
		return v.Text.Text
	case "ProjectV2ItemFieldNumberValue":
		return strconv.FormatFloat(v.Number.Number, 'f', -1, 64)
	case "ProjectV2ItemFieldDateValue":
		return v.Date.Date
	case "ProjectV2ItemFieldSingleSelectValue":
		return v.SingleSelect.Name
	}
	return ""
}

// contentNode is the item's content union of Issue, PullRequest and
// DraftIssue.
type contentNode struct {
	TypeName string `graphql:"__typename"`
	Issue    struct {
		Number     int
		Title      string
		URL        string
		State      string
		CreatedAt  time.Time
		UpdatedAt  time.Time
		Body       string
		Repository struct {
			Owner struct {
				Login string
			}
			Name string
		}
		Labels struct {
			Nodes []struct {
				Name string
			}
		} `graphql:"labels(first: 20)"`
		Assignees struct {
			Nodes []struct {
				Login string
			}
		} `graphql:"assignees(first: 10)"`
	} `graphql:"... on Issue"`
	PullRequest struct {
		Number     int
		Title      string
		URL        string
		State      string
		CreatedAt  time.Time
		UpdatedAt  time.Time
		Body       string
		Repository struct {
			Owner struct {
				Login string
			}
			Name string
		}
		Labels struct {
			Nodes []struct {
				Name string
			}
		} `graphql:"labels(first: 20)"`
		Assignees struct {
			Nodes []struct {
				Login string
			}
		} `graphql:"assignees(first: 10)"`
		Commits struct {
			Nodes []struct {
				Commit struct {
					Oid string
				}
			}
		} `graphql:"commits(last: 1)"`
		ClosingIssuesReferences struct {
			Nodes []struct {
				Number int
			}
		} `graphql:"closingIssuesReferences(first: 10)"`
		Reviews struct {
			Nodes []struct {
				Author struct {
					Login string
				}
				State       string
				SubmittedAt time.Time
			}
		} `graphql:"reviews(first: 50)"`
	} `graphql:"... on PullRequest"`
	DraftIssue struct {
		Title     string
		Body      string
		CreatedAt time.Time
		UpdatedAt time.Time
	} `graphql:"... on DraftIssue"`
}

// projectItemNode is one node of the project's items connection.
type projectItemNode struct {
	Type        string
	FieldValues struct {
		Nodes []fieldValueNode
	} `graphql:"fieldValues(first: 20)"`
	Content contentNode
}

// projectItems is the shared shape of the paginated items connection.
type projectItems struct {
	Title string
	Items struct {
		PageInfo struct {
			HasNextPage bool
			EndCursor   graphql.String
		}
		Nodes []projectItemNode
	} `graphql:"items(first: 100, after: $cursor)"`
}

// FetchProjectItems retrieves every item of a project board, paginating
// through the GraphQL items connection. The owner is tried as an
// organization first, then as a user. Returns the project title and the
// converted items.
func (c *Client) FetchProjectItems(owner string, project int) (string, []models.ProjectItem, error) {
	client, err := gh.NewGraphQLClient(gh.ClientOptions{
		Host:      c.domain,
		AuthToken: c.token,
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to create graphql client: %w", err)
	}

	var (
		title    string
		allItems []models.ProjectItem
		cursor   *graphql.String
	)

	for {
		page, err := fetchItemsPage(client, owner, project, cursor)
		if err != nil {
			return "", nil, err
		}

		title = page.Title
		for _, node := range page.Items.Nodes {
			allItems = append(allItems, convertItem(node))
		}

		if !page.Items.PageInfo.HasNextPage {
			break
		}
		endCursor := page.Items.PageInfo.EndCursor
		cursor = &endCursor
	}

	logging.Info("fetched project items",
		"owner", owner,
		"project", project,
		"title", title,
		"item_count", len(allItems))

	return title, allItems, nil
}

// fetchItemsPage runs one page of the items query, falling back from an
// organization-level to a user-level project when the owner is not an
// organization.
func fetchItemsPage(client *gh.GraphQLClient, owner string, project int, cursor *graphql.String) (*projectItems, error) {
	variables := map[string]interface{}{
		"owner":  graphql.String(owner),
		"number": graphql.Int(project),
		"cursor": cursor,
	}

	var orgQuery struct {
		Organization struct {
			ProjectV2 projectItems `graphql:"projectV2(number: $number)"`
		} `graphql:"organization(login: $owner)"`
	}

	err := client.Query("OrgProjectItems", &orgQuery, variables)
	if err == nil {
		return &orgQuery.Organization.ProjectV2, nil
	}

	if !strings.Contains(err.Error(), "Could not resolve to an Organization") {
		return nil, fmt.Errorf("failed to fetch project items: %w", err)
	}

	logging.Debug("owner is not an organization, retrying as user",
		"owner", owner)

	var userQuery struct {
		User struct {
			ProjectV2 projectItems `graphql:"projectV2(number: $number)"`
		} `graphql:"user(login: $owner)"`
	}

	if err := client.Query("UserProjectItems", &userQuery, variables); err != nil {
		return nil, fmt.Errorf("failed to fetch project items: %w", err)
	}

	return &userQuery.User.ProjectV2, nil
}

// convertItem maps a GraphQL item node onto the internal model.
func convertItem(node projectItemNode) models.ProjectItem {
	item := models.ProjectItem{
		ProjectFields: make(map[string]string),
	}

	for _, fv := range node.FieldValues.Nodes {
		if name := fv.name(); name != "" {
			item.ProjectFields[name] = fv.value()
		}
	}

	switch node.Content.TypeName {
	case "PullRequest":
		pr := node.Content.PullRequest
		item.Kind = models.KindPullRequest
		item.Repository = models.Repository{Owner: pr.Repository.Owner.Login, Name: pr.Repository.Name}
		item.Number = pr.Number
		item.Title = pr.Title
		item.URL = pr.URL
		item.Body = pr.Body
		item.State = pr.State
		item.CreatedAt = pr.CreatedAt
		item.UpdatedAt = pr.UpdatedAt
		for _, label := range pr.Labels.Nodes {
			item.Labels = append(item.Labels, label.Name)
		}
		for _, assignee := range pr.Assignees.Nodes {
			item.Assignees = append(item.Assignees, assignee.Login)
		}
		if len(pr.Commits.Nodes) > 0 {
			item.CommitSHA = pr.Commits.Nodes[0].Commit.Oid
		}
		for _, ref := range pr.ClosingIssuesReferences.Nodes {
			item.ClosingIssues = append(item.ClosingIssues, ref.Number)
		}
		for _, review := range pr.Reviews.Nodes {
			item.Reviews = append(item.Reviews, models.Review{
				Reviewer:    review.Author.Login,
				State:       review.State,
				SubmittedAt: review.SubmittedAt,
			})
		}
	case "DraftIssue":
		draft := node.Content.DraftIssue
		item.Kind = models.KindDraft
		item.Title = draft.Title
		item.Body = draft.Body
		item.State = "Draft"
		item.CreatedAt = draft.CreatedAt
		item.UpdatedAt = draft.UpdatedAt
	default:
		issue := node.Content.Issue
		item.Kind = models.KindIssue
		item.Repository = models.Repository{Owner: issue.Repository.Owner.Login, Name: issue.Repository.Name}
		item.Number = issue.Number
		item.Title = issue.Title
		item.URL = issue.URL
		item.Body = issue.Body
		item.State = issue.State
		item.CreatedAt = issue.CreatedAt
		item.UpdatedAt = issue.UpdatedAt
		for _, label := range issue.Labels.Nodes {
			item.Labels = append(item.Labels, label.Name)
		}
		for _, assignee := range issue.Assignees.Nodes {
			item.Assignees = append(item.Assignees, assignee.Login)
		}
	}

	return item
}
