package api

import (
	"context"
	"fmt"
	"time"

	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/edusync/classroom-calendar-sync/internal/models"
)

// GraphQLClient represents a client for the GitHub GraphQL API. Listing an
// organization's repositories over GraphQL fetches name, URL, and creation
// time in one paginated query instead of one REST call per repository.
type GraphQLClient struct {
	client *githubv4.Client
}

// NewGraphQLClient creates a new GraphQL client
func NewGraphQLClient(token string) *GraphQLClient {
	src := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	httpClient := oauth2.NewClient(context.Background(), src)
	client := githubv4.NewClient(httpClient)
	return &GraphQLClient{client: client}
}

// repositoryNode is a repository as returned by the GraphQL listing query.
type repositoryNode struct {
	Name          githubv4.String
	NameWithOwner githubv4.String
	URL           githubv4.URI
	CreatedAt     githubv4.DateTime
	IsArchived    githubv4.Boolean
}

// ListOrganizationRepos lists the organization's repositories created at or
// after since, oldest first, mapped to assignment records. Archived
// repositories are skipped. A zero since lists everything.
func (c *GraphQLClient) ListOrganizationRepos(ctx context.Context, organization string, since time.Time) ([]*models.Assignment, error) {
	var query struct {
		Organization struct {
			Repositories struct {
				Nodes    []repositoryNode
				PageInfo struct {
					EndCursor   githubv4.String
					HasNextPage githubv4.Boolean
				}
			} `graphql:"repositories(first: 100, after: $cursor, orderBy: {field: CREATED_AT, direction: ASC})"`
		} `graphql:"organization(login: $org)"`
	}

	variables := map[string]interface{}{
		"org":    githubv4.String(organization),
		"cursor": (*githubv4.String)(nil),
	}

	var assignments []*models.Assignment
	for {
		if err := c.client.Query(ctx, &query, variables); err != nil {
			return nil, fmt.Errorf("failed to list repositories for %s: %w", organization, err)
		}

		for _, node := range query.Organization.Repositories.Nodes {
			if bool(node.IsArchived) {
				continue
			}
			if !since.IsZero() && node.CreatedAt.Time.Before(since) {
				continue
			}

			link := ""
			if node.URL.URL != nil {
				link = node.URL.URL.String()
			}

			assignments = append(assignments, &models.Assignment{
				ID:         string(node.NameWithOwner),
				Title:      string(node.Name),
				Course:     organization,
				RepoLink:   link,
				AcceptedAt: node.CreatedAt.Time,
			})
		}

		if !query.Organization.Repositories.PageInfo.HasNextPage {
			break
		}
		variables["cursor"] = githubv4.NewString(query.Organization.Repositories.PageInfo.EndCursor)
	}

	return assignments, nil
}
