package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/edusync/classroom-calendar-sync/internal/models"
)

// GitHubClient represents a client for the GitHub REST API
type GitHubClient struct {
	client *github.Client
}

// NewGitHubClient creates a new GitHub API client
func NewGitHubClient(token string) *GitHubClient {
	var tc *http.Client

	if token != "" {
		// Create an authenticated client if a token is provided
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		tc = oauth2.NewClient(context.Background(), ts)
	}

	client := github.NewClient(tc)
	return &GitHubClient{client: client}
}

// GetAssignmentRepo fetches a single repository and maps it to an assignment
// record. The due date is left unset; GitHub repositories carry no deadline,
// so the reconciler applies its default due period.
func (c *GitHubClient) GetAssignmentRepo(ctx context.Context, owner, name string) (*models.Assignment, error) {
	repo, _, err := c.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}

	return &models.Assignment{
		ID:         repo.GetFullName(),
		Title:      repo.GetName(),
		Course:     repo.GetOwner().GetLogin(),
		RepoLink:   repo.GetHTMLURL(),
		AcceptedAt: repo.GetCreatedAt().Time,
	}, nil
}
