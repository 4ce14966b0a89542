package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
)

// TokenStore persists OAuth token blobs between runs.
type TokenStore interface {
	GetToken(ctx context.Context, accountName string) ([]byte, error)
	SaveToken(ctx context.Context, accountName string, token []byte) error
}

// OAuthConfig builds the oauth2 config used for calendar access. The consent
// flow itself happens elsewhere; tokens are imported into the store and only
// refreshed here.
func OAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
		Scopes:       []string{gcal.CalendarEventsScope},
	}
}

// NewClient returns an HTTP client authorized with the token stored for the
// account, refreshing it if expired and writing the refreshed token back.
func NewClient(ctx context.Context, config *oauth2.Config, store TokenStore, accountName string) (*http.Client, error) {
	tokenJSON, err := store.GetToken(ctx, accountName)
	if err != nil {
		return nil, fmt.Errorf("failed to load token for account %s: %w", accountName, err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(tokenJSON, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token for account %s: %w", accountName, err)
	}

	tokenSource := config.TokenSource(ctx, &token)
	newToken, err := tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token for account %s: %w", accountName, err)
	}

	if newToken.AccessToken != token.AccessToken {
		refreshed, err := json.Marshal(newToken)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal refreshed token: %w", err)
		}
		if err := store.SaveToken(ctx, accountName, refreshed); err != nil {
			// The refreshed token still works for this run.
			log.Printf("Warning: failed to persist refreshed token for %s: %v", accountName, err)
		}
	}

	return oauth2.NewClient(ctx, tokenSource), nil
}
