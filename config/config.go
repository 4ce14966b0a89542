package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// EnvGitHubToken is the environment variable name for the GitHub API token
	EnvGitHubToken = "CCS_GITHUB_TOKEN"

	// EnvWebhookSecret is the environment variable name for the webhook secret
	EnvWebhookSecret = "CCS_WEBHOOK_SECRET"
)

// Config represents the application configuration
type Config struct {
	// Address the webhook server listens on
	ListenAddr string `json:"listen_addr"`

	// Secret shared with GitHub for webhook signature verification
	// (optional, can be set via CCS_WEBHOOK_SECRET env var)
	WebhookSecret string `json:"webhook_secret"`

	// GitHub API token for resync commands (optional, can be set via
	// CCS_GITHUB_TOKEN env var)
	GitHubToken string `json:"github_token"`

	// Classroom organizations to resync in bulk
	Organizations []string `json:"organizations"`

	// Path to the SQLite database file
	DatabasePath string `json:"database_path"`

	// Google OAuth client used for calendar access
	GoogleClientID     string `json:"google_client_id"`
	GoogleClientSecret string `json:"google_client_secret"`

	// Account name tokens are stored under
	CalendarAccount string `json:"calendar_account"`

	// Target calendar, "primary" for the account's default calendar
	CalendarID string `json:"calendar_id"`

	// Days until the assumed deadline for assignments without one
	DefaultDueDays int `json:"default_due_days"`
}

// LoadConfig loads the configuration from a JSON file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables take precedence over the file
	if envToken := os.Getenv(EnvGitHubToken); envToken != "" {
		config.GitHubToken = envToken
	}
	if envSecret := os.Getenv(EnvWebhookSecret); envSecret != "" {
		config.WebhookSecret = envSecret
	}

	applyDefaults(&config)

	// Make database path absolute if it's relative
	if !filepath.IsAbs(config.DatabasePath) {
		configDir := filepath.Dir(path)
		config.DatabasePath = filepath.Join(configDir, config.DatabasePath)
	}

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.ListenAddr == "" {
		config.ListenAddr = ":8080"
	}
	if config.DatabasePath == "" {
		config.DatabasePath = "classroom_sync.db"
	}
	if config.CalendarAccount == "" {
		config.CalendarAccount = "default"
	}
	if config.CalendarID == "" {
		config.CalendarID = "primary"
	}
	if config.DefaultDueDays <= 0 {
		config.DefaultDueDays = 7
	}
}

// SaveConfig saves the configuration to a JSON file
func SaveConfig(config *Config, path string) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CreateDefaultConfig creates a default configuration file if it doesn't exist
func CreateDefaultConfig(path string) error {
	// Check if the file already exists
	if _, err := os.Stat(path); err == nil {
		return nil // File exists, don't overwrite
	}

	// Create default config
	config := &Config{
		ListenAddr:      ":8080",
		WebhookSecret:   "",
		GitHubToken:     "",
		Organizations:   []string{"example-classroom-org"},
		DatabasePath:    "classroom_sync.db",
		CalendarAccount: "default",
		CalendarID:      "primary",
		DefaultDueDays:  7,
	}

	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Save the config
	return SaveConfig(config, path)
}
