package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/oauth2"

	"github.com/edusync/classroom-calendar-sync/config"
	"github.com/edusync/classroom-calendar-sync/internal/api"
	"github.com/edusync/classroom-calendar-sync/internal/calendar"
	"github.com/edusync/classroom-calendar-sync/internal/db"
	"github.com/edusync/classroom-calendar-sync/internal/sync"
	"github.com/edusync/classroom-calendar-sync/internal/webhook"
)

func main() {
	// Define command-line flags
	configPath := flag.String("config", "config.json", "Path to configuration file")
	createConfig := flag.Bool("init", false, "Create a default configuration file if it doesn't exist")
	importToken := flag.String("import-token", "", "Import a Google OAuth token JSON file into the token store")
	serve := flag.Bool("serve", false, "Run the webhook server")
	resyncOrg := flag.String("resync", "", "Resync a specific organization's assignment repositories")
	resyncAll := flag.Bool("resync-all", false, "Resync all organizations in the configuration")
	reconcileRepo := flag.String("reconcile-repo", "", "Reconcile a single repository (format: owner/name)")
	flag.Parse()

	// Create default configuration if requested
	if *createConfig {
		if err := config.CreateDefaultConfig(*configPath); err != nil {
			log.Fatalf("Failed to create default configuration: %v", err)
		}
		log.Printf("Created default configuration at %s", *configPath)
		return
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	database, err := db.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.Initialize(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	ctx := context.Background()

	// Import a provisioned calendar token if requested
	if *importToken != "" {
		if err := storeToken(ctx, database, cfg.CalendarAccount, *importToken); err != nil {
			log.Fatalf("Failed to import token: %v", err)
		}
		log.Printf("Stored calendar token for account %s", cfg.CalendarAccount)

		if !*serve && *resyncOrg == "" && !*resyncAll && *reconcileRepo == "" {
			return
		}
	}

	switch {
	case *serve:
		runServer(ctx, cfg, database)

	case *reconcileRepo != "":
		reconciler, err := newReconciler(ctx, cfg, database)
		if err != nil {
			log.Fatalf("Failed to set up reconciler: %v", err)
		}

		owner, name, err := parseRepositoryString(*reconcileRepo)
		if err != nil {
			log.Fatalf("Invalid repository format: %v", err)
		}

		client := api.NewGitHubClient(cfg.GitHubToken)
		assignment, err := client.GetAssignmentRepo(ctx, owner, name)
		if err != nil {
			log.Fatalf("Failed to fetch repository %s: %v", *reconcileRepo, err)
		}

		result, err := reconciler.Reconcile(ctx, assignment)
		if err != nil {
			log.Fatalf("Failed to reconcile %s: %v", assignment.ID, err)
		}
		log.Printf("Assignment %s reconciled: %s", assignment.ID, result)

	case *resyncOrg != "" || *resyncAll:
		reconciler, err := newReconciler(ctx, cfg, database)
		if err != nil {
			log.Fatalf("Failed to set up reconciler: %v", err)
		}

		lister := api.NewGraphQLClient(cfg.GitHubToken)
		resyncer := sync.NewResyncer(database, lister, reconciler)

		organizations := cfg.Organizations
		if *resyncOrg != "" {
			organizations = []string{*resyncOrg}
		}

		startTime := time.Now()
		for _, organization := range organizations {
			if err := resyncer.ResyncOrganization(ctx, organization); err != nil {
				log.Printf("Resync of %s failed: %v", organization, err)
				// Continue with other organizations even if one fails
				continue
			}
		}
		log.Printf("Resync finished in %v", time.Since(startTime).Round(time.Second))

	default:
		flag.Usage()
		os.Exit(1)
	}
}

// newReconciler wires the calendar provider and store into a reconciler.
func newReconciler(ctx context.Context, cfg *config.Config, database *db.DB) (*sync.Reconciler, error) {
	oauthConfig := calendar.OAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret)
	client, err := calendar.NewClient(ctx, oauthConfig, database, cfg.CalendarAccount)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize calendar access: %w", err)
	}

	provider, err := calendar.NewGoogleProvider(ctx, client, cfg.CalendarID)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar provider: %w", err)
	}

	defaultDuePeriod := time.Duration(cfg.DefaultDueDays) * 24 * time.Hour
	return sync.NewReconciler(database, provider, defaultDuePeriod), nil
}

// runServer runs the webhook server until interrupted.
func runServer(ctx context.Context, cfg *config.Config, database *db.DB) {
	if cfg.WebhookSecret == "" {
		log.Fatalf("Refusing to serve without a webhook secret: set webhook_secret or %s", config.EnvWebhookSecret)
	}

	reconciler, err := newReconciler(ctx, cfg, database)
	if err != nil {
		log.Fatalf("Failed to set up reconciler: %v", err)
	}

	handler := webhook.NewHandler([]byte(cfg.WebhookSecret), reconciler)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	// Basic request logger
	logger := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("%s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      logger(mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Webhook server listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
}

// storeToken validates and stores an OAuth token JSON blob.
func storeToken(ctx context.Context, database *db.DB, accountName, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return fmt.Errorf("failed to parse token file: %w", err)
	}
	if token.RefreshToken == "" && token.AccessToken == "" {
		return fmt.Errorf("token file %s contains no usable token", path)
	}

	return database.SaveToken(ctx, accountName, data)
}

// parseRepositoryString splits an "owner/name" repository string.
func parseRepositoryString(repo string) (string, string, error) {
	parts := strings.SplitN(repo, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("expected owner/name, got %q", repo)
	}
	return parts[0], parts[1], nil
}
