package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/0xPuncker/job-watcher/internal/backend"
	"github.com/0xPuncker/job-watcher/internal/errors"
	"github.com/0xPuncker/job-watcher/pkg/types"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load(".env.local"); err != nil {
			fmt.Printf("No .env or .env.local file found. Using environment variables.\n")
		}
	}

	baseURL := flag.String("url", envOr("API_BASE_URL", backend.DefaultBaseURL), "backend base URL")
	create := flag.Bool("create", false, "create and delete a sample saved search")
	flag.Parse()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	client := backend.NewClient(logger, *baseURL, 10*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Printf("\nTesting backend: %s\n", client.BaseURL())

	if err := client.Health(ctx); err != nil {
		fmt.Printf("Health check error: %s (%s)\n", errors.Message(err), errors.Kind(err))
		os.Exit(1)
	}
	fmt.Printf("Health: ok\n")

	token := os.Getenv("API_TOKEN")
	if token == "" {
		fmt.Printf("API_TOKEN not set, skipping authenticated checks\n")
		return
	}

	searches, err := client.ListSavedSearches(ctx, token)
	if err != nil {
		fmt.Printf("List saved searches error: %s (%s)\n", errors.Message(err), errors.Kind(err))
		os.Exit(1)
	}
	fmt.Printf("Saved searches: %d\n", len(searches))
	for _, s := range searches {
		fmt.Printf("  #%d %s [%s] active=%t new=%d\n", s.ID, s.Name, s.ExperienceLevel, s.IsActive, s.NewResultsCount)
	}

	status, err := client.SchedulerStatus(ctx, token)
	if err != nil {
		fmt.Printf("Scheduler status error: %s\n", errors.Message(err))
	} else {
		fmt.Printf("Scheduler: running=%t jobs=%d\n", status.Running, status.JobsCount)
	}

	if !*create {
		return
	}

	created, err := client.CreateSavedSearch(ctx, token, types.Draft{
		Name:            "Connectivity check",
		JobTitle:        "Software Engineer",
		ExperienceLevel: types.LevelIntern,
		Count:           1,
	})
	if err != nil {
		fmt.Printf("Create error: %s\n", errors.Message(err))
		os.Exit(1)
	}
	fmt.Printf("Created saved search #%d\n", created.ID)

	if err := client.DeleteSavedSearch(ctx, token, created.ID); err != nil {
		fmt.Printf("Delete error: %s\n", errors.Message(err))
		os.Exit(1)
	}
	fmt.Printf("Deleted saved search #%d\n", created.ID)
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
