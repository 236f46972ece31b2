package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/0xPuncker/job-watcher/internal/api"
	"github.com/0xPuncker/job-watcher/internal/backend"
	"github.com/0xPuncker/job-watcher/internal/config"
	"github.com/0xPuncker/job-watcher/internal/notifications"
	"github.com/0xPuncker/job-watcher/internal/savedsearch"
	"github.com/0xPuncker/job-watcher/internal/scheduler"
	"github.com/0xPuncker/job-watcher/internal/search"
	"github.com/0xPuncker/job-watcher/internal/session"
	seeds "github.com/0xPuncker/job-watcher/pkg/config"
	"github.com/dimiro1/banner"
	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
)

const bannerText = `
{{ .Title "Job Watcher" "" 0 }} 
{{ .AnsiBackground.BrightBlue }}{{ .AnsiColor.White }}
{{ .AnsiReset }}
`

func main() {
	banner.Init(colorable.NewColorableStdout(), true, true, strings.NewReader(bannerText))

	configPath := flag.String("config", config.DefaultPath, "path to config file")
	seedPath := flag.String("seed", "", "YAML file of saved searches to create on startup")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:          false,
		DisableTimestamp:       false,
		TimestampFormat:        "2006-01-02T15:04:05-07:00",
		DisableLevelTruncation: false,
		PadLevelText:           false,
	})
	if *debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	client := backend.NewClient(logger, cfg.API.BaseURL, cfg.APITimeout())
	sess := session.NewHolder(session.Env(cfg.API.TokenEnv))
	if !sess.SignedIn() {
		logger.Warnf("%s is not set; saved searches and scheduler control are unavailable until a token is pushed to /api/v1/session", cfg.API.TokenEnv)
	}

	var (
		storeOpts      []savedsearch.Option
		controllerOpts = []scheduler.Option{
			scheduler.WithInterval(cfg.PollInterval()),
			scheduler.WithSettleDelay(cfg.SettleDelay()),
		}
	)
	if slack, err := notifications.NewSlackService(logger, cfg.Slack.WebhookURL); err != nil {
		logger.Warnf("Failed to initialize Slack service: %v", err)
	} else {
		notifier := notifications.NewNotificationService(slack)
		storeOpts = append(storeOpts, savedsearch.WithNotifier(notifier))
		controllerOpts = append(controllerOpts, scheduler.WithActionNotifier(notifier))
	}

	store := savedsearch.NewStore(client, sess, logger, storeOpts...)
	controller := scheduler.NewController(client, sess, logger, controllerOpts...)
	searcher := search.NewSearcher(client, logger, cfg.CacheTTL())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if sess.SignedIn() {
		if err := store.Load(ctx); err != nil {
			logger.Warnf("Initial saved search load failed: %s", store.LastError())
		}
		if *seedPath != "" {
			seedSearches(ctx, logger, store, *seedPath)
		}
	}

	if err := controller.Mount(); err != nil {
		logger.Fatalf("Failed to mount scheduler panel: %v", err)
	}

	handler := api.NewHandler(logger, api.Services{
		Session:   sess,
		Store:     store,
		Scheduler: controller,
		Searcher:  searcher,
		Backend:   client,
	})

	logger.Infof("Server starting on port %s - Press Ctrl+C to stop.", cfg.Server.Port)

	err = api.StartServer(ctx, handler, api.ServerOptions{
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
	})

	logger.Info("Shutting down server...")
	controller.Unmount()
	store.Wait()

	if err != nil {
		logger.Errorf("Server stopped with error: %v", err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}

// seedSearches creates every draft of the seed file whose name is not already saved.
func seedSearches(ctx context.Context, logger *logrus.Logger, store *savedsearch.Store, path string) {
	file, err := seeds.LoadSeeds(path)
	if err != nil {
		logger.Errorf("Failed to load seed file: %v", err)
		return
	}

	existing := make(map[string]bool)
	for _, item := range store.Items() {
		existing[item.Name] = true
	}

	for _, draft := range file.Searches {
		if existing[draft.Name] {
			logger.WithField("name", draft.Name).Debug("Seed already saved, skipping")
			continue
		}
		if err := store.Create(ctx, draft); err != nil {
			logger.WithFields(logrus.Fields{
				"name":  draft.Name,
				"error": store.LastError(),
			}).Warn("Failed to create seeded search")
		}
	}
}
