package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/kamalcharan/kewalinvest-sub002/internal/api"
	"github.com/kamalcharan/kewalinvest-sub002/internal/common"
	"github.com/kamalcharan/kewalinvest-sub002/internal/dashboard"
	"github.com/kamalcharan/kewalinvest-sub002/internal/handlers"
	"github.com/kamalcharan/kewalinvest-sub002/internal/server"
	"github.com/kamalcharan/kewalinvest-sub002/internal/services/events"
	"github.com/kamalcharan/kewalinvest-sub002/internal/services/scheduler"
	badgerstorage "github.com/kamalcharan/kewalinvest-sub002/internal/storage/badger"
	"github.com/kamalcharan/kewalinvest-sub002/internal/tracking"
)

var (
	configFile   = flag.String("config", "", "Configuration file path (default: navtrack.toml if present)")
	serverPort   = flag.Int("port", 0, "Server port (overrides config)")
	serverHost   = flag.String("host", "", "Server host (overrides config)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("NavTrack version %s\n", common.GetVersion())
		os.Exit(0)
	}

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> file -> env)
	// 2. Apply CLI overrides (highest priority)
	// 3. Initialize logger
	// 4. Print banner
	path := *configFile
	if path == "" {
		if _, err := os.Stat("navtrack.toml"); err == nil {
			path = "navtrack.toml"
		}
	}

	config, err := common.LoadConfig(path)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Err(err).Str("path", path).Msg("Failed to load configuration")
		os.Exit(1)
	}

	common.ApplyFlagOverrides(config, *serverPort, *serverHost)

	logger := common.InitLogger(config)

	common.PrintBanner(common.GetVersion())

	logger.Info().
		Str("environment", config.Environment).
		Str("backend_url", config.Backend.BaseURL).
		Str("poll_interval", config.Tracking.PollInterval).
		Msg("NavTrack starting")

	db, err := badgerstorage.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open database")
		os.Exit(1)
	}
	defer db.Close()

	backendClient := api.NewClient(config.Backend.BaseURL,
		api.WithLogger(logger),
		api.WithAPIKey(config.Backend.APIKey),
		api.WithRateLimit(config.Backend.RateLimit),
		api.WithHTTPClient(&http.Client{Timeout: config.Backend.RequestTimeoutDuration()}),
	)

	eventService := events.NewService(logger)
	historyStorage := badgerstorage.NewHistoryStorage(db, logger)

	trackingService := tracking.NewService(
		backendClient,
		historyStorage,
		eventService,
		config.Tracking.PollIntervalDuration(),
		config.Tracking.MaxHistoricalSpanDays,
		logger,
	)

	aggregator := dashboard.NewAggregator(
		backendClient,
		eventService,
		config.Dashboard.RefreshCooldownDuration(),
		logger,
	)

	schedulerService := scheduler.NewService(trackingService, logger)
	if config.Scheduler.Enabled {
		if err := schedulerService.Start(config.Scheduler.Schedule); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start scheduler")
			os.Exit(1)
		}
	}

	downloadHandler := handlers.NewDownloadHandler(trackingService, backendClient, historyStorage, config.Dashboard.HistoryLimit, logger)
	dashboardHandler := handlers.NewDashboardHandler(aggregator, logger)
	wsHandler := handlers.NewWebSocketHandler(eventService, logger)

	srv := server.New(config, logger, downloadHandler, dashboardHandler, wsHandler)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("HTTP server failed")
		}
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP server shutdown error")
	}
	if config.Scheduler.Enabled {
		schedulerService.Stop()
	}
	wsHandler.Close()
	trackingService.Shutdown()
	aggregator.Close()
	eventService.Close()

	logger.Info().Msg("NavTrack stopped")
}
