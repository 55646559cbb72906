package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raaihank/incident-sentinel/internal/api"
	"github.com/raaihank/incident-sentinel/internal/config"
	"github.com/raaihank/incident-sentinel/internal/incident"
	"github.com/raaihank/incident-sentinel/internal/llm"
	"github.com/raaihank/incident-sentinel/internal/logger"
	"github.com/raaihank/incident-sentinel/internal/observability"
	"github.com/raaihank/incident-sentinel/internal/privacy"
	"github.com/raaihank/incident-sentinel/internal/status"
	"github.com/raaihank/incident-sentinel/internal/websocket"
	"go.uber.org/zap"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("incident-sentinel %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *healthCheck {
		performHealthCheck(cfg.Server.Port)
		return
	}

	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting incident-sentinel",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	err = config.Watch(func(updated *config.Config) {
		if err := log.SetLevel(updated.Logging.Level); err != nil {
			log.Warn("Ignoring invalid log level from reloaded config", zap.Error(err))
			return
		}
		log.Info("Configuration reloaded", zap.String("log_level", updated.Logging.Level))
	}, func(err error) {
		log.Warn("Configuration reload failed", zap.Error(err))
	})
	if err != nil && !errors.Is(err, config.ErrNotWatchable) {
		log.Warn("Configuration watching disabled", zap.Error(err))
	}

	store, err := status.New(cfg.Storage, log.WithComponent("status"))
	if err != nil {
		log.Fatal("Failed to open status store", zap.Error(err))
	}
	defer store.Close()

	var generator llm.Generator
	if g, err := llm.NewOpenAIGenerator(cfg.Generation, log.WithComponent("llm")); err != nil {
		log.Warn("Draft generation disabled", zap.Error(err))
	} else {
		generator = g
	}

	var hub *websocket.Hub
	if cfg.WebSocket.Enabled {
		hub = websocket.NewHub(&websocket.HubConfig{
			BroadcastPublished:   cfg.WebSocket.Events.BroadcastPublished,
			BroadcastRejected:    cfg.WebSocket.Events.BroadcastRejected,
			BroadcastLeaks:       cfg.WebSocket.Events.BroadcastLeaks,
			BroadcastConnections: cfg.WebSocket.Events.BroadcastConnections,
			Username:             cfg.WebSocket.Username,
			Password:             cfg.WebSocket.Password,
			AllowedOrigins:       cfg.Server.AllowedOrigins,
		}, log.WithComponent("websocket").Logger)
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(nil)
	}

	opts := incident.Options{
		Detector:     privacy.New(log.WithComponent("privacy")),
		Incidents:    incident.NewRepository(cfg.Incidents.Dir),
		Generator:    generator,
		Store:        store,
		Metrics:      metrics,
		Logger:       log,
		Organization: cfg.Generation.Organization,
		DefaultTone:  incident.Tone(cfg.Generation.DefaultTone),
		MaxTokens:    cfg.Generation.MaxTokens,
	}
	if hub != nil {
		opts.Events = hub
	}
	service := incident.NewService(opts)

	server := api.New(api.Options{
		Config:  cfg,
		Logger:  log,
		Service: service,
		Hub:     hub,
		Metrics: metrics,
		Version: version,
	})

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", zap.Error(err))
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Stop(ctx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			os.Exit(1)
		}

		log.Info("Server shutdown complete")
	}
}

// performHealthCheck performs a health check against the running server
func performHealthCheck(port int) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(fmt.Sprintf("http://localhost:%d/api/health", port))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
