package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/winterholm/staticpress/internal/build"
	"github.com/winterholm/staticpress/internal/config"
	"github.com/winterholm/staticpress/internal/daemon"
	"github.com/winterholm/staticpress/internal/events"
	"github.com/winterholm/staticpress/internal/history"
	"github.com/winterholm/staticpress/internal/metrics"
	"github.com/winterholm/staticpress/internal/version"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"staticpress.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Output      string `short:"o" help:"Output directory override"`
		Production  bool   `short:"p" help:"Force production mode compilation"`
		Concurrency int    `help:"Max concurrent page renders (0 = unbounded)" default:"-1"`
	} `cmd:"" help:"Build the static site"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	History struct {
		Limit int `short:"n" help:"Number of builds to show" default:"10"`
	} `cmd:"" help:"Show recent builds from the history store"`

	Daemon struct{} `cmd:"" help:"Run scheduled rebuilds until interrupted"`

	Version struct{} `cmd:"" help:"Print version information"`
}

func main() {
	ctx := kong.Parse(&CLI)

	// Set up logging
	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	switch ctx.Command() {
	case "build":
		cfg, err := config.Load(CLI.Config)
		if err != nil {
			slog.Error("Failed to load configuration", "error", err)
			os.Exit(1)
		}
		configureLogging(cfg)
		applyBuildFlags(cfg)
		if err := runBuild(cfg); err != nil {
			slog.Error("Build failed", "error", err)
			os.Exit(1)
		}
	case "init":
		if err := runInit(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", "error", err)
			os.Exit(1)
		}
	case "history":
		cfg, err := config.Load(CLI.Config)
		if err != nil {
			slog.Error("Failed to load configuration", "error", err)
			os.Exit(1)
		}
		if err := runHistory(cfg, CLI.History.Limit); err != nil {
			slog.Error("History failed", "error", err)
			os.Exit(1)
		}
	case "daemon":
		cfg, err := config.Load(CLI.Config)
		if err != nil {
			slog.Error("Failed to load configuration", "error", err)
			os.Exit(1)
		}
		configureLogging(cfg)
		if err := runDaemon(cfg, CLI.Config); err != nil {
			slog.Error("Daemon failed", "error", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("staticpress %s (commit %s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
	}
}

// configureLogging rebuilds the default logger from the configuration file.
// The --verbose flag still wins over the configured level.
func configureLogging(cfg *config.Config) {
	level := cfg.Logging.SlogLevel()
	if CLI.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if config.NormalizeLogFormat(cfg.Logging.Format) == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// applyBuildFlags lets command-line flags win over file configuration.
func applyBuildFlags(cfg *config.Config) {
	if CLI.Build.Output != "" {
		cfg.Build.OutputDir = CLI.Build.Output
	}
	if CLI.Build.Production {
		cfg.Build.Production = true
	}
	if CLI.Build.Concurrency >= 0 {
		cfg.Build.RenderConcurrency = CLI.Build.Concurrency
	}
}

func runBuild(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pub := events.Open(cfg.Events.URL, cfg.Events.Subject)
	defer pub.Close()

	pipeline := build.New(cfg).WithPublisher(pub)

	if cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			slog.Warn("Build history disabled", "error", err)
		} else {
			defer store.Close()
			pipeline.WithHistory(store)
		}
	}

	_, err := pipeline.Run(ctx)
	return err
}

func runInit(configPath string, force bool) error {
	slog.Info("Initializing configuration", "path", configPath, "force", force)
	return config.Init(configPath, force)
}

func runHistory(cfg *config.Config, limit int) error {
	if cfg.History.Path == "" {
		return fmt.Errorf("history.path is not configured")
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Recent(context.Background(), limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		slog.Info("No builds recorded yet")
		return nil
	}

	slog.Info("Recent builds", "count", len(entries))
	for _, e := range entries {
		slog.Info("Build",
			"id", e.BuildID,
			"started", e.Started.Format("2006-01-02 15:04:05"),
			"outcome", e.Outcome,
			"pages", e.Pages,
			"rendered", e.Rendered,
			"failed", e.Failed,
			"duration", e.Duration.String())
	}
	return nil
}

func runDaemon(cfg *config.Config, configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Event and history endpoints are opened once; config reloads swap
	// build settings, not these connections.
	pub := events.Open(cfg.Events.URL, cfg.Events.Subject)
	defer pub.Close()

	var store *history.Store
	if cfg.History.Path != "" {
		s, err := history.Open(cfg.History.Path)
		if err != nil {
			slog.Warn("Build history disabled", "error", err)
		} else {
			store = s
			defer store.Close()
		}
	}

	registry := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)

	factory := func(c *config.Config) daemon.BuildRunner {
		p := build.New(c).WithRecorder(recorder).WithPublisher(pub)
		if store != nil {
			p.WithHistory(store)
		}
		return p
	}

	d, err := daemon.New(cfg, configPath, factory)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}
	d.WithMetricsHandler(metrics.HTTPHandler(registry))

	slog.Info("Starting daemon mode")
	return d.Run(ctx)
}
