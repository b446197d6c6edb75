package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Build   BuildConfig   `yaml:"build"`
	Render  RenderConfig  `yaml:"render"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
	History HistoryConfig `yaml:"history,omitempty"`
	Events  EventsConfig  `yaml:"events,omitempty"`
	Daemon  DaemonConfig  `yaml:"daemon,omitempty"`
}

// SiteConfig points at the prepared site model and carries site-wide
// fallbacks applied when the model file omits them.
type SiteConfig struct {
	Source string `yaml:"source"` // directory containing site.yaml and public assets
	Title  string `yaml:"title,omitempty"`
	Lang   string `yaml:"lang,omitempty"`
}

// BuildConfig controls a single build run.
type BuildConfig struct {
	OutputDir         string `yaml:"output_dir"`
	Production        bool   `yaml:"production"`         // passed into compiler target payloads
	RenderConcurrency int    `yaml:"render_concurrency"` // 0 = unbounded
	VerifyLinks       bool   `yaml:"verify_links"`
	GitMeta           bool   `yaml:"git_meta"` // stamp last-modified meta from git history
}

// RenderConfig configures the JS toolchain sidecar.
type RenderConfig struct {
	Runtime  string   `yaml:"runtime,omitempty"`  // runtime binary, resolved via PATH
	Harness  string   `yaml:"harness"`            // harness script executed by the runtime
	Template string   `yaml:"template,omitempty"` // HTML shell override; empty uses the packaged shell
	Args     []string `yaml:"args,omitempty"`     // extra runtime arguments
}

// HistoryConfig enables the build history store when Path is set.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty"`
}

// EventsConfig enables NATS build lifecycle events when URL is set.
type EventsConfig struct {
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// DaemonConfig controls scheduled rebuild mode.
type DaemonConfig struct {
	Interval    string `yaml:"interval,omitempty"` // Go duration string, e.g. "30m"
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// Load loads configuration from the specified file
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	if err := loadEnvFile(); err != nil {
		// Don't fail if .env doesn't exist, just log it
		fmt.Fprintf(os.Stderr, "Note: .env file not found or couldn't be loaded: %v\n", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Site.Title == "" {
		c.Site.Title = "Staticpress"
	}
	if c.Site.Lang == "" {
		c.Site.Lang = "en"
	}
	if c.Site.Source == "" {
		c.Site.Source = "."
	}
	if c.Build.OutputDir == "" {
		c.Build.OutputDir = "./dist"
	}
	if c.Render.Runtime == "" {
		c.Render.Runtime = "bun"
	}
	if c.Events.Subject == "" {
		c.Events.Subject = "staticpress.build"
	}
	if c.Daemon.Interval == "" {
		c.Daemon.Interval = "30m"
	}
}

// Init creates a new configuration file with example content
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	exampleConfig := Config{
		Site: SiteConfig{
			Source: ".",
			Title:  "My Site",
			Lang:   "en-US",
		},
		Build: BuildConfig{
			OutputDir:         "./dist",
			Production:        true,
			RenderConcurrency: 0,
			VerifyLinks:       true,
		},
		Render: RenderConfig{
			Runtime: "bun",
			Harness: "./render/harness.ts",
		},
		Logging: LoggingConfig{
			Level:  string(LogLevelInfo),
			Format: string(LogFormatText),
		},
		History: HistoryConfig{
			Path: "./staticpress-history.db",
		},
		Daemon: DaemonConfig{
			Interval: "30m",
		},
	}

	data, err := yaml.Marshal(&exampleConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// loadEnvFile loads environment variables from .env/.env.local files.
// It attempts each supported filename in order and stops at the first
// successfully parsed file. Existing process variables are not overridden.
func loadEnvFile() error {
	envPaths := []string{".env", ".env.local"}
	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err == nil {
			fmt.Fprintf(os.Stderr, "Loaded environment variables from %s\n", envPath)
			return nil
		}
	}
	return fmt.Errorf("no .env file found")
}
