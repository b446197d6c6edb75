package config

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
)

// Validate checks well-formedness of the loaded configuration. Build
// readiness (e.g. whether the render harness exists on disk) is checked
// when the build actually runs.
func (c *Config) Validate() error {
	if _, err := language.Parse(c.Site.Lang); err != nil {
		return fmt.Errorf("site.lang %q is not a valid BCP 47 tag: %w", c.Site.Lang, err)
	}
	if c.Build.RenderConcurrency < 0 {
		return fmt.Errorf("build.render_concurrency must not be negative, got %d", c.Build.RenderConcurrency)
	}
	if c.Daemon.Interval != "" {
		d, err := time.ParseDuration(c.Daemon.Interval)
		if err != nil {
			return fmt.Errorf("daemon.interval %q is not a duration: %w", c.Daemon.Interval, err)
		}
		if d <= 0 {
			return fmt.Errorf("daemon.interval must be positive, got %s", c.Daemon.Interval)
		}
	}
	return nil
}

// IntervalDuration returns the parsed daemon rebuild interval. Validate
// has already rejected malformed values; a zero config falls back to 30m.
func (d DaemonConfig) IntervalDuration() time.Duration {
	parsed, err := time.ParseDuration(d.Interval)
	if err != nil || parsed <= 0 {
		return 30 * time.Minute
	}
	return parsed
}
