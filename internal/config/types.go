package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the engine's configuration file. JSON and YAML are both
// accepted; YAML is coerced to JSON before strict decoding, so unknown keys
// are rejected in either format.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Logging   LoggingConfig             `json:"logging"`
	Store     StoreConfig               `json:"store"`
	Scheduler SchedulerConfig           `json:"scheduler"`
	Platforms map[string]PlatformConfig `json:"platforms"`

	// Timezone is the IANA zone used to interpret offset-less scheduled
	// times at submission. Empty means UTC.
	Timezone string `json:"timezone,omitempty"`
}

type LoggingConfig struct {
	Level   string        `json:"level,omitempty"`
	Console bool          `json:"console"`
	File    LogFileConfig `json:"file,omitempty"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StoreConfig selects the job store backend.
type StoreConfig struct {
	Driver      string `json:"driver"`                 // "file" or "sqlite"
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// SchedulerConfig tunes the polling loop.
//
// Defaults (when fields are omitted/zero):
//   - interval: "60s"
//   - workers: 2
//   - queue_size: 256
//   - stale_posting_after: "0s" (reconciliation disabled)
type SchedulerConfig struct {
	Interval          string `json:"interval,omitempty"`
	Workers           int    `json:"workers,omitempty"`
	QueueSize         int    `json:"queue_size,omitempty"`
	StalePostingAfter string `json:"stale_posting_after,omitempty"`
}

// PlatformConfig enables one publish target and carries its adapter
// settings. Disabled platforms are never registered and resolve to
// not-found at dispatch time.
type PlatformConfig struct {
	Enabled bool `json:"enabled"`

	// Dispatch limits.
	MaxConcurrent int `json:"max_concurrent,omitempty"`
	RatePerMin    int `json:"rate_per_min,omitempty"`

	// Adapter settings. Which fields apply depends on the platform:
	// telegram uses token/chat_id, webhook uses url/token/timeout.
	Token   string `json:"token,omitempty"`
	ChatID  int64  `json:"chat_id,omitempty"`
	URL     string `json:"url,omitempty"`
	Timeout string `json:"timeout,omitempty"`
}

// Validate checks field-level consistency. It is installed as the manager's
// validation hook so a bad edit never reaches subscribers.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Store.Driver)) {
	case "", "file", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver)
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("store.path is required")
	}
	if _, err := ParseDurationField("store.busy_timeout", c.Store.BusyTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("scheduler.interval", c.Scheduler.Interval); err != nil {
		return err
	}
	if _, err := ParseDurationField("scheduler.stale_posting_after", c.Scheduler.StalePostingAfter); err != nil {
		return err
	}
	if tz := strings.TrimSpace(c.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}
	for name, pc := range c.Platforms {
		if _, err := ParseDurationField("platforms."+name+".timeout", pc.Timeout); err != nil {
			return err
		}
		if !pc.Enabled {
			continue
		}
		switch name {
		case "telegram":
			if strings.TrimSpace(pc.Token) == "" || pc.ChatID == 0 {
				return fmt.Errorf("platforms.telegram: token and chat_id are required when enabled")
			}
		case "webhook":
			if strings.TrimSpace(pc.URL) == "" {
				return fmt.Errorf("platforms.webhook: url is required when enabled")
			}
		}
	}
	return nil
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}
