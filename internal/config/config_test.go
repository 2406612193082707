package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validYAML = `
logging:
  level: debug
  console: true
store:
  driver: sqlite
  path: /tmp/posts.db
  busy_timeout: 5s
scheduler:
  interval: 30s
  workers: 4
  stale_posting_after: 10m
timezone: Europe/Berlin
platforms:
  telegram:
    enabled: true
    token: "123:abc"
    chat_id: -100200300
    max_concurrent: 2
    rate_per_min: 20
  webhook:
    enabled: false
`

func TestLoadYAML(t *testing.T) {
	m := NewManager(writeConfig(t, "config.yaml", validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.Path != "/tmp/posts.db" {
		t.Fatalf("store config wrong: %+v", cfg.Store)
	}
	if cfg.Scheduler.Interval != "30s" || cfg.Scheduler.Workers != 4 {
		t.Fatalf("scheduler config wrong: %+v", cfg.Scheduler)
	}
	tg, ok := cfg.Platforms["telegram"]
	if !ok || !tg.Enabled || tg.ChatID != -100200300 || tg.RatePerMin != 20 {
		t.Fatalf("telegram config wrong: %+v", tg)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get did not return the committed config")
	}
	if loc := cfg.Location(); loc.String() != "Europe/Berlin" {
		t.Fatalf("location = %v", loc)
	}
}

func TestLoadJSON(t *testing.T) {
	m := NewManager(writeConfig(t, "config.json",
		`{"store": {"driver": "file", "path": "/tmp/posts.json"}}`))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != "file" {
		t.Fatalf("store config wrong: %+v", cfg.Store)
	}
	if cfg.Location() != time.UTC {
		t.Fatal("empty timezone must resolve to UTC")
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	m := NewManager(writeConfig(t, "config.yaml", `
store:
  driver: file
  path: /tmp/posts.json
  flush_interval: 5s
`))
	if _, err := m.Parse(); err == nil {
		t.Fatal("unknown key accepted")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{Store: StoreConfig{Driver: "file", Path: "/tmp/p.json"}}
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "redis" }, "store.driver"},
		{"missing path", func(c *Config) { c.Store.Path = "" }, "store.path"},
		{"bad interval", func(c *Config) { c.Scheduler.Interval = "soon" }, "scheduler.interval"},
		{"negative stale", func(c *Config) { c.Scheduler.StalePostingAfter = "-1m" }, "stale_posting_after"},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "timezone"},
		{
			"telegram without token",
			func(c *Config) { c.Platforms = map[string]PlatformConfig{"telegram": {Enabled: true}} },
			"platforms.telegram",
		},
		{
			"webhook without url",
			func(c *Config) { c.Platforms = map[string]PlatformConfig{"webhook": {Enabled: true}} },
			"platforms.webhook",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := base()
			c.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), c.want) {
				t.Fatalf("expected error mentioning %q, got %v", c.want, err)
			}
		})
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	// Disabled platforms skip the adapter-settings checks.
	cfg := base()
	cfg.Platforms = map[string]PlatformConfig{"telegram": {Enabled: false}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled platform validated: %v", err)
	}
}

func TestParseDurationField(t *testing.T) {
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty: %v %v", d, err)
	}
	if d, err := ParseDurationField("x", " 1500ms "); err != nil || d != 1500*time.Millisecond {
		t.Fatalf("padded: %v %v", d, err)
	}
	if _, err := ParseDurationField("x", "5"); err == nil {
		t.Fatal("unitless value accepted")
	}
	if _, err := ParseDurationField("x", "-2s"); err == nil {
		t.Fatal("negative value accepted")
	}
	if d, err := ParseDurationOrDefault("x", "", 7*time.Second); err != nil || d != 7*time.Second {
		t.Fatalf("default: %v %v", d, err)
	}
}

func TestWatchPublishesValidatedReloads(t *testing.T) {
	path := writeConfig(t, "config.yaml", validYAML)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	sub := m.Subscribe(4)
	defer m.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchErr := make(chan error, 1)
	go func() { watchErr <- m.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond) // let the watcher install

	// An invalid edit must never reach subscribers.
	if err := os.WriteFile(path, []byte(`{"store": {"driver": "file"}}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case cfg := <-sub:
		t.Fatalf("invalid config published: %+v", cfg)
	case <-time.After(600 * time.Millisecond):
	}

	updated := strings.Replace(validYAML, "interval: 30s", "interval: 45s", 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case cfg := <-sub:
		if cfg.Scheduler.Interval != "45s" {
			t.Fatalf("stale config published: %+v", cfg.Scheduler)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("reload not published")
	}

	cancel()
	select {
	case err := <-watchErr:
		if err != nil && err != context.Canceled {
			t.Fatalf("watch: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}
