package app

import (
	"fmt"
	"time"

	"postpilot/internal/config"
	"postpilot/internal/dispatch"
	"postpilot/internal/platform"
	"postpilot/internal/post"
	"postpilot/internal/scheduler"
	"postpilot/internal/store"
	"postpilot/pkg/logx"
)

// Mapping helpers from the config file shape to component configs. Duration
// fields were validated by config.Validate, so parse errors here fall back
// to defaults instead of failing.

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func storeConfig(cfg *config.Config) store.Config {
	busy, _ := config.ParseDurationField("store.busy_timeout", cfg.Store.BusyTimeout)
	return store.Config{
		Driver:      cfg.Store.Driver,
		Path:        cfg.Store.Path,
		BusyTimeout: busy,
	}
}

func schedulerConfig(cfg *config.Config) scheduler.Config {
	interval, _ := config.ParseDurationOrDefault("scheduler.interval", cfg.Scheduler.Interval, 60*time.Second)
	stale, _ := config.ParseDurationField("scheduler.stale_posting_after", cfg.Scheduler.StalePostingAfter)
	return scheduler.Config{
		Interval:          interval,
		Workers:           cfg.Scheduler.Workers,
		QueueSize:         cfg.Scheduler.QueueSize,
		StalePostingAfter: stale,
	}
}

func dispatchConfig(cfg *config.Config) dispatch.Config {
	limits := map[post.Platform]dispatch.LimitConfig{}
	for name, pc := range cfg.Platforms {
		limits[post.Platform(name)] = dispatch.LimitConfig{
			MaxConcurrent: pc.MaxConcurrent,
			RatePerMin:    pc.RatePerMin,
		}
	}
	return dispatch.Config{
		PlatformLimits: limits,
		DefaultLimit:   dispatch.LimitConfig{MaxConcurrent: 1},
	}
}

// registerAdapters populates the registry with the built-in adapters for
// every enabled platform. Platforms without a built-in adapter (instagram,
// facebook, ...) are integrated externally through App.Registry().
func registerAdapters(reg *platform.Registry, cfg *config.Config, log logx.Logger) error {
	for name, pc := range cfg.Platforms {
		if !pc.Enabled {
			continue
		}
		switch post.Platform(name) {
		case post.PlatformTelegram:
			a, err := platform.NewTelegram(platform.TelegramConfig{
				Token:  pc.Token,
				ChatID: pc.ChatID,
			})
			if err != nil {
				return fmt.Errorf("platforms.telegram: %w", err)
			}
			reg.Register(a)
		case post.PlatformWebhook:
			timeout, _ := config.ParseDurationField("platforms.webhook.timeout", pc.Timeout)
			a, err := platform.NewWebhook(platform.WebhookConfig{
				URL:     pc.URL,
				Token:   pc.Token,
				Timeout: timeout,
			})
			if err != nil {
				return fmt.Errorf("platforms.webhook: %w", err)
			}
			reg.Register(a)
		default:
			log.Info("platform enabled, waiting for external adapter registration",
				logx.String("platform", name))
		}
	}
	return nil
}
