// Package app wires the engine together: config, logging, store, adapter
// registry, dispatcher and scheduler loop.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"postpilot/internal/config"
	"postpilot/internal/dispatch"
	"postpilot/internal/engine"
	"postpilot/internal/eventbus"
	"postpilot/internal/platform"
	"postpilot/internal/scheduler"
	"postpilot/internal/store"
	"postpilot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger

	store    store.Store
	registry *platform.Registry
	engine   *engine.Service
	sched    *scheduler.Service
	bus      eventbus.Bus

	mu       sync.Mutex
	stopOnce sync.Once
	cancelBg context.CancelFunc
	bgWG     sync.WaitGroup
	cfgSub   chan *config.Config
}

// New loads the config file and builds all components. Nothing runs until
// Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logs, log := logx.New(logConfig(cfg))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	st, err := store.Open(storeConfig(cfg), log.With(logx.String("comp", "store")))
	if err != nil {
		logs.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	registry := platform.NewRegistry()
	if err := registerAdapters(registry, cfg, log); err != nil {
		_ = st.Close()
		logs.Close()
		return nil, err
	}

	bus := eventbus.New()
	d := dispatch.New(dispatchConfig(cfg), st, registry, bus, log.With(logx.String("comp", "dispatch")))
	sched := scheduler.New(schedulerConfig(cfg), st, d, bus, log.With(logx.String("comp", "scheduler")))

	return &App{
		cfgm:     cfgm,
		logs:     logs,
		log:      log,
		store:    st,
		registry: registry,
		engine:   engine.New(st, cfg.Location(), log.With(logx.String("comp", "engine"))),
		sched:    sched,
		bus:      bus,
	}, nil
}

// Bus exposes lifecycle events (post published/failed, ticks) to observers.
func (a *App) Bus() eventbus.Bus { return a.bus }

// Engine returns the submission/query facade for the CLI/API layer.
func (a *App) Engine() *engine.Service { return a.engine }

// Registry returns the adapter registry so external platform integrations
// can register their publishers before Start.
func (a *App) Registry() *platform.Registry { return a.registry }

// Scheduler returns the loop for operational snapshots.
func (a *App) Scheduler() *scheduler.Service { return a.sched }

// Start launches the scheduler loop and the config watcher.
func (a *App) Start(ctx context.Context) error {
	if err := a.sched.Start(ctx); err != nil {
		return err
	}

	bgCtx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.cancelBg = cancel
	a.cfgSub = a.cfgm.Subscribe(1)
	sub := a.cfgSub
	a.mu.Unlock()

	a.bgWG.Add(2)
	go func() {
		defer a.bgWG.Done()
		_ = a.cfgm.Watch(bgCtx)
	}()
	go func() {
		defer a.bgWG.Done()
		a.applyLoop(bgCtx, sub)
	}()

	a.log.Info("postpilot started",
		logx.Any("platforms", a.registry.Platforms()),
	)
	return nil
}

// applyLoop re-applies hot-reloadable settings when the config file changes.
// The store driver and registry are fixed for the process lifetime.
func (a *App) applyLoop(ctx context.Context, sub chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			a.logs.Apply(logConfig(cfg))
			a.sched.Apply(ctx, schedulerConfig(cfg))
		}
	}
}

// Stop shuts everything down, waiting for in-flight dispatches bounded by
// ctx.
func (a *App) Stop(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		a.mu.Lock()
		cancel := a.cancelBg
		sub := a.cfgSub
		a.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		a.sched.Stop(ctx)
		if sub != nil {
			a.cfgm.Unsubscribe(sub)
		}

		done := make(chan struct{})
		go func() {
			a.bgWG.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}

		err = a.store.Close()
		a.log.Info("postpilot stopped")
		a.logs.Close()
	})
	return err
}
