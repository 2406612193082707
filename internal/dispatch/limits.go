package dispatch

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"postpilot/internal/post"
)

// LimitConfig caps publish traffic for one platform.
type LimitConfig struct {
	// MaxConcurrent bounds simultaneous Publish calls. <= 0 means 1.
	MaxConcurrent int
	// RatePerMin throttles Publish calls per minute. <= 0 disables throttling.
	RatePerMin int
}

// platformGate is a channel-based semaphore plus an optional rate limiter.
// Tokens are pre-filled up to the concurrency limit, which is fixed for the
// life of the gate.
type platformGate struct {
	ch  chan struct{}
	lim *rate.Limiter
}

func newPlatformGate(cfg LimitConfig) *platformGate {
	n := cfg.MaxConcurrent
	if n <= 0 {
		n = 1
	}
	g := &platformGate{ch: make(chan struct{}, n)}
	for i := 0; i < n; i++ {
		g.ch <- struct{}{}
	}
	if cfg.RatePerMin > 0 {
		g.lim = rate.NewLimiter(rate.Limit(float64(cfg.RatePerMin)/60.0), 1)
	}
	return g
}

// acquire blocks until a concurrency slot and a rate token are available.
func (g *platformGate) acquire(ctx context.Context) error {
	select {
	case <-g.ch:
	case <-ctx.Done():
		return ctx.Err()
	}
	if g.lim != nil {
		if err := g.lim.Wait(ctx); err != nil {
			g.release()
			return err
		}
	}
	return nil
}

func (g *platformGate) release() {
	// Best-effort: never block on release.
	select {
	case g.ch <- struct{}{}:
	default:
	}
}

// gateStore holds one gate per platform. Limits are resolved from config at
// first use and kept for the life of the store.
type gateStore struct {
	mu       sync.Mutex
	limits   map[post.Platform]LimitConfig
	fallback LimitConfig
	gates    map[post.Platform]*platformGate
}

func newGateStore(limits map[post.Platform]LimitConfig, fallback LimitConfig) *gateStore {
	return &gateStore{
		limits:   limits,
		fallback: fallback,
		gates:    map[post.Platform]*platformGate{},
	}
}

func (s *gateStore) get(p post.Platform) *platformGate {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.gates[p]
	if g == nil {
		cfg, ok := s.limits[p]
		if !ok {
			cfg = s.fallback
		}
		g = newPlatformGate(cfg)
		s.gates[p] = g
	}
	return g
}
