// Package scheduler runs the polling loop that feeds due jobs to the
// dispatcher.
//
// The loop state machine is Idle -> Tick -> Dispatching -> Idle on a fixed
// interval until stopped. Each tick lists due jobs from the store and hands
// them to a bounded worker pool; the store's compare-and-swap makes
// double-claims from overlapping ticks safe.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"postpilot/internal/dispatch"
	"postpilot/internal/eventbus"
	"postpilot/internal/post"
	"postpilot/internal/store"
	"postpilot/pkg/logx"
)

// TickEvent is the payload published on the event bus after each scan.
type TickEvent struct {
	Due int `json:"due"`
}

// Config tunes the polling loop.
type Config struct {
	// Interval between due-job scans. <= 0 means 60s.
	Interval time.Duration
	// Workers bounds dispatch fan-out. <= 0 means 2.
	Workers int
	// QueueSize bounds the dispatch backlog. <= 0 means 256.
	QueueSize int
	// StalePostingAfter enables the reconciliation pass: posting jobs whose
	// last update is older than this are failed. 0 disables the pass.
	StalePostingAfter time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 60 * time.Second
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	return c
}

// Service is the scheduler loop.
type Service struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger

	store      store.Store
	dispatcher *dispatch.Dispatcher
	bus        eventbus.Bus // optional

	c      *cron.Cron
	queue  chan post.Post
	stopCh chan struct{}
	wg     sync.WaitGroup

	ticks      uint64
	dispatched uint64
	skipped    uint64
	inFlight   int32
	lastTick   atomic.Int64 // unix nano
}

func New(cfg Config, st store.Store, d *dispatch.Dispatcher, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:        cfg.withDefaults(),
		log:        log,
		store:      st,
		dispatcher: d,
		bus:        bus,
	}
}

// Start launches the loop. It runs one catch-up tick immediately so overdue
// jobs are not delayed by a full interval after restart.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return nil
	}

	cfg := s.cfg
	s.stopCh = make(chan struct{})
	s.queue = make(chan post.Post, cfg.QueueSize)

	for i := 0; i < cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, s.stopCh, s.queue)
	}

	s.c = cron.New()
	if _, err := s.c.AddFunc("@every "+cfg.Interval.String(), func() { s.tick(ctx) }); err != nil {
		close(s.stopCh)
		s.stopCh = nil
		return err
	}
	s.c.Start()

	// Catch-up scan for jobs that came due while the process was down.
	go s.tick(ctx)

	s.log.Info("scheduler started",
		logx.Duration("interval", cfg.Interval),
		logx.Int("workers", cfg.Workers),
	)
	return nil
}

// Stop halts the trigger, drains nothing, and waits for in-flight dispatches
// bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.stopCh = nil
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out", logx.Err(ctx.Err()))
	}
}

// Apply updates the loop configuration. An interval change restarts the
// trigger; limits of already-running workers are left alone.
func (s *Service) Apply(ctx context.Context, cfg Config) {
	cfg = cfg.withDefaults()

	s.mu.Lock()
	prev := s.cfg
	s.cfg = cfg
	running := s.stopCh != nil
	s.mu.Unlock()

	if !running || prev.Interval == cfg.Interval && prev.Workers == cfg.Workers && prev.QueueSize == cfg.QueueSize {
		return
	}
	s.log.Info("scheduler config changed; restarting loop",
		logx.Duration("interval", cfg.Interval),
		logx.Int("workers", cfg.Workers),
	)
	s.Stop(ctx)
	_ = s.Start(ctx)
}

// tick scans for due jobs and queues them for dispatch. A tick must never
// panic the loop; job-level failures are isolated inside the dispatcher.
func (s *Service) tick(ctx context.Context) {
	now := time.Now().UTC()
	atomic.AddUint64(&s.ticks, 1)
	s.lastTick.Store(now.UnixNano())

	s.mu.Lock()
	queue := s.queue
	stopCh := s.stopCh
	cfg := s.cfg
	s.mu.Unlock()
	if queue == nil || stopCh == nil {
		return
	}

	if cfg.StalePostingAfter > 0 {
		s.reconcile(ctx, now, cfg.StalePostingAfter)
	}

	due, err := s.store.ListDue(ctx, now)
	if err != nil {
		s.log.Error("due-job scan failed", logx.Err(err))
		return
	}
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeTick, Time: now, Data: TickEvent{Due: len(due)}})
	}
	if len(due) == 0 {
		s.log.Debug("tick: nothing due")
		return
	}
	s.log.Debug("tick", logx.Int("due", len(due)))

	for _, p := range due {
		select {
		case queue <- p:
			atomic.AddUint64(&s.dispatched, 1)
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		default:
			// Queue full: the job stays scheduled and is picked up on a
			// later tick. Never silently skipped for good.
			atomic.AddUint64(&s.skipped, 1)
			s.log.Warn("dispatch queue full; deferring job",
				logx.String("post", p.ID),
				logx.Int("queue_cap", cap(queue)),
			)
		}
	}
}

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan post.Post) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case p := <-queue:
			atomic.AddInt32(&s.inFlight, 1)
			s.dispatcher.Execute(ctx, p)
			atomic.AddInt32(&s.inFlight, -1)
		}
	}
}
