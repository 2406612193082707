package scheduler

import (
	"sync/atomic"
	"time"
)

// Snapshot is a lightweight view of the loop for diagnostics.
type Snapshot struct {
	Running    bool
	Interval   time.Duration
	Workers    int
	Ticks      uint64
	Dispatched uint64
	Skipped    uint64
	InFlight   int
	QueueLen   int
	QueueCap   int
	LastTick   time.Time
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	cfg := s.cfg
	running := s.stopCh != nil
	q := s.queue
	s.mu.Unlock()

	snap := Snapshot{
		Running:    running,
		Interval:   cfg.Interval,
		Workers:    cfg.Workers,
		Ticks:      atomic.LoadUint64(&s.ticks),
		Dispatched: atomic.LoadUint64(&s.dispatched),
		Skipped:    atomic.LoadUint64(&s.skipped),
		InFlight:   int(atomic.LoadInt32(&s.inFlight)),
	}
	if q != nil {
		snap.QueueLen = len(q)
		snap.QueueCap = cap(q)
	}
	if ns := s.lastTick.Load(); ns != 0 {
		snap.LastTick = time.Unix(0, ns).UTC()
	}
	return snap
}
