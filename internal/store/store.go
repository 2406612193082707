package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"postpilot/internal/post"
	"postpilot/pkg/logx"
)

var (
	// ErrNotFound is returned when no post exists with the given id.
	ErrNotFound = errors.New("post not found")
	// ErrConflict is returned by UpdateStatus when the persisted status does
	// not match the expected prior status. Callers must not retry the same
	// transition; another worker already owns the job.
	ErrConflict = errors.New("status conflict")
	// ErrDuplicateID is returned by Insert when the id is already taken.
	ErrDuplicateID = errors.New("duplicate post id")
	// ErrBadTransition is returned when the requested from->to pair is not a
	// legal forward transition, regardless of current state.
	ErrBadTransition = errors.New("illegal status transition")
)

// Config selects and configures the persistence backend.
//
// Driver values:
//   - "file":   atomic-rewrite JSON snapshot (dependency-free)
//   - "sqlite": SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the durable collection of scheduled posts. It is the single
// source of truth for job state and the only shared mutable resource in the
// engine; all mutation goes through the UpdateStatus compare-and-swap.
type Store interface {
	// Insert persists a new post. A missing id is assigned; a duplicate id is
	// rejected. Status is forced to scheduled, the scheduled time is
	// normalized to UTC and timestamps are set. Returns the stored record.
	Insert(ctx context.Context, p post.Post) (post.Post, error)

	// Get returns the post with the given id.
	Get(ctx context.Context, id string) (post.Post, error)

	// ListByStatus returns posts with the given status, or all posts when
	// status is empty, ordered by scheduled time ascending.
	ListByStatus(ctx context.Context, status post.Status) ([]post.Post, error)

	// ListDue returns scheduled posts with scheduledTime <= now, ordered by
	// scheduled time ascending.
	ListDue(ctx context.Context, now time.Time) ([]post.Post, error)

	// UpdateStatus atomically applies from->to if and only if the persisted
	// status equals from. On mismatch it returns ErrConflict. A result may
	// only accompany a transition into a terminal state.
	UpdateStatus(ctx context.Context, id string, from, to post.Status, result *post.Result) error

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown store driver: " + cfg.Driver)
	}
}

// checkTransition validates the from->to pair and the result placement.
// Shared by both drivers so they stay behaviorally identical.
func checkTransition(from, to post.Status, result *post.Result) error {
	if !post.AllowedTransition(from, to) {
		return ErrBadTransition
	}
	if result != nil && !to.Terminal() {
		return ErrBadTransition
	}
	return nil
}
