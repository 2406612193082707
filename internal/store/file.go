package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"postpilot/internal/post"
	"postpilot/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// The whole collection lives in one JSON snapshot. Every mutation rewrites
// the snapshot via write-to-temp-then-rename, so a crash mid-write never
// leaves a truncated or half-written store, and concurrent readers always
// observe a fully committed state.
type fileStore struct {
	log logx.Logger

	mu    sync.RWMutex
	path  string
	posts map[string]post.Post
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("store.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{log: log, path: path, posts: map[string]post.Post{}}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *fileStore) load() error {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	var list []post.Post
	if err := json.NewDecoder(f).Decode(&list); err != nil {
		return err
	}
	for _, p := range list {
		s.posts[p.ID] = p
	}
	s.log.Debug("store loaded", logx.String("path", s.path), logx.Int("posts", len(list)))
	return nil
}

// flushLocked rewrites the snapshot atomically. Caller holds s.mu.
func (s *fileStore) flushLocked() error {
	list := make([]post.Post, 0, len(s.posts))
	for _, p := range s.posts {
		list = append(list, p)
	}
	sortBySchedule(list)

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(list); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) Insert(ctx context.Context, p post.Post) (post.Post, error) {
	_ = ctx
	now := time.Now().UTC()

	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Status = post.StatusScheduled
	p.Result = nil
	p.ScheduledTime = p.ScheduledTime.UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.posts[p.ID]; exists {
		return post.Post{}, ErrDuplicateID
	}
	s.posts[p.ID] = p
	if err := s.flushLocked(); err != nil {
		delete(s.posts, p.ID)
		return post.Post{}, err
	}
	return p, nil
}

func (s *fileStore) Get(ctx context.Context, id string) (post.Post, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return post.Post{}, ErrNotFound
	}
	return p, nil
}

func (s *fileStore) ListByStatus(ctx context.Context, status post.Status) ([]post.Post, error) {
	_ = ctx
	s.mu.RLock()
	out := make([]post.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if status == "" || p.Status == status {
			out = append(out, p)
		}
	}
	s.mu.RUnlock()

	sortBySchedule(out)
	return out, nil
}

func (s *fileStore) ListDue(ctx context.Context, now time.Time) ([]post.Post, error) {
	_ = ctx
	s.mu.RLock()
	out := make([]post.Post, 0, 8)
	for _, p := range s.posts {
		if p.Due(now) {
			out = append(out, p)
		}
	}
	s.mu.RUnlock()

	sortBySchedule(out)
	return out, nil
}

func (s *fileStore) UpdateStatus(ctx context.Context, id string, from, to post.Status, result *post.Result) error {
	_ = ctx
	if err := checkTransition(from, to, result); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return ErrNotFound
	}
	if p.Status != from {
		return ErrConflict
	}

	prev := p
	p.Status = to
	p.Result = result
	p.UpdatedAt = time.Now().UTC()
	s.posts[id] = p

	if err := s.flushLocked(); err != nil {
		s.posts[id] = prev
		return err
	}
	return nil
}

func sortBySchedule(list []post.Post) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].ScheduledTime.Equal(list[j].ScheduledTime) {
			return list[i].ID < list[j].ID
		}
		return list[i].ScheduledTime.Before(list[j].ScheduledTime)
	})
}
