// Package engine exposes the submission and query surface the external
// CLI/API layer consumes. It owns timezone normalization at creation time;
// content validation stays with the dispatcher.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"postpilot/internal/post"
	"postpilot/internal/store"
	"postpilot/pkg/logx"
)

// SubmitRequest is an incoming publish request.
type SubmitRequest struct {
	Platform      string       `json:"platform"`
	ContentType   string       `json:"content_type"`
	ScheduledTime string       `json:"scheduled_time"` // ISO-8601
	Content       post.Content `json:"content"`
}

type Service struct {
	store store.Store
	loc   *time.Location
	log   logx.Logger
}

// New creates the engine facade. Naive timestamps (no zone offset) are
// interpreted in loc; the store always persists and compares in UTC.
func New(st store.Store, loc *time.Location, log logx.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{store: st, loc: loc, log: log}
}

// Submit persists a new scheduled post and returns the stored record with
// its assigned id. Content shape is not validated here; the canonical
// validation runs at dispatch so the matrix has a single enforcement point.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (post.Post, error) {
	platform := post.Platform(strings.ToLower(strings.TrimSpace(req.Platform)))
	contentType := post.ContentType(strings.ToLower(strings.TrimSpace(req.ContentType)))
	if platform == "" {
		return post.Post{}, errors.New("platform is required")
	}
	if contentType == "" {
		return post.Post{}, errors.New("content_type is required")
	}

	when, err := s.parseTime(req.ScheduledTime)
	if err != nil {
		return post.Post{}, err
	}

	stored, err := s.store.Insert(ctx, post.Post{
		Platform:      platform,
		ContentType:   contentType,
		Content:       req.Content,
		ScheduledTime: when,
	})
	if err != nil {
		return post.Post{}, err
	}

	s.log.Info("post scheduled",
		logx.String("post", stored.ID),
		logx.String("platform", string(platform)),
		logx.String("type", string(contentType)),
		logx.Time("at", stored.ScheduledTime),
	)
	return stored, nil
}

// List returns posts matching the optional status filter, ordered by
// scheduled time ascending.
func (s *Service) List(ctx context.Context, statusFilter string) ([]post.Post, error) {
	status := post.Status(strings.ToLower(strings.TrimSpace(statusFilter)))
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("unknown status %q", statusFilter)
	}
	return s.store.ListByStatus(ctx, status)
}

// Get returns one post by id.
func (s *Service) Get(ctx context.Context, id string) (post.Post, error) {
	return s.store.Get(ctx, id)
}

// parseTime accepts RFC 3339 timestamps, with or without a zone offset.
// Offset-less values are interpreted in the configured location.
func (s *Service) parseTime(raw string) (time.Time, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return time.Time{}, errors.New("scheduled_time is required")
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", v, s.loc); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid scheduled_time %q: expected ISO-8601", raw)
}
