// Package post defines the scheduled-post domain model shared by the store,
// dispatcher and scheduler.
package post

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a scheduled post.
//
// Transitions only move forward:
//
//	scheduled -> posting -> posted
//	                     -> failed
//
// A post never re-enters scheduled or posting after reaching a terminal state.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusPosting   Status = "posting"
	StatusPosted    Status = "posted"
	StatusFailed    Status = "failed"
)

// Terminal reports whether s is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusPosted || s == StatusFailed
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusPosting, StatusPosted, StatusFailed:
		return true
	}
	return false
}

// Platform identifies a publish target. The set is extensible by adapter
// registration; these constants cover the built-in validation matrix.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformYouTube   Platform = "youtube"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformTelegram  Platform = "telegram"
	PlatformWebhook   Platform = "webhook"
)

// ContentType identifies the shape of a post's content payload.
// Which types a platform accepts is defined by the validation matrix.
type ContentType string

const (
	TypeText     ContentType = "text"
	TypePhoto    ContentType = "photo"
	TypeCarousel ContentType = "carousel"
	TypeVideo    ContentType = "video"
	TypeReels    ContentType = "reels"
	TypeImage    ContentType = "image"
)

// Content is the opaque structured payload of a post. Required keys depend on
// (platform, content type); see the validate package.
type Content map[string]any

// Text returns the string value for key, trimmed. Missing or non-string
// values yield "".
func (c Content) Text(key string) string {
	v, ok := c[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// List returns the string-slice value for key. JSON decoding produces
// []any, so both representations are accepted.
func (c Content) List(key string) []string {
	switch v := c[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Post is the sole persisted entity. It is created by the submission
// interface and mutated exclusively by the scheduler/dispatcher pair.
type Post struct {
	ID            string      `json:"id"`
	Platform      Platform    `json:"platform"`
	ContentType   ContentType `json:"content_type"`
	Content       Content     `json:"content"`
	ScheduledTime time.Time   `json:"scheduled_time"`
	Status        Status      `json:"status"`
	Result        *Result     `json:"result,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Due reports whether the post is eligible for dispatch at now. Late posts
// stay eligible indefinitely; there is no deadline expiry.
func (p *Post) Due(now time.Time) bool {
	return p.Status == StatusScheduled && !p.ScheduledTime.After(now)
}

// Result records the terminal outcome of a dispatch. Exactly one of the
// success fields or Error is populated.
type Result struct {
	ExternalID  string `json:"external_id,omitempty"`
	ExternalURL string `json:"external_url,omitempty"`
	Error       *Error `json:"error,omitempty"`
}

// OK reports whether the result describes a successful publish.
func (r *Result) OK() bool { return r != nil && r.Error == nil }

// Success builds a terminal success result.
func Success(externalID, externalURL string) *Result {
	return &Result{ExternalID: externalID, ExternalURL: externalURL}
}

// Failure builds a terminal failure result.
func Failure(class Classification, cause string) *Result {
	return &Result{Error: &Error{Classification: class, Cause: cause}}
}
