// Package platform defines the pluggable publisher interface and the
// registry the dispatcher resolves adapters from.
//
// Adapters authenticate independently and own their network timeouts; the
// engine never inspects their internals, it only classifies their errors.
package platform

import (
	"context"
	"errors"
	"fmt"

	"postpilot/internal/post"
)

// PublishResult identifies the post created on the external platform.
type PublishResult struct {
	ExternalID  string
	ExternalURL string
}

// Adapter is the single capability a platform integration must expose.
type Adapter interface {
	// Name returns the platform identifier the adapter serves.
	Name() post.Platform

	// Publish sends the post's content to the platform. It either returns
	// the external identifiers or an error, preferably a *PublishError so
	// the failure can be classified.
	Publish(ctx context.Context, p post.Post) (PublishResult, error)
}

// PublishError is a classified publish failure.
type PublishError struct {
	Class post.Classification
	Cause string
	Err   error // optional underlying error
}

func (e *PublishError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Class, e.Cause, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Cause)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Errf builds a classified publish error.
func Errf(class post.Classification, format string, args ...any) *PublishError {
	return &PublishError{Class: class, Cause: fmt.Sprintf(format, args...)}
}

// Classify extracts the coarse classification from a publish error.
// Unclassified errors (including context timeouts) map to transient-network
// or unknown.
func Classify(err error) post.Classification {
	if err == nil {
		return ""
	}
	var pe *PublishError
	if errors.As(err, &pe) {
		return pe.Class
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return post.ClassTransientNetwork
	}
	return post.ClassUnknown
}
