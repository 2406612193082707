// Package dispatch executes one due job end to end: claim, validate,
// resolve, publish, record.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"postpilot/internal/eventbus"
	"postpilot/internal/platform"
	"postpilot/internal/post"
	"postpilot/internal/store"
	"postpilot/internal/validate"
	"postpilot/pkg/logx"
)

// PostEvent is the payload published on the event bus for job outcomes.
type PostEvent struct {
	ID             string              `json:"id"`
	Platform       post.Platform       `json:"platform"`
	ExternalID     string              `json:"external_id,omitempty"`
	Classification post.Classification `json:"classification,omitempty"`
}

// Config tunes dispatch behavior.
type Config struct {
	// PlatformLimits caps publish traffic per platform.
	PlatformLimits map[post.Platform]LimitConfig
	// DefaultLimit applies to platforms without an explicit entry.
	DefaultLimit LimitConfig
}

// Dispatcher runs due jobs. It never retries: a job gets exactly one publish
// attempt and then a terminal status. Errors never escape Execute, so one
// failing job cannot take down the scheduler loop.
type Dispatcher struct {
	store store.Store
	reg   *platform.Registry
	gates *gateStore
	bus   eventbus.Bus // optional
	log   logx.Logger
}

func New(cfg Config, st store.Store, reg *platform.Registry, bus eventbus.Bus, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	fallback := cfg.DefaultLimit
	if fallback.MaxConcurrent <= 0 {
		fallback.MaxConcurrent = 1
	}
	return &Dispatcher{
		store: st,
		reg:   reg,
		gates: newGateStore(cfg.PlatformLimits, fallback),
		bus:   bus,
		log:   log,
	}
}

// Execute processes one due post. Side effects only; the outcome lands in
// the job store.
func (d *Dispatcher) Execute(ctx context.Context, p post.Post) {
	log := d.log.With(
		logx.String("post", p.ID),
		logx.String("platform", string(p.Platform)),
		logx.String("type", string(p.ContentType)),
	)

	// Guard against adapter panics: one bad adapter must not kill a worker.
	defer func() {
		if r := recover(); r != nil {
			log.Error("dispatch panic", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			d.finish(ctx, log, p, post.Failure(post.ClassUnknown, fmt.Sprintf("panic: %v", r)))
		}
	}()

	// Claim. Losing the CAS means another tick already owns this job.
	err := d.store.UpdateStatus(ctx, p.ID, post.StatusScheduled, post.StatusPosting, nil)
	if errors.Is(err, store.ErrConflict) {
		log.Debug("post already claimed")
		return
	}
	if err != nil {
		log.Error("claim failed", logx.Err(err))
		return
	}

	// Validate before any network call.
	if err := validate.Validate(p.Platform, p.ContentType, p.Content); err != nil {
		log.Warn("post rejected by validator", logx.Err(err))
		d.finish(ctx, log, p, post.Failure(post.ClassValidation, err.Error()))
		return
	}

	// Resolve the adapter.
	adapter, err := d.reg.Resolve(p.Platform)
	if err != nil {
		log.Warn("platform not available")
		d.finish(ctx, log, p, post.Failure(post.ClassConfiguration,
			fmt.Sprintf("platform %s is not enabled", p.Platform)))
		return
	}

	// Respect the per-platform concurrency cap and rate budget.
	gate := d.gates.get(p.Platform)
	if err := gate.acquire(ctx); err != nil {
		// Shutdown while waiting for a slot. Leave the job in posting; the
		// reconciliation pass picks it up.
		log.Warn("dispatch aborted waiting for platform slot", logx.Err(err))
		return
	}

	start := time.Now()
	res, pubErr := adapter.Publish(ctx, p)
	gate.release()

	if pubErr != nil {
		class := platform.Classify(pubErr)
		log.Warn("publish failed",
			logx.String("class", string(class)),
			logx.Err(pubErr),
			logx.Duration("dur", time.Since(start)),
		)
		d.finish(ctx, log, p, post.Failure(class, pubErr.Error()))
		return
	}

	log.Info("post published",
		logx.String("external_id", res.ExternalID),
		logx.Duration("dur", time.Since(start)),
	)
	d.finish(ctx, log, p, post.Success(res.ExternalID, res.ExternalURL))
}

// finish records the terminal state for a job we own (status posting).
func (d *Dispatcher) finish(ctx context.Context, log logx.Logger, p post.Post, result *post.Result) {
	to := post.StatusPosted
	if !result.OK() {
		to = post.StatusFailed
	}
	if err := d.store.UpdateStatus(ctx, p.ID, post.StatusPosting, to, result); err != nil {
		// Should not happen while we hold the claim; surface loudly.
		log.Error("failed to record result", logx.String("to", string(to)), logx.Err(err))
		return
	}
	if d.bus == nil {
		return
	}
	ev := PostEvent{ID: p.ID, Platform: p.Platform}
	typ := eventbus.TypePostPublished
	if result.OK() {
		ev.ExternalID = result.ExternalID
	} else {
		typ = eventbus.TypePostFailed
		ev.Classification = result.Error.Classification
	}
	d.bus.Publish(eventbus.Event{Type: typ, Data: ev})
}
