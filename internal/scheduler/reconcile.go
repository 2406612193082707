package scheduler

import (
	"context"
	"errors"
	"time"

	"postpilot/internal/post"
	"postpilot/internal/store"
	"postpilot/pkg/logx"
)

// reconcile fails posting jobs that have been stuck longer than the grace
// period. A job can only get stuck in posting when the process died mid
// publish; nothing else leaves that state open. Whether the publish actually
// landed on the platform is unknowable here, so the job is failed rather
// than re-scheduled to keep at-most-once semantics.
func (s *Service) reconcile(ctx context.Context, now time.Time, grace time.Duration) {
	stuck, err := s.store.ListByStatus(ctx, post.StatusPosting)
	if err != nil {
		s.log.Error("reconcile scan failed", logx.Err(err))
		return
	}

	for _, p := range stuck {
		age := now.Sub(p.UpdatedAt)
		if age < grace {
			continue
		}
		result := post.Failure(post.ClassConfiguration,
			"publish attempt stalled; outcome unknown (process likely crashed mid-dispatch)")
		err := s.store.UpdateStatus(ctx, p.ID, post.StatusPosting, post.StatusFailed, result)
		if errors.Is(err, store.ErrConflict) {
			// The owning worker finished between scan and CAS. Fine.
			continue
		}
		if err != nil {
			s.log.Error("reconcile update failed", logx.String("post", p.ID), logx.Err(err))
			continue
		}
		s.log.Warn("stalled post failed by reconciliation",
			logx.String("post", p.ID),
			logx.String("platform", string(p.Platform)),
			logx.Duration("age", age),
		)
	}
}
