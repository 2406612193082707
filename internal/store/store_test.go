package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"postpilot/internal/post"
	"postpilot/pkg/logx"
)

func openTestStore(t *testing.T, driver string) Store {
	t.Helper()
	cfg := Config{Driver: driver, Path: filepath.Join(t.TempDir(), "posts."+driver)}
	s, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("open %s store: %v", driver, err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func forEachDriver(t *testing.T, fn func(t *testing.T, s Store)) {
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			fn(t, openTestStore(t, driver))
		})
	}
}

func testPost(platform post.Platform, at time.Time) post.Post {
	return post.Post{
		Platform:      platform,
		ContentType:   post.TypeText,
		Content:       post.Content{"text": "hello"},
		ScheduledTime: at,
	}
}

func TestInsertAssignsIDAndDefaults(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		at := time.Now().Add(time.Hour)

		stored, err := s.Insert(ctx, testPost(post.PlatformTelegram, at))
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		if stored.ID == "" {
			t.Fatal("expected assigned id")
		}
		if stored.Status != post.StatusScheduled {
			t.Fatalf("expected scheduled, got %s", stored.Status)
		}
		if stored.Result != nil {
			t.Fatal("result must be absent on a scheduled post")
		}
		if stored.ScheduledTime.Location() != time.UTC {
			t.Fatalf("scheduled time not normalized to UTC: %v", stored.ScheduledTime)
		}
		if stored.CreatedAt.IsZero() || stored.UpdatedAt.IsZero() {
			t.Fatal("timestamps not set")
		}
	})
}

func TestInsertRejectsDuplicateID(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		p := testPost(post.PlatformTelegram, time.Now())
		p.ID = "fixed-id"

		if _, err := s.Insert(ctx, p); err != nil {
			t.Fatalf("first insert: %v", err)
		}
		if _, err := s.Insert(ctx, p); !errors.Is(err, ErrDuplicateID) {
			t.Fatalf("expected ErrDuplicateID, got %v", err)
		}
	})
}

func TestListOrderingAndFilters(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		now := time.Now().UTC()

		late, _ := s.Insert(ctx, testPost(post.PlatformTelegram, now.Add(2*time.Hour)))
		early, _ := s.Insert(ctx, testPost(post.PlatformWebhook, now.Add(-time.Hour)))
		mid, _ := s.Insert(ctx, testPost(post.PlatformFacebook, now.Add(time.Hour)))

		all, err := s.ListByStatus(ctx, "")
		if err != nil {
			t.Fatalf("list all: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 posts, got %d", len(all))
		}
		if all[0].ID != early.ID || all[1].ID != mid.ID || all[2].ID != late.ID {
			t.Fatalf("wrong order: %s %s %s", all[0].ID, all[1].ID, all[2].ID)
		}

		due, err := s.ListDue(ctx, now)
		if err != nil {
			t.Fatalf("list due: %v", err)
		}
		if len(due) != 1 || due[0].ID != early.ID {
			t.Fatalf("expected only the overdue post, got %d", len(due))
		}

		// Claimed posts disappear from the due scan.
		if err := s.UpdateStatus(ctx, early.ID, post.StatusScheduled, post.StatusPosting, nil); err != nil {
			t.Fatalf("claim: %v", err)
		}
		due, _ = s.ListDue(ctx, now)
		if len(due) != 0 {
			t.Fatalf("claimed post still listed as due")
		}

		posting, err := s.ListByStatus(ctx, post.StatusPosting)
		if err != nil {
			t.Fatalf("list posting: %v", err)
		}
		if len(posting) != 1 || posting[0].ID != early.ID {
			t.Fatal("status filter broken")
		}
	})
}

func TestUpdateStatusCAS(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		p, _ := s.Insert(ctx, testPost(post.PlatformTelegram, time.Now()))

		if err := s.UpdateStatus(ctx, p.ID, post.StatusScheduled, post.StatusPosting, nil); err != nil {
			t.Fatalf("claim: %v", err)
		}
		// Same transition again: the precondition no longer holds.
		if err := s.UpdateStatus(ctx, p.ID, post.StatusScheduled, post.StatusPosting, nil); !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}

		res := post.Success("ext-1", "https://example.com/ext-1")
		if err := s.UpdateStatus(ctx, p.ID, post.StatusPosting, post.StatusPosted, res); err != nil {
			t.Fatalf("finish: %v", err)
		}

		got, _ := s.Get(ctx, p.ID)
		if got.Status != post.StatusPosted {
			t.Fatalf("expected posted, got %s", got.Status)
		}
		if got.Result == nil || got.Result.ExternalID != "ext-1" {
			t.Fatalf("result not persisted: %+v", got.Result)
		}
	})
}

func TestUpdateStatusRejectsBackwardTransitions(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		p, _ := s.Insert(ctx, testPost(post.PlatformTelegram, time.Now()))

		_ = s.UpdateStatus(ctx, p.ID, post.StatusScheduled, post.StatusPosting, nil)
		_ = s.UpdateStatus(ctx, p.ID, post.StatusPosting, post.StatusFailed, post.Failure(post.ClassUnknown, "x"))

		cases := []struct{ from, to post.Status }{
			{post.StatusFailed, post.StatusScheduled},
			{post.StatusFailed, post.StatusPosting},
			{post.StatusPosted, post.StatusScheduled},
			{post.StatusScheduled, post.StatusPosted},
		}
		for _, c := range cases {
			if err := s.UpdateStatus(ctx, p.ID, c.from, c.to, nil); !errors.Is(err, ErrBadTransition) {
				t.Fatalf("%s->%s: expected ErrBadTransition, got %v", c.from, c.to, err)
			}
		}

		// A result may not accompany a non-terminal transition.
		p2, _ := s.Insert(ctx, testPost(post.PlatformTelegram, time.Now()))
		err := s.UpdateStatus(ctx, p2.ID, post.StatusScheduled, post.StatusPosting, post.Success("x", ""))
		if !errors.Is(err, ErrBadTransition) {
			t.Fatalf("expected ErrBadTransition for result on claim, got %v", err)
		}
	})
}

func TestUpdateStatusNotFound(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s Store) {
		err := s.UpdateStatus(context.Background(), "nope", post.StatusScheduled, post.StatusPosting, nil)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestConcurrentClaimsYieldOneWinner(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		p, _ := s.Insert(ctx, testPost(post.PlatformTelegram, time.Now()))

		const claimers = 8
		var wg sync.WaitGroup
		errs := make([]error, claimers)
		for i := 0; i < claimers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = s.UpdateStatus(ctx, p.ID, post.StatusScheduled, post.StatusPosting, nil)
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrConflict):
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if wins != 1 {
			t.Fatalf("expected exactly one winner, got %d", wins)
		}
	})
}

func TestStateSurvivesReopen(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			cfg := Config{Driver: driver, Path: filepath.Join(t.TempDir(), "posts."+driver)}

			s, err := Open(cfg, logx.Nop())
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			p, _ := s.Insert(ctx, testPost(post.PlatformWebhook, time.Now().Add(time.Minute)))
			_ = s.UpdateStatus(ctx, p.ID, post.StatusScheduled, post.StatusPosting, nil)
			_ = s.UpdateStatus(ctx, p.ID, post.StatusPosting, post.StatusPosted, post.Success("id-9", "https://example.com/9"))
			if err := s.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}

			s2, err := Open(cfg, logx.Nop())
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			defer s2.Close()

			got, err := s2.Get(ctx, p.ID)
			if err != nil {
				t.Fatalf("get after reopen: %v", err)
			}
			if got.Status != post.StatusPosted || got.Result == nil || got.Result.ExternalID != "id-9" {
				t.Fatalf("state lost across reopen: %+v", got)
			}
			if !got.ScheduledTime.Equal(p.ScheduledTime) {
				t.Fatalf("scheduled time drifted: %v != %v", got.ScheduledTime, p.ScheduledTime)
			}
		})
	}
}
