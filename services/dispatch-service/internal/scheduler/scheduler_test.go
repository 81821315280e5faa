package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukens11-create/gud/shared/logger"
)

// --- MOCKS ---

type stubLocker struct {
	busy     bool
	err      error
	released int
}

func (s *stubLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	if s.busy {
		return nil, false, nil
	}
	return stubLock{s}, true, nil
}

type stubLock struct{ s *stubLocker }

func (l stubLock) Release(ctx context.Context) error {
	l.s.released++
	return nil
}

// --- TESTS ---

func TestRunNow(t *testing.T) {
	calls := 0
	job := Job{
		Name: "location-cleanup",
		Spec: "@every 24h",
		Run: func(ctx context.Context) (any, error) {
			calls++
			return map[string]int{"deleted": 3}, nil
		},
	}

	tests := []struct {
		name      string
		locker    *stubLocker
		job       string
		wantErr   error
		wantCalls int
	}{
		{name: "Happy Path: runs under lock", locker: &stubLocker{}, job: "location-cleanup", wantCalls: 1},
		{name: "lock held elsewhere skips", locker: &stubLocker{busy: true}, job: "location-cleanup", wantErr: ErrJobRunning},
		{name: "unknown job", locker: &stubLocker{}, job: "nope", wantErr: ErrUnknownJob},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls = 0
			s := New(time.UTC, tt.locker, logger.Discard())
			if err := s.Add(job); err != nil {
				t.Fatalf("add: %v", err)
			}

			summary, err := s.RunNow(context.Background(), tt.job)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if calls != tt.wantCalls {
				t.Errorf("expected %d runs, got %d", tt.wantCalls, calls)
			}
			if tt.wantErr == nil {
				if summary.(map[string]int)["deleted"] != 3 {
					t.Errorf("summary not returned: %v", summary)
				}
				if tt.locker.released != 1 {
					t.Errorf("lock not released")
				}
			}
		})
	}
}

func TestRunNowReleasesLockOnFailure(t *testing.T) {
	locker := &stubLocker{}
	s := New(time.UTC, locker, logger.Discard())
	boom := errors.New("store unavailable")
	_ = s.Add(Job{Name: "alert-refresh", Spec: "0 5 * * *", Run: func(ctx context.Context) (any, error) { return nil, boom }})

	if _, err := s.RunNow(context.Background(), "alert-refresh"); !errors.Is(err, boom) {
		t.Fatalf("expected job error, got %v", err)
	}
	if locker.released != 1 {
		t.Errorf("lock must be released after a failed run")
	}
}

func TestAddRejectsBadSpecAndDuplicates(t *testing.T) {
	s := New(time.UTC, NewLocalLocker(), logger.Discard())
	noop := func(ctx context.Context) (any, error) { return nil, nil }

	if err := s.Add(Job{Name: "bad", Spec: "every now and then", Run: noop}); err == nil {
		t.Error("expected invalid spec to be rejected")
	}
	if err := s.Add(Job{Name: "a", Spec: "0 9 * * *", Run: noop}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Add(Job{Name: "a", Spec: "0 9 * * *", Run: noop}); err == nil {
		t.Error("expected duplicate job name to be rejected")
	}
	if got := s.Jobs(); len(got) != 1 || got[0] != "a" {
		t.Errorf("unexpected jobs %v", got)
	}
}

func TestLocalLocker(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocalLocker()
	l.clock = func() time.Time { return now }
	ctx := context.Background()

	lock, ok, _ := l.Acquire(ctx, "k", time.Minute)
	if !ok {
		t.Fatal("first acquire should succeed")
	}
	if _, ok, _ := l.Acquire(ctx, "k", time.Minute); ok {
		t.Fatal("second acquire should fail while held")
	}

	now = now.Add(2 * time.Minute)
	second, ok, _ := l.Acquire(ctx, "k", time.Minute)
	if !ok {
		t.Fatal("expired lock should be reacquirable")
	}

	// the first holder outlived its TTL; its release must not free the new grant
	_ = lock.Release(ctx)
	if _, ok, _ := l.Acquire(ctx, "k", time.Minute); ok {
		t.Fatal("stale release freed a lock held by another run")
	}

	_ = second.Release(ctx)
	if _, ok, _ := l.Acquire(ctx, "k", time.Minute); !ok {
		t.Fatal("released lock should be reacquirable")
	}
}
