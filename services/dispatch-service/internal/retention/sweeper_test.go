package retention

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dukens11-create/gud/services/dispatch-service/internal/domain"
	"github.com/dukens11-create/gud/services/dispatch-service/internal/store"
	"github.com/dukens11-create/gud/shared/logger"
)

func TestSweeperDrainsBacklogInBatches(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	s := store.NewMemoryStore()
	for i := 0; i < 12; i++ {
		s.PutLocationPoint(domain.LocationPoint{
			ID:         fmt.Sprintf("old-%d", i),
			EntityKind: domain.OwnerDriver,
			EntityID:   "u1",
			RecordedAt: now.Add(-40*24*time.Hour + time.Duration(i)*time.Minute),
		})
	}
	for i := 0; i < 3; i++ {
		s.PutLocationPoint(domain.LocationPoint{
			ID:         fmt.Sprintf("recent-%d", i),
			EntityKind: domain.OwnerDriver,
			EntityID:   "u1",
			RecordedAt: now.Add(-time.Duration(i+1) * 24 * time.Hour),
		})
	}

	sw := NewSweeper(s, logger.Discard())
	sw.batchSize = 5
	sw.now = func() time.Time { return now }

	want := []Summary{
		{Deleted: 5},
		{Deleted: 5},
		{Deleted: 2, Drained: true},
		{Deleted: 0, Drained: true},
	}
	for i, w := range want {
		got, err := sw.Run(context.Background())
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if got != w {
			t.Errorf("run %d: expected %+v, got %+v", i, w, got)
		}
	}

	if n := s.LocationPointCount(); n != 3 {
		t.Errorf("expected recent points to survive, %d left", n)
	}
}
