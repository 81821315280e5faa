// services/dispatch-service/internal/retention/sweeper.go

package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultWindow    = 30 * 24 * time.Hour
	DefaultBatchSize = 500
)

type LocationPurger interface {
	DeleteLocationHistoryBefore(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

type Summary struct {
	Deleted int  `json:"deleted"`
	Drained bool `json:"drained"`
}

// Sweeper deletes location history older than the retention window, at
// most one batch per run. A large backlog drains over several runs.
type Sweeper struct {
	store     LocationPurger
	window    time.Duration
	batchSize int
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewSweeper(s LocationPurger, log logrus.FieldLogger) *Sweeper {
	return &Sweeper{
		store:     s,
		window:    DefaultWindow,
		batchSize: DefaultBatchSize,
		log:       log,
		now:       time.Now,
	}
}

func (s *Sweeper) Run(ctx context.Context) (Summary, error) {
	cutoff := s.now().UTC().Add(-s.window)
	deleted, err := s.store.DeleteLocationHistoryBefore(ctx, cutoff, s.batchSize)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to delete location history: %w", err)
	}

	summary := Summary{Deleted: deleted, Drained: deleted < s.batchSize}
	s.log.WithFields(logrus.Fields{
		"deleted": deleted,
		"cutoff":  cutoff.Format(time.RFC3339),
		"drained": summary.Drained,
	}).Info("location history cleanup finished")
	return summary, nil
}
