// services/dispatch-service/internal/store/postgres/location_store.postgres.go

package postgres

import (
	"context"
	"fmt"
	"time"
)

func (s *PostgresStore) DeleteLocationHistoryBefore(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	res, err := s.q(ctx).ExecContext(ctx, `
		DELETE FROM location_history
		WHERE id IN (
			SELECT id FROM location_history
			WHERE recorded_at < $1
			ORDER BY recorded_at
			LIMIT $2
		)`, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to delete location history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
