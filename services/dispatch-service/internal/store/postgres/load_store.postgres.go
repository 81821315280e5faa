// services/dispatch-service/internal/store/postgres/load_store.postgres.go

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukens11-create/gud/services/dispatch-service/internal/domain"
	"github.com/lib/pq"
)

const loadColumns = `id, load_number, status, driver_id, driver_name, rate_cents,
	pickup_address, pickup_city, delivery_address, delivery_city, delivery_date, notes,
	validation_status, validation_errors, earnings_applied, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoad(row rowScanner) (domain.Load, error) {
	var (
		l            domain.Load
		deliveryDate sql.NullTime
		violations   pq.StringArray
	)
	err := row.Scan(
		&l.ID, &l.LoadNumber, &l.Status, &l.DriverID, &l.DriverName, &l.RateCents,
		&l.PickupAddress, &l.PickupCity, &l.DeliveryAddress, &l.DeliveryCity, &deliveryDate, &l.Notes,
		&l.ValidationStatus, &violations, &l.EarningsApplied, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return domain.Load{}, err
	}
	l.DeliveryDate = nullTime(&deliveryDate)
	l.ValidationErrors = []string(violations)
	return l, nil
}

func (s *PostgresStore) getLoad(ctx context.Context, query, id string) (*domain.Load, error) {
	l, err := scanLoad(s.q(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrLoadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch load %s: %w", id, err)
	}
	return &l, nil
}

func (s *PostgresStore) GetLoad(ctx context.Context, id string) (*domain.Load, error) {
	return s.getLoad(ctx, `SELECT `+loadColumns+` FROM loads WHERE id = $1`, id)
}

// GetLoadForUpdate holds a row lock until the surrounding transaction ends.
func (s *PostgresStore) GetLoadForUpdate(ctx context.Context, id string) (*domain.Load, error) {
	return s.getLoad(ctx, `SELECT `+loadColumns+` FROM loads WHERE id = $1 FOR UPDATE`, id)
}

func (s *PostgresStore) ListLoads(ctx context.Context) ([]domain.Load, error) {
	return s.listLoads(ctx, `SELECT `+loadColumns+` FROM loads ORDER BY id`)
}

func (s *PostgresStore) ListOverdueLoads(ctx context.Context, statuses []domain.LoadStatus, before time.Time) ([]domain.Load, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	query := `SELECT ` + loadColumns + ` FROM loads
		WHERE status = ANY($1) AND delivery_date IS NOT NULL AND delivery_date < $2
		ORDER BY delivery_date`
	return s.listLoads(ctx, query, pq.Array(names), before)
}

func (s *PostgresStore) listLoads(ctx context.Context, query string, args ...any) ([]domain.Load, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query loads: %w", err)
	}
	defer rows.Close()

	var loads []domain.Load
	for rows.Next() {
		l, err := scanLoad(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan load: %w", err)
		}
		loads = append(loads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return loads, nil
}

func (s *PostgresStore) updateLoad(ctx context.Context, id, query string, args ...any) error {
	res, err := s.q(ctx).ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to update load %s: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrLoadNotFound
	}
	return nil
}

func (s *PostgresStore) SetValidation(ctx context.Context, loadID string, status domain.ValidationStatus, errs []string) error {
	if errs == nil {
		errs = []string{}
	}
	return s.updateLoad(ctx, loadID,
		`UPDATE loads SET validation_status = $2, validation_errors = $3, updated_at = NOW() WHERE id = $1`,
		string(status), pq.Array(errs))
}

func (s *PostgresStore) MarkEarningsApplied(ctx context.Context, loadID string) error {
	return s.updateLoad(ctx, loadID,
		`UPDATE loads SET earnings_applied = TRUE, updated_at = NOW() WHERE id = $1`)
}

func (s *PostgresStore) UpdateDriverRef(ctx context.Context, change domain.DriverReassignment) error {
	return s.updateLoad(ctx, change.LoadID,
		`UPDATE loads SET driver_id = $2, driver_name = $3, updated_at = NOW() WHERE id = $1`,
		change.DriverID, change.DriverName)
}
