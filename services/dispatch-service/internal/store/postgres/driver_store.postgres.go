// services/dispatch-service/internal/store/postgres/driver_store.postgres.go

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukens11-create/gud/services/dispatch-service/internal/domain"
)

const driverColumns = `id, name, email, truck_number, is_active, total_earnings_cents, completed_loads`

func scanDriver(row rowScanner) (domain.Driver, error) {
	var d domain.Driver
	err := row.Scan(&d.ID, &d.Name, &d.Email, &d.TruckNumber, &d.IsActive, &d.TotalEarningsCents, &d.CompletedLoads)
	return d, err
}

func (s *PostgresStore) GetDriver(ctx context.Context, id string) (*domain.Driver, error) {
	d, err := scanDriver(s.q(ctx).QueryRowContext(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrDriverNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch driver %s: %w", id, err)
	}
	return &d, nil
}

func (s *PostgresStore) ListDrivers(ctx context.Context) ([]domain.Driver, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `SELECT `+driverColumns+` FROM drivers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query drivers: %w", err)
	}
	defer rows.Close()

	var drivers []domain.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan driver: %w", err)
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}

// AddEarnings increments both counters in a single statement.
func (s *PostgresStore) AddEarnings(ctx context.Context, driverID string, cents int64, loads int) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE drivers
		SET total_earnings_cents = total_earnings_cents + $2,
		    completed_loads = completed_loads + $3
		WHERE id = $1`, driverID, cents, loads)
	if err != nil {
		return fmt.Errorf("failed to add earnings: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrDriverNotFound
	}
	return nil
}
