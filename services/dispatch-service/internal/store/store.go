// services/dispatch-service/internal/store/store.go
package store

import (
	"context"
	"time"

	"github.com/dukens11-create/gud/services/dispatch-service/internal/domain"
)

// TransactionManager runs fn atomically. Store calls made with the ctx passed
// to fn join the transaction.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type LoadStore interface {
	GetLoad(ctx context.Context, id string) (*domain.Load, error)
	// GetLoadForUpdate locks the row when called inside RunInTx.
	GetLoadForUpdate(ctx context.Context, id string) (*domain.Load, error)
	ListLoads(ctx context.Context) ([]domain.Load, error)
	// ListOverdueLoads returns loads in one of statuses whose delivery date is before the cutoff.
	ListOverdueLoads(ctx context.Context, statuses []domain.LoadStatus, before time.Time) ([]domain.Load, error)

	SetValidation(ctx context.Context, loadID string, status domain.ValidationStatus, errs []string) error
	MarkEarningsApplied(ctx context.Context, loadID string) error
	UpdateDriverRef(ctx context.Context, change domain.DriverReassignment) error
}

type DriverStore interface {
	GetDriver(ctx context.Context, id string) (*domain.Driver, error)
	ListDrivers(ctx context.Context) ([]domain.Driver, error)
	// AddEarnings increments both totals in one write.
	AddEarnings(ctx context.Context, driverID string, cents int64, loads int) error
}

type UserStore interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	ListUsersByRole(ctx context.Context, role domain.Role) ([]domain.User, error)
}

type VehicleStore interface {
	GetVehicle(ctx context.Context, id string) (*domain.Vehicle, error)
}

type DocumentStore interface {
	// ListExpiringDocuments returns valid driver and vehicle documents expiring in (from, to).
	ListExpiringDocuments(ctx context.Context, from, to time.Time) ([]domain.Document, error)
}

type AlertStore interface {
	HasActiveAlert(ctx context.Context, key domain.AlertKey) (bool, error)
	// CreateAlert inserts the alert unless an active alert for the same key
	// exists, in which case it returns false and writes nothing.
	CreateAlert(ctx context.Context, alert domain.ExpirationAlert) (bool, error)
	ListActiveAlerts(ctx context.Context) ([]domain.ExpirationAlert, error)
	// UpdateDaysRemaining touches only days_remaining, keyed by alert id.
	UpdateDaysRemaining(ctx context.Context, days map[string]int) error
}

type LocationStore interface {
	// DeleteLocationHistoryBefore deletes at most limit points recorded before cutoff.
	DeleteLocationHistoryBefore(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// Store is everything the dispatch service needs from the document store.
type Store interface {
	TransactionManager
	LoadStore
	DriverStore
	UserStore
	VehicleStore
	DocumentStore
	AlertStore
	LocationStore
}
