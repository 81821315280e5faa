// services/dispatch-service/internal/earnings/updater.go

package earnings

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukens11-create/gud/services/dispatch-service/internal/domain"
	"github.com/dukens11-create/gud/services/dispatch-service/internal/store"
	"github.com/sirupsen/logrus"
)

// Outcome says what ApplyDelivery did with a load.
type Outcome string

const (
	OutcomeApplied        Outcome = "applied"
	OutcomeAlreadyApplied Outcome = "already_applied"
	OutcomeNotDelivered   Outcome = "not_delivered"
	OutcomeNoDriver       Outcome = "no_driver"
	OutcomeDriverNotFound Outcome = "driver_not_found"
	OutcomeLoadNotFound   Outcome = "load_not_found"
)

// Store is the slice of the document store the updater touches.
type Store interface {
	store.TransactionManager
	GetLoadForUpdate(ctx context.Context, id string) (*domain.Load, error)
	MarkEarningsApplied(ctx context.Context, loadID string) error
	GetDriver(ctx context.Context, id string) (*domain.Driver, error)
	AddEarnings(ctx context.Context, driverID string, cents int64, loads int) error
}

// Updater credits a driver once per delivered load.
type Updater struct {
	store Store
	log   logrus.FieldLogger
}

func NewUpdater(s Store, log logrus.FieldLogger) *Updater {
	return &Updater{store: s, log: log}
}

// ApplyDelivery adds the load's rate and one completed load to the assigned
// driver. The increment and the load's earnings marker are written in the
// same transaction, so a redelivered event finds the marker set and does
// nothing. Recoverable conditions are reported through the Outcome with a
// nil error; only store failures are returned.
func (u *Updater) ApplyDelivery(ctx context.Context, loadID string) (Outcome, error) {
	var outcome Outcome
	log := u.log.WithField("load_id", loadID)

	err := u.store.RunInTx(ctx, func(ctx context.Context) error {
		load, err := u.store.GetLoadForUpdate(ctx, loadID)
		if errors.Is(err, domain.ErrLoadNotFound) {
			outcome = OutcomeLoadNotFound
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to fetch load: %w", err)
		}
		if load.Status != domain.LoadDelivered {
			outcome = OutcomeNotDelivered
			return nil
		}
		if load.EarningsApplied {
			outcome = OutcomeAlreadyApplied
			return nil
		}
		if load.DriverID == "" {
			outcome = OutcomeNoDriver
			return nil
		}

		driver, err := u.store.GetDriver(ctx, load.DriverID)
		if errors.Is(err, domain.ErrDriverNotFound) {
			outcome = OutcomeDriverNotFound
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to fetch driver: %w", err)
		}

		cents := load.RateCents
		if cents <= 0 {
			log.WithField("rate_cents", load.RateCents).Warn("delivered load has no valid rate, counting load only")
			cents = 0
		}
		if err := u.store.AddEarnings(ctx, driver.ID, cents, 1); err != nil {
			return fmt.Errorf("failed to add earnings: %w", err)
		}
		if err := u.store.MarkEarningsApplied(ctx, load.ID); err != nil {
			return fmt.Errorf("failed to mark earnings applied: %w", err)
		}
		outcome = OutcomeApplied
		return nil
	})
	if err != nil {
		return "", err
	}

	switch outcome {
	case OutcomeApplied:
		log.Info("driver earnings updated")
	case OutcomeNoDriver:
		log.Warn("delivered load has no driver, earnings not applied")
	case OutcomeLoadNotFound:
		log.Warn("delivered load no longer exists, earnings not applied")
	case OutcomeDriverNotFound:
		log.Error("driver referenced by delivered load does not exist, earnings not applied")
	default:
		log.WithField("outcome", outcome).Debug("earnings skipped")
	}
	return outcome, nil
}
