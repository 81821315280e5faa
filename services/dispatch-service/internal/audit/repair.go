// services/dispatch-service/internal/audit/repair.go

package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukens11-create/gud/services/dispatch-service/internal/domain"
	"github.com/dukens11-create/gud/shared/contracts"
	"github.com/sirupsen/logrus"
)

type RepairResult struct {
	Repaired  []domain.DriverReassignment
	Ambiguous []Finding
	Unmatched []Finding
}

// Repair rewrites every uniquely name-matched driver reference to the
// canonical driver in one transaction. Ambiguous and unmatched loads are
// left alone and returned. With nothing to fix it performs no writes.
func (a *Auditor) Repair(ctx context.Context) (RepairResult, error) {
	report, err := a.Scan(ctx)
	if err != nil {
		return RepairResult{}, err
	}

	result := RepairResult{Ambiguous: report.Ambiguous(), Unmatched: report.Unmatched()}
	var fixes []domain.DriverReassignment
	for _, f := range report.Fixable() {
		if fix, ok := f.Suggestion(); ok {
			fixes = append(fixes, fix)
		}
	}
	if len(fixes) == 0 {
		a.log.Info("no driver references to repair")
		return result, nil
	}

	var befores []domain.Load
	err = a.store.RunInTx(ctx, func(ctx context.Context) error {
		var applied []domain.DriverReassignment
		befores = nil
		for _, fix := range fixes {
			current, err := a.store.GetLoadForUpdate(ctx, fix.LoadID)
			if err != nil {
				return fmt.Errorf("failed to lock load %s: %w", fix.LoadID, err)
			}
			if current.DriverID == fix.DriverID && current.DriverName == fix.DriverName {
				continue
			}
			if err := a.store.UpdateDriverRef(ctx, fix); err != nil {
				return fmt.Errorf("failed to repair load %s: %w", fix.LoadID, err)
			}
			befores = append(befores, *current)
			applied = append(applied, fix)
		}
		result.Repaired = applied
		return nil
	})
	if err != nil {
		return RepairResult{Ambiguous: result.Ambiguous, Unmatched: result.Unmatched}, err
	}

	for _, fix := range result.Repaired {
		a.log.WithFields(logrus.Fields{"load_id": fix.LoadID, "driver_id": fix.DriverID}).Info("driver reference repaired")
	}
	a.announce(ctx, befores, result.Repaired)
	return result, nil
}

// AssignLegacy assigns every load without a driver reference to driverID
// in one transaction.
func (a *Auditor) AssignLegacy(ctx context.Context, driverID string) ([]domain.DriverReassignment, error) {
	driver, err := a.store.GetDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}
	report, err := a.Scan(ctx)
	if err != nil {
		return nil, err
	}

	assignments := make(map[string]domain.Driver, len(report.Absent))
	for _, l := range report.Absent {
		assignments[l.ID] = *driver
	}
	return a.assign(ctx, assignments)
}

// assign writes the given load -> driver assignments atomically, skipping
// loads that gained a driver reference since they were listed.
func (a *Auditor) assign(ctx context.Context, assignments map[string]domain.Driver) ([]domain.DriverReassignment, error) {
	if len(assignments) == 0 {
		return nil, nil
	}

	var done []domain.DriverReassignment
	var befores []domain.Load
	err := a.store.RunInTx(ctx, func(ctx context.Context) error {
		done, befores = nil, nil
		for loadID, d := range assignments {
			current, err := a.store.GetLoadForUpdate(ctx, loadID)
			if errors.Is(err, domain.ErrLoadNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to lock load %s: %w", loadID, err)
			}
			if current.DriverID != "" {
				continue
			}
			change := domain.DriverReassignment{LoadID: loadID, DriverID: d.ID, DriverName: d.Name}
			if err := a.store.UpdateDriverRef(ctx, change); err != nil {
				return fmt.Errorf("failed to assign load %s: %w", loadID, err)
			}
			done = append(done, change)
			befores = append(befores, *current)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.log.WithField("assigned", len(done)).Info("legacy loads assigned")
	a.announce(ctx, befores, done)
	return done, nil
}

// announce publishes an update event per changed load. Publishing is best
// effort, the store is already committed.
func (a *Auditor) announce(ctx context.Context, befores []domain.Load, changes []domain.DriverReassignment) {
	if a.publisher == nil {
		return
	}
	for i, change := range changes {
		before := befores[i]
		after := before
		after.DriverID = change.DriverID
		after.DriverName = change.DriverName

		err := a.publisher.PublishChange(ctx, contracts.ChangeEvent{
			Entity:   contracts.EntityLoad,
			EntityID: change.LoadID,
			Kind:     contracts.ChangeUpdated,
			Before:   &before,
			After:    &after,
		})
		if err != nil {
			a.log.WithError(err).WithField("load_id", change.LoadID).Warn("failed to publish repair event")
		}
	}
}
