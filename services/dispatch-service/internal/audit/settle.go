// services/dispatch-service/internal/audit/settle.go

package audit

import (
	"context"
	"fmt"

	"github.com/dukens11-create/gud/services/dispatch-service/internal/domain"
	"github.com/dukens11-create/gud/services/dispatch-service/internal/earnings"
	"github.com/sirupsen/logrus"
)

type Settler interface {
	ApplyDelivery(ctx context.Context, loadID string) (earnings.Outcome, error)
}

// SettleResult counts what Settle did with the unsettled loads.
type SettleResult struct {
	// Credited loads went through the earnings updater.
	Credited int
	// Marked loads were already counted by the driver's counter and only
	// had their earnings marker set.
	Marked int
}

// Settle closes out the delivered loads the report found without an earnings
// marker. A driver is credited only for the loads its counter is missing
// (live minus stored); any other unsettled load of that driver is marked
// without crediting, so a counter that already agrees is never inflated.
func (a *Auditor) Settle(ctx context.Context, report Report, settler Settler) (SettleResult, error) {
	missing := make(map[string]int)
	for _, d := range report.Divergences {
		if d.Live > d.Stored {
			missing[d.Driver.ID] = d.Live - d.Stored
		}
	}

	var res SettleResult
	for _, l := range report.Unsettled {
		if missing[l.DriverID] > 0 {
			outcome, err := settler.ApplyDelivery(ctx, l.ID)
			if err != nil {
				return res, fmt.Errorf("failed to settle load %s: %w", l.ID, err)
			}
			if outcome == earnings.OutcomeApplied {
				res.Credited++
				missing[l.DriverID]--
			}
			continue
		}
		marked, err := a.markSettled(ctx, l.ID)
		if err != nil {
			return res, fmt.Errorf("failed to mark load %s: %w", l.ID, err)
		}
		if marked {
			res.Marked++
		}
	}

	if res.Credited > 0 || res.Marked > 0 {
		a.log.WithFields(logrus.Fields{
			"credited": res.Credited,
			"marked":   res.Marked,
		}).Info("unsettled deliveries closed out")
	}
	return res, nil
}

func (a *Auditor) markSettled(ctx context.Context, loadID string) (bool, error) {
	marked := false
	err := a.store.RunInTx(ctx, func(ctx context.Context) error {
		l, err := a.store.GetLoadForUpdate(ctx, loadID)
		if err != nil {
			return err
		}
		if l.Status != domain.LoadDelivered || l.EarningsApplied {
			return nil
		}
		if err := a.store.MarkEarningsApplied(ctx, loadID); err != nil {
			return err
		}
		marked = true
		return nil
	})
	return marked, err
}
