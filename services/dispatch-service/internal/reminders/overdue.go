// services/dispatch-service/internal/reminders/overdue.go

package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/dukens11-create/gud/services/dispatch-service/internal/domain"
	"github.com/dukens11-create/gud/services/dispatch-service/internal/notify"
	"github.com/sirupsen/logrus"
)

const TypeOverdueLoad = "overdue_load"

// openStatuses are the statuses a load can still be late in.
var openStatuses = []domain.LoadStatus{domain.LoadAssigned, domain.LoadInTransit}

type LoadLister interface {
	ListOverdueLoads(ctx context.Context, statuses []domain.LoadStatus, before time.Time) ([]domain.Load, error)
}

type Notifier interface {
	NotifyUser(ctx context.Context, userID string, msg notify.Message) (notify.Report, error)
}

type Summary struct {
	Overdue int `json:"overdue"`
	Sent    int `json:"sent"`
}

// OverdueReminder nudges drivers whose open loads are past their delivery date.
type OverdueReminder struct {
	loads  LoadLister
	notify Notifier
	loc    *time.Location
	log    logrus.FieldLogger
	now    func() time.Time
}

func NewOverdueReminder(loads LoadLister, n Notifier, loc *time.Location, log logrus.FieldLogger) *OverdueReminder {
	if loc == nil {
		loc = time.UTC
	}
	return &OverdueReminder{loads: loads, notify: n, loc: loc, log: log, now: time.Now}
}

// Run reminds the driver of every assigned or in-transit load whose delivery
// date is before the start of today in the reminder's time zone.
func (r *OverdueReminder) Run(ctx context.Context) (Summary, error) {
	local := r.now().In(r.loc)
	startOfDay := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, r.loc)

	loads, err := r.loads.ListOverdueLoads(ctx, openStatuses, startOfDay)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list overdue loads: %w", err)
	}

	summary := Summary{Overdue: len(loads)}
	for _, load := range loads {
		if load.DriverID == "" {
			continue
		}
		report, err := r.notify.NotifyUser(ctx, load.DriverID, notify.Message{
			Title: "Overdue Load",
			Body:  fmt.Sprintf("Load %s is overdue", load.LoadNumber),
			Data: map[string]string{
				"type":       TypeOverdueLoad,
				"loadId":     load.ID,
				"loadNumber": load.LoadNumber,
			},
		})
		if err != nil {
			r.log.WithError(err).WithField("load_id", load.ID).Warn("overdue reminder not delivered")
			continue
		}
		summary.Sent += report.Sent()
	}

	r.log.WithFields(logrus.Fields{"overdue": summary.Overdue, "sent": summary.Sent}).Info("overdue reminders sent")
	return summary, nil
}
