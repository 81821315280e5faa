// services/dispatch-service/internal/handlers/load_handlers.go

package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukens11-create/gud/services/dispatch-service/internal/dispatcher"
	"github.com/dukens11-create/gud/services/dispatch-service/internal/domain"
	"github.com/dukens11-create/gud/services/dispatch-service/internal/earnings"
	"github.com/dukens11-create/gud/services/dispatch-service/internal/notify"
	"github.com/dukens11-create/gud/services/dispatch-service/internal/validation"
	"github.com/dukens11-create/gud/shared/contracts"
	"github.com/sirupsen/logrus"
)

// Event type tags carried in push data.
const (
	TypeNewLoad      = "new_load"
	TypeStatusChange = "status_change"
	TypeLoadAssigned = "load_assigned"
)

type DriverLookup interface {
	GetDriver(ctx context.Context, id string) (*domain.Driver, error)
}

// LoadHandlers holds the side effects of load changes.
//
// Notification handlers are best effort and always return nil. Validation
// and earnings return store failures so the event is redelivered; both are
// safe to repeat.
type LoadHandlers struct {
	gate    *validation.Gate
	ledger  *earnings.Updater
	router  *notify.Router
	email   notify.EmailSender
	drivers DriverLookup
	log     logrus.FieldLogger
}

func NewLoadHandlers(
	gate *validation.Gate,
	ledger *earnings.Updater,
	router *notify.Router,
	email notify.EmailSender,
	drivers DriverLookup,
	log logrus.FieldLogger,
) *LoadHandlers {
	return &LoadHandlers{
		gate:    gate,
		ledger:  ledger,
		router:  router,
		email:   email,
		drivers: drivers,
		log:     log,
	}
}

// Register subscribes every load handler to d.
func (h *LoadHandlers) Register(d *dispatcher.Dispatcher) {
	created := []contracts.ChangeKind{contracts.ChangeCreated}
	updated := []contracts.ChangeKind{contracts.ChangeUpdated}

	d.Register(dispatcher.Subscription{
		Entity:  contracts.EntityLoad,
		Kinds:   created,
		Handler: dispatcher.HandlerFunc{HandlerName: "validate-load", Fn: h.validate},
	})
	d.Register(dispatcher.Subscription{
		Entity:  contracts.EntityLoad,
		Kinds:   created,
		Handler: dispatcher.HandlerFunc{HandlerName: "new-load-broadcast", Fn: h.broadcastNewLoad},
	})
	d.Register(dispatcher.Subscription{
		Entity:  contracts.EntityLoad,
		Kinds:   updated,
		Fields:  []dispatcher.Field{dispatcher.FieldStatus},
		Handler: dispatcher.HandlerFunc{HandlerName: "status-change-push", Fn: h.notifyStatusChange},
	})
	d.Register(dispatcher.Subscription{
		Entity:  contracts.EntityLoad,
		Fields:  []dispatcher.Field{dispatcher.FieldStatus},
		Handler: dispatcher.HandlerFunc{HandlerName: "driver-earnings", Fn: h.applyEarnings},
	})
	d.Register(dispatcher.Subscription{
		Entity:  contracts.EntityLoad,
		Fields:  []dispatcher.Field{dispatcher.FieldDriverID},
		Handler: dispatcher.HandlerFunc{HandlerName: "load-assigned", Fn: h.notifyAssignment},
	})
}

func (h *LoadHandlers) validate(ctx context.Context, ev contracts.ChangeEvent) error {
	_, err := h.gate.Validate(ctx, *ev.After)
	if errors.Is(err, domain.ErrLoadNotFound) {
		h.log.WithField("load_id", ev.EntityID).Warn("load removed before validation")
		return nil
	}
	return err
}

func (h *LoadHandlers) broadcastNewLoad(ctx context.Context, ev contracts.ChangeEvent) error {
	load := ev.After
	msg := notify.Message{
		Title: "New Load Available",
		Body:  fmt.Sprintf("%s: %s to %s", load.LoadNumber, load.PickupCity, load.DeliveryCity),
		Data: map[string]string{
			"type":       TypeNewLoad,
			"loadId":     load.ID,
			"loadNumber": load.LoadNumber,
		},
	}
	if _, err := h.router.BroadcastDrivers(ctx, msg); err != nil {
		h.log.WithError(err).WithField("load_id", load.ID).Error("new load broadcast failed")
	}
	return nil
}

func (h *LoadHandlers) notifyStatusChange(ctx context.Context, ev contracts.ChangeEvent) error {
	load := ev.After
	if load.DriverID == "" {
		return nil
	}
	msg := notify.Message{
		Title: "Load Status Updated",
		Body:  fmt.Sprintf("Load %s is now %s", load.LoadNumber, load.Status),
		Data: map[string]string{
			"type":       TypeStatusChange,
			"loadId":     load.ID,
			"status":     string(load.Status),
			"loadNumber": load.LoadNumber,
		},
	}
	if _, err := h.router.NotifyUser(ctx, load.DriverID, msg); err != nil {
		h.log.WithError(err).WithField("load_id", load.ID).Error("status change notification failed")
	}
	return nil
}

func (h *LoadHandlers) applyEarnings(ctx context.Context, ev contracts.ChangeEvent) error {
	if ev.After.Status != domain.LoadDelivered {
		return nil
	}
	if ev.Before != nil && ev.Before.Status == domain.LoadDelivered {
		return nil
	}
	_, err := h.ledger.ApplyDelivery(ctx, ev.After.ID)
	return err
}

func (h *LoadHandlers) notifyAssignment(ctx context.Context, ev contracts.ChangeEvent) error {
	load := ev.After
	if load.DriverID == "" {
		return nil
	}
	// A reference change on a closed load is a correction, not new work.
	if load.Status == domain.LoadDelivered || load.Status == domain.LoadCancelled {
		h.log.WithField("load_id", load.ID).Debug("driver reference changed on closed load, assignment notice skipped")
		return nil
	}
	log := h.log.WithFields(logrus.Fields{"load_id": load.ID, "driver_id": load.DriverID})

	msg := notify.Message{
		Title: "New Load Assigned",
		Body:  fmt.Sprintf("You have been assigned load %s", load.LoadNumber),
		Data: map[string]string{
			"type":       TypeLoadAssigned,
			"loadId":     load.ID,
			"loadNumber": load.LoadNumber,
		},
	}
	if _, err := h.router.NotifyUser(ctx, load.DriverID, msg); err != nil {
		log.WithError(err).Error("assignment notification failed")
	}

	driver, err := h.drivers.GetDriver(ctx, load.DriverID)
	if err != nil {
		log.WithError(err).Warn("cannot email assignment, driver not resolvable")
		return nil
	}
	if driver.Email == "" {
		log.Debug("driver has no email address")
		return nil
	}
	email, err := notify.AssignmentEmail(*load, *driver)
	if err != nil {
		log.WithError(err).Error("assignment email not rendered")
		return nil
	}
	if err := h.email.SendEmail(ctx, email); err != nil {
		log.WithError(err).Warn("assignment email not queued")
	}
	return nil
}
