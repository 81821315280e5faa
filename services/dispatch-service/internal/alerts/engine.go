// services/dispatch-service/internal/alerts/engine.go

package alerts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dukens11-create/gud/services/dispatch-service/internal/domain"
	"github.com/dukens11-create/gud/services/dispatch-service/internal/notify"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Window is how far ahead the engine looks for expiring documents.
const Window = 30 * 24 * time.Hour

const TypeDocumentExpiring = "document_expiring"

type Store interface {
	ListExpiringDocuments(ctx context.Context, from, to time.Time) ([]domain.Document, error)
	HasActiveAlert(ctx context.Context, key domain.AlertKey) (bool, error)
	CreateAlert(ctx context.Context, alert domain.ExpirationAlert) (bool, error)
	ListActiveAlerts(ctx context.Context) ([]domain.ExpirationAlert, error)
	UpdateDaysRemaining(ctx context.Context, days map[string]int) error
	GetVehicle(ctx context.Context, id string) (*domain.Vehicle, error)
}

type Notifier interface {
	NotifyUser(ctx context.Context, userID string, msg notify.Message) (notify.Report, error)
	BroadcastAdmins(ctx context.Context, msg notify.Message) (notify.Report, error)
}

type RunSummary struct {
	Scanned  int `json:"scanned"`
	Created  int `json:"created"`
	Skipped  int `json:"skipped"`
	Notified int `json:"notified"`
}

type RefreshSummary struct {
	Active  int `json:"active"`
	Updated int `json:"updated"`
}

// Engine maintains the expiration alert set. At most one pending or sent
// alert exists per (subject, document type); repeated runs only add alerts
// for keys that have none.
type Engine struct {
	store  Store
	notify Notifier
	log    logrus.FieldLogger
	now    func() time.Time
}

func NewEngine(s Store, n Notifier, log logrus.FieldLogger) *Engine {
	return &Engine{store: s, notify: n, log: log, now: time.Now}
}

// Run scans documents expiring within Window and raises one alert per new key.
func (e *Engine) Run(ctx context.Context) (RunSummary, error) {
	now := e.now().UTC()
	var summary RunSummary

	docs, err := e.store.ListExpiringDocuments(ctx, now, now.Add(Window))
	if err != nil {
		return summary, fmt.Errorf("failed to list expiring documents: %w", err)
	}

	for _, doc := range docs {
		summary.Scanned++
		if doc.ExpiresAt == nil || !doc.ExpiresAt.After(now) {
			summary.Skipped++
			continue
		}
		alert := domain.ExpirationAlert{
			ID:            uuid.NewString(),
			SubjectKind:   doc.OwnerKind,
			SubjectID:     doc.OwnerID,
			DocumentID:    doc.ID,
			DocumentType:  doc.Type,
			ExpiresAt:     doc.ExpiresAt.UTC(),
			Status:        domain.AlertSent,
			DaysRemaining: domain.DaysUntil(*doc.ExpiresAt, now),
			CreatedAt:     now,
			SentAt:        &now,
		}
		log := e.log.WithFields(logrus.Fields{"document_id": doc.ID, "alert_key": alert.Key().String()})

		exists, err := e.store.HasActiveAlert(ctx, alert.Key())
		if err != nil {
			return summary, fmt.Errorf("failed to check active alerts: %w", err)
		}
		if exists {
			summary.Skipped++
			continue
		}
		created, err := e.store.CreateAlert(ctx, alert)
		if err != nil {
			return summary, fmt.Errorf("failed to create alert: %w", err)
		}
		if !created {
			// a concurrent run got there first
			summary.Skipped++
			continue
		}
		summary.Created++
		log.WithField("days_remaining", alert.DaysRemaining).Info("expiration alert created")

		summary.Notified += e.deliver(ctx, alert, log)
	}

	e.log.WithFields(logrus.Fields{
		"scanned": summary.Scanned,
		"created": summary.Created,
		"skipped": summary.Skipped,
	}).Info("expiration alert run finished")
	return summary, nil
}

// deliver sends the alert to the subject's user and, for vehicle documents,
// to every admin. It returns the number of messages sent.
func (e *Engine) deliver(ctx context.Context, alert domain.ExpirationAlert, log logrus.FieldLogger) int {
	msg := alertMessage(alert)
	sent := 0

	recipient := alert.SubjectID
	if alert.SubjectKind == domain.OwnerVehicle {
		recipient = ""
		v, err := e.store.GetVehicle(ctx, alert.SubjectID)
		switch {
		case errors.Is(err, domain.ErrVehicleNotFound):
			log.Warn("vehicle for expiring document not found")
		case err != nil:
			log.WithError(err).Warn("failed to resolve vehicle driver")
		default:
			recipient = v.DriverID
			msg.Body = fmt.Sprintf("Truck %s %s", v.TruckNumber, lowerFirst(msg.Body))
		}
	}

	if recipient != "" {
		report, err := e.notify.NotifyUser(ctx, recipient, msg)
		if err != nil {
			log.WithError(err).Warn("expiration alert not delivered")
		}
		sent += report.Sent()
	}

	if alert.SubjectKind == domain.OwnerVehicle {
		report, err := e.notify.BroadcastAdmins(ctx, msg)
		if err != nil {
			log.WithError(err).Warn("expiration alert not delivered to admins")
		}
		sent += report.Sent()
	}
	return sent
}

// Refresh recomputes days remaining on every active alert. It never creates
// or deletes alerts.
func (e *Engine) Refresh(ctx context.Context) (RefreshSummary, error) {
	now := e.now().UTC()
	active, err := e.store.ListActiveAlerts(ctx)
	if err != nil {
		return RefreshSummary{}, fmt.Errorf("failed to list active alerts: %w", err)
	}

	days := make(map[string]int)
	for _, a := range active {
		if d := domain.DaysUntil(a.ExpiresAt, now); d != a.DaysRemaining {
			days[a.ID] = d
		}
	}
	if len(days) > 0 {
		if err := e.store.UpdateDaysRemaining(ctx, days); err != nil {
			return RefreshSummary{}, fmt.Errorf("failed to update days remaining: %w", err)
		}
	}

	summary := RefreshSummary{Active: len(active), Updated: len(days)}
	e.log.WithFields(logrus.Fields{"active": summary.Active, "updated": summary.Updated}).Info("alert days remaining refreshed")
	return summary, nil
}

func alertMessage(a domain.ExpirationAlert) notify.Message {
	label := strings.ReplaceAll(string(a.DocumentType), "_", " ")
	return notify.Message{
		Title: "Document Expiring Soon",
		Body:  fmt.Sprintf("%s expires in %d days", upperFirst(label), a.DaysRemaining),
		Data: map[string]string{
			"type":          TypeDocumentExpiring,
			"alertId":       a.ID,
			"documentId":    a.DocumentID,
			"documentType":  string(a.DocumentType),
			"subjectId":     a.SubjectID,
			"daysRemaining": strconv.Itoa(a.DaysRemaining),
		},
	}
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
