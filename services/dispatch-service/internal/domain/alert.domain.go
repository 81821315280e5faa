// services/dispatch-service/internal/domain/alert.domain.go
package domain

import (
	"fmt"
	"math"
	"time"
)

type AlertStatus string

const (
	AlertPending  AlertStatus = "pending"
	AlertSent     AlertStatus = "sent"
	AlertResolved AlertStatus = "resolved"
)

// Active reports whether the alert still blocks a new one for the same key.
func (s AlertStatus) Active() bool {
	return s == AlertPending || s == AlertSent
}

// ExpirationAlert warns about a document approaching its expiry date.
// At most one active alert exists per AlertKey.
type ExpirationAlert struct {
	ID            string
	SubjectKind   OwnerKind
	SubjectID     string
	DocumentID    string
	DocumentType  DocumentType
	ExpiresAt     time.Time
	Status        AlertStatus
	DaysRemaining int
	CreatedAt     time.Time
	SentAt        *time.Time
}

// AlertKey is the dedup key: one subject, one document type.
type AlertKey struct {
	SubjectKind  OwnerKind
	SubjectID    string
	DocumentType DocumentType
}

func (k AlertKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.SubjectKind, k.SubjectID, k.DocumentType)
}

func (a ExpirationAlert) Key() AlertKey {
	return AlertKey{SubjectKind: a.SubjectKind, SubjectID: a.SubjectID, DocumentType: a.DocumentType}
}

// DaysUntil is floor((expiry - now) / 24h). Negative once expired.
func DaysUntil(expiry, now time.Time) int {
	return int(math.Floor(expiry.Sub(now).Hours() / 24))
}
