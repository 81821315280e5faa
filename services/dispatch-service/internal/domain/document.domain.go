// services/dispatch-service/internal/domain/document.domain.go
package domain

import "time"

type DocumentType string

const (
	DocLicense       DocumentType = "license"
	DocMedicalCard   DocumentType = "medical_card"
	DocCertification DocumentType = "certification"
	DocRegistration  DocumentType = "registration"
	DocInsurance     DocumentType = "insurance"
	DocOther         DocumentType = "other"
)

type DocumentStatus string

const (
	DocumentValid   DocumentStatus = "valid"
	DocumentExpired DocumentStatus = "expired"
)

// OwnerKind says which collection a document hangs off.
type OwnerKind string

const (
	OwnerDriver  OwnerKind = "driver"
	OwnerVehicle OwnerKind = "vehicle"
)

type Document struct {
	ID        string
	OwnerKind OwnerKind
	OwnerID   string
	Type      DocumentType
	ExpiresAt *time.Time
	Status    DocumentStatus
}

// LocationPoint is one row of a driver's or vehicle's location history.
type LocationPoint struct {
	ID         string
	EntityKind OwnerKind
	EntityID   string
	Latitude   float64
	Longitude  float64
	RecordedAt time.Time
}
