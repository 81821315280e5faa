// shared/contracts/load.model.go
package contracts

import "time"

type LoadStatus string

const (
	LoadCreated   LoadStatus = "created"
	LoadAssigned  LoadStatus = "assigned"
	LoadInTransit LoadStatus = "in_transit"
	LoadDelivered LoadStatus = "delivered"
	LoadCancelled LoadStatus = "cancelled"
)

type ValidationStatus string

const (
	ValidationPassed ValidationStatus = "passed"
	ValidationFailed ValidationStatus = "failed"
)

// Load represents the single source of truth for a load record.
// The dispatcher, the audit tool and the change-event producer all use this struct.
type Load struct {
	ID         string     `json:"id"`
	LoadNumber string     `json:"loadNumber"`
	Status     LoadStatus `json:"status"`

	// DriverID is expected to equal a Driver identity (the driver's auth uid).
	// DriverName is denormalized and may drift from the canonical name.
	DriverID   string `json:"driverId,omitempty"`
	DriverName string `json:"driverName,omitempty"`

	RateCents int64 `json:"rateCents"`

	PickupAddress   string     `json:"pickupAddress,omitempty"`
	PickupCity      string     `json:"pickupCity,omitempty"`
	DeliveryAddress string     `json:"deliveryAddress,omitempty"`
	DeliveryCity    string     `json:"deliveryCity,omitempty"`
	DeliveryDate    *time.Time `json:"deliveryDate,omitempty"`
	Notes           string     `json:"notes,omitempty"`

	ValidationStatus ValidationStatus `json:"validationStatus,omitempty"`
	ValidationErrors []string         `json:"validationErrors,omitempty"`

	// EarningsApplied is the idempotency marker for the delivered transition.
	EarningsApplied bool `json:"earningsApplied"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
