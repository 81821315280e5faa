// shared/contracts/change_event.model.go
package contracts

import "time"

type EntityType string

const EntityLoad EntityType = "load"

type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
)

// ChangeEvent is published on every write to a load record.
// Before is nil for a create. Delivery is at-least-once, so consumers must
// tolerate the same ID arriving more than once.
type ChangeEvent struct {
	ID         string     `json:"id"`
	Entity     EntityType `json:"entity"`
	EntityID   string     `json:"entityId"`
	Kind       ChangeKind `json:"kind"`
	Before     *Load      `json:"before,omitempty"`
	After      *Load      `json:"after"`
	OccurredAt time.Time  `json:"occurredAt"`
}
