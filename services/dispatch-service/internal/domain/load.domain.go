// services/dispatch-service/internal/domain/load.domain.go
package domain

import "github.com/dukens11-create/gud/shared/contracts"

type (
	Load             = contracts.Load
	LoadStatus       = contracts.LoadStatus
	ValidationStatus = contracts.ValidationStatus
)

const (
	LoadCreated   = contracts.LoadCreated
	LoadAssigned  = contracts.LoadAssigned
	LoadInTransit = contracts.LoadInTransit
	LoadDelivered = contracts.LoadDelivered
	LoadCancelled = contracts.LoadCancelled

	ValidationPassed = contracts.ValidationPassed
	ValidationFailed = contracts.ValidationFailed
)

// DriverReassignment rewrites a load's driver reference to canonical values.
type DriverReassignment struct {
	LoadID     string
	DriverID   string
	DriverName string
}
