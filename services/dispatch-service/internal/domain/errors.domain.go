// services/dispatch-service/internal/domain/errors.domain.go
package domain

import "errors"

var (
	ErrLoadNotFound    = errors.New("load not found")
	ErrDriverNotFound  = errors.New("driver not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrVehicleNotFound = errors.New("vehicle not found")
)
