// services/dispatch-service/internal/domain/people.domain.go
package domain

type Role string

const (
	RoleDriver Role = "driver"
	RoleAdmin  Role = "admin"
)

// Driver is keyed by the driver's auth identity, which must equal the
// matching User.ID.
type Driver struct {
	ID                 string
	Name               string
	Email              string
	TruckNumber        string
	IsActive           bool
	TotalEarningsCents int64
	CompletedLoads     int
}

type User struct {
	ID        string
	Name      string
	Email     string
	Role      Role
	PushToken string // device bound, may be empty or stale
	DriverID  string // set for driver-role users
}

type Vehicle struct {
	ID          string
	TruckNumber string
	DriverID    string // currently assigned driver, may be empty
}
