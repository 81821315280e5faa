// services/dispatch-service/internal/dispatcher/fields.go
package dispatcher

import "github.com/dukens11-create/gud/shared/contracts"

// Field names a load attribute handlers can subscribe to.
type Field string

const (
	FieldStatus   Field = "status"
	FieldDriverID Field = "driverId"
)

type FieldSet map[Field]bool

func (s FieldSet) Has(f Field) bool { return s[f] }

func (s FieldSet) Empty() bool { return len(s) == 0 }

// ChangedFields compares the tracked fields of two snapshots. A nil before
// is a create: every field that is set on after counts as changed from nothing.
func ChangedFields(before, after *contracts.Load) FieldSet {
	out := FieldSet{}
	if after == nil {
		return out
	}
	if before == nil {
		if after.Status != "" {
			out[FieldStatus] = true
		}
		if after.DriverID != "" {
			out[FieldDriverID] = true
		}
		return out
	}
	if before.Status != after.Status {
		out[FieldStatus] = true
	}
	if before.DriverID != after.DriverID {
		out[FieldDriverID] = true
	}
	return out
}
