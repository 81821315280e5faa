// services/dispatch-service/internal/audit/matcher.go

package audit

import (
	"strings"

	"github.com/dukens11-create/gud/services/dispatch-service/internal/domain"
)

type MatchKind string

const (
	MatchResolved  MatchKind = "resolved"
	MatchAmbiguous MatchKind = "ambiguous"
	MatchUnmatched MatchKind = "unmatched"
)

// Match is the outcome of resolving a load's driver reference.
// ByName is set when the driver was found through the name fallback.
type Match struct {
	Kind       MatchKind
	Driver     *domain.Driver
	Candidates []domain.Driver
	ByName     bool
}

// Matcher resolves driver references against the canonical driver set:
// exact id first, then a case-insensitive name lookup.
type Matcher struct {
	byID   map[string]domain.Driver
	byName map[string][]domain.Driver
}

func NewMatcher(drivers []domain.Driver) *Matcher {
	m := &Matcher{
		byID:   make(map[string]domain.Driver, len(drivers)),
		byName: make(map[string][]domain.Driver),
	}
	for _, d := range drivers {
		m.byID[d.ID] = d
		if key := normalize(d.Name); key != "" {
			m.byName[key] = append(m.byName[key], d)
		}
	}
	return m
}

func (m *Matcher) Driver(id string) (domain.Driver, bool) {
	d, ok := m.byID[id]
	return d, ok
}

func (m *Matcher) Len() int { return len(m.byID) }

// Resolve matches a load's driver reference. The name fallback uses the
// denormalized driver name, or the reference itself when the name is empty
// since legacy loads often stored a name in the id field.
func (m *Matcher) Resolve(load domain.Load) Match {
	if d, ok := m.byID[load.DriverID]; ok {
		return Match{Kind: MatchResolved, Driver: &d}
	}

	name := load.DriverName
	if strings.TrimSpace(name) == "" {
		name = load.DriverID
	}
	candidates := m.byName[normalize(name)]
	switch len(candidates) {
	case 0:
		return Match{Kind: MatchUnmatched}
	case 1:
		d := candidates[0]
		return Match{Kind: MatchResolved, Driver: &d, ByName: true}
	default:
		return Match{Kind: MatchAmbiguous, Candidates: append([]domain.Driver(nil), candidates...)}
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
