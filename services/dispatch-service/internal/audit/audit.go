// services/dispatch-service/internal/audit/audit.go

package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukens11-create/gud/services/dispatch-service/internal/domain"
	"github.com/dukens11-create/gud/services/dispatch-service/internal/store"
	"github.com/dukens11-create/gud/shared/contracts"
	"github.com/sirupsen/logrus"
)

var ErrNoDrivers = errors.New("no drivers found")

// Store is what the audit reads and repairs.
type Store interface {
	store.TransactionManager
	ListLoads(ctx context.Context) ([]domain.Load, error)
	ListDrivers(ctx context.Context) ([]domain.Driver, error)
	GetDriver(ctx context.Context, id string) (*domain.Driver, error)
	GetLoadForUpdate(ctx context.Context, id string) (*domain.Load, error)
	UpdateDriverRef(ctx context.Context, change domain.DriverReassignment) error
	MarkEarningsApplied(ctx context.Context, loadID string) error
}

// Publisher announces repaired loads on the change stream.
type Publisher interface {
	PublishChange(ctx context.Context, event contracts.ChangeEvent) error
}

// Finding is a load whose driver reference does not resolve by id.
type Finding struct {
	Load  domain.Load
	Match Match
}

// Suggestion returns the canonical reassignment for a uniquely name-matched load.
func (f Finding) Suggestion() (domain.DriverReassignment, bool) {
	if f.Match.Kind != MatchResolved || f.Match.Driver == nil {
		return domain.DriverReassignment{}, false
	}
	return domain.DriverReassignment{
		LoadID:     f.Load.ID,
		DriverID:   f.Match.Driver.ID,
		DriverName: f.Match.Driver.Name,
	}, true
}

// Divergence is a driver whose stored completed-load counter disagrees with
// the number of delivered loads referencing them.
type Divergence struct {
	Driver domain.Driver
	Stored int
	Live   int
	Causes []string
}

type Report struct {
	Drivers      int
	TotalLoads   int
	Valid        int
	Absent       []domain.Load
	Unresolvable []Finding
	Divergences  []Divergence
	// Unsettled are delivered loads with a resolvable driver whose earnings
	// were never applied.
	Unsettled []domain.Load
}

func (r Report) byKind(kind MatchKind) []Finding {
	var out []Finding
	for _, f := range r.Unresolvable {
		if f.Match.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

func (r Report) Fixable() []Finding   { return r.byKind(MatchResolved) }
func (r Report) Ambiguous() []Finding { return r.byKind(MatchAmbiguous) }
func (r Report) Unmatched() []Finding { return r.byKind(MatchUnmatched) }

// Clean reports whether the audit found nothing to act on.
func (r Report) Clean() bool {
	return len(r.Unresolvable) == 0 && len(r.Divergences) == 0 && len(r.Unsettled) == 0
}

// Auditor checks loads against the canonical driver set and repairs
// references it can resolve unambiguously.
type Auditor struct {
	store     Store
	publisher Publisher
	log       logrus.FieldLogger
}

// NewAuditor builds an Auditor. publisher may be nil; when set, every
// repaired load is announced as a change event.
func NewAuditor(s Store, publisher Publisher, log logrus.FieldLogger) *Auditor {
	return &Auditor{store: s, publisher: publisher, log: log}
}

type snapshot struct {
	loads   []domain.Load
	drivers []domain.Driver
	matcher *Matcher
}

func (a *Auditor) load(ctx context.Context) (snapshot, error) {
	drivers, err := a.store.ListDrivers(ctx)
	if err != nil {
		return snapshot{}, fmt.Errorf("failed to list drivers: %w", err)
	}
	loads, err := a.store.ListLoads(ctx)
	if err != nil {
		return snapshot{}, fmt.Errorf("failed to list loads: %w", err)
	}
	return snapshot{loads: loads, drivers: drivers, matcher: NewMatcher(drivers)}, nil
}

// Scan is read-only.
func (a *Auditor) Scan(ctx context.Context) (Report, error) {
	snap, err := a.load(ctx)
	if err != nil {
		return Report{}, err
	}
	return buildReport(snap), nil
}

func buildReport(snap snapshot) Report {
	r := Report{Drivers: len(snap.drivers), TotalLoads: len(snap.loads)}

	liveCount := make(map[string]int)
	unsettled := make(map[string]int)
	staleRefs := make(map[string]int)

	for _, l := range snap.loads {
		delivered := l.Status == domain.LoadDelivered
		if l.DriverID == "" {
			r.Absent = append(r.Absent, l)
			continue
		}
		m := snap.matcher.Resolve(l)
		if m.Kind == MatchResolved && !m.ByName {
			r.Valid++
			if delivered {
				liveCount[l.DriverID]++
				if !l.EarningsApplied {
					unsettled[l.DriverID]++
					r.Unsettled = append(r.Unsettled, l)
				}
			}
			continue
		}
		r.Unresolvable = append(r.Unresolvable, Finding{Load: l, Match: m})
		if delivered && m.Kind == MatchResolved {
			staleRefs[m.Driver.ID]++
		}
	}

	for _, d := range snap.drivers {
		live := liveCount[d.ID]
		if d.CompletedLoads == live {
			continue
		}
		r.Divergences = append(r.Divergences, Divergence{
			Driver: d,
			Stored: d.CompletedLoads,
			Live:   live,
			Causes: likelyCauses(d.CompletedLoads, live, unsettled[d.ID], staleRefs[d.ID]),
		})
	}
	return r
}

func likelyCauses(stored, live, unsettled, stale int) []string {
	var causes []string
	if unsettled > 0 {
		causes = append(causes, fmt.Sprintf("ledger update never ran for %d delivered load(s)", unsettled))
	}
	if stale > 0 {
		causes = append(causes, fmt.Sprintf("%d delivered load(s) reference this driver by a stale id", stale))
	}
	if stored != live-unsettled {
		causes = append(causes, "counter edited outside the ledger")
	}
	return causes
}
