package audit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dukens11-create/gud/services/dispatch-service/internal/domain"
	"github.com/dukens11-create/gud/services/dispatch-service/internal/earnings"
	"github.com/dukens11-create/gud/services/dispatch-service/internal/store"
	"github.com/dukens11-create/gud/shared/contracts"
	"github.com/dukens11-create/gud/shared/logger"
)

// --- MOCKS ---

type recordingPublisher struct {
	events []contracts.ChangeEvent
	err    error
}

func (p *recordingPublisher) PublishChange(ctx context.Context, ev contracts.ChangeEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

func twoDrivers() *store.MemoryStore {
	s := store.NewMemoryStore()
	s.PutDriver(domain.Driver{ID: "u1", Name: "A"})
	s.PutDriver(domain.Driver{ID: "u2", Name: "B"})
	return s
}

// --- TESTS ---

func TestMatcherResolve(t *testing.T) {
	m := NewMatcher([]domain.Driver{
		{ID: "u1", Name: "Alice Smith"},
		{ID: "u2", Name: "Bob"},
		{ID: "u3", Name: "bob"},
	})

	tests := []struct {
		name     string
		load     domain.Load
		wantKind MatchKind
		wantID   string
		byName   bool
	}{
		{name: "exact id", load: domain.Load{DriverID: "u1"}, wantKind: MatchResolved, wantID: "u1"},
		{name: "name fallback is case-insensitive", load: domain.Load{DriverID: "legacy-7", DriverName: "  alice SMITH "}, wantKind: MatchResolved, wantID: "u1", byName: true},
		{name: "name stored in id field", load: domain.Load{DriverID: "Alice Smith"}, wantKind: MatchResolved, wantID: "u1", byName: true},
		{name: "shared name is ambiguous", load: domain.Load{DriverID: "x", DriverName: "BOB"}, wantKind: MatchAmbiguous},
		{name: "nobody", load: domain.Load{DriverID: "x", DriverName: "Carol"}, wantKind: MatchUnmatched},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Resolve(tt.load)
			if got.Kind != tt.wantKind {
				t.Fatalf("expected %s, got %s", tt.wantKind, got.Kind)
			}
			if tt.wantID != "" && (got.Driver == nil || got.Driver.ID != tt.wantID) {
				t.Errorf("expected driver %s, got %+v", tt.wantID, got.Driver)
			}
			if got.ByName != tt.byName {
				t.Errorf("expected ByName=%v", tt.byName)
			}
			if tt.wantKind == MatchAmbiguous && len(got.Candidates) != 2 {
				t.Errorf("expected both candidates surfaced, got %+v", got.Candidates)
			}
		})
	}
}

func TestAuditAndRepair(t *testing.T) {
	s := twoDrivers()
	s.PutLoad(domain.Load{ID: "l1", LoadNumber: "L-1", DriverID: "u1", DriverName: "A", Status: domain.LoadAssigned})
	s.PutLoad(domain.Load{ID: "l2", LoadNumber: "L-2", DriverID: "Bob", DriverName: "B", Status: domain.LoadAssigned})
	pub := &recordingPublisher{}
	a := NewAuditor(s, pub, logger.Discard())
	ctx := context.Background()

	report, err := a.Scan(ctx)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if report.Valid != 1 || len(report.Unresolvable) != 1 {
		t.Fatalf("expected one valid and one mismatch, got %+v", report)
	}
	fix, ok := report.Unresolvable[0].Suggestion()
	if !ok || fix.LoadID != "l2" || fix.DriverID != "u2" {
		t.Fatalf("expected suggestion l2 -> u2, got %+v", fix)
	}

	result, err := a.Repair(ctx)
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if len(result.Repaired) != 1 {
		t.Fatalf("expected one repair, got %+v", result)
	}
	l2, _ := s.GetLoad(ctx, "l2")
	if l2.DriverID != "u2" || l2.DriverName != "B" {
		t.Errorf("load not repaired: %+v", l2)
	}
	if len(pub.events) != 1 || pub.events[0].Before.DriverID != "Bob" || pub.events[0].After.DriverID != "u2" {
		t.Errorf("expected one repair event, got %+v", pub.events)
	}

	report, _ = a.Scan(ctx)
	if report.Valid != 2 || len(report.Unresolvable) != 0 {
		t.Errorf("both loads should now be valid, got %+v", report)
	}

	writes := s.Writes()
	again, err := a.Repair(ctx)
	if err != nil {
		t.Fatalf("second repair: %v", err)
	}
	if len(again.Repaired) != 0 || s.Writes() != writes {
		t.Errorf("second repair must perform zero writes, did %d", s.Writes()-writes)
	}
}

func TestRepairLeavesAmbiguousAndUnmatched(t *testing.T) {
	s := twoDrivers()
	s.PutDriver(domain.Driver{ID: "u3", Name: "b"})
	s.PutLoad(domain.Load{ID: "l1", DriverID: "Bob", DriverName: "B"})
	s.PutLoad(domain.Load{ID: "l2", DriverID: "ghost", DriverName: "Casper"})

	result, err := NewAuditor(s, nil, logger.Discard()).Repair(context.Background())
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if len(result.Repaired) != 0 || len(result.Ambiguous) != 1 || len(result.Unmatched) != 1 {
		t.Errorf("unexpected result %+v", result)
	}
	if s.Writes() != 0 {
		t.Errorf("nothing should be written")
	}
}

type failingRefStore struct {
	*store.MemoryStore
	failOn string
}

func (f failingRefStore) UpdateDriverRef(ctx context.Context, change domain.DriverReassignment) error {
	if change.LoadID == f.failOn {
		return errors.New("write conflict")
	}
	return f.MemoryStore.UpdateDriverRef(ctx, change)
}

func TestRepairIsAllOrNothing(t *testing.T) {
	mem := twoDrivers()
	mem.PutLoad(domain.Load{ID: "l1", DriverID: "old-a", DriverName: "A"})
	mem.PutLoad(domain.Load{ID: "l2", DriverID: "old-b", DriverName: "B"})
	pub := &recordingPublisher{}

	_, err := NewAuditor(failingRefStore{MemoryStore: mem, failOn: "l2"}, pub, logger.Discard()).Repair(context.Background())
	if err == nil {
		t.Fatal("expected repair to fail")
	}
	l1, _ := mem.GetLoad(context.Background(), "l1")
	if l1.DriverID != "old-a" {
		t.Errorf("first repair should have rolled back, got %q", l1.DriverID)
	}
	if len(pub.events) != 0 {
		t.Errorf("nothing should be announced after a rollback")
	}
}

func TestLedgerDivergence(t *testing.T) {
	s := twoDrivers()
	s.PutDriver(domain.Driver{ID: "u1", Name: "A", CompletedLoads: 5})
	s.PutDriver(domain.Driver{ID: "u2", Name: "B", CompletedLoads: 1})
	for _, id := range []string{"d1", "d2"} {
		s.PutLoad(domain.Load{ID: id, DriverID: "u1", Status: domain.LoadDelivered, EarningsApplied: true})
	}
	s.PutLoad(domain.Load{ID: "d3", DriverID: "u2", Status: domain.LoadDelivered, EarningsApplied: true})
	s.PutLoad(domain.Load{ID: "d4", DriverID: "u2", Status: domain.LoadDelivered})
	s.PutLoad(domain.Load{ID: "t1", DriverID: "u2", Status: domain.LoadInTransit})

	report, err := NewAuditor(s, nil, logger.Discard()).Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(report.Divergences) != 2 {
		t.Fatalf("expected both drivers flagged, got %+v", report.Divergences)
	}

	byID := map[string]Divergence{}
	for _, d := range report.Divergences {
		byID[d.Driver.ID] = d
	}
	a := byID["u1"]
	if a.Stored != 5 || a.Live != 2 || len(a.Causes) != 1 || a.Causes[0] != "counter edited outside the ledger" {
		t.Errorf("unexpected divergence for u1: %+v", a)
	}
	b := byID["u2"]
	if b.Stored != 1 || b.Live != 2 || len(b.Causes) != 1 || !strings.Contains(b.Causes[0], "never ran") {
		t.Errorf("unexpected divergence for u2: %+v", b)
	}
	if len(report.Unsettled) != 1 || report.Unsettled[0].ID != "d4" {
		t.Errorf("expected d4 unsettled, got %+v", report.Unsettled)
	}
}

func TestSettleCreditsUnsettledLoads(t *testing.T) {
	s := twoDrivers()
	s.PutLoad(domain.Load{ID: "d1", DriverID: "u2", Status: domain.LoadDelivered, RateCents: 9000})
	a := NewAuditor(s, nil, logger.Discard())
	ctx := context.Background()

	report, _ := a.Scan(ctx)
	res, err := a.Settle(ctx, report, earnings.NewUpdater(s, logger.Discard()))
	if err != nil || res.Credited != 1 || res.Marked != 0 {
		t.Fatalf("expected one credited load, got %+v (%v)", res, err)
	}
	report, _ = a.Scan(ctx)
	if !report.Clean() {
		t.Errorf("expected clean report after settling, got %+v", report)
	}
}

func TestSettleDoesNotInflateAgreeingCounter(t *testing.T) {
	tests := []struct {
		name         string
		stored       int
		storedCents  int64
		delivered    int
		wantCredited int
		wantMarked   int
	}{
		{name: "counter already matches", stored: 1, storedCents: 5000, delivered: 1, wantCredited: 0, wantMarked: 1},
		{name: "counter one short", stored: 1, storedCents: 5000, delivered: 2, wantCredited: 1, wantMarked: 1},
		{name: "counter ahead", stored: 3, storedCents: 15000, delivered: 1, wantCredited: 0, wantMarked: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewMemoryStore()
			s.PutDriver(domain.Driver{ID: "u1", Name: "A", CompletedLoads: tt.stored, TotalEarningsCents: tt.storedCents})
			for i := 0; i < tt.delivered; i++ {
				s.PutLoad(domain.Load{ID: fmt.Sprintf("d%d", i), DriverID: "u1", Status: domain.LoadDelivered, RateCents: 5000})
			}
			a := NewAuditor(s, nil, logger.Discard())
			ctx := context.Background()

			before, _ := a.Scan(ctx)
			res, err := a.Settle(ctx, before, earnings.NewUpdater(s, logger.Discard()))
			if err != nil {
				t.Fatalf("settle: %v", err)
			}
			if res.Credited != tt.wantCredited || res.Marked != tt.wantMarked {
				t.Errorf("expected credited=%d marked=%d, got %+v", tt.wantCredited, tt.wantMarked, res)
			}

			d, _ := s.GetDriver(ctx, "u1")
			wantLoads := tt.stored + tt.wantCredited
			if d.CompletedLoads != wantLoads || d.TotalEarningsCents != tt.storedCents+int64(tt.wantCredited)*5000 {
				t.Errorf("driver counter wrong after settle: %+v", d)
			}

			after, _ := a.Scan(ctx)
			if len(after.Unsettled) != 0 {
				t.Errorf("expected every delivered load settled, got %d", len(after.Unsettled))
			}
			if len(after.Divergences) > len(before.Divergences) {
				t.Errorf("settling must not create divergence: before=%d after=%d", len(before.Divergences), len(after.Divergences))
			}
		})
	}
}

func TestAssignLegacy(t *testing.T) {
	s := twoDrivers()
	s.PutLoad(domain.Load{ID: "l1"})
	s.PutLoad(domain.Load{ID: "l2"})
	s.PutLoad(domain.Load{ID: "l3", DriverID: "u1", DriverName: "A"})
	a := NewAuditor(s, nil, logger.Discard())
	ctx := context.Background()

	if _, err := a.AssignLegacy(ctx, "nobody"); !errors.Is(err, domain.ErrDriverNotFound) {
		t.Fatalf("expected ErrDriverNotFound, got %v", err)
	}

	done, err := a.AssignLegacy(ctx, "u2")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if len(done) != 2 {
		t.Fatalf("expected two assignments, got %+v", done)
	}
	for _, id := range []string{"l1", "l2"} {
		l, _ := s.GetLoad(ctx, id)
		if l.DriverID != "u2" || l.DriverName != "B" {
			t.Errorf("%s not assigned: %+v", id, l)
		}
	}
	l3, _ := s.GetLoad(ctx, "l3")
	if l3.DriverID != "u1" {
		t.Errorf("assigned load must not be touched")
	}
}

func TestAssignInteractive(t *testing.T) {
	s := twoDrivers()
	s.PutLoad(domain.Load{ID: "l1", LoadNumber: "L-1"})
	s.PutLoad(domain.Load{ID: "l2", LoadNumber: "L-2"})
	s.PutLoad(domain.Load{ID: "l3", LoadNumber: "L-3"})
	a := NewAuditor(s, nil, logger.Discard())
	ctx := context.Background()

	// l1: invalid then driver 2, l2: skip, then stop before l3
	in := strings.NewReader("abc\n2\n0\n-1\n")
	var out bytes.Buffer
	done, err := a.AssignInteractive(ctx, in, &out)
	if err != nil {
		t.Fatalf("interactive: %v", err)
	}
	if len(done) != 1 || done[0].LoadID != "l1" || done[0].DriverID != "u2" {
		t.Fatalf("unexpected assignments %+v", done)
	}
	if !strings.Contains(out.String(), "Invalid choice.") || !strings.Contains(out.String(), "Load L-3") {
		t.Errorf("unexpected transcript:\n%s", out.String())
	}
	for _, id := range []string{"l2", "l3"} {
		l, _ := s.GetLoad(ctx, id)
		if l.DriverID != "" {
			t.Errorf("%s should stay unassigned", id)
		}
	}
}

func TestAssignInteractiveWithoutDrivers(t *testing.T) {
	s := store.NewMemoryStore()
	s.PutLoad(domain.Load{ID: "l1"})
	_, err := NewAuditor(s, nil, logger.Discard()).AssignInteractive(context.Background(), strings.NewReader(""), &bytes.Buffer{})
	if !errors.Is(err, ErrNoDrivers) {
		t.Fatalf("expected ErrNoDrivers, got %v", err)
	}
}

func TestPrintReport(t *testing.T) {
	s := twoDrivers()
	s.PutLoad(domain.Load{ID: "l2", LoadNumber: "L-2", DriverID: "Bob", DriverName: "B"})
	report, _ := NewAuditor(s, nil, logger.Discard()).Scan(context.Background())

	var out bytes.Buffer
	PrintReport(&out, report)
	for _, want := range []string{"unresolvable reference:  1", "Suggested fixes:", "L-2", "u2 (B)"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("report missing %q:\n%s", want, out.String())
		}
	}
}
