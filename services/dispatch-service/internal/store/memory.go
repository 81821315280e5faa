// services/dispatch-service/internal/store/memory.go
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dukens11-create/gud/services/dispatch-service/internal/domain"
)

// MemoryStore is an in-process Store. Transactions are serialized and roll
// back by restoring a snapshot taken when they start.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	loads    map[string]domain.Load
	drivers  map[string]domain.Driver
	users    map[string]domain.User
	vehicles map[string]domain.Vehicle
	docs     map[string]domain.Document
	alerts   map[string]domain.ExpirationAlert
	points   map[string]domain.LocationPoint

	writes int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		loads:    make(map[string]domain.Load),
		drivers:  make(map[string]domain.Driver),
		users:    make(map[string]domain.User),
		vehicles: make(map[string]domain.Vehicle),
		docs:     make(map[string]domain.Document),
		alerts:   make(map[string]domain.ExpirationAlert),
		points:   make(map[string]domain.LocationPoint),
	}
}

var _ Store = (*MemoryStore)(nil)

type memTxKey struct{}

func (s *MemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	loads   map[string]domain.Load
	drivers map[string]domain.Driver
	alerts  map[string]domain.ExpirationAlert
	writes  int
}

func (s *MemoryStore) snapshot() memSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return memSnapshot{
		loads:   copyMap(s.loads),
		drivers: copyMap(s.drivers),
		alerts:  copyMap(s.alerts),
		writes:  s.writes,
	}
}

func (s *MemoryStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads, s.drivers, s.alerts, s.writes = snap.loads, snap.drivers, snap.alerts, snap.writes
}

func copyMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Writes counts committed mutations. Tests use it to prove a pass was a no-op.
func (s *MemoryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// --- seeding ---

func (s *MemoryStore) PutLoad(l domain.Load) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads[l.ID] = l
}

func (s *MemoryStore) PutDriver(d domain.Driver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drivers[d.ID] = d
}

func (s *MemoryStore) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *MemoryStore) PutVehicle(v domain.Vehicle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vehicles[v.ID] = v
}

func (s *MemoryStore) PutDocument(d domain.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[d.ID] = d
}

func (s *MemoryStore) PutAlert(a domain.ExpirationAlert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[a.ID] = a
}

func (s *MemoryStore) PutLocationPoint(p domain.LocationPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points[p.ID] = p
}

// Alerts returns every alert regardless of status.
func (s *MemoryStore) Alerts() []domain.ExpirationAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ExpirationAlert, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LocationPointCount is the number of stored location points.
func (s *MemoryStore) LocationPointCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

// --- loads ---

func (s *MemoryStore) GetLoad(ctx context.Context, id string) (*domain.Load, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.loads[id]
	if !ok {
		return nil, domain.ErrLoadNotFound
	}
	return &l, nil
}

func (s *MemoryStore) GetLoadForUpdate(ctx context.Context, id string) (*domain.Load, error) {
	return s.GetLoad(ctx, id)
}

func (s *MemoryStore) ListLoads(ctx context.Context) ([]domain.Load, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Load, 0, len(s.loads))
	for _, l := range s.loads {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ListOverdueLoads(ctx context.Context, statuses []domain.LoadStatus, before time.Time) ([]domain.Load, error) {
	all, err := s.ListLoads(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.Load
	for _, l := range all {
		if l.DeliveryDate == nil || !l.DeliveryDate.Before(before) {
			continue
		}
		for _, st := range statuses {
			if l.Status == st {
				out = append(out, l)
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) updateLoad(ctx context.Context, id string, fn func(l *domain.Load)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loads[id]
	if !ok {
		return domain.ErrLoadNotFound
	}
	fn(&l)
	l.UpdatedAt = time.Now().UTC()
	s.loads[id] = l
	s.writes++
	return nil
}

func (s *MemoryStore) SetValidation(ctx context.Context, loadID string, status domain.ValidationStatus, errs []string) error {
	return s.updateLoad(ctx, loadID, func(l *domain.Load) {
		l.ValidationStatus = status
		l.ValidationErrors = append([]string(nil), errs...)
	})
}

func (s *MemoryStore) MarkEarningsApplied(ctx context.Context, loadID string) error {
	return s.updateLoad(ctx, loadID, func(l *domain.Load) { l.EarningsApplied = true })
}

func (s *MemoryStore) UpdateDriverRef(ctx context.Context, change domain.DriverReassignment) error {
	return s.updateLoad(ctx, change.LoadID, func(l *domain.Load) {
		l.DriverID = change.DriverID
		l.DriverName = change.DriverName
	})
}

// --- drivers, users, vehicles ---

func (s *MemoryStore) GetDriver(ctx context.Context, id string) (*domain.Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drivers[id]
	if !ok {
		return nil, domain.ErrDriverNotFound
	}
	return &d, nil
}

func (s *MemoryStore) ListDrivers(ctx context.Context) ([]domain.Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Driver, 0, len(s.drivers))
	for _, d := range s.drivers {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) AddEarnings(ctx context.Context, driverID string, cents int64, loads int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[driverID]
	if !ok {
		return domain.ErrDriverNotFound
	}
	d.TotalEarningsCents += cents
	d.CompletedLoads += loads
	s.drivers[driverID] = d
	s.writes++
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (s *MemoryStore) ListUsersByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.User
	for _, u := range s.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetVehicle(ctx context.Context, id string) (*domain.Vehicle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vehicles[id]
	if !ok {
		return nil, domain.ErrVehicleNotFound
	}
	return &v, nil
}

// --- documents and alerts ---

func (s *MemoryStore) ListExpiringDocuments(ctx context.Context, from, to time.Time) ([]domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Document
	for _, d := range s.docs {
		if d.Status != domain.DocumentValid || d.ExpiresAt == nil {
			continue
		}
		if d.ExpiresAt.After(from) && d.ExpiresAt.Before(to) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) hasActiveLocked(key domain.AlertKey) bool {
	for _, a := range s.alerts {
		if a.Status.Active() && a.Key() == key {
			return true
		}
	}
	return false
}

func (s *MemoryStore) HasActiveAlert(ctx context.Context, key domain.AlertKey) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasActiveLocked(key), nil
}

func (s *MemoryStore) CreateAlert(ctx context.Context, alert domain.ExpirationAlert) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if alert.Status.Active() && s.hasActiveLocked(alert.Key()) {
		return false, nil
	}
	s.alerts[alert.ID] = alert
	s.writes++
	return true, nil
}

func (s *MemoryStore) ListActiveAlerts(ctx context.Context) ([]domain.ExpirationAlert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []domain.ExpirationAlert
	for _, a := range s.Alerts() {
		if a.Status.Active() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateDaysRemaining(ctx context.Context, days map[string]int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, d := range days {
		a, ok := s.alerts[id]
		if !ok {
			continue
		}
		a.DaysRemaining = d
		s.alerts[id] = a
		s.writes++
	}
	return nil
}

// --- location history ---

func (s *MemoryStore) DeleteLocationHistoryBefore(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var old []domain.LocationPoint
	for _, p := range s.points {
		if p.RecordedAt.Before(cutoff) {
			old = append(old, p)
		}
	}
	sort.Slice(old, func(i, j int) bool { return old[i].RecordedAt.Before(old[j].RecordedAt) })
	if len(old) > limit {
		old = old[:limit]
	}
	for _, p := range old {
		delete(s.points, p.ID)
	}
	if len(old) > 0 {
		s.writes++
	}
	return len(old), nil
}
