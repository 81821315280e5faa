package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/dukens11-create/gud/shared/contracts"
	"github.com/dukens11-create/gud/shared/logger"
)

type recordingHandler struct {
	name string
	err  error

	mu     sync.Mutex
	events []contracts.ChangeEvent
}

func (h *recordingHandler) Name() string { return h.name }

func (h *recordingHandler) Handle(ctx context.Context, ev contracts.ChangeEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return h.err
}

func (h *recordingHandler) calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func TestChangedFields(t *testing.T) {
	tests := []struct {
		name   string
		before *contracts.Load
		after  *contracts.Load
		want   []Field
	}{
		{
			name:  "create with driver",
			after: &contracts.Load{Status: contracts.LoadCreated, DriverID: "u1"},
			want:  []Field{FieldStatus, FieldDriverID},
		},
		{
			name:  "create without driver",
			after: &contracts.Load{Status: contracts.LoadCreated},
			want:  []Field{FieldStatus},
		},
		{
			name:   "status change only",
			before: &contracts.Load{Status: contracts.LoadInTransit, DriverID: "u1"},
			after:  &contracts.Load{Status: contracts.LoadDelivered, DriverID: "u1"},
			want:   []Field{FieldStatus},
		},
		{
			name:   "reassignment",
			before: &contracts.Load{Status: contracts.LoadAssigned, DriverID: "Bob"},
			after:  &contracts.Load{Status: contracts.LoadAssigned, DriverID: "u2"},
			want:   []Field{FieldDriverID},
		},
		{
			name:   "notes edit is a no-op",
			before: &contracts.Load{Status: contracts.LoadAssigned, DriverID: "u1", Notes: "a"},
			after:  &contracts.Load{Status: contracts.LoadAssigned, DriverID: "u1", Notes: "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ChangedFields(tt.before, tt.after)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for _, f := range tt.want {
				if !got.Has(f) {
					t.Errorf("expected %s to be changed", f)
				}
			}
		})
	}
}

func newTestDispatcher() (*Dispatcher, *recordingHandler, *recordingHandler, *recordingHandler) {
	d := New(logger.Discard())
	onCreate := &recordingHandler{name: "on-create"}
	onStatus := &recordingHandler{name: "on-status"}
	onDriver := &recordingHandler{name: "on-driver"}
	d.Register(Subscription{Entity: contracts.EntityLoad, Kinds: []contracts.ChangeKind{contracts.ChangeCreated}, Handler: onCreate})
	d.Register(Subscription{Entity: contracts.EntityLoad, Fields: []Field{FieldStatus}, Handler: onStatus})
	d.Register(Subscription{Entity: contracts.EntityLoad, Kinds: []contracts.ChangeKind{contracts.ChangeUpdated}, Fields: []Field{FieldDriverID}, Handler: onDriver})
	return d, onCreate, onStatus, onDriver
}

func TestDispatchRoutesByDelta(t *testing.T) {
	ctx := context.Background()

	t.Run("no-op update triggers nothing", func(t *testing.T) {
		d, onCreate, onStatus, onDriver := newTestDispatcher()
		load := &contracts.Load{ID: "l1", Status: contracts.LoadAssigned, DriverID: "u1"}
		same := *load
		same.Notes = "edited"
		report := d.Dispatch(ctx, contracts.ChangeEvent{Entity: contracts.EntityLoad, Kind: contracts.ChangeUpdated, Before: load, After: &same})
		if len(report.Results) != 0 || onCreate.calls()+onStatus.calls()+onDriver.calls() != 0 {
			t.Fatalf("expected zero side effects, got %+v", report.Results)
		}
	})

	t.Run("create reaches create and status handlers", func(t *testing.T) {
		d, onCreate, onStatus, onDriver := newTestDispatcher()
		d.Dispatch(ctx, contracts.ChangeEvent{Entity: contracts.EntityLoad, Kind: contracts.ChangeCreated, After: &contracts.Load{ID: "l1", Status: contracts.LoadCreated, DriverID: "u1"}})
		if onCreate.calls() != 1 || onStatus.calls() != 1 {
			t.Errorf("expected create and status handlers to run once, got %d and %d", onCreate.calls(), onStatus.calls())
		}
		if onDriver.calls() != 0 {
			t.Errorf("driver handler subscribed to updates only, ran %d times", onDriver.calls())
		}
	})

	t.Run("reassignment reaches driver handler only", func(t *testing.T) {
		d, onCreate, onStatus, onDriver := newTestDispatcher()
		d.Dispatch(ctx, contracts.ChangeEvent{
			Entity: contracts.EntityLoad, Kind: contracts.ChangeUpdated,
			Before: &contracts.Load{ID: "l1", Status: contracts.LoadAssigned, DriverID: "Bob"},
			After:  &contracts.Load{ID: "l1", Status: contracts.LoadAssigned, DriverID: "u2"},
		})
		if onDriver.calls() != 1 || onStatus.calls() != 0 || onCreate.calls() != 0 {
			t.Errorf("unexpected routing: create=%d status=%d driver=%d", onCreate.calls(), onStatus.calls(), onDriver.calls())
		}
	})
}

func TestDispatchCollectsErrorsAndRecoversPanics(t *testing.T) {
	d := New(logger.Discard())
	failing := &recordingHandler{name: "failing", err: errors.New("store down")}
	ok := &recordingHandler{name: "ok"}
	d.Register(Subscription{Entity: contracts.EntityLoad, Handler: failing})
	d.Register(Subscription{Entity: contracts.EntityLoad, Handler: ok})
	d.Register(Subscription{Entity: contracts.EntityLoad, Handler: HandlerFunc{
		HandlerName: "panicky",
		Fn: func(ctx context.Context, ev contracts.ChangeEvent) error {
			panic("nil map")
		},
	}})

	report := d.Dispatch(context.Background(), contracts.ChangeEvent{Entity: contracts.EntityLoad, Kind: contracts.ChangeCreated, After: &contracts.Load{ID: "l1", Status: contracts.LoadCreated}})
	if ok.calls() != 1 {
		t.Fatalf("healthy handler should still run")
	}
	err := report.Err()
	if err == nil {
		t.Fatal("expected joined error")
	}
	if !errors.Is(err, failing.err) {
		t.Errorf("expected store error to be wrapped, got %v", err)
	}
}

func TestKafkaHandler(t *testing.T) {
	d := New(logger.Discard())
	h := &recordingHandler{name: "h"}
	d.Register(Subscription{Entity: contracts.EntityLoad, Handler: h})
	handle := d.KafkaHandler()

	if err := handle(context.Background(), []byte("k"), []byte("{not json")); err != nil {
		t.Fatalf("bad payload should be dropped, got %v", err)
	}

	body, _ := json.Marshal(contracts.ChangeEvent{ID: "e1", Entity: contracts.EntityLoad, Kind: contracts.ChangeCreated, After: &contracts.Load{ID: "l9", Status: contracts.LoadCreated}})
	if err := handle(context.Background(), []byte("l9"), body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.calls() != 1 || h.events[0].EntityID != "l9" {
		t.Errorf("expected event routed with entity id filled, got %+v", h.events)
	}

	h.err = errors.New("retry me")
	if err := handle(context.Background(), []byte("l9"), body); err == nil {
		t.Error("handler error should surface so the consumer retries")
	}
}
