// services/dispatch-service/internal/dispatcher/dispatcher.go
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dukens11-create/gud/shared/contracts"
	"github.com/sirupsen/logrus"
)

// Handler reacts to one change event. A returned error means the side effect
// could not be committed and the event should be redelivered; recoverable
// conditions (missing driver, failed push) are handled inside and return nil.
type Handler interface {
	Name() string
	Handle(ctx context.Context, ev contracts.ChangeEvent) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc struct {
	HandlerName string
	Fn          func(ctx context.Context, ev contracts.ChangeEvent) error
}

func (h HandlerFunc) Name() string { return h.HandlerName }

func (h HandlerFunc) Handle(ctx context.Context, ev contracts.ChangeEvent) error {
	return h.Fn(ctx, ev)
}

// Subscription declares which events a handler wants. Kinds empty means
// every kind; Fields empty means the handler fires on any event of a
// matching kind, otherwise at least one listed field must have changed.
type Subscription struct {
	Entity  contracts.EntityType
	Kinds   []contracts.ChangeKind
	Fields  []Field
	Handler Handler
}

func (s Subscription) wants(ev contracts.ChangeEvent, changed FieldSet) bool {
	if s.Entity != ev.Entity {
		return false
	}
	if len(s.Kinds) > 0 {
		ok := false
		for _, k := range s.Kinds {
			if k == ev.Kind {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(s.Fields) == 0 {
		return true
	}
	for _, f := range s.Fields {
		if changed.Has(f) {
			return true
		}
	}
	return false
}

// Result is what one handler did with one event.
type Result struct {
	Handler string
	Err     error
}

// Report lists the handlers that ran for an event.
type Report struct {
	EventID string
	Changed FieldSet
	Results []Result
}

// Err joins every handler error, nil when all succeeded.
func (r Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Handler, res.Err))
		}
	}
	return errors.Join(errs...)
}

// Dispatcher is the handler registry.
type Dispatcher struct {
	mu   sync.RWMutex
	subs []Subscription
	log  logrus.FieldLogger
}

func New(log logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{log: log}
}

func (d *Dispatcher) Register(sub Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs = append(d.subs, sub)
}

// Dispatch computes the field delta of ev and runs every interested handler
// concurrently, waiting for all of them. An update with an empty delta
// reaches no handler at all.
func (d *Dispatcher) Dispatch(ctx context.Context, ev contracts.ChangeEvent) Report {
	changed := ChangedFields(ev.Before, ev.After)
	report := Report{EventID: ev.ID, Changed: changed}

	log := d.log.WithFields(logrus.Fields{
		"event_id": ev.ID,
		"load_id":  ev.EntityID,
		"kind":     ev.Kind,
	})
	if ev.Kind == contracts.ChangeUpdated && changed.Empty() {
		log.Debug("no tracked field changed, ignoring update")
		return report
	}

	d.mu.RLock()
	var matched []Subscription
	for _, s := range d.subs {
		if s.wants(ev, changed) {
			matched = append(matched, s)
		}
	}
	d.mu.RUnlock()

	if len(matched) == 0 {
		log.Debug("no handler interested in change")
		return report
	}

	report.Results = make([]Result, len(matched))
	var wg sync.WaitGroup
	for i, s := range matched {
		wg.Add(1)
		go func(i int, h Handler) {
			defer wg.Done()
			report.Results[i] = Result{Handler: h.Name(), Err: d.run(ctx, h, ev)}
		}(i, s.Handler)
	}
	wg.Wait()

	for _, res := range report.Results {
		if res.Err != nil {
			log.WithError(res.Err).WithField("handler", res.Handler).Error("handler failed")
		}
	}
	return report
}

func (d *Dispatcher) run(ctx context.Context, h Handler, ev contracts.ChangeEvent) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panicked: %v", p)
		}
	}()
	return h.Handle(ctx, ev)
}
