// services/dispatch-service/internal/notify/router.go

package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukens11-create/gud/services/dispatch-service/internal/domain"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// broadcastWorkers caps concurrent deliveries per broadcast.
const broadcastWorkers = 16

type Status string

const (
	StatusSent           Status = "sent"
	StatusSkippedNoToken Status = "skipped_no_token"
	StatusSkippedNoUser  Status = "skipped_no_user"
	StatusFailed         Status = "failed"
)

// Outcome is the result of one delivery attempt.
type Outcome struct {
	Recipient string
	Status    Status
	Err       error
}

// Report aggregates the outcomes of one dispatch.
type Report struct {
	Outcomes []Outcome
}

func (r Report) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

func (r Report) Sent() int   { return r.Count(StatusSent) }
func (r Report) Failed() int { return r.Count(StatusFailed) }

func (r *Report) merge(other Report) {
	r.Outcomes = append(r.Outcomes, other.Outcomes...)
}

// UserDirectory resolves recipients.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	ListUsersByRole(ctx context.Context, role domain.Role) ([]domain.User, error)
}

// Message is a push notification before a recipient token is attached.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

func (m Message) to(token string) PushMessage {
	data := make(map[string]string, len(m.Data))
	for k, v := range m.Data {
		data[k] = v
	}
	return PushMessage{
		Notification: Notification{Title: m.Title, Body: m.Body},
		Data:         data,
		Token:        token,
	}
}

// Router resolves recipients and sends push messages. Delivery is best
// effort: failures are recorded in the returned Report and never returned
// as errors. The only error a Router returns is a failure to resolve the
// recipient list.
type Router struct {
	users UserDirectory
	push  PushSender
	log   logrus.FieldLogger
}

func NewRouter(users UserDirectory, push PushSender, log logrus.FieldLogger) *Router {
	return &Router{users: users, push: push, log: log}
}

// NotifyUser sends msg to a single user. Drivers are addressed by their
// driver id, which is also their user id.
func (r *Router) NotifyUser(ctx context.Context, userID string, msg Message) (Report, error) {
	user, err := r.users.GetUser(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		r.log.WithField("user_id", userID).Warn("notification recipient not found")
		return Report{Outcomes: []Outcome{{Recipient: userID, Status: StatusSkippedNoUser}}}, nil
	}
	if err != nil {
		return Report{}, fmt.Errorf("failed to resolve recipient: %w", err)
	}
	return Report{Outcomes: []Outcome{r.send(ctx, *user, msg)}}, nil
}

// BroadcastDrivers sends msg to every driver-role user.
func (r *Router) BroadcastDrivers(ctx context.Context, msg Message) (Report, error) {
	return r.broadcast(ctx, domain.RoleDriver, msg)
}

// BroadcastAdmins sends msg to every admin-role user.
func (r *Router) BroadcastAdmins(ctx context.Context, msg Message) (Report, error) {
	return r.broadcast(ctx, domain.RoleAdmin, msg)
}

func (r *Router) broadcast(ctx context.Context, role domain.Role, msg Message) (Report, error) {
	users, err := r.users.ListUsersByRole(ctx, role)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list %s users: %w", role, err)
	}

	report := Report{Outcomes: make([]Outcome, len(users))}
	var g errgroup.Group
	g.SetLimit(broadcastWorkers)
	for i, u := range users {
		g.Go(func() error {
			report.Outcomes[i] = r.send(ctx, u, msg)
			return nil
		})
	}
	_ = g.Wait()

	r.log.WithFields(logrus.Fields{
		"role":    role,
		"type":    msg.Data["type"],
		"sent":    report.Sent(),
		"skipped": report.Count(StatusSkippedNoToken),
		"failed":  report.Failed(),
	}).Info("broadcast finished")
	return report, nil
}

func (r *Router) send(ctx context.Context, u domain.User, msg Message) Outcome {
	if u.PushToken == "" {
		return Outcome{Recipient: u.ID, Status: StatusSkippedNoToken}
	}
	if err := r.push.SendPush(ctx, msg.to(u.PushToken)); err != nil {
		r.log.WithError(err).WithField("user_id", u.ID).Warn("push delivery failed")
		return Outcome{Recipient: u.ID, Status: StatusFailed, Err: err}
	}
	return Outcome{Recipient: u.ID, Status: StatusSent}
}
