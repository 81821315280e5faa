// services/dispatch-service/internal/notify/sender.go

package notify

import (
	"context"
	"encoding/json"
	"fmt"
)

const (
	PushQueue  = "push_jobs"
	EmailQueue = "email_jobs"
)

// Publisher is the queue transport the senders write to.
type Publisher interface {
	Publish(ctx context.Context, queueName string, body []byte) error
}

type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// PushMessage is the push payload handed to the delivery workers.
// Data always carries a "type" tag used by the client for routing.
type PushMessage struct {
	Notification Notification      `json:"notification"`
	Data         map[string]string `json:"data"`
	Token        string            `json:"token"`
}

type PushSender interface {
	SendPush(ctx context.Context, msg PushMessage) error
}

type Email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

type EmailSender interface {
	SendEmail(ctx context.Context, email Email) error
}

// QueuePushSender enqueues push jobs for the communications workers.
type QueuePushSender struct {
	pub   Publisher
	queue string
}

func NewQueuePushSender(pub Publisher) *QueuePushSender {
	return &QueuePushSender{pub: pub, queue: PushQueue}
}

func (s *QueuePushSender) SendPush(ctx context.Context, msg PushMessage) error {
	if msg.Token == "" {
		return ErrNoToken
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal push message: %w", err)
	}
	if err := s.pub.Publish(ctx, s.queue, body); err != nil {
		return fmt.Errorf("failed to enqueue push: %w", err)
	}
	return nil
}

// QueueEmailSender enqueues email jobs for the communications workers.
type QueueEmailSender struct {
	pub   Publisher
	queue string
}

func NewQueueEmailSender(pub Publisher) *QueueEmailSender {
	return &QueueEmailSender{pub: pub, queue: EmailQueue}
}

func (s *QueueEmailSender) SendEmail(ctx context.Context, email Email) error {
	if email.To == "" {
		return ErrNoAddress
	}
	body, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}
	if err := s.pub.Publish(ctx, s.queue, body); err != nil {
		return fmt.Errorf("failed to enqueue email: %w", err)
	}
	return nil
}
