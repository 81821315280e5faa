package kafka

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dukens11-create/gud/shared/contracts"
	skafka "github.com/segmentio/kafka-go"
)

// fakeWriter is a test writer that records messages written.
type fakeWriter struct {
	msgs []skafka.Message
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...skafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestPublishChange(t *testing.T) {
	fw := &fakeWriter{}
	p := NewChangeProducerWithWriter(fw)
	err := p.PublishChange(context.Background(), contracts.ChangeEvent{
		Entity:   contracts.EntityLoad,
		EntityID: "load-1",
		Kind:     contracts.ChangeUpdated,
		After:    &contracts.Load{ID: "load-1", DriverID: "u2"},
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if len(fw.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(fw.msgs))
	}
	if string(fw.msgs[0].Key) != "load-1" {
		t.Errorf("expected key load-1, got %q", fw.msgs[0].Key)
	}

	var got contracts.ChangeEvent
	if err := json.Unmarshal(fw.msgs[0].Value, &got); err != nil {
		t.Fatalf("payload is not a change event: %v", err)
	}
	if got.ID == "" || got.OccurredAt.IsZero() {
		t.Errorf("expected id and timestamp to be filled, got %+v", got)
	}
	if got.After == nil || got.After.DriverID != "u2" {
		t.Errorf("after snapshot lost: %+v", got.After)
	}
}
