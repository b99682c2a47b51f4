package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/leadwire/relay/internal/datatypes"
)

type capturingTrigger struct {
	mu       sync.Mutex
	payloads []*EventPayload
	types    []datatypes.EventType
	block    chan struct{}
}

func (c *capturingTrigger) Trigger(_ context.Context, eventType datatypes.EventType, payload any) error {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types = append(c.types, eventType)
	c.payloads = append(c.payloads, payload.(*EventPayload))
	return nil
}

func (c *capturingTrigger) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

func TestEventBus(t *testing.T) {
	t.Run("publishes events through the dispatcher", func(t *testing.T) {
		trigger := &capturingTrigger{}
		bus := NewEventBus(trigger, nil)

		bus.Publish(context.Background(), datatypes.LeadCreated, map[string]string{"id": "l1"})
		bus.PublishWithChangedFields(context.Background(), datatypes.LeadUpdated, nil, []string{"status"})
		bus.Shutdown()

		if trigger.count() != 2 {
			t.Fatalf("expected 2 dispatched events, got %d", trigger.count())
		}
		if trigger.types[0] != datatypes.LeadCreated || trigger.types[1] != datatypes.LeadUpdated {
			t.Errorf("types = %v", trigger.types)
		}

		first := trigger.payloads[0]
		if first.ID == uuid.Nil {
			t.Error("event id should be set")
		}
		if first.Type != "lead.created" {
			t.Errorf("payload type = %q, want lead.created", first.Type)
		}
		if first.Timestamp.IsZero() {
			t.Error("timestamp should be set")
		}
		if len(first.ChangedFields) != 0 {
			t.Errorf("create event should have no changed fields, got %v", first.ChangedFields)
		}

		second := trigger.payloads[1]
		if len(second.ChangedFields) != 1 || second.ChangedFields[0] != "status" {
			t.Errorf("changed fields = %v, want [status]", second.ChangedFields)
		}
	})

	t.Run("event ids are unique and time-ordered", func(t *testing.T) {
		trigger := &capturingTrigger{}
		bus := NewEventBus(trigger, nil)

		for range 10 {
			bus.Publish(context.Background(), datatypes.LeadCreated, nil)
		}
		bus.Shutdown()

		seen := make(map[uuid.UUID]bool)
		var prev string
		for _, p := range trigger.payloads {
			if seen[p.ID] {
				t.Fatalf("duplicate event id %s", p.ID)
			}
			seen[p.ID] = true
			if p.ID.String() < prev {
				t.Fatalf("event ids not monotonic: %s after %s", p.ID, prev)
			}
			prev = p.ID.String()
		}
	})

	t.Run("drops events when the buffer is full instead of blocking", func(t *testing.T) {
		trigger := &capturingTrigger{block: make(chan struct{})}
		bus := NewEventBus(trigger, &EventBusConfig{BufferSize: 1})

		// The first event occupies the worker, the second fills the buffer,
		// the rest must drop without blocking.
		done := make(chan struct{})
		go func() {
			for range 10 {
				bus.Publish(context.Background(), datatypes.LeadCreated, nil)
			}
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Publish blocked on a full buffer")
		}

		close(trigger.block)
		bus.Shutdown()

		if trigger.count() > 2+1 {
			t.Errorf("expected overflow events to drop, got %d dispatched", trigger.count())
		}
	})

	t.Run("publish after shutdown drops the event without panicking", func(t *testing.T) {
		trigger := &capturingTrigger{}
		bus := NewEventBus(trigger, nil)
		bus.Shutdown()

		// A background producer (e.g. the alert monitor) can race shutdown;
		// a late publish must be a silent drop, not a crash.
		bus.Publish(context.Background(), datatypes.ExchangeAlertTriggered, nil)
		bus.PublishWithChangedFields(context.Background(), datatypes.LeadUpdated, nil, []string{"status"})

		if trigger.count() != 0 {
			t.Errorf("expected no events dispatched after shutdown, got %d", trigger.count())
		}
	})

	t.Run("shutdown is idempotent", func(t *testing.T) {
		trigger := &capturingTrigger{}
		bus := NewEventBus(trigger, nil)

		bus.Publish(context.Background(), datatypes.LeadCreated, nil)
		bus.Shutdown()
		bus.Shutdown()

		if trigger.count() != 1 {
			t.Errorf("expected 1 dispatched event, got %d", trigger.count())
		}
	})

	t.Run("shutdown drains buffered events", func(t *testing.T) {
		trigger := &capturingTrigger{}
		bus := NewEventBus(trigger, &EventBusConfig{BufferSize: 100})

		for range 20 {
			bus.Publish(context.Background(), datatypes.ExchangeAlertCreated, nil)
		}
		bus.Shutdown()

		if trigger.count() != 20 {
			t.Errorf("expected all 20 buffered events dispatched before shutdown, got %d", trigger.count())
		}
	})
}
