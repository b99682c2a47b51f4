package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leadwire/relay/internal/datatypes"
)

// defaultEventBufferSize is the event channel buffer (backpressure when full).
const defaultEventBufferSize = 1024

// defaultDispatchTimeout bounds one event's fan-out so a hung endpoint cannot
// freeze the bus worker forever. It must exceed the delivery client timeout.
const defaultDispatchTimeout = 30 * time.Second

// Event is a domain change announcement: a type plus a producer-defined
// payload. ChangedFields is set only for update events.
type Event struct {
	ID            uuid.UUID           // unique event id (UUID v7, time-ordered)
	Type          datatypes.EventType // e.g. LeadCreated, ExchangeAlertTriggered
	Timestamp     time.Time
	Data          any
	ChangedFields []string
}

// EventPayload is the wire shape POSTed to subscriber endpoints.
type EventPayload struct {
	ID            uuid.UUID `json:"id"`
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	Data          any       `json:"data"`
	ChangedFields []string  `json:"changed_fields,omitempty"`
}

// Publisher is what domain services use to announce changes. Publishing is
// fire-and-forget: it never blocks the caller and never reports delivery
// errors back, so a webhook problem cannot fail the domain write.
type Publisher interface {
	Publish(ctx context.Context, eventType datatypes.EventType, data any)
	PublishWithChangedFields(ctx context.Context, eventType datatypes.EventType, data any, changedFields []string)
}

// eventTrigger is the downstream surface the bus drives (the Dispatcher).
type eventTrigger interface {
	Trigger(ctx context.Context, eventType datatypes.EventType, payload any) error
}

// EventBus decouples domain writes from webhook dispatch: producers enqueue
// onto a buffered channel and a single background worker drains it, invoking
// the dispatcher with a per-event timeout. When the buffer is full the event
// is dropped with a warning rather than blocking the producer.
type EventBus struct {
	eventChan       chan Event
	dispatcher      eventTrigger
	dispatchTimeout time.Duration
	wg              sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// EventBusConfig tunes the bus. Zero values take defaults.
type EventBusConfig struct {
	BufferSize      int
	DispatchTimeout time.Duration
}

// NewEventBus creates the bus and starts its worker goroutine.
// Call Shutdown to stop the worker and drain the buffer.
func NewEventBus(dispatcher eventTrigger, cfg *EventBusConfig) *EventBus {
	bufferSize := defaultEventBufferSize
	dispatchTimeout := defaultDispatchTimeout
	if cfg != nil {
		if cfg.BufferSize > 0 {
			bufferSize = cfg.BufferSize
		}
		if cfg.DispatchTimeout > 0 {
			dispatchTimeout = cfg.DispatchTimeout
		}
	}

	b := &EventBus{
		eventChan:       make(chan Event, bufferSize),
		dispatcher:      dispatcher,
		dispatchTimeout: dispatchTimeout,
	}

	b.wg.Add(1)
	go b.worker()

	return b
}

// Publish enqueues an event with no changed fields.
func (b *EventBus) Publish(ctx context.Context, eventType datatypes.EventType, data any) {
	b.PublishWithChangedFields(ctx, eventType, data, nil)
}

// PublishWithChangedFields enqueues an event. Non-blocking: when the buffer
// is full the event is dropped and logged. Publishing after Shutdown drops
// the event instead of panicking, so a background producer racing shutdown
// cannot crash the process.
func (b *EventBus) PublishWithChangedFields(_ context.Context, eventType datatypes.EventType, data any, changedFields []string) {
	event := Event{
		ID:            uuid.Must(uuid.NewV7()),
		Type:          eventType,
		Timestamp:     time.Now(),
		Data:          data,
		ChangedFields: changedFields,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		slog.Warn("event bus shut down, event dropped", "event_id", event.ID, "event_type", eventType.String())
		return
	}

	select {
	case b.eventChan <- event:
		slog.Debug("event enqueued", "event_id", event.ID, "event_type", eventType.String())
	default:
		slog.Warn("event channel full, event dropped", "event_id", event.ID, "event_type", eventType.String())
	}
}

// worker drains the channel for the lifetime of the bus. The range loop ends
// when Shutdown closes the channel.
func (b *EventBus) worker() {
	defer b.wg.Done()

	for event := range b.eventChan {
		ctx, cancel := context.WithTimeout(context.Background(), b.dispatchTimeout)

		payload := &EventPayload{
			ID:            event.ID,
			Type:          event.Type.String(),
			Timestamp:     event.Timestamp,
			Data:          event.Data,
			ChangedFields: event.ChangedFields,
		}

		if err := b.dispatcher.Trigger(ctx, event.Type, payload); err != nil {
			slog.Warn("webhook dispatch failed",
				"event_id", event.ID,
				"event_type", event.Type.String(),
				"error", err,
			)
		}

		cancel()
	}
}

// Shutdown stops the worker after the buffered events drain. It is
// idempotent, and Publish calls arriving afterwards are dropped.
func (b *EventBus) Shutdown() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.wg.Wait()
		return
	}
	b.closed = true
	close(b.eventChan)
	b.mu.Unlock()

	b.wg.Wait()
}
