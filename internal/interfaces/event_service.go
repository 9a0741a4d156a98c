package interfaces

import "context"

// EventType tags bus events. Job lifecycle events mirror the store's
// status transitions; maintenance events come from the scheduler.
type EventType string

const (
	EventJobSubmitted EventType = "job_submitted"
	EventJobStarted   EventType = "job_started"
	EventJobProgress  EventType = "job_progress"
	EventJobCompleted EventType = "job_completed"
	EventJobFailed    EventType = "job_failed"
	EventJobCancelled EventType = "job_cancelled"
	EventJobRetrying  EventType = "job_retrying"
	EventMaintenance  EventType = "maintenance_completed"
)

// Event is one bus message. Payload shape depends on Type; job events
// carry events.JobEventPayload.
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler consumes one event. Returned errors are logged by the bus;
// they never propagate to the publisher on the async path.
type EventHandler func(ctx context.Context, event Event) error

// EventService is the in-process pub/sub bus
type EventService interface {
	// Subscribe registers a handler for an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Unsubscribe removes a handler registered with Subscribe
	Unsubscribe(eventType EventType, handler EventHandler) error

	// Publish fans out asynchronously and returns immediately
	Publish(ctx context.Context, event Event) error

	// PublishSync fans out and waits for every handler
	PublishSync(ctx context.Context, event Event) error

	// Close drops all subscriptions
	Close() error
}
