package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type identifies the lifecycle transition an event describes.
type Type string

// Lifecycle event types emitted by the scheduler.
const (
	TaskCreated   Type = "task.created"
	TaskSubmitted Type = "task.submitted"
	TaskStarted   Type = "task.started"
	TaskRetried   Type = "task.retried"
	TaskCompleted Type = "task.completed"
	TaskFailed    Type = "task.failed"
	TaskCancelled Type = "task.cancelled"
	TaskScheduled Type = "task.scheduled"
)

// Event is one task lifecycle notification. It carries the transition
// type and a JSON payload so handlers have no dependency on the task
// package's types.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is the lifecycle transition this event describes
	Type Type `json:"type"`

	// TaskID identifies the task the event is about
	TaskID string `json:"task_id"`

	// Payload contains transition-specific data serialized as JSON
	Payload json.RawMessage `json:"payload,omitempty"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *Event) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// New creates an Event of the given type for a task. The payload may be
// nil when the transition carries no extra data.
func New(eventType Type, taskID string, payload interface{}) (*Event, error) {
	var payloadBytes []byte
	if payload != nil {
		var err error
		payloadBytes, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}

	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		TaskID:    taskID,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Handler defines an interface for components that can handle events.
// Handlers are responsible for processing events and taking appropriate actions.
type Handler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *Event) error
}

// Emitter defines an interface for components that can emit events.
// This allows the scheduler to publish lifecycle transitions without
// direct knowledge of handlers.
type Emitter interface {
	// Emit publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	Emit(ctx context.Context, event *Event) error
}
