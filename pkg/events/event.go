package events

import "time"

// TypePipelineRun is emitted once per finished pipeline invocation
// (chat, summary or tutorial), whether it succeeded or failed.
const TypePipelineRun = "PIPELINE_RUN"

// Event is the contract for everything published to the event stream.
type Event interface {
	// EventType returns the event's type code, e.g. TypePipelineRun.
	EventType() string

	// Payload returns the run attributes (run id, kind, file id, ...).
	Payload() map[string]interface{}

	// Timestamp returns when the run finished.
	Timestamp() time.Time
}

// BaseEvent is the plain value implementation the relay publishes;
// subjects on the stream are derived from Type.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}
