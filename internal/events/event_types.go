package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTransitionExecuted EventType = "transition_executed"
	EventTransitionFailed   EventType = "transition_failed"
	EventTicketAssigned     EventType = "ticket_assigned"
	EventDefinitionChanged  EventType = "definition_changed"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
}

// Event represents a domain event emitted by the engine.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TransitionExecutedPayload payload.
type TransitionExecutedPayload struct {
	TransitionID   string  `json:"transition_id"`
	TransitionName string  `json:"transition_name"`
	FromStatusID   *string `json:"from_status_id,omitempty"`
	ToStatusID     string  `json:"to_status_id"`
	ActionFailures int     `json:"action_failures"`
	DurationMs     int64   `json:"duration_ms"`
}

// TransitionFailedPayload payload.
type TransitionFailedPayload struct {
	TransitionID string `json:"transition_id"`
	Reason       string `json:"reason"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeID string `json:"assignee_id"`
}

// DefinitionChangedPayload payload.
type DefinitionChangedPayload struct {
	WorkflowTypeID string `json:"workflow_type_id"`
	Entity         string `json:"entity"`
	EntityID       string `json:"entity_id"`
	Change         string `json:"change"`
}
