package domain

import "time"

// ConditionResult is one line of the guard evaluation trace.
type ConditionResult struct {
	ConditionID string `json:"condition_id"`
	Group       int    `json:"condition_group"`
	Result      bool   `json:"result"`
	Reason      string `json:"reason,omitempty"`
}

// ActionResult is the recorded outcome of a single pipeline action.
type ActionResult struct {
	ActionID   string     `json:"action_id"`
	Type       ActionType `json:"action_type"`
	Success    bool       `json:"success"`
	Output     string     `json:"output,omitempty"`
	Error      string     `json:"error,omitempty"`
	DurationMs int64      `json:"duration_ms"`
}

// HistoryEntry is the immutable audit record of one transition execution
// attempt. Success reflects the guard phase and commit only; action outcomes
// live in ActionsResult.
type HistoryEntry struct {
	ID                  string            `json:"id"`
	TicketID            string            `json:"ticket_id"`
	TransitionID        string            `json:"transition_id"`
	TransitionName      string            `json:"transition_name"`
	FromStatus          *StatusSnapshot   `json:"from_status"`
	ToStatus            *StatusSnapshot   `json:"to_status"`
	UserID              string            `json:"user_id"`
	Success             bool              `json:"success"`
	ErrorMessage        *string           `json:"error_message,omitempty"`
	ConditionsResult    []ConditionResult `json:"conditions_result,omitempty"`
	ActionsResult       []ActionResult    `json:"actions_result,omitempty"`
	Metadata            map[string]any    `json:"metadata,omitempty"`
	ExecutionDurationMs int64             `json:"execution_duration_ms"`
	CreatedAt           time.Time         `json:"created_at"`
}

// WithoutDetails returns a copy suitable for list responses with
// includeDetails=false: the heavy trace payloads are omitted.
func (e HistoryEntry) WithoutDetails() HistoryEntry {
	e.ConditionsResult = nil
	e.ActionsResult = nil
	e.Metadata = nil
	return e
}
