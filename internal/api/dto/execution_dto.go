package dto

import (
	"time"

	"github.com/spec-kit/workflow-engine/internal/domain"
)

// ExecuteTransitionRequest payload.
type ExecuteTransitionRequest struct {
	TransitionID string         `json:"transition_id"`
	Comment      string         `json:"comment"`
	AssigneeID   string         `json:"assignee_id"`
	Context      map[string]any `json:"context"`
	Metadata     map[string]any `json:"metadata"`
}

// AvailableTransition is one executable transition offered to the caller.
type AvailableTransition struct {
	ID              string               `json:"id"`
	Name            string               `json:"name"`
	DisplayName     domain.LocalizedText `json:"display_name"`
	ToStatusID      string               `json:"to_status_id"`
	Icon            string               `json:"icon"`
	Color           string               `json:"color"`
	RequiresComment bool                 `json:"requires_comment"`
	RequiresAssign  bool                 `json:"requires_assignment"`
	SortOrder       int                  `json:"sort_order"`
}

// ToAvailableTransition builds the caller-facing representation.
func ToAvailableTransition(tr *domain.Transition) AvailableTransition {
	return AvailableTransition{
		ID:              tr.ID,
		Name:            tr.Name,
		DisplayName:     tr.DisplayName,
		ToStatusID:      tr.ToStatusID,
		Icon:            tr.Icon,
		Color:           tr.Color,
		RequiresComment: tr.RequiresComment,
		RequiresAssign:  tr.RequiresAssignment,
		SortOrder:       tr.SortOrder,
	}
}

// ExecutionResponse is the recorded outcome of one execution.
type ExecutionResponse struct {
	ID                  string                   `json:"id"`
	TicketID            string                   `json:"ticket_id"`
	TransitionID        string                   `json:"transition_id"`
	TransitionName      string                   `json:"transition_name"`
	FromStatus          *domain.StatusSnapshot   `json:"from_status"`
	ToStatus            *domain.StatusSnapshot   `json:"to_status"`
	Success             bool                     `json:"success"`
	ErrorMessage        *string                  `json:"error_message,omitempty"`
	ConditionsResult    []domain.ConditionResult `json:"conditions_result,omitempty"`
	ActionsResult       []domain.ActionResult    `json:"actions_result,omitempty"`
	ExecutionDurationMs int64                    `json:"execution_duration_ms"`
	CreatedAt           time.Time                `json:"created_at"`
}

// ToExecutionResponse maps a history entry.
func ToExecutionResponse(entry *domain.HistoryEntry) ExecutionResponse {
	return ExecutionResponse{
		ID:                  entry.ID,
		TicketID:            entry.TicketID,
		TransitionID:        entry.TransitionID,
		TransitionName:      entry.TransitionName,
		FromStatus:          entry.FromStatus,
		ToStatus:            entry.ToStatus,
		Success:             entry.Success,
		ErrorMessage:        entry.ErrorMessage,
		ConditionsResult:    entry.ConditionsResult,
		ActionsResult:       entry.ActionsResult,
		ExecutionDurationMs: entry.ExecutionDurationMs,
		CreatedAt:           entry.CreatedAt,
	}
}

// HistoryPage is a paginated history listing.
type HistoryPage struct {
	Items []domain.HistoryEntry `json:"items"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
	Total int                   `json:"total"`
}
