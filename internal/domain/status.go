package domain

import "time"

// StatusCategory groups statuses for reporting and SLA semantics.
type StatusCategory string

const (
	CategoryOpen     StatusCategory = "open"
	CategoryActive   StatusCategory = "active"
	CategoryPending  StatusCategory = "pending"
	CategoryResolved StatusCategory = "resolved"
	CategoryClosed   StatusCategory = "closed"
)

// ValidCategory reports whether c is a known status category.
func ValidCategory(c StatusCategory) bool {
	switch c {
	case CategoryOpen, CategoryActive, CategoryPending, CategoryResolved, CategoryClosed:
		return true
	}
	return false
}

// Status is a node of a workflow graph: a state a ticket can occupy.
// Exactly one status per workflow type is initial; final statuses have no
// outgoing active transitions.
type Status struct {
	ID             string         `json:"id"`
	WorkflowTypeID string         `json:"workflow_type_id"`
	Name           string         `json:"name"`
	DisplayName    LocalizedText  `json:"display_name"`
	Description    LocalizedText  `json:"description"`
	Color          string         `json:"color"`
	Icon           string         `json:"icon"`
	Category       StatusCategory `json:"category"`
	IsInitial      bool           `json:"is_initial"`
	IsFinal        bool           `json:"is_final"`
	SortOrder      int            `json:"sort_order"`
	SLAHours       *int           `json:"sla_hours"`
	ResponseHours  *int           `json:"response_hours"`
	AutoAssign     bool           `json:"auto_assign"`
	NotifyOnEnter  bool           `json:"notify_on_enter"`
	NotifyOnExit   bool           `json:"notify_on_exit"`
	IsActive       bool           `json:"is_active"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Snapshot captures the display fields of a status so history entries stay
// readable after the definition changes or is deleted.
func (s *Status) Snapshot() *StatusSnapshot {
	if s == nil {
		return nil
	}
	return &StatusSnapshot{
		ID:          s.ID,
		Name:        s.Name,
		DisplayName: s.DisplayName,
		Color:       s.Color,
		Category:    s.Category,
	}
}

// StatusSnapshot is a denormalized copy of status display fields.
type StatusSnapshot struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	DisplayName LocalizedText  `json:"display_name,omitempty"`
	Color       string         `json:"color,omitempty"`
	Category    StatusCategory `json:"category,omitempty"`
}
