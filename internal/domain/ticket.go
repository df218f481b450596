package domain

import (
	"fmt"
	"time"
)

// Ticket is the engine's read projection of a ticket. The engine never owns
// ticket CRUD; it reads this projection and writes back through the ticket
// store collaborator.
type Ticket struct {
	ID               string         `json:"id"`
	WorkflowTypeID   string         `json:"workflow_type_id"`
	StatusID         string         `json:"status_id"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Priority         string         `json:"priority"`
	RequesterID      string         `json:"requester_id"`
	AssigneeID       *string        `json:"assignee_id"`
	Tags             []string       `json:"tags"`
	Fields           map[string]any `json:"fields"`
	SLADueAt         *time.Time     `json:"sla_due_at"`
	ResponseDueAt    *time.Time     `json:"response_due_at"`
	SLABreached      bool           `json:"sla_breached"`
	EscalationLevel  int            `json:"escalation_level"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	LastTransitionAt *time.Time     `json:"last_transition_at"`
}

// FieldValue resolves a condition field name against the ticket, checking
// well-known fields before the custom field map.
func (t *Ticket) FieldValue(name string) (any, bool) {
	switch name {
	case "id":
		return t.ID, true
	case "status", "status_id":
		return t.StatusID, true
	case "title":
		return t.Title, true
	case "description":
		return t.Description, true
	case "priority":
		return t.Priority, true
	case "requester_id", "creator":
		return t.RequesterID, true
	case "assignee_id", "assigned_to":
		if t.AssigneeID == nil {
			return nil, true
		}
		return *t.AssigneeID, true
	case "tags":
		return t.Tags, true
	case "escalation_level":
		return t.EscalationLevel, true
	case "created_at":
		return t.CreatedAt, true
	}
	if t.Fields != nil {
		if v, ok := t.Fields[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// ReferenceTime is the timestamp time conditions measure elapsed minutes
// from: the last transition when one happened, ticket creation otherwise.
func (t *Ticket) ReferenceTime() time.Time {
	if t.LastTransitionAt != nil {
		return *t.LastTransitionAt
	}
	return t.CreatedAt
}

// Projection returns a read-only map view of the ticket for template
// substitution and script bindings.
func (t *Ticket) Projection() map[string]any {
	proj := map[string]any{
		"id":               t.ID,
		"workflow_type_id": t.WorkflowTypeID,
		"status_id":        t.StatusID,
		"title":            t.Title,
		"description":      t.Description,
		"priority":         t.Priority,
		"requester_id":     t.RequesterID,
		"tags":             append([]string(nil), t.Tags...),
		"escalation_level": t.EscalationLevel,
		"sla_breached":     t.SLABreached,
		"created_at":       t.CreatedAt.Format(time.RFC3339),
	}
	if t.AssigneeID != nil {
		proj["assignee_id"] = *t.AssigneeID
	} else {
		proj["assignee_id"] = ""
	}
	for k, v := range t.Fields {
		if _, exists := proj[k]; !exists {
			proj[k] = v
		}
	}
	return proj
}

// Stringify renders a resolved field value the way the evaluator and the
// template resolver present it.
func Stringify(v any) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return typed
	case time.Time:
		return typed.Format(time.RFC3339)
	case fmt.Stringer:
		return typed.String()
	default:
		return fmt.Sprintf("%v", typed)
	}
}
