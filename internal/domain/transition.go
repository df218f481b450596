package domain

import "time"

// Transition is a guarded edge of a workflow graph. A nil FromStatusID means
// the transition applies from any current status. An empty AllowedRoles set
// means the transition is unrestricted.
type Transition struct {
	ID                 string        `json:"id"`
	WorkflowTypeID     string        `json:"workflow_type_id"`
	Name               string        `json:"name"`
	DisplayName        LocalizedText `json:"display_name"`
	Description        LocalizedText `json:"description"`
	FromStatusID       *string       `json:"from_status_id"`
	ToStatusID         string        `json:"to_status_id"`
	Icon               string        `json:"icon"`
	Color              string        `json:"color"`
	IsAutomatic        bool          `json:"is_automatic"`
	RequiresComment    bool          `json:"requires_comment"`
	RequiresAssignment bool          `json:"requires_assignment"`
	AllowedRoles       []string      `json:"allowed_roles"`
	SortOrder          int           `json:"sort_order"`
	IsActive           bool          `json:"is_active"`
	Conditions         []Condition   `json:"conditions"`
	Actions            []Action      `json:"actions"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// AppliesFrom reports whether the transition can fire from the given status.
func (t *Transition) AppliesFrom(statusID string) bool {
	return t.FromStatusID == nil || *t.FromStatusID == statusID
}

// RoleAllowed reports whether the given role may fire the transition.
func (t *Transition) RoleAllowed(role string) bool {
	if len(t.AllowedRoles) == 0 {
		return true
	}
	for _, allowed := range t.AllowedRoles {
		if allowed == role {
			return true
		}
	}
	return false
}

// ActiveConditions returns the active conditions in declaration order.
func (t *Transition) ActiveConditions() []Condition {
	result := make([]Condition, 0, len(t.Conditions))
	for _, c := range t.Conditions {
		if c.IsActive {
			result = append(result, c)
		}
	}
	return result
}

// ActiveActions returns the active actions sorted by execution order,
// ties broken by insertion order.
func (t *Transition) ActiveActions() []Action {
	result := make([]Action, 0, len(t.Actions))
	for _, a := range t.Actions {
		if a.IsActive {
			result = append(result, a)
		}
	}
	// insertion order is already the slice order, so a stable sort suffices
	for i := 1; i < len(result); i++ {
		for j := i; j > 0 && result[j].ExecutionOrder < result[j-1].ExecutionOrder; j-- {
			result[j], result[j-1] = result[j-1], result[j]
		}
	}
	return result
}
