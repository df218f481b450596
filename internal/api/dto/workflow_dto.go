package dto

import (
	"encoding/json"
	"time"

	"github.com/spec-kit/workflow-engine/internal/domain"
)

// WorkflowTypeRequest payload for create/update.
type WorkflowTypeRequest struct {
	TenantID    string               `json:"tenant_id"`
	Name        string               `json:"name"`
	DisplayName domain.LocalizedText `json:"display_name"`
	Description domain.LocalizedText `json:"description"`
	Icon        string               `json:"icon"`
	Color       string               `json:"color"`
	IsActive    *bool                `json:"is_active"`
	IsDefault   bool                 `json:"is_default"`
}

// ToDomain maps the request onto a domain value.
func (r WorkflowTypeRequest) ToDomain() domain.WorkflowType {
	wt := domain.WorkflowType{
		TenantID:    r.TenantID,
		Name:        r.Name,
		DisplayName: r.DisplayName,
		Description: r.Description,
		Icon:        r.Icon,
		Color:       r.Color,
		IsActive:    true,
		IsDefault:   r.IsDefault,
	}
	if r.IsActive != nil {
		wt.IsActive = *r.IsActive
	}
	return wt
}

// StatusRequest payload for create/update.
type StatusRequest struct {
	WorkflowTypeID string               `json:"workflow_type_id"`
	Name           string               `json:"name"`
	DisplayName    domain.LocalizedText `json:"display_name"`
	Description    domain.LocalizedText `json:"description"`
	Color          string               `json:"color"`
	Icon           string               `json:"icon"`
	Category       string               `json:"category"`
	IsInitial      bool                 `json:"is_initial"`
	IsFinal        bool                 `json:"is_final"`
	SortOrder      int                  `json:"sort_order"`
	SLAHours       *int                 `json:"sla_hours"`
	ResponseHours  *int                 `json:"response_hours"`
	AutoAssign     bool                 `json:"auto_assign"`
	NotifyOnEnter  bool                 `json:"notify_on_enter"`
	NotifyOnExit   bool                 `json:"notify_on_exit"`
	IsActive       *bool                `json:"is_active"`
}

// ToDomain maps the request onto a domain value.
func (r StatusRequest) ToDomain() domain.Status {
	st := domain.Status{
		WorkflowTypeID: r.WorkflowTypeID,
		Name:           r.Name,
		DisplayName:    r.DisplayName,
		Description:    r.Description,
		Color:          r.Color,
		Icon:           r.Icon,
		Category:       domain.StatusCategory(r.Category),
		IsInitial:      r.IsInitial,
		IsFinal:        r.IsFinal,
		SortOrder:      r.SortOrder,
		SLAHours:       r.SLAHours,
		ResponseHours:  r.ResponseHours,
		AutoAssign:     r.AutoAssign,
		NotifyOnEnter:  r.NotifyOnEnter,
		NotifyOnExit:   r.NotifyOnExit,
		IsActive:       true,
	}
	if r.IsActive != nil {
		st.IsActive = *r.IsActive
	}
	return st
}

// ConditionRequest is one guard condition inside a transition payload.
type ConditionRequest struct {
	ID            string `json:"id"`
	ConditionType string `json:"condition_type"`
	FieldName     string `json:"field_name"`
	Operator      string `json:"operator"`
	ExpectedValue string `json:"expected_value"`
	Group         int    `json:"condition_group"`
	IsActive      *bool  `json:"is_active"`
}

// ActionRequest is one pipeline action inside a transition payload.
type ActionRequest struct {
	ID             string          `json:"id"`
	ActionType     string          `json:"action_type"`
	Config         json.RawMessage `json:"action_config"`
	ExecutionOrder int             `json:"execution_order"`
	IsActive       *bool           `json:"is_active"`
}

// TransitionRequest payload for create/update.
type TransitionRequest struct {
	WorkflowTypeID     string               `json:"workflow_type_id"`
	Name               string               `json:"name"`
	DisplayName        domain.LocalizedText `json:"display_name"`
	Description        domain.LocalizedText `json:"description"`
	FromStatusID       *string              `json:"from_status_id"`
	ToStatusID         string               `json:"to_status_id"`
	Icon               string               `json:"icon"`
	Color              string               `json:"color"`
	IsAutomatic        bool                 `json:"is_automatic"`
	RequiresComment    bool                 `json:"requires_comment"`
	RequiresAssignment bool                 `json:"requires_assignment"`
	AllowedRoles       []string             `json:"allowed_roles"`
	SortOrder          int                  `json:"sort_order"`
	IsActive           *bool                `json:"is_active"`
	Conditions         []ConditionRequest   `json:"conditions"`
	Actions            []ActionRequest      `json:"actions"`
}

// ToDomain maps the request onto a domain value.
func (r TransitionRequest) ToDomain() domain.Transition {
	tr := domain.Transition{
		WorkflowTypeID:     r.WorkflowTypeID,
		Name:               r.Name,
		DisplayName:        r.DisplayName,
		Description:        r.Description,
		FromStatusID:       r.FromStatusID,
		ToStatusID:         r.ToStatusID,
		Icon:               r.Icon,
		Color:              r.Color,
		IsAutomatic:        r.IsAutomatic,
		RequiresComment:    r.RequiresComment,
		RequiresAssignment: r.RequiresAssignment,
		AllowedRoles:       r.AllowedRoles,
		SortOrder:          r.SortOrder,
		IsActive:           true,
	}
	if r.IsActive != nil {
		tr.IsActive = *r.IsActive
	}
	for _, c := range r.Conditions {
		cond := domain.Condition{
			ID:            c.ID,
			Type:          domain.ConditionType(c.ConditionType),
			FieldName:     c.FieldName,
			Operator:      domain.ConditionOperator(c.Operator),
			ExpectedValue: c.ExpectedValue,
			Group:         c.Group,
			IsActive:      true,
		}
		if c.IsActive != nil {
			cond.IsActive = *c.IsActive
		}
		tr.Conditions = append(tr.Conditions, cond)
	}
	for _, a := range r.Actions {
		action := domain.Action{
			ID:             a.ID,
			Type:           domain.ActionType(a.ActionType),
			Config:         a.Config,
			ExecutionOrder: a.ExecutionOrder,
			IsActive:       true,
		}
		if a.IsActive != nil {
			action.IsActive = *a.IsActive
		}
		tr.Actions = append(tr.Actions, action)
	}
	return tr
}

// TransitionSummary is the list representation of a transition.
type TransitionSummary struct {
	ID              string               `json:"id"`
	Name            string               `json:"name"`
	DisplayName     domain.LocalizedText `json:"display_name"`
	FromStatusID    *string              `json:"from_status_id"`
	ToStatusID      string               `json:"to_status_id"`
	Icon            string               `json:"icon"`
	Color           string               `json:"color"`
	IsAutomatic     bool                 `json:"is_automatic"`
	RequiresComment bool                 `json:"requires_comment"`
	SortOrder       int                  `json:"sort_order"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// TransitionToSummary builds the list representation.
func TransitionToSummary(tr *domain.Transition) TransitionSummary {
	return TransitionSummary{
		ID:              tr.ID,
		Name:            tr.Name,
		DisplayName:     tr.DisplayName,
		FromStatusID:    tr.FromStatusID,
		ToStatusID:      tr.ToStatusID,
		Icon:            tr.Icon,
		Color:           tr.Color,
		IsAutomatic:     tr.IsAutomatic,
		RequiresComment: tr.RequiresComment,
		SortOrder:       tr.SortOrder,
		UpdatedAt:       tr.UpdatedAt,
	}
}
