package domain

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ActionType selects the side effect an action performs after a transition
// commits.
type ActionType string

const (
	ActionAssign        ActionType = "assign"
	ActionNotify        ActionType = "notify"
	ActionUpdateField   ActionType = "update_field"
	ActionCreateComment ActionType = "create_comment"
	ActionSendEmail     ActionType = "send_email"
	ActionSendTelegram  ActionType = "send_telegram"
	ActionWebhook       ActionType = "webhook"
	ActionEscalate      ActionType = "escalate"
	ActionUpdateSLA     ActionType = "update_sla"
	ActionScript        ActionType = "script"
	ActionLogEvent      ActionType = "log_event"
)

// AssigneeRule selects how an assign action resolves its target user.
type AssigneeRule string

const (
	AssigneeRoundRobin    AssigneeRule = "round_robin"
	AssigneeLeastAssigned AssigneeRule = "least_assigned"
	AssigneeCreator       AssigneeRule = "creator"
	AssigneeCurrentUser   AssigneeRule = "current_user"
	AssigneeSpecificUser  AssigneeRule = "specific_user"
)

// Action is an ordered, typed side effect owned by a transition. Config is a
// type-dependent payload decoded through DecodeConfig.
type Action struct {
	ID             string          `json:"id"`
	TransitionID   string          `json:"transition_id"`
	Type           ActionType      `json:"action_type"`
	Config         json.RawMessage `json:"action_config"`
	ExecutionOrder int             `json:"execution_order"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ActionConfig is implemented by every typed action payload.
type ActionConfig interface {
	Validate() error
}

// AssignConfig configures an assign action.
type AssignConfig struct {
	AssigneeRule AssigneeRule `json:"assignee_rule"`
	AssigneeID   string       `json:"assignee_id,omitempty"`
}

func (c *AssignConfig) Validate() error {
	switch c.AssigneeRule {
	case AssigneeRoundRobin, AssigneeLeastAssigned, AssigneeCreator, AssigneeCurrentUser:
		return nil
	case AssigneeSpecificUser:
		if c.AssigneeID == "" {
			return fmt.Errorf("specific_user rule requires assignee_id")
		}
		return nil
	}
	return fmt.Errorf("unknown assignee rule %q", c.AssigneeRule)
}

// NotifyConfig configures a notify action. Recipients may be symbolic
// ("assignee", "requester") or explicit addresses.
type NotifyConfig struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject,omitempty"`
	Message    string   `json:"message"`
}

func (c *NotifyConfig) Validate() error {
	if len(c.Recipients) == 0 {
		return fmt.Errorf("notify requires at least one recipient")
	}
	return nil
}

// UpdateFieldConfig configures an update_field action. FieldValue supports
// template placeholders.
type UpdateFieldConfig struct {
	FieldName  string `json:"field_name"`
	FieldValue string `json:"field_value"`
}

func (c *UpdateFieldConfig) Validate() error {
	if c.FieldName == "" {
		return fmt.Errorf("update_field requires field_name")
	}
	return nil
}

// CommentConfig configures a create_comment action.
type CommentConfig struct {
	Content    string `json:"content"`
	IsInternal bool   `json:"is_internal"`
}

func (c *CommentConfig) Validate() error {
	if strings.TrimSpace(c.Content) == "" {
		return fmt.Errorf("create_comment requires content")
	}
	return nil
}

// EmailConfig configures a send_email action.
type EmailConfig struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

func (c *EmailConfig) Validate() error {
	if len(c.To) == 0 {
		return fmt.Errorf("send_email requires at least one recipient")
	}
	return nil
}

// TelegramConfig configures a send_telegram action.
type TelegramConfig struct {
	ChatID  string `json:"chat_id"`
	Message string `json:"message"`
}

func (c *TelegramConfig) Validate() error {
	if c.ChatID == "" {
		return fmt.Errorf("send_telegram requires chat_id")
	}
	return nil
}

// WebhookConfig configures a webhook action.
type WebhookConfig struct {
	URL       string            `json:"url"`
	Method    string            `json:"method,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      string            `json:"body,omitempty"`
	TimeoutMs int               `json:"timeout_ms,omitempty"`
}

func (c *WebhookConfig) Validate() error {
	parsed, err := url.Parse(c.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("webhook requires an absolute url")
	}
	switch strings.ToUpper(c.Method) {
	case "", "GET", "POST", "PUT", "PATCH", "DELETE":
	default:
		return fmt.Errorf("unsupported webhook method %q", c.Method)
	}
	if c.TimeoutMs < 0 {
		return fmt.Errorf("timeout_ms must not be negative")
	}
	return nil
}

// EscalateConfig configures an escalate action.
type EscalateConfig struct {
	Level  int    `json:"level"`
	Reason string `json:"reason,omitempty"`
}

func (c *EscalateConfig) Validate() error {
	if c.Level <= 0 {
		return fmt.Errorf("escalate requires a positive level")
	}
	return nil
}

// SLAConfig configures an update_sla action.
type SLAConfig struct {
	SLAHours      *int `json:"sla_hours,omitempty"`
	ResponseHours *int `json:"response_hours,omitempty"`
	Reset         bool `json:"reset,omitempty"`
}

func (c *SLAConfig) Validate() error {
	if c.SLAHours == nil && c.ResponseHours == nil && !c.Reset {
		return fmt.Errorf("update_sla requires sla_hours, response_hours or reset")
	}
	return nil
}

// ScriptConfig configures a script action. Code runs inside the sandbox with
// only the {ticket, user, context} bindings.
type ScriptConfig struct {
	Code      string `json:"code"`
	TimeoutMs int    `json:"timeout_ms,omitempty"`
}

func (c *ScriptConfig) Validate() error {
	if strings.TrimSpace(c.Code) == "" {
		return fmt.Errorf("script requires code")
	}
	if c.TimeoutMs < 0 {
		return fmt.Errorf("timeout_ms must not be negative")
	}
	return nil
}

// LogEventConfig configures a log_event action.
type LogEventConfig struct {
	Event  string            `json:"event"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (c *LogEventConfig) Validate() error {
	if c.Event == "" {
		return fmt.Errorf("log_event requires an event name")
	}
	return nil
}

// SLAUpdate describes an SLA bookkeeping change applied to a ticket.
type SLAUpdate struct {
	SLAHours      *int
	ResponseHours *int
	Reset         bool
}

// DecodeConfig decodes the raw config into the typed payload for the action
// type. The zero-length config decodes to the type's zero value.
func (a *Action) DecodeConfig() (ActionConfig, error) {
	var cfg ActionConfig
	switch a.Type {
	case ActionAssign:
		cfg = &AssignConfig{}
	case ActionNotify:
		cfg = &NotifyConfig{}
	case ActionUpdateField:
		cfg = &UpdateFieldConfig{}
	case ActionCreateComment:
		cfg = &CommentConfig{}
	case ActionSendEmail:
		cfg = &EmailConfig{}
	case ActionSendTelegram:
		cfg = &TelegramConfig{}
	case ActionWebhook:
		cfg = &WebhookConfig{}
	case ActionEscalate:
		cfg = &EscalateConfig{}
	case ActionUpdateSLA:
		cfg = &SLAConfig{}
	case ActionScript:
		cfg = &ScriptConfig{}
	case ActionLogEvent:
		cfg = &LogEventConfig{}
	default:
		return nil, fmt.Errorf("unknown action type %q", a.Type)
	}
	if len(a.Config) > 0 {
		if err := json.Unmarshal(a.Config, cfg); err != nil {
			return nil, fmt.Errorf("decode %s config: %w", a.Type, err)
		}
	}
	return cfg, nil
}

// Validate decodes and validates the action config at definition-write time.
func (a *Action) Validate() error {
	cfg, err := a.DecodeConfig()
	if err != nil {
		return err
	}
	return cfg.Validate()
}
