package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/workflow-engine/internal/domain"
)

// PipelineConfig bounds the pipeline's external calls.
type PipelineConfig struct {
	WebhookTimeout time.Duration
	ScriptTimeout  time.Duration
	NotifyTimeout  time.Duration
}

func (c PipelineConfig) withDefaults() PipelineConfig {
	if c.WebhookTimeout <= 0 {
		c.WebhookTimeout = 10 * time.Second
	}
	if c.ScriptTimeout <= 0 {
		c.ScriptTimeout = 5 * time.Second
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = 10 * time.Second
	}
	return c
}

// Pipeline executes a transition's actions strictly in ascending execution
// order. A single action's failure is recorded and never halts the rest: the
// status change has already committed by the time the pipeline runs.
type Pipeline struct {
	tickets  TicketStore
	notifier Notifier
	webhooks WebhookClient
	scripts  ScriptRunner
	assigner AssignmentResolver
	events   EventSink
	logger   *zap.Logger
	cfg      PipelineConfig
}

// PipelineDependencies bundles collaborators for the pipeline.
type PipelineDependencies struct {
	Tickets  TicketStore
	Notifier Notifier
	Webhooks WebhookClient
	Scripts  ScriptRunner
	Assigner AssignmentResolver
	Events   EventSink
	Logger   *zap.Logger
}

// NewPipeline constructs the pipeline.
func NewPipeline(deps PipelineDependencies, cfg PipelineConfig) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		tickets:  deps.Tickets,
		notifier: deps.Notifier,
		webhooks: deps.Webhooks,
		scripts:  deps.Scripts,
		assigner: deps.Assigner,
		events:   deps.Events,
		logger:   logger,
		cfg:      cfg.withDefaults(),
	}
}

// RunAll executes the transition's active actions sequentially. Later actions
// see the ticket state produced by earlier ones: the projection is re-read
// after each mutating action so template substitution observes fresh values.
func (p *Pipeline) RunAll(ctx context.Context, transition *domain.Transition, ticket *domain.Ticket, user *domain.User, callerCtx map[string]any) []domain.ActionResult {
	actions := transition.ActiveActions()
	results := make([]domain.ActionResult, 0, len(actions))
	current := ticket
	for _, action := range actions {
		started := time.Now()
		output, err := p.runAction(ctx, action, current, user, callerCtx)
		result := domain.ActionResult{
			ActionID:   action.ID,
			Type:       action.Type,
			Success:    err == nil,
			Output:     output,
			DurationMs: time.Since(started).Milliseconds(),
		}
		if err != nil {
			result.Error = err.Error()
			p.logger.Warn("action failed",
				zap.String("ticket_id", ticket.ID),
				zap.String("transition_id", transition.ID),
				zap.String("action_id", action.ID),
				zap.String("action_type", string(action.Type)),
				zap.Error(err))
		}
		results = append(results, result)

		if err == nil && mutatesTicket(action.Type) {
			if refreshed, refreshErr := p.tickets.GetTicket(ctx, ticket.ID); refreshErr == nil {
				current = refreshed
			}
		}
	}
	return results
}

func mutatesTicket(t domain.ActionType) bool {
	switch t {
	case domain.ActionAssign, domain.ActionUpdateField, domain.ActionEscalate, domain.ActionUpdateSLA:
		return true
	}
	return false
}

func (p *Pipeline) runAction(ctx context.Context, action domain.Action, ticket *domain.Ticket, user *domain.User, callerCtx map[string]any) (string, error) {
	cfg, err := action.DecodeConfig()
	if err != nil {
		return "", err
	}
	scope := NewTemplateScope(ticket, user, callerCtx)

	switch typed := cfg.(type) {
	case *domain.AssignConfig:
		return p.runAssign(ctx, typed, ticket, user)
	case *domain.NotifyConfig:
		return p.runNotify(ctx, typed, ticket, user, scope)
	case *domain.UpdateFieldConfig:
		value := scope.Render(typed.FieldValue)
		if err := p.tickets.SetTicketField(ctx, ticket.ID, typed.FieldName, value); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s=%s", typed.FieldName, value), nil
	case *domain.CommentConfig:
		content := scope.Render(typed.Content)
		authorID := ""
		if user != nil {
			authorID = user.ID
		}
		if err := p.tickets.AppendComment(ctx, ticket.ID, authorID, content, typed.IsInternal); err != nil {
			return "", err
		}
		return "comment appended", nil
	case *domain.EmailConfig:
		return p.runEmail(ctx, typed, scope)
	case *domain.TelegramConfig:
		return p.runTelegram(ctx, typed, scope)
	case *domain.WebhookConfig:
		return p.runWebhook(ctx, typed, scope)
	case *domain.EscalateConfig:
		reason := scope.Render(typed.Reason)
		if err := p.tickets.EscalateTicket(ctx, ticket.ID, typed.Level, reason); err != nil {
			return "", err
		}
		return fmt.Sprintf("escalated to level %d", typed.Level), nil
	case *domain.SLAConfig:
		update := domain.SLAUpdate{SLAHours: typed.SLAHours, ResponseHours: typed.ResponseHours, Reset: typed.Reset}
		if err := p.tickets.ApplySLA(ctx, ticket.ID, update); err != nil {
			return "", err
		}
		return "sla updated", nil
	case *domain.ScriptConfig:
		return p.runScript(ctx, typed, scope)
	case *domain.LogEventConfig:
		return p.runLogEvent(ctx, typed, scope)
	}
	return "", fmt.Errorf("unhandled action type %q", action.Type)
}

func (p *Pipeline) runAssign(ctx context.Context, cfg *domain.AssignConfig, ticket *domain.Ticket, user *domain.User) (string, error) {
	if p.assigner == nil {
		return "", fmt.Errorf("no assignment resolver configured")
	}
	assigneeID, err := p.assigner.Resolve(ctx, cfg.AssigneeRule, cfg.AssigneeID, ticket, user)
	if err != nil {
		return "", err
	}
	if err := p.tickets.AssignTicket(ctx, ticket.ID, assigneeID); err != nil {
		return "", err
	}
	return fmt.Sprintf("assigned to %s", assigneeID), nil
}

func (p *Pipeline) runNotify(ctx context.Context, cfg *domain.NotifyConfig, ticket *domain.Ticket, user *domain.User, scope TemplateScope) (string, error) {
	if p.notifier == nil {
		return "", fmt.Errorf("no notifier configured")
	}
	recipients := resolveRecipients(cfg.Recipients, ticket, user)
	if len(recipients) == 0 {
		return "no resolvable recipients", nil
	}
	subject := scope.Render(cfg.Subject)
	message := scope.Render(cfg.Message)
	notifyCtx, cancel := context.WithTimeout(ctx, p.cfg.NotifyTimeout)
	defer cancel()
	if err := p.notifier.Notify(notifyCtx, recipients, subject, message); err != nil {
		return "", err
	}
	return fmt.Sprintf("notified %s", strings.Join(recipients, ",")), nil
}

func (p *Pipeline) runEmail(ctx context.Context, cfg *domain.EmailConfig, scope TemplateScope) (string, error) {
	if p.notifier == nil {
		return "", fmt.Errorf("no notifier configured")
	}
	to := make([]string, 0, len(cfg.To))
	for _, addr := range cfg.To {
		to = append(to, scope.Render(addr))
	}
	emailCtx, cancel := context.WithTimeout(ctx, p.cfg.NotifyTimeout)
	defer cancel()
	if err := p.notifier.SendEmail(emailCtx, to, scope.Render(cfg.Subject), scope.Render(cfg.Body)); err != nil {
		return "", err
	}
	return fmt.Sprintf("email sent to %s", strings.Join(to, ",")), nil
}

func (p *Pipeline) runTelegram(ctx context.Context, cfg *domain.TelegramConfig, scope TemplateScope) (string, error) {
	if p.notifier == nil {
		return "", fmt.Errorf("no notifier configured")
	}
	telegramCtx, cancel := context.WithTimeout(ctx, p.cfg.NotifyTimeout)
	defer cancel()
	if err := p.notifier.SendTelegram(telegramCtx, cfg.ChatID, scope.Render(cfg.Message)); err != nil {
		return "", err
	}
	return "telegram sent", nil
}

func (p *Pipeline) runWebhook(ctx context.Context, cfg *domain.WebhookConfig, scope TemplateScope) (string, error) {
	if p.webhooks == nil {
		return "", fmt.Errorf("no webhook client configured")
	}
	timeout := p.cfg.WebhookTimeout
	if cfg.TimeoutMs > 0 {
		timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}
	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = "POST"
	}
	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = scope.Render(v)
	}
	resp, err := p.webhooks.Invoke(ctx, WebhookRequest{
		URL:     scope.Render(cfg.URL),
		Method:  method,
		Headers: headers,
		Body:    []byte(scope.Render(cfg.Body)),
		Timeout: timeout,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("webhook responded %d", resp.StatusCode), nil
}

func (p *Pipeline) runScript(ctx context.Context, cfg *domain.ScriptConfig, scope TemplateScope) (string, error) {
	if p.scripts == nil {
		return "", fmt.Errorf("no script runner configured")
	}
	timeout := p.cfg.ScriptTimeout
	if cfg.TimeoutMs > 0 {
		timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}
	value, err := p.scripts.Run(ctx, cfg.Code, scope.Bindings(), timeout)
	if err != nil {
		return "", err
	}
	return domain.Stringify(value), nil
}

func (p *Pipeline) runLogEvent(ctx context.Context, cfg *domain.LogEventConfig, scope TemplateScope) (string, error) {
	fields := make(map[string]string, len(cfg.Fields))
	for k, v := range cfg.Fields {
		fields[k] = scope.Render(v)
	}
	if p.events != nil {
		if err := p.events.LogEvent(ctx, cfg.Event, fields); err != nil {
			return "", err
		}
	} else {
		zapFields := make([]zap.Field, 0, len(fields)+1)
		zapFields = append(zapFields, zap.String("event", cfg.Event))
		for k, v := range fields {
			zapFields = append(zapFields, zap.String(k, v))
		}
		p.logger.Info("workflow event", zapFields...)
	}
	return "event logged", nil
}

// resolveRecipients expands symbolic recipients against the ticket and actor.
func resolveRecipients(recipients []string, ticket *domain.Ticket, user *domain.User) []string {
	resolved := make([]string, 0, len(recipients))
	for _, r := range recipients {
		switch r {
		case "assignee":
			if ticket.AssigneeID != nil && *ticket.AssigneeID != "" {
				resolved = append(resolved, *ticket.AssigneeID)
			}
		case "requester", "creator":
			if ticket.RequesterID != "" {
				resolved = append(resolved, ticket.RequesterID)
			}
		case "current_user":
			if user != nil && user.ID != "" {
				resolved = append(resolved, user.ID)
			}
		default:
			resolved = append(resolved, r)
		}
	}
	return resolved
}
