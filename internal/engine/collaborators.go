package engine

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/workflow-engine/internal/domain"
)

// ErrStatusConflict is returned by CommitTransition when the ticket's status
// no longer matches the expected pre-transition status.
var ErrStatusConflict = errors.New("ticket status changed concurrently")

// CommitRequest describes the atomic commit of a transition: the status
// change plus the optional comment and assignment supplied by the caller.
// It either fully applies or not at all.
type CommitRequest struct {
	TicketID         string
	ExpectedStatusID string
	ToStatusID       string
	ActorID          string
	Comment          *string
	CommentInternal  bool
	AssigneeID       *string
}

// TicketStore is the ticket storage collaborator. The engine reads ticket
// projections and writes back status, assignment, comments, fields and SLA
// bookkeeping; it never owns ticket CRUD.
type TicketStore interface {
	GetTicket(ctx context.Context, id string) (*domain.Ticket, error)
	// CommitTransition applies the commit as one atomic unit, comparing the
	// current status against ExpectedStatusID and returning
	// ErrStatusConflict on mismatch.
	CommitTransition(ctx context.Context, commit CommitRequest) error
	AssignTicket(ctx context.Context, ticketID, userID string) error
	AppendComment(ctx context.Context, ticketID, authorID, content string, internal bool) error
	SetTicketField(ctx context.Context, ticketID, field string, value any) error
	ApplySLA(ctx context.Context, ticketID string, update domain.SLAUpdate) error
	EscalateTicket(ctx context.Context, ticketID string, level int, reason string) error
}

// Directory resolves user roles from the external identity provider.
type Directory interface {
	GetUserRole(ctx context.Context, userID string) (string, error)
}

// Notifier dispatches notifications through external channels.
type Notifier interface {
	Notify(ctx context.Context, recipients []string, subject, message string) error
	SendEmail(ctx context.Context, to []string, subject, body string) error
	SendTelegram(ctx context.Context, chatID, message string) error
}

// WebhookRequest is an outbound webhook invocation.
type WebhookRequest struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    []byte
	Timeout time.Duration
}

// WebhookResponse carries the outcome of a webhook invocation.
type WebhookResponse struct {
	StatusCode int
	Body       []byte
}

// WebhookClient invokes outbound webhooks. A timeout or non-2xx response is
// an error.
type WebhookClient interface {
	Invoke(ctx context.Context, req WebhookRequest) (*WebhookResponse, error)
}

// ScriptRunner executes user-supplied code in a sandbox with only the given
// bindings and a hard deadline.
type ScriptRunner interface {
	Run(ctx context.Context, code string, bindings map[string]any, deadline time.Duration) (any, error)
}

// AssignmentResolver resolves an assign action's rule to a concrete user.
type AssignmentResolver interface {
	Resolve(ctx context.Context, rule domain.AssigneeRule, specificID string, ticket *domain.Ticket, actor *domain.User) (string, error)
}

// HistoryStore persists and lists execution history. Record must not lose a
// committed transition: implementations retry before giving up.
type HistoryStore interface {
	Record(ctx context.Context, entry *domain.HistoryEntry) error
	List(ctx context.Context, ticketID string, page, limit int, includeDetails bool) ([]domain.HistoryEntry, int, error)
}

// DefinitionSource is the read path of the workflow definition store.
type DefinitionSource interface {
	GetWorkflowType(id string) (*domain.WorkflowType, error)
	GetStatus(id string) (*domain.Status, error)
	GetTransition(id string) (*domain.Transition, error)
	// ActiveTransitionsFrom lists active transitions applicable from the
	// given status (wildcard transitions included), ordered by sort order.
	ActiveTransitionsFrom(workflowTypeID, statusID string) []domain.Transition
}

// LockManager provides the per-ticket critical section spanning guard-phase
// re-validation through commit. Acquire blocks until the lock is held or ctx
// is done; the returned function releases the lock.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// EventSink receives operational log events emitted by log_event actions.
type EventSink interface {
	LogEvent(ctx context.Context, event string, fields map[string]string) error
}
