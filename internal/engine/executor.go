package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/workflow-engine/internal/domain"
	"github.com/spec-kit/workflow-engine/internal/events"
	"github.com/spec-kit/workflow-engine/internal/observability"
	apperrors "github.com/spec-kit/workflow-engine/pkg/util"
)

// ExecuteOptions carries the caller-supplied inputs for one execution.
type ExecuteOptions struct {
	Comment    string
	AssigneeID string
	Context    map[string]any
	Metadata   map[string]any
}

// ExecutorConfig bounds the executor's critical section.
type ExecutorConfig struct {
	LockTTL  time.Duration
	LockWait time.Duration
}

func (c ExecutorConfig) withDefaults() ExecutorConfig {
	if c.LockTTL <= 0 {
		c.LockTTL = 30 * time.Second
	}
	if c.LockWait <= 0 {
		c.LockWait = 10 * time.Second
	}
	return c
}

// Executor orchestrates guard evaluation, the atomic status commit and the
// post-commit action pipeline, and produces the audit record. Per-ticket
// execution is serialized through the lock manager; different tickets run
// fully in parallel.
type Executor struct {
	defs       DefinitionSource
	tickets    TicketStore
	directory  Directory
	evaluator  *Evaluator
	pipeline   *Pipeline
	history    HistoryStore
	locks      LockManager
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	cfg        ExecutorConfig
	now        func() time.Time
}

// ExecutorDependencies bundles collaborators for the executor.
type ExecutorDependencies struct {
	Definitions DefinitionSource
	Tickets     TicketStore
	Directory   Directory
	Evaluator   *Evaluator
	Pipeline    *Pipeline
	History     HistoryStore
	Locks       LockManager
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// NewExecutor constructs the executor.
func NewExecutor(deps ExecutorDependencies, cfg ExecutorConfig) *Executor {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	locks := deps.Locks
	if locks == nil {
		locks = NewMemoryLockManager()
	}
	return &Executor{
		defs:       deps.Definitions,
		tickets:    deps.Tickets,
		directory:  deps.Directory,
		evaluator:  deps.Evaluator,
		pipeline:   deps.Pipeline,
		history:    deps.History,
		locks:      locks,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		cfg:        cfg.withDefaults(),
		now:        time.Now,
	}
}

// ListAvailable returns the transitions the user can currently fire on the
// ticket: status match, role match and a passing guard, ordered by sort
// order.
func (x *Executor) ListAvailable(ctx context.Context, ticketID string, user *domain.User) ([]domain.Transition, error) {
	ticket, err := x.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, mapTicketErr(err, ticketID)
	}
	role, err := x.resolveRole(ctx, user)
	if err != nil {
		return nil, err
	}

	candidates := x.defs.ActiveTransitionsFrom(ticket.WorkflowTypeID, ticket.StatusID)
	available := make([]domain.Transition, 0, len(candidates))
	for i := range candidates {
		transition := candidates[i]
		if !transition.RoleAllowed(role) {
			continue
		}
		allowed, _ := x.evaluator.Evaluate(ctx, &transition, ticket, user, nil)
		if allowed {
			available = append(available, transition)
		}
	}
	return available, nil
}

// Execute fires the transition on the ticket. The guard phase runs inside
// the per-ticket critical section; on any guard failure nothing is mutated
// and a success=false history entry is recorded. After commit, action
// failures are captured in the entry's ActionsResult and never roll back the
// status change.
func (x *Executor) Execute(ctx context.Context, ticketID, transitionID string, user *domain.User, opts ExecuteOptions) (*domain.HistoryEntry, error) {
	started := x.now()

	transition, err := x.defs.GetTransition(transitionID)
	if err != nil {
		return nil, apperrors.NewNotFound("transition", map[string]any{"transition_id": transitionID})
	}

	lockCtx, cancel := context.WithTimeout(ctx, x.cfg.LockWait)
	defer cancel()
	unlock, err := x.locks.Acquire(lockCtx, "ticket:"+ticketID, x.cfg.LockTTL)
	if err != nil {
		return nil, apperrors.NewConflict("ticket is busy with another transition", map[string]any{"ticket_id": ticketID})
	}
	defer unlock()

	ticket, err := x.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, mapTicketErr(err, ticketID)
	}
	role, err := x.resolveRole(ctx, user)
	if err != nil {
		return nil, err
	}

	entry := &domain.HistoryEntry{
		ID:             uuid.NewString(),
		TicketID:       ticketID,
		TransitionID:   transition.ID,
		TransitionName: transition.Name,
		UserID:         user.ID,
		Metadata:       opts.Metadata,
		CreatedAt:      x.now(),
	}
	if from, err := x.defs.GetStatus(ticket.StatusID); err == nil {
		entry.FromStatus = from.Snapshot()
	}
	if to, err := x.defs.GetStatus(transition.ToStatusID); err == nil {
		entry.ToStatus = to.Snapshot()
	}

	// guard phase: re-validate applicability against current state so stale
	// UI state cannot fire an inapplicable transition
	if !transition.IsActive {
		return x.guardFailure(ctx, entry, started, transition.WorkflowTypeID, "transition is not active")
	}
	if transition.WorkflowTypeID != ticket.WorkflowTypeID {
		return x.guardFailure(ctx, entry, started, transition.WorkflowTypeID, "transition belongs to a different workflow type")
	}
	if !transition.AppliesFrom(ticket.StatusID) {
		return x.guardFailure(ctx, entry, started, transition.WorkflowTypeID, "transition not applicable from current status")
	}
	if !transition.RoleAllowed(role) {
		return x.guardFailure(ctx, entry, started, transition.WorkflowTypeID, "role not permitted for this transition")
	}

	allowed, trace := x.evaluator.Evaluate(ctx, transition, ticket, user, opts.Context)
	entry.ConditionsResult = trace
	if !allowed {
		return x.guardFailure(ctx, entry, started, transition.WorkflowTypeID, "transition conditions not satisfied")
	}
	if transition.RequiresComment && strings.TrimSpace(opts.Comment) == "" {
		return x.guardFailure(ctx, entry, started, transition.WorkflowTypeID, "comment required")
	}
	hasAssignee := ticket.AssigneeID != nil && *ticket.AssigneeID != ""
	if transition.RequiresAssignment && !hasAssignee && opts.AssigneeID == "" {
		return x.guardFailure(ctx, entry, started, transition.WorkflowTypeID, "assignment required")
	}

	// commit: one atomic unit, compare-and-set on the observed status
	commit := CommitRequest{
		TicketID:         ticketID,
		ExpectedStatusID: ticket.StatusID,
		ToStatusID:       transition.ToStatusID,
		ActorID:          user.ID,
	}
	if strings.TrimSpace(opts.Comment) != "" {
		comment := opts.Comment
		commit.Comment = &comment
	}
	if opts.AssigneeID != "" {
		assignee := opts.AssigneeID
		commit.AssigneeID = &assignee
	}
	if err := x.tickets.CommitTransition(ctx, commit); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return x.guardFailure(ctx, entry, started, transition.WorkflowTypeID, "ticket status changed concurrently")
		}
		message := fmt.Sprintf("commit failed: %v", err)
		entry.Success = false
		entry.ErrorMessage = &message
		entry.ExecutionDurationMs = x.now().Sub(started).Milliseconds()
		x.record(ctx, entry)
		x.metrics.RecordTransition(transition.WorkflowTypeID, false, x.now().Sub(started))
		return entry, apperrors.NewInternalError(err)
	}

	// action phase: best effort over committed state
	committed, err := x.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		committed = ticket
	}
	entry.ActionsResult = x.pipeline.RunAll(ctx, transition, committed, user, opts.Context)
	actionFailures := 0
	for _, result := range entry.ActionsResult {
		if !result.Success {
			actionFailures++
			x.metrics.RecordActionFailure(string(result.Type))
		}
	}

	assignedID := ""
	if commit.AssigneeID != nil {
		assignedID = *commit.AssigneeID
	}
	for _, result := range entry.ActionsResult {
		if result.Type != domain.ActionAssign || !result.Success {
			continue
		}
		// an assign action ran; re-read so the event carries whoever
		// the rule ultimately resolved to
		if final, err := x.tickets.GetTicket(ctx, ticketID); err == nil && final.AssigneeID != nil {
			assignedID = *final.AssigneeID
		}
		break
	}
	if assignedID != "" {
		x.publish(ctx, events.Event{
			Type:     events.EventTicketAssigned,
			TicketID: ticketID,
			Actor:    events.Actor{UserID: user.ID, Role: role},
			Payload:  events.TicketAssignedPayload{AssigneeID: assignedID},
		})
	}

	entry.Success = true
	entry.ExecutionDurationMs = x.now().Sub(started).Milliseconds()
	x.record(ctx, entry)
	x.metrics.RecordTransition(transition.WorkflowTypeID, true, x.now().Sub(started))
	x.publish(ctx, events.Event{
		Type:     events.EventTransitionExecuted,
		TicketID: ticketID,
		Actor:    events.Actor{UserID: user.ID, Role: role},
		Payload: events.TransitionExecutedPayload{
			TransitionID:   transition.ID,
			TransitionName: transition.Name,
			FromStatusID:   transition.FromStatusID,
			ToStatusID:     transition.ToStatusID,
			ActionFailures: actionFailures,
			DurationMs:     entry.ExecutionDurationMs,
		},
	})

	x.logger.Info("transition executed",
		zap.String("ticket_id", ticketID),
		zap.String("transition_id", transition.ID),
		zap.String("to_status_id", transition.ToStatusID),
		zap.Int("action_failures", actionFailures),
		zap.Int64("duration_ms", entry.ExecutionDurationMs))
	return entry, nil
}

// guardFailure records a success=false entry and returns it together with
// the caller-facing validation error. The ticket has not been mutated.
func (x *Executor) guardFailure(ctx context.Context, entry *domain.HistoryEntry, started time.Time, workflowTypeID, reason string) (*domain.HistoryEntry, error) {
	entry.Success = false
	entry.ErrorMessage = &reason
	entry.ExecutionDurationMs = x.now().Sub(started).Milliseconds()
	x.record(ctx, entry)
	x.metrics.RecordTransition(workflowTypeID, false, x.now().Sub(started))
	x.publish(ctx, events.Event{
		Type:     events.EventTransitionFailed,
		TicketID: entry.TicketID,
		Actor:    events.Actor{UserID: entry.UserID},
		Payload: events.TransitionFailedPayload{
			TransitionID: entry.TransitionID,
			Reason:       reason,
		},
	})
	return entry, apperrors.NewValidationError(reason, map[string]any{
		"ticket_id":     entry.TicketID,
		"transition_id": entry.TransitionID,
	})
}

// record persists the entry. The history store retries internally; if it
// still fails, the committed transition must not vanish silently, so the
// failure is logged loudly and counted.
func (x *Executor) record(ctx context.Context, entry *domain.HistoryEntry) {
	if x.history == nil {
		return
	}
	if err := x.history.Record(ctx, entry); err != nil {
		x.metrics.RecordHistoryWriteFailure()
		x.logger.Error("history entry lost: committed transition is unrecorded",
			zap.String("ticket_id", entry.TicketID),
			zap.String("transition_id", entry.TransitionID),
			zap.Bool("success", entry.Success),
			zap.Error(err))
	}
}

func (x *Executor) publish(ctx context.Context, event events.Event) {
	if x.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = x.now()
	}
	_ = x.dispatcher.Publish(ctx, event)
}

func (x *Executor) resolveRole(ctx context.Context, user *domain.User) (string, error) {
	if user == nil {
		return "", apperrors.NewUnauthorized("acting user required")
	}
	if user.Role != "" {
		return user.Role, nil
	}
	if x.directory == nil {
		return "", nil
	}
	role, err := x.directory.GetUserRole(ctx, user.ID)
	if err != nil {
		return "", apperrors.MapError(err)
	}
	user.Role = role
	return role, nil
}

func mapTicketErr(err error, ticketID string) error {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
}
