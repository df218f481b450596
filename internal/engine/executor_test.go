package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workflow-engine/internal/domain"
	"github.com/spec-kit/workflow-engine/internal/events"
	apperrors "github.com/spec-kit/workflow-engine/pkg/util"
)

type fakeDefs struct {
	types       map[string]*domain.WorkflowType
	statuses    map[string]*domain.Status
	transitions map[string]*domain.Transition
}

func newFakeDefs() *fakeDefs {
	return &fakeDefs{
		types:       map[string]*domain.WorkflowType{},
		statuses:    map[string]*domain.Status{},
		transitions: map[string]*domain.Transition{},
	}
}

func (d *fakeDefs) GetWorkflowType(id string) (*domain.WorkflowType, error) {
	if wt, ok := d.types[id]; ok {
		return wt, nil
	}
	return nil, fmt.Errorf("workflow type %s not found", id)
}

func (d *fakeDefs) GetStatus(id string) (*domain.Status, error) {
	if st, ok := d.statuses[id]; ok {
		return st, nil
	}
	return nil, fmt.Errorf("status %s not found", id)
}

func (d *fakeDefs) GetTransition(id string) (*domain.Transition, error) {
	if tr, ok := d.transitions[id]; ok {
		return tr, nil
	}
	return nil, fmt.Errorf("transition %s not found", id)
}

func (d *fakeDefs) ActiveTransitionsFrom(workflowTypeID, statusID string) []domain.Transition {
	var result []domain.Transition
	for _, tr := range d.transitions {
		if tr.WorkflowTypeID == workflowTypeID && tr.IsActive && tr.AppliesFrom(statusID) {
			result = append(result, *tr)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SortOrder < result[j].SortOrder })
	return result
}

type fakeHistory struct {
	mu      sync.Mutex
	entries []domain.HistoryEntry
	fail    bool
}

func (h *fakeHistory) Record(ctx context.Context, entry *domain.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail {
		return fmt.Errorf("history store down")
	}
	h.entries = append(h.entries, *entry)
	return nil
}

func (h *fakeHistory) List(ctx context.Context, ticketID string, page, limit int, includeDetails bool) ([]domain.HistoryEntry, int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.HistoryEntry(nil), h.entries...), len(h.entries), nil
}

type fakeDispatcher struct {
	mu        sync.Mutex
	published []events.Event
}

func (d *fakeDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.published = append(d.published, event)
	return nil
}

func (d *fakeDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {}

func (d *fakeDispatcher) byType(t events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var matched []events.Event
	for _, e := range d.published {
		if e.Type == t {
			matched = append(matched, e)
		}
	}
	return matched
}

// workflowFixture is a two-step support workflow: open -> in_progress -> resolved.
type workflowFixture struct {
	defs       *fakeDefs
	store      *fakeTicketStore
	history    *fakeHistory
	dispatcher *fakeDispatcher
}

func newWorkflowFixture() *workflowFixture {
	defs := newFakeDefs()
	defs.types["wt-1"] = &domain.WorkflowType{ID: "wt-1", Name: "support", IsActive: true}
	defs.statuses["st-open"] = &domain.Status{
		ID: "st-open", WorkflowTypeID: "wt-1", Name: "open",
		Category: domain.CategoryOpen, IsInitial: true, IsActive: true,
	}
	defs.statuses["st-progress"] = &domain.Status{
		ID: "st-progress", WorkflowTypeID: "wt-1", Name: "in_progress",
		Category: domain.CategoryActive, IsActive: true,
	}
	defs.statuses["st-resolved"] = &domain.Status{
		ID: "st-resolved", WorkflowTypeID: "wt-1", Name: "resolved",
		Category: domain.CategoryResolved, IsFinal: true, IsActive: true,
	}

	fromOpen := "st-open"
	defs.transitions["tr-start"] = &domain.Transition{
		ID: "tr-start", WorkflowTypeID: "wt-1", Name: "assign_and_start",
		FromStatusID: &fromOpen, ToStatusID: "st-progress",
		AllowedRoles: []string{domain.RoleAgent, domain.RoleTeamLead},
		IsActive:     true,
	}

	ticket := baseTicket()
	return &workflowFixture{
		defs:       defs,
		store:      newFakeTicketStore(ticket),
		history:    &fakeHistory{},
		dispatcher: &fakeDispatcher{},
	}
}

func (f *workflowFixture) executor() *Executor {
	pipeline := NewPipeline(PipelineDependencies{
		Tickets:  f.store,
		Notifier: &fakeNotifier{},
		Webhooks: &fakeWebhookClient{},
		Scripts:  NewScriptRunner(),
		Assigner: &fakeAssigner{assignee: "u-agent"},
		Events:   &fakeEventSink{},
	}, PipelineConfig{})
	return NewExecutor(ExecutorDependencies{
		Definitions: f.defs,
		Tickets:     f.store,
		Evaluator:   NewEvaluator(NewScriptRunner(), 0),
		Pipeline:    pipeline,
		History:     f.history,
		Dispatcher:  f.dispatcher,
	}, ExecutorConfig{})
}

func agent() *domain.User {
	return &domain.User{ID: "u-agent", Role: domain.RoleAgent}
}

func TestExecuteHappyPath(t *testing.T) {
	f := newWorkflowFixture()
	f.defs.transitions["tr-start"].Actions = []domain.Action{
		{
			ID: "a-comment", Type: domain.ActionCreateComment, ExecutionOrder: 0, IsActive: true,
			Config: mustConfig(t, domain.CommentConfig{Content: "started by {{user.id}}"}),
		},
	}
	x := f.executor()

	entry, err := x.Execute(context.Background(), "t-1", "tr-start", agent(), ExecuteOptions{})
	require.NoError(t, err)

	assert.True(t, entry.Success)
	assert.Equal(t, "st-progress", f.store.ticket.StatusID)
	require.NotNil(t, entry.FromStatus)
	assert.Equal(t, "open", entry.FromStatus.Name)
	require.NotNil(t, entry.ToStatus)
	assert.Equal(t, "in_progress", entry.ToStatus.Name)
	require.Len(t, entry.ActionsResult, 1)
	assert.True(t, entry.ActionsResult[0].Success)
	assert.Equal(t, []string{"started by u-agent"}, f.store.comments)
	require.Len(t, f.history.entries, 1)
}

func TestExecuteUnknownTransition(t *testing.T) {
	f := newWorkflowFixture()
	x := f.executor()

	entry, err := x.Execute(context.Background(), "t-1", "tr-missing", agent(), ExecuteOptions{})
	require.Error(t, err)
	assert.Nil(t, entry)
	assert.Empty(t, f.history.entries, "nothing recorded before the guard phase starts")
}

func TestExecuteRoleRejected(t *testing.T) {
	f := newWorkflowFixture()
	x := f.executor()

	entry, err := x.Execute(context.Background(), "t-1", "tr-start", &domain.User{ID: "u-r", Role: domain.RoleRequester}, ExecuteOptions{})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	require.NotNil(t, entry)
	assert.False(t, entry.Success)
	assert.Equal(t, "st-open", f.store.ticket.StatusID, "nothing mutated")
	require.Len(t, f.history.entries, 1)
	assert.False(t, f.history.entries[0].Success)
}

func TestExecuteRequiresCommentBlocksWithoutMutation(t *testing.T) {
	f := newWorkflowFixture()
	f.defs.transitions["tr-start"].RequiresComment = true
	x := f.executor()

	entry, err := x.Execute(context.Background(), "t-1", "tr-start", agent(), ExecuteOptions{})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	require.NotNil(t, entry)
	assert.False(t, entry.Success)
	require.NotNil(t, entry.ErrorMessage)
	assert.Equal(t, "comment required", *entry.ErrorMessage)
	assert.Equal(t, "st-open", f.store.ticket.StatusID)
	assert.Zero(t, f.store.commits)

	// supplying the comment makes it pass, and the comment lands in the commit
	entry, err = x.Execute(context.Background(), "t-1", "tr-start", agent(), ExecuteOptions{Comment: "on it"})
	require.NoError(t, err)
	assert.True(t, entry.Success)
	assert.Contains(t, f.store.comments, "on it")
}

func TestExecuteRequiresAssignment(t *testing.T) {
	f := newWorkflowFixture()
	f.defs.transitions["tr-start"].RequiresAssignment = true
	x := f.executor()

	_, err := x.Execute(context.Background(), "t-1", "tr-start", agent(), ExecuteOptions{})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	// an assignee supplied with the execution satisfies the requirement
	entry, err := x.Execute(context.Background(), "t-1", "tr-start", agent(), ExecuteOptions{AssigneeID: "u-agent"})
	require.NoError(t, err)
	assert.True(t, entry.Success)
	require.NotNil(t, f.store.ticket.AssigneeID)
	assert.Equal(t, "u-agent", *f.store.ticket.AssigneeID)
}

func TestExecuteCommitCommentCarriesActor(t *testing.T) {
	f := newWorkflowFixture()
	x := f.executor()

	entry, err := x.Execute(context.Background(), "t-1", "tr-start", agent(), ExecuteOptions{Comment: "picking this up"})
	require.NoError(t, err)
	assert.True(t, entry.Success)

	assert.Equal(t, "u-agent", f.store.lastCommit.ActorID)
	require.Equal(t, []string{"picking this up"}, f.store.comments)
	assert.Equal(t, []string{"u-agent"}, f.store.authors)
}

func TestExecutePublishesTicketAssignedForSuppliedAssignee(t *testing.T) {
	f := newWorkflowFixture()
	x := f.executor()

	_, err := x.Execute(context.Background(), "t-1", "tr-start", agent(), ExecuteOptions{AssigneeID: "u-new"})
	require.NoError(t, err)

	assigned := f.dispatcher.byType(events.EventTicketAssigned)
	require.Len(t, assigned, 1)
	assert.Equal(t, "t-1", assigned[0].TicketID)
	assert.Equal(t, "u-agent", assigned[0].Actor.UserID)
	payload, ok := assigned[0].Payload.(events.TicketAssignedPayload)
	require.True(t, ok)
	assert.Equal(t, "u-new", payload.AssigneeID)
}

func TestExecutePublishesTicketAssignedForAssignAction(t *testing.T) {
	f := newWorkflowFixture()
	f.defs.transitions["tr-start"].Actions = []domain.Action{
		{
			ID: "a-assign", Type: domain.ActionAssign, ExecutionOrder: 0, IsActive: true,
			Config: mustConfig(t, domain.AssignConfig{AssigneeRule: domain.AssigneeRoundRobin}),
		},
	}
	x := f.executor()

	_, err := x.Execute(context.Background(), "t-1", "tr-start", agent(), ExecuteOptions{})
	require.NoError(t, err)

	assigned := f.dispatcher.byType(events.EventTicketAssigned)
	require.Len(t, assigned, 1)
	payload, ok := assigned[0].Payload.(events.TicketAssignedPayload)
	require.True(t, ok)
	assert.Equal(t, "u-agent", payload.AssigneeID, "the rule's resolved assignee, not the actor's input")
}

func TestExecuteNoTicketAssignedWithoutAssignment(t *testing.T) {
	f := newWorkflowFixture()
	x := f.executor()

	_, err := x.Execute(context.Background(), "t-1", "tr-start", agent(), ExecuteOptions{})
	require.NoError(t, err)

	assert.Empty(t, f.dispatcher.byType(events.EventTicketAssigned))
	require.Len(t, f.dispatcher.byType(events.EventTransitionExecuted), 1)
}

func TestExecuteGuardConditionFailureRecordsTrace(t *testing.T) {
	f := newWorkflowFixture()
	f.defs.transitions["tr-start"].Conditions = []domain.Condition{
		fieldCondition("c1", 1, "priority", domain.OperatorEquals, "low"),
	}
	x := f.executor()

	entry, err := x.Execute(context.Background(), "t-1", "tr-start", agent(), ExecuteOptions{})
	require.Error(t, err)
	require.NotNil(t, entry)
	assert.False(t, entry.Success)
	require.Len(t, entry.ConditionsResult, 1)
	assert.False(t, entry.ConditionsResult[0].Result)
	assert.Equal(t, "st-open", f.store.ticket.StatusID)
}

func TestExecuteWrongStatusRejected(t *testing.T) {
	f := newWorkflowFixture()
	f.store.ticket.StatusID = "st-resolved"
	x := f.executor()

	entry, err := x.Execute(context.Background(), "t-1", "tr-start", agent(), ExecuteOptions{})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	require.NotNil(t, entry)
	require.NotNil(t, entry.ErrorMessage)
	assert.Contains(t, *entry.ErrorMessage, "not applicable")
}

func TestExecuteActionFailureDoesNotRollBack(t *testing.T) {
	f := newWorkflowFixture()
	f.store.failField = true
	f.defs.transitions["tr-start"].Actions = []domain.Action{
		{
			ID: "a-field", Type: domain.ActionUpdateField, ExecutionOrder: 0, IsActive: true,
			Config: mustConfig(t, domain.UpdateFieldConfig{FieldName: "region", FieldValue: "apac"}),
		},
	}
	x := f.executor()

	entry, err := x.Execute(context.Background(), "t-1", "tr-start", agent(), ExecuteOptions{})
	require.NoError(t, err, "action failures do not fail the execution")

	assert.True(t, entry.Success)
	assert.Equal(t, "st-progress", f.store.ticket.StatusID, "status change survives the failed action")
	require.Len(t, entry.ActionsResult, 1)
	assert.False(t, entry.ActionsResult[0].Success)
}

func TestExecuteHistoryWriteFailureDoesNotFailExecution(t *testing.T) {
	f := newWorkflowFixture()
	f.history.fail = true
	x := f.executor()

	entry, err := x.Execute(context.Background(), "t-1", "tr-start", agent(), ExecuteOptions{})
	require.NoError(t, err)
	assert.True(t, entry.Success)
	assert.Equal(t, "st-progress", f.store.ticket.StatusID)
}

func TestExecuteConcurrentOnlyOneCommits(t *testing.T) {
	f := newWorkflowFixture()
	x := f.executor()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = x.Execute(context.Background(), "t-1", "tr-start", agent(), ExecuteOptions{})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one execution wins")
	assert.Equal(t, 1, f.store.commits)
	assert.Equal(t, "st-progress", f.store.ticket.StatusID)
}

func TestListAvailableFiltersRoleAndGuard(t *testing.T) {
	f := newWorkflowFixture()
	fromOpen := "st-open"
	f.defs.transitions["tr-guarded"] = &domain.Transition{
		ID: "tr-guarded", WorkflowTypeID: "wt-1", Name: "escalate_low",
		FromStatusID: &fromOpen, ToStatusID: "st-progress",
		Conditions: []domain.Condition{
			fieldCondition("c1", 1, "priority", domain.OperatorEquals, "low"),
		},
		IsActive:  true,
		SortOrder: 1,
	}
	x := f.executor()

	available, err := x.ListAvailable(context.Background(), "t-1", agent())
	require.NoError(t, err)
	require.Len(t, available, 1, "guarded transition filtered out for a high-priority ticket")
	assert.Equal(t, "tr-start", available[0].ID)

	available, err = x.ListAvailable(context.Background(), "t-1", &domain.User{ID: "u-r", Role: domain.RoleRequester})
	require.NoError(t, err)
	assert.Empty(t, available, "requester role not allowed on either transition")
}
