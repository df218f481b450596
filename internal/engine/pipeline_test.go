package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workflow-engine/internal/domain"
)

// fakeTicketStore serves a single mutable ticket.
type fakeTicketStore struct {
	mu     sync.Mutex
	ticket *domain.Ticket

	commits     int
	lastCommit  CommitRequest
	comments    []string
	authors     []string
	fieldWrites map[string]any
	failField   bool
}

func newFakeTicketStore(ticket *domain.Ticket) *fakeTicketStore {
	return &fakeTicketStore{ticket: ticket, fieldWrites: map[string]any{}}
}

func (s *fakeTicketStore) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticket == nil || s.ticket.ID != id {
		return nil, fmt.Errorf("ticket %s not found", id)
	}
	copied := *s.ticket
	return &copied, nil
}

func (s *fakeTicketStore) CommitTransition(ctx context.Context, commit CommitRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticket.StatusID != commit.ExpectedStatusID {
		return ErrStatusConflict
	}
	s.ticket.StatusID = commit.ToStatusID
	if commit.AssigneeID != nil {
		s.ticket.AssigneeID = commit.AssigneeID
	}
	if commit.Comment != nil {
		s.comments = append(s.comments, *commit.Comment)
		s.authors = append(s.authors, commit.ActorID)
	}
	s.commits++
	s.lastCommit = commit
	return nil
}

func (s *fakeTicketStore) AssignTicket(ctx context.Context, ticketID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticket.AssigneeID = &userID
	return nil
}

func (s *fakeTicketStore) AppendComment(ctx context.Context, ticketID, authorID, content string, internal bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments = append(s.comments, content)
	s.authors = append(s.authors, authorID)
	return nil
}

func (s *fakeTicketStore) SetTicketField(ctx context.Context, ticketID, field string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failField {
		return fmt.Errorf("field write rejected")
	}
	if s.ticket.Fields == nil {
		s.ticket.Fields = map[string]any{}
	}
	if field == "priority" {
		s.ticket.Priority = domain.Stringify(value)
	} else {
		s.ticket.Fields[field] = value
	}
	s.fieldWrites[field] = value
	return nil
}

func (s *fakeTicketStore) ApplySLA(ctx context.Context, ticketID string, update domain.SLAUpdate) error {
	return nil
}

func (s *fakeTicketStore) EscalateTicket(ctx context.Context, ticketID string, level int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticket.EscalationLevel = level
	return nil
}

type fakeNotifier struct {
	notified [][]string
	messages []string
	fail     bool
}

func (n *fakeNotifier) Notify(ctx context.Context, recipients []string, subject, message string) error {
	if n.fail {
		return fmt.Errorf("notify channel down")
	}
	n.notified = append(n.notified, recipients)
	n.messages = append(n.messages, message)
	return nil
}

func (n *fakeNotifier) SendEmail(ctx context.Context, to []string, subject, body string) error {
	if n.fail {
		return fmt.Errorf("smtp down")
	}
	n.notified = append(n.notified, to)
	n.messages = append(n.messages, body)
	return nil
}

func (n *fakeNotifier) SendTelegram(ctx context.Context, chatID, message string) error {
	if n.fail {
		return fmt.Errorf("telegram down")
	}
	n.messages = append(n.messages, message)
	return nil
}

type fakeWebhookClient struct {
	requests []WebhookRequest
	status   int
	fail     bool
}

func (w *fakeWebhookClient) Invoke(ctx context.Context, req WebhookRequest) (*WebhookResponse, error) {
	w.requests = append(w.requests, req)
	if w.fail {
		return nil, fmt.Errorf("webhook returned status 500")
	}
	status := w.status
	if status == 0 {
		status = 200
	}
	return &WebhookResponse{StatusCode: status}, nil
}

type fakeAssigner struct {
	assignee string
	fail     bool
}

func (a *fakeAssigner) Resolve(ctx context.Context, rule domain.AssigneeRule, specificID string, ticket *domain.Ticket, actor *domain.User) (string, error) {
	if a.fail {
		return "", fmt.Errorf("no assignable agents")
	}
	if specificID != "" {
		return specificID, nil
	}
	return a.assignee, nil
}

type fakeEventSink struct {
	events []string
	fields []map[string]string
}

func (s *fakeEventSink) LogEvent(ctx context.Context, event string, fields map[string]string) error {
	s.events = append(s.events, event)
	s.fields = append(s.fields, fields)
	return nil
}

func mustConfig(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func action(id string, order int, actionType domain.ActionType, cfg json.RawMessage) domain.Action {
	return domain.Action{
		ID:             id,
		Type:           actionType,
		Config:         cfg,
		ExecutionOrder: order,
		IsActive:       true,
	}
}

func newTestPipeline(store *fakeTicketStore, notifier *fakeNotifier, webhooks *fakeWebhookClient, sink *fakeEventSink) *Pipeline {
	return NewPipeline(PipelineDependencies{
		Tickets:  store,
		Notifier: notifier,
		Webhooks: webhooks,
		Scripts:  NewScriptRunner(),
		Assigner: &fakeAssigner{assignee: "u-agent"},
		Events:   sink,
	}, PipelineConfig{})
}

func TestPipelineRunsInExecutionOrder(t *testing.T) {
	store := newFakeTicketStore(baseTicket())
	sink := &fakeEventSink{}
	pipeline := newTestPipeline(store, &fakeNotifier{}, &fakeWebhookClient{}, sink)

	// declared out of order on purpose
	tr := &domain.Transition{
		ID: "tr-1",
		Actions: []domain.Action{
			action("a-log", 2, domain.ActionLogEvent, mustConfig(t, domain.LogEventConfig{Event: "resolved"})),
			action("a-field", 0, domain.ActionUpdateField, mustConfig(t, domain.UpdateFieldConfig{FieldName: "priority", FieldValue: "low"})),
			action("a-comment", 1, domain.ActionCreateComment, mustConfig(t, domain.CommentConfig{Content: "done"})),
		},
	}

	results := pipeline.RunAll(context.Background(), tr, store.ticket, &domain.User{ID: "u-1"}, nil)

	require.Len(t, results, 3)
	assert.Equal(t, "a-field", results[0].ActionID)
	assert.Equal(t, "a-comment", results[1].ActionID)
	assert.Equal(t, "a-log", results[2].ActionID)
	for _, r := range results {
		assert.True(t, r.Success, "action %s", r.ActionID)
	}
}

func TestPipelineFailureDoesNotHaltRest(t *testing.T) {
	store := newFakeTicketStore(baseTicket())
	store.failField = true
	sink := &fakeEventSink{}
	pipeline := newTestPipeline(store, &fakeNotifier{}, &fakeWebhookClient{}, sink)

	tr := &domain.Transition{
		ID: "tr-1",
		Actions: []domain.Action{
			action("a-field", 0, domain.ActionUpdateField, mustConfig(t, domain.UpdateFieldConfig{FieldName: "region", FieldValue: "apac"})),
			action("a-log", 1, domain.ActionLogEvent, mustConfig(t, domain.LogEventConfig{Event: "after-failure"})),
		},
	}

	results := pipeline.RunAll(context.Background(), tr, store.ticket, nil, nil)

	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "field write rejected")
	assert.True(t, results[1].Success)
	assert.Equal(t, []string{"after-failure"}, sink.events)
}

func TestPipelineLaterActionsSeeEarlierWrites(t *testing.T) {
	store := newFakeTicketStore(baseTicket())
	notifier := &fakeNotifier{}
	pipeline := newTestPipeline(store, notifier, &fakeWebhookClient{}, &fakeEventSink{})

	tr := &domain.Transition{
		ID: "tr-1",
		Actions: []domain.Action{
			action("a-field", 0, domain.ActionUpdateField, mustConfig(t, domain.UpdateFieldConfig{FieldName: "priority", FieldValue: "low"})),
			action("a-notify", 1, domain.ActionNotify, mustConfig(t, domain.NotifyConfig{
				Recipients: []string{"requester"},
				Message:    "now {{ticket.priority}}",
			})),
		},
	}

	results := pipeline.RunAll(context.Background(), tr, store.ticket, nil, nil)

	require.Len(t, results, 2)
	require.True(t, results[1].Success)
	require.Len(t, notifier.messages, 1)
	assert.Equal(t, "now low", notifier.messages[0])
}

func TestPipelineCommentCarriesActingUser(t *testing.T) {
	store := newFakeTicketStore(baseTicket())
	pipeline := newTestPipeline(store, &fakeNotifier{}, &fakeWebhookClient{}, &fakeEventSink{})

	tr := &domain.Transition{
		ID: "tr-1",
		Actions: []domain.Action{
			action("a-comment", 0, domain.ActionCreateComment, mustConfig(t, domain.CommentConfig{Content: "handled by {{user.id}}"})),
		},
	}

	results := pipeline.RunAll(context.Background(), tr, store.ticket, &domain.User{ID: "u-7"}, nil)

	require.Len(t, results, 1)
	require.True(t, results[0].Success)
	require.Equal(t, []string{"handled by u-7"}, store.comments)
	assert.Equal(t, []string{"u-7"}, store.authors)
}

func TestPipelineAssignAction(t *testing.T) {
	store := newFakeTicketStore(baseTicket())
	pipeline := newTestPipeline(store, &fakeNotifier{}, &fakeWebhookClient{}, &fakeEventSink{})

	tr := &domain.Transition{
		ID: "tr-1",
		Actions: []domain.Action{
			action("a-assign", 0, domain.ActionAssign, mustConfig(t, domain.AssignConfig{AssigneeRule: domain.AssigneeRoundRobin})),
		},
	}

	results := pipeline.RunAll(context.Background(), tr, store.ticket, &domain.User{ID: "u-1"}, nil)

	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	require.NotNil(t, store.ticket.AssigneeID)
	assert.Equal(t, "u-agent", *store.ticket.AssigneeID)
}

func TestPipelineWebhookAction(t *testing.T) {
	store := newFakeTicketStore(baseTicket())
	webhooks := &fakeWebhookClient{status: 204}
	pipeline := newTestPipeline(store, &fakeNotifier{}, webhooks, &fakeEventSink{})

	tr := &domain.Transition{
		ID: "tr-1",
		Actions: []domain.Action{
			action("a-hook", 0, domain.ActionWebhook, mustConfig(t, domain.WebhookConfig{
				URL:  "https://example.test/hooks/{{ticket.id}}",
				Body: `{"priority":"{{ticket.priority}}"}`,
			})),
		},
	}

	results := pipeline.RunAll(context.Background(), tr, store.ticket, nil, nil)

	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, "webhook responded 204", results[0].Output)
	require.Len(t, webhooks.requests, 1)
	assert.Equal(t, "https://example.test/hooks/t-1", webhooks.requests[0].URL)
	assert.Equal(t, "POST", webhooks.requests[0].Method)
	assert.JSONEq(t, `{"priority":"high"}`, string(webhooks.requests[0].Body))
}

func TestPipelineWebhookFailureRecorded(t *testing.T) {
	store := newFakeTicketStore(baseTicket())
	webhooks := &fakeWebhookClient{fail: true}
	pipeline := newTestPipeline(store, &fakeNotifier{}, webhooks, &fakeEventSink{})

	tr := &domain.Transition{
		ID: "tr-1",
		Actions: []domain.Action{
			action("a-hook", 0, domain.ActionWebhook, mustConfig(t, domain.WebhookConfig{URL: "https://example.test"})),
		},
	}

	results := pipeline.RunAll(context.Background(), tr, store.ticket, nil, nil)

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "500")
}

func TestPipelineScriptAction(t *testing.T) {
	store := newFakeTicketStore(baseTicket())
	pipeline := newTestPipeline(store, &fakeNotifier{}, &fakeWebhookClient{}, &fakeEventSink{})

	tr := &domain.Transition{
		ID: "tr-1",
		Actions: []domain.Action{
			action("a-script", 0, domain.ActionScript, mustConfig(t, domain.ScriptConfig{
				Code: `"escalation:" + ticket.escalation_level`,
			})),
		},
	}

	results := pipeline.RunAll(context.Background(), tr, store.ticket, nil, nil)

	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, "escalation:0", results[0].Output)
}

func TestPipelineMalformedConfigFailsAction(t *testing.T) {
	store := newFakeTicketStore(baseTicket())
	pipeline := newTestPipeline(store, &fakeNotifier{}, &fakeWebhookClient{}, &fakeEventSink{})

	tr := &domain.Transition{
		ID: "tr-1",
		Actions: []domain.Action{
			{ID: "a-bad", Type: domain.ActionWebhook, Config: json.RawMessage(`{not json`), ExecutionOrder: 0, IsActive: true},
			action("a-log", 1, domain.ActionLogEvent, mustConfig(t, domain.LogEventConfig{Event: "still-runs"})),
		},
	}

	results := pipeline.RunAll(context.Background(), tr, store.ticket, nil, nil)

	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.True(t, results[1].Success)
}
