package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workflow-engine/internal/domain"
)

type fakeAgentRepo struct {
	agents    []domain.User
	openCount map[string]int
}

func (f *fakeAgentRepo) ListAssignable(context.Context) ([]domain.User, error) {
	return append([]domain.User(nil), f.agents...), nil
}

func (f *fakeAgentRepo) CountOpenAssigned(_ context.Context, userID string) (int, error) {
	return f.openCount[userID], nil
}

func (f *fakeAgentRepo) GetUserRole(_ context.Context, userID string) (string, error) {
	return domain.RoleAgent, nil
}

func TestResolveStaticRules(t *testing.T) {
	svc := NewAssignmentService(&fakeAgentRepo{})
	ctx := context.Background()
	ticket := &domain.Ticket{ID: "t-1", RequesterID: "u-requester"}
	actor := &domain.User{ID: "u-actor"}

	id, err := svc.Resolve(ctx, domain.AssigneeCreator, "", ticket, actor)
	require.NoError(t, err)
	assert.Equal(t, "u-requester", id)

	id, err = svc.Resolve(ctx, domain.AssigneeCurrentUser, "", ticket, actor)
	require.NoError(t, err)
	assert.Equal(t, "u-actor", id)

	id, err = svc.Resolve(ctx, domain.AssigneeSpecificUser, "u-picked", ticket, actor)
	require.NoError(t, err)
	assert.Equal(t, "u-picked", id)

	_, err = svc.Resolve(ctx, domain.AssigneeSpecificUser, "", ticket, actor)
	assert.Error(t, err)

	_, err = svc.Resolve(ctx, domain.AssigneeCurrentUser, "", ticket, nil)
	assert.Error(t, err)

	_, err = svc.Resolve(ctx, domain.AssigneeRule("fortune_cookie"), "", ticket, actor)
	assert.Error(t, err)
}

func TestResolveRoundRobinIsDeterministic(t *testing.T) {
	repo := &fakeAgentRepo{agents: []domain.User{{ID: "u-a"}, {ID: "u-b"}, {ID: "u-c"}}}
	svc := NewAssignmentService(repo)
	ctx := context.Background()

	first, err := svc.Resolve(ctx, domain.AssigneeRoundRobin, "", &domain.Ticket{ID: "t-1"}, nil)
	require.NoError(t, err)
	again, err := svc.Resolve(ctx, domain.AssigneeRoundRobin, "", &domain.Ticket{ID: "t-1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, first, again, "same ticket resolves to the same agent")

	seen := map[string]bool{}
	for _, id := range []string{"t-1", "t-2", "t-3", "t-4", "t-5", "t-6"} {
		agent, err := svc.Resolve(ctx, domain.AssigneeRoundRobin, "", &domain.Ticket{ID: id}, nil)
		require.NoError(t, err)
		seen[agent] = true
	}
	assert.Greater(t, len(seen), 1, "consecutive tickets spread across agents")
}

func TestResolveLeastAssigned(t *testing.T) {
	repo := &fakeAgentRepo{
		agents:    []domain.User{{ID: "u-a"}, {ID: "u-b"}, {ID: "u-c"}},
		openCount: map[string]int{"u-a": 4, "u-b": 1, "u-c": 2},
	}
	svc := NewAssignmentService(repo)

	id, err := svc.Resolve(context.Background(), domain.AssigneeLeastAssigned, "", &domain.Ticket{ID: "t-1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "u-b", id)
}

func TestResolveLeastAssignedTieBreaksByID(t *testing.T) {
	repo := &fakeAgentRepo{
		agents:    []domain.User{{ID: "u-c"}, {ID: "u-a"}, {ID: "u-b"}},
		openCount: map[string]int{"u-a": 2, "u-b": 2, "u-c": 2},
	}
	svc := NewAssignmentService(repo)

	id, err := svc.Resolve(context.Background(), domain.AssigneeLeastAssigned, "", &domain.Ticket{ID: "t-1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "u-a", id)
}

func TestResolveWithoutAgents(t *testing.T) {
	svc := NewAssignmentService(&fakeAgentRepo{})

	_, err := svc.Resolve(context.Background(), domain.AssigneeRoundRobin, "", &domain.Ticket{ID: "t-1"}, nil)
	assert.Error(t, err)

	_, err = NewAssignmentService(nil).Resolve(context.Background(), domain.AssigneeLeastAssigned, "", &domain.Ticket{ID: "t-1"}, nil)
	assert.Error(t, err)
}
