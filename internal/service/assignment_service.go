package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/spec-kit/workflow-engine/internal/domain"
	"github.com/spec-kit/workflow-engine/internal/repository"
	apperrors "github.com/spec-kit/workflow-engine/pkg/util"
)

// AssignmentService resolves assign-action rules to concrete users. It
// implements engine.AssignmentResolver.
type AssignmentService struct {
	agents repository.AgentRepository
}

// NewAssignmentService constructs the resolver.
func NewAssignmentService(agents repository.AgentRepository) *AssignmentService {
	return &AssignmentService{agents: agents}
}

// Resolve maps an assignee rule to a user ID.
func (s *AssignmentService) Resolve(ctx context.Context, rule domain.AssigneeRule, specificID string, ticket *domain.Ticket, actor *domain.User) (string, error) {
	switch rule {
	case domain.AssigneeCreator:
		if ticket.RequesterID == "" {
			return "", fmt.Errorf("ticket has no requester")
		}
		return ticket.RequesterID, nil
	case domain.AssigneeCurrentUser:
		if actor == nil || actor.ID == "" {
			return "", fmt.Errorf("no acting user to assign")
		}
		return actor.ID, nil
	case domain.AssigneeSpecificUser:
		if specificID == "" {
			return "", fmt.Errorf("specific_user rule without assignee_id")
		}
		return specificID, nil
	case domain.AssigneeRoundRobin:
		return s.roundRobin(ctx, ticket)
	case domain.AssigneeLeastAssigned:
		return s.leastAssigned(ctx)
	}
	return "", fmt.Errorf("unknown assignee rule %q", rule)
}

// roundRobin spreads tickets across assignable agents using a stable hash of
// the ticket ID, so repeated resolution for the same ticket is
// deterministic.
func (s *AssignmentService) roundRobin(ctx context.Context, ticket *domain.Ticket) (string, error) {
	agents, err := s.assignableAgents(ctx)
	if err != nil {
		return "", err
	}
	return agents[selectIndex(ticket.ID, len(agents))].ID, nil
}

// leastAssigned picks the agent with the fewest open assigned tickets, ties
// broken by user ID for determinism.
func (s *AssignmentService) leastAssigned(ctx context.Context) (string, error) {
	agents, err := s.assignableAgents(ctx)
	if err != nil {
		return "", err
	}
	best := agents[0]
	bestCount, err := s.agents.CountOpenAssigned(ctx, best.ID)
	if err != nil {
		return "", err
	}
	for _, agent := range agents[1:] {
		count, err := s.agents.CountOpenAssigned(ctx, agent.ID)
		if err != nil {
			return "", err
		}
		if count < bestCount {
			best = agent
			bestCount = count
		}
	}
	return best.ID, nil
}

func (s *AssignmentService) assignableAgents(ctx context.Context) ([]domain.User, error) {
	if s.agents == nil {
		return nil, fmt.Errorf("no agent repository configured")
	}
	agents, err := s.agents.ListAssignable(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(agents) == 0 {
		return nil, fmt.Errorf("no assignable agents")
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
	return agents, nil
}

func selectIndex(key string, length int) int {
	if length == 0 {
		return 0
	}
	sum := 0
	for _, ch := range key {
		sum += int(ch)
	}
	return sum % length
}
