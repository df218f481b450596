package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/workflow-engine/internal/domain"
)

// AgentRepository reads the user directory: assignable agents for assignment
// rules and roles for guard checks.
type AgentRepository interface {
	ListAssignable(ctx context.Context) ([]domain.User, error)
	CountOpenAssigned(ctx context.Context, userID string) (int, error)
	GetUserRole(ctx context.Context, userID string) (string, error)
}

type agentRepository struct {
	pool *pgxpool.Pool
}

// NewAgentRepository instantiates the repository.
func NewAgentRepository(pool *pgxpool.Pool) AgentRepository {
	return &agentRepository{pool: pool}
}

func (r *agentRepository) ListAssignable(ctx context.Context) ([]domain.User, error) {
	const query = `
        SELECT id, role, email, display_name
        FROM users
        WHERE is_assignable AND is_active
        ORDER BY id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Role, &u.Email, &u.DisplayName); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CountOpenAssigned counts the user's tickets whose status category is not
// yet resolved or closed.
func (r *agentRepository) CountOpenAssigned(ctx context.Context, userID string) (int, error) {
	const query = `
        SELECT COUNT(*)
        FROM tickets t
        JOIN workflow_statuses s ON s.id = t.status_id
        WHERE t.assignee_id = $1 AND s.category NOT IN ('resolved', 'closed')`
	var count int
	err := r.pool.QueryRow(ctx, query, userID).Scan(&count)
	return count, err
}

func (r *agentRepository) GetUserRole(ctx context.Context, userID string) (string, error) {
	var role string
	err := r.pool.QueryRow(ctx, `SELECT role FROM users WHERE id=$1`, userID).Scan(&role)
	return role, err
}
