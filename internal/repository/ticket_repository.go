package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/workflow-engine/internal/domain"
	"github.com/spec-kit/workflow-engine/internal/engine"
)

// TicketRepository is the storage side of the ticket projection: the
// engine.TicketStore surface plus the scan queries the automatic worker
// needs.
type TicketRepository interface {
	engine.TicketStore
	ListByStatus(ctx context.Context, workflowTypeID, statusID string, limit int) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `
    id, workflow_type_id, status_id, title, description, priority, requester_id, assignee_id,
    tags, fields, sla_due_at, response_due_at, sla_breached, escalation_level,
    created_at, updated_at, last_transition_at`

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var t domain.Ticket
	var fields []byte
	err := row.Scan(
		&t.ID,
		&t.WorkflowTypeID,
		&t.StatusID,
		&t.Title,
		&t.Description,
		&t.Priority,
		&t.RequesterID,
		&t.AssigneeID,
		&t.Tags,
		&fields,
		&t.SLADueAt,
		&t.ResponseDueAt,
		&t.SLABreached,
		&t.EscalationLevel,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.LastTransitionAt,
	)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &t.Fields); err != nil {
			return nil, fmt.Errorf("decode ticket fields: %w", err)
		}
	}
	return &t, nil
}

func (r *ticketRepository) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id)
	return scanTicket(row)
}

func (r *ticketRepository) ListByStatus(ctx context.Context, workflowTypeID, statusID string, limit int) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE workflow_type_id=$1 AND status_id=$2 ORDER BY updated_at LIMIT $3`,
		workflowTypeID, statusID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

// CommitTransition applies the status change, optional comment and optional
// assignment as a single transaction. The UPDATE compares against the
// expected status; zero rows means the ticket moved concurrently.
func (r *ticketRepository) CommitTransition(ctx context.Context, commit engine.CommitRequest) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	cmd, err := tx.Exec(ctx, `
        UPDATE tickets
        SET status_id=$1, updated_at=NOW(), last_transition_at=NOW()
        WHERE id=$2 AND status_id=$3`,
		commit.ToStatusID, commit.TicketID, commit.ExpectedStatusID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE id=$1)`, commit.TicketID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return pgx.ErrNoRows
		}
		return engine.ErrStatusConflict
	}

	if commit.AssigneeID != nil {
		if _, err := tx.Exec(ctx,
			`UPDATE tickets SET assignee_id=$1, updated_at=NOW() WHERE id=$2`,
			*commit.AssigneeID, commit.TicketID,
		); err != nil {
			return err
		}
	}

	if commit.Comment != nil {
		if _, err := tx.Exec(ctx, `
            INSERT INTO ticket_comments (id, ticket_id, author_id, content, is_internal, created_at)
            VALUES ($1,$2,$3,$4,$5,NOW())`,
			uuid.NewString(), commit.TicketID, commit.ActorID, *commit.Comment, commit.CommentInternal,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *ticketRepository) AssignTicket(ctx context.Context, ticketID, userID string) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE tickets SET assignee_id=$1, updated_at=NOW() WHERE id=$2`,
		userID, ticketID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) AppendComment(ctx context.Context, ticketID, authorID, content string, internal bool) error {
	_, err := r.pool.Exec(ctx, `
        INSERT INTO ticket_comments (id, ticket_id, author_id, content, is_internal, created_at)
        VALUES ($1,$2,$3,$4,$5,NOW())`,
		uuid.NewString(), ticketID, authorID, content, internal,
	)
	return err
}

func (r *ticketRepository) SetTicketField(ctx context.Context, ticketID, field string, value any) error {
	switch field {
	case "priority":
		return r.updateColumn(ctx, ticketID, "priority", domain.Stringify(value))
	case "title":
		return r.updateColumn(ctx, ticketID, "title", domain.Stringify(value))
	case "description":
		return r.updateColumn(ctx, ticketID, "description", domain.Stringify(value))
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode field value: %w", err)
	}
	cmd, err := r.pool.Exec(ctx, `
        UPDATE tickets
        SET fields = jsonb_set(COALESCE(fields, '{}'::jsonb), ARRAY[$1::text], $2::jsonb, true), updated_at=NOW()
        WHERE id=$3`,
		field, encoded, ticketID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) updateColumn(ctx context.Context, ticketID, column, value string) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE tickets SET `+column+`=$1, updated_at=NOW() WHERE id=$2`,
		value, ticketID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) ApplySLA(ctx context.Context, ticketID string, update domain.SLAUpdate) error {
	if update.Reset {
		_, err := r.pool.Exec(ctx, `
            UPDATE tickets SET sla_due_at=NULL, response_due_at=NULL, sla_breached=FALSE, updated_at=NOW()
            WHERE id=$1`, ticketID)
		return err
	}
	if update.SLAHours != nil {
		if _, err := r.pool.Exec(ctx, `
            UPDATE tickets SET sla_due_at = NOW() + make_interval(hours => $1), updated_at=NOW()
            WHERE id=$2`, *update.SLAHours, ticketID); err != nil {
			return err
		}
	}
	if update.ResponseHours != nil {
		if _, err := r.pool.Exec(ctx, `
            UPDATE tickets SET response_due_at = NOW() + make_interval(hours => $1), updated_at=NOW()
            WHERE id=$2`, *update.ResponseHours, ticketID); err != nil {
			return err
		}
	}
	return nil
}

func (r *ticketRepository) EscalateTicket(ctx context.Context, ticketID string, level int, reason string) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE tickets SET escalation_level=$1, updated_at=NOW() WHERE id=$2`,
		level, ticketID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	if reason != "" {
		return r.AppendComment(ctx, ticketID, "", "Escalated: "+reason, true)
	}
	return nil
}
