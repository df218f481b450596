package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/workflow-engine/internal/domain"
)

// HistoryRepository persists transition audit records.
type HistoryRepository interface {
	Insert(ctx context.Context, entry *domain.HistoryEntry) error
	ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.HistoryEntry, int, error)
}

type historyRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository instantiates the repository.
func NewHistoryRepository(pool *pgxpool.Pool) HistoryRepository {
	return &historyRepository{pool: pool}
}

func (r *historyRepository) Insert(ctx context.Context, entry *domain.HistoryEntry) error {
	const query = `
        INSERT INTO workflow_history (id, ticket_id, transition_id, transition_name, from_status, to_status,
            user_id, success, error_message, conditions_result, actions_result, metadata, execution_duration_ms, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.TicketID,
		entry.TransitionID,
		entry.TransitionName,
		marshalJSON(entry.FromStatus),
		marshalJSON(entry.ToStatus),
		entry.UserID,
		entry.Success,
		entry.ErrorMessage,
		marshalJSON(entry.ConditionsResult),
		marshalJSON(entry.ActionsResult),
		marshalJSON(entry.Metadata),
		entry.ExecutionDurationMs,
		entry.CreatedAt,
	)
	return err
}

// ListByTicket returns entries newest first along with the total count for
// the ticket.
func (r *historyRepository) ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.HistoryEntry, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM workflow_history WHERE ticket_id=$1`, ticketID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	const query = `
        SELECT id, ticket_id, transition_id, transition_name, from_status, to_status,
               user_id, success, error_message, conditions_result, actions_result, metadata, execution_duration_ms, created_at
        FROM workflow_history
        WHERE ticket_id=$1
        ORDER BY created_at DESC, id DESC
        LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, ticketID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		var fromStatus, toStatus, conditions, actions, metadata []byte
		if err := rows.Scan(
			&e.ID,
			&e.TicketID,
			&e.TransitionID,
			&e.TransitionName,
			&fromStatus,
			&toStatus,
			&e.UserID,
			&e.Success,
			&e.ErrorMessage,
			&conditions,
			&actions,
			&metadata,
			&e.ExecutionDurationMs,
			&e.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		unmarshalJSON(fromStatus, &e.FromStatus)
		unmarshalJSON(toStatus, &e.ToStatus)
		unmarshalJSON(conditions, &e.ConditionsResult)
		unmarshalJSON(actions, &e.ActionsResult)
		unmarshalJSON(metadata, &e.Metadata)
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func marshalJSON(v any) []byte {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

func unmarshalJSON(data []byte, dst any) {
	if len(data) == 0 {
		return
	}
	_ = json.Unmarshal(data, dst)
}
