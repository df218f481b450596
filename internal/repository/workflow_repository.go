package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/workflow-engine/internal/domain"
)

// WorkflowRepository persists workflow definitions. The definition service
// keeps the authoritative in-memory aggregate; this repository is its
// write-through backing store.
type WorkflowRepository interface {
	LoadDefinitions(ctx context.Context) ([]domain.WorkflowType, []domain.Status, []domain.Transition, error)
	SaveWorkflowType(ctx context.Context, wt *domain.WorkflowType) error
	DeleteWorkflowType(ctx context.Context, id string) error
	SaveStatus(ctx context.Context, st *domain.Status) error
	DeleteStatus(ctx context.Context, id string) error
	SaveTransition(ctx context.Context, tr *domain.Transition) error
	DeleteTransition(ctx context.Context, id string) error
}

type workflowRepository struct {
	pool *pgxpool.Pool
}

// NewWorkflowRepository instantiates the repository.
func NewWorkflowRepository(pool *pgxpool.Pool) WorkflowRepository {
	return &workflowRepository{pool: pool}
}

func (r *workflowRepository) LoadDefinitions(ctx context.Context) ([]domain.WorkflowType, []domain.Status, []domain.Transition, error) {
	types, err := r.loadTypes(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load workflow types: %w", err)
	}
	statuses, err := r.loadStatuses(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load statuses: %w", err)
	}
	transitions, err := r.loadTransitions(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load transitions: %w", err)
	}
	return types, statuses, transitions, nil
}

func (r *workflowRepository) loadTypes(ctx context.Context) ([]domain.WorkflowType, error) {
	const query = `
        SELECT id, tenant_id, name, display_name, description, icon, color, is_active, is_default, created_at, updated_at
        FROM workflow_types`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.WorkflowType
	for rows.Next() {
		var wt domain.WorkflowType
		var displayName, description []byte
		if err := rows.Scan(
			&wt.ID,
			&wt.TenantID,
			&wt.Name,
			&displayName,
			&description,
			&wt.Icon,
			&wt.Color,
			&wt.IsActive,
			&wt.IsDefault,
			&wt.CreatedAt,
			&wt.UpdatedAt,
		); err != nil {
			return nil, err
		}
		wt.DisplayName = decodeLocalized(displayName)
		wt.Description = decodeLocalized(description)
		result = append(result, wt)
	}
	return result, rows.Err()
}

func (r *workflowRepository) loadStatuses(ctx context.Context) ([]domain.Status, error) {
	const query = `
        SELECT id, workflow_type_id, name, display_name, description, color, icon, category,
               is_initial, is_final, sort_order, sla_hours, response_hours,
               auto_assign, notify_on_enter, notify_on_exit, is_active, created_at, updated_at
        FROM workflow_statuses`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Status
	for rows.Next() {
		var st domain.Status
		var displayName, description []byte
		if err := rows.Scan(
			&st.ID,
			&st.WorkflowTypeID,
			&st.Name,
			&displayName,
			&description,
			&st.Color,
			&st.Icon,
			&st.Category,
			&st.IsInitial,
			&st.IsFinal,
			&st.SortOrder,
			&st.SLAHours,
			&st.ResponseHours,
			&st.AutoAssign,
			&st.NotifyOnEnter,
			&st.NotifyOnExit,
			&st.IsActive,
			&st.CreatedAt,
			&st.UpdatedAt,
		); err != nil {
			return nil, err
		}
		st.DisplayName = decodeLocalized(displayName)
		st.Description = decodeLocalized(description)
		result = append(result, st)
	}
	return result, rows.Err()
}

func (r *workflowRepository) loadTransitions(ctx context.Context) ([]domain.Transition, error) {
	const query = `
        SELECT id, workflow_type_id, name, display_name, description, from_status_id, to_status_id,
               icon, color, is_automatic, requires_comment, requires_assignment, allowed_roles,
               sort_order, is_active, created_at, updated_at
        FROM workflow_transitions`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := map[string]*domain.Transition{}
	var order []string
	for rows.Next() {
		var tr domain.Transition
		var displayName, description []byte
		if err := rows.Scan(
			&tr.ID,
			&tr.WorkflowTypeID,
			&tr.Name,
			&displayName,
			&description,
			&tr.FromStatusID,
			&tr.ToStatusID,
			&tr.Icon,
			&tr.Color,
			&tr.IsAutomatic,
			&tr.RequiresComment,
			&tr.RequiresAssignment,
			&tr.AllowedRoles,
			&tr.SortOrder,
			&tr.IsActive,
			&tr.CreatedAt,
			&tr.UpdatedAt,
		); err != nil {
			return nil, err
		}
		tr.DisplayName = decodeLocalized(displayName)
		tr.Description = decodeLocalized(description)
		byID[tr.ID] = &tr
		order = append(order, tr.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadConditions(ctx, byID); err != nil {
		return nil, err
	}
	if err := r.loadActions(ctx, byID); err != nil {
		return nil, err
	}

	result := make([]domain.Transition, 0, len(order))
	for _, id := range order {
		result = append(result, *byID[id])
	}
	return result, nil
}

func (r *workflowRepository) loadConditions(ctx context.Context, transitions map[string]*domain.Transition) error {
	const query = `
        SELECT id, transition_id, condition_type, field_name, operator, expected_value, condition_group, is_active, created_at, updated_at
        FROM transition_conditions ORDER BY transition_id, position`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var c domain.Condition
		if err := rows.Scan(
			&c.ID,
			&c.TransitionID,
			&c.Type,
			&c.FieldName,
			&c.Operator,
			&c.ExpectedValue,
			&c.Group,
			&c.IsActive,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return err
		}
		if tr, ok := transitions[c.TransitionID]; ok {
			tr.Conditions = append(tr.Conditions, c)
		}
	}
	return rows.Err()
}

func (r *workflowRepository) loadActions(ctx context.Context, transitions map[string]*domain.Transition) error {
	const query = `
        SELECT id, transition_id, action_type, action_config, execution_order, is_active, created_at, updated_at
        FROM transition_actions ORDER BY transition_id, position`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var a domain.Action
		var config []byte
		if err := rows.Scan(
			&a.ID,
			&a.TransitionID,
			&a.Type,
			&config,
			&a.ExecutionOrder,
			&a.IsActive,
			&a.CreatedAt,
			&a.UpdatedAt,
		); err != nil {
			return err
		}
		a.Config = json.RawMessage(config)
		if tr, ok := transitions[a.TransitionID]; ok {
			tr.Actions = append(tr.Actions, a)
		}
	}
	return rows.Err()
}

func (r *workflowRepository) SaveWorkflowType(ctx context.Context, wt *domain.WorkflowType) error {
	const query = `
        INSERT INTO workflow_types (id, tenant_id, name, display_name, description, icon, color, is_active, is_default, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        ON CONFLICT (id) DO UPDATE SET
            tenant_id=EXCLUDED.tenant_id, name=EXCLUDED.name, display_name=EXCLUDED.display_name,
            description=EXCLUDED.description, icon=EXCLUDED.icon, color=EXCLUDED.color,
            is_active=EXCLUDED.is_active, is_default=EXCLUDED.is_default, updated_at=EXCLUDED.updated_at`
	_, err := r.pool.Exec(ctx, query,
		wt.ID,
		wt.TenantID,
		wt.Name,
		encodeLocalized(wt.DisplayName),
		encodeLocalized(wt.Description),
		wt.Icon,
		wt.Color,
		wt.IsActive,
		wt.IsDefault,
		wt.CreatedAt,
		wt.UpdatedAt,
	)
	return err
}

func (r *workflowRepository) DeleteWorkflowType(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM workflow_types WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *workflowRepository) SaveStatus(ctx context.Context, st *domain.Status) error {
	const query = `
        INSERT INTO workflow_statuses (id, workflow_type_id, name, display_name, description, color, icon, category,
            is_initial, is_final, sort_order, sla_hours, response_hours,
            auto_assign, notify_on_enter, notify_on_exit, is_active, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
        ON CONFLICT (id) DO UPDATE SET
            name=EXCLUDED.name, display_name=EXCLUDED.display_name, description=EXCLUDED.description,
            color=EXCLUDED.color, icon=EXCLUDED.icon, category=EXCLUDED.category,
            is_initial=EXCLUDED.is_initial, is_final=EXCLUDED.is_final, sort_order=EXCLUDED.sort_order,
            sla_hours=EXCLUDED.sla_hours, response_hours=EXCLUDED.response_hours,
            auto_assign=EXCLUDED.auto_assign, notify_on_enter=EXCLUDED.notify_on_enter,
            notify_on_exit=EXCLUDED.notify_on_exit, is_active=EXCLUDED.is_active, updated_at=EXCLUDED.updated_at`
	_, err := r.pool.Exec(ctx, query,
		st.ID,
		st.WorkflowTypeID,
		st.Name,
		encodeLocalized(st.DisplayName),
		encodeLocalized(st.Description),
		st.Color,
		st.Icon,
		st.Category,
		st.IsInitial,
		st.IsFinal,
		st.SortOrder,
		st.SLAHours,
		st.ResponseHours,
		st.AutoAssign,
		st.NotifyOnEnter,
		st.NotifyOnExit,
		st.IsActive,
		st.CreatedAt,
		st.UpdatedAt,
	)
	return err
}

func (r *workflowRepository) DeleteStatus(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM workflow_statuses WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SaveTransition upserts the transition and replaces its owned conditions
// and actions inside a single transaction.
func (r *workflowRepository) SaveTransition(ctx context.Context, tr *domain.Transition) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        INSERT INTO workflow_transitions (id, workflow_type_id, name, display_name, description, from_status_id, to_status_id,
            icon, color, is_automatic, requires_comment, requires_assignment, allowed_roles, sort_order, is_active, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
        ON CONFLICT (id) DO UPDATE SET
            name=EXCLUDED.name, display_name=EXCLUDED.display_name, description=EXCLUDED.description,
            from_status_id=EXCLUDED.from_status_id, to_status_id=EXCLUDED.to_status_id,
            icon=EXCLUDED.icon, color=EXCLUDED.color, is_automatic=EXCLUDED.is_automatic,
            requires_comment=EXCLUDED.requires_comment, requires_assignment=EXCLUDED.requires_assignment,
            allowed_roles=EXCLUDED.allowed_roles, sort_order=EXCLUDED.sort_order,
            is_active=EXCLUDED.is_active, updated_at=EXCLUDED.updated_at`
	if _, err := tx.Exec(ctx, query,
		tr.ID,
		tr.WorkflowTypeID,
		tr.Name,
		encodeLocalized(tr.DisplayName),
		encodeLocalized(tr.Description),
		tr.FromStatusID,
		tr.ToStatusID,
		tr.Icon,
		tr.Color,
		tr.IsAutomatic,
		tr.RequiresComment,
		tr.RequiresAssignment,
		tr.AllowedRoles,
		tr.SortOrder,
		tr.IsActive,
		tr.CreatedAt,
		tr.UpdatedAt,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM transition_conditions WHERE transition_id=$1`, tr.ID); err != nil {
		return err
	}
	// position keeps declaration order across reloads; NOW() is constant
	// within the transaction so created_at cannot order the rows.
	for i, c := range tr.Conditions {
		if _, err := tx.Exec(ctx, `
            INSERT INTO transition_conditions (id, transition_id, condition_type, field_name, operator, expected_value, condition_group, position, is_active, created_at, updated_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW())`,
			c.ID, tr.ID, c.Type, c.FieldName, c.Operator, c.ExpectedValue, c.Group, i, c.IsActive,
		); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM transition_actions WHERE transition_id=$1`, tr.ID); err != nil {
		return err
	}
	for i, a := range tr.Actions {
		config := a.Config
		if len(config) == 0 {
			config = json.RawMessage(`{}`)
		}
		if _, err := tx.Exec(ctx, `
            INSERT INTO transition_actions (id, transition_id, action_type, action_config, execution_order, position, is_active, created_at, updated_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW())`,
			a.ID, tr.ID, a.Type, []byte(config), a.ExecutionOrder, i, a.IsActive,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *workflowRepository) DeleteTransition(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM workflow_transitions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func encodeLocalized(l domain.LocalizedText) []byte {
	if l == nil {
		return []byte(`{}`)
	}
	data, err := json.Marshal(l)
	if err != nil {
		return []byte(`{}`)
	}
	return data
}

func decodeLocalized(data []byte) domain.LocalizedText {
	if len(data) == 0 {
		return nil
	}
	var l domain.LocalizedText
	if err := json.Unmarshal(data, &l); err != nil {
		return nil
	}
	return l
}
