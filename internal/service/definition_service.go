package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/workflow-engine/internal/domain"
	"github.com/spec-kit/workflow-engine/internal/events"
	"github.com/spec-kit/workflow-engine/internal/repository"
	apperrors "github.com/spec-kit/workflow-engine/pkg/util"
)

// DefinitionService is the workflow definition store: an in-memory aggregate
// of workflow types, statuses and transitions kept consistent with the
// repository. Reads are lock-free for callers beyond an RWMutex read lock;
// writes are rare admin operations validated for referential integrity
// before they apply.
type DefinitionService struct {
	mu          sync.RWMutex
	types       map[string]*domain.WorkflowType
	statuses    map[string]*domain.Status
	transitions map[string]*domain.Transition

	repo       repository.WorkflowRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// DefinitionDependencies bundles collaborators for the definition store.
// Repo may be nil for a purely in-memory store.
type DefinitionDependencies struct {
	Repo       repository.WorkflowRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewDefinitionService constructs an empty store.
func NewDefinitionService(deps DefinitionDependencies) *DefinitionService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefinitionService{
		types:       make(map[string]*domain.WorkflowType),
		statuses:    make(map[string]*domain.Status),
		transitions: make(map[string]*domain.Transition),
		repo:        deps.Repo,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
		now:         time.Now,
	}
}

// Load hydrates the store from the repository.
func (s *DefinitionService) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	types, statuses, transitions, err := s.repo.LoadDefinitions(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types = make(map[string]*domain.WorkflowType, len(types))
	s.statuses = make(map[string]*domain.Status, len(statuses))
	s.transitions = make(map[string]*domain.Transition, len(transitions))
	for i := range types {
		s.types[types[i].ID] = &types[i]
	}
	for i := range statuses {
		s.statuses[statuses[i].ID] = &statuses[i]
	}
	for i := range transitions {
		s.transitions[transitions[i].ID] = &transitions[i]
	}
	s.logger.Info("workflow definitions loaded",
		zap.Int("types", len(types)),
		zap.Int("statuses", len(statuses)),
		zap.Int("transitions", len(transitions)))
	return nil
}

// --- read path (engine.DefinitionSource) ---

// GetWorkflowType returns a copy of the workflow type.
func (s *DefinitionService) GetWorkflowType(id string) (*domain.WorkflowType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wt, ok := s.types[id]
	if !ok {
		return nil, apperrors.NewNotFound("workflow type", map[string]any{"workflow_type_id": id})
	}
	copied := *wt
	return &copied, nil
}

// GetStatus returns a copy of the status.
func (s *DefinitionService) GetStatus(id string) (*domain.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.statuses[id]
	if !ok {
		return nil, apperrors.NewNotFound("status", map[string]any{"status_id": id})
	}
	copied := *st
	return &copied, nil
}

// GetTransition returns a copy of the transition with its conditions and
// actions.
func (s *DefinitionService) GetTransition(id string) (*domain.Transition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tr, ok := s.transitions[id]
	if !ok {
		return nil, apperrors.NewNotFound("transition", map[string]any{"transition_id": id})
	}
	copied := copyTransition(tr)
	return &copied, nil
}

// ActiveTransitionsFrom lists active transitions applicable from the status,
// wildcard transitions included, ordered by sort order then name.
func (s *DefinitionService) ActiveTransitionsFrom(workflowTypeID, statusID string) []domain.Transition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Transition, 0)
	for _, tr := range s.transitions {
		if tr.WorkflowTypeID != workflowTypeID || !tr.IsActive {
			continue
		}
		if !tr.AppliesFrom(statusID) {
			continue
		}
		result = append(result, copyTransition(tr))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SortOrder != result[j].SortOrder {
			return result[i].SortOrder < result[j].SortOrder
		}
		return result[i].Name < result[j].Name
	})
	return result
}

// ListWorkflowTypes returns all workflow types ordered by name.
func (s *DefinitionService) ListWorkflowTypes() []domain.WorkflowType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.WorkflowType, 0, len(s.types))
	for _, wt := range s.types {
		result = append(result, *wt)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// ListStatuses returns the statuses of a workflow type ordered by sort order.
func (s *DefinitionService) ListStatuses(workflowTypeID string) []domain.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Status, 0)
	for _, st := range s.statuses {
		if st.WorkflowTypeID == workflowTypeID {
			result = append(result, *st)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SortOrder != result[j].SortOrder {
			return result[i].SortOrder < result[j].SortOrder
		}
		return result[i].Name < result[j].Name
	})
	return result
}

// ListTransitions returns the transitions of a workflow type ordered by sort
// order.
func (s *DefinitionService) ListTransitions(workflowTypeID string) []domain.Transition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Transition, 0)
	for _, tr := range s.transitions {
		if tr.WorkflowTypeID == workflowTypeID {
			result = append(result, copyTransition(tr))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SortOrder != result[j].SortOrder {
			return result[i].SortOrder < result[j].SortOrder
		}
		return result[i].Name < result[j].Name
	})
	return result
}

// AutomaticTransitions returns all active automatic transitions across
// workflow types, for the scheduler worker.
func (s *DefinitionService) AutomaticTransitions() []domain.Transition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Transition, 0)
	for _, tr := range s.transitions {
		if tr.IsActive && tr.IsAutomatic {
			result = append(result, copyTransition(tr))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// --- admin write path ---

// CreateWorkflowType registers a new workflow type. Making it the tenant's
// default clears the previous default.
func (s *DefinitionService) CreateWorkflowType(ctx context.Context, wt domain.WorkflowType) (*domain.WorkflowType, error) {
	if strings.TrimSpace(wt.Name) == "" {
		return nil, apperrors.NewValidationError("workflow type name required", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.types {
		if existing.TenantID == wt.TenantID && existing.Name == wt.Name {
			return nil, apperrors.NewConflict("workflow type name already in use", map[string]any{"name": wt.Name})
		}
	}
	if wt.ID == "" {
		wt.ID = uuid.NewString()
	}
	wt.CreatedAt = s.now()
	wt.UpdatedAt = wt.CreatedAt
	if wt.IsDefault {
		s.clearDefaultLocked(wt.TenantID)
	}
	if err := s.persistType(ctx, &wt); err != nil {
		return nil, err
	}
	s.types[wt.ID] = &wt
	s.publishChange(ctx, wt.ID, "workflow_type", wt.ID, "created")
	copied := wt
	return &copied, nil
}

// UpdateWorkflowType applies changes to an existing workflow type.
func (s *DefinitionService) UpdateWorkflowType(ctx context.Context, id string, update domain.WorkflowType) (*domain.WorkflowType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.types[id]
	if !ok {
		return nil, apperrors.NewNotFound("workflow type", map[string]any{"workflow_type_id": id})
	}
	if update.Name != "" && update.Name != existing.Name {
		for _, other := range s.types {
			if other.ID != id && other.TenantID == existing.TenantID && other.Name == update.Name {
				return nil, apperrors.NewConflict("workflow type name already in use", map[string]any{"name": update.Name})
			}
		}
		existing.Name = update.Name
	}
	if update.DisplayName != nil {
		existing.DisplayName = update.DisplayName
	}
	if update.Description != nil {
		existing.Description = update.Description
	}
	if update.Icon != "" {
		existing.Icon = update.Icon
	}
	if update.Color != "" {
		existing.Color = update.Color
	}
	existing.IsActive = update.IsActive
	if update.IsDefault && !existing.IsDefault {
		s.clearDefaultLocked(existing.TenantID)
	}
	existing.IsDefault = update.IsDefault
	existing.UpdatedAt = s.now()
	if err := s.persistType(ctx, existing); err != nil {
		return nil, err
	}
	s.publishChange(ctx, id, "workflow_type", id, "updated")
	copied := *existing
	return &copied, nil
}

// DeleteWorkflowType removes a workflow type and cascades to its statuses
// and transitions.
func (s *DefinitionService) DeleteWorkflowType(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.types[id]; !ok {
		return apperrors.NewNotFound("workflow type", map[string]any{"workflow_type_id": id})
	}
	if s.repo != nil {
		if err := s.repo.DeleteWorkflowType(ctx, id); err != nil {
			return apperrors.MapError(err)
		}
	}
	for sid, st := range s.statuses {
		if st.WorkflowTypeID == id {
			delete(s.statuses, sid)
		}
	}
	for tid, tr := range s.transitions {
		if tr.WorkflowTypeID == id {
			delete(s.transitions, tid)
		}
	}
	delete(s.types, id)
	s.publishChange(ctx, id, "workflow_type", id, "deleted")
	return nil
}

// CreateStatus adds a status node to a workflow type.
func (s *DefinitionService) CreateStatus(ctx context.Context, st domain.Status) (*domain.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.types[st.WorkflowTypeID]; !ok {
		return nil, apperrors.NewNotFound("workflow type", map[string]any{"workflow_type_id": st.WorkflowTypeID})
	}
	if err := s.validateStatusLocked(&st, ""); err != nil {
		return nil, err
	}
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	st.CreatedAt = s.now()
	st.UpdatedAt = st.CreatedAt
	if err := s.persistStatus(ctx, &st); err != nil {
		return nil, err
	}
	s.statuses[st.ID] = &st
	s.publishChange(ctx, st.WorkflowTypeID, "status", st.ID, "created")
	copied := st
	return &copied, nil
}

// UpdateStatus applies changes to a status.
func (s *DefinitionService) UpdateStatus(ctx context.Context, id string, update domain.Status) (*domain.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.statuses[id]
	if !ok {
		return nil, apperrors.NewNotFound("status", map[string]any{"status_id": id})
	}
	update.ID = id
	update.WorkflowTypeID = existing.WorkflowTypeID
	if err := s.validateStatusLocked(&update, id); err != nil {
		return nil, err
	}
	update.CreatedAt = existing.CreatedAt
	update.UpdatedAt = s.now()
	if err := s.persistStatus(ctx, &update); err != nil {
		return nil, err
	}
	s.statuses[id] = &update
	s.publishChange(ctx, update.WorkflowTypeID, "status", id, "updated")
	copied := update
	return &copied, nil
}

// DeleteStatus removes a status node. A status referenced by any active
// transition cannot be deleted.
func (s *DefinitionService) DeleteStatus(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statuses[id]
	if !ok {
		return apperrors.NewNotFound("status", map[string]any{"status_id": id})
	}
	for _, tr := range s.transitions {
		if !tr.IsActive {
			continue
		}
		if tr.ToStatusID == id || (tr.FromStatusID != nil && *tr.FromStatusID == id) {
			return apperrors.NewConflict("status is referenced by an active transition", map[string]any{
				"status_id":     id,
				"transition_id": tr.ID,
			})
		}
	}
	if s.repo != nil {
		if err := s.repo.DeleteStatus(ctx, id); err != nil {
			return apperrors.MapError(err)
		}
	}
	delete(s.statuses, id)
	s.publishChange(ctx, st.WorkflowTypeID, "status", id, "deleted")
	return nil
}

// CreateTransition adds a guarded edge. Conditions and actions are validated
// here so malformed definitions never reach the evaluator or the pipeline.
func (s *DefinitionService) CreateTransition(ctx context.Context, tr domain.Transition) (*domain.Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.types[tr.WorkflowTypeID]; !ok {
		return nil, apperrors.NewNotFound("workflow type", map[string]any{"workflow_type_id": tr.WorkflowTypeID})
	}
	if err := s.validateTransitionLocked(&tr); err != nil {
		return nil, err
	}
	if tr.ID == "" {
		tr.ID = uuid.NewString()
	}
	for i := range tr.Conditions {
		if tr.Conditions[i].ID == "" {
			tr.Conditions[i].ID = uuid.NewString()
		}
		tr.Conditions[i].TransitionID = tr.ID
	}
	for i := range tr.Actions {
		if tr.Actions[i].ID == "" {
			tr.Actions[i].ID = uuid.NewString()
		}
		tr.Actions[i].TransitionID = tr.ID
	}
	tr.CreatedAt = s.now()
	tr.UpdatedAt = tr.CreatedAt
	if err := s.persistTransition(ctx, &tr); err != nil {
		return nil, err
	}
	s.transitions[tr.ID] = &tr
	s.publishChange(ctx, tr.WorkflowTypeID, "transition", tr.ID, "created")
	copied := copyTransition(&tr)
	return &copied, nil
}

// UpdateTransition replaces a transition, including its conditions and
// actions.
func (s *DefinitionService) UpdateTransition(ctx context.Context, id string, update domain.Transition) (*domain.Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.transitions[id]
	if !ok {
		return nil, apperrors.NewNotFound("transition", map[string]any{"transition_id": id})
	}
	update.ID = id
	update.WorkflowTypeID = existing.WorkflowTypeID
	if err := s.validateTransitionLocked(&update); err != nil {
		return nil, err
	}
	for i := range update.Conditions {
		if update.Conditions[i].ID == "" {
			update.Conditions[i].ID = uuid.NewString()
		}
		update.Conditions[i].TransitionID = id
	}
	for i := range update.Actions {
		if update.Actions[i].ID == "" {
			update.Actions[i].ID = uuid.NewString()
		}
		update.Actions[i].TransitionID = id
	}
	update.CreatedAt = existing.CreatedAt
	update.UpdatedAt = s.now()
	if err := s.persistTransition(ctx, &update); err != nil {
		return nil, err
	}
	s.transitions[id] = &update
	s.publishChange(ctx, update.WorkflowTypeID, "transition", id, "updated")
	copied := copyTransition(&update)
	return &copied, nil
}

// DeleteTransition removes an edge and cascades to its conditions and
// actions.
func (s *DefinitionService) DeleteTransition(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr, ok := s.transitions[id]
	if !ok {
		return apperrors.NewNotFound("transition", map[string]any{"transition_id": id})
	}
	if s.repo != nil {
		if err := s.repo.DeleteTransition(ctx, id); err != nil {
			return apperrors.MapError(err)
		}
	}
	delete(s.transitions, id)
	s.publishChange(ctx, tr.WorkflowTypeID, "transition", id, "deleted")
	return nil
}

// Export produces the JSON document for a workflow type with its full graph.
func (s *DefinitionService) Export(id string) (*domain.WorkflowDefinition, error) {
	wt, err := s.GetWorkflowType(id)
	if err != nil {
		return nil, err
	}
	return &domain.WorkflowDefinition{
		WorkflowType: *wt,
		Statuses:     s.ListStatuses(id),
		Transitions:  s.ListTransitions(id),
	}, nil
}

// Import consumes a definition document wholesale: the whole graph is
// validated, IDs are regenerated and references remapped, then everything is
// registered as a new workflow type.
func (s *DefinitionService) Import(ctx context.Context, def domain.WorkflowDefinition) (*domain.WorkflowType, error) {
	if err := validateDefinition(&def); err != nil {
		return nil, err
	}

	statusIDs := make(map[string]string, len(def.Statuses))
	def.WorkflowType.ID = uuid.NewString()
	def.WorkflowType.IsDefault = false
	for i := range def.Statuses {
		newID := uuid.NewString()
		statusIDs[def.Statuses[i].ID] = newID
		def.Statuses[i].ID = newID
		def.Statuses[i].WorkflowTypeID = def.WorkflowType.ID
	}
	for i := range def.Transitions {
		tr := &def.Transitions[i]
		tr.ID = uuid.NewString()
		tr.WorkflowTypeID = def.WorkflowType.ID
		if tr.FromStatusID != nil {
			mapped := statusIDs[*tr.FromStatusID]
			tr.FromStatusID = &mapped
		}
		tr.ToStatusID = statusIDs[tr.ToStatusID]
		for j := range tr.Conditions {
			tr.Conditions[j].ID = uuid.NewString()
			tr.Conditions[j].TransitionID = tr.ID
		}
		for j := range tr.Actions {
			tr.Actions[j].ID = uuid.NewString()
			tr.Actions[j].TransitionID = tr.ID
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.types {
		if existing.TenantID == def.WorkflowType.TenantID && existing.Name == def.WorkflowType.Name {
			return nil, apperrors.NewConflict("workflow type name already in use", map[string]any{"name": def.WorkflowType.Name})
		}
	}
	def.WorkflowType.CreatedAt = s.now()
	def.WorkflowType.UpdatedAt = def.WorkflowType.CreatedAt
	if err := s.persistType(ctx, &def.WorkflowType); err != nil {
		return nil, err
	}
	s.types[def.WorkflowType.ID] = &def.WorkflowType
	for i := range def.Statuses {
		def.Statuses[i].CreatedAt = s.now()
		def.Statuses[i].UpdatedAt = def.Statuses[i].CreatedAt
		if err := s.persistStatus(ctx, &def.Statuses[i]); err != nil {
			return nil, err
		}
		s.statuses[def.Statuses[i].ID] = &def.Statuses[i]
	}
	for i := range def.Transitions {
		def.Transitions[i].CreatedAt = s.now()
		def.Transitions[i].UpdatedAt = def.Transitions[i].CreatedAt
		if err := s.persistTransition(ctx, &def.Transitions[i]); err != nil {
			return nil, err
		}
		s.transitions[def.Transitions[i].ID] = &def.Transitions[i]
	}
	s.publishChange(ctx, def.WorkflowType.ID, "workflow_type", def.WorkflowType.ID, "imported")
	copied := def.WorkflowType
	return &copied, nil
}

// --- validation ---

func (s *DefinitionService) validateStatusLocked(st *domain.Status, selfID string) error {
	if strings.TrimSpace(st.Name) == "" {
		return apperrors.NewValidationError("status name required", nil)
	}
	if !domain.ValidCategory(st.Category) {
		return apperrors.NewValidationError("invalid status category", map[string]any{"category": st.Category})
	}
	for _, other := range s.statuses {
		if other.ID == selfID {
			continue
		}
		if other.WorkflowTypeID == st.WorkflowTypeID && other.Name == st.Name {
			return apperrors.NewConflict("status name already in use within workflow type", map[string]any{"name": st.Name})
		}
		if st.IsInitial && other.WorkflowTypeID == st.WorkflowTypeID && other.IsInitial {
			return apperrors.NewConflict("workflow type already has an initial status", map[string]any{"status_id": other.ID})
		}
	}
	if st.IsFinal {
		for _, tr := range s.transitions {
			if tr.ID != "" && tr.IsActive && tr.FromStatusID != nil && *tr.FromStatusID == st.ID {
				return apperrors.NewConflict("final status cannot have outgoing active transitions", map[string]any{
					"status_id":     st.ID,
					"transition_id": tr.ID,
				})
			}
		}
	}
	return nil
}

func (s *DefinitionService) validateTransitionLocked(tr *domain.Transition) error {
	if strings.TrimSpace(tr.Name) == "" {
		return apperrors.NewValidationError("transition name required", nil)
	}
	to, ok := s.statuses[tr.ToStatusID]
	if !ok {
		return apperrors.NewNotFound("status", map[string]any{"status_id": tr.ToStatusID})
	}
	if to.WorkflowTypeID != tr.WorkflowTypeID {
		return apperrors.NewConflict("to_status belongs to a different workflow type", map[string]any{"status_id": tr.ToStatusID})
	}
	if tr.FromStatusID == nil && tr.IsAutomatic {
		return apperrors.NewValidationError("automatic transitions require an explicit from_status", nil)
	}
	if tr.FromStatusID != nil {
		from, ok := s.statuses[*tr.FromStatusID]
		if !ok {
			return apperrors.NewNotFound("status", map[string]any{"status_id": *tr.FromStatusID})
		}
		if from.WorkflowTypeID != tr.WorkflowTypeID {
			return apperrors.NewConflict("from_status belongs to a different workflow type", map[string]any{"status_id": *tr.FromStatusID})
		}
		if from.IsFinal && tr.IsActive {
			return apperrors.NewConflict("final status cannot be the source of an active transition", map[string]any{"status_id": from.ID})
		}
	}
	for i := range tr.Conditions {
		if err := tr.Conditions[i].Validate(); err != nil {
			return apperrors.NewValidationError("invalid condition", map[string]any{
				"index":  i,
				"reason": err.Error(),
			})
		}
	}
	for i := range tr.Actions {
		if err := tr.Actions[i].Validate(); err != nil {
			return apperrors.NewValidationError("invalid action", map[string]any{
				"index":  i,
				"reason": err.Error(),
			})
		}
	}
	return nil
}

func validateDefinition(def *domain.WorkflowDefinition) error {
	if strings.TrimSpace(def.WorkflowType.Name) == "" {
		return apperrors.NewValidationError("workflow type name required", nil)
	}
	statusByID := make(map[string]*domain.Status, len(def.Statuses))
	initials := 0
	names := make(map[string]struct{}, len(def.Statuses))
	for i := range def.Statuses {
		st := &def.Statuses[i]
		if strings.TrimSpace(st.Name) == "" {
			return apperrors.NewValidationError("status name required", nil)
		}
		if !domain.ValidCategory(st.Category) {
			return apperrors.NewValidationError("invalid status category", map[string]any{"category": st.Category})
		}
		if _, dup := names[st.Name]; dup {
			return apperrors.NewConflict("duplicate status name in definition", map[string]any{"name": st.Name})
		}
		names[st.Name] = struct{}{}
		if st.IsInitial {
			initials++
		}
		statusByID[st.ID] = st
	}
	if initials != 1 {
		return apperrors.NewValidationError("definition must have exactly one initial status", map[string]any{"initial_count": initials})
	}
	for i := range def.Transitions {
		tr := &def.Transitions[i]
		to, ok := statusByID[tr.ToStatusID]
		if !ok {
			return apperrors.NewValidationError("transition references unknown to_status", map[string]any{"transition": tr.Name})
		}
		_ = to
		if tr.FromStatusID != nil {
			from, ok := statusByID[*tr.FromStatusID]
			if !ok {
				return apperrors.NewValidationError("transition references unknown from_status", map[string]any{"transition": tr.Name})
			}
			if from.IsFinal && tr.IsActive {
				return apperrors.NewConflict("final status cannot be the source of an active transition", map[string]any{"status": from.Name})
			}
		}
		for j := range tr.Conditions {
			if err := tr.Conditions[j].Validate(); err != nil {
				return apperrors.NewValidationError("invalid condition in definition", map[string]any{"transition": tr.Name, "reason": err.Error()})
			}
		}
		for j := range tr.Actions {
			if err := tr.Actions[j].Validate(); err != nil {
				return apperrors.NewValidationError("invalid action in definition", map[string]any{"transition": tr.Name, "reason": err.Error()})
			}
		}
	}
	return nil
}

// --- helpers ---

func (s *DefinitionService) clearDefaultLocked(tenantID string) {
	for _, other := range s.types {
		if other.TenantID == tenantID && other.IsDefault {
			other.IsDefault = false
		}
	}
}

func (s *DefinitionService) persistType(ctx context.Context, wt *domain.WorkflowType) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.SaveWorkflowType(ctx, wt); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

func (s *DefinitionService) persistStatus(ctx context.Context, st *domain.Status) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.SaveStatus(ctx, st); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

func (s *DefinitionService) persistTransition(ctx context.Context, tr *domain.Transition) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.SaveTransition(ctx, tr); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

func (s *DefinitionService) publishChange(ctx context.Context, workflowTypeID, entity, entityID, change string) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventDefinitionChanged,
		Timestamp: s.now(),
		Payload: events.DefinitionChangedPayload{
			WorkflowTypeID: workflowTypeID,
			Entity:         entity,
			EntityID:       entityID,
			Change:         change,
		},
	})
}

func copyTransition(tr *domain.Transition) domain.Transition {
	copied := *tr
	copied.AllowedRoles = append([]string(nil), tr.AllowedRoles...)
	copied.Conditions = append([]domain.Condition(nil), tr.Conditions...)
	copied.Actions = append([]domain.Action(nil), tr.Actions...)
	return copied
}
