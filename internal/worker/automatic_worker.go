package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/workflow-engine/internal/domain"
	"github.com/spec-kit/workflow-engine/internal/engine"
	"github.com/spec-kit/workflow-engine/internal/repository"
	"github.com/spec-kit/workflow-engine/internal/service"
	apperrors "github.com/spec-kit/workflow-engine/pkg/util"
)

// AutomaticWorker periodically scans for tickets matching automatic
// transitions and executes them as the system user. Guard failures are
// expected here: a ticket whose conditions do not hold yet is simply
// skipped until the next tick.
type AutomaticWorker struct {
	definitions *service.DefinitionService
	tickets     repository.TicketRepository
	executor    *engine.Executor
	interval    time.Duration
	batchSize   int
	logger      *zap.Logger
}

// NewAutomaticWorker builds the worker.
func NewAutomaticWorker(definitions *service.DefinitionService, tickets repository.TicketRepository, executor *engine.Executor, interval time.Duration, batchSize int, logger *zap.Logger) *AutomaticWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &AutomaticWorker{
		definitions: definitions,
		tickets:     tickets,
		executor:    executor,
		interval:    interval,
		batchSize:   batchSize,
		logger:      logger,
	}
}

// Run blocks until ctx is done, ticking at the configured interval.
func (w *AutomaticWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("automatic transition worker started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("automatic transition worker stopped")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *AutomaticWorker) tick(ctx context.Context) {
	for _, transition := range w.definitions.AutomaticTransitions() {
		if transition.FromStatusID == nil {
			// Wildcard automatic transitions would scan the whole ticket
			// table every tick; they are rejected at definition time.
			continue
		}
		tickets, err := w.tickets.ListByStatus(ctx, transition.WorkflowTypeID, *transition.FromStatusID, w.batchSize)
		if err != nil {
			w.logger.Error("automatic scan failed",
				zap.String("transition_id", transition.ID),
				zap.Error(err),
			)
			continue
		}
		for i := range tickets {
			w.execute(ctx, &tickets[i], transition.ID)
		}
	}
}

func (w *AutomaticWorker) execute(ctx context.Context, ticket *domain.Ticket, transitionID string) {
	entry, err := w.executor.Execute(ctx, ticket.ID, transitionID, domain.SystemUser(), engine.ExecuteOptions{})
	if err != nil {
		if apperrors.IsValidation(err) || apperrors.IsConflict(err) {
			return
		}
		w.logger.Error("automatic execution failed",
			zap.String("ticket_id", ticket.ID),
			zap.String("transition_id", transitionID),
			zap.Error(err),
		)
		return
	}
	w.logger.Info("automatic transition executed",
		zap.String("ticket_id", ticket.ID),
		zap.String("transition_id", transitionID),
		zap.String("history_id", entry.ID),
	)
}
