package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/workflow-engine/internal/domain"
	"github.com/spec-kit/workflow-engine/internal/observability"
	"github.com/spec-kit/workflow-engine/internal/repository"
)

// HistoryService is the history recorder: append-only persistence of
// execution records with retry, and paginated newest-first retrieval.
type HistoryService struct {
	repo    repository.HistoryRepository
	logger  *zap.Logger
	metrics *observability.Metrics
	retries int
	backoff time.Duration
}

// NewHistoryService constructs the recorder. retries bounds how often a
// failed write is reattempted before the loss is surfaced.
func NewHistoryService(repo repository.HistoryRepository, logger *zap.Logger, metrics *observability.Metrics, retries int) *HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retries <= 0 {
		retries = 3
	}
	return &HistoryService{
		repo:    repo,
		logger:  logger,
		metrics: metrics,
		retries: retries,
		backoff: 100 * time.Millisecond,
	}
}

// Record persists the entry, retrying with backoff. An entry that cannot be
// persisted after all retries is returned as an error so the caller can
// raise the alarm: the transition has already committed and must not vanish
// silently.
func (s *HistoryService) Record(ctx context.Context, entry *domain.HistoryEntry) error {
	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.backoff << (attempt - 1)):
			}
		}
		if err := s.repo.Insert(ctx, entry); err != nil {
			lastErr = err
			s.logger.Warn("history write failed",
				zap.String("ticket_id", entry.TicketID),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}
		return nil
	}
	s.metrics.RecordHistoryWriteFailure()
	return lastErr
}

// List returns a page of history entries for the ticket, newest first. With
// includeDetails=false the per-entry trace payloads are stripped to keep
// list responses small.
func (s *HistoryService) List(ctx context.Context, ticketID string, page, limit int, includeDetails bool) ([]domain.HistoryEntry, int, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	entries, total, err := s.repo.ListByTicket(ctx, ticketID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	if !includeDetails {
		for i := range entries {
			entries[i] = entries[i].WithoutDetails()
		}
	}
	return entries, total, nil
}
