package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workflow-engine/internal/domain"
)

type fakeHistoryRepo struct {
	entries    []domain.HistoryEntry
	failBefore int // number of Insert calls that fail before one succeeds
	inserts    int
	listErr    error
}

func (f *fakeHistoryRepo) Insert(_ context.Context, entry *domain.HistoryEntry) error {
	f.inserts++
	if f.inserts <= f.failBefore {
		return errors.New("connection reset")
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeHistoryRepo) ListByTicket(_ context.Context, ticketID string, limit, offset int) ([]domain.HistoryEntry, int, error) {
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	matching := make([]domain.HistoryEntry, 0)
	for _, e := range f.entries {
		if e.TicketID == ticketID {
			matching = append(matching, e)
		}
	}
	total := len(matching)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matching[offset:end], total, nil
}

func newHistoryService(repo *fakeHistoryRepo, retries int) *HistoryService {
	svc := NewHistoryService(repo, nil, nil, retries)
	svc.backoff = time.Millisecond
	return svc
}

func sampleEntry(ticketID string) *domain.HistoryEntry {
	return &domain.HistoryEntry{
		ID:             "h-1",
		TicketID:       ticketID,
		TransitionID:   "tr-1",
		TransitionName: "start",
		UserID:         "u-agent",
		Success:        true,
		ConditionsResult: []domain.ConditionResult{
			{ConditionID: "c-1", Group: 1, Result: true},
		},
		ActionsResult: []domain.ActionResult{
			{ActionID: "a-1", Type: domain.ActionLogEvent, Success: true},
		},
		Metadata:  map[string]any{"source": "api"},
		CreatedAt: time.Now(),
	}
}

func TestHistoryRecordRetriesUntilSuccess(t *testing.T) {
	repo := &fakeHistoryRepo{failBefore: 2}
	svc := newHistoryService(repo, 3)

	err := svc.Record(context.Background(), sampleEntry("t-1"))
	require.NoError(t, err)
	assert.Equal(t, 3, repo.inserts)
	require.Len(t, repo.entries, 1)
}

func TestHistoryRecordGivesUpAfterRetries(t *testing.T) {
	repo := &fakeHistoryRepo{failBefore: 10}
	svc := newHistoryService(repo, 3)

	err := svc.Record(context.Background(), sampleEntry("t-1"))
	require.Error(t, err)
	assert.Equal(t, 3, repo.inserts)
	assert.Empty(t, repo.entries)
}

func TestHistoryRecordHonorsContextBetweenAttempts(t *testing.T) {
	repo := &fakeHistoryRepo{failBefore: 10}
	svc := newHistoryService(repo, 5)
	svc.backoff = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := svc.Record(ctx, sampleEntry("t-1"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, repo.inserts, "no further attempts once the context is done")
}

func TestHistoryListNormalizesPagination(t *testing.T) {
	repo := &fakeHistoryRepo{}
	svc := newHistoryService(repo, 1)
	for i := 0; i < 25; i++ {
		require.NoError(t, svc.Record(context.Background(), sampleEntry("t-1")))
	}
	require.NoError(t, svc.Record(context.Background(), sampleEntry("t-other")))

	entries, total, err := svc.List(context.Background(), "t-1", 0, 0, true)
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	assert.Len(t, entries, 20, "default page size")

	entries, total, err = svc.List(context.Background(), "t-1", 2, 20, true)
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	assert.Len(t, entries, 5)

	entries, _, err = svc.List(context.Background(), "t-1", 1, 500, true)
	require.NoError(t, err)
	assert.Len(t, entries, 20, "oversized limit falls back to the default")
}

func TestHistoryListStripsDetails(t *testing.T) {
	repo := &fakeHistoryRepo{}
	svc := newHistoryService(repo, 1)
	require.NoError(t, svc.Record(context.Background(), sampleEntry("t-1")))

	withDetails, _, err := svc.List(context.Background(), "t-1", 1, 10, true)
	require.NoError(t, err)
	require.Len(t, withDetails, 1)
	assert.NotEmpty(t, withDetails[0].ConditionsResult)
	assert.NotEmpty(t, withDetails[0].ActionsResult)
	assert.NotEmpty(t, withDetails[0].Metadata)

	summary, _, err := svc.List(context.Background(), "t-1", 1, 10, false)
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Nil(t, summary[0].ConditionsResult)
	assert.Nil(t, summary[0].ActionsResult)
	assert.Nil(t, summary[0].Metadata)
	assert.Equal(t, "start", summary[0].TransitionName, "summary keeps identifying fields")
}

func TestHistoryListPropagatesRepositoryError(t *testing.T) {
	repo := &fakeHistoryRepo{listErr: errors.New("query timeout")}
	svc := newHistoryService(repo, 1)

	_, _, err := svc.List(context.Background(), "t-1", 1, 10, true)
	require.Error(t, err)
}
