package guards

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	redismock "github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
)

func sampleEntry(id string, queuedAt time.Time, ttl time.Duration) ApprovalEntry {
	return ApprovalEntry{
		Proposal:  domain.Proposal{ID: id, Campaign: domain.CampaignRef{Platform: domain.PlatformGoogleAds, ExternalID: "g1"}, Kind: domain.ProposalIncreaseBudget},
		Decision:  domain.Decision{Outcome: domain.DecisionApprovalRequired, Justification: domain.JustMajorChange},
		QueuedAt:  queuedAt,
		ExpiresAt: queuedAt.Add(ttl),
	}
}

func TestRedisApprovalQueue_EnqueueSetsEntryAndIndex(t *testing.T) {
	client, mock := redismock.NewClientMock()
	q := NewRedisApprovalQueue(client, "test:")
	entry := sampleEntry("p-1", time.Now(), 4*time.Hour)

	payload, err := json.Marshal(entry)
	require.NoError(t, err)

	mock.MatchExpectationsInOrder(false)
	mock.ExpectTxPipeline()
	mock.ExpectSet("test:entry:p-1", payload, 4*time.Hour).SetVal("OK")
	mock.ExpectZAdd("test:index", redis.Z{Score: float64(entry.ExpiresAt.Unix()), Member: "p-1"}).SetVal(1)
	mock.ExpectTxPipelineExec()

	require.NoError(t, q.Enqueue(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisApprovalQueue_EnqueueRejectsNonPositiveTTL(t *testing.T) {
	client, _ := redismock.NewClientMock()
	q := NewRedisApprovalQueue(client, "test:")
	entry := sampleEntry("p-2", time.Now(), 0)

	err := q.Enqueue(context.Background(), entry)
	assert.Error(t, err)
}

func TestRedisApprovalQueue_GetMissingKeyPrunesIndex(t *testing.T) {
	client, mock := redismock.NewClientMock()
	q := NewRedisApprovalQueue(client, "test:")

	mock.ExpectGet("test:entry:p-3").RedisNil()
	mock.ExpectZRem("test:index", "p-3").SetVal(1)

	_, found, err := q.Get(context.Background(), "p-3")
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocalApprovalQueue_EnqueueGetRoundTrips(t *testing.T) {
	q := NewLocalApprovalQueue()
	entry := sampleEntry("p-10", time.Now(), time.Hour)

	require.NoError(t, q.Enqueue(context.Background(), entry))

	got, found, err := q.Get(context.Background(), "p-10")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, entry.Proposal.ID, got.Proposal.ID)
}

func TestLocalApprovalQueue_EnqueueRejectsMissingID(t *testing.T) {
	q := NewLocalApprovalQueue()
	entry := sampleEntry("", time.Now(), time.Hour)
	assert.Error(t, q.Enqueue(context.Background(), entry))
}

func TestLocalApprovalQueue_GetPrunesExpiredEntry(t *testing.T) {
	q := NewLocalApprovalQueue()
	now := time.Now()
	q.clock = func() time.Time { return now }
	entry := sampleEntry("p-11", now.Add(-2*time.Hour), time.Hour) // already expired

	require.NoError(t, q.Enqueue(context.Background(), entry))

	_, found, err := q.Get(context.Background(), "p-11")
	require.NoError(t, err)
	assert.False(t, found)

	q.mu.Lock()
	_, stillPresent := q.entries["p-11"]
	q.mu.Unlock()
	assert.False(t, stillPresent)
}

func TestLocalApprovalQueue_ListSortsByExpiryAndPrunesExpired(t *testing.T) {
	q := NewLocalApprovalQueue()
	now := time.Now()
	q.clock = func() time.Time { return now }

	later := sampleEntry("p-later", now, 2*time.Hour)
	sooner := sampleEntry("p-sooner", now, time.Hour)
	expired := sampleEntry("p-expired", now.Add(-2*time.Hour), time.Hour)

	require.NoError(t, q.Enqueue(context.Background(), later))
	require.NoError(t, q.Enqueue(context.Background(), sooner))
	require.NoError(t, q.Enqueue(context.Background(), expired))

	entries, err := q.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "p-sooner", entries[0].Proposal.ID)
	assert.Equal(t, "p-later", entries[1].Proposal.ID)
}

func TestLocalApprovalQueue_Remove(t *testing.T) {
	q := NewLocalApprovalQueue()
	entry := sampleEntry("p-12", time.Now(), time.Hour)
	require.NoError(t, q.Enqueue(context.Background(), entry))

	require.NoError(t, q.Remove(context.Background(), "p-12"))

	_, found, err := q.Get(context.Background(), "p-12")
	require.NoError(t, err)
	assert.False(t, found)
}
