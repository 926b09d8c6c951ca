package guards

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
)

// ApprovalEntry is one APPROVAL_REQUIRED proposal sitting in the queue
// (§4.4): the gate's Decision that put it here, plus the deadline it
// expires at.
type ApprovalEntry struct {
	Proposal  domain.Proposal
	Decision  domain.Decision
	QueuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the entry has passed its TTL as of now.
func (e ApprovalEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// ApprovalQueue is the control surface's view of pending human decisions.
// Implementations must honour the TTL contract: an entry neither Approved
// nor Rejected before ExpiresAt is gone from List/Get as of that instant
// (§4.4: "expiry auto-rejects with outcome EXPIRED").
type ApprovalQueue interface {
	Enqueue(ctx context.Context, entry ApprovalEntry) error
	Get(ctx context.Context, proposalID string) (ApprovalEntry, bool, error)
	List(ctx context.Context) ([]ApprovalEntry, error)
	Remove(ctx context.Context, proposalID string) error
}

// RedisApprovalQueue stores each entry as its own TTL'd key so expiry is
// enforced by Redis itself, not by an application-side sweep — grounded on
// the teacher's internal/infrastructure/data.RedisCacheManager (JSON-
// serialized value, context-scoped calls, per-entry TTL via the client's
// Set(..., ttl)) generalized from "cached quote" to "pending approval,"
// plus its ZAdd/Expire pattern for the index set (here: a parallel sorted
// set of IDs by deadline so List() can page without SCANning the keyspace).
type RedisApprovalQueue struct {
	client    *redis.Client
	keyPrefix string
	indexKey  string
}

// NewRedisApprovalQueue builds a queue against an already-connected client.
// namespace prefixes every key (e.g. "optimizercore:approvals:") so the
// queue can share a Redis instance with other consumers.
func NewRedisApprovalQueue(client *redis.Client, namespace string) *RedisApprovalQueue {
	if namespace == "" {
		namespace = "optimizercore:approvals:"
	}
	return &RedisApprovalQueue{client: client, keyPrefix: namespace + "entry:", indexKey: namespace + "index"}
}

func (q *RedisApprovalQueue) key(proposalID string) string {
	return q.keyPrefix + proposalID
}

func (q *RedisApprovalQueue) Enqueue(ctx context.Context, entry ApprovalEntry) error {
	if entry.Proposal.ID == "" {
		return fmt.Errorf("guards: approval entry missing proposal id")
	}
	ttl := entry.ExpiresAt.Sub(entry.QueuedAt)
	if ttl <= 0 {
		return fmt.Errorf("guards: approval entry %s has non-positive TTL", entry.Proposal.ID)
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("guards: marshal approval entry: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, q.key(entry.Proposal.ID), payload, ttl)
	pipe.ZAdd(ctx, q.indexKey, redis.Z{Score: float64(entry.ExpiresAt.Unix()), Member: entry.Proposal.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("guards: enqueue approval %s: %w", entry.Proposal.ID, err)
	}
	return nil
}

func (q *RedisApprovalQueue) Get(ctx context.Context, proposalID string) (ApprovalEntry, bool, error) {
	raw, err := q.client.Get(ctx, q.key(proposalID)).Result()
	if err == redis.Nil {
		q.client.ZRem(ctx, q.indexKey, proposalID) // key expired natively; drop the stale index entry
		return ApprovalEntry{}, false, nil
	}
	if err != nil {
		return ApprovalEntry{}, false, fmt.Errorf("guards: get approval %s: %w", proposalID, err)
	}
	var entry ApprovalEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return ApprovalEntry{}, false, fmt.Errorf("guards: decode approval %s: %w", proposalID, err)
	}
	return entry, true, nil
}

// List returns every entry still live, oldest-deadline first, pruning any
// index member whose underlying key has since expired.
func (q *RedisApprovalQueue) List(ctx context.Context) ([]ApprovalEntry, error) {
	ids, err := q.client.ZRangeByScore(ctx, q.indexKey, &redis.ZRangeBy{Min: "-inf", Max: "+inf"}).Result()
	if err != nil {
		return nil, fmt.Errorf("guards: list approvals: %w", err)
	}

	entries := make([]ApprovalEntry, 0, len(ids))
	for _, id := range ids {
		entry, ok, err := q.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (q *RedisApprovalQueue) Remove(ctx context.Context, proposalID string) error {
	pipe := q.client.TxPipeline()
	pipe.Del(ctx, q.key(proposalID))
	pipe.ZRem(ctx, q.indexKey, proposalID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("guards: remove approval %s: %w", proposalID, err)
	}
	return nil
}

var _ ApprovalQueue = (*RedisApprovalQueue)(nil)

// LocalApprovalQueue is a process-local ApprovalQueue for single-instance
// deployments (§4.1 mock mode, and the sqlite ledger backend, both of
// which run without a Redis dependency). Expiry is checked lazily on
// Get/List rather than by a background sweep, same posture as the
// RedisApprovalQueue relying on Redis's own key expiry.
type LocalApprovalQueue struct {
	mu      sync.Mutex
	entries map[string]ApprovalEntry
	clock   func() time.Time
}

// NewLocalApprovalQueue returns an empty, ready-to-use LocalApprovalQueue.
func NewLocalApprovalQueue() *LocalApprovalQueue {
	return &LocalApprovalQueue{entries: make(map[string]ApprovalEntry), clock: time.Now}
}

func (q *LocalApprovalQueue) Enqueue(ctx context.Context, entry ApprovalEntry) error {
	if entry.Proposal.ID == "" {
		return fmt.Errorf("guards: approval entry missing proposal id")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries[entry.Proposal.ID] = entry
	return nil
}

func (q *LocalApprovalQueue) Get(ctx context.Context, proposalID string) (ApprovalEntry, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry, ok := q.entries[proposalID]
	if !ok {
		return ApprovalEntry{}, false, nil
	}
	if entry.Expired(q.clock()) {
		delete(q.entries, proposalID)
		return ApprovalEntry{}, false, nil
	}
	return entry, true, nil
}

func (q *LocalApprovalQueue) List(ctx context.Context) ([]ApprovalEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.clock()
	out := make([]ApprovalEntry, 0, len(q.entries))
	for id, entry := range q.entries {
		if entry.Expired(now) {
			delete(q.entries, id)
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

func (q *LocalApprovalQueue) Remove(ctx context.Context, proposalID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, proposalID)
	return nil
}

var _ ApprovalQueue = (*LocalApprovalQueue)(nil)
