package models

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/corvana/control-plane/events-ingest/config/redis"
	"github.com/corvana/control-plane/events-ingest/utils"
)

// DefaultLedgerRetention is how long a processed event id is remembered.
// It must stay above the senders' retry horizon or retries of an already
// processed event would be applied twice.
const DefaultLedgerRetention = 1 * time.Hour

const ledgerSweepInterval = 1 * time.Minute

// EventLedger is the idempotency gate. MarkProcessed is an atomic
// check-and-set: the first caller for an event id wins the claim, every
// later caller is told the event was already handled. Forget releases a
// claim after a failed processing attempt so the sender's retry can go
// through.
type EventLedger interface {
	HasProcessed(ctx context.Context, eventID string) utils.Result[bool]
	MarkProcessed(ctx context.Context, eventID string, processedAt time.Time) utils.Result[bool]
	Forget(ctx context.Context, eventID string) utils.Result[bool]
}

// MemoryEventLedger keeps claims in a mutex-guarded map with a background
// sweeper. Only correct for single instance deployments.
type MemoryEventLedger struct {
	mutex     sync.Mutex
	entries   map[string]time.Time
	retention time.Duration
	done      chan struct{}
	closeOnce sync.Once
}

func NewMemoryEventLedger(retention time.Duration) *MemoryEventLedger {
	if retention <= 0 {
		retention = DefaultLedgerRetention
	}

	ledger := &MemoryEventLedger{
		entries:   make(map[string]time.Time),
		retention: retention,
		done:      make(chan struct{}),
	}

	go ledger.sweep()

	return ledger
}

func (l *MemoryEventLedger) HasProcessed(ctx context.Context, eventID string) utils.Result[bool] {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	_, found := l.entries[eventID]
	return utils.SuccessResult(found)
}

func (l *MemoryEventLedger) MarkProcessed(ctx context.Context, eventID string, processedAt time.Time) utils.Result[bool] {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if _, found := l.entries[eventID]; found {
		return utils.SuccessResult(false)
	}

	l.entries[eventID] = processedAt
	return utils.SuccessResult(true)
}

func (l *MemoryEventLedger) Forget(ctx context.Context, eventID string) utils.Result[bool] {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	_, found := l.entries[eventID]
	delete(l.entries, eventID)
	return utils.SuccessResult(found)
}

func (l *MemoryEventLedger) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
	})
	return nil
}

func (l *MemoryEventLedger) sweep() {
	ticker := time.NewTicker(ledgerSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.evictExpired(time.Now())
		}
	}
}

func (l *MemoryEventLedger) evictExpired(now time.Time) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	for eventID, processedAt := range l.entries {
		if now.Sub(processedAt) > l.retention {
			delete(l.entries, eventID)
		}
	}
}

// RedisEventLedger shares claims across instances. The claim is a single
// SET NX with the retention as expiry.
type RedisEventLedger struct {
	db        *redis.RedisDB
	retention time.Duration
}

func NewRedisEventLedger(db *redis.RedisDB, retention time.Duration) *RedisEventLedger {
	if retention <= 0 {
		retention = DefaultLedgerRetention
	}

	return &RedisEventLedger{
		db:        db,
		retention: retention,
	}
}

func (l *RedisEventLedger) ledgerKey(eventID string) string {
	return fmt.Sprintf("events_ingest:ledger:%s", eventID)
}

func (l *RedisEventLedger) HasProcessed(ctx context.Context, eventID string) utils.Result[bool] {
	count, err := l.db.Client.Exists(ctx, l.ledgerKey(eventID)).Result()
	if err != nil {
		return utils.FailedBoolResult(err)
	}

	return utils.SuccessResult(count > 0)
}

func (l *RedisEventLedger) MarkProcessed(ctx context.Context, eventID string, processedAt time.Time) utils.Result[bool] {
	claimed, err := l.db.Client.SetNX(ctx, l.ledgerKey(eventID), processedAt.UTC().Format(time.RFC3339), l.retention).Result()
	if err != nil {
		return utils.FailedBoolResult(err)
	}

	return utils.SuccessResult(claimed)
}

func (l *RedisEventLedger) Forget(ctx context.Context, eventID string) utils.Result[bool] {
	deleted, err := l.db.Client.Del(ctx, l.ledgerKey(eventID)).Result()
	if err != nil {
		return utils.FailedBoolResult(err)
	}

	return utils.SuccessResult(deleted > 0)
}

func (l *RedisEventLedger) Close() error {
	return l.db.Client.Close()
}

// PgEventLedger persists claims in the processed_events table. Retention is
// enforced by the periodic cleanup job owned by the control-plane, not here.
type PgEventLedger struct {
	store *ApiStore
}

func NewPgEventLedger(store *ApiStore) *PgEventLedger {
	return &PgEventLedger{
		store: store,
	}
}

func (l *PgEventLedger) HasProcessed(ctx context.Context, eventID string) utils.Result[bool] {
	return l.store.HasProcessedEvent(eventID)
}

func (l *PgEventLedger) MarkProcessed(ctx context.Context, eventID string, processedAt time.Time) utils.Result[bool] {
	return l.store.MarkEventProcessed(eventID, processedAt)
}

func (l *PgEventLedger) Forget(ctx context.Context, eventID string) utils.Result[bool] {
	return l.store.ForgetProcessedEvent(eventID)
}
