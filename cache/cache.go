package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"gorm.io/gorm"

	"github.com/corvana/control-plane/events-ingest/config/kafka"
	"github.com/corvana/control-plane/events-ingest/utils"
)

// defaultSigningKeyTTL bounds how long a revocation can stay invisible when
// the key events consumer is lagging or not running.
const defaultSigningKeyTTL = 60 * time.Second

// Cache wraps BadgerDB to provide an in-memory key-value store with JSON serialization.
// It manages the lifecycle of cached data and coordinates snapshot loading and
// key event consumption.
type Cache struct {
	ctx           context.Context
	db            *badger.DB
	logger        *slog.Logger
	wg            sync.WaitGroup
	signingKeyTTL time.Duration
}

// CacheConfig holds the configuration needed to initialize a new Cache instance.
// A zero SigningKeyTTL falls back to the default, a negative one disables
// expiry so entries only leave the cache through key events.
type CacheConfig struct {
	Context       context.Context
	Logger        *slog.Logger
	SigningKeyTTL time.Duration
}

// NewCache creates and initializes a new in-memory cache instance.
// It configures the database with default options
func NewCache(config CacheConfig) (*Cache, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	logger := config.Logger.With("pkg", "cache")

	ttl := config.SigningKeyTTL
	if ttl == 0 {
		ttl = defaultSigningKeyTTL
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	return &Cache{
		db:            db,
		logger:        logger,
		ctx:           config.Context,
		signingKeyTTL: ttl,
	}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) Wait() {
	c.wg.Wait()
}

// LoadInitialSnapshot warms the cache with the active signing keys. A failed
// load is not fatal, lookups fall back to the store until entries are cached.
func (c *Cache) LoadInitialSnapshot(db *gorm.DB) {
	result := c.LoadSigningKeysSnapshot(db)
	if result.Failure() {
		c.logger.Error("Failed to load signing keys snapshot", slog.String("error", result.ErrorMsg()))
		utils.CaptureErrorResult(result)
	}
}

// ConsumeChanges starts the key events consumer and blocks until it stops.
func (c *Cache) ConsumeChanges(serverConfig kafka.ServerConfig, keyEventsTopic string) {
	if err := c.StartSigningKeysConsumer(c.ctx, serverConfig, keyEventsTopic); err != nil {
		c.logger.Error("failed to start signing keys consumer", slog.String("error", err.Error()))
	}

	c.wg.Wait()
}

func setJSON[T any](cache *Cache, key string, value *T) utils.Result[bool] {
	data, err := json.Marshal(value)
	if err != nil {
		return utils.FailedBoolResult(err)
	}

	err = cache.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return utils.FailedBoolResult(err)
	}

	return utils.SuccessResult(true)
}

// setJSONWithTTL stores a value that expires on its own. Badger keeps serving
// the entry until the TTL elapses, then reads return ErrKeyNotFound.
func setJSONWithTTL[T any](cache *Cache, key string, value *T, ttl time.Duration) utils.Result[bool] {
	if ttl <= 0 {
		return setJSON(cache, key, value)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return utils.FailedBoolResult(err)
	}

	err = cache.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), data).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return utils.FailedBoolResult(err)
	}

	return utils.SuccessResult(true)
}

func delete(cache *Cache, key string) utils.Result[bool] {
	err := cache.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return utils.FailedBoolResult(err)
	}

	return utils.SuccessResult(true)
}

func getJSON[T any](cache *Cache, key string) utils.Result[*T] {
	var out T
	err := cache.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})

	if err == badger.ErrKeyNotFound {
		return utils.FailedResult[*T](err).NonCapturable().NonRetryable()
	}
	if err != nil {
		return utils.FailedResult[*T](err)
	}

	return utils.SuccessResult(&out)
}

func LoadSnapshot[T any](
	cache *Cache,
	name string,
	fetchFn func() ([]T, error),
	keyFn func(*T) string,
	setFn func(*T) utils.Result[bool],
) utils.Result[int] {
	cache.logger.Info("Starting snapshot load", slog.String("model", name))
	start := time.Now()

	list, err := fetchFn()
	if err != nil {
		return utils.FailedResult[int](err)
	}

	count := 0
	for i := range list {
		item := &list[i]
		key := keyFn(item)
		if res := setFn(item); res.Failure() {
			cache.logger.Error(
				"Failed to cache item",
				slog.String("model", name),
				slog.String("key", key),
				slog.String("error", res.ErrorMsg()),
			)
			utils.CaptureErrorResult(res)
			continue
		}
		count++
	}

	duration := time.Since(start)
	cache.logger.Info(
		"Completed snapshot load",
		slog.String("model", name),
		slog.Int("count", count),
		slog.Int64("duration_ms", duration.Milliseconds()),
	)

	return utils.SuccessResult(count)
}
