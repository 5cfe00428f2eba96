package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/corvana/control-plane/events-ingest/models"
	"github.com/corvana/control-plane/events-ingest/tests"
)

var fetchSigningKeyQuery = regexp.QuoteMeta(`
	SELECT * FROM "signing_keys"
	WHERE kid = $1
	ORDER BY "signing_keys"."id"
	LIMIT $2`,
)

var preloadProductQuery = regexp.QuoteMeta(`
	SELECT * FROM "products"
	WHERE "products"."id" = $1`,
)

var signingKeysSnapshotQuery = regexp.QuoteMeta(`
	SELECT signing_keys.id,signing_keys.kid,signing_keys.secret,signing_keys.product_id,signing_keys.active,signing_keys.revoked_at,signing_keys.expires_at,products.name as product_name,products.active as product_active
	FROM "signing_keys" JOIN products ON products.id = signing_keys.product_id
	WHERE signing_keys.active = $1`,
)

func testSigningKey() *models.SigningKey {
	return &models.SigningKey{
		ID:        "key123",
		Kid:       "kid_acme_1",
		Secret:    "s3cr3t",
		ProductID: "prod123",
		Active:    true,
		UpdatedAt: time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
		Product: models.Product{
			ID:     "prod123",
			Name:   "Acme Health",
			Active: true,
		},
	}
}

func createSigningKeyRecord(t *testing.T, key *models.SigningKey) *kgo.Record {
	data, err := json.Marshal(key)
	require.NoError(t, err)

	return &kgo.Record{
		Value: data,
		Topic: "test_topic",
	}
}

func TestSetGetSigningKey(t *testing.T) {
	cache := setupTestCache(t)

	result := cache.SetSigningKey(testSigningKey())
	require.True(t, result.Success())

	getResult := cache.GetSigningKey("kid_acme_1")
	require.True(t, getResult.Success())

	key := getResult.Value()
	assert.Equal(t, "key123", key.ID)
	assert.Equal(t, "whsec_s3cr3t", key.FullSecret())
	assert.False(t, key.Revoked())
	assert.Equal(t, "Acme Health", key.Product.Name)
	assert.True(t, key.Product.Active)
}

func TestGetSigningKey_NotCached(t *testing.T) {
	cache := setupTestCache(t)

	result := cache.GetSigningKey("kid_unknown")

	assert.True(t, result.Failure())
	assert.False(t, result.IsRetryable())
	assert.False(t, result.IsCapturable())
}

func TestDeleteSigningKey(t *testing.T) {
	cache := setupTestCache(t)

	key := testSigningKey()
	require.True(t, cache.SetSigningKey(key).Success())

	result := cache.DeleteSigningKey(key)
	require.True(t, result.Success())

	assert.True(t, cache.GetSigningKey("kid_acme_1").Failure())
}

func TestSigningKeyEntriesExpire(t *testing.T) {
	cache, err := NewCache(CacheConfig{
		Context:       context.Background(),
		Logger:        slog.Default(),
		SigningKeyTTL: time.Nanosecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	require.True(t, cache.SetSigningKey(testSigningKey()).Success())

	time.Sleep(10 * time.Millisecond)

	assert.True(t, cache.GetSigningKey("kid_acme_1").Failure())
}

func TestLoadSigningKeysSnapshot(t *testing.T) {
	cache := setupTestCache(t)

	db, mock, cleanup := tests.SetupMockStore(t)
	defer cleanup()

	columns := []string{"id", "kid", "secret", "product_id", "active", "revoked_at", "expires_at", "product_name", "product_active"}
	rows := sqlmock.NewRows(columns).
		AddRow("key123", "kid_acme_1", "s3cr3t", "prod123", true, nil, nil, "Acme Health", true).
		AddRow("key456", "kid_beta_1", "0th3r", "prod456", true, nil, nil, "Beta Labs", true)

	mock.ExpectQuery(signingKeysSnapshotQuery).
		WithArgs(true).
		WillReturnRows(rows)

	result := cache.LoadSigningKeysSnapshot(db.Connection)

	require.True(t, result.Success())
	assert.Equal(t, 2, result.Value())
	assert.NoError(t, mock.ExpectationsWereMet())

	getResult := cache.GetSigningKey("kid_beta_1")
	require.True(t, getResult.Success())
	assert.Equal(t, "key456", getResult.Value().ID)
	assert.Equal(t, "Beta Labs", getResult.Value().Product.Name)
}

func TestKeyCache_ReadThrough(t *testing.T) {
	cache := setupTestCache(t)

	db, mock, cleanup := tests.SetupMockStore(t)
	defer cleanup()

	store := models.NewApiStore(db)
	keyCache := NewKeyCache(cache, store)

	now := time.Now()
	keyColumns := []string{"id", "kid", "secret", "product_id", "active", "revoked_at", "expires_at", "last_used_at", "created_at", "updated_at"}
	keyRows := sqlmock.NewRows(keyColumns).
		AddRow("key123", "kid_acme_1", "s3cr3t", "prod123", true, nil, nil, nil, now, now)
	productRows := sqlmock.NewRows([]string{"id", "name", "active", "created_at", "updated_at"}).
		AddRow("prod123", "Acme Health", true, now, now)

	mock.ExpectQuery(fetchSigningKeyQuery).
		WithArgs("kid_acme_1", 1).
		WillReturnRows(keyRows)
	mock.ExpectQuery(preloadProductQuery).
		WithArgs("prod123").
		WillReturnRows(productRows)

	first := keyCache.FetchSigningKey("kid_acme_1")
	require.True(t, first.Success())
	assert.Equal(t, "whsec_s3cr3t", first.Value().FullSecret())
	assert.Equal(t, "Acme Health", first.Value().Product.Name)

	// only one store query is expected, the second lookup must hit the cache
	second := keyCache.FetchSigningKey("kid_acme_1")
	require.True(t, second.Success())
	assert.Equal(t, "kid_acme_1", second.Value().Kid)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestKeyCache_UnknownKid(t *testing.T) {
	cache := setupTestCache(t)

	db, mock, cleanup := tests.SetupMockStore(t)
	defer cleanup()

	store := models.NewApiStore(db)
	keyCache := NewKeyCache(cache, store)

	mock.ExpectQuery(fetchSigningKeyQuery).
		WithArgs("kid_missing", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	result := keyCache.FetchSigningKey("kid_missing")

	assert.True(t, result.Failure())
	assert.False(t, result.IsRetryable())
	assert.False(t, result.IsCapturable())
}

func TestProcessSigningKeyRecord_Revoked(t *testing.T) {
	cache := setupTestCache(t)
	config := cache.signingKeysConsumerConfig("test_topic")

	require.True(t, cache.SetSigningKey(testSigningKey()).Success())

	revoked := testSigningKey()
	revoked.Active = false

	processRecord(cache, createSigningKeyRecord(t, revoked), config)

	assert.True(t, cache.GetSigningKey("kid_acme_1").Failure())
}

func TestProcessSigningKeyRecord_RevokedRowIsNotTheCachedOne(t *testing.T) {
	cache := setupTestCache(t)
	config := cache.signingKeysConsumerConfig("test_topic")

	// the kid now points at a newer row, revoking the old one must not
	// evict it
	current := testSigningKey()
	current.ID = "key789"
	require.True(t, cache.SetSigningKey(current).Success())

	revoked := testSigningKey()
	revoked.Active = false

	processRecord(cache, createSigningKeyRecord(t, revoked), config)

	getResult := cache.GetSigningKey("kid_acme_1")
	require.True(t, getResult.Success())
	assert.Equal(t, "key789", getResult.Value().ID)
}

func TestProcessSigningKeyRecord_Update(t *testing.T) {
	cache := setupTestCache(t)
	config := cache.signingKeysConsumerConfig("test_topic")

	require.True(t, cache.SetSigningKey(testSigningKey()).Success())

	updated := testSigningKey()
	updated.Secret = "r0t4t3d"
	updated.UpdatedAt = updated.UpdatedAt.Add(time.Hour)

	processRecord(cache, createSigningKeyRecord(t, updated), config)

	getResult := cache.GetSigningKey("kid_acme_1")
	require.True(t, getResult.Success())
	assert.Equal(t, "whsec_r0t4t3d", getResult.Value().FullSecret())
}

func TestProcessSigningKeyRecord_StaleUpdate(t *testing.T) {
	cache := setupTestCache(t)
	config := cache.signingKeysConsumerConfig("test_topic")

	require.True(t, cache.SetSigningKey(testSigningKey()).Success())

	stale := testSigningKey()
	stale.Secret = "0ld"
	stale.UpdatedAt = stale.UpdatedAt.Add(-time.Hour)

	processRecord(cache, createSigningKeyRecord(t, stale), config)

	getResult := cache.GetSigningKey("kid_acme_1")
	require.True(t, getResult.Success())
	assert.Equal(t, "whsec_s3cr3t", getResult.Value().FullSecret())
}
