package cache

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/corvana/control-plane/events-ingest/models"
	"github.com/corvana/control-plane/events-ingest/utils"
)

const (
	signingKeyPrefix = "key"
)

func (c *Cache) buildSigningKeyKey(kid string) string {
	return fmt.Sprintf("%s:%s", signingKeyPrefix, kid)
}

// SetSigningKey caches a key under its kid. Entries carry the configured TTL
// so a revocation missed by the key events consumer still surfaces once the
// entry expires.
func (c *Cache) SetSigningKey(key *models.SigningKey) utils.Result[bool] {
	return setJSONWithTTL(c, c.buildSigningKeyKey(key.Kid), key, c.signingKeyTTL)
}

func (c *Cache) GetSigningKey(kid string) utils.Result[*models.SigningKey] {
	return getJSON[models.SigningKey](c, c.buildSigningKeyKey(kid))
}

func (c *Cache) DeleteSigningKey(key *models.SigningKey) utils.Result[bool] {
	return delete(c, c.buildSigningKeyKey(key.Kid))
}

func (c *Cache) LoadSigningKeysSnapshot(db *gorm.DB) utils.Result[int] {
	return LoadSnapshot(
		c,
		"signing_keys",
		func() ([]models.SigningKeySnapshot, error) {
			res := models.GetAllSigningKeys(db)
			if res.Failure() {
				return nil, res.Error()
			}
			return res.Value(), nil
		},
		func(snapshot *models.SigningKeySnapshot) string {
			return c.buildSigningKeyKey(snapshot.Kid)
		},
		func(snapshot *models.SigningKeySnapshot) utils.Result[bool] {
			return c.SetSigningKey(snapshot.ToSigningKey())
		},
	)
}

// KeyCache fronts the store with the in-memory cache for signature
// verification lookups. A miss falls through to the store and the fetched
// key is cached for the next requests.
type KeyCache struct {
	cache *Cache
	store *models.ApiStore
}

func NewKeyCache(cache *Cache, store *models.ApiStore) *KeyCache {
	return &KeyCache{
		cache: cache,
		store: store,
	}
}

func (kc *KeyCache) FetchSigningKey(kid string) utils.Result[*models.SigningKey] {
	cached := kc.cache.GetSigningKey(kid)
	if cached.Success() {
		return cached
	}

	fetched := kc.store.FetchSigningKey(kid)
	if fetched.Failure() {
		return fetched
	}

	key := fetched.Value()
	if res := kc.cache.SetSigningKey(key); res.Failure() {
		kc.cache.logger.Error(
			"Failed to cache signing key",
			slog.String("kid", kid),
			slog.String("error", res.ErrorMsg()),
		)
		utils.CaptureErrorResult(res)
	}

	return utils.SuccessResult(key)
}
