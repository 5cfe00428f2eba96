package cache

import (
	"context"

	"github.com/corvana/control-plane/events-ingest/config/kafka"
	"github.com/corvana/control-plane/events-ingest/models"
	"github.com/corvana/control-plane/events-ingest/utils"
)

// Key lifecycle messages carry the full signing key row enriched with its
// product, published by the admin surface on every create, rotate or revoke.
// Revocations drop the cache entry so the next lookup re-reads the store.
func (c *Cache) signingKeysConsumerConfig(topic string) ConsumerConfig[models.SigningKey] {
	return ConsumerConfig[models.SigningKey]{
		Topic:     topic,
		ModelName: "signing_key",
		IsDeleted: func(key *models.SigningKey) bool {
			return key.Revoked()
		},
		GetKey: func(key *models.SigningKey) string {
			return c.buildSigningKeyKey(key.Kid)
		},
		GetID: func(key *models.SigningKey) string {
			return key.ID
		},
		GetUpdatedAt: func(key *models.SigningKey) int64 {
			return key.UpdatedAt.UnixMilli()
		},
		GetCached: func(key *models.SigningKey) utils.Result[*models.SigningKey] {
			return c.GetSigningKey(key.Kid)
		},
		SetCache: func(key *models.SigningKey) utils.Result[bool] {
			return c.SetSigningKey(key)
		},
		Delete: func(key *models.SigningKey) utils.Result[bool] {
			return c.DeleteSigningKey(key)
		},
	}
}

func (c *Cache) StartSigningKeysConsumer(ctx context.Context, serverConfig kafka.ServerConfig, topic string) error {
	return startGenericConsumer(ctx, c, serverConfig, c.signingKeysConsumerConfig(topic))
}
