package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/corvana/control-plane/events-ingest/config/kafka"
	"github.com/corvana/control-plane/events-ingest/utils"
)

type ConsumerConfig[T any] struct {
	Topic        string
	ModelName    string
	IsDeleted    func(*T) bool
	GetKey       func(*T) string
	GetID        func(*T) string
	GetUpdatedAt func(*T) int64
	GetCached    func(*T) utils.Result[*T]
	SetCache     func(*T) utils.Result[bool]
	Delete       func(*T) utils.Result[bool]
}

// startGenericConsumer joins the topic with an instance-unique group so every
// running instance sees every change.
func startGenericConsumer[T any](ctx context.Context, cache *Cache, serverConfig kafka.ServerConfig, config ConsumerConfig[T]) error {
	groupID := fmt.Sprintf("events_ingest_cache_%s_%s", config.ModelName, uuid.New().String())

	cg, err := kafka.NewConsumerGroup(serverConfig, &kafka.ConsumerGroupConfig{
		Topic:         config.Topic,
		ConsumerGroup: groupID,
		ProcessRecords: func(ctx context.Context, records []*kgo.Record) []*kgo.Record {
			processed := make([]*kgo.Record, 0, len(records))
			for _, record := range records {
				if ctx.Err() != nil {
					break
				}

				processRecord(cache, record, config)
				processed = append(processed, record)
			}
			return processed
		},
	})
	if err != nil {
		return err
	}

	cache.logger.Info(
		"Starting consumer",
		slog.String("model", config.ModelName),
		slog.String("topic", config.Topic),
		slog.String("group_id", groupID),
	)

	cache.wg.Add(1)
	go func() {
		defer cache.wg.Done()

		if err := cg.Start(ctx); err != nil && ctx.Err() == nil {
			cache.logger.Error(
				"Consumer stopped with error",
				slog.String("model", config.ModelName),
				slog.String("error", err.Error()),
			)
			utils.CaptureError(err)
		}
	}()

	return nil
}

// processRecord applies one change message to the cache. Malformed messages
// are reported and skipped, they still count as processed so the partition
// does not wedge on a poison message.
func processRecord[T any](cache *Cache, record *kgo.Record, config ConsumerConfig[T]) {
	var model T
	if err := json.Unmarshal(record.Value, &model); err != nil {
		cache.logger.Error(
			"Failed to unmarshal",
			slog.String("model", config.ModelName),
			slog.String("error", err.Error()),
			slog.String("topic", record.Topic),
		)
		utils.CaptureError(err)
		return
	}

	key := config.GetKey(&model)

	if config.IsDeleted(&model) {
		existingRes := config.GetCached(&model)
		if existingRes.Failure() {
			return
		}

		existing := existingRes.Value()
		if config.GetID(existing) != config.GetID(&model) {
			cache.logger.Debug(
				"ID mismatch - skipping delete",
				slog.String("model", config.ModelName),
				slog.String("key", key),
			)
			return
		}

		if res := config.Delete(&model); res.Failure() {
			cache.logger.Error(
				"Failed to delete from cache",
				slog.String("model", config.ModelName),
				slog.String("key", key),
				slog.String("error", res.ErrorMsg()),
			)
			utils.CaptureErrorResult(res)
		} else {
			cache.logger.Debug(
				"Cache entry deleted",
				slog.String("model", config.ModelName),
				slog.String("key", key),
			)
		}

		return
	}

	existingRes := config.GetCached(&model)
	if existingRes.Success() {
		existing := existingRes.Value()
		if config.GetUpdatedAt(existing) >= config.GetUpdatedAt(&model) {
			cache.logger.Debug(
				"Skipping update - cached version newer or equal",
				slog.String("model", config.ModelName),
				slog.String("key", key),
				slog.Int64("cached_updated_at", config.GetUpdatedAt(existing)),
				slog.Int64("message_updated_at", config.GetUpdatedAt(&model)),
			)
			return
		}
	}

	res := config.SetCache(&model)
	if res.Failure() {
		cache.logger.Error(
			"Failed to update cache from stream",
			slog.String("model", config.ModelName),
			slog.String("key", key),
			slog.String("error", res.ErrorMsg()),
		)
		utils.CaptureErrorResult(res)
	} else {
		cache.logger.Debug(
			"Cache updated from stream",
			slog.String("model", config.ModelName),
			slog.String("key", key),
			slog.Int64("updated_at", config.GetUpdatedAt(&model)),
		)
	}
}
