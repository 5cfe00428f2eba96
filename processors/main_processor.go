package processors

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/corvana/control-plane/events-ingest/cache"
	"github.com/corvana/control-plane/events-ingest/config/database"
	"github.com/corvana/control-plane/events-ingest/config/kafka"
	"github.com/corvana/control-plane/events-ingest/config/redis"
	"github.com/corvana/control-plane/events-ingest/models"
	"github.com/corvana/control-plane/events-ingest/processors/webhook_processor"
	"github.com/corvana/control-plane/events-ingest/server"
	"github.com/corvana/control-plane/events-ingest/utils"
)

var (
	processor   *webhook_processor.WebhookProcessor
	apiStore    *models.ApiStore
	kafkaConfig kafka.ServerConfig
	keyCache    *cache.Cache
)

const (
	envCorvanaEventLedger                        = "CORVANA_EVENT_LEDGER"
	envCorvanaEventsIngestDatabaseMaxConnections = "CORVANA_EVENTS_INGEST_DATABASE_MAX_CONNECTIONS"
	envCorvanaKafkaAuditTopic                    = "CORVANA_KAFKA_AUDIT_TOPIC"
	envCorvanaKafkaBootstrapServers              = "CORVANA_KAFKA_BOOTSTRAP_SERVERS"
	envCorvanaKafkaKeyEventsTopic                = "CORVANA_KAFKA_KEY_EVENTS_TOPIC"
	envCorvanaKafkaPassword                      = "CORVANA_KAFKA_PASSWORD"
	envCorvanaKafkaScramAlgorithm                = "CORVANA_KAFKA_SCRAM_ALGORITHM"
	envCorvanaKafkaTLS                           = "CORVANA_KAFKA_TLS"
	envCorvanaKafkaUsername                      = "CORVANA_KAFKA_USERNAME"
	envCorvanaLedgerRetentionMinutes             = "CORVANA_LEDGER_RETENTION_MINUTES"
	envCorvanaRedisLedgerDB                      = "CORVANA_REDIS_LEDGER_DB"
	envCorvanaRedisLedgerPassword                = "CORVANA_REDIS_LEDGER_PASSWORD"
	envCorvanaRedisLedgerURL                     = "CORVANA_REDIS_LEDGER_URL"
	envCorvanaRedisLedgerUseTLS                  = "CORVANA_REDIS_LEDGER_USE_TLS"
	envCorvanaServerAddress                      = "CORVANA_SERVER_ADDRESS"
	envCorvanaSigningKeyCache                    = "CORVANA_SIGNING_KEY_CACHE"
	envCorvanaSigningKeyCacheTTLSeconds          = "CORVANA_SIGNING_KEY_CACHE_TTL_SECONDS"
	envStripePriceIDEnterprise                   = "STRIPE_PRICE_ID_ENTERPRISE"
	envStripePriceIDFree                         = "STRIPE_PRICE_ID_FREE"
	envStripePriceIDPro                          = "STRIPE_PRICE_ID_PRO"
)

type Config struct {
	Logger     *slog.Logger
	KafkaHooks []kgo.Hook
}

// initAuditProducer builds the optional audit stream producer. Audit records
// always land in Postgres; the Kafka copy only exists when both the brokers
// and the audit topic are configured.
func initAuditProducer(ctx context.Context) (kafka.MessageProducer, error) {
	topic := os.Getenv(envCorvanaKafkaAuditTopic)
	if topic == "" || len(kafkaConfig.Servers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(
		kafkaConfig,
		&kafka.ProducerConfig{
			Topic: topic,
		})
	if err != nil {
		return nil, err
	}

	err = producer.Ping(ctx)
	if err != nil {
		return nil, err
	}

	return producer, nil
}

func initEventLedger(ctx context.Context) (models.EventLedger, error) {
	retentionMinutes, err := utils.GetEnvAsInt(envCorvanaLedgerRetentionMinutes, 60)
	if err != nil {
		return nil, err
	}
	retention := time.Duration(retentionMinutes) * time.Minute

	switch os.Getenv(envCorvanaEventLedger) {
	case "redis":
		redisDb, err := utils.GetEnvAsInt(envCorvanaRedisLedgerDB, 0)
		if err != nil {
			return nil, err
		}

		redisConfig := redis.RedisConfig{
			Address:  os.Getenv(envCorvanaRedisLedgerURL),
			Password: os.Getenv(envCorvanaRedisLedgerPassword),
			DB:       redisDb,
			UseTLS:   utils.GetEnvAsBool(envCorvanaRedisLedgerUseTLS, false),
		}

		db, err := redis.NewRedisDB(ctx, redisConfig)
		if err != nil {
			return nil, err
		}

		return models.NewRedisEventLedger(db, retention), nil
	case "postgres":
		return models.NewPgEventLedger(apiStore), nil
	default:
		return models.NewMemoryEventLedger(retention), nil
	}
}

// initKeyResolver decides where signature verification reads signing keys
// from. With the cache enabled the store is only hit on misses, and key
// events (when a topic is configured) invalidate entries ahead of the TTL.
func initKeyResolver(ctx context.Context, logger *slog.Logger, db *database.DB) (webhook_processor.KeyResolver, error) {
	if !utils.GetEnvAsBool(envCorvanaSigningKeyCache, false) {
		return apiStore, nil
	}

	ttlSeconds, err := utils.GetEnvAsInt(envCorvanaSigningKeyCacheTTLSeconds, 0)
	if err != nil {
		return nil, err
	}

	keyCache, err = cache.NewCache(cache.CacheConfig{
		Context:       ctx,
		Logger:        logger,
		SigningKeyTTL: time.Duration(ttlSeconds) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	keyCache.LoadInitialSnapshot(db.Connection)

	if topic := os.Getenv(envCorvanaKafkaKeyEventsTopic); topic != "" {
		go keyCache.ConsumeChanges(kafkaConfig, topic)
	}

	return cache.NewKeyCache(keyCache, apiStore), nil
}

func StartIngestingEvents(ctx context.Context, config *Config) {
	kafkaConfig = kafka.ServerConfig{
		ScramAlgorithm: os.Getenv(envCorvanaKafkaScramAlgorithm),
		TLS:            utils.GetEnvAsBool(envCorvanaKafkaTLS, false),
		Servers:        utils.ParseBrokersEnv(os.Getenv(envCorvanaKafkaBootstrapServers)),
		UserName:       os.Getenv(envCorvanaKafkaUsername),
		Password:       os.Getenv(envCorvanaKafkaPassword),
		Hooks:          config.KafkaHooks,
	}

	maxConns, err := utils.GetEnvAsInt(envCorvanaEventsIngestDatabaseMaxConnections, 200)
	if err != nil {
		utils.LogAndPanic(config.Logger, err, "Error converting max connections into integer")
	}

	dbConfig := database.DBConfig{
		Url:      os.Getenv("DATABASE_URL"),
		MaxConns: int32(maxConns),
	}

	db, err := database.NewConnection(dbConfig)
	if err != nil {
		utils.LogAndPanic(config.Logger, err, "Error connecting to the database")
	}
	apiStore = models.NewApiStore(db)
	defer db.Close()

	ledger, err := initEventLedger(ctx)
	if err != nil {
		utils.LogAndPanic(config.Logger, err, "Error initializing the event ledger")
	}
	if closer, ok := ledger.(io.Closer); ok {
		defer closer.Close()
	}

	keyResolver, err := initKeyResolver(ctx, config.Logger, db)
	if err != nil {
		utils.LogAndPanic(config.Logger, err, "Error initializing the signing key resolver")
	}
	if keyCache != nil {
		defer keyCache.Close()
		defer keyCache.Wait()
	}

	auditProducer, err := initAuditProducer(ctx)
	if err != nil {
		utils.LogAndPanic(config.Logger, err, "Error initializing the audit stream producer")
	}

	planResolver := models.NewPlanResolver(
		os.Getenv(envStripePriceIDFree),
		os.Getenv(envStripePriceIDPro),
		os.Getenv(envStripePriceIDEnterprise),
	)

	processor = webhook_processor.NewWebhookProcessor(
		config.Logger,
		webhook_processor.NewSignatureService(keyResolver, apiStore, config.Logger),
		ledger,
		webhook_processor.NewSyncService(apiStore, planResolver, config.Logger),
		webhook_processor.NewAuditService(apiStore, auditProducer, config.Logger),
	)

	srv := server.NewServer(processor, config.Logger)

	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(); err != nil {
			config.Logger.Error("Error shutting down the webhook server", slog.String("error", err.Error()))
		}
	}()

	address := utils.GetEnvOrDefault(envCorvanaServerAddress, ":3000")

	config.Logger.Info("Starting webhook server", slog.String("address", address))
	if err := srv.Listen(address); err != nil {
		utils.LogAndPanic(config.Logger, err, "Error running the webhook server")
	}
	config.Logger.Info("Webhook server stopped")
}
