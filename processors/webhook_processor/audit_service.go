package webhook_processor

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/corvana/control-plane/events-ingest/config/kafka"
	"github.com/corvana/control-plane/events-ingest/models"
	"github.com/corvana/control-plane/events-ingest/utils"
)

const (
	AUDIT_ACTION_ORG_CREATED           string = "org.created"
	AUDIT_ACTION_ORG_UPDATED           string = "org.updated"
	AUDIT_ACTION_SUBSCRIPTION_CREATED  string = "subscription.created"
	AUDIT_ACTION_SUBSCRIPTION_UPDATED  string = "subscription.updated"
	AUDIT_ACTION_SUBSCRIPTION_CANCELED string = "subscription.canceled"
	AUDIT_ACTION_INVOICE_PAID          string = "invoice.paid"
	AUDIT_ACTION_EVENT_IGNORED         string = "event.ignored"
	AUDIT_ACTION_EVENT_DUPLICATE       string = "event.duplicate"
	AUDIT_ACTION_EVENT_REJECTED        string = "event.rejected"
)

const (
	RESOURCE_PRODUCT_ORG          string = "product_org"
	RESOURCE_PRODUCT_SUBSCRIPTION string = "product_subscription"
	RESOURCE_BILLING_EVENT        string = "billing_event"
	RESOURCE_WEBHOOK_EVENT        string = "webhook_event"
)

const (
	outcomeApplied   = "applied"
	outcomeNoOp      = "no_op"
	outcomeIgnored   = "ignored"
	outcomeDuplicate = "duplicate"
	outcomeRejected  = "rejected"
)

// AuditService appends one platform_audit_logs row per terminal outcome,
// rejections included. Audit writes are instrumentation: failures are
// logged and captured, never surfaced to the sender. When an audit topic
// is configured the same record is produced there fire-and-forget.
type AuditService struct {
	store    *models.ApiStore
	producer kafka.MessageProducer
	logger   *slog.Logger
}

// NewAuditService builds the recorder. producer may be nil when no audit
// topic is configured.
func NewAuditService(store *models.ApiStore, producer kafka.MessageProducer, logger *slog.Logger) *AuditService {
	return &AuditService{
		store:    store,
		producer: producer,
		logger:   logger,
	}
}

func (service *AuditService) RecordOutcome(product *models.Product, event *models.InboundEvent, outcome *HandlerOutcome) {
	metadata := utils.JSONMap{
		"event_id":   event.EventID,
		"event_type": string(event.EventType),
		"outcome":    handlerDisposition(outcome),
	}
	for key, value := range outcome.Metadata {
		metadata[key] = value
	}

	service.append(event.EventID, &models.PlatformAuditLog{
		Action:       outcome.Action,
		ResourceType: outcome.ResourceType,
		ResourceID:   outcome.ResourceID,
		ProductID:    &product.ID,
		CustomerID:   optionalString(outcome.CustomerID),
		Metadata:     metadata,
	})
}

func (service *AuditService) RecordDuplicate(product *models.Product, event *models.InboundEvent) {
	service.append(event.EventID, &models.PlatformAuditLog{
		Action:       AUDIT_ACTION_EVENT_DUPLICATE,
		ResourceType: RESOURCE_WEBHOOK_EVENT,
		ResourceID:   event.EventID,
		ProductID:    &product.ID,
		Metadata: utils.JSONMap{
			"event_id":   event.EventID,
			"event_type": string(event.EventType),
			"outcome":    outcomeDuplicate,
		},
	})
}

// RecordRejection covers both gates: product is nil for signature
// rejections, set for payload rejections.
func (service *AuditService) RecordRejection(product *models.Product, kid string, reason string, message string) {
	metadata := utils.JSONMap{
		"outcome": outcomeRejected,
		"reason":  reason,
	}
	if kid != "" {
		metadata["kid"] = kid
	}
	if message != "" {
		metadata["message"] = message
	}

	log := &models.PlatformAuditLog{
		Action:       AUDIT_ACTION_EVENT_REJECTED,
		ResourceType: RESOURCE_WEBHOOK_EVENT,
		Metadata:     metadata,
	}
	if product != nil {
		log.ProductID = &product.ID
	}

	service.append(kid, log)
}

func handlerDisposition(outcome *HandlerOutcome) string {
	switch {
	case outcome.Action == AUDIT_ACTION_EVENT_IGNORED:
		return outcomeIgnored
	case outcome.NoOp:
		return outcomeNoOp
	default:
		return outcomeApplied
	}
}

func (service *AuditService) append(messageKey string, log *models.PlatformAuditLog) {
	appendResult := service.store.CreatePlatformAuditLog(log)
	if appendResult.Failure() {
		service.logger.Error(
			"Failed to append audit log",
			slog.String("action", log.Action),
			slog.String("error", appendResult.ErrorMsg()),
		)
		utils.CaptureErrorResult(appendResult)
	}

	if service.producer != nil {
		go service.produceAuditRecord(context.Background(), messageKey, log)
	}
}

// produceAuditRecord pushes the record to the audit topic, detached from
// the request path. Loss here is acceptable, the table row is the source
// of truth.
func (service *AuditService) produceAuditRecord(ctx context.Context, messageKey string, log *models.PlatformAuditLog) {
	payload, err := json.Marshal(log)
	if err != nil {
		service.logger.Error("Error while marshalling audit record", slog.String("error", err.Error()))
		utils.CaptureError(err)
		return
	}

	pushed := service.producer.Produce(ctx, &kafka.ProducerMessage{
		Key:   []byte(messageKey),
		Value: payload,
	})
	if !pushed {
		service.logger.Error("Error while pushing audit record", slog.String("topic", service.producer.GetTopic()))
	}
}
