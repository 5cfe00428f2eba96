package webhook_processor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/corvana/control-plane/events-ingest/config/tracing"
	"github.com/corvana/control-plane/events-ingest/models"
	"github.com/corvana/control-plane/events-ingest/utils"
)

// ProcessingOutcome is the pipeline verdict the HTTP edge renders: either
// the duplicate acknowledgment, or the handled event's identity plus what
// the handler did with it.
type ProcessingOutcome struct {
	EventID   string
	EventType models.EventType
	Duplicate bool
	Handler   *HandlerOutcome
}

// WebhookProcessor runs one delivery through the pipeline:
// signature-verified, schema-validated, claimed in the ledger, dispatched,
// audited. Rejections exit at each of the first three gates and are
// audited too.
type WebhookProcessor struct {
	logger           *slog.Logger
	SignatureService *SignatureService
	Ledger           models.EventLedger
	SyncService      *SyncService
	AuditService     *AuditService
}

func NewWebhookProcessor(logger *slog.Logger, signatureService *SignatureService, ledger models.EventLedger, syncService *SyncService, auditService *AuditService) *WebhookProcessor {
	return &WebhookProcessor{
		logger:           logger,
		SignatureService: signatureService,
		Ledger:           ledger,
		SyncService:      syncService,
		AuditService:     auditService,
	}
}

// ProcessWebhook is the single entry point for a delivery. Failed results
// carry an AuthError, a models.ValidationError or a retryable persistence
// error; the HTTP edge maps them to statuses.
func (processor *WebhookProcessor) ProcessWebhook(ctx context.Context, headers Headers, body []byte) utils.Result[*ProcessingOutcome] {
	span := tracing.StartSpan(ctx, "WebhookProcessor.ProcessWebhook")
	defer span.End()

	result := processor.processWebhook(ctx, headers, body)
	if result.Failure() {
		processor.logger.Error(
			result.ErrorMessage(),
			slog.String("error_code", result.ErrorCode()),
			slog.String("error", result.ErrorMsg()),
		)

		if result.IsCapturable() {
			utils.CaptureErrorResult(result)
		}
	}

	return result
}

func (processor *WebhookProcessor) processWebhook(ctx context.Context, headers Headers, body []byte) utils.Result[*ProcessingOutcome] {
	verifyResult := processor.SignatureService.VerifySignature(headers, body)
	if verifyResult.Failure() {
		var authErr *AuthError
		if errors.As(verifyResult.Error(), &authErr) {
			processor.AuditService.RecordRejection(nil, headers.Kid, authErr.Reason, "")
			return failedProcessingResult(verifyResult, authErr.Reason, "Webhook signature rejected")
		}

		return failedProcessingResult(verifyResult, verifyResult.ErrorCode(), verifyResult.ErrorMessage())
	}

	key := verifyResult.Value()
	product := &key.Product

	go processor.SignatureService.RecordKeyUsage(key.Kid, time.Now())

	eventResult := models.ParseInboundEvent(body)
	if eventResult.Failure() {
		processor.AuditService.RecordRejection(product, headers.Kid, "invalid_payload", eventResult.ErrorMsg())
		return failedProcessingResult(eventResult, "invalid_payload", "Webhook payload rejected")
	}

	event := eventResult.Value()

	// Claim before dispatch: the first delivery of an event id wins, every
	// concurrent or later one short-circuits to the duplicate acknowledgment.
	claimResult := processor.Ledger.MarkProcessed(ctx, event.EventID, time.Now())
	if claimResult.Failure() {
		return failedProcessingResult(claimResult, "claim_event", "Error claiming event in the ledger")
	}

	if !claimResult.Value() {
		processor.AuditService.RecordDuplicate(product, event)
		return utils.SuccessResult(&ProcessingOutcome{
			EventID:   event.EventID,
			EventType: event.EventType,
			Duplicate: true,
		})
	}

	handlerResult := processor.SyncService.HandleEvent(product, event)
	if handlerResult.Failure() {
		processor.releaseClaim(ctx, event.EventID)
		return failedProcessingResult(handlerResult, handlerResult.ErrorCode(), handlerResult.ErrorMessage())
	}

	outcome := handlerResult.Value()
	processor.AuditService.RecordOutcome(product, event, outcome)

	return utils.SuccessResult(&ProcessingOutcome{
		EventID:   event.EventID,
		EventType: event.EventType,
		Handler:   outcome,
	})
}

// releaseClaim frees the ledger entry after a failed attempt so the
// sender's retry is not swallowed as a duplicate. A failed release means
// exactly that would happen, hence the loud log.
func (processor *WebhookProcessor) releaseClaim(ctx context.Context, eventID string) {
	forgetResult := processor.Ledger.Forget(ctx, eventID)
	if forgetResult.Failure() {
		processor.logger.Error(
			"Failed to release event claim after a processing failure, retries of this event will be dropped as duplicates",
			slog.String("event_id", eventID),
			slog.String("error", forgetResult.ErrorMsg()),
		)
		utils.CaptureErrorResult(forgetResult)
	}
}

func failedProcessingResult(r utils.AnyResult, code string, message string) utils.Result[*ProcessingOutcome] {
	result := utils.FailedResult[*ProcessingOutcome](r.Error()).AddErrorDetails(code, message)
	result.Retryable = r.IsRetryable()
	result.Capture = r.IsCapturable()
	return result
}
