package webhook_processor

import (
	"log/slog"

	"github.com/corvana/control-plane/events-ingest/models"
	"github.com/corvana/control-plane/events-ingest/utils"
)

// HandlerOutcome describes what a handler did with an event. The audit
// recorder turns it into the audit row for the request.
type HandlerOutcome struct {
	Action       string
	ResourceType string
	ResourceID   string
	CustomerID   string
	NoOp         bool
	Metadata     map[string]any
}

type handlerFunc func(product *models.Product, event *models.InboundEvent) utils.Result[*HandlerOutcome]

// SyncService dispatches validated events to entity synchronization
// handlers: exactly one handler per known event type, selected by map
// lookup. Unknown types are acknowledged as no-ops so senders deployed
// ahead of this service never see an error.
type SyncService struct {
	store        *models.ApiStore
	planResolver *models.PlanResolver
	logger       *slog.Logger
	handlers     map[models.EventType]handlerFunc
}

func NewSyncService(store *models.ApiStore, planResolver *models.PlanResolver, logger *slog.Logger) *SyncService {
	service := &SyncService{
		store:        store,
		planResolver: planResolver,
		logger:       logger,
	}

	service.handlers = map[models.EventType]handlerFunc{
		models.EVENT_ORG_CREATED:          service.handleOrgCreated,
		models.EVENT_ORG_UPDATED:          service.handleOrgUpdated,
		models.EVENT_SUBSCRIPTION_CREATED: service.handleSubscriptionCreated,
		models.EVENT_SUBSCRIPTION_UPDATED: service.handleSubscriptionUpdated,
		models.EVENT_SUBSCRIPTION_DELETED: service.handleSubscriptionDeleted,
		models.EVENT_INVOICE_PAID:         service.handleInvoicePaid,
	}

	return service
}

func (service *SyncService) HandleEvent(product *models.Product, event *models.InboundEvent) utils.Result[*HandlerOutcome] {
	handler, known := service.handlers[event.EventType]
	if !known {
		service.logger.Warn(
			"Ignoring event with unknown type",
			slog.String("event_id", event.EventID),
			slog.String("event_type", string(event.EventType)),
			slog.String("data", string(event.Data)),
		)

		return utils.SuccessResult(&HandlerOutcome{
			Action:       AUDIT_ACTION_EVENT_IGNORED,
			ResourceType: RESOURCE_WEBHOOK_EVENT,
			ResourceID:   event.EventID,
			NoOp:         true,
		})
	}

	return handler(product, event)
}

func failedOutcomeResult(r utils.AnyResult, code string, message string) utils.Result[*HandlerOutcome] {
	result := utils.FailedResult[*HandlerOutcome](r.Error()).AddErrorDetails(code, message)
	result.Retryable = r.IsRetryable()
	result.Capture = r.IsCapturable()
	return result
}

// applyPatch maps a present patch to its update map entry: present null
// clears the column, an absent patch leaves it untouched.
func applyPatch[T any](updates map[string]any, column string, patch utils.Patch[T]) {
	if !patch.Present() {
		return
	}

	if patch.Null() {
		updates[column] = nil
		return
	}

	updates[column] = patch.Value()
}

func applyTimePatch(updates map[string]any, column string, patch utils.Patch[utils.CustomTime]) {
	if !patch.Present() {
		return
	}

	if patch.Null() {
		updates[column] = nil
		return
	}

	updates[column] = patch.Value().Time()
}

func nullTimeFromCustom(t *utils.CustomTime) utils.NullTime {
	if t == nil || t.Time().IsZero() {
		return utils.NullTime{}
	}

	return utils.NewNullTime(t.Time())
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
