package webhook_processor

import (
	"github.com/corvana/control-plane/events-ingest/models"
	"github.com/corvana/control-plane/events-ingest/utils"
)

// handleInvoicePaid always appends the billing event. Subscription
// resolution only adds context, a failed resolution never drops the
// payment record.
func (service *SyncService) handleInvoicePaid(product *models.Product, event *models.InboundEvent) utils.Result[*HandlerOutcome] {
	data := event.Payload.(*models.InvoicePaidData)

	var subscriptionID *string
	var customerID *string

	if data.StripeSubscriptionID != "" {
		subResult := service.store.FetchProductSubscription(data.StripeSubscriptionID)
		if subResult.Failure() && subResult.IsRetryable() {
			return failedOutcomeResult(subResult, "fetch_product_subscription", "Error fetching product subscription")
		}
		if subResult.Success() {
			subscriptionID = &subResult.Value().ID
			customerID = subResult.Value().CustomerID
		}
	}

	billingEvent := &models.BillingEvent{
		EventType:      models.BILLING_EVENT_INVOICE_PAID,
		ProductID:      product.ID,
		SubscriptionID: subscriptionID,
		CustomerID:     customerID,
		Amount:         &data.Amount,
		Currency:       &data.Currency,
		StripeEventID:  optionalString(data.StripeEventID),
		OccurredAt:     event.OccurredAt,
	}

	billingResult := service.store.CreateBillingEvent(billingEvent)
	if billingResult.Failure() {
		return failedOutcomeResult(billingResult, "create_billing_event", "Error creating billing event")
	}

	outcome := &HandlerOutcome{
		Action:       AUDIT_ACTION_INVOICE_PAID,
		ResourceType: RESOURCE_BILLING_EVENT,
		ResourceID:   billingEvent.ID,
		Metadata: map[string]any{
			"amount":   data.Amount,
			"currency": data.Currency,
		},
	}
	if data.StripeInvoiceID != "" {
		outcome.Metadata["stripe_invoice_id"] = data.StripeInvoiceID
	}
	if customerID != nil {
		outcome.CustomerID = *customerID
	}

	return utils.SuccessResult(outcome)
}
