package webhook_processor

import (
	"log/slog"

	"github.com/corvana/control-plane/events-ingest/models"
	"github.com/corvana/control-plane/events-ingest/utils"
)

func (service *SyncService) handleSubscriptionCreated(product *models.Product, event *models.InboundEvent) utils.Result[*HandlerOutcome] {
	data := event.Payload.(*models.SubscriptionCreatedData)

	// Org and customer resolution is best effort: the subscription is
	// synced even when the org event has not arrived yet.
	var productOrgID *string
	var customerID *string

	orgResult := service.store.FetchProductOrg(product.ID, data.ExternalOrgID)
	if orgResult.Failure() && orgResult.IsRetryable() {
		return failedOutcomeResult(orgResult, "fetch_product_org", "Error fetching product org")
	}
	if orgResult.Success() {
		productOrgID = &orgResult.Value().ID

		linkResult := service.store.FetchOrgCustomer(orgResult.Value().ID)
		if linkResult.Failure() && linkResult.IsRetryable() {
			return failedOutcomeResult(linkResult, "fetch_org_customer", "Error fetching org customer")
		}
		if linkResult.Success() {
			customerID = &linkResult.Value().CustomerID
		}
	}

	sub := &models.ProductSubscription{
		ProductID:            product.ID,
		ProductOrgID:         productOrgID,
		CustomerID:           customerID,
		StripeSubscriptionID: data.StripeSubscriptionID,
		StripeCustomerID:     data.StripeCustomerID,
		Status:               data.Status,
		StripePriceID:        data.StripePriceID,
		Plan:                 service.planResolver.Resolve(data.StripePriceID),
		Amount:               data.Amount,
		Currency:             data.Currency,
		Interval:             data.Interval,
		CurrentPeriodStart:   nullTimeFromCustom(data.CurrentPeriodStart),
		CurrentPeriodEnd:     nullTimeFromCustom(data.CurrentPeriodEnd),
		TrialStart:           nullTimeFromCustom(data.TrialStart),
		TrialEnd:             nullTimeFromCustom(data.TrialEnd),
		CancelAtPeriodEnd:    data.CancelAtPeriodEnd,
		LastSyncedAt:         utils.NowNullTime(),
	}

	upsertResult := service.store.UpsertProductSubscription(sub)
	if upsertResult.Failure() {
		return failedOutcomeResult(upsertResult, "upsert_product_subscription", "Error upserting product subscription")
	}

	if data.StripeEventID != "" {
		billingResult := service.store.CreateBillingEvent(&models.BillingEvent{
			EventType:      models.BILLING_EVENT_SUBSCRIPTION_CREATED,
			ProductID:      product.ID,
			SubscriptionID: &sub.ID,
			CustomerID:     customerID,
			Amount:         &data.Amount,
			Currency:       &data.Currency,
			StripeEventID:  &data.StripeEventID,
			OccurredAt:     event.OccurredAt,
		})
		if billingResult.Failure() {
			return failedOutcomeResult(billingResult, "create_billing_event", "Error creating billing event")
		}
	}

	outcome := &HandlerOutcome{
		Action:       AUDIT_ACTION_SUBSCRIPTION_CREATED,
		ResourceType: RESOURCE_PRODUCT_SUBSCRIPTION,
		ResourceID:   sub.ID,
		Metadata: map[string]any{
			"stripe_subscription_id": data.StripeSubscriptionID,
			"plan":                   sub.Plan,
		},
	}
	if customerID != nil {
		outcome.CustomerID = *customerID
	}

	return utils.SuccessResult(outcome)
}

// handleSubscriptionUpdated applies only the fields present in the
// payload. An unknown subscription is ordering skew, not an error: the
// update is dropped and the state converges once the creation event lands.
func (service *SyncService) handleSubscriptionUpdated(product *models.Product, event *models.InboundEvent) utils.Result[*HandlerOutcome] {
	data := event.Payload.(*models.SubscriptionUpdatedData)

	subResult := service.store.FetchProductSubscription(data.StripeSubscriptionID)
	if subResult.Failure() {
		if subResult.IsRetryable() {
			return failedOutcomeResult(subResult, "fetch_product_subscription", "Error fetching product subscription")
		}

		return service.unknownSubscriptionOutcome(event, data.StripeSubscriptionID, AUDIT_ACTION_SUBSCRIPTION_UPDATED)
	}

	sub := subResult.Value()

	updates := map[string]any{
		"last_synced_at": utils.NowNullTime(),
	}
	applyPatch(updates, "status", data.Status)
	applyPatch(updates, "stripe_price_id", data.StripePriceID)
	applyPatch(updates, "amount", data.Amount)
	applyPatch(updates, "currency", data.Currency)
	applyPatch(updates, "interval", data.Interval)
	applyPatch(updates, "cancel_at_period_end", data.CancelAtPeriodEnd)
	applyTimePatch(updates, "current_period_start", data.CurrentPeriodStart)
	applyTimePatch(updates, "current_period_end", data.CurrentPeriodEnd)
	applyTimePatch(updates, "trial_start", data.TrialStart)
	applyTimePatch(updates, "trial_end", data.TrialEnd)
	applyTimePatch(updates, "cancel_at", data.CancelAt)
	applyTimePatch(updates, "canceled_at", data.CanceledAt)

	if data.StripePriceID.Present() && !data.StripePriceID.Null() {
		updates["plan"] = service.planResolver.Resolve(data.StripePriceID.Value())
	}

	updateResult := service.store.UpdateProductSubscription(data.StripeSubscriptionID, updates)
	if updateResult.Failure() {
		return failedOutcomeResult(updateResult, "update_product_subscription", "Error updating product subscription")
	}

	if data.StripeEventID != "" {
		amount := sub.Amount
		if data.Amount.Present() && !data.Amount.Null() {
			amount = data.Amount.Value()
		}
		currency := sub.Currency
		if data.Currency.Present() && !data.Currency.Null() {
			currency = data.Currency.Value()
		}

		billingResult := service.store.CreateBillingEvent(&models.BillingEvent{
			EventType:      models.BILLING_EVENT_SUBSCRIPTION_UPDATED,
			ProductID:      product.ID,
			SubscriptionID: &sub.ID,
			CustomerID:     sub.CustomerID,
			Amount:         &amount,
			Currency:       &currency,
			StripeEventID:  &data.StripeEventID,
			OccurredAt:     event.OccurredAt,
		})
		if billingResult.Failure() {
			return failedOutcomeResult(billingResult, "create_billing_event", "Error creating billing event")
		}
	}

	outcome := &HandlerOutcome{
		Action:       AUDIT_ACTION_SUBSCRIPTION_UPDATED,
		ResourceType: RESOURCE_PRODUCT_SUBSCRIPTION,
		ResourceID:   sub.ID,
		Metadata: map[string]any{
			"stripe_subscription_id": data.StripeSubscriptionID,
			"previous_status":        sub.Status,
		},
	}
	if sub.CustomerID != nil {
		outcome.CustomerID = *sub.CustomerID
	}

	return utils.SuccessResult(outcome)
}

// handleSubscriptionDeleted models deletion as a status transition so
// billing history stays queryable. The row is never removed.
func (service *SyncService) handleSubscriptionDeleted(product *models.Product, event *models.InboundEvent) utils.Result[*HandlerOutcome] {
	data := event.Payload.(*models.SubscriptionDeletedData)

	subResult := service.store.FetchProductSubscription(data.StripeSubscriptionID)
	if subResult.Failure() {
		if subResult.IsRetryable() {
			return failedOutcomeResult(subResult, "fetch_product_subscription", "Error fetching product subscription")
		}

		return service.unknownSubscriptionOutcome(event, data.StripeSubscriptionID, AUDIT_ACTION_SUBSCRIPTION_CANCELED)
	}

	sub := subResult.Value()

	canceledAt := utils.NowNullTime()
	if data.CanceledAt != nil && !data.CanceledAt.Time().IsZero() {
		canceledAt = utils.NewNullTime(data.CanceledAt.Time())
	}

	updateResult := service.store.UpdateProductSubscription(data.StripeSubscriptionID, map[string]any{
		"status":         models.SUBSCRIPTION_STATUS_CANCELED,
		"canceled_at":    canceledAt,
		"last_synced_at": utils.NowNullTime(),
	})
	if updateResult.Failure() {
		return failedOutcomeResult(updateResult, "cancel_product_subscription", "Error canceling product subscription")
	}

	if data.StripeEventID != "" {
		billingResult := service.store.CreateBillingEvent(&models.BillingEvent{
			EventType:      models.BILLING_EVENT_SUBSCRIPTION_DELETED,
			ProductID:      product.ID,
			SubscriptionID: &sub.ID,
			CustomerID:     sub.CustomerID,
			Amount:         &sub.Amount,
			Currency:       &sub.Currency,
			StripeEventID:  &data.StripeEventID,
			OccurredAt:     event.OccurredAt,
		})
		if billingResult.Failure() {
			return failedOutcomeResult(billingResult, "create_billing_event", "Error creating billing event")
		}
	}

	outcome := &HandlerOutcome{
		Action:       AUDIT_ACTION_SUBSCRIPTION_CANCELED,
		ResourceType: RESOURCE_PRODUCT_SUBSCRIPTION,
		ResourceID:   sub.ID,
		Metadata: map[string]any{
			"stripe_subscription_id": data.StripeSubscriptionID,
			"previous_status":        sub.Status,
		},
	}
	if sub.CustomerID != nil {
		outcome.CustomerID = *sub.CustomerID
	}

	return utils.SuccessResult(outcome)
}

func (service *SyncService) unknownSubscriptionOutcome(event *models.InboundEvent, stripeSubscriptionID string, action string) utils.Result[*HandlerOutcome] {
	service.logger.Warn(
		"Ignoring event for unknown subscription",
		slog.String("event_id", event.EventID),
		slog.String("event_type", string(event.EventType)),
		slog.String("stripe_subscription_id", stripeSubscriptionID),
	)

	return utils.SuccessResult(&HandlerOutcome{
		Action:       action,
		ResourceType: RESOURCE_PRODUCT_SUBSCRIPTION,
		ResourceID:   stripeSubscriptionID,
		NoOp:         true,
		Metadata: map[string]any{
			"stripe_subscription_id": stripeSubscriptionID,
		},
	})
}
