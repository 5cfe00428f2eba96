package models

import (
	"time"

	"github.com/corvana/control-plane/events-ingest/utils"
)

const (
	BILLING_EVENT_SUBSCRIPTION_CREATED string = "subscription.created"
	BILLING_EVENT_SUBSCRIPTION_UPDATED string = "subscription.updated"
	BILLING_EVENT_SUBSCRIPTION_DELETED string = "subscription.deleted"
	BILLING_EVENT_INVOICE_PAID         string = "invoice.paid"
)

// BillingEvent is the append-only billing activity record. Rows are never
// updated or deleted.
type BillingEvent struct {
	ID             string `gorm:"primaryKey;default:gen_random_uuid()"`
	EventType      string
	ProductID      string
	SubscriptionID *string
	CustomerID     *string
	Amount         *string `gorm:"type:numeric"`
	Currency       *string
	StripeEventID  *string
	OccurredAt     time.Time
	CreatedAt      time.Time
}

func (store *ApiStore) CreateBillingEvent(event *BillingEvent) utils.Result[*BillingEvent] {
	result := store.db.Connection.Create(event)
	if result.Error != nil {
		return utils.FailedResult[*BillingEvent](result.Error)
	}

	return utils.SuccessResult(event)
}
