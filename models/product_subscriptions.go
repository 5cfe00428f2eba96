package models

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/corvana/control-plane/events-ingest/utils"
)

const SUBSCRIPTION_STATUS_CANCELED string = "canceled"

type ProductSubscription struct {
	ID                   string         `gorm:"primaryKey;default:gen_random_uuid()"`
	ProductID            string
	ProductOrgID         *string
	CustomerID           *string
	StripeSubscriptionID string
	StripeCustomerID     string
	Status               string
	StripePriceID        string
	Plan                 string
	Amount               string `gorm:"type:numeric"`
	Currency             string
	Interval             string
	CurrentPeriodStart   utils.NullTime
	CurrentPeriodEnd     utils.NullTime
	TrialStart           utils.NullTime
	TrialEnd             utils.NullTime
	CancelAt             utils.NullTime
	CanceledAt           utils.NullTime
	CancelAtPeriodEnd    bool
	LastSyncedAt         utils.NullTime
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (store *ApiStore) FetchProductSubscription(stripeSubscriptionID string) utils.Result[*ProductSubscription] {
	var sub ProductSubscription
	result := store.db.Connection.First(&sub, "stripe_subscription_id = ?", stripeSubscriptionID)
	if result.Error != nil {
		return failedProductSubscriptionResult(result.Error)
	}

	return utils.SuccessResult(&sub)
}

// UpsertProductSubscription inserts the subscription or refreshes every
// synced field in a single statement keyed on stripe_subscription_id.
func (store *ApiStore) UpsertProductSubscription(sub *ProductSubscription) utils.Result[*ProductSubscription] {
	result := store.db.Connection.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "stripe_subscription_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"product_org_id",
			"customer_id",
			"stripe_customer_id",
			"status",
			"stripe_price_id",
			"plan",
			"amount",
			"currency",
			"interval",
			"current_period_start",
			"current_period_end",
			"trial_start",
			"trial_end",
			"cancel_at_period_end",
			"last_synced_at",
			"updated_at",
		}),
	}).Create(sub)
	if result.Error != nil {
		return failedProductSubscriptionResult(result.Error)
	}

	return utils.SuccessResult(sub)
}

// UpdateProductSubscription applies the given column updates and reports how
// many rows matched. Zero rows means the subscription is not known yet.
func (store *ApiStore) UpdateProductSubscription(stripeSubscriptionID string, updates map[string]any) utils.Result[int64] {
	result := store.db.Connection.Model(&ProductSubscription{}).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		Updates(updates)
	if result.Error != nil {
		return utils.FailedResult[int64](result.Error)
	}

	return utils.SuccessResult(result.RowsAffected)
}

func failedProductSubscriptionResult(err error) utils.Result[*ProductSubscription] {
	result := utils.FailedResult[*ProductSubscription](err)

	if err.Error() == gorm.ErrRecordNotFound.Error() {
		result = result.NonCapturable().NonRetryable()
	}

	return result
}
