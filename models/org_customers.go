package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/corvana/control-plane/events-ingest/utils"
)

// OrgCustomer links a product org to the control-plane customer it belongs
// to. Maintained elsewhere, read here for best-effort customer resolution.
type OrgCustomer struct {
	ID           string    `gorm:"primaryKey;->"`
	ProductOrgID string    `gorm:"->"`
	CustomerID   string    `gorm:"->"`
	CreatedAt    time.Time `gorm:"->"`
	UpdatedAt    time.Time `gorm:"->"`
}

func (store *ApiStore) FetchOrgCustomer(productOrgID string) utils.Result[*OrgCustomer] {
	var link OrgCustomer
	result := store.db.Connection.First(&link, "product_org_id = ?", productOrgID)
	if result.Error != nil {
		return failedOrgCustomerResult(result.Error)
	}

	return utils.SuccessResult(&link)
}

func failedOrgCustomerResult(err error) utils.Result[*OrgCustomer] {
	result := utils.FailedResult[*OrgCustomer](err)

	if err.Error() == gorm.ErrRecordNotFound.Error() {
		result = result.NonCapturable().NonRetryable()
	}

	return result
}
