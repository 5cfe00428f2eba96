package models

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/corvana/control-plane/events-ingest/utils"
)

const (
	ORG_STATUS_ACTIVE string = "active"

	// Name used when an update arrives before the creation event it races with
	UNKNOWN_ORG_NAME string = "Unknown"
)

type ProductOrg struct {
	ID                 string         `gorm:"primaryKey;default:gen_random_uuid()"`
	ProductID          string
	ExternalOrgID      string
	ExternalDatabaseID *string
	Name               string
	Slug               *string
	Domain             *string
	Status             string
	LastSyncedAt       utils.NullTime
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (store *ApiStore) FetchProductOrg(productID string, externalOrgID string) utils.Result[*ProductOrg] {
	var org ProductOrg
	result := store.db.Connection.First(&org, "product_id = ? AND external_org_id = ?", productID, externalOrgID)
	if result.Error != nil {
		return failedProductOrgResult(result.Error)
	}

	return utils.SuccessResult(&org)
}

// UpsertProductOrg inserts the org or refreshes its mutable fields in a
// single statement keyed on (product_id, external_org_id).
func (store *ApiStore) UpsertProductOrg(org *ProductOrg) utils.Result[*ProductOrg] {
	result := store.db.Connection.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "product_id"},
			{Name: "external_org_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"external_database_id",
			"name",
			"slug",
			"domain",
			"status",
			"last_synced_at",
			"updated_at",
		}),
	}).Create(org)
	if result.Error != nil {
		return failedProductOrgResult(result.Error)
	}

	return utils.SuccessResult(org)
}

// UpdateProductOrg applies the given column updates and reports how many rows
// matched. Zero rows means the org does not exist yet.
func (store *ApiStore) UpdateProductOrg(productID string, externalOrgID string, updates map[string]any) utils.Result[int64] {
	result := store.db.Connection.Model(&ProductOrg{}).
		Where("product_id = ? AND external_org_id = ?", productID, externalOrgID).
		Updates(updates)
	if result.Error != nil {
		return utils.FailedResult[int64](result.Error)
	}

	return utils.SuccessResult(result.RowsAffected)
}

// CreateProductOrgIfAbsent inserts the org unless a concurrent writer beat us
// to it, then reads back whichever row won.
func (store *ApiStore) CreateProductOrgIfAbsent(org *ProductOrg) utils.Result[*ProductOrg] {
	result := store.db.Connection.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "product_id"},
			{Name: "external_org_id"},
		},
		DoNothing: true,
	}).Create(org)
	if result.Error != nil {
		return failedProductOrgResult(result.Error)
	}

	return store.FetchProductOrg(org.ProductID, org.ExternalOrgID)
}

func failedProductOrgResult(err error) utils.Result[*ProductOrg] {
	result := utils.FailedResult[*ProductOrg](err)

	if err.Error() == gorm.ErrRecordNotFound.Error() {
		result = result.NonCapturable().NonRetryable()
	}

	return result
}
