package models

import (
	"time"

	"github.com/corvana/control-plane/events-ingest/utils"
)

// PlatformAuditLog captures one row per terminal webhook outcome, rejections
// included. Append-only.
type PlatformAuditLog struct {
	ID           string        `gorm:"primaryKey;default:gen_random_uuid()" json:"id"`
	Action       string        `json:"action"`
	ResourceType string        `json:"resource_type"`
	ResourceID   string        `json:"resource_id"`
	ProductID    *string       `json:"product_id"`
	CustomerID   *string       `json:"customer_id"`
	Metadata     utils.JSONMap `gorm:"type:jsonb" json:"metadata"`
	CreatedAt    time.Time     `json:"created_at"`
}

func (store *ApiStore) CreatePlatformAuditLog(log *PlatformAuditLog) utils.Result[*PlatformAuditLog] {
	result := store.db.Connection.Create(log)
	if result.Error != nil {
		return utils.FailedResult[*PlatformAuditLog](result.Error)
	}

	return utils.SuccessResult(log)
}
