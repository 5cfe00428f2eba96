package models

import (
	"time"

	"gorm.io/gorm/clause"

	"github.com/corvana/control-plane/events-ingest/utils"
)

// ProcessedEvent backs the Postgres ledger. The primary key on event_id is
// what makes the claim atomic.
type ProcessedEvent struct {
	EventID     string `gorm:"primaryKey"`
	ProcessedAt time.Time
}

func (store *ApiStore) HasProcessedEvent(eventID string) utils.Result[bool] {
	var count int64
	result := store.db.Connection.Model(&ProcessedEvent{}).
		Where("event_id = ?", eventID).
		Count(&count)
	if result.Error != nil {
		return utils.FailedBoolResult(result.Error)
	}

	return utils.SuccessResult(count > 0)
}

// MarkEventProcessed claims the event id with a conditional insert. It
// returns false when another request already holds the claim.
func (store *ApiStore) MarkEventProcessed(eventID string, processedAt time.Time) utils.Result[bool] {
	event := ProcessedEvent{
		EventID:     eventID,
		ProcessedAt: processedAt,
	}

	result := store.db.Connection.Clauses(clause.OnConflict{
		DoNothing: true,
	}).Create(&event)
	if result.Error != nil {
		return utils.FailedBoolResult(result.Error)
	}

	return utils.SuccessResult(result.RowsAffected > 0)
}

func (store *ApiStore) ForgetProcessedEvent(eventID string) utils.Result[bool] {
	result := store.db.Connection.Delete(&ProcessedEvent{}, "event_id = ?", eventID)
	if result.Error != nil {
		return utils.FailedBoolResult(result.Error)
	}

	return utils.SuccessResult(result.RowsAffected > 0)
}
