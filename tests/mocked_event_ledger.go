package tests

import (
	"context"
	"time"

	"github.com/corvana/control-plane/events-ingest/utils"
)

// MockEventLedger is a map backed ledger with real first-claim-wins
// semantics, so duplicate and release paths can be exercised in tests.
type MockEventLedger struct {
	Entries     map[string]bool
	MarkCount   int
	ForgetCount int
	FailWith    error
}

func NewMockEventLedger() *MockEventLedger {
	return &MockEventLedger{Entries: make(map[string]bool)}
}

func (ml *MockEventLedger) HasProcessed(_ context.Context, eventID string) utils.Result[bool] {
	if ml.FailWith != nil {
		return utils.FailedResult[bool](ml.FailWith)
	}

	return utils.SuccessResult(ml.Entries[eventID])
}

func (ml *MockEventLedger) MarkProcessed(_ context.Context, eventID string, _ time.Time) utils.Result[bool] {
	ml.MarkCount++

	if ml.FailWith != nil {
		return utils.FailedResult[bool](ml.FailWith)
	}

	if ml.Entries[eventID] {
		return utils.SuccessResult(false)
	}

	ml.Entries[eventID] = true
	return utils.SuccessResult(true)
}

func (ml *MockEventLedger) Forget(_ context.Context, eventID string) utils.Result[bool] {
	ml.ForgetCount++

	if ml.FailWith != nil {
		return utils.FailedResult[bool](ml.FailWith)
	}

	if !ml.Entries[eventID] {
		return utils.SuccessResult(false)
	}

	delete(ml.Entries, eventID)
	return utils.SuccessResult(true)
}
