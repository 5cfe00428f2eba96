package tests

import (
	"time"

	"github.com/corvana/control-plane/events-ingest/utils"
)

type MockLastUsedRecorder struct {
	LastKid        string
	LastUsedAt     time.Time
	ExecutionCount int
	FailWith       error
}

func (mlr *MockLastUsedRecorder) TouchSigningKeyLastUsed(kid string, usedAt time.Time) utils.Result[bool] {
	mlr.LastKid = kid
	mlr.LastUsedAt = usedAt
	mlr.ExecutionCount++

	if mlr.FailWith != nil {
		return utils.FailedBoolResult(mlr.FailWith)
	}

	return utils.SuccessResult(true)
}
