package tests

import (
	"github.com/corvana/control-plane/events-ingest/models"
	"github.com/corvana/control-plane/events-ingest/utils"
)

type MockKeyResolver struct {
	LastKid        string
	ExecutionCount int
	ReturnedResult utils.Result[*models.SigningKey]
}

func (mkr *MockKeyResolver) FetchSigningKey(kid string) utils.Result[*models.SigningKey] {
	mkr.LastKid = kid
	mkr.ExecutionCount++

	return mkr.ReturnedResult
}
