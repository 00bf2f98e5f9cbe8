package usecase

import (
	"context"

	"github.com/imagerestore/controlplane/internal/domain/model"
)

// CreditResult is the outcome of an admission-time debit attempt (spec.md §4.2).
type CreditResult struct {
	Allowed          bool
	Kind             model.CreditKind
	RemainingCounter int
}

// CreditLedger is the narrow surface the worker pipeline and the dead-letter
// writer need from the credit ledger use case: only refund. Admission calls
// the concrete usecase.CreditLedger directly for CheckAndDeduct.
type CreditLedger interface {
	Refund(ctx context.Context, ownerID, jobID string, reason string) error
}
