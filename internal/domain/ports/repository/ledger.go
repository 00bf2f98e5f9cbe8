package repository

import (
	"context"

	"github.com/imagerestore/controlplane/internal/domain/model"
)

// LedgerRepository is the append-only credit audit trail (spec.md §3, §4.2).
type LedgerRepository interface {
	Append(ctx context.Context, tx Tx, e *model.LedgerEntry) error
	// LatestDebitForJob returns the most recent non-refund debit recorded for jobID.
	LatestDebitForJob(ctx context.Context, jobID string) (*model.LedgerEntry, error)
	// RefundExists reports whether a refund entry already references debitID.
	RefundExists(ctx context.Context, debitID string) (bool, error)
}
