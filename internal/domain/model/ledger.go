package model

import "time"

// LedgerEntry is an append-only audit record of a credit movement (spec.md §3).
// Negative Amount is a debit, positive is a refund or purchase.
type LedgerEntry struct {
	ID        string
	OwnerID   string
	JobID     string
	Amount    int64
	Kind      CreditKind
	Reason    string
	RefID     string // for refunds, the id of the debit entry being reversed
	CreatedAt time.Time
}
