package model

import "time"

// User holds the credit-accounting state for one authenticated principal.
// It is mutated only through the credit ledger use case (internal/usecase/credit_ledger.go).
type User struct {
	ID           string
	PaidBalance  int64
	FreeDayKey   string // UTC calendar day, e.g. "2026-08-06"; free_counter resets when this rolls over
	FreeCount    int
	UpdatedAt    time.Time
}

// DailyKey returns the UTC calendar-day key a free-tier counter should use for t.
func DailyKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
