package model

import "time"

// RateLimitScope distinguishes the two buckets consulted in order by
// admission (spec.md §4.4).
type RateLimitScope string

const (
	RateLimitScopeUser RateLimitScope = "user"
	RateLimitScopePeer RateLimitScope = "peer"
)

// RateLimitDecision is the result of consulting one bucket.
type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}
