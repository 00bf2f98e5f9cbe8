package model

import "time"

// IdempotencyEntry pins the canonical first response for (owner, key) so
// retries within the TTL window replay byte-for-byte (spec.md §4.3).
type IdempotencyEntry struct {
	OwnerID     string
	Key         string
	Fingerprint string
	Status      int
	Headers     map[string]string
	Body        []byte
	CreatedAt   time.Time
}
