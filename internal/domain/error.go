package domain

import "errors"

// Sentinel domain errors. The web layer (internal/infra/web/problem.go) is the
// only place that translates these into the HTTP problem+json taxonomy;
// nothing below that layer knows about status codes.
var (
	ErrNotFound             = errors.New("entity not found")
	ErrAlreadyExists        = errors.New("entity already exists")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrUnauthorized         = errors.New("missing or invalid credential")
	ErrForbidden            = errors.New("not the owner of this resource")
	ErrUnsupportedMediaType = errors.New("unsupported or unsniffable content type")
	ErrFileTooLarge         = errors.New("upload exceeds size limit")
	ErrIdempotencyMissing   = errors.New("idempotency key missing")
	ErrIdempotencyInvalid   = errors.New("idempotency key malformed")
	ErrIdempotencyConflict  = errors.New("idempotency key reused with a different payload")
	ErrModerationRejected   = errors.New("content rejected by moderation policy")
	ErrInsufficientCredits  = errors.New("insufficient credits")
	ErrRateLimited          = errors.New("rate limit exceeded")
	ErrServiceUnavailable   = errors.New("dependency unavailable")
	ErrAlreadyRefunded      = errors.New("debit already refunded")
	ErrJobTerminal          = errors.New("job already in a terminal state")
	ErrInvalidExecContext   = errors.New("invalid execution context passed to repository")
	ErrReadDatabaseRow      = errors.New("failed to read database row")
)
