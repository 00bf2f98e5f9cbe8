package adapter

import "context"

// Identity is what the token verifier resolves a bearer credential to.
type Identity struct {
	UserID   string
	Email    string
	Verified bool
}

// TokenVerifier is the out-of-scope identity collaborator (spec.md §6):
// "the token verifier returns a user identifier." Failures map to 401.
type TokenVerifier interface {
	Verify(ctx context.Context, bearer string) (Identity, error)
}
