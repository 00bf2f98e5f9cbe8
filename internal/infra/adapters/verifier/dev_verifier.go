// File: internal/infra/adapters/verifier/dev_verifier.go
package verifier

import (
	"context"
	"strings"

	"github.com/imagerestore/controlplane/internal/domain"
	"github.com/imagerestore/controlplane/internal/domain/ports/adapter"
)

var _ adapter.TokenVerifier = (*DevVerifier)(nil)

// DevVerifier accepts bearer tokens of the form "dev-user-<id>" without
// contacting any identity provider (spec.md §6: "a development mock accepts
// dev-user-<id> forms"). It exists so the control plane can run end to end
// without a real identity provider wired in.
type DevVerifier struct{}

func NewDevVerifier() *DevVerifier { return &DevVerifier{} }

func (v *DevVerifier) Verify(ctx context.Context, bearer string) (adapter.Identity, error) {
	const prefix = "dev-user-"
	if !strings.HasPrefix(bearer, prefix) {
		return adapter.Identity{}, domain.ErrUnauthorized
	}
	id := strings.TrimPrefix(bearer, prefix)
	if id == "" {
		return adapter.Identity{}, domain.ErrUnauthorized
	}
	return adapter.Identity{UserID: id, Verified: true}, nil
}
