// File: internal/infra/web/auth.go
package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/imagerestore/controlplane/internal/domain"
	"github.com/imagerestore/controlplane/internal/domain/ports/adapter"
)

type ctxKey int

const identityCtxKey ctxKey = iota

// authMiddleware resolves the bearer credential via the configured
// TokenVerifier (spec.md §6: "the token verifier returns a user
// identifier"). Failures map to 401 regardless of the underlying cause.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := r.Header.Get("Authorization")
		if !strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
			writeProblem(w, r, domain.ErrUnauthorized)
			return
		}
		bearer := strings.TrimSpace(hdr[len("bearer "):])
		identity, err := s.verifier.Verify(r.Context(), bearer)
		if err != nil {
			writeProblem(w, r, domain.ErrUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), identityCtxKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFromContext(ctx context.Context) (adapter.Identity, bool) {
	id, ok := ctx.Value(identityCtxKey).(adapter.Identity)
	return id, ok
}

// adminMiddleware guards the operator surface with a single shared secret,
// the same shape the teacher's internal/infra/web.authMiddleware uses for
// its admin API.
func (s *Server) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminAPIKey == "" {
			writeProblem(w, r, domain.ErrServiceUnavailable)
			return
		}
		hdr := r.Header.Get("Authorization")
		parts := strings.SplitN(hdr, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] != s.cfg.AdminAPIKey {
			writeProblem(w, r, domain.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
