// File: internal/infra/web/problem_test.go
package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/imagerestore/controlplane/internal/domain"
)

func TestLookupTaxonomyKnownSentinel(t *testing.T) {
	entry, ok := lookupTaxonomy(domain.ErrInsufficientCredits)
	if !ok {
		t.Fatalf("expected a taxonomy entry for ErrInsufficientCredits")
	}
	if entry.status != http.StatusPaymentRequired {
		t.Errorf("status = %d, want %d", entry.status, http.StatusPaymentRequired)
	}
	if entry.kind != "insufficient-credits" {
		t.Errorf("kind = %q, want insufficient-credits", entry.kind)
	}
}

func TestLookupTaxonomyWrappedError(t *testing.T) {
	wrapped := &wrappedErr{cause: domain.ErrRateLimited}
	entry, ok := lookupTaxonomy(wrapped)
	if !ok {
		t.Fatalf("expected errors.Is to unwrap to ErrRateLimited")
	}
	if entry.status != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", entry.status)
	}
}

func TestLookupTaxonomyUnknownError(t *testing.T) {
	if _, ok := lookupTaxonomy(errUnknown{}); ok {
		t.Fatalf("expected no taxonomy entry for an unmapped error")
	}
}

func TestWriteProblemFallsBackTo500(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/jobs/1", nil)

	writeProblem(w, r, errUnknown{})

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "application/problem+json" {
		t.Errorf("content-type = %q", got)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"internal"`) {
		t.Errorf("body should not leak the raw error, got %q", body)
	}
}

func TestWriteProblemIncludesDetailForClientErrors(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/jobs/1", nil)

	writeProblem(w, r, domain.ErrNotFound)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"detail"`) {
		t.Errorf("expected a detail field on a non-500 problem, got %q", w.Body.String())
	}
}

func TestWriteInsufficientCreditsExtensionField(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/jobs", nil)

	writeInsufficientCredits(w, r, 3)

	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"remaining_credits":3`) {
		t.Errorf("expected remaining_credits extension field, got %q", w.Body.String())
	}
}

func TestSetRateLimitHeaders(t *testing.T) {
	w := httptest.NewRecorder()

	setRateLimitHeaders(w, 10, 4, time.Unix(1700000000, 0))

	if w.Header().Get("RateLimit-Limit") != "10" {
		t.Errorf("RateLimit-Limit = %q", w.Header().Get("RateLimit-Limit"))
	}
	if w.Header().Get("RateLimit-Remaining") != "4" {
		t.Errorf("RateLimit-Remaining = %q", w.Header().Get("RateLimit-Remaining"))
	}
	if w.Header().Get("RateLimit-Reset") != "1700000000" {
		t.Errorf("RateLimit-Reset = %q", w.Header().Get("RateLimit-Reset"))
	}
}

type wrappedErr struct{ cause error }

func (e *wrappedErr) Error() string { return "wrapped: " + e.cause.Error() }
func (e *wrappedErr) Unwrap() error { return e.cause }

type errUnknown struct{}

func (errUnknown) Error() string { return "something unmapped" }
