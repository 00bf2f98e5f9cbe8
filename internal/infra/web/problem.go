// File: internal/infra/web/problem.go
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/imagerestore/controlplane/internal/domain"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// problem is the wire shape of spec.md §7's error document: a stable type
// URI, a short title, a numeric status, an optional detail and an instance
// equal to the request id. Extension fields ride in Extra.
type problem struct {
	Type     string      `json:"type"`
	Title    string      `json:"title"`
	Status   int         `json:"status"`
	Detail   string      `json:"detail,omitempty"`
	Instance string      `json:"instance"`
	Extra    interface{} `json:"-"`
}

func (p problem) MarshalJSON() ([]byte, error) {
	base := map[string]interface{}{
		"type":     p.Type,
		"title":    p.Title,
		"status":   p.Status,
		"instance": p.Instance,
	}
	if p.Detail != "" {
		base["detail"] = p.Detail
	}
	if extra, ok := p.Extra.(map[string]interface{}); ok {
		for k, v := range extra {
			base[k] = v
		}
	}
	return json.Marshal(base)
}

// taxonomyEntry binds one domain sentinel to its problem+json rendering.
// This table is the only place in the codebase that knows about HTTP status
// codes for domain errors (spec.md §7).
type taxonomyEntry struct {
	status int
	kind   string
	title  string
}

var taxonomy = map[error]taxonomyEntry{
	domain.ErrUnauthorized:         {http.StatusUnauthorized, "unauthorized", "Unauthorized"},
	domain.ErrForbidden:            {http.StatusForbidden, "forbidden", "Forbidden"},
	domain.ErrNotFound:             {http.StatusNotFound, "not-found", "Not Found"},
	domain.ErrInvalidArgument:      {http.StatusBadRequest, "invalid-payload", "Invalid Payload"},
	domain.ErrUnsupportedMediaType: {http.StatusUnsupportedMediaType, "unsupported-media-type", "Unsupported Media Type"},
	domain.ErrIdempotencyMissing:   {http.StatusBadRequest, "idempotency-key-missing", "Idempotency Key Missing"},
	domain.ErrIdempotencyInvalid:   {http.StatusBadRequest, "idempotency-key-invalid", "Idempotency Key Invalid"},
	domain.ErrIdempotencyConflict:  {http.StatusConflict, "idempotency-conflict", "Idempotency Conflict"},
	domain.ErrFileTooLarge:         {http.StatusRequestEntityTooLarge, "file-too-large", "File Too Large"},
	domain.ErrModerationRejected:   {http.StatusUnprocessableEntity, "moderation-rejected", "Moderation Rejected"},
	domain.ErrInsufficientCredits:  {http.StatusPaymentRequired, "insufficient-credits", "Insufficient Credits"},
	domain.ErrRateLimited:          {http.StatusTooManyRequests, "rate-limit-exceeded", "Rate Limit Exceeded"},
	domain.ErrServiceUnavailable:   {http.StatusServiceUnavailable, "service-unavailable", "Service Unavailable"},
	domain.ErrJobTerminal:          {http.StatusConflict, "job-terminal", "Job Already Terminal"},
	domain.ErrAlreadyExists:        {http.StatusConflict, "already-exists", "Already Exists"},
}

// writeProblem maps err to its problem+json response and writes it. Unknown
// errors fall back to a 500 "internal" problem, never leaking the raw
// message to the client.
func writeProblem(w http.ResponseWriter, r *http.Request, err error) {
	entry, ok := lookupTaxonomy(err)
	if !ok {
		entry = taxonomyEntry{http.StatusInternalServerError, "internal", "Internal Server Error"}
	}
	p := problem{
		Type:     "https://imagerestore.example/problems/" + entry.kind,
		Title:    entry.title,
		Status:   entry.status,
		Instance: requestID(r),
	}
	if entry.status != http.StatusInternalServerError {
		p.Detail = err.Error()
	}
	writeProblemDoc(w, r, p)
}

func lookupTaxonomy(err error) (taxonomyEntry, bool) {
	for sentinel, entry := range taxonomy {
		if errors.Is(err, sentinel) {
			return entry, true
		}
	}
	return taxonomyEntry{}, false
}

func writeProblemDoc(w http.ResponseWriter, r *http.Request, p problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Request-Id", p.Instance)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// writeInsufficientCredits adds the remaining_credits extension field
// spec.md §7 calls for.
func writeInsufficientCredits(w http.ResponseWriter, r *http.Request, remaining int) {
	p := problem{
		Type:     "https://imagerestore.example/problems/insufficient-credits",
		Title:    "Insufficient Credits",
		Status:   http.StatusPaymentRequired,
		Instance: requestID(r),
		Extra:    map[string]interface{}{"remaining_credits": remaining},
	}
	writeProblemDoc(w, r, p)
}

// writeRateLimited adds Retry-After and RateLimit-* headers on top of the
// standard problem document (spec.md §4.4, §7).
func writeRateLimited(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	p := problem{
		Type:     "https://imagerestore.example/problems/rate-limit-exceeded",
		Title:    "Rate Limit Exceeded",
		Status:   http.StatusTooManyRequests,
		Instance: requestID(r),
	}
	writeProblemDoc(w, r, p)
}

// writeFileTooLarge adds the short Retry-After spec.md §7 calls for.
func writeFileTooLarge(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "1")
	writeProblem(w, r, domain.ErrFileTooLarge)
}

func requestID(r *http.Request) string {
	if id := chimiddleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-Id")
}

func setRateLimitHeaders(w http.ResponseWriter, limit, remaining int, reset time.Time) {
	w.Header().Set("RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
}
