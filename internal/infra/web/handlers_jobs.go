// File: internal/infra/web/handlers_jobs.go
package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/imagerestore/controlplane/internal/domain"
	"github.com/imagerestore/controlplane/internal/usecase"

	"github.com/go-chi/chi/v5"
)

const maxUploadBytes = 10<<20 + 1<<20 // admission's own limit plus multipart framing slack

// handleIssueUploadTarget implements ISSUE_UPLOAD_TARGET.
func (s *Server) handleIssueUploadTarget(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	contentType := r.URL.Query().Get("contentType")
	if !allowedContentType(contentType) {
		writeProblem(w, r, domain.ErrUnsupportedMediaType)
		return
	}
	target, err := s.admission.IssueUploadTarget(r.Context(), identity.UserID, contentType)
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, struct {
		UploadURL   string `json:"upload_url"`
		ObjectName  string `json:"object_name"`
		ExpiresAt   string `json:"expires_at"`
		ContentType string `json:"content_type"`
	}{
		UploadURL:   target.URL,
		ObjectName:  target.ObjectName,
		ExpiresAt:   target.ExpiresAt.Format(rfc3339),
		ContentType: target.ContentType,
	})
}

func allowedContentType(ct string) bool {
	switch ct {
	case "image/jpeg", "image/png", "image/webp":
		return true
	default:
		return false
	}
}

type submitJSONBody struct {
	Source struct {
		Type       string `json:"type"`
		ObjectName string `json:"object_name"`
	} `json:"source"`
	Prompt string `json:"prompt"`
}

// handleSubmitJob implements SUBMIT_JOB, accepting either shape spec.md §6
// describes: multipart with an "image" part, or a JSON body referencing a
// pre-uploaded blob.
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())

	req := usecase.SubmitJobRequest{
		OwnerID:        identity.UserID,
		PeerAddress:    r.RemoteAddr,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		Method:         r.Method,
		Path:           r.URL.Path,
	}

	contentType := r.Header.Get("Content-Type")
	switch {
	case isMultipart(contentType):
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeFileTooLarge(w, r)
			return
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			writeProblem(w, r, domain.ErrInvalidArgument)
			return
		}
		defer file.Close()
		body, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			writeFileTooLarge(w, r)
			return
		}
		req.Source.InlineImage = body
		req.Prompt = r.FormValue("prompt")
	default:
		var body submitJSONBody
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
			writeProblem(w, r, domain.ErrInvalidArgument)
			return
		}
		if body.Source.Type != "blob" || body.Source.ObjectName == "" {
			writeProblem(w, r, domain.ErrInvalidArgument)
			return
		}
		req.Source.BlobObject = body.Source.ObjectName
		req.Prompt = body.Prompt
	}

	resp, err := s.admission.SubmitJob(r.Context(), req)
	if err != nil {
		if resp.RateLimit.Limit > 0 {
			setRateLimitHeaders(w, resp.RateLimit.Limit, resp.RateLimit.Remaining, resp.RateLimit.Reset)
		}
		if err == domain.ErrInsufficientCredits {
			writeInsufficientCredits(w, r, resp.RemainingCredits)
			return
		}
		if err == domain.ErrRateLimited {
			writeRateLimited(w, r, time.Until(resp.RateLimit.Reset))
			return
		}
		writeProblem(w, r, err)
		return
	}

	if resp.RateLimit.Limit > 0 {
		setRateLimitHeaders(w, resp.RateLimit.Limit, resp.RateLimit.Remaining, resp.RateLimit.Reset)
	}
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Location", resp.Location)
	writeJSON(w, r, http.StatusAccepted, resp)
}

func isMultipart(contentType string) bool {
	return len(contentType) >= 10 && contentType[:10] == "multipart/"
}

// handleGetJob implements GET_JOB.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	jobID := chi.URLParam(r, "id")

	proj, err := s.status.GetJob(r.Context(), identity.UserID, jobID)
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, proj)
}

// handleStreamJob implements STREAM_JOB as a server-sent-events stream:
// one event per record change, periodic heartbeat comments, closing on
// terminal status or peer disconnect (spec.md §4.8).
func (s *Server) handleStreamJob(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	jobID := chi.URLParam(r, "id")

	events, err := s.status.StreamJob(r.Context(), identity.UserID, jobID)
	if err != nil {
		writeProblem(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, r, domain.ErrServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := usecase.HeartbeatInterval(s.cfg)
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Err != nil {
				fmt.Fprintf(w, "event: error\ndata: %q\n\n", ev.Err.Error())
				flusher.Flush()
				return
			}
			payload, _ := json.Marshal(ev.Projection)
			fmt.Fprintf(w, "event: status\ndata: %s\n\n", payload)
			flusher.Flush()
			if ev.Projection.Status.Terminal() {
				return
			}
		case <-ticker.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

const rfc3339 = "2006-01-02T15:04:05Z07:00"

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
