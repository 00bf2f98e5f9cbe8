// File: internal/infra/web/handlers_admin.go
package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/imagerestore/controlplane/internal/domain"
	"github.com/imagerestore/controlplane/internal/domain/model"
	"github.com/imagerestore/controlplane/internal/usecase"

	"github.com/go-chi/chi/v5"
)

// handleListDeadLetters lists archived dead letters for operator inspection
// (spec.md §4.6).
func (s *Server) handleListDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.replay.List(r.Context(), limit)
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, struct {
		Items []deadLetterView `json:"items"`
	}{toDeadLetterViews(entries)})
}

func (s *Server) handleDeadLetterStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.replay.StatsSummary(r.Context())
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

type replayRequest struct {
	Operator            string `json:"operator"`
	Reason              string `json:"reason"`
	OverrideMaxAttempts int    `json:"override_max_attempts"`
}

// handleReplayDeadLetter implements the single-entry replay operator tool
// (spec.md §4.6).
func (s *Server) handleReplayDeadLetter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body replayRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&body); err != nil {
			writeProblem(w, r, domain.ErrInvalidArgument)
			return
		}
	}

	jobID, err := s.replay.Replay(r.Context(), id, usecase.ReplayOptions{
		Operator:            body.Operator,
		Reason:              body.Reason,
		OverrideMaxAttempts: body.OverrideMaxAttempts,
	})
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, struct {
		JobID string `json:"job_id"`
	}{jobID})
}

// handleReplayAll bulk-replays every archived dead letter, best-effort.
func (s *Server) handleReplayAll(w http.ResponseWriter, r *http.Request) {
	var body replayRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&body); err != nil {
			writeProblem(w, r, domain.ErrInvalidArgument)
			return
		}
	}
	replayed, failures := s.replay.ReplayAll(r.Context(), usecase.ReplayOptions{
		Operator: body.Operator,
		Reason:   body.Reason,
	})
	failureStrings := make(map[string]string, len(failures))
	for id, err := range failures {
		failureStrings[id] = err.Error()
	}
	writeJSON(w, r, http.StatusOK, struct {
		Replayed int               `json:"replayed"`
		Failures map[string]string `json:"failures,omitempty"`
	}{replayed, failureStrings})
}

type deadLetterView struct {
	ID             string `json:"id"`
	JobID          string `json:"job_id"`
	OwnerID        string `json:"owner_id"`
	FailureKind    string `json:"failure_kind"`
	FailureMessage string `json:"failure_message"`
	Attempts       int    `json:"attempts"`
	FailedAt       string `json:"failed_at"`
}

func toDeadLetterViews(entries []model.DeadLetter) []deadLetterView {
	views := make([]deadLetterView, 0, len(entries))
	for _, e := range entries {
		views = append(views, deadLetterView{
			ID:             e.ID,
			JobID:          e.JobID,
			OwnerID:        e.OwnerID,
			FailureKind:    string(e.FailureKind),
			FailureMessage: e.FailureMessage,
			Attempts:       e.Attempts,
			FailedAt:       e.FailedAt.Format(rfc3339),
		})
	}
	return views
}
