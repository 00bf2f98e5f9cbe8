// File: internal/infra/web/handlers_webhook.go
package web

import (
	"io"
	"net/http"

	"github.com/imagerestore/controlplane/internal/domain"
	"github.com/imagerestore/controlplane/internal/infra/adapters/purchase"
)

const maxWebhookBodyBytes = 1 << 16

// handlePurchaseWebhook feeds a completed credit purchase into the paid
// balance, generalized from the teacher's ZarinPal callback handler
// (spec.md SUPPLEMENTED FEATURES: "webhook handling for purchases... feeding
// a balance increment").
func (s *Server) handlePurchaseWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		writeProblem(w, r, domain.ErrInvalidArgument)
		return
	}

	if !purchase.VerifySignature(s.purchaseSecret, body, r.Header.Get("X-Signature")) {
		writeProblem(w, r, domain.ErrUnauthorized)
		return
	}

	notification, err := purchase.Parse(body)
	if err != nil {
		writeProblem(w, r, domain.ErrInvalidArgument)
		return
	}
	if notification.Status != "completed" {
		writeJSON(w, r, http.StatusOK, struct {
			Accepted bool `json:"accepted"`
		}{false})
		return
	}

	if err := s.ledger.AddPurchasedCredits(r.Context(), notification.OwnerID, notification.Amount, notification.RefID); err != nil {
		writeProblem(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, struct {
		Accepted bool `json:"accepted"`
	}{true})
}
