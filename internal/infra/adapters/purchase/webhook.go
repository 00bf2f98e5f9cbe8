// File: internal/infra/adapters/purchase/webhook.go
package purchase

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// Notification is the payload a credit-purchase provider posts to
// POST /webhooks/purchase (spec.md non-goal: "webhook handling for purchases
// is treated as an out-of-core input feeding a balance increment").
type Notification struct {
	OwnerID string `json:"owner_id"`
	Amount  int64  `json:"amount"`
	RefID   string `json:"ref_id"`
	Status  string `json:"status"`
}

// VerifySignature checks the HMAC-SHA256 signature the provider attaches
// over the raw request body, following the same construction as the
// upstream payment gateway this control plane's ledger inherits its ledger
// discipline from: HMAC(body, secret) hex-encoded.
func VerifySignature(secret string, body []byte, signature string) bool {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	expected := hex.EncodeToString(h.Sum(nil))
	return hmac.Equal([]byte(strings.ToLower(expected)), []byte(strings.ToLower(signature)))
}

func Parse(body []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return Notification{}, err
	}
	return n, nil
}
