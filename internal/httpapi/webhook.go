package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/arbitragex/engine/internal/coordinator"
	"github.com/arbitragex/engine/internal/coreerrors"
	"github.com/gin-gonic/gin"
)

// verifyWebhookSignature checks the X-ArbitrageX-Signature header: a
// hex-encoded HMAC-SHA256 of the raw request body under the configured
// signing secret. Unsigned or empty-secret deployments are rejected
// outright rather than silently accepting unauthenticated webhooks.
func verifyWebhookSignature(secret string, body []byte, header string) bool {
	if secret == "" || header == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	got, err := hex.DecodeString(header)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(expected, got) == 1
}

func (s *Server) handleWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, coreerrors.Wrap(coreerrors.KindValidation, "read webhook body", err))
		return
	}

	if !verifyWebhookSignature(s.webhookSecret, body, c.GetHeader("X-ArbitrageX-Signature")) {
		fail(c, coreerrors.New(coreerrors.KindValidation, "invalid webhook signature"))
		return
	}

	var event coordinator.WebhookEvent
	if err := bindJSON(body, &event); err != nil {
		fail(c, coreerrors.Wrap(coreerrors.KindValidation, "decode webhook event", err))
		return
	}

	if err := s.coord.HandleWebhook(c.Request.Context(), event); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"accepted": true})
}
