package messaging

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/tiendatec/chat-platform/pkg/logging"
)

// signatureHeader carries the hex HMAC-SHA256 of the raw request body.
const signatureHeader = "X-Gateway-Signature-256"

// maxWebhookBody bounds inbound payload size.
const maxWebhookBody = 64 * 1024

// InboundHandlerFunc receives each verified inbound message.
type InboundHandlerFunc func(ctx context.Context, in Inbound) error

// WebhookHandler verifies and decodes gateway callbacks, then hands the
// message to the dispatcher. It answers 202 once the message is accepted;
// processing happens on the queue.
type WebhookHandler struct {
	secret  []byte
	handler InboundHandlerFunc
	logger  *logging.Logger
}

// NewWebhookHandler creates the inbound webhook endpoint.
func NewWebhookHandler(secret string, handler InboundHandlerFunc, logger *logging.Logger) *WebhookHandler {
	if handler == nil {
		panic("messaging: inbound handler required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{secret: []byte(secret), handler: handler, logger: logger}
}

// ServeHTTP implements the POST endpoint the gateway calls.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	if len(h.secret) > 0 && !h.verify(body, r.Header.Get(signatureHeader)) {
		h.logger.Warn("webhook signature mismatch", "remote", r.RemoteAddr)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var in Inbound
	if err := json.Unmarshal(body, &in); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if in.Phone == "" {
		http.Error(w, "missing sender", http.StatusBadRequest)
		return
	}

	if err := h.handler(r.Context(), in); err != nil {
		h.logger.Error("inbound message rejected", "error", err, "from", in.Phone)
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *WebhookHandler) verify(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign computes the signature a caller must send; exported for the gateway
// simulator and tests.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
