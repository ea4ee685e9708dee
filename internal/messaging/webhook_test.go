package messaging

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func postWebhook(t *testing.T, h *WebhookHandler, body, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway/messages", strings.NewReader(body))
	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhookAcceptsSignedPayload(t *testing.T) {
	var got Inbound
	h := NewWebhookHandler("topsecret", func(_ context.Context, in Inbound) error {
		got = in
		return nil
	}, nil)

	body := `{"message_id":"wamid.1","from":"+5215550001111","name":"Laura","type":"text","text":"hola"}`
	rec := postWebhook(t, h, body, Sign("topsecret", []byte(body)))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	if got.Phone != "+5215550001111" || got.Text != "hola" {
		t.Fatalf("handler got %+v", got)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	called := false
	h := NewWebhookHandler("topsecret", func(context.Context, Inbound) error {
		called = true
		return nil
	}, nil)

	body := `{"from":"+5215550001111","text":"hola"}`
	rec := postWebhook(t, h, body, Sign("wrong-secret", []byte(body)))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if called {
		t.Fatal("handler should not run on signature mismatch")
	}
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	h := NewWebhookHandler("topsecret", func(context.Context, Inbound) error { return nil }, nil)

	rec := postWebhook(t, h, `{"from":"+5215550001111"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestWebhookSkipsVerificationWithoutSecret(t *testing.T) {
	h := NewWebhookHandler("", func(context.Context, Inbound) error { return nil }, nil)

	rec := postWebhook(t, h, `{"from":"+5215550001111","text":"hola"}`, "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
}

func TestWebhookRequiresSender(t *testing.T) {
	h := NewWebhookHandler("", func(context.Context, Inbound) error { return nil }, nil)

	rec := postWebhook(t, h, `{"text":"hola"}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestWebhookRejectsMalformedJSON(t *testing.T) {
	h := NewWebhookHandler("", func(context.Context, Inbound) error { return nil }, nil)

	rec := postWebhook(t, h, `{"from":`, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestWebhookHandlerErrorIsServerError(t *testing.T) {
	h := NewWebhookHandler("", func(context.Context, Inbound) error {
		return errors.New("queue full")
	}, nil)

	rec := postWebhook(t, h, `{"from":"+5215550001111","text":"hola"}`, "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestWebhookGetNotAllowed(t *testing.T) {
	h := NewWebhookHandler("", func(context.Context, Inbound) error { return nil }, nil)

	req := httptest.NewRequest(http.MethodGet, "/webhooks/gateway/messages", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestInteractiveReplyDecodes(t *testing.T) {
	var got Inbound
	h := NewWebhookHandler("", func(_ context.Context, in Inbound) error {
		got = in
		return nil
	}, nil)

	body := `{"message_id":"wamid.2","from":"+5215550001111","type":"interactive","option_id":"store_norte"}`
	rec := postWebhook(t, h, body, "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	if got.Kind != "interactive" || got.OptionID != "store_norte" {
		t.Fatalf("handler got %+v", got)
	}
}
