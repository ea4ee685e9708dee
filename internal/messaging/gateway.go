// Package messaging talks to the external chat gateway: outbound sends and
// the inbound webhook.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tiendatec/chat-platform/pkg/logging"
)

// Option is one selectable entry in an interactive message.
type Option struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Content is one outbound message in channel shape.
type Content struct {
	Kind    string   `json:"kind"`
	Text    string   `json:"text"`
	Options []Option `json:"options,omitempty"`
}

// Inbound is one customer message as delivered by the gateway webhook.
type Inbound struct {
	ProviderMessageID string `json:"message_id"`
	Phone             string `json:"from"`
	Name              string `json:"name"`
	Kind              string `json:"type"`
	Text              string `json:"text"`
	OptionID          string `json:"option_id"`
}

// Gateway delivers messages to customers. Send returns the provider's
// delivery id.
type Gateway interface {
	Send(ctx context.Context, to string, content Content) (string, error)
}

// HTTPGateway sends through the chat gateway's REST API.
type HTTPGateway struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *logging.Logger
}

// NewHTTPGateway creates a gateway client.
func NewHTTPGateway(baseURL, token string, logger *logging.Logger) *HTTPGateway {
	if baseURL == "" {
		panic("messaging: gateway base URL required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &HTTPGateway{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

type sendRequest struct {
	To      string  `json:"to"`
	Content Content `json:"content"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
}

// Send posts one message. A non-2xx gateway answer is an error; the caller
// decides whether the turn is retried.
func (g *HTTPGateway) Send(ctx context.Context, to string, content Content) (string, error) {
	body, err := json.Marshal(sendRequest{To: to, Content: content})
	if err != nil {
		return "", fmt.Errorf("messaging: encode send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("messaging: build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("messaging: send to %s: %w", to, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("messaging: gateway returned %d: %s", resp.StatusCode, snippet)
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("messaging: decode send response: %w", err)
	}
	return out.MessageID, nil
}

// MemoryGateway records sends for tests and local development.
type MemoryGateway struct {
	Sent []SentMessage
	Err  error
}

// SentMessage is one recorded delivery.
type SentMessage struct {
	To      string
	Content Content
}

// NewMemoryGateway creates an in-memory gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{}
}

// Send records the message, or fails with the configured error.
func (g *MemoryGateway) Send(_ context.Context, to string, content Content) (string, error) {
	if g.Err != nil {
		return "", g.Err
	}
	g.Sent = append(g.Sent, SentMessage{To: to, Content: content})
	return fmt.Sprintf("mem-%d", len(g.Sent)), nil
}
