package agents

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tiendatec/chat-platform/internal/conversation"
	"github.com/tiendatec/chat-platform/internal/http/middleware"
	"github.com/tiendatec/chat-platform/pkg/logging"
)

// Handler exposes the operator API over HTTP.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates the agent HTTP handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("agents: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Routes mounts the operator endpoints; the caller wraps them in AgentAuth.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/conversations", h.listAll)
	r.Get("/conversations/waiting", h.listWaiting)
	r.Get("/conversations/assigned", h.listAssigned)
	r.Post("/conversations/{conversationID}/claim", h.claim)
	r.Post("/conversations/{conversationID}/resolve", h.resolve)
	r.Post("/conversations/{conversationID}/return-to-bot", h.returnToBot)
	r.Post("/conversations/{conversationID}/messages", h.sendMessage)
	r.Get("/conversations/{conversationID}/messages", h.history)
	r.Put("/agents/{agentID}/availability", h.setAvailability)
}

func (h *Handler) listWaiting(w http.ResponseWriter, r *http.Request) {
	agentID, ok := middleware.AgentID(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	waiting, err := h.service.Waiting(r.Context(), agentID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"conversations": waiting})
}

func (h *Handler) listAssigned(w http.ResponseWriter, r *http.Request) {
	agentID, ok := middleware.AgentID(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	assigned, err := h.service.AgentConversations(r.Context(), agentID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"conversations": assigned})
}

func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	agentID, ok := middleware.AgentID(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	all, err := h.service.AllConversations(r.Context(), agentID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"conversations": all})
}

func (h *Handler) claim(w http.ResponseWriter, r *http.Request) {
	agentID, ok := middleware.AgentID(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	err := h.service.Claim(r.Context(), agentID, chi.URLParam(r, "conversationID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "assigned"})
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	agentID, ok := middleware.AgentID(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	err := h.service.Resolve(r.Context(), agentID, chi.URLParam(r, "conversationID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

func (h *Handler) returnToBot(w http.ResponseWriter, r *http.Request) {
	agentID, ok := middleware.AgentID(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	err := h.service.ReturnToBot(r.Context(), agentID, chi.URLParam(r, "conversationID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "bot"})
}

type sendMessageRequest struct {
	Body string `json:"body"`
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	agentID, ok := middleware.AgentID(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Body == "" {
		http.Error(w, "body required", http.StatusBadRequest)
		return
	}

	err := h.service.SendMessage(r.Context(), agentID, chi.URLParam(r, "conversationID"), req.Body)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"status": "sent"})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	agentID, ok := middleware.AgentID(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	messages, err := h.service.History(r.Context(), agentID, chi.URLParam(r, "conversationID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

type availabilityRequest struct {
	Status Availability `json:"status"`
}

func (h *Handler) setAvailability(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.AgentID(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	err := h.service.SetAvailability(r.Context(), actorID, chi.URLParam(r, "agentID"), req.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": string(req.Status)})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, ErrAgentNotFound), errors.Is(err, conversation.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrNotWaiting), errors.Is(err, ErrAgentUnavailable), errors.Is(err, ErrNotAssignee):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Error("agent endpoint failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
