// Package router assembles the HTTP surface: the gateway webhook, the
// operator API and the operational endpoints.
package router

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tiendatec/chat-platform/internal/agents"
	"github.com/tiendatec/chat-platform/internal/http/middleware"
	"github.com/tiendatec/chat-platform/internal/messaging"
	"github.com/tiendatec/chat-platform/internal/notify"
	"github.com/tiendatec/chat-platform/pkg/logging"
)

// AgentLookup resolves authenticated agent ids for the websocket endpoint.
type AgentLookup interface {
	GetByID(ctx context.Context, id string) (agents.Agent, error)
}

// Deps carries everything the router mounts. Hub and AgentLookup are
// optional; without them the websocket endpoint is not registered.
type Deps struct {
	Logger        *logging.Logger
	Registry      *prometheus.Registry
	Webhook       *messaging.WebhookHandler
	AgentsHandler *agents.Handler
	Hub           *notify.Hub
	AgentLookup   AgentLookup
	JWTSecret     string
	AllowedOrigin string
}

// New builds the service router.
func New(deps Deps) chi.Router {
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimiddleware.Recoverer)
	if deps.AllowedOrigin != "" {
		r.Use(middleware.CORS(deps.AllowedOrigin))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	if deps.Webhook != nil {
		r.Post("/webhooks/gateway/messages", deps.Webhook.ServeHTTP)
	}

	if deps.AgentsHandler != nil {
		r.Route("/api", func(api chi.Router) {
			api.Use(middleware.AgentAuth(deps.JWTSecret, deps.Logger))
			deps.AgentsHandler.Routes(api)

			if deps.Hub != nil && deps.AgentLookup != nil {
				api.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
					agentID, ok := middleware.AgentID(r.Context())
					if !ok {
						http.Error(w, "unauthenticated", http.StatusUnauthorized)
						return
					}
					agent, err := deps.AgentLookup.GetByID(r.Context(), agentID)
					if err != nil {
						http.Error(w, "unknown agent", http.StatusForbidden)
						return
					}
					deps.Hub.ServeWS(w, r, agent)
				})
			}
		})
	}

	return r
}
