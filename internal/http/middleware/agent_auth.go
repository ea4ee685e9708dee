// Package middleware holds the HTTP middleware for the agent API.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tiendatec/chat-platform/pkg/logging"
)

type contextKey string

const (
	agentIDKey   contextKey = "agent_id"
	agentRoleKey contextKey = "agent_role"
)

// AgentClaims is the token payload issued to operator sessions.
type AgentClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AgentAuth validates the Bearer token and stores the agent identity on the
// request context. Authorization decisions stay in the services; this only
// answers who is calling.
func AgentAuth(secret string, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			claims := &AgentClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid || claims.Subject == "" {
				logger.Warn("rejected agent token", "error", err, "remote", r.RemoteAddr)
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), agentIDKey, claims.Subject)
			ctx = context.WithValue(ctx, agentRoleKey, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AgentID returns the authenticated agent id, if any.
func AgentID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(agentIDKey).(string)
	return id, ok && id != ""
}

// AgentRole returns the role claim carried by the token.
func AgentRole(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(agentRoleKey).(string)
	return role, ok && role != ""
}

// IssueAgentToken signs a session token for an agent; used by the login
// endpoint and tests.
func IssueAgentToken(secret, agentID, role string, ttl time.Duration) (string, error) {
	claims := AgentClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   agentID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
