// Package authmw provides HTTP middleware for bearer token authentication
// and agent identity resolution.
package authmw

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/yavyy/audience-query-system/internal/queries"
)

// AgentHeader carries the acting agent's ID on protected requests.
const AgentHeader = "X-Agent-Id"

type callerKey struct{}

// Caller is the resolved identity of the agent making a request.
type Caller struct {
	Agent *queries.Agent
}

// Role returns the caller's role, or empty when unresolved.
func (c *Caller) Role() queries.Role {
	if c == nil || c.Agent == nil {
		return ""
	}
	return c.Agent.Role
}

// ID returns the caller's agent ID, or empty when unresolved.
func (c *Caller) ID() string {
	if c == nil || c.Agent == nil {
		return ""
	}
	return c.Agent.ID
}

// BearerToken returns middleware that validates the Authorization header
// contains a Bearer token matching the expected value. Comparison uses
// constant-time equality to prevent timing side-channel attacks.
func BearerToken(token string) func(http.Handler) http.Handler {
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")

			if !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, `{"error":"missing or malformed authorization header"}`, http.StatusUnauthorized)
				return
			}

			got := []byte(auth[len("Bearer "):])

			if subtle.ConstantTimeCompare(got, expected) != 1 {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ResolveCaller returns middleware that looks up the agent named by the
// X-Agent-Id header and stores it in the request context. Requests without
// a resolvable, active agent are rejected.
func ResolveCaller(agents queries.AgentStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(AgentHeader))
			if id == "" {
				http.Error(w, `{"error":"missing agent id"}`, http.StatusUnauthorized)
				return
			}

			agent, ok, err := agents.GetAgent(r.Context(), id)
			if err != nil {
				http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
				return
			}
			if !ok || !agent.IsActive {
				http.Error(w, `{"error":"unknown agent"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), callerKey{}, &Caller{Agent: agent})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerFromContext extracts the resolved caller, if any.
func CallerFromContext(ctx context.Context) *Caller {
	c, _ := ctx.Value(callerKey{}).(*Caller)
	return c
}

// RequireRole returns middleware that rejects callers whose role is not in
// the allowed set. It must run after ResolveCaller.
func RequireRole(roles ...queries.Role) func(http.Handler) http.Handler {
	allowed := make(map[queries.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allowed[CallerFromContext(r.Context()).Role()] {
				http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
