package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const agentNameKey contextKey = "agentName"

// AgentHeader is the header agents identify themselves with.
const AgentHeader = "X-Agent-Name"

// AgentExtractor pulls the caller's agent name from the X-Agent-Name
// header into the request context. The name is advisory at this layer;
// handlers that need a registered agent resolve and verify it against
// the store.
func AgentExtractor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(r.Header.Get(AgentHeader))
		if name != "" {
			ctx := context.WithValue(r.Context(), agentNameKey, strings.ToLower(name))
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// GetAgentName returns the caller's agent name, or "" when the header
// was absent.
func GetAgentName(ctx context.Context) string {
	if name, ok := ctx.Value(agentNameKey).(string); ok {
		return name
	}
	return ""
}
