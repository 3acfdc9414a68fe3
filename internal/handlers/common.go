// Package handlers implements the gateway's HTTP surface: synchronous and
// asynchronous chat, task polling, change-event ingest, and per-user cache
// administration.
package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"hrpulse-gateway/internal/cache"
	"hrpulse-gateway/pkg/logging/logging"
)

// identity is the caller as asserted by the upstream auth proxy. The
// gateway trusts X-Username and X-User-Role; anything but "manager"
// collapses to associate.
type identity struct {
	Username string
	Role     string
}

func (id identity) isManager() bool {
	return id.Role == cache.RoleManager
}

// callerIdentity reads the auth headers. An empty username means the
// request is unauthenticated and must be rejected.
func callerIdentity(r *http.Request) (identity, bool) {
	username := r.Header.Get("X-Username")
	if username == "" {
		return identity{}, false
	}
	role := cache.RoleAssociate
	if r.Header.Get("X-User-Role") == cache.RoleManager {
		role = cache.RoleManager
	}
	return identity{Username: username, Role: role}, true
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.L(r.Context()).Error("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]any{
		"success": false,
		"error":   msg,
	})
}
