package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"hrpulse-gateway/internal/cache"
	"hrpulse-gateway/pkg/logging/logging"
)

// CacheAdminHandler exposes per-user cache introspection and eviction.
// Callers only ever see and clear their own entries.
type CacheAdminHandler struct {
	cache *cache.ResponseCache
}

func NewCacheAdminHandler(responses *cache.ResponseCache) *CacheAdminHandler {
	return &CacheAdminHandler{cache: responses}
}

// Stats handles GET /v1/cache/stats.
func (h *CacheAdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "Missing X-Username header")
		return
	}
	writeJSON(w, r, http.StatusOK, h.cache.Stats(r.Context(), id.Username))
}

// Clear handles DELETE /v1/cache.
func (h *CacheAdminHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := callerIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "Missing X-Username header")
		return
	}
	if err := h.cache.InvalidateUser(ctx, id.Username); err != nil {
		logging.L(ctx).Error("cache clear failed",
			zap.String("username", id.Username),
			zap.Error(err),
		)
		writeError(w, r, http.StatusInternalServerError, "Failed to clear cache")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"success": true,
		"message": "Cache cleared for user " + id.Username,
	})
}
