package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"hrpulse-gateway/internal/directory"
	"hrpulse-gateway/internal/invalidation"
	"hrpulse-gateway/pkg/logging/logging"
)

// EventsHandler ingests change events from the HR system of record. Each
// event first updates the local org mirror, then routes cache invalidation
// for the users the change affects.
type EventsHandler struct {
	router *invalidation.Router
	mirror *directory.SQLite
}

func NewEventsHandler(router *invalidation.Router, mirror *directory.SQLite) *EventsHandler {
	return &EventsHandler{router: router, mirror: mirror}
}

// changeEvent is the wire form of one committed mutation upstream.
type changeEvent struct {
	Entity    string `json:"entity"`
	Username  string `json:"username,omitempty"`
	Manager   string `json:"manager,omitempty"`
	IsManager bool   `json:"is_manager,omitempty"`
	ProjectID int64  `json:"project_id,omitempty"`
	Assignee  string `json:"assignee,omitempty"`
	Deleted   bool   `json:"deleted,omitempty"`
}

// Ingest handles POST /v1/events. The mirror update happens before routing
// so invalidation sees post-change org structure. Eviction is best-effort;
// the event is acknowledged either way.
func (h *EventsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

	var ev changeEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid event payload")
		return
	}
	kind := invalidation.Kind(ev.Entity)
	if !kind.Known() {
		writeError(w, r, http.StatusBadRequest, "Unknown entity kind")
		return
	}

	switch kind {
	case invalidation.KindEmployeeProfile:
		if ev.Username == "" {
			writeError(w, r, http.StatusBadRequest, "Username is required")
			return
		}
		if !ev.Deleted {
			if err := h.mirror.UpsertEmployee(ctx, ev.Username, ev.Manager, ev.IsManager); err != nil {
				logger.Error("mirror upsert failed", zap.Error(err))
				writeError(w, r, http.StatusInternalServerError, "Failed to record change")
				return
			}
		}
	case invalidation.KindProjectAllocation:
		if ev.Username == "" || ev.ProjectID == 0 {
			writeError(w, r, http.StatusBadRequest, "Username and project_id are required")
			return
		}
		var err error
		if ev.Deleted {
			err = h.mirror.Deallocate(ctx, ev.ProjectID, ev.Username)
		} else {
			err = h.mirror.Allocate(ctx, ev.ProjectID, ev.Username)
		}
		if err != nil {
			logger.Error("mirror allocation update failed", zap.Error(err))
			writeError(w, r, http.StatusInternalServerError, "Failed to record change")
			return
		}
	}

	h.router.OnChange(ctx, invalidation.Change{
		Kind:      kind,
		Username:  ev.Username,
		ProjectID: ev.ProjectID,
		Assignee:  ev.Assignee,
	})

	writeJSON(w, r, http.StatusAccepted, map[string]any{"success": true})
}
