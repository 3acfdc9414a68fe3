package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"hrpulse-gateway/internal/generator"
	"hrpulse-gateway/internal/tasks"
	"hrpulse-gateway/pkg/logging/logging"
)

// asyncHit is the immediate answer when an async initiate finds the
// response already cached. The sentinel task id tells the client there is
// nothing to poll.
type asyncHit struct {
	*generator.Response
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// ChatAsync handles POST /v1/chat/async. A cache hit answers inline; a
// miss registers a task and generates in the background.
func (h *ChatHandler) ChatAsync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := callerIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "Missing X-Username header")
		return
	}
	req, ok := decodeChatRequest(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "Query is required")
		return
	}

	if resp, hit := h.cache.Get(ctx, id.Username, req.Query, id.Role); hit {
		resp.Cached = true
		resp.ConversationID = conversationID(req)
		resp.MessageID = uuid.NewString()
		writeJSON(w, r, http.StatusOK, asyncHit{
			Response: resp,
			TaskID:   "cached",
			Status:   tasks.StatusCompleted,
		})
		return
	}

	taskID := tasks.NewTaskID()
	if err := h.tasks.Create(ctx, taskID, id.Username, req.Query); err != nil {
		logging.L(ctx).Error("task create failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "Failed to set task status")
		return
	}

	// The worker outlives the request: fresh context, same logger.
	bgCtx := logging.WithLogger(context.Background(), logging.L(ctx))
	go h.processChat(bgCtx, taskID, id, req.Query)

	writeJSON(w, r, http.StatusAccepted, map[string]any{
		"task_id": taskID,
		"status":  tasks.StatusProcessing,
		"message": "Chat processing initiated. Use the task_id to check status and retrieve response.",
		"success": true,
	})
}

// processChat is the background worker for one async chat task. Any panic
// lands in the task record instead of killing the process.
func (h *ChatHandler) processChat(ctx context.Context, taskID string, id identity, query string) {
	logger := logging.L(ctx)
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("chat task panicked",
				zap.String("task_id", taskID),
				zap.Any("panic", rec),
			)
			_ = h.tasks.Fail(ctx, taskID, id.Username, fmt.Sprintf("internal error: %v", rec))
		}
	}()

	h.tasks.UpdateProgress(ctx, taskID, "Gathering context data...")
	blob, err := h.contexts.GetOrFetch(ctx, id.Username, id.Role, func(ctx context.Context) ([]byte, error) {
		return h.provider.GetContext(ctx, id.Username, id.isManager())
	})
	if err != nil {
		_ = h.tasks.Fail(ctx, taskID, id.Username, "Failed to gather context data")
		return
	}
	if emptyContext(blob) {
		// Nothing to ground a response on. The task completed, but
		// there is no answer and nothing worth caching.
		_ = h.tasks.Complete(ctx, taskID, id.Username, map[string]any{
			"success": false,
			"error":   noContextMessage,
		})
		return
	}

	h.tasks.UpdateProgress(ctx, taskID, "Generating AI response...")
	resp, err := h.gen.Generate(ctx, query, blob)
	if err != nil {
		_ = h.tasks.Fail(ctx, taskID, id.Username, err.Error())
		return
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "Failed to generate AI response"
		}
		_ = h.tasks.Fail(ctx, taskID, id.Username, msg)
		return
	}

	h.cache.Set(ctx, id.Username, query, id.Role, resp)

	resp.Cached = false
	resp.ConversationID = uuid.NewString()
	resp.MessageID = uuid.NewString()
	_ = h.tasks.Complete(ctx, taskID, id.Username, resp)
}

// PollTask handles GET /v1/chat/tasks/{taskID}. Only the task owner may
// read it; an expired task is indistinguishable from one that never was.
func (h *ChatHandler) PollTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := callerIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "Missing X-Username header")
		return
	}

	taskID := chi.URLParam(r, "taskID")
	st, ok := h.tasks.Get(ctx, taskID)
	if !ok {
		writeError(w, r, http.StatusNotFound, "Task not found or expired")
		return
	}
	if st.UserID != id.Username {
		writeError(w, r, http.StatusForbidden, "Access denied")
		return
	}
	writeJSON(w, r, http.StatusOK, st)
}
