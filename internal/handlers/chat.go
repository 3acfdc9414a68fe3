package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hrpulse-gateway/internal/cache"
	"hrpulse-gateway/internal/generator"
	"hrpulse-gateway/internal/tasks"
	"hrpulse-gateway/pkg/logging/logging"
)

// noContextMessage is returned when the directory has nothing to ground a
// response on. It is never cached.
const noContextMessage = "No relevant information found for your query. Try rephrasing or asking about projects, employees, courses, or surveys."

// ContextProvider builds the visibility context blob handed to the
// generator. Implemented by directory.Provider.
type ContextProvider interface {
	GetContext(ctx context.Context, username string, isManager bool) ([]byte, error)
}

// ChatHandler serves synchronous and asynchronous chat generation with
// response caching in front of the generator.
type ChatHandler struct {
	cache    *cache.ResponseCache
	contexts *cache.ContextCache
	gen      generator.Client
	tasks    *tasks.Registry
	provider ContextProvider
}

func NewChatHandler(
	responses *cache.ResponseCache,
	contexts *cache.ContextCache,
	gen generator.Client,
	registry *tasks.Registry,
	provider ContextProvider,
) *ChatHandler {
	return &ChatHandler{
		cache:    responses,
		contexts: contexts,
		gen:      gen,
		tasks:    registry,
		provider: provider,
	}
}

type chatRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id,omitempty"`
}

func decodeChatRequest(r *http.Request) (chatRequest, bool) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return chatRequest{}, false
	}
	req.Query = strings.TrimSpace(req.Query)
	return req, req.Query != ""
}

// Chat handles POST /v1/chat. Cache first, generator on a miss.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

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
		writeJSON(w, r, http.StatusOK, resp)
		return
	}

	blob, err := h.contexts.GetOrFetch(ctx, id.Username, id.Role, func(ctx context.Context) ([]byte, error) {
		return h.provider.GetContext(ctx, id.Username, id.isManager())
	})
	if err != nil {
		logger.Error("context fetch failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "Failed to gather context data")
		return
	}
	if emptyContext(blob) {
		writeJSON(w, r, http.StatusOK, map[string]any{
			"success": false,
			"error":   noContextMessage,
		})
		return
	}

	resp, err := h.gen.Generate(ctx, req.Query, blob)
	if err != nil {
		logger.Error("generator call failed", zap.Error(err))
		writeError(w, r, http.StatusBadGateway, "Failed to generate AI response")
		return
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "Failed to generate AI response"
		}
		writeError(w, r, http.StatusBadGateway, msg)
		return
	}

	h.cache.Set(ctx, id.Username, req.Query, id.Role, resp)

	resp.Cached = false
	resp.ConversationID = conversationID(req)
	resp.MessageID = uuid.NewString()
	writeJSON(w, r, http.StatusOK, resp)
}

func conversationID(req chatRequest) string {
	if req.ConversationID != "" {
		return req.ConversationID
	}
	return uuid.NewString()
}

// emptyContext treats a nil, empty, or JSON-null blob as "nothing to say".
func emptyContext(blob []byte) bool {
	trimmed := strings.TrimSpace(string(blob))
	return trimmed == "" || trimmed == "null" || trimmed == "{}"
}
