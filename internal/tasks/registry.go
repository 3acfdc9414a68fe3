// Package tasks tracks long-running chat-generation jobs so a client can
// poll for completion independent of the response cache. The background
// worker is the only writer; the polling endpoint only reads.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hrpulse-gateway/internal/cache"
	"hrpulse-gateway/internal/metrics"
	"hrpulse-gateway/pkg/logging/logging"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const (
	maxQueryLen = 200
	maxErrorLen = 500
)

// Status is the pollable record for one background chat job. Terminal
// records keep the result (or a bounded error) merged in and expire after
// the retention window.
type Status struct {
	TaskID      string          `json:"task_id"`
	Status      string          `json:"status"`
	Progress    string          `json:"progress,omitempty"`
	UserID      string          `json:"user_id"`
	Query       string          `json:"query,omitempty"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at,omitempty"`
	CompletedAt string          `json:"completed_at,omitempty"`
	Error       string          `json:"error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// Terminal reports whether the task has finished, successfully or not.
func (s *Status) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// Registry stores task records in the shared cache store under
// chat_task:<id> keys. Records in flight live for the processing timeout;
// terminal records live for the (shorter) response retention.
type Registry struct {
	store             cache.Store
	processingTimeout time.Duration
	responseRetention time.Duration
}

func NewRegistry(store cache.Store, processingTimeout, responseRetention time.Duration) *Registry {
	if processingTimeout <= 0 {
		processingTimeout = 5 * time.Minute
	}
	if responseRetention <= 0 {
		responseRetention = time.Hour
	}
	return &Registry{
		store:             store,
		processingTimeout: processingTimeout,
		responseRetention: responseRetention,
	}
}

// NewTaskID returns a fresh unique task id.
func NewTaskID() string {
	return uuid.NewString()
}

// Create initializes a processing record. The stored query text is bounded
// so task records stay small.
func (r *Registry) Create(ctx context.Context, taskID, userID, query string) error {
	st := Status{
		TaskID:    taskID,
		Status:    StatusProcessing,
		Progress:  "Initializing...",
		UserID:    userID,
		Query:     clip(query, maxQueryLen),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := r.write(ctx, taskID, &st, r.processingTimeout); err != nil {
		return fmt.Errorf("create task %s: %w", taskID, err)
	}
	return nil
}

// UpdateProgress merges a new progress message into a processing record and
// refreshes its TTL. Best-effort: an absent or unreachable record is logged
// and skipped, the worker keeps going.
func (r *Registry) UpdateProgress(ctx context.Context, taskID, progress string) {
	logger := logging.L(ctx)

	st, ok := r.Get(ctx, taskID)
	if !ok {
		logger.Warn("progress update for unknown task", zap.String("task_id", taskID))
		return
	}
	st.Progress = progress
	st.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	if err := r.write(ctx, taskID, st, r.processingTimeout); err != nil {
		logger.Warn("progress update failed", zap.String("task_id", taskID), zap.Error(err))
	}
}

// Complete overwrites the record with a completed terminal state carrying
// the result payload. The owner is written unconditionally: the processing
// record may have expired while generation ran, and a terminal record
// without its owner would lock the user out of the result.
func (r *Registry) Complete(ctx context.Context, taskID, userID string, result any) error {
	st, ok := r.Get(ctx, taskID)
	if !ok {
		st = &Status{TaskID: taskID}
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal task result: %w", err)
	}

	st.UserID = userID
	st.Status = StatusCompleted
	st.Progress = ""
	st.Error = ""
	st.Result = payload
	st.CompletedAt = time.Now().UTC().Format(time.RFC3339)

	if err := r.write(ctx, taskID, st, r.responseRetention); err != nil {
		return fmt.Errorf("complete task %s: %w", taskID, err)
	}
	metrics.TasksFinishedTotal.WithLabelValues(StatusCompleted).Inc()
	return nil
}

// Fail overwrites the record with a failed terminal state. The error text
// is bounded so a pathological failure can't bloat the store.
func (r *Registry) Fail(ctx context.Context, taskID, userID, errMsg string) error {
	st, ok := r.Get(ctx, taskID)
	if !ok {
		st = &Status{TaskID: taskID}
	}
	st.UserID = userID
	st.Status = StatusFailed
	st.Progress = ""
	st.Result = nil
	st.Error = clip(errMsg, maxErrorLen)
	st.CompletedAt = time.Now().UTC().Format(time.RFC3339)

	if err := r.write(ctx, taskID, st, r.responseRetention); err != nil {
		return fmt.Errorf("fail task %s: %w", taskID, err)
	}
	metrics.TasksFinishedTotal.WithLabelValues(StatusFailed).Inc()
	return nil
}

// Get returns the task record, or false when it never existed or has
// expired. Callers cannot tell those two apart and should not try.
func (r *Registry) Get(ctx context.Context, taskID string) (*Status, bool) {
	raw, ok, err := r.store.Get(ctx, cache.TaskKey(taskID))
	if err != nil {
		logging.L(ctx).Warn("task read failed", zap.String("task_id", taskID), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var st Status
	if err := json.Unmarshal(raw, &st); err != nil {
		logging.L(ctx).Warn("task record corrupt", zap.String("task_id", taskID), zap.Error(err))
		return nil, false
	}
	return &st, true
}

func (r *Registry) write(ctx context.Context, taskID string, st *Status, ttl time.Duration) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, cache.TaskKey(taskID), payload, ttl)
}

// clip bounds s to max bytes without splitting a rune.
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
