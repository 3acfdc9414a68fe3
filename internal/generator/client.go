package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	maxRequestSize = 2 * 1024 * 1024 // 2MB total JSON payload
	maxQuerySize   = 8 * 1024        // 8KB per query text
)

// generateRequest is the wire format sent to the answer generator service.
type generateRequest struct {
	Query   string          `json:"query"`
	Context json.RawMessage `json:"context,omitempty"`
}

// Generate asks the answer generator for a structured analytics answer.
// The context blob is the user's cached visibility context; the generator
// treats it as the ground truth for what data the answer may draw on.
func (c *client) Generate(parentCtx context.Context, query string, contextBlob []byte) (*Response, error) {
	start := time.Now()

	if query == "" {
		return nil, fmt.Errorf("generator: query is empty")
	}
	if len(query) > maxQuerySize {
		return nil, fmt.Errorf("generator: query too large (%d bytes, max %d)", len(query), maxQuerySize)
	}

	c.logger.Debug("generate request starting",
		zap.Int("query_len", len(query)),
		zap.Int("context_len", len(contextBlob)),
	)

	// Per-request timeout (0 = only use parentCtx)
	var ctx context.Context
	var cancel context.CancelFunc
	if c.cfg.UpstreamTimeout > 0 {
		ctx, cancel = context.WithTimeout(parentCtx, c.cfg.UpstreamTimeout)
	} else {
		ctx, cancel = context.WithCancel(parentCtx)
	}
	defer cancel()

	gReq := generateRequest{
		Query:   query,
		Context: contextBlob,
	}

	bodyBytes, err := json.Marshal(gReq)
	if err != nil {
		return nil, fmt.Errorf("generator: marshal request: %w", err)
	}

	if len(bodyBytes) > maxRequestSize {
		return nil, fmt.Errorf(
			"generator: request too large (%d bytes, max %d)",
			len(bodyBytes), maxRequestSize,
		)
	}

	url := c.cfg.BaseURL + "/v1/generate"

	// doOnce builds a fresh *http.Request for each attempt
	doOnce := func(ctx context.Context, body []byte) (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("generator: build HTTP request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		httpReq.Header.Set("Content-Type", "application/json")
		return c.httpClient.Do(httpReq)
	}

	resp, err := c.doWithRetry(ctx, bodyBytes, doOnce)
	if err != nil {
		c.logger.Error("generate request failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return nil, err
	}
	defer resp.Body.Close()

	// Handle non-2xx responses
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Error("generator upstream error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(body), 200)),
		)
		return nil, fmt.Errorf("generator: upstream %d: %s",
			resp.StatusCode, truncate(string(body), 200))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("generator: decode upstream response: %w", err)
	}

	c.logger.Info("generate request completed",
		zap.Bool("success", out.Success),
		zap.Int("components", len(out.Components)),
		zap.Int("datasets", len(out.Dataset)),
		zap.Duration("duration", time.Since(start)),
	)

	return &out, nil
}

// truncate limits string length for logging
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
