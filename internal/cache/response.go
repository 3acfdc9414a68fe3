package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"hrpulse-gateway/internal/generator"
	"hrpulse-gateway/internal/metrics"
	"hrpulse-gateway/pkg/logging/logging"
)

// RecentQuery is one entry in a user's recency-ordered query list. The list
// is the index the similarity lookup scans and the invalidation primitives
// walk to find a user's live response keys.
type RecentQuery struct {
	RawQuery  string  `json:"raw_query"`
	Timestamp float64 `json:"timestamp"` // unix seconds
	CacheKey  string  `json:"cache_key"`
}

// ResponseCacheConfig carries the tunables for the response cache.
type ResponseCacheConfig struct {
	ResponseTTL         time.Duration // default 6h
	SimilarityThreshold float64       // default 0.85
	RecentCapacity      int           // default 20
}

func (c ResponseCacheConfig) withDefaults() ResponseCacheConfig {
	if c.ResponseTTL <= 0 {
		c.ResponseTTL = 6 * time.Hour
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = 0.85
	}
	if c.RecentCapacity <= 0 {
		c.RecentCapacity = 20
	}
	return c
}

// ResponseCache wraps the expensive answer generator. It answers "is a
// previously generated answer still good for this query" without a database
// round trip, and gives the invalidation router surgical eviction
// primitives. Every store failure here degrades to a miss or a no-op; the
// generator is the source of truth and a broken cache must never break a
// request.
type ResponseCache struct {
	store   Store
	matcher Matcher
	cfg     ResponseCacheConfig
}

func NewResponseCache(store Store, matcher Matcher, cfg ResponseCacheConfig) *ResponseCache {
	if matcher == nil {
		matcher = TokenMatcher{}
	}
	return &ResponseCache{
		store:   store,
		matcher: matcher,
		cfg:     cfg.withDefaults(),
	}
}

// Get looks up a cached answer for (username, query, role). It tries the
// exact key first, then scans the user's recent queries most-recent-first
// for one similar enough to reuse. A similarity candidate whose own entry
// has already expired is skipped, not an error: the recent list may briefly
// reference a key that no longer exists.
func (c *ResponseCache) Get(ctx context.Context, username, query, role string) (*generator.Response, bool) {
	logger := logging.L(ctx)

	key := ResponseKey(username, query, role)
	if resp, ok := c.load(ctx, key); ok {
		metrics.ResponseHitsTotal.WithLabelValues("exact").Inc()
		logger.Info("response_cache_hit",
			zap.String("tier", "exact"),
			zap.String("username", username),
			zap.String("role", role),
		)
		return resp, true
	}

	for _, recent := range c.recentList(ctx, username) {
		// entries cached under another role answer a different visibility
		// scope; never reuse them
		if !strings.HasSuffix(recent.CacheKey, ":"+role) {
			continue
		}
		score := c.matcher.Similarity(query, recent.RawQuery)
		if score < c.cfg.SimilarityThreshold {
			continue
		}
		if resp, ok := c.load(ctx, recent.CacheKey); ok {
			metrics.ResponseHitsTotal.WithLabelValues("similar").Inc()
			logger.Info("response_cache_hit",
				zap.String("tier", "similar"),
				zap.String("username", username),
				zap.String("role", role),
				zap.Float64("similarity", score),
			)
			return resp, true
		}
	}

	metrics.ResponseMissesTotal.Inc()
	return nil, false
}

// ShouldCache reports whether a generator response earned a cache slot.
// Failed responses and empty answers are never cached: caching "no data"
// would wrongly suppress a correct retry once data becomes available.
func ShouldCache(resp *generator.Response) bool {
	if resp == nil || !resp.Success {
		return false
	}
	for _, ds := range resp.Dataset {
		if ds.HasRows() {
			return true
		}
	}
	if len(resp.Dataset) == 0 && !resp.Insights.Empty() {
		return true
	}
	return false
}

// Set caches a generated answer if it is cache-worthy, then records the
// query in the user's recent list. Per-call fields (conversation id,
// message id, cached flag) are stripped so a later hit can fill in its own.
func (c *ResponseCache) Set(ctx context.Context, username, query, role string, resp *generator.Response) {
	logger := logging.L(ctx)

	if !ShouldCache(resp) {
		metrics.ResponseRejectedTotal.Inc()
		logger.Info("response_not_cache_worthy",
			zap.String("username", username),
			zap.String("role", role),
		)
		return
	}

	stored := *resp
	stored.ConversationID = ""
	stored.MessageID = ""
	stored.Cached = false

	payload, err := json.Marshal(&stored)
	if err != nil {
		logger.Warn("response_cache_marshal_error", zap.Error(err))
		return
	}

	key := ResponseKey(username, query, role)
	if err := c.store.Set(ctx, key, payload, c.cfg.ResponseTTL); err != nil {
		logger.Warn("response_cache_set_error", zap.Error(err))
		return
	}
	metrics.ResponseSetsTotal.Inc()

	c.pushRecent(ctx, username, query, key)
}

// InvalidateUser evicts everything cached for a user: each response key in
// the recent list, the list itself, and both context variants.
func (c *ResponseCache) InvalidateUser(ctx context.Context, username string) error {
	respErr := c.InvalidateResponses(ctx, username)
	ctxErr := c.InvalidateContext(ctx, username)
	if respErr != nil {
		return respErr
	}
	return ctxErr
}

// InvalidateContext evicts only the user's cached visibility contexts
// (manager and associate variants). Used when what a user may see changes
// but previously cached answers remain textually valid.
func (c *ResponseCache) InvalidateContext(ctx context.Context, username string) error {
	var firstErr error
	deleted := 0
	for _, role := range Roles() {
		if err := c.store.Delete(ctx, ContextKey(username, role)); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		deleted++
	}
	metrics.InvalidatedKeysTotal.WithLabelValues("context").Add(float64(deleted))
	if firstErr != nil {
		logging.L(ctx).Warn("context_invalidate_error",
			zap.String("username", username),
			zap.Error(firstErr),
		)
	}
	return firstErr
}

// InvalidateResponses evicts every response key in the user's recent list
// plus the list itself. The context cache is untouched: visibility rules
// didn't change, only the underlying facts did.
func (c *ResponseCache) InvalidateResponses(ctx context.Context, username string) error {
	var firstErr error
	deleted := 0
	for _, recent := range c.recentList(ctx, username) {
		if err := c.store.Delete(ctx, recent.CacheKey); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		deleted++
	}
	if err := c.store.Delete(ctx, RecentQueriesKey(username)); err != nil {
		if firstErr == nil {
			firstErr = err
		}
	} else {
		deleted++
	}
	metrics.InvalidatedKeysTotal.WithLabelValues("responses").Add(float64(deleted))
	if firstErr != nil {
		logging.L(ctx).Warn("response_invalidate_error",
			zap.String("username", username),
			zap.Error(firstErr),
		)
	}
	return firstErr
}

// UserStats summarizes what the cache currently holds for one user.
type UserStats struct {
	Username      string          `json:"username"`
	RecentQueries int             `json:"recent_queries"`
	LiveResponses int             `json:"live_responses"`
	ContextCached map[string]bool `json:"context_cached"`
}

// Stats probes the user's recent list and context keys. Read-only.
func (c *ResponseCache) Stats(ctx context.Context, username string) UserStats {
	stats := UserStats{
		Username:      username,
		ContextCached: make(map[string]bool, 2),
	}
	for _, recent := range c.recentList(ctx, username) {
		stats.RecentQueries++
		if _, ok, err := c.store.Get(ctx, recent.CacheKey); err == nil && ok {
			stats.LiveResponses++
		}
	}
	for _, role := range Roles() {
		_, ok, err := c.store.Get(ctx, ContextKey(username, role))
		stats.ContextCached[role] = err == nil && ok
	}
	return stats
}

// load fetches and decodes one cached response. Store errors and corrupt
// payloads both count as misses; a corrupt key is overwritten by the next
// successful Set for the same query.
func (c *ResponseCache) load(ctx context.Context, key string) (*generator.Response, bool) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		logging.L(ctx).Warn("response_cache_get_error", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var resp generator.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		logging.L(ctx).Warn("response_cache_unmarshal_error",
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, false
	}
	return &resp, true
}

// recentList loads the user's recent-query list. Absent, unreachable and
// corrupt all come back as an empty list.
func (c *ResponseCache) recentList(ctx context.Context, username string) []RecentQuery {
	raw, ok, err := c.store.Get(ctx, RecentQueriesKey(username))
	if err != nil {
		logging.L(ctx).Warn("recent_queries_get_error", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	var list []RecentQuery
	if err := json.Unmarshal(raw, &list); err != nil {
		logging.L(ctx).Warn("recent_queries_unmarshal_error", zap.Error(err))
		return nil
	}
	return list
}

// pushRecent prepends a freshly cached query to the user's recent list,
// drops any older entry with the exact same raw query, and truncates to
// capacity. Only called after a successful response write.
func (c *ResponseCache) pushRecent(ctx context.Context, username, query, cacheKey string) {
	list := c.recentList(ctx, username)

	updated := make([]RecentQuery, 0, len(list)+1)
	updated = append(updated, RecentQuery{
		RawQuery:  query,
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
		CacheKey:  cacheKey,
	})
	for _, entry := range list {
		if entry.RawQuery == query {
			continue
		}
		updated = append(updated, entry)
	}
	if len(updated) > c.cfg.RecentCapacity {
		updated = updated[:c.cfg.RecentCapacity]
	}

	payload, err := json.Marshal(updated)
	if err != nil {
		logging.L(ctx).Warn("recent_queries_marshal_error", zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, RecentQueriesKey(username), payload, c.cfg.ResponseTTL); err != nil {
		logging.L(ctx).Warn("recent_queries_set_error", zap.Error(err))
	}
}
