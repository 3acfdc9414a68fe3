package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hrpulse-gateway/internal/cache"
	"hrpulse-gateway/internal/directory"
	"hrpulse-gateway/internal/invalidation"
)

type eventsFixture struct {
	handler   *EventsHandler
	responses *cache.ResponseCache
	store     cache.Store
}

func newEventsFixture(t *testing.T) *eventsFixture {
	t.Helper()
	store := cache.NewMemoryStore(time.Minute)
	t.Cleanup(func() { store.Close() })

	mirror, err := directory.Open(":memory:")
	if err != nil {
		t.Fatalf("open directory: %v", err)
	}
	t.Cleanup(func() { mirror.Close() })

	responses := cache.NewResponseCache(store, cache.TokenMatcher{}, cache.ResponseCacheConfig{
		ResponseTTL:         time.Minute,
		SimilarityThreshold: 0.85,
		RecentCapacity:      20,
	})
	router := invalidation.NewRouter(mirror, responses)
	return &eventsFixture{
		handler:   NewEventsHandler(router, mirror),
		responses: responses,
		store:     store,
	}
}

func (f *eventsFixture) post(t *testing.T, ev changeEvent) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/events", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.handler.Ingest(rr, req)
	return rr
}

func (f *eventsFixture) mustAccept(t *testing.T, ev changeEvent) {
	t.Helper()
	if rr := f.post(t, ev); rr.Code != http.StatusAccepted {
		t.Fatalf("event %+v status = %d, want 202", ev, rr.Code)
	}
}

// seedUser caches one response and one context blob for a user.
func (f *eventsFixture) seedUser(t *testing.T, username, role string) {
	t.Helper()
	ctx := context.Background()
	f.responses.Set(ctx, username, "show team risk", role, successResponse())
	key := cache.ContextKey(username, role)
	if err := f.store.Set(ctx, key, []byte(`{"seeded":true}`), time.Minute); err != nil {
		t.Fatalf("seed context for %s: %v", username, err)
	}
}

func (f *eventsFixture) hasResponse(t *testing.T, username, role string) bool {
	t.Helper()
	_, ok := f.responses.Get(context.Background(), username, "show team risk", role)
	return ok
}

func (f *eventsFixture) hasContext(t *testing.T, username, role string) bool {
	t.Helper()
	_, ok, err := f.store.Get(context.Background(), cache.ContextKey(username, role))
	if err != nil {
		t.Fatalf("context probe for %s: %v", username, err)
	}
	return ok
}

func TestEventsProfileChangeEvictsUserAndManager(t *testing.T) {
	f := newEventsFixture(t)

	// Org setup arrives as events too: the mirror learns mary manages alice.
	f.mustAccept(t, changeEvent{Entity: "employee_profile", Username: "mary", IsManager: true})
	f.mustAccept(t, changeEvent{Entity: "employee_profile", Username: "alice", Manager: "mary"})

	f.seedUser(t, "alice", cache.RoleAssociate)
	f.seedUser(t, "mary", cache.RoleManager)
	f.seedUser(t, "bob", cache.RoleAssociate)

	f.mustAccept(t, changeEvent{Entity: "employee_profile", Username: "alice", Manager: "mary"})

	if f.hasResponse(t, "alice", cache.RoleAssociate) || f.hasContext(t, "alice", cache.RoleAssociate) {
		t.Fatal("alice's cache should be evicted after her profile changed")
	}
	if f.hasResponse(t, "mary", cache.RoleManager) || f.hasContext(t, "mary", cache.RoleManager) {
		t.Fatal("mary's cache should be evicted as alice's manager")
	}
	if !f.hasResponse(t, "bob", cache.RoleAssociate) {
		t.Fatal("bob is unrelated and must keep his cache")
	}
}

func TestEventsAllocationUpdatesMirrorAndEvicts(t *testing.T) {
	f := newEventsFixture(t)

	f.mustAccept(t, changeEvent{Entity: "employee_profile", Username: "alice"})
	f.mustAccept(t, changeEvent{Entity: "project_allocation", Username: "alice", ProjectID: 7})

	f.seedUser(t, "alice", cache.RoleAssociate)

	// A later project-level change reaches alice through the mirror.
	f.mustAccept(t, changeEvent{Entity: "project", ProjectID: 7})
	if f.hasResponse(t, "alice", cache.RoleAssociate) {
		t.Fatal("project change should evict users allocated to it")
	}

	// Deallocation removes the edge; further project changes miss her.
	f.mustAccept(t, changeEvent{Entity: "project_allocation", Username: "alice", ProjectID: 7, Deleted: true})
	f.seedUser(t, "alice", cache.RoleAssociate)
	f.mustAccept(t, changeEvent{Entity: "project", ProjectID: 7})
	if !f.hasResponse(t, "alice", cache.RoleAssociate) {
		t.Fatal("deallocated user must not be evicted by project changes")
	}
}

func TestEventsCourseChangeKeepsResponses(t *testing.T) {
	f := newEventsFixture(t)

	f.mustAccept(t, changeEvent{Entity: "employee_profile", Username: "mary", IsManager: true})
	f.seedUser(t, "mary", cache.RoleManager)

	// Course changes refresh manager contexts but cached answers stand.
	f.mustAccept(t, changeEvent{Entity: "course"})
	if f.hasContext(t, "mary", cache.RoleManager) {
		t.Fatal("course change should evict manager contexts")
	}
	if !f.hasResponse(t, "mary", cache.RoleManager) {
		t.Fatal("course change must not evict cached responses")
	}
}

func TestEventsRejectsMalformed(t *testing.T) {
	f := newEventsFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/events", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	f.handler.Ingest(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d, want 400", rr.Code)
	}

	if rr := f.post(t, changeEvent{Entity: "weather_report"}); rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown entity status = %d, want 400", rr.Code)
	}

	if rr := f.post(t, changeEvent{Entity: "employee_profile"}); rr.Code != http.StatusBadRequest {
		t.Fatalf("profile event without username status = %d, want 400", rr.Code)
	}
}
