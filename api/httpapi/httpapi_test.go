package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mem "travelkit/adapters/memory"
	"travelkit/analytics"
	"travelkit/catalog"
	"travelkit/core"
	"travelkit/engine"
)

func newTestService() *engine.TravelService {
	storage := mem.New()
	bus := engine.NewEventBus(engine.DispatchSync)
	rules := engine.DefaultRuleEngine()
	return engine.NewTravelService(storage, catalog.NewStatic(catalog.Default()), bus, rules, engine.ServiceOptions{})
}

func do(t *testing.T, h http.Handler, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRecordActivity(t *testing.T) {
	handler := NewMux(newTestService(), nil, Options{PathPrefix: "/api"})

	rec := do(t, handler, http.MethodPost, "/api/users/Alice/activity", map[string]any{"kind": "plan_created"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	p := decode[core.TravelProfile](t, rec)
	assert.Equal(t, core.UserID("alice"), p.UserID)
	assert.EqualValues(t, 15, p.TravelScore)
	require.Len(t, p.Achievements, 1)
	assert.Equal(t, core.AchievementFirstPlan, p.Achievements[0].ID)
}

func TestRecordActivityValidation(t *testing.T) {
	handler := NewMux(newTestService(), nil, Options{PathPrefix: "/api"})

	tests := []struct {
		name string
		body any
	}{
		{"unknown kind", map[string]any{"kind": "photo_uploaded"}},
		{"negative count", map[string]any{"kind": "story_shared", "count": -2}},
		{"visit without destination", map[string]any{"kind": "destination_visited"}},
		{"unknown destination", map[string]any{"kind": "destination_visited", "destination_id": "atlantis"}},
		{"unknown field", map[string]any{"kind": "plan_created", "points": 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, handler, http.MethodPost, "/api/users/alice/activity", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			e := decode[apiError](t, rec)
			assert.NotEmpty(t, e.Code)
		})
	}
}

func TestInvalidUser(t *testing.T) {
	handler := NewMux(newTestService(), nil, Options{PathPrefix: "/api"})

	rec := do(t, handler, http.MethodGet, "/api/users/%20", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", decode[apiError](t, rec).Code)
}

func TestGetUnknownUser(t *testing.T) {
	handler := NewMux(newTestService(), nil, Options{PathPrefix: "/api"})

	rec := do(t, handler, http.MethodGet, "/api/users/unknown", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[core.TravelProfile](t, rec)
	assert.Equal(t, core.LevelNewbie, p.Level.Name)
	assert.EqualValues(t, 0, p.TravelScore)
}

func TestUpdateAndImportProfile(t *testing.T) {
	handler := NewMux(newTestService(), nil, Options{PathPrefix: "/api"})

	rec := do(t, handler, http.MethodPatch, "/api/users/bob", map[string]any{
		"verified":    true,
		"preferences": map[string]any{"favorite_types": []string{"beach"}, "budget_range": "low"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 50, decode[core.TravelProfile](t, rec).TravelScore)

	rec = do(t, handler, http.MethodPatch, "/api/users/bob", map[string]any{
		"preferences": map[string]any{"budget_range": "luxury"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, handler, http.MethodPut, "/api/users/bob", core.ActivitySnapshot{
		Stats:       core.Stats{DestinationsVisited: 12, PlansCreated: 3, StoriesShared: 5, ReviewsWritten: 8},
		Verified:    true,
		TravelScore: 9999,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p := decode[core.TravelProfile](t, rec)
	assert.EqualValues(t, 315, p.TravelScore)
	assert.Equal(t, core.LevelWanderer, p.Level.Name)
}

func TestSimulate(t *testing.T) {
	handler := NewMux(newTestService(), nil, Options{PathPrefix: "/api"})

	rec := do(t, handler, http.MethodPost, "/api/score/simulate", core.ActivitySnapshot{
		Stats:                 core.Stats{DestinationsVisited: 2},
		VisitedDestinationIDs: []string{"nilgiri", "boga-lake"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[core.TravelProfile](t, rec)
	assert.EqualValues(t, 20, p.TravelScore)
	assert.True(t, p.HasAchievement(core.AchievementHillClimber))

	rec = do(t, handler, http.MethodPost, "/api/score/simulate", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStaticTables(t *testing.T) {
	handler := NewMux(newTestService(), nil, Options{})

	rec := do(t, handler, http.MethodGet, "/levels", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	levels := decode[[]map[string]any](t, rec)
	require.Len(t, levels, 5)
	assert.Nil(t, levels[4]["max_score"])

	rec = do(t, handler, http.MethodGet, "/achievements", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]core.Achievement](t, rec), 6)
}

func TestRecommendations(t *testing.T) {
	handler := NewMux(newTestService(), nil, Options{PathPrefix: "/api", DefaultLimit: 6})

	rec := do(t, handler, http.MethodGet, "/api/recommendations/destinations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]core.RankedDestination](t, rec), 6, "missing limit uses the default")

	rec = do(t, handler, http.MethodGet, "/api/recommendations/plans?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]core.RankedPlan](t, rec), 2)

	rec = do(t, handler, http.MethodGet, "/api/trending/destinations?limit=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	trending := decode[[]core.RankedDestination](t, rec)
	require.Len(t, trending, 3)
	assert.Equal(t, "coxs-bazar-beach", trending[0].ID)

	rec = do(t, handler, http.MethodGet, "/api/trending/plans?limit=bad", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_limit", decode[apiError](t, rec).Code)
}

func TestRecommendationsSkipVisited(t *testing.T) {
	svc := newTestService()
	handler := NewMux(svc, nil, Options{PathPrefix: "/api"})

	rec := do(t, handler, http.MethodPost, "/api/users/carol/activity", map[string]any{
		"kind": "destination_visited", "destination_id": "coxs-bazar-beach",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, handler, http.MethodGet, "/api/recommendations/destinations?user=carol&limit=50", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, d := range decode[[]core.RankedDestination](t, rec) {
		assert.NotEqual(t, "coxs-bazar-beach", d.ID)
	}
}

func TestLeaderboard(t *testing.T) {
	handler := NewMux(newTestService(), nil, Options{PathPrefix: "/api"})

	do(t, handler, http.MethodPost, "/api/users/a/activity", map[string]any{"kind": "plan_created", "count": 2})
	do(t, handler, http.MethodPost, "/api/users/b/activity", map[string]any{"kind": "review_written"})

	rec := do(t, handler, http.MethodGet, "/api/leaderboard?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]map[string]any](t, rec)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0]["user_id"])
	assert.EqualValues(t, 1, entries[0]["rank"])
}

func TestLeaderboardStanding(t *testing.T) {
	handler := NewMux(newTestService(), nil, Options{PathPrefix: "/api"})
	for _, u := range []string{"a", "b", "c"} {
		do(t, handler, http.MethodPost, "/api/users/"+u+"/activity", map[string]any{"kind": "story_shared"})
	}

	rec := do(t, handler, http.MethodGet, "/api/leaderboard/b?radius=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]map[string]any](t, rec)
	require.Len(t, entries, 3)
	assert.Equal(t, "b", entries[1]["user_id"])
	assert.EqualValues(t, 2, entries[1]["rank"])

	rec = do(t, handler, http.MethodGet, "/api/leaderboard/b?radius=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_radius")
}

type fixedSummary struct{ top int }

func (f *fixedSummary) Summary(topN int) analytics.Summary {
	f.top = topN
	return analytics.Summary{Day: "2026-10-16", DailyActiveUsers: 3}
}

func TestAnalyticsSummary(t *testing.T) {
	sum := &fixedSummary{}
	handler := NewMux(newTestService(), nil, Options{PathPrefix: "/api", Analytics: sum})

	rec := do(t, handler, http.MethodGet, "/api/analytics/summary?top=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, sum.top)
	assert.Equal(t, 3, decode[analytics.Summary](t, rec).DailyActiveUsers)

	rec = do(t, NewMux(newTestService(), nil, Options{}), http.MethodGet, "/analytics/summary", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotFoundAndMethod(t *testing.T) {
	handler := NewMux(newTestService(), nil, Options{PathPrefix: "/api"})

	rec := do(t, handler, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[apiError](t, rec).Code)

	rec = do(t, handler, http.MethodDelete, "/api/levels", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAPIKeyAuth(t *testing.T) {
	handler := NewMux(newTestService(), nil, Options{
		PathPrefix:  "/api",
		APIKeys:     []string{"secret"},
		CORSOrigins: []string{"*"},
	})

	rec := do(t, handler, http.MethodGet, "/api/users/alice", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, handler, http.MethodGet, "/api/users/alice", nil, "Authorization", "Bearer secret")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, handler, http.MethodGet, "/api/users/alice", nil, "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, handler, http.MethodGet, "/api/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health check is public")
}

func TestCORSPreflight(t *testing.T) {
	handler := NewMux(newTestService(), nil, Options{PathPrefix: "/api", CORSOrigins: []string{"https://travel.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/users/alice", nil)
	req.Header.Set("Origin", "https://travel.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://travel.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	handler := NewMux(newTestService(), nil, Options{
		PathPrefix:       "/api",
		APIKeys:          []string{"k"},
		RateLimitEnabled: true,
		RateLimitRPM:     1,
		RateLimitBurst:   1,
	})

	rec := do(t, handler, http.MethodGet, "/api/users/alice", nil, "X-API-Key", "k")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, handler, http.MethodGet, "/api/users/alice", nil, "X-API-Key", "k")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRateLimiterRefillAndSweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newRateLimiter(60, 1, time.Minute)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))

	now = now.Add(2 * time.Second)
	assert.True(t, l.allow("a"), "bucket refills at one token per second")

	assert.True(t, l.allow("b"))
	assert.Equal(t, 2, l.size())

	now = now.Add(2 * time.Minute)
	assert.True(t, l.allow("c"))
	assert.Equal(t, 1, l.size(), "idle buckets evicted")
}

type downStorage struct{ *mem.Store }

func (downStorage) GetSnapshot(context.Context, core.UserID) (core.ActivitySnapshot, error) {
	return core.ActivitySnapshot{}, errors.New("connection refused")
}

func TestHealthCheck(t *testing.T) {
	rec := do(t, NewMux(newTestService(), nil, Options{}), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]any](t, rec)["status"])

	svc := engine.NewTravelService(downStorage{mem.New()}, catalog.NewStatic(catalog.Default()),
		engine.NewEventBus(engine.DispatchSync), engine.DefaultRuleEngine(), engine.ServiceOptions{})
	handler := NewMux(svc, nil, Options{})

	rec = do(t, handler, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, handler, http.MethodGet, "/users/alice", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestMetricsMount(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("travelkit_events_total 1\n"))
	})
	handler := NewMux(newTestService(), nil, Options{PathPrefix: "/api", APIKeys: []string{"k"}, Metrics: metrics})

	rec := do(t, handler, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "travelkit_events_total"))
}
