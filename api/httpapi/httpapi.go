package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	wsadapter "travelkit/adapters/websocket"
	"travelkit/analytics"
	"travelkit/core"
	"travelkit/engine"
	"travelkit/realtime"
)

const maxBodyBytes = 1 << 20

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// CORSOrigins enables CORS for the listed origins ("*" for any). Empty disables CORS.
	CORSOrigins []string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// RateLimitCleanup evicts buckets idle for longer than this. Zero keeps them forever.
	RateLimitCleanup time.Duration
	// DefaultLimit is used when a list endpoint gets no limit parameter.
	DefaultLimit int
	// Metrics, if set, is mounted at MetricsPath outside the prefix and auth.
	Metrics     http.Handler
	MetricsPath string
	// Analytics backs GET /analytics/summary when set.
	Analytics SummaryProvider
	Logger    *slog.Logger
}

// SummaryProvider reports aggregated KPIs.
type SummaryProvider interface {
	Summary(topN int) analytics.Summary
}

type api struct {
	svc          *engine.TravelService
	defaultLimit int
	analytics    SummaryProvider
	logger       *slog.Logger
}

// NewMux builds an http.Handler exposing the travel REST API and WebSocket stream.
// Routes (relative to PathPrefix):
//   - GET   /healthz
//   - GET   /users/{id}
//   - PUT   /users/{id}
//   - PATCH /users/{id}
//   - POST  /users/{id}/activity
//   - POST  /score/simulate
//   - GET   /levels
//   - GET   /achievements
//   - GET   /recommendations/destinations?user=&limit=
//   - GET   /recommendations/plans?user=&limit=
//   - GET   /trending/destinations?limit=
//   - GET   /trending/plans?limit=
//   - GET   /leaderboard?limit=
//   - GET   /leaderboard/{id}?radius=
//   - GET   /analytics/summary?top=
//   - WS    /ws?user=&types=
func NewMux(svc *engine.TravelService, hub *realtime.Hub, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a := &api{svc: svc, defaultLimit: opts.DefaultLimit, analytics: opts.Analytics, logger: logger}
	if a.defaultLimit <= 0 {
		a.defaultLimit = 6
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(logger), middleware.Recoverer)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Authorization", "X-API-Key"},
			MaxAge:         300,
		}))
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})

	if opts.Metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, opts.Metrics)
	}

	routes := func(r chi.Router) {
		r.Get("/healthz", a.healthCheck)

		r.Group(func(r chi.Router) {
			if len(opts.APIKeys) > 0 {
				r.Use(apiKeyAuth(opts.APIKeys))
			}
			if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
				r.Use(rateLimit(newRateLimiter(opts.RateLimitRPM, opts.RateLimitBurst, opts.RateLimitCleanup)))
			}

			r.Route("/users/{id}", func(r chi.Router) {
				r.Get("/", a.getProfile)
				r.Put("/", a.importSnapshot)
				r.Patch("/", a.updateProfile)
				r.Post("/activity", a.recordActivity)
			})
			r.Post("/score/simulate", a.simulate)
			r.Get("/levels", a.levels)
			r.Get("/achievements", a.achievements)
			r.Get("/recommendations/destinations", a.recommendDestinations)
			r.Get("/recommendations/plans", a.recommendPlans)
			r.Get("/trending/destinations", a.trendingDestinations)
			r.Get("/trending/plans", a.trendingPlans)
			r.Get("/leaderboard", a.leaderboard)
			r.Get("/leaderboard/{id}", a.standing)
			if a.analytics != nil {
				r.Get("/analytics/summary", a.analyticsSummary)
			}
			if hub != nil {
				r.Handle("/ws", wsadapter.Handler(hub, logger))
			}
		})
	}

	prefix := strings.TrimSuffix(opts.PathPrefix, "/")
	if prefix == "" {
		routes(r)
	} else {
		r.Route(prefix, routes)
	}
	return r
}

// healthCheck verifies the service is working properly
func (a *api) healthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status": "healthy",
		"checks": map[string]any{
			"storage": "ok",
		},
	}

	if err := a.svc.Ping(r.Context()); err != nil {
		a.logger.Warn("health check failed", "error", err)
		status["status"] = "unhealthy"
		status["checks"].(map[string]any)["storage"] = "failed"
		writeJSONStatus(w, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, status)
}

func (a *api) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := a.svc.Profile(r.Context(), userParam(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (a *api) importSnapshot(w http.ResponseWriter, r *http.Request) {
	var snap core.ActivitySnapshot
	if !decodeBody(w, r, &snap) {
		return
	}
	snap.UserID = userParam(r)
	p, err := a.svc.ImportSnapshot(r.Context(), snap)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (a *api) updateProfile(w http.ResponseWriter, r *http.Request) {
	var upd engine.ProfileUpdate
	if !decodeBody(w, r, &upd) {
		return
	}
	p, err := a.svc.UpdateProfile(r.Context(), userParam(r), upd)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (a *api) recordActivity(w http.ResponseWriter, r *http.Request) {
	var act engine.Activity
	if !decodeBody(w, r, &act) {
		return
	}
	p, err := a.svc.RecordActivity(r.Context(), userParam(r), act)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (a *api) simulate(w http.ResponseWriter, r *http.Request) {
	var snap core.ActivitySnapshot
	if !decodeBody(w, r, &snap) {
		return
	}
	writeJSON(w, a.svc.Simulate(snap))
}

func (a *api) levels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, core.Levels())
}

func (a *api) achievements(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, a.svc.Achievements())
}

func (a *api) recommendDestinations(w http.ResponseWriter, r *http.Request) {
	limit, ok := a.limitParam(w, r)
	if !ok {
		return
	}
	out, err := a.svc.RecommendDestinations(r.Context(), core.UserID(r.URL.Query().Get("user")), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, out)
}

func (a *api) recommendPlans(w http.ResponseWriter, r *http.Request) {
	limit, ok := a.limitParam(w, r)
	if !ok {
		return
	}
	out, err := a.svc.RecommendPlans(r.Context(), core.UserID(r.URL.Query().Get("user")), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, out)
}

func (a *api) trendingDestinations(w http.ResponseWriter, r *http.Request) {
	limit, ok := a.limitParam(w, r)
	if !ok {
		return
	}
	out, err := a.svc.TrendingDestinations(r.Context(), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, out)
}

func (a *api) trendingPlans(w http.ResponseWriter, r *http.Request) {
	limit, ok := a.limitParam(w, r)
	if !ok {
		return
	}
	out, err := a.svc.TrendingPlans(r.Context(), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, out)
}

func (a *api) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, ok := a.limitParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, a.svc.Leaderboard(limit))
}

func (a *api) standing(w http.ResponseWriter, r *http.Request) {
	radius := 2
	if raw := r.URL.Query().Get("radius"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_radius", "radius must be a non-negative integer", map[string]any{"radius": raw})
			return
		}
		radius = n
	}
	out, err := a.svc.Standing(r.Context(), userParam(r), radius)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, out)
}

func (a *api) analyticsSummary(w http.ResponseWriter, r *http.Request) {
	top := 5
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_top", "top must be a non-negative integer", nil)
			return
		}
		top = n
	}
	writeJSON(w, a.analytics.Summary(top))
}

// limitParam reads ?limit=. Missing or zero selects the default.
func (a *api) limitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return a.defaultLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer", map[string]any{"limit": raw})
		return 0, false
	}
	if n == 0 {
		return a.defaultLimit, true
	}
	return n, true
}

// fail maps service errors onto status codes.
func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, engine.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}
	a.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal", "internal error", nil)
}

func userParam(r *http.Request) core.UserID {
	return core.UserID(chi.URLParam(r, "id"))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON", map[string]any{"error": err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	writeJSONStatus(w, status, apiError{Code: code, Message: msg, Details: details})
}
