// Package travel assembles a ready-to-use TravelService from optional parts.
package travel

import (
	"context"
	"log/slog"

	mem "travelkit/adapters/memory"
	"travelkit/catalog"
	"travelkit/core"
	"travelkit/engine"
	"travelkit/leaderboard"
	"travelkit/realtime"
)

// Hook observes every event the service publishes.
type Hook interface {
	OnEvent(e core.Event)
}

// Option configures the TravelService builder.
type Option func(*config)

type config struct {
	storage   engine.Storage
	catalog   catalog.Provider
	mode      engine.DispatchMode
	rules     engine.RuleEngine
	evaluator *core.Evaluator
	board     leaderboard.Board
	hub       *realtime.Hub
	hooks     []Hook
	logger    *slog.Logger
	maxLimit  int
}

// WithStorage sets the persistence adapter.
func WithStorage(s engine.Storage) Option { return func(c *config) { c.storage = s } }

// WithCatalog sets the destination and plan source.
func WithCatalog(p catalog.Provider) Option { return func(c *config) { c.catalog = p } }

// WithRuleEngine sets the rule engine.
func WithRuleEngine(r engine.RuleEngine) Option { return func(c *config) { c.rules = r } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithEvaluator replaces the built-in achievement table.
func WithEvaluator(e *core.Evaluator) Option { return func(c *config) { c.evaluator = e } }

// WithLeaderboard sets the board updated on every profile change.
func WithLeaderboard(b leaderboard.Board) Option { return func(c *config) { c.board = b } }

// WithRealtime wires a realtime hub to receive all engine events.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithHooks registers observers such as analytics collectors and webhook dispatchers.
func WithHooks(hooks ...Hook) Option {
	return func(c *config) { c.hooks = append(c.hooks, hooks...) }
}

func WithLogger(l *slog.Logger) Option { return func(c *config) { c.logger = l } }

// WithMaxLimit caps recommendation list sizes.
func WithMaxLimit(n int) Option { return func(c *config) { c.maxLimit = n } }

// New builds a configured TravelService. If not provided, defaults are used:
//   - storage: in-memory
//   - catalog: the embedded default catalog
//   - rules: DefaultRuleEngine
//   - dispatch: async
func New(opts ...Option) *engine.TravelService {
	cfg := &config{mode: engine.DispatchAsync, rules: engine.DefaultRuleEngine()}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.storage == nil {
		cfg.storage = mem.New()
	}
	if cfg.catalog == nil {
		cfg.catalog = catalog.NewStatic(catalog.Default())
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	bus := engine.NewEventBus(cfg.mode).WithLogger(cfg.logger)
	svc := engine.NewTravelService(cfg.storage, cfg.catalog, bus, cfg.rules, engine.ServiceOptions{
		Evaluator: cfg.evaluator,
		Board:     cfg.board,
		Logger:    cfg.logger,
		MaxLimit:  cfg.maxLimit,
	})
	if cfg.hub != nil {
		// Bridge all primary events to realtime
		bus.SubscribeAll(cfg.hub.Broadcast)
	}
	for _, h := range cfg.hooks {
		if h == nil {
			continue
		}
		bus.SubscribeAll(func(_ context.Context, e core.Event) { h.OnEvent(e) })
	}
	return svc
}
