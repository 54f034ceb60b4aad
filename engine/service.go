package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"travelkit/catalog"
	"travelkit/core"
	"travelkit/leaderboard"
	"travelkit/recommend"
)

// ErrInvalidInput marks caller mistakes: bad user ids, activity kinds, counts or unknown destinations.
var ErrInvalidInput = errors.New("invalid input")

// ActivityKind names something a traveler did.
type ActivityKind string

const (
	ActivityDestinationVisited ActivityKind = "destination_visited"
	ActivityPlanCreated        ActivityKind = "plan_created"
	ActivityStoryShared        ActivityKind = "story_shared"
	ActivityReviewWritten      ActivityKind = "review_written"
)

// Stat maps the kind to the counter it increments.
func (k ActivityKind) Stat() (core.Stat, bool) {
	switch k {
	case ActivityDestinationVisited:
		return core.StatDestinationsVisited, true
	case ActivityPlanCreated:
		return core.StatPlansCreated, true
	case ActivityStoryShared:
		return core.StatStoriesShared, true
	case ActivityReviewWritten:
		return core.StatReviewsWritten, true
	}
	return "", false
}

// Activity is a single recorded action. Count defaults to 1 and is ignored for visits,
// which are counted once per destination id.
type Activity struct {
	Kind          ActivityKind `json:"kind"`
	Count         int64        `json:"count,omitempty"`
	DestinationID string       `json:"destination_id,omitempty"`
}

// ProfileUpdate changes the non-counter parts of a snapshot. Nil fields are left alone.
type ProfileUpdate struct {
	Verified    *bool             `json:"verified,omitempty"`
	Preferences *core.Preferences `json:"preferences,omitempty"`
}

// ServiceOptions carries optional collaborators. Zero values select defaults.
type ServiceOptions struct {
	Evaluator *core.Evaluator
	Board     leaderboard.Board
	Logger    *slog.Logger
	// MaxLimit caps recommendation list sizes; 0 means uncapped.
	MaxLimit int
}

// TravelService wires storage, catalog, event bus and rules into the traveler API.
type TravelService struct {
	storage   Storage
	catalog   catalog.Provider
	bus       *EventBus
	rules     RuleEngine
	evaluator *core.Evaluator
	board     leaderboard.Board
	logger    *slog.Logger
	maxLimit  int
	locks     userLocks
}

func NewTravelService(storage Storage, provider catalog.Provider, bus *EventBus, rules RuleEngine, opts ServiceOptions) *TravelService {
	if storage == nil || provider == nil || bus == nil || rules == nil {
		panic("NewTravelService requires non-nil storage, catalog, bus, and rules")
	}
	s := &TravelService{
		storage:   storage,
		catalog:   provider,
		bus:       bus,
		rules:     rules,
		evaluator: opts.Evaluator,
		board:     opts.Board,
		logger:    opts.Logger,
		maxLimit:  opts.MaxLimit,
	}
	if s.evaluator == nil {
		s.evaluator = core.DefaultEvaluator()
	}
	if s.board == nil {
		s.board = leaderboard.NewSkipList()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func DefaultRuleEngine() RuleEngine {
	return NewRuleEngine(core.DefaultRules()...)
}

// NewRuleEngine evaluates rules in order and concatenates their events.
func NewRuleEngine(rules ...core.Rule) RuleEngine {
	return &simpleRuleEngine{rules: rules}
}

// Subscribe convenience method.
func (s *TravelService) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	return s.bus.Subscribe(typ, handler)
}

func (s *TravelService) Publish(ctx context.Context, ev core.Event) {
	s.bus.Publish(ctx, ev)
}

// Achievements lists every badge the service can award.
func (s *TravelService) Achievements() []core.Achievement { return s.evaluator.Catalog() }

// Simulate runs the engine over a caller-supplied snapshot without touching storage.
func (s *TravelService) Simulate(snap core.ActivitySnapshot) core.TravelProfile {
	return core.BuildProfile(snap, s.evaluator)
}

// Profile loads the traveler's snapshot and scores it. Travelers with a score are
// refreshed on the leaderboard; unknown ids never add an entry.
func (s *TravelService) Profile(ctx context.Context, user core.UserID) (core.TravelProfile, error) {
	normalized, err := normalizeUser(user)
	if err != nil {
		return core.TravelProfile{}, err
	}
	p, err := s.profile(ctx, normalized)
	if err != nil {
		return core.TravelProfile{}, err
	}
	if p.TravelScore > 0 {
		s.board.Update(normalized, p.TravelScore)
	}
	return p, nil
}

// Snapshot returns the stored snapshot with its score re-derived.
func (s *TravelService) Snapshot(ctx context.Context, user core.UserID) (core.ActivitySnapshot, error) {
	normalized, err := normalizeUser(user)
	if err != nil {
		return core.ActivitySnapshot{}, err
	}
	snap, err := s.storage.GetSnapshot(ctx, normalized)
	if err != nil {
		return core.ActivitySnapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	return snap.Normalize(), nil
}

// ImportSnapshot replaces a traveler's stored snapshot. A supplied travel score that
// disagrees with the counters is ignored in favor of the derived value.
func (s *TravelService) ImportSnapshot(ctx context.Context, snap core.ActivitySnapshot) (core.TravelProfile, error) {
	normalized, err := normalizeUser(snap.UserID)
	if err != nil {
		return core.TravelProfile{}, err
	}
	snap.UserID = normalized
	clean := snap.Normalize()
	if snap.TravelScore != 0 && snap.TravelScore != clean.TravelScore {
		s.logger.Warn("supplied travel score differs from derived score",
			"user", normalized, "supplied", snap.TravelScore, "derived", clean.TravelScore)
	}
	return s.mutate(ctx, normalized, func() error {
		if err := s.storage.SaveSnapshot(ctx, clean); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
		return nil
	})
}

// RecordActivity applies one activity and publishes any score, level or badge changes.
func (s *TravelService) RecordActivity(ctx context.Context, user core.UserID, act Activity) (core.TravelProfile, error) {
	normalized, err := normalizeUser(user)
	if err != nil {
		return core.TravelProfile{}, err
	}
	stat, ok := act.Kind.Stat()
	if !ok {
		return core.TravelProfile{}, fmt.Errorf("%w: unknown activity kind %q", ErrInvalidInput, act.Kind)
	}
	count := act.Count
	if count == 0 {
		count = 1
	}
	if count < 0 {
		return core.TravelProfile{}, fmt.Errorf("%w: count must be positive", ErrInvalidInput)
	}

	return s.mutate(ctx, normalized, func() error {
		if stat == core.StatDestinationsVisited {
			return s.recordVisit(ctx, normalized, act.DestinationID)
		}
		if _, err := s.storage.IncrementStat(ctx, normalized, stat, count); err != nil {
			return fmt.Errorf("increment %s: %w", stat, err)
		}
		return nil
	})
}

func (s *TravelService) recordVisit(ctx context.Context, user core.UserID, destinationID string) error {
	if destinationID == "" {
		return fmt.Errorf("%w: destination_id is required", ErrInvalidInput)
	}
	known, err := s.knownDestination(ctx, destinationID)
	if err != nil {
		return err
	}
	if !known {
		return fmt.Errorf("%w: unknown destination %q", ErrInvalidInput, destinationID)
	}
	added, err := s.storage.AddVisit(ctx, user, destinationID)
	if err != nil {
		return fmt.Errorf("add visit: %w", err)
	}
	if !added {
		s.logger.Debug("destination already visited", "user", user, "destination", destinationID)
		return nil
	}
	if _, err := s.storage.IncrementStat(ctx, user, core.StatDestinationsVisited, 1); err != nil {
		return fmt.Errorf("increment %s: %w", core.StatDestinationsVisited, err)
	}
	return nil
}

// UpdateProfile sets verification and preferences.
func (s *TravelService) UpdateProfile(ctx context.Context, user core.UserID, upd ProfileUpdate) (core.TravelProfile, error) {
	normalized, err := normalizeUser(user)
	if err != nil {
		return core.TravelProfile{}, err
	}
	var prefs *core.Preferences
	if upd.Preferences != nil {
		clean := core.ActivitySnapshot{Preferences: *upd.Preferences}.Normalize().Preferences
		if upd.Preferences.BudgetRange != "" && clean.BudgetRange == "" {
			return core.TravelProfile{}, fmt.Errorf("%w: unknown budget range %q", ErrInvalidInput, upd.Preferences.BudgetRange)
		}
		prefs = &clean
	}
	return s.mutate(ctx, normalized, func() error {
		if upd.Verified != nil {
			if err := s.storage.SetVerified(ctx, normalized, *upd.Verified); err != nil {
				return fmt.Errorf("set verified: %w", err)
			}
		}
		if prefs != nil {
			if err := s.storage.SetPreferences(ctx, normalized, *prefs); err != nil {
				return fmt.Errorf("set preferences: %w", err)
			}
		}
		return nil
	})
}

// RecommendDestinations ranks catalog destinations for user. An empty user id gets the
// anonymous trending list.
func (s *TravelService) RecommendDestinations(ctx context.Context, user core.UserID, limit int) ([]core.RankedDestination, error) {
	snap, err := s.optionalSnapshot(ctx, user)
	if err != nil {
		return nil, err
	}
	dests, err := s.catalog.Destinations(ctx)
	if err != nil {
		return nil, fmt.Errorf("load destinations: %w", err)
	}
	return recommend.Destinations(snap, dests, s.clamp(limit)), nil
}

// RecommendPlans ranks catalog plans for user. An empty user id gets the anonymous
// engagement ranking.
func (s *TravelService) RecommendPlans(ctx context.Context, user core.UserID, limit int) ([]core.RankedPlan, error) {
	snap, err := s.optionalSnapshot(ctx, user)
	if err != nil {
		return nil, err
	}
	plans, err := s.catalog.Plans(ctx)
	if err != nil {
		return nil, fmt.Errorf("load plans: %w", err)
	}
	return recommend.Plans(snap, plans, s.clamp(limit)), nil
}

func (s *TravelService) TrendingDestinations(ctx context.Context, limit int) ([]core.RankedDestination, error) {
	return s.RecommendDestinations(ctx, "", limit)
}

func (s *TravelService) TrendingPlans(ctx context.Context, limit int) ([]core.RankedPlan, error) {
	return s.RecommendPlans(ctx, "", limit)
}

// Leaderboard returns the top n travelers seen by this service.
func (s *TravelService) Leaderboard(n int) []leaderboard.Entry { return s.board.TopN(n) }

// Standing returns the traveler's leaderboard entry with up to radius neighbours on
// each side. A traveler who has never scored is not ranked and gets an empty list.
func (s *TravelService) Standing(ctx context.Context, user core.UserID, radius int) ([]leaderboard.Entry, error) {
	if radius < 0 {
		return nil, fmt.Errorf("%w: radius must be non-negative", ErrInvalidInput)
	}
	normalized, err := normalizeUser(user)
	if err != nil {
		return nil, err
	}
	if _, err := s.Profile(ctx, normalized); err != nil {
		return nil, err
	}
	around := s.board.Around(normalized, s.clamp(radius))
	if around == nil {
		around = []leaderboard.Entry{}
	}
	return around, nil
}

// Ping checks that storage answers.
func (s *TravelService) Ping(ctx context.Context) error {
	_, err := s.storage.GetSnapshot(ctx, "healthcheck")
	return err
}

func (s *TravelService) Close() { s.bus.Close() }

func (s *TravelService) profile(ctx context.Context, user core.UserID) (core.TravelProfile, error) {
	snap, err := s.storage.GetSnapshot(ctx, user)
	if err != nil {
		return core.TravelProfile{}, fmt.Errorf("load snapshot: %w", err)
	}
	snap.UserID = user
	return core.BuildProfile(snap, s.evaluator), nil
}

// mutate applies a storage write for user and publishes the events derived from the
// before/after transition. Writes for one user are serialized so every transition
// starts where the previous one ended; events go out after the lock is released.
func (s *TravelService) mutate(ctx context.Context, user core.UserID, apply func() error) (core.TravelProfile, error) {
	after, events, err := s.commit(ctx, user, apply)
	if err != nil {
		return core.TravelProfile{}, err
	}
	for _, ev := range events {
		s.bus.Publish(ctx, ev)
	}
	return after, nil
}

func (s *TravelService) commit(ctx context.Context, user core.UserID, apply func() error) (core.TravelProfile, []core.Event, error) {
	defer s.locks.lock(user)()

	before, err := s.profile(ctx, user)
	if err != nil {
		return core.TravelProfile{}, nil, err
	}
	if err := apply(); err != nil {
		return core.TravelProfile{}, nil, err
	}
	after, err := s.profile(ctx, user)
	if err != nil {
		return core.TravelProfile{}, nil, err
	}
	s.board.Update(after.UserID, after.TravelScore)
	return after, s.rules.Evaluate(ctx, core.Transition{Before: before, After: after}), nil
}

// userLocks hands out one mutex per user, dropping it once nobody holds or waits on it.
type userLocks struct {
	mu sync.Mutex
	m  map[core.UserID]*userLock
}

type userLock struct {
	sync.Mutex
	refs int
}

func (l *userLocks) lock(user core.UserID) (unlock func()) {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[core.UserID]*userLock)
	}
	ul := l.m[user]
	if ul == nil {
		ul = &userLock{}
		l.m[user] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.Lock()
	return func() {
		ul.Unlock()
		l.mu.Lock()
		if ul.refs--; ul.refs == 0 {
			delete(l.m, user)
		}
		l.mu.Unlock()
	}
}

func (s *TravelService) optionalSnapshot(ctx context.Context, user core.UserID) (*core.ActivitySnapshot, error) {
	if user == "" {
		return nil, nil
	}
	snap, err := s.Snapshot(ctx, user)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *TravelService) knownDestination(ctx context.Context, id string) (bool, error) {
	if st, ok := s.catalog.(interface {
		Destination(string) (core.Destination, bool)
	}); ok {
		_, found := st.Destination(id)
		return found, nil
	}
	dests, err := s.catalog.Destinations(ctx)
	if err != nil {
		return false, fmt.Errorf("load destinations: %w", err)
	}
	for _, d := range dests {
		if d.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *TravelService) clamp(limit int) int {
	if s.maxLimit > 0 && limit > s.maxLimit {
		return s.maxLimit
	}
	return limit
}

func normalizeUser(user core.UserID) (core.UserID, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return normalized, nil
}

type simpleRuleEngine struct{ rules []core.Rule }

func (s *simpleRuleEngine) Evaluate(ctx context.Context, t core.Transition) []core.Event {
	var out []core.Event
	for _, r := range s.rules {
		out = append(out, r.Evaluate(ctx, t)...)
	}
	return out
}
