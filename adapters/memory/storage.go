package memory

import (
	"context"
	"sync"

	"travelkit/core"
)

// Store is a concurrent in-memory Storage implementation.
type Store struct {
	users sync.Map // map[core.UserID]*userRecord
}

type userRecord struct {
	mu      sync.Mutex
	snap    core.ActivitySnapshot
	visited map[string]struct{}
}

func New() *Store { return &Store{} }

func (s *Store) getOrCreate(user core.UserID) *userRecord {
	if v, ok := s.users.Load(user); ok {
		return v.(*userRecord)
	}
	rec := &userRecord{snap: core.NewSnapshot(user), visited: map[string]struct{}{}}
	actual, _ := s.users.LoadOrStore(user, rec)
	return actual.(*userRecord)
}

func (s *Store) GetSnapshot(_ context.Context, user core.UserID) (core.ActivitySnapshot, error) {
	v, ok := s.users.Load(user)
	if !ok {
		return core.NewSnapshot(user), nil
	}
	rec := v.(*userRecord)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.snap.Clone(), nil
}

func (s *Store) SaveSnapshot(_ context.Context, snap core.ActivitySnapshot) error {
	rec := s.getOrCreate(snap.UserID)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.snap = snap.Clone()
	rec.visited = make(map[string]struct{}, len(snap.VisitedDestinationIDs))
	for _, id := range snap.VisitedDestinationIDs {
		rec.visited[id] = struct{}{}
	}
	return nil
}

func (s *Store) IncrementStat(_ context.Context, user core.UserID, stat core.Stat, delta int64) (int64, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	next, err := core.AddSafe(rec.snap.Stats.Get(stat), delta)
	if err != nil {
		return 0, err
	}
	rec.snap.Stats.Set(stat, next)
	return next, nil
}

func (s *Store) AddVisit(_ context.Context, user core.UserID, destinationID string) (bool, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if _, ok := rec.visited[destinationID]; ok {
		return false, nil
	}
	rec.visited[destinationID] = struct{}{}
	rec.snap.VisitedDestinationIDs = append(rec.snap.VisitedDestinationIDs, destinationID)
	return true, nil
}

func (s *Store) SetVerified(_ context.Context, user core.UserID, verified bool) error {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.snap.Verified = verified
	return nil
}

func (s *Store) SetPreferences(_ context.Context, user core.UserID, prefs core.Preferences) error {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.snap.Preferences = core.Preferences{
		FavoriteTypes: append([]string(nil), prefs.FavoriteTypes...),
		BudgetRange:   prefs.BudgetRange,
	}
	return nil
}

var _ interface {
	GetSnapshot(context.Context, core.UserID) (core.ActivitySnapshot, error)
	SaveSnapshot(context.Context, core.ActivitySnapshot) error
	IncrementStat(context.Context, core.UserID, core.Stat, int64) (int64, error)
	AddVisit(context.Context, core.UserID, string) (bool, error)
	SetVerified(context.Context, core.UserID, bool) error
	SetPreferences(context.Context, core.UserID, core.Preferences) error
} = (*Store)(nil)
