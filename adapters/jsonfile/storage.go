package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"travelkit/core"
)

// Store persists every traveler snapshot to a single JSON file.
// Suitable for demos and small deployments.
type Store struct {
	path string
	mu   sync.Mutex
	// in-memory cache for speed
	data map[core.UserID]core.ActivitySnapshot
}

func New(path string) (*Store, error) {
	s := &Store{path: path, data: map[core.UserID]core.ActivitySnapshot{}}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var raw []core.ActivitySnapshot
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for _, snap := range raw {
		s.data[snap.UserID] = snap
	}
	return nil
}

// persist writes users sorted by id so the file diffs cleanly.
func (s *Store) persist() error {
	tmp := s.path + ".tmp"
	raw := make([]core.ActivitySnapshot, 0, len(s.data))
	for _, v := range s.data {
		raw = append(raw, v)
	}
	sort.Slice(raw, func(i, j int) bool { return raw[i].UserID < raw[j].UserID })
	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) get(user core.UserID) core.ActivitySnapshot {
	if st, ok := s.data[user]; ok {
		return st.Clone()
	}
	return core.NewSnapshot(user)
}

// update applies fn to the user's snapshot and persists when fn reports a change.
// A failed write restores the previous in-memory state.
func (s *Store) update(user core.UserID, fn func(*core.ActivitySnapshot) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.get(user)
	changed, err := fn(&snap)
	if err != nil || !changed {
		return err
	}
	prev, existed := s.data[user]
	s.data[user] = snap
	if err := s.persist(); err != nil {
		if existed {
			s.data[user] = prev
		} else {
			delete(s.data, user)
		}
		return err
	}
	return nil
}

func (s *Store) GetSnapshot(_ context.Context, user core.UserID) (core.ActivitySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(user), nil
}

func (s *Store) SaveSnapshot(_ context.Context, snap core.ActivitySnapshot) error {
	return s.update(snap.UserID, func(dst *core.ActivitySnapshot) (bool, error) {
		*dst = snap.Clone()
		return true, nil
	})
}

func (s *Store) IncrementStat(_ context.Context, user core.UserID, stat core.Stat, delta int64) (int64, error) {
	var next int64
	err := s.update(user, func(snap *core.ActivitySnapshot) (bool, error) {
		v, err := core.AddSafe(snap.Stats.Get(stat), delta)
		if err != nil {
			return false, err
		}
		snap.Stats.Set(stat, v)
		next = v
		return true, nil
	})
	return next, err
}

func (s *Store) AddVisit(_ context.Context, user core.UserID, destinationID string) (bool, error) {
	added := false
	err := s.update(user, func(snap *core.ActivitySnapshot) (bool, error) {
		if snap.HasVisited(destinationID) {
			return false, nil
		}
		snap.VisitedDestinationIDs = append(snap.VisitedDestinationIDs, destinationID)
		added = true
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return added, nil
}

func (s *Store) SetVerified(_ context.Context, user core.UserID, verified bool) error {
	return s.update(user, func(snap *core.ActivitySnapshot) (bool, error) {
		snap.Verified = verified
		return true, nil
	})
}

func (s *Store) SetPreferences(_ context.Context, user core.UserID, prefs core.Preferences) error {
	return s.update(user, func(snap *core.ActivitySnapshot) (bool, error) {
		snap.Preferences = core.Preferences{
			FavoriteTypes: append([]string(nil), prefs.FavoriteTypes...),
			BudgetRange:   prefs.BudgetRange,
		}
		return true, nil
	})
}
