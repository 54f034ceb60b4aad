package leaderboard

import (
	"math/rand/v2"
	"sync"

	"travelkit/core"
)

const (
	maxHeight   = 16
	promoteProb = 0.25
)

// link points at the next node on one lane. span counts the level-0 hops it covers,
// which lets rank lookups stay logarithmic.
type link struct {
	to   *node
	span int
}

type node struct {
	e     Entry
	lanes [maxHeight]link
}

// SkipList is an indexable skip list ordered by travel score descending, then user id.
type SkipList struct {
	mu     sync.RWMutex
	head   *node
	height int
	size   int
	nodes  map[core.UserID]*node
	rng    *rand.Rand
}

func NewSkipList() *SkipList {
	return &SkipList{
		head:   &node{},
		height: 1,
		nodes:  make(map[core.UserID]*node),
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// before reports whether a ranks ahead of b.
func before(a, b Entry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.User < b.User
}

func (s *SkipList) coinFlips() int {
	h := 1
	for h < maxHeight && s.rng.Float64() < promoteProb {
		h++
	}
	return h
}

// Update places user at score. Re-posting an unchanged score is a no-op.
func (s *SkipList) Update(user core.UserID, score int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.nodes[user]; ok {
		if n.e.Score == score {
			return
		}
		s.unlink(n)
	}
	s.insert(Entry{User: user, Score: score, Level: core.TravelerLevel(score).Name})
}

func (s *SkipList) insert(e Entry) {
	var (
		prev [maxHeight]*node
		pos  [maxHeight]int
	)
	cur := s.head
	for i := s.height - 1; i >= 0; i-- {
		if i < s.height-1 {
			pos[i] = pos[i+1]
		}
		for next := cur.lanes[i].to; next != nil && before(next.e, e); next = cur.lanes[i].to {
			pos[i] += cur.lanes[i].span
			cur = next
		}
		prev[i] = cur
	}

	h := s.coinFlips()
	for i := s.height; i < h; i++ {
		prev[i] = s.head
		pos[i] = 0
		s.head.lanes[i].span = s.size
	}
	s.height = max(s.height, h)

	n := &node{e: e}
	for i := 0; i < h; i++ {
		n.lanes[i].to = prev[i].lanes[i].to
		prev[i].lanes[i].to = n
		n.lanes[i].span = prev[i].lanes[i].span - (pos[0] - pos[i])
		prev[i].lanes[i].span = pos[0] - pos[i] + 1
	}
	for i := h; i < s.height; i++ {
		prev[i].lanes[i].span++
	}
	s.size++
	s.nodes[e.User] = n
}

func (s *SkipList) unlink(target *node) {
	var prev [maxHeight]*node
	cur := s.head
	for i := s.height - 1; i >= 0; i-- {
		for next := cur.lanes[i].to; next != nil && before(next.e, target.e); next = cur.lanes[i].to {
			cur = next
		}
		prev[i] = cur
	}
	if prev[0].lanes[0].to != target {
		return
	}
	for i := 0; i < s.height; i++ {
		if prev[i].lanes[i].to == target {
			prev[i].lanes[i].span += target.lanes[i].span - 1
			prev[i].lanes[i].to = target.lanes[i].to
		} else {
			prev[i].lanes[i].span--
		}
	}
	for s.height > 1 && s.head.lanes[s.height-1].to == nil {
		s.height--
	}
	s.size--
	delete(s.nodes, target.e.User)
}

func (s *SkipList) Remove(user core.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.nodes[user]; ok {
		s.unlink(n)
	}
}

// TopN returns the n highest entries with 1-based ranks.
func (s *SkipList) TopN(n int) []Entry {
	return s.Page(0, n)
}

// Page returns up to n entries starting after offset entries.
func (s *SkipList) Page(offset, n int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || offset < 0 || offset >= s.size {
		return nil
	}
	out := make([]Entry, 0, min(n, s.size-offset))
	for cur := s.seek(offset + 1); cur != nil && len(out) < n; cur = cur.lanes[0].to {
		e := cur.e
		e.Rank = offset + len(out) + 1
		out = append(out, e)
	}
	return out
}

// seek returns the node at 1-based rank, or nil.
func (s *SkipList) seek(rank int) *node {
	cur, walked := s.head, 0
	for i := s.height - 1; i >= 0; i-- {
		for cur.lanes[i].to != nil && walked+cur.lanes[i].span <= rank {
			walked += cur.lanes[i].span
			cur = cur.lanes[i].to
		}
		if walked == rank {
			return cur
		}
	}
	return nil
}

// Get returns the user's entry with its 1-based rank.
func (s *SkipList) Get(user core.UserID) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	target, ok := s.nodes[user]
	if !ok {
		return Entry{}, false
	}
	cur, rank := s.head, 0
	for i := s.height - 1; i >= 0; i-- {
		for next := cur.lanes[i].to; next != nil && !before(target.e, next.e); next = cur.lanes[i].to {
			rank += cur.lanes[i].span
			cur = next
		}
		if cur == target {
			break
		}
	}
	e := target.e
	e.Rank = rank
	return e, true
}

// Around returns the user's entry with up to radius neighbours on each side.
func (s *SkipList) Around(user core.UserID, radius int) []Entry {
	e, ok := s.Get(user)
	if !ok {
		return nil
	}
	radius = min(max(radius, 0), s.Len())
	start := max(e.Rank-radius, 1)
	return s.Page(start-1, e.Rank+radius-start+1)
}

func (s *SkipList) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

var _ Board = (*SkipList)(nil)
