// Package store holds the published read model of the indexer.
//
// The indexer is the only writer. It builds a complete model.Snapshot and
// swaps it in with Publish; readers always see one consistent snapshot.
package store

import (
	"sync/atomic"
	"time"

	"escrowOracle/internal/derive"
	"escrowOracle/internal/model"
)

// Store is the injected event store shared by the indexer and readers.
type Store struct {
	current atomic.Pointer[model.Snapshot]
}

// New returns a store holding an empty snapshot.
func New() *Store {
	s := &Store{}
	s.current.Store(emptySnapshot())
	return s
}

func emptySnapshot() *model.Snapshot {
	return &model.Snapshot{
		CreatedEvents:   []model.LifecycleEvent{},
		ResolvedEvents:  []model.LifecycleEvent{},
		RefundedEvents:  []model.LifecycleEvent{},
		Leaderboard:     []model.LeaderboardEntry{},
		ActivityFeed:    []model.ActivityItem{},
		UserStats:       map[string]model.UserStats{},
		Usernames:       map[string]string{},
		MarketQuestions: map[string]string{},
	}
}

// Snapshot returns the current snapshot. Callers must treat it as read-only.
func (s *Store) Snapshot() *model.Snapshot {
	return s.current.Load()
}

// Publish replaces the current snapshot. A snapshot whose watermark is below
// the current one is rejected so the watermark never moves backwards.
func (s *Store) Publish(next *model.Snapshot) bool {
	if next == nil {
		return false
	}
	for {
		prev := s.current.Load()
		if next.LastIndexedBlock < prev.LastIndexedBlock {
			return false
		}
		if s.current.CompareAndSwap(prev, next) {
			return true
		}
	}
}

// LastIndexedBlock returns the watermark of the current snapshot.
func (s *Store) LastIndexedBlock() uint64 {
	return s.Snapshot().LastIndexedBlock
}

// MarketQuestion returns a cached market question.
func (s *Store) MarketQuestion(marketID string) (string, bool) {
	q, ok := s.Snapshot().MarketQuestions[marketID]
	return q, ok
}

// Status summarizes the current snapshot.
func (s *Store) Status(now time.Time) model.Status {
	snap := s.Snapshot()
	status := model.Status{
		CreatedEvents:      len(snap.CreatedEvents),
		ResolvedEvents:     len(snap.ResolvedEvents),
		RefundedEvents:     len(snap.RefundedEvents),
		LeaderboardEntries: len(snap.Leaderboard),
		ActivityItems:      len(snap.ActivityFeed),
		UserStats:          len(snap.UserStats),
		Usernames:          len(snap.Usernames),
		MarketQuestions:    len(snap.MarketQuestions),
		LastIndexedBlock:   snap.LastIndexedBlock,
		LastUpdated:        snap.LastUpdated,
	}
	if !snap.LastUpdated.IsZero() {
		status.CacheAgeMillis = now.Sub(snap.LastUpdated).Milliseconds()
	}
	return status
}

// TopN returns the first n leaderboard entries.
func (s *Store) TopN(n int) []model.LeaderboardEntry {
	return derive.TopN(s.Snapshot().Leaderboard, n)
}

// LeaderboardEntry finds the leaderboard entry of an address.
func (s *Store) LeaderboardEntry(address string) (model.LeaderboardEntry, bool) {
	return derive.EntryFor(s.Snapshot().Leaderboard, address)
}

// UserStats returns the statistics of an address.
func (s *Store) UserStats(address string) (model.UserStats, bool) {
	stats, ok := s.Snapshot().UserStats[derive.NormalizeAddress(address)]
	return stats, ok
}

// UserActivity returns the feed items involving an address.
func (s *Store) UserActivity(address string) []model.ActivityItem {
	return derive.UserActivity(s.Snapshot().ActivityFeed, address)
}

// RecentActivity returns the newest feed items.
func (s *Store) RecentActivity(limit int) []model.ActivityItem {
	return derive.RecentActivity(s.Snapshot().ActivityFeed, limit)
}
