package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escrowOracle/internal/model"
)

func TestNewStoreIsEmpty(t *testing.T) {
	s := New()
	snap := s.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, uint64(0), s.LastIndexedBlock())
	assert.Empty(t, snap.Leaderboard)
	assert.NotNil(t, snap.UserStats)

	status := s.Status(time.Now())
	assert.Equal(t, int64(0), status.CacheAgeMillis)
}

func TestPublishRejectsWatermarkRegression(t *testing.T) {
	s := New()
	require.True(t, s.Publish(&model.Snapshot{LastIndexedBlock: 100}))
	assert.False(t, s.Publish(&model.Snapshot{LastIndexedBlock: 99}))
	assert.False(t, s.Publish(nil))
	assert.Equal(t, uint64(100), s.LastIndexedBlock())

	require.True(t, s.Publish(&model.Snapshot{LastIndexedBlock: 100}))
}

func TestStatusAndQueries(t *testing.T) {
	updated := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New()
	s.Publish(&model.Snapshot{
		CreatedEvents: []model.LifecycleEvent{{Variant: model.VariantCreated, EscrowID: 1}},
		Leaderboard: []model.LeaderboardEntry{
			{Address: "0xaa", Rank: 1},
			{Address: "0xbb", Rank: 2},
		},
		ActivityFeed: []model.ActivityItem{
			{Type: model.VariantResolved, Winner: "0xaa"},
			{Type: model.VariantCreated, Depositor: "0xbb", Beneficiary: "0xaa"},
		},
		UserStats:        map[string]model.UserStats{"0xaa": {Address: "0xaa", EscrowsWon: 1}},
		MarketQuestions:  map[string]string{"m1": "Will it rain?"},
		LastIndexedBlock: 42,
		LastUpdated:      updated,
	})

	status := s.Status(updated.Add(1500 * time.Millisecond))
	assert.Equal(t, 1, status.CreatedEvents)
	assert.Equal(t, 2, status.LeaderboardEntries)
	assert.Equal(t, 2, status.ActivityItems)
	assert.Equal(t, uint64(42), status.LastIndexedBlock)
	assert.Equal(t, int64(1500), status.CacheAgeMillis)

	assert.Len(t, s.TopN(1), 1)
	entry, ok := s.LeaderboardEntry("0xBB")
	require.True(t, ok)
	assert.Equal(t, 2, entry.Rank)

	stats, ok := s.UserStats("0xAA")
	require.True(t, ok)
	assert.Equal(t, 1, stats.EscrowsWon)

	assert.Len(t, s.UserActivity("0xaa"), 2)
	assert.Len(t, s.RecentActivity(1), 1)

	q, ok := s.MarketQuestion("m1")
	require.True(t, ok)
	assert.Equal(t, "Will it rain?", q)
}

func TestConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := s.Snapshot()
				// Each published snapshot has as many feed items as its watermark.
				assert.Equal(t, int(snap.LastIndexedBlock), len(snap.ActivityFeed))
			}
		}()
	}

	for block := uint64(1); block <= 200; block++ {
		s.Publish(&model.Snapshot{
			ActivityFeed:     make([]model.ActivityItem, block),
			LastIndexedBlock: block,
		})
	}
	close(stop)
	wg.Wait()
}

func TestMergeEventsDeduplicates(t *testing.T) {
	existing := model.EventSet{
		Created: []model.LifecycleEvent{{Variant: model.VariantCreated, EscrowID: 1, BlockNumber: 10}},
	}
	fetched := model.EventSet{
		Created: []model.LifecycleEvent{
			{Variant: model.VariantCreated, EscrowID: 1, BlockNumber: 10},
			{Variant: model.VariantCreated, EscrowID: 2, BlockNumber: 11},
		},
		Resolved: []model.LifecycleEvent{{Variant: model.VariantResolved, EscrowID: 1, BlockNumber: 12}},
	}

	merged, added := MergeEvents(existing, fetched)
	assert.Equal(t, 2, added)
	require.Len(t, merged.Created, 2)
	assert.Equal(t, uint64(1), merged.Created[0].EscrowID)
	assert.Equal(t, uint64(2), merged.Created[1].EscrowID)
	assert.Len(t, merged.Resolved, 1)
	assert.NotNil(t, merged.Refunded)

	again, added := MergeEvents(merged, fetched)
	assert.Equal(t, 0, added)
	assert.Equal(t, merged, again)
	assert.Len(t, existing.Created, 1)
}
