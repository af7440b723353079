package derive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escrowOracle/internal/model"
)

const (
	alice = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	bob   = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	carol = "0xcccccccccccccccccccccccccccccccccccccccc"
)

func created(id uint64, depositor, beneficiary, amount, market string, yes bool, ts uint64) model.LifecycleEvent {
	return model.LifecycleEvent{
		Variant:            model.VariantCreated,
		EscrowID:           id,
		Timestamp:          ts,
		BlockNumber:        ts,
		Amount:             amount,
		Depositor:          depositor,
		Beneficiary:        beneficiary,
		MarketID:           market,
		ExpectedOutcomeYes: yes,
	}
}

func resolved(id uint64, winner, amount string, outcome bool, ts uint64) model.LifecycleEvent {
	return model.LifecycleEvent{
		Variant:     model.VariantResolved,
		EscrowID:    id,
		Timestamp:   ts,
		BlockNumber: ts,
		Amount:      amount,
		Beneficiary: winner,
		Outcome:     outcome,
	}
}

func refunded(id uint64, depositor, amount string, ts uint64) model.LifecycleEvent {
	return model.LifecycleEvent{
		Variant:     model.VariantRefunded,
		EscrowID:    id,
		Timestamp:   ts,
		BlockNumber: ts,
		Amount:      amount,
		Depositor:   depositor,
	}
}

func TestLeaderboardOrderingAndRanks(t *testing.T) {
	events := []model.LifecycleEvent{
		resolved(1, alice, "5000000", true, 100),
		resolved(2, bob, "10000000", false, 90),
		resolved(3, carol, "10000000", true, 95),
		resolved(4, alice, "5000000", true, 120),
	}

	board := Leaderboard(events, map[string]string{bob: "bobby"})
	require.Len(t, board, 3)

	// All three tie on amount; the most recent win ranks first.
	assert.Equal(t, alice, board[0].Address)
	assert.Equal(t, 2, board[0].Wins)
	assert.Equal(t, uint64(120), board[0].LastWinTimestamp)
	assert.Equal(t, carol, board[1].Address)
	assert.Equal(t, bob, board[2].Address)
	assert.Equal(t, "bobby", board[2].Username)

	for i, entry := range board {
		assert.Equal(t, i+1, entry.Rank)
		assert.InDelta(t, 10.0, entry.TotalWonUSD, 1e-9)
	}
}

func TestLeaderboardCaseInsensitiveGrouping(t *testing.T) {
	upper := "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	board := Leaderboard([]model.LifecycleEvent{
		resolved(1, alice, "1000000", true, 1),
		resolved(2, upper, "2000000", true, 2),
	}, nil)

	require.Len(t, board, 1)
	assert.Equal(t, 2, board[0].Wins)
	assert.Equal(t, "3000000", board[0].TotalWon)
}

func TestTopNAndEntryFor(t *testing.T) {
	board := Leaderboard([]model.LifecycleEvent{
		resolved(1, alice, "3", true, 1),
		resolved(2, bob, "2", true, 2),
		resolved(3, carol, "1", true, 3),
	}, nil)

	assert.Len(t, TopN(board, 2), 2)
	assert.Len(t, TopN(board, 10), 3)
	assert.Empty(t, TopN(board, -1))

	entry, ok := EntryFor(board, "0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB")
	require.True(t, ok)
	assert.Equal(t, 2, entry.Rank)

	_, ok = EntryFor(board, "0x0000000000000000000000000000000000000000")
	assert.False(t, ok)
}

func TestActivityFeedSortedAndMessages(t *testing.T) {
	events := model.EventSet{
		Created:  []model.LifecycleEvent{created(1, alice, bob, "100000000", "m1", true, 10)},
		Resolved: []model.LifecycleEvent{resolved(1, bob, "100000000", true, 30)},
		Refunded: []model.LifecycleEvent{refunded(2, carol, "2500000", 20)},
	}

	feed := ActivityFeed(events, map[string]string{alice: "alice"}, map[string]string{"m1": "Will it rain?"})
	require.Len(t, feed, 3)

	assert.Equal(t, model.VariantResolved, feed[0].Type)
	assert.Equal(t, "Escrow #1 resolved YES — 0xbbbb...bbbb won $100.00 USDC", feed[0].Message)

	assert.Equal(t, model.VariantRefunded, feed[1].Type)
	assert.Equal(t, "Escrow #2 refunded $2.50 USDC to 0xcccc...cccc", feed[1].Message)

	assert.Equal(t, model.VariantCreated, feed[2].Type)
	assert.Equal(t, `alice challenged 0xbbbb...bbbb with $100.00 USDC on "Will it rain?" resolving to YES`, feed[2].Message)
}

func TestActivityMessageFallsBackToMarketID(t *testing.T) {
	feed := ActivityFeed(model.EventSet{
		Created: []model.LifecycleEvent{created(4, alice, bob, "1", "m9", false, 1)},
	}, nil, nil)

	require.Len(t, feed, 1)
	assert.Equal(t, `0xaaaa...aaaa challenged 0xbbbb...bbbb with $0.00 USDC on "m9" resolving to NO`, feed[0].Message)
}

func TestUserAndRecentActivity(t *testing.T) {
	events := model.EventSet{
		Created:  []model.LifecycleEvent{created(1, alice, bob, "1", "m1", true, 1)},
		Refunded: []model.LifecycleEvent{refunded(2, carol, "1", 2)},
	}
	feed := ActivityFeed(events, nil, nil)

	assert.Len(t, UserActivity(feed, "0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB"), 1)
	assert.Len(t, UserActivity(feed, carol), 1)
	assert.Empty(t, UserActivity(feed, "0x0000000000000000000000000000000000000001"))

	assert.Len(t, RecentActivity(feed, 1), 1)
	assert.Len(t, RecentActivity(feed, 0), 2)
}

func TestUserStatsWinRateZeroWithoutResolutions(t *testing.T) {
	events := model.EventSet{
		Created: []model.LifecycleEvent{created(1, alice, bob, "100000000", "m1", true, 1)},
	}

	stats := UserStatsFor(alice, events, nil)
	assert.Equal(t, 0.0, stats.WinRate)
	assert.Equal(t, 1, stats.EscrowsCreated)
	assert.Equal(t, 1, stats.ActiveEscrows)
	assert.InDelta(t, -100.0, stats.NetProfitLossUSD, 1e-9)

	stranger := UserStatsFor("0x0000000000000000000000000000000000000009", events, nil)
	assert.Equal(t, 0.0, stranger.WinRate)
	assert.Equal(t, "0", stranger.NetProfitLoss)
}

func TestUserStatsNetAndWinRate(t *testing.T) {
	events := model.EventSet{
		Created: []model.LifecycleEvent{
			created(1, alice, bob, "10000000", "m1", true, 1),
			created(2, bob, alice, "20000000", "m2", true, 2),
			created(3, alice, carol, "5000000", "m3", false, 3),
			created(4, alice, carol, "1000000", "m4", false, 4),
		},
		Resolved: []model.LifecycleEvent{
			resolved(1, bob, "10000000", true, 10),
			resolved(2, alice, "20000000", true, 11),
			resolved(4, alice, "1000000", false, 12),
		},
		Refunded: []model.LifecycleEvent{refunded(3, alice, "5000000", 13)},
	}

	stats := UserStatsFor("0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa", events, map[string]string{alice: "alice"})
	assert.Equal(t, alice, stats.Address)
	assert.Equal(t, "alice", stats.Username)
	assert.Equal(t, 3, stats.EscrowsCreated)
	assert.Equal(t, "16000000", stats.TotalDeposited)
	assert.Equal(t, 2, stats.EscrowsWon)
	assert.Equal(t, "21000000", stats.TotalWon)
	assert.Equal(t, "5000000", stats.TotalRefunded)
	assert.Equal(t, "10000000", stats.NetProfitLoss)
	assert.InDelta(t, 10.0, stats.NetProfitLossUSD, 1e-9)
	assert.Equal(t, 66.67, stats.WinRate)
	assert.Equal(t, uint64(13), stats.LastActivityTimestamp)
	assert.Equal(t, 0, stats.ActiveEscrows)
}

func TestAllUserStatsCarriesRank(t *testing.T) {
	events := model.EventSet{
		Created:  []model.LifecycleEvent{created(1, alice, bob, "100000000", "m1", true, 1)},
		Resolved: []model.LifecycleEvent{resolved(1, bob, "100000000", true, 2)},
	}

	views := All(events, nil, nil)
	require.Len(t, views.UserStats, 2)
	assert.Equal(t, 1, views.UserStats[bob].Rank)
	assert.Equal(t, 0, views.UserStats[alice].Rank)
	assert.Equal(t, 100.0, views.UserStats[bob].WinRate)
	assert.Equal(t, 0.0, views.UserStats[alice].WinRate)
}

func TestGlobalStats(t *testing.T) {
	events := model.EventSet{
		Created: []model.LifecycleEvent{
			created(1, alice, bob, "10000000", "m1", true, 1),
			created(2, alice, carol, "30000000", "m2", true, 2),
			created(3, bob, carol, "1000000", "m3", true, 3),
		},
		Resolved: []model.LifecycleEvent{
			resolved(1, bob, "10000000", true, 4),
			resolved(2, carol, "30000000", true, 5),
		},
	}

	stats := Global(events)
	assert.Equal(t, 3, stats.TotalEscrowsCreated)
	assert.Equal(t, 2, stats.TotalEscrowsResolved)
	assert.Equal(t, 1, stats.ActiveEscrows)
	assert.Equal(t, 2, stats.UniqueWinners)
	assert.InDelta(t, 40.0, stats.TotalVolumeUSD, 1e-9)
	assert.InDelta(t, 20.0, stats.AverageEscrowUSD, 1e-9)

	assert.Equal(t, model.GlobalStats{}, Global(model.EventSet{}))
}

func TestFormatUSD(t *testing.T) {
	cases := map[string]string{
		"100000000": "100.00",
		"2500000":   "2.50",
		"1":         "0.00",
		"-1500000":  "-1.50",
		"garbage":   "0.00",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatUSD(in), in)
	}
}

func TestShortAddress(t *testing.T) {
	assert.Equal(t, "0x1234...abcd", ShortAddress("0x1234567890123456789012345678901234abcd"))
	assert.Equal(t, "Unknown", ShortAddress(""))
	assert.Equal(t, "0x12", ShortAddress("0x12"))
}
