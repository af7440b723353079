package derive

import (
	"math"
	"math/big"

	"escrowOracle/internal/model"
)

// UserStatsFor computes the statistics of one address. Address comparison is
// case-insensitive.
func UserStatsFor(address string, events model.EventSet, usernames map[string]string) model.UserStats {
	address = NormalizeAddress(address)

	deposited := new(big.Int)
	won := new(big.Int)
	refunded := new(big.Int)
	var created, wins, refunds int
	var lastActivity uint64

	touch := func(ts uint64) {
		if ts > lastActivity {
			lastActivity = ts
		}
	}

	parties := make(map[uint64]bool, len(events.Created))
	for _, e := range events.Created {
		depositor := NormalizeAddress(e.Depositor)
		if depositor == address || NormalizeAddress(e.Beneficiary) == address {
			parties[e.EscrowID] = true
		}
		if depositor == address {
			created++
			deposited.Add(deposited, parseAmount(e.Amount))
			touch(e.Timestamp)
		}
	}

	closed := make(map[uint64]bool, len(events.Resolved)+len(events.Refunded))
	involved := 0
	for _, e := range events.Resolved {
		closed[e.EscrowID] = true
		isWinner := NormalizeAddress(e.Beneficiary) == address
		if isWinner {
			wins++
			won.Add(won, parseAmount(e.Amount))
			touch(e.Timestamp)
		}
		if isWinner || parties[e.EscrowID] {
			involved++
		}
	}
	for _, e := range events.Refunded {
		closed[e.EscrowID] = true
		if NormalizeAddress(e.Depositor) == address {
			refunds++
			refunded.Add(refunded, parseAmount(e.Amount))
			touch(e.Timestamp)
		}
	}

	active := 0
	for id := range parties {
		if !closed[id] {
			active++
		}
	}

	net := new(big.Int).Add(won, refunded)
	net.Sub(net, deposited)

	return model.UserStats{
		Address:               address,
		Username:              usernames[address],
		EscrowsCreated:        created,
		TotalDeposited:        deposited.String(),
		TotalDepositedUSD:     ToUSD(deposited),
		EscrowsWon:            wins,
		TotalWon:              won.String(),
		TotalWonUSD:           ToUSD(won),
		EscrowsRefunded:       refunds,
		TotalRefunded:         refunded.String(),
		TotalRefundedUSD:      ToUSD(refunded),
		NetProfitLoss:         net.String(),
		NetProfitLossUSD:      ToUSD(net),
		WinRate:               winRate(wins, involved),
		LastActivityTimestamp: lastActivity,
		ActiveEscrows:         active,
	}
}

// AllUserStats computes statistics for every address seen in events, keyed by
// lower-cased address. Ranks are taken from leaderboard when given.
func AllUserStats(events model.EventSet, usernames map[string]string, leaderboard []model.LeaderboardEntry) map[string]model.UserStats {
	ranks := make(map[string]int, len(leaderboard))
	for _, entry := range leaderboard {
		ranks[NormalizeAddress(entry.Address)] = entry.Rank
	}

	out := make(map[string]model.UserStats)
	for _, address := range Participants(events) {
		stats := UserStatsFor(address, events, usernames)
		stats.Rank = ranks[address]
		out[address] = stats
	}
	return out
}

// Participants lists every distinct address appearing in events, lower-cased,
// in first-seen order.
func Participants(events model.EventSet) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	add := func(address string) {
		address = NormalizeAddress(address)
		if address == "" {
			return
		}
		if _, ok := seen[address]; ok {
			return
		}
		seen[address] = struct{}{}
		out = append(out, address)
	}
	for _, e := range events.Created {
		add(e.Depositor)
		add(e.Beneficiary)
	}
	for _, e := range events.Resolved {
		add(e.Beneficiary)
	}
	for _, e := range events.Refunded {
		add(e.Depositor)
	}
	return out
}

func winRate(wins, resolved int) float64 {
	if resolved == 0 {
		return 0
	}
	rate := float64(wins) / float64(resolved) * 100
	return math.Round(rate*100) / 100
}
