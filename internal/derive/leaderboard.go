package derive

import (
	"math/big"
	"sort"

	"escrowOracle/internal/model"
)

type winnerTotals struct {
	totalWon *big.Int
	wins     int
	lastWin  uint64
}

// Leaderboard groups resolved events by winner and ranks them by amount won,
// most recent win first on ties.
func Leaderboard(resolved []model.LifecycleEvent, usernames map[string]string) []model.LeaderboardEntry {
	totals := make(map[string]*winnerTotals)
	for _, event := range resolved {
		winner := NormalizeAddress(event.Beneficiary)
		current, ok := totals[winner]
		if !ok {
			current = &winnerTotals{totalWon: new(big.Int)}
			totals[winner] = current
		}
		current.totalWon.Add(current.totalWon, parseAmount(event.Amount))
		current.wins++
		if event.Timestamp > current.lastWin {
			current.lastWin = event.Timestamp
		}
	}

	type ranked struct {
		address string
		totals  *winnerTotals
	}
	rows := make([]ranked, 0, len(totals))
	for address, t := range totals {
		rows = append(rows, ranked{address: address, totals: t})
	}
	sort.Slice(rows, func(i, j int) bool {
		if cmp := rows[i].totals.totalWon.Cmp(rows[j].totals.totalWon); cmp != 0 {
			return cmp > 0
		}
		if rows[i].totals.lastWin != rows[j].totals.lastWin {
			return rows[i].totals.lastWin > rows[j].totals.lastWin
		}
		return rows[i].address < rows[j].address
	})

	entries := make([]model.LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, model.LeaderboardEntry{
			Address:          row.address,
			Username:         usernames[row.address],
			TotalWon:         row.totals.totalWon.String(),
			TotalWonUSD:      ToUSD(row.totals.totalWon),
			Wins:             row.totals.wins,
			LastWinTimestamp: row.totals.lastWin,
			Rank:             i + 1,
		})
	}
	return entries
}

// TopN returns at most n leading entries.
func TopN(leaderboard []model.LeaderboardEntry, n int) []model.LeaderboardEntry {
	if n < 0 {
		n = 0
	}
	if n > len(leaderboard) {
		n = len(leaderboard)
	}
	return leaderboard[:n]
}

// EntryFor finds the entry of an address.
func EntryFor(leaderboard []model.LeaderboardEntry, address string) (model.LeaderboardEntry, bool) {
	address = NormalizeAddress(address)
	for _, entry := range leaderboard {
		if NormalizeAddress(entry.Address) == address {
			return entry, true
		}
	}
	return model.LeaderboardEntry{}, false
}
