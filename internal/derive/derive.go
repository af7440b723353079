// Package derive turns the raw escrow event log into read-optimized views.
// Every function here is pure; callers recompute all views from the full
// event set each cycle.
package derive

import "escrowOracle/internal/model"

// Views bundles every derived structure of one cycle.
type Views struct {
	Leaderboard  []model.LeaderboardEntry
	ActivityFeed []model.ActivityItem
	UserStats    map[string]model.UserStats
	GlobalStats  model.GlobalStats
}

// All recomputes every view from events and the enrichment tables.
func All(events model.EventSet, usernames, marketQuestions map[string]string) Views {
	leaderboard := Leaderboard(events.Resolved, usernames)
	return Views{
		Leaderboard:  leaderboard,
		ActivityFeed: ActivityFeed(events, usernames, marketQuestions),
		UserStats:    AllUserStats(events, usernames, leaderboard),
		GlobalStats:  Global(events),
	}
}
