package model

import "time"

// LeaderboardEntry ranks a winner by total amount won.
type LeaderboardEntry struct {
	Address          string  `json:"address"`
	Username         string  `json:"username,omitempty"`
	TotalWon         string  `json:"total_won"`
	TotalWonUSD      float64 `json:"total_won_usd"`
	Wins             int     `json:"wins"`
	LastWinTimestamp uint64  `json:"last_win_timestamp"`
	Rank             int     `json:"rank"`
}

// ActivityItem is one entry of the activity feed. Field presence depends on Type.
type ActivityItem struct {
	Type        Variant `json:"type"`
	EscrowID    uint64  `json:"escrow_id"`
	Timestamp   uint64  `json:"timestamp"`
	BlockNumber uint64  `json:"block_number"`
	TxHash      string  `json:"tx_hash"`
	Amount      string  `json:"amount"`

	Depositor   string `json:"depositor,omitempty"`
	Beneficiary string `json:"beneficiary,omitempty"`
	MarketID    string `json:"market_id,omitempty"`
	YesOutcome  *bool  `json:"yes_outcome,omitempty"`

	Winner  string `json:"winner,omitempty"`
	Outcome *bool  `json:"outcome,omitempty"`

	RefundedTo string `json:"refunded_to,omitempty"`

	DepositorUsername   string `json:"depositor_username,omitempty"`
	BeneficiaryUsername string `json:"beneficiary_username,omitempty"`
	WinnerUsername      string `json:"winner_username,omitempty"`
	MarketQuestion      string `json:"market_question,omitempty"`

	Message string `json:"message"`
}

// UserStats summarizes one address across all indexed escrows.
type UserStats struct {
	Address  string `json:"address"`
	Username string `json:"username,omitempty"`

	EscrowsCreated    int     `json:"escrows_created"`
	TotalDeposited    string  `json:"total_deposited"`
	TotalDepositedUSD float64 `json:"total_deposited_usd"`

	EscrowsWon  int     `json:"escrows_won"`
	TotalWon    string  `json:"total_won"`
	TotalWonUSD float64 `json:"total_won_usd"`

	EscrowsRefunded  int     `json:"escrows_refunded"`
	TotalRefunded    string  `json:"total_refunded"`
	TotalRefundedUSD float64 `json:"total_refunded_usd"`

	NetProfitLoss    string  `json:"net_profit_loss"`
	NetProfitLossUSD float64 `json:"net_profit_loss_usd"`
	WinRate          float64 `json:"win_rate"`

	LastActivityTimestamp uint64 `json:"last_activity_timestamp"`
	ActiveEscrows         int    `json:"active_escrows"`
	Rank                  int    `json:"rank,omitempty"`
}

// GlobalStats aggregates the whole event set.
type GlobalStats struct {
	TotalEscrowsCreated  int     `json:"total_escrows_created"`
	TotalEscrowsResolved int     `json:"total_escrows_resolved"`
	TotalEscrowsRefunded int     `json:"total_escrows_refunded"`
	ActiveEscrows        int     `json:"active_escrows"`
	TotalVolumeUSD       float64 `json:"total_volume_usd"`
	UniqueWinners        int     `json:"unique_winners"`
	AverageEscrowUSD     float64 `json:"average_escrow_usd"`
}

// Snapshot is the read model published by the indexer. A published snapshot is
// never mutated.
type Snapshot struct {
	CreatedEvents   []LifecycleEvent     `json:"created_events"`
	ResolvedEvents  []LifecycleEvent     `json:"resolved_events"`
	RefundedEvents  []LifecycleEvent     `json:"refunded_events"`
	Leaderboard     []LeaderboardEntry   `json:"leaderboard"`
	ActivityFeed    []ActivityItem       `json:"activity_feed"`
	UserStats       map[string]UserStats `json:"user_stats"`
	Usernames       map[string]string    `json:"usernames"`
	MarketQuestions map[string]string    `json:"market_questions"`
	GlobalStats     GlobalStats          `json:"global_stats"`

	LastIndexedBlock uint64    `json:"last_indexed_block"`
	LastUpdated      time.Time `json:"last_updated"`
}

// Events returns the snapshot's events as an EventSet.
func (s *Snapshot) Events() EventSet {
	return EventSet{
		Created:  s.CreatedEvents,
		Resolved: s.ResolvedEvents,
		Refunded: s.RefundedEvents,
	}
}

// Status is the summary served to health checks.
type Status struct {
	CreatedEvents      int       `json:"created_events"`
	ResolvedEvents     int       `json:"resolved_events"`
	RefundedEvents     int       `json:"refunded_events"`
	LeaderboardEntries int       `json:"leaderboard_entries"`
	ActivityItems      int       `json:"activity_items"`
	UserStats          int       `json:"user_stats"`
	Usernames          int       `json:"usernames"`
	MarketQuestions    int       `json:"market_questions"`
	LastIndexedBlock   uint64    `json:"last_indexed_block"`
	LastUpdated        time.Time `json:"last_updated"`
	CacheAgeMillis     int64     `json:"cache_age_ms"`
}
