package model

import "time"

// ResolutionResult is the outcome of one escrow evaluated by the resolver.
type ResolutionResult struct {
	EscrowID       uint64 `json:"escrow_id"`
	MarketID       string `json:"market_id"`
	MarketQuestion string `json:"market_question"`
	Outcome        string `json:"outcome"`
	Success        bool   `json:"success"`
	TxHash         string `json:"tx_hash,omitempty"`
	Error          string `json:"error,omitempty"`
}

// CycleReport aggregates one resolver cycle.
type CycleReport struct {
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Checked    int                `json:"checked"`
	Resolved   []ResolutionResult `json:"resolved"`
	Errors     []ResolutionResult `json:"errors"`
}

// Resolvable describes an active escrow whose market has settled.
type Resolvable struct {
	Escrow         Escrow `json:"escrow"`
	MarketQuestion string `json:"market_question"`
	Outcome        string `json:"outcome"`
	OutcomeYes     bool   `json:"outcome_yes"`
}
