package model

import "fmt"

// Variant names a lifecycle transition of an escrow.
type Variant string

const (
	VariantCreated  Variant = "created"
	VariantResolved Variant = "resolved"
	VariantRefunded Variant = "refunded"
)

// LifecycleEvent is an immutable escrow transition observed on chain.
// Addresses are stored lower-cased; amounts are base-unit decimal strings.
type LifecycleEvent struct {
	Variant     Variant `json:"variant"`
	EscrowID    uint64  `json:"escrow_id"`
	Timestamp   uint64  `json:"timestamp"`
	BlockNumber uint64  `json:"block_number"`
	TxHash      string  `json:"tx_hash"`
	LogIndex    uint64  `json:"log_index"`
	Amount      string  `json:"amount"`

	// Created and Refunded.
	Depositor string `json:"depositor,omitempty"`
	// Created and Resolved (the winner).
	Beneficiary string `json:"beneficiary,omitempty"`

	MarketID           string `json:"market_id,omitempty"`
	ExpectedOutcomeYes bool   `json:"expected_outcome_yes,omitempty"`

	Outcome bool `json:"outcome,omitempty"`
}

// Key identifies an event for deduplication.
func (e LifecycleEvent) Key() string {
	return fmt.Sprintf("%d:%s:%d", e.EscrowID, e.Variant, e.BlockNumber)
}

// EventSet groups lifecycle events by variant.
type EventSet struct {
	Created  []LifecycleEvent `json:"created"`
	Resolved []LifecycleEvent `json:"resolved"`
	Refunded []LifecycleEvent `json:"refunded"`
}

// Len returns the total number of events.
func (s EventSet) Len() int {
	return len(s.Created) + len(s.Resolved) + len(s.Refunded)
}

// All returns every event, created first, then resolved, then refunded.
func (s EventSet) All() []LifecycleEvent {
	out := make([]LifecycleEvent, 0, s.Len())
	out = append(out, s.Created...)
	out = append(out, s.Resolved...)
	out = append(out, s.Refunded...)
	return out
}

// Add appends the event to the sequence matching its variant.
func (s *EventSet) Add(e LifecycleEvent) error {
	switch e.Variant {
	case VariantCreated:
		s.Created = append(s.Created, e)
	case VariantResolved:
		s.Resolved = append(s.Resolved, e)
	case VariantRefunded:
		s.Refunded = append(s.Refunded, e)
	default:
		return fmt.Errorf("unknown variant %q", e.Variant)
	}
	return nil
}
