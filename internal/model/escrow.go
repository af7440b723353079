package model

// Escrow is the on-chain escrow record as returned by getEscrow.
type Escrow struct {
	ID                 uint64 `json:"id"`
	Depositor          string `json:"depositor"`
	Beneficiary        string `json:"beneficiary"`
	Amount             string `json:"amount"`
	MarketID           string `json:"market_id"`
	ExpectedOutcomeYes bool   `json:"expected_outcome_yes"`
	IsActive           bool   `json:"is_active"`
	IsClaimed          bool   `json:"is_claimed"`
	CreatedAt          uint64 `json:"created_at"`
}

// Eligible reports whether the escrow should be checked for resolution.
func (e Escrow) Eligible() bool {
	return e.IsActive && !e.IsClaimed
}

// Market is the subset of a prediction market the oracle needs.
type Market struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Closed   bool   `json:"closed"`
	Resolved bool   `json:"resolved"`
	Outcome  string `json:"outcome,omitempty"`
}
