package derive

import (
	"fmt"
	"sort"

	"escrowOracle/internal/model"
)

// DefaultRecentLimit is the page size of RecentActivity when none is given.
const DefaultRecentLimit = 20

// ActivityFeed merges all variants into one feed, most recent first.
func ActivityFeed(events model.EventSet, usernames, marketQuestions map[string]string) []model.ActivityItem {
	items := make([]model.ActivityItem, 0, events.Len())

	for _, e := range events.Created {
		yes := e.ExpectedOutcomeYes
		items = append(items, model.ActivityItem{
			Type:                model.VariantCreated,
			EscrowID:            e.EscrowID,
			Timestamp:           e.Timestamp,
			BlockNumber:         e.BlockNumber,
			TxHash:              e.TxHash,
			Amount:              e.Amount,
			Depositor:           e.Depositor,
			Beneficiary:         e.Beneficiary,
			MarketID:            e.MarketID,
			YesOutcome:          &yes,
			DepositorUsername:   usernames[NormalizeAddress(e.Depositor)],
			BeneficiaryUsername: usernames[NormalizeAddress(e.Beneficiary)],
			MarketQuestion:      marketQuestions[e.MarketID],
		})
	}
	for _, e := range events.Resolved {
		outcome := e.Outcome
		items = append(items, model.ActivityItem{
			Type:           model.VariantResolved,
			EscrowID:       e.EscrowID,
			Timestamp:      e.Timestamp,
			BlockNumber:    e.BlockNumber,
			TxHash:         e.TxHash,
			Amount:         e.Amount,
			Winner:         e.Beneficiary,
			Outcome:        &outcome,
			WinnerUsername: usernames[NormalizeAddress(e.Beneficiary)],
		})
	}
	for _, e := range events.Refunded {
		items = append(items, model.ActivityItem{
			Type:        model.VariantRefunded,
			EscrowID:    e.EscrowID,
			Timestamp:   e.Timestamp,
			BlockNumber: e.BlockNumber,
			TxHash:      e.TxHash,
			Amount:      e.Amount,
			RefundedTo:  e.Depositor,
		})
	}

	for i := range items {
		items[i].Message = Message(items[i])
	}

	// Same-timestamp items keep a stable order: later blocks first, then escrow id.
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Timestamp != items[j].Timestamp {
			return items[i].Timestamp > items[j].Timestamp
		}
		if items[i].BlockNumber != items[j].BlockNumber {
			return items[i].BlockNumber > items[j].BlockNumber
		}
		return items[i].EscrowID > items[j].EscrowID
	})
	return items
}

// Message renders the human readable line of an activity item.
func Message(item model.ActivityItem) string {
	amount := FormatUSD(item.Amount)

	switch item.Type {
	case model.VariantCreated:
		depositor := nameOr(item.DepositorUsername, item.Depositor)
		beneficiary := nameOr(item.BeneficiaryUsername, item.Beneficiary)
		market := item.MarketQuestion
		if market == "" {
			market = item.MarketID
		}
		return fmt.Sprintf("%s challenged %s with $%s USDC on \"%s\" resolving to %s",
			depositor, beneficiary, amount, market, yesNo(item.YesOutcome))
	case model.VariantResolved:
		winner := nameOr(item.WinnerUsername, item.Winner)
		return fmt.Sprintf("Escrow #%d resolved %s — %s won $%s USDC",
			item.EscrowID, yesNo(item.Outcome), winner, amount)
	case model.VariantRefunded:
		return fmt.Sprintf("Escrow #%d refunded $%s USDC to %s",
			item.EscrowID, amount, ShortAddress(item.RefundedTo))
	default:
		return "Unknown activity"
	}
}

// UserActivity filters the feed to items where address takes part.
func UserActivity(feed []model.ActivityItem, address string) []model.ActivityItem {
	address = NormalizeAddress(address)
	out := make([]model.ActivityItem, 0)
	for _, item := range feed {
		if NormalizeAddress(item.Depositor) == address ||
			NormalizeAddress(item.Beneficiary) == address ||
			NormalizeAddress(item.Winner) == address ||
			NormalizeAddress(item.RefundedTo) == address {
			out = append(out, item)
		}
	}
	return out
}

// RecentActivity returns the first limit items of the feed.
func RecentActivity(feed []model.ActivityItem, limit int) []model.ActivityItem {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > len(feed) {
		limit = len(feed)
	}
	return feed[:limit]
}

func nameOr(username, address string) string {
	if username != "" {
		return username
	}
	return ShortAddress(address)
}

func yesNo(value *bool) string {
	if value != nil && *value {
		return "YES"
	}
	return "NO"
}
