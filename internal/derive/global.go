package derive

import (
	"math/big"

	"escrowOracle/internal/model"
)

// Global summarizes the event set. Volume counts resolved escrows only.
func Global(events model.EventSet) model.GlobalStats {
	volume := new(big.Int)
	winners := make(map[string]struct{})
	closed := make(map[uint64]struct{})
	for _, e := range events.Resolved {
		volume.Add(volume, parseAmount(e.Amount))
		winners[NormalizeAddress(e.Beneficiary)] = struct{}{}
		closed[e.EscrowID] = struct{}{}
	}
	for _, e := range events.Refunded {
		closed[e.EscrowID] = struct{}{}
	}

	active := 0
	for _, e := range events.Created {
		if _, ok := closed[e.EscrowID]; !ok {
			active++
		}
	}

	stats := model.GlobalStats{
		TotalEscrowsCreated:  len(events.Created),
		TotalEscrowsResolved: len(events.Resolved),
		TotalEscrowsRefunded: len(events.Refunded),
		ActiveEscrows:        active,
		TotalVolumeUSD:       ToUSD(volume),
		UniqueWinners:        len(winners),
	}
	if len(events.Resolved) > 0 {
		stats.AverageEscrowUSD = stats.TotalVolumeUSD / float64(len(events.Resolved))
	}
	return stats
}
