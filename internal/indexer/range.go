package indexer

import "fmt"

// BlockRange represents an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// syncWindow returns the range the next cycle covers: everything after the
// watermark, or the lookback window ending at head on a cold start. It
// reports false when the watermark is already at or past head.
func syncWindow(lastIndexed, head, lookback uint64) (BlockRange, bool) {
	if lastIndexed > 0 {
		if lastIndexed >= head {
			return BlockRange{}, false
		}
		return BlockRange{From: lastIndexed + 1, To: head}, true
	}
	if head > lookback {
		return BlockRange{From: head - lookback, To: head}, true
	}
	return BlockRange{From: 0, To: head}, true
}

// SplitRange cuts an inclusive range into eth_getLogs batches of at most
// batchSize blocks.
func SplitRange(from, to, batchSize uint64) ([]BlockRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block %d is before from block %d", to, from)
	}

	ranges := make([]BlockRange, 0, (to-from)/batchSize+1)
	for start := from; ; {
		end := to
		if to-start >= batchSize {
			end = start + batchSize - 1
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if end == to {
			return ranges, nil
		}
		start = end + 1
	}
}
