package store

import "escrowOracle/internal/model"

// MergeEvents appends fetched events to existing ones, dropping any event whose
// (escrowId, variant, blockNumber) key was already seen. Inputs are not
// modified. The second return value counts events that were actually added.
func MergeEvents(existing, fetched model.EventSet) (model.EventSet, int) {
	seen := make(map[string]struct{}, existing.Len()+fetched.Len())
	var merged model.EventSet
	added := 0

	for _, e := range existing.All() {
		if _, ok := seen[e.Key()]; ok {
			continue
		}
		seen[e.Key()] = struct{}{}
		_ = merged.Add(e)
	}
	for _, e := range fetched.All() {
		if _, ok := seen[e.Key()]; ok {
			continue
		}
		seen[e.Key()] = struct{}{}
		if err := merged.Add(e); err == nil {
			added++
		}
	}

	if merged.Created == nil {
		merged.Created = []model.LifecycleEvent{}
	}
	if merged.Resolved == nil {
		merged.Resolved = []model.LifecycleEvent{}
	}
	if merged.Refunded == nil {
		merged.Refunded = []model.LifecycleEvent{}
	}
	return merged, added
}
