package indexer

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"escrowOracle/internal/derive"
	"escrowOracle/internal/model"
)

// enrichUsernames returns a copy of known extended with usernames for
// participants not yet looked up, and the addresses whose lookup completed.
// The caller marks those as looked up once the cycle publishes; failed
// lookups are retried next cycle.
func (r *Runner) enrichUsernames(ctx context.Context, events model.EventSet, known map[string]string) (map[string]string, []string) {
	usernames := copyMap(known)
	if r.usernames == nil {
		return usernames, nil
	}

	pending := make([]string, 0)
	for _, address := range derive.Participants(events) {
		if _, ok := usernames[address]; ok {
			continue
		}
		if _, ok := r.lookedUp[address]; ok {
			continue
		}
		pending = append(pending, address)
	}
	if len(pending) == 0 {
		return usernames, nil
	}

	var (
		mu        sync.Mutex
		failed    int
		completed = make([]string, 0, len(pending))
		g         errgroup.Group
	)
	g.SetLimit(r.cfg.UsernameConcurrency)
	for _, address := range pending {
		address := address
		g.Go(func() error {
			name, err := r.usernames.Username(ctx, address)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				r.countUsername(err)
				r.logger.Debug("username lookup failed", zap.String("address", address), zap.Error(err))
				return nil
			}
			r.countUsername(nil)
			completed = append(completed, address)
			if name != "" {
				usernames[address] = name
			}
			return nil
		})
	}
	_ = g.Wait()

	r.logger.Debug("usernames enriched", zap.Int("requested", len(pending)), zap.Int("failed", failed), zap.Int("known", len(usernames)))
	return usernames, completed
}

// enrichMarketQuestions returns a copy of known extended with questions for
// market ids referenced by Created events. Unknown markets and failures stay
// uncached so they are retried.
func (r *Runner) enrichMarketQuestions(ctx context.Context, events model.EventSet, known map[string]string) map[string]string {
	questions := copyMap(known)
	if r.markets == nil {
		return questions
	}

	seen := make(map[string]struct{})
	pending := make([]string, 0)
	for _, e := range events.Created {
		if e.MarketID == "" {
			continue
		}
		if _, ok := questions[e.MarketID]; ok {
			continue
		}
		if _, ok := seen[e.MarketID]; ok {
			continue
		}
		seen[e.MarketID] = struct{}{}
		pending = append(pending, e.MarketID)
	}
	if len(pending) == 0 {
		return questions
	}
	sort.Strings(pending)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(r.cfg.UsernameConcurrency)
	for _, marketID := range pending {
		marketID := marketID
		g.Go(func() error {
			market, err := r.markets.Market(ctx, marketID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.countMarket(err)
				r.logger.Warn("market lookup failed", zap.String("market_id", marketID), zap.Error(err))
				return nil
			}
			if market == nil || market.Question == "" {
				r.countMarket(model.ErrMarketNotFound)
				return nil
			}
			r.countMarket(nil)
			questions[marketID] = market.Question
			return nil
		})
	}
	_ = g.Wait()

	return questions
}

func (r *Runner) countUsername(err error) {
	if r.metrics != nil {
		r.metrics.UsernameLookups.WithLabelValues(lookupResult(err)).Inc()
	}
}

func (r *Runner) countMarket(err error) {
	if r.metrics != nil {
		r.metrics.MarketLookups.WithLabelValues(lookupResult(err)).Inc()
	}
}

func lookupResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrMarketNotFound):
		return "not_found"
	default:
		return "error"
	}
}
