package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"escrowOracle/internal/derive"
	"escrowOracle/internal/escrow"
	"escrowOracle/internal/model"
	"escrowOracle/internal/observability"
	"escrowOracle/internal/storage"
	"escrowOracle/internal/store"
)

// DefaultLookback is the cold-start backfill window in blocks.
const DefaultLookback uint64 = 10_000

// ChainReader is the subset of the chain client the indexer needs.
type ChainReader interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// UsernameSource resolves on-chain usernames. An empty name means none is set.
type UsernameSource interface {
	Username(ctx context.Context, address string) (string, error)
}

// MarketSource fetches markets. A nil market means it is unknown.
type MarketSource interface {
	Market(ctx context.Context, marketID string) (*model.Market, error)
}

// RunConfig holds runtime settings for the indexer.
type RunConfig struct {
	Contract            common.Address
	Lookback            uint64
	BatchSize           uint64
	MaxRetries          int
	RetryBackoff        time.Duration
	UsernameConcurrency int
}

// Deps are the collaborators of a Runner. Chain and Store are required.
type Deps struct {
	Chain     ChainReader
	Usernames UsernameSource
	Markets   MarketSource
	Store     *store.Store
	State     StateStore
	Sink      storage.EventSink
	Metrics   *observability.Metrics
	Logger    *zap.Logger
}

// Runner synchronizes the store with the escrow contract's log history. It is
// the store's only writer and must not run SyncOnce concurrently.
type Runner struct {
	cfg       RunConfig
	chain     ChainReader
	usernames UsernameSource
	markets   MarketSource
	store     *store.Store
	state     StateStore
	sink      storage.EventSink
	metrics   *observability.Metrics
	logger    *zap.Logger
	decoder   *escrow.Decoder
	now       func() time.Time

	restored bool
	// lookedUp holds addresses whose username lookup completed, named or
	// not, in a published cycle.
	lookedUp map[string]struct{}
	// unsaved holds events not yet accepted by the state store.
	unsaved []model.LifecycleEvent
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, deps Deps) (*Runner, error) {
	if deps.Chain == nil {
		return nil, fmt.Errorf("chain reader is nil")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if cfg.Lookback == 0 {
		cfg.Lookback = DefaultLookback
	}
	if cfg.BatchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if cfg.UsernameConcurrency <= 0 {
		cfg.UsernameConcurrency = 1
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	decoder, err := escrow.NewDecoder()
	if err != nil {
		return nil, err
	}

	return &Runner{
		cfg:       cfg,
		chain:     deps.Chain,
		usernames: deps.Usernames,
		markets:   deps.Markets,
		store:     deps.Store,
		state:     deps.State,
		sink:      deps.Sink,
		metrics:   deps.Metrics,
		logger:    logger,
		decoder:   decoder,
		now:       func() time.Time { return time.Now().UTC() },
		lookedUp:  make(map[string]struct{}),
	}, nil
}

// SyncOnce runs one indexer cycle. On error nothing is published and the
// watermark is unchanged, so the next cycle retries the same range.
func (r *Runner) SyncOnce(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		r.observeCycle(err, time.Since(start))
	}()

	if !r.restored {
		r.restore(ctx)
		r.restored = true
	}

	head, err := r.latestBlockWithRetry(ctx)
	if err != nil {
		return fmt.Errorf("get latest block: %w", err)
	}

	current := r.store.Snapshot()
	last := current.LastIndexedBlock
	window, ok := syncWindow(last, head, r.cfg.Lookback)
	if !ok {
		r.logger.Debug("nothing to sync", zap.Uint64("last_indexed_block", last), zap.Uint64("head", head))
		return nil
	}

	r.logger.Info("sync start", zap.Uint64("from", window.From), zap.Uint64("to", window.To), zap.Bool("incremental", last > 0))

	fetched, err := r.fetchEvents(ctx, window)
	if err != nil {
		return err
	}

	existing := model.EventSet{}
	if last > 0 {
		existing = current.Events()
	}
	merged, added := store.MergeEvents(existing, fetched)

	usernames, lookedUp := r.enrichUsernames(ctx, merged, current.Usernames)
	questions := r.enrichMarketQuestions(ctx, merged, current.MarketQuestions)
	if err := ctx.Err(); err != nil {
		return err
	}

	views := derive.All(merged, usernames, questions)
	next := &model.Snapshot{
		CreatedEvents:    merged.Created,
		ResolvedEvents:   merged.Resolved,
		RefundedEvents:   merged.Refunded,
		Leaderboard:      views.Leaderboard,
		ActivityFeed:     views.ActivityFeed,
		UserStats:        views.UserStats,
		Usernames:        usernames,
		MarketQuestions:  questions,
		GlobalStats:      views.GlobalStats,
		LastIndexedBlock: head,
		LastUpdated:      r.now(),
	}
	if !r.store.Publish(next) {
		return fmt.Errorf("publish rejected: watermark %d below %d", head, r.store.LastIndexedBlock())
	}

	newEvents := newlyAdded(existing, merged)
	r.afterPublish(ctx, next, newEvents, lookedUp)

	r.logger.Info("sync complete",
		zap.Uint64("last_indexed_block", head),
		zap.Int("added", added),
		zap.Int("created", len(merged.Created)),
		zap.Int("resolved", len(merged.Resolved)),
		zap.Int("refunded", len(merged.Refunded)),
		zap.Int("leaderboard", len(views.Leaderboard)),
		zap.Int("users", len(views.UserStats)),
	)
	return nil
}

func (r *Runner) fetchEvents(ctx context.Context, window BlockRange) (model.EventSet, error) {
	ranges, err := SplitRange(window.From, window.To, r.cfg.BatchSize)
	if err != nil {
		return model.EventSet{}, err
	}

	addresses := []common.Address{r.cfg.Contract}
	topic0 := r.decoder.Topic0()

	var events model.EventSet
	for _, blockRange := range ranges {
		if err := ctx.Err(); err != nil {
			return model.EventSet{}, err
		}

		logs, err := r.filterLogsWithRetry(ctx, blockRange.From, blockRange.To, addresses, topic0)
		if err != nil {
			return model.EventSet{}, fmt.Errorf("filter logs %d-%d: %w", blockRange.From, blockRange.To, err)
		}

		for _, log := range logs {
			if log.Removed {
				continue
			}
			ts, err := r.blockTimestampWithRetry(ctx, log.BlockNumber)
			if err != nil {
				return model.EventSet{}, fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
			}
			event, err := r.decoder.Decode(log, ts)
			if err != nil {
				if errors.Is(err, escrow.ErrUnknownEvent) {
					continue
				}
				// Logs are immutable; a log that fails to decode now never will.
				r.logger.Warn("skip undecodable log",
					zap.Uint64("block_number", log.BlockNumber),
					zap.String("tx", log.TxHash.Hex()),
					zap.Uint("log_index", log.Index),
					zap.Error(err),
				)
				continue
			}
			if err := events.Add(event); err != nil {
				return model.EventSet{}, err
			}
		}

		r.logger.Debug("batch fetched", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To), zap.Int("logs", len(logs)))
	}
	return events, nil
}

func (r *Runner) afterPublish(ctx context.Context, snap *model.Snapshot, added []model.LifecycleEvent, lookedUp []string) {
	for _, address := range lookedUp {
		r.lookedUp[address] = struct{}{}
	}

	if r.metrics != nil {
		r.metrics.LastIndexedBlock.Set(float64(snap.LastIndexedBlock))
		for _, e := range added {
			r.metrics.EventsIndexed.WithLabelValues(string(e.Variant)).Inc()
		}
	}

	if r.sink != nil && len(added) > 0 {
		if err := r.sink.PutEvents(added); err != nil {
			r.logger.Warn("journal write failed", zap.Int("events", len(added)), zap.Error(err))
		}
	}

	if r.state != nil {
		state := IndexState{
			LastIndexedBlock: snap.LastIndexedBlock,
			Events:           snap.Events(),
			MarketQuestions:  snap.MarketQuestions,
		}
		// Events from cycles whose save failed ride along until one succeeds.
		pending := append(r.unsaved, added...)
		if err := r.state.Save(ctx, state, pending); err != nil {
			r.unsaved = pending
			r.logger.Warn("save index state failed",
				zap.Uint64("last_indexed_block", snap.LastIndexedBlock),
				zap.Int("unsaved_events", len(pending)),
				zap.Error(err),
			)
			return
		}
		r.unsaved = nil
	}
}

// restore rehydrates the store from the state store once per process.
// Failure falls back to a cold start.
func (r *Runner) restore(ctx context.Context) {
	if r.state == nil || r.store.LastIndexedBlock() > 0 {
		return
	}
	state, ok, err := r.state.Load(ctx)
	if err != nil {
		r.logger.Warn("load index state failed, starting cold", zap.Error(err))
		return
	}
	if !ok || state.LastIndexedBlock == 0 {
		return
	}

	events, _ := store.MergeEvents(model.EventSet{}, state.Events)
	questions := copyMap(state.MarketQuestions)
	views := derive.All(events, nil, questions)
	r.store.Publish(&model.Snapshot{
		CreatedEvents:    events.Created,
		ResolvedEvents:   events.Resolved,
		RefundedEvents:   events.Refunded,
		Leaderboard:      views.Leaderboard,
		ActivityFeed:     views.ActivityFeed,
		UserStats:        views.UserStats,
		Usernames:        map[string]string{},
		MarketQuestions:  questions,
		GlobalStats:      views.GlobalStats,
		LastIndexedBlock: state.LastIndexedBlock,
		LastUpdated:      r.now(),
	})
	r.logger.Info("resume from index state",
		zap.Uint64("last_indexed_block", state.LastIndexedBlock),
		zap.Int("events", events.Len()),
	)
}

func (r *Runner) observeCycle(err error, elapsed time.Duration) {
	if r.metrics == nil {
		return
	}
	r.metrics.IndexerCycles.WithLabelValues(observability.CycleResult(err)).Inc()
	r.metrics.IndexerDuration.Observe(elapsed.Seconds())
}

func (r *Runner) latestBlockWithRetry(ctx context.Context) (uint64, error) {
	var head uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		head, err = r.chain.LatestBlockNumber(ctx)
		if err != nil {
			r.logger.Warn("latest block fetch failed", zap.Error(err))
		}
		return err
	})
	return head, err
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = r.chain.FilterLogs(ctx, fromBlock, toBlock, addresses, topic0)
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (r *Runner) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		ts, err = r.chain.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			r.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return err
	})
	return ts, err
}

// newlyAdded returns the events of merged that are not in existing.
func newlyAdded(existing, merged model.EventSet) []model.LifecycleEvent {
	seen := make(map[string]struct{}, existing.Len())
	for _, e := range existing.All() {
		seen[e.Key()] = struct{}{}
	}
	out := make([]model.LifecycleEvent, 0)
	for _, e := range merged.All() {
		if _, ok := seen[e.Key()]; !ok {
			out = append(out, e)
		}
	}
	return out
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
