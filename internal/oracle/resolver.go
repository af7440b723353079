// Package oracle resolves escrows whose prediction market has settled.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"escrowOracle/internal/market"
	"escrowOracle/internal/model"
	"escrowOracle/internal/observability"
	"escrowOracle/internal/storage"
)

// EscrowReader enumerates escrows on chain.
type EscrowReader interface {
	EscrowCount(ctx context.Context) (uint64, error)
	GetEscrow(ctx context.Context, id uint64) (model.Escrow, error)
}

// Submitter sends a resolution transaction and waits for its receipt.
type Submitter interface {
	ResolveEscrow(ctx context.Context, id uint64, outcome bool) (common.Hash, error)
}

// MarketSource fetches markets. A nil market means it is unknown.
type MarketSource interface {
	Market(ctx context.Context, marketID string) (*model.Market, error)
}

// Limiter paces submissions.
type Limiter interface {
	Wait(ctx context.Context) error
}

// NewLimiter allows one submission per interval with the given burst.
func NewLimiter(interval time.Duration, burst int) *rate.Limiter {
	if burst <= 0 {
		burst = 1
	}
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Every(interval), burst)
}

// Deps are the collaborators of a Resolver. Escrows, Markets and Submitter
// are required; Submitter may be nil for a dry-run resolver.
type Deps struct {
	Escrows   EscrowReader
	Markets   MarketSource
	Submitter Submitter
	Limiter   Limiter
	Reports   storage.ReportSink
	Metrics   *observability.Metrics
	Logger    *zap.Logger
}

// Resolver runs resolution cycles. It keeps no state between cycles; the
// contract's isActive flag is the source of truth.
type Resolver struct {
	escrows   EscrowReader
	markets   MarketSource
	submitter Submitter
	limiter   Limiter
	reports   storage.ReportSink
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewResolver(deps Deps) (*Resolver, error) {
	if deps.Escrows == nil {
		return nil, fmt.Errorf("escrow reader is nil")
	}
	if deps.Markets == nil {
		return nil, fmt.Errorf("market source is nil")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limiter := deps.Limiter
	if limiter == nil {
		limiter = NewLimiter(0, 1)
	}
	return &Resolver{
		escrows:   deps.Escrows,
		markets:   deps.Markets,
		submitter: deps.Submitter,
		limiter:   limiter,
		reports:   deps.Reports,
		metrics:   deps.Metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// ActiveEscrows returns every escrow that is active and unclaimed. Escrow
// ids run from 0 to escrowCount-1. A failed read of one escrow skips it.
func (r *Resolver) ActiveEscrows(ctx context.Context) ([]model.Escrow, error) {
	count, err := r.escrows.EscrowCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("escrow count: %w", err)
	}

	active := make([]model.Escrow, 0)
	for id := uint64(0); id < count; id++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e, err := r.escrows.GetEscrow(ctx, id)
		if err != nil {
			r.logger.Warn("escrow read failed", zap.Uint64("escrow_id", id), zap.Error(err))
			continue
		}
		if e.Eligible() {
			active = append(active, e)
		}
	}
	return active, nil
}

// RunCycle checks every active escrow and submits a resolution for those
// whose market has settled. Per-escrow failures are collected in the report;
// only a failure to enumerate escrows returns an error.
func (r *Resolver) RunCycle(ctx context.Context) (report model.CycleReport, err error) {
	if r.submitter == nil {
		return model.CycleReport{}, fmt.Errorf("resolver has no submitter")
	}

	report = model.CycleReport{
		StartedAt: r.now(),
		Resolved:  make([]model.ResolutionResult, 0),
		Errors:    make([]model.ResolutionResult, 0),
	}
	start := time.Now()
	defer func() {
		r.observeCycle(err, time.Since(start))
	}()

	active, err := r.ActiveEscrows(ctx)
	if err != nil {
		return model.CycleReport{}, err
	}
	report.Checked = len(active)
	r.logger.Info("resolver check", zap.Int("active_escrows", len(active)))

	for _, e := range active {
		if err := ctx.Err(); err != nil {
			return model.CycleReport{}, err
		}
		if r.metrics != nil {
			r.metrics.EscrowsChecked.Inc()
		}

		result := r.checkAndResolve(ctx, e)
		if result == nil {
			continue
		}
		if result.Success {
			report.Resolved = append(report.Resolved, *result)
		} else {
			report.Errors = append(report.Errors, *result)
		}
	}

	report.FinishedAt = r.now()
	r.logger.Info("resolver cycle complete",
		zap.Int("checked", report.Checked),
		zap.Int("resolved", len(report.Resolved)),
		zap.Int("errors", len(report.Errors)),
	)

	if r.reports != nil {
		if err := r.reports.PutReport(report); err != nil {
			r.logger.Warn("report write failed", zap.Error(err))
		}
	}
	return report, nil
}

// checkAndResolve runs the decision for one escrow. A nil result means the
// escrow was skipped for this cycle.
func (r *Resolver) checkAndResolve(ctx context.Context, e model.Escrow) *model.ResolutionResult {
	logger := r.logger.With(zap.Uint64("escrow_id", e.ID), zap.String("market_id", e.MarketID))

	m, ok := r.settledMarket(ctx, e, logger)
	if !ok {
		return nil
	}

	result := &model.ResolutionResult{
		EscrowID:       e.ID,
		MarketID:       e.MarketID,
		MarketQuestion: m.Question,
		Outcome:        m.Outcome,
	}

	outcome, err := market.OutcomeBool(m)
	if err != nil {
		logger.Warn("market resolved with unmapped outcome", zap.String("outcome", m.Outcome))
		result.Error = err.Error()
		r.countResolution("unmapped")
		return result
	}

	if err := r.limiter.Wait(ctx); err != nil {
		result.Error = err.Error()
		r.countResolution("error")
		return result
	}

	logger.Info("market resolved, submitting", zap.String("question", m.Question), zap.String("outcome", m.Outcome))
	submittedAt := time.Now()
	hash, err := r.submitter.ResolveEscrow(ctx, e.ID, outcome)
	if r.metrics != nil {
		r.metrics.SubmissionLatency.Observe(time.Since(submittedAt).Seconds())
	}
	if hash != (common.Hash{}) {
		result.TxHash = hash.Hex()
	}
	if err != nil {
		logger.Error("resolution failed", zap.String("tx", result.TxHash), zap.Error(err))
		result.Error = err.Error()
		if errors.Is(err, model.ErrTransactionReverted) {
			r.countResolution("reverted")
		} else {
			r.countResolution("error")
		}
		return result
	}

	logger.Info("escrow resolved", zap.String("tx", result.TxHash), zap.Bool("outcome", outcome))
	result.Success = true
	r.countResolution("success")
	return result
}

// settledMarket returns the escrow's market when it is resolved. Missing
// markets, lookup failures and markets awaiting an outcome are skipped.
func (r *Resolver) settledMarket(ctx context.Context, e model.Escrow, logger *zap.Logger) (*model.Market, bool) {
	m, err := r.markets.Market(ctx, e.MarketID)
	if err != nil {
		logger.Warn("market fetch failed", zap.Error(err))
		return nil, false
	}
	if m == nil {
		logger.Info("market not found")
		return nil, false
	}
	if !market.IsResolved(m) {
		if m.Closed {
			logger.Info("market closed but not yet resolved", zap.String("question", m.Question))
		}
		return nil, false
	}
	return m, true
}

// Resolvable lists active escrows whose market has settled without
// submitting anything.
func (r *Resolver) Resolvable(ctx context.Context) ([]model.Resolvable, error) {
	active, err := r.ActiveEscrows(ctx)
	if err != nil {
		return nil, err
	}
	return r.ResolvableAmong(ctx, active), nil
}

// ResolvableAmong filters already enumerated escrows down to those whose
// market has settled on Yes or No. Other outcomes cannot be submitted and
// are left out.
func (r *Resolver) ResolvableAmong(ctx context.Context, active []model.Escrow) []model.Resolvable {
	out := make([]model.Resolvable, 0)
	for _, e := range active {
		logger := r.logger.With(zap.Uint64("escrow_id", e.ID), zap.String("market_id", e.MarketID))
		m, ok := r.settledMarket(ctx, e, logger)
		if !ok {
			continue
		}
		outcome, err := market.OutcomeBool(m)
		if err != nil {
			logger.Warn("market resolved with unmapped outcome", zap.String("outcome", m.Outcome))
			continue
		}
		out = append(out, model.Resolvable{
			Escrow:         e,
			MarketQuestion: m.Question,
			Outcome:        m.Outcome,
			OutcomeYes:     outcome,
		})
	}
	return out
}

func (r *Resolver) countResolution(result string) {
	if r.metrics != nil {
		r.metrics.Resolutions.WithLabelValues(result).Inc()
	}
}

func (r *Resolver) observeCycle(err error, elapsed time.Duration) {
	if r.metrics == nil {
		return
	}
	r.metrics.ResolverCycles.WithLabelValues(observability.CycleResult(err)).Inc()
	r.metrics.ResolverDuration.Observe(elapsed.Seconds())
}
