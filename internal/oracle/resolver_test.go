package oracle

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escrowOracle/internal/model"
	"escrowOracle/internal/observability"
)

type fakeEscrows struct {
	escrows  []model.Escrow
	countErr error
	readErr  map[uint64]error
}

func (f *fakeEscrows) EscrowCount(context.Context) (uint64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return uint64(len(f.escrows)), nil
}

func (f *fakeEscrows) GetEscrow(_ context.Context, id uint64) (model.Escrow, error) {
	if err := f.readErr[id]; err != nil {
		return model.Escrow{}, err
	}
	return f.escrows[id], nil
}

type fakeMarkets struct {
	markets map[string]*model.Market
	errs    map[string]error
}

func (f *fakeMarkets) Market(_ context.Context, id string) (*model.Market, error) {
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	return f.markets[id], nil
}

type submission struct {
	id      uint64
	outcome bool
}

// chainSubmitter accepts one resolution per escrow and reverts repeats.
type chainSubmitter struct {
	calls    []submission
	resolved map[uint64]bool
	sendErr  error
}

func (c *chainSubmitter) ResolveEscrow(_ context.Context, id uint64, outcome bool) (common.Hash, error) {
	c.calls = append(c.calls, submission{id: id, outcome: outcome})
	if c.sendErr != nil {
		return common.Hash{}, c.sendErr
	}
	hash := common.BigToHash(common.Big1)
	if c.resolved == nil {
		c.resolved = make(map[uint64]bool)
	}
	if c.resolved[id] {
		return hash, fmt.Errorf("escrow %d: %w", id, model.ErrTransactionReverted)
	}
	c.resolved[id] = true
	return hash, nil
}

type countingLimiter struct {
	waits int
}

func (c *countingLimiter) Wait(context.Context) error {
	c.waits++
	return nil
}

type reportSink struct {
	reports []model.CycleReport
}

func (r *reportSink) PutReport(report model.CycleReport) error {
	r.reports = append(r.reports, report)
	return nil
}

func activeEscrow(id uint64, marketID string) model.Escrow {
	return model.Escrow{
		ID:                 id,
		Depositor:          "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Beneficiary:        "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		Amount:             "100000000",
		MarketID:           marketID,
		ExpectedOutcomeYes: true,
		IsActive:           true,
	}
}

func newTestResolver(t *testing.T, escrows *fakeEscrows, markets *fakeMarkets, submitter Submitter, limiter Limiter, sink *reportSink) *Resolver {
	t.Helper()
	deps := Deps{
		Escrows:   escrows,
		Markets:   markets,
		Submitter: submitter,
		Limiter:   limiter,
		Metrics:   observability.NewMetrics("test"),
	}
	if sink != nil {
		deps.Reports = sink
	}
	resolver, err := NewResolver(deps)
	require.NoError(t, err)
	return resolver
}

func TestRunCycleResolvesYesMarket(t *testing.T) {
	escrows := &fakeEscrows{escrows: []model.Escrow{
		{ID: 0, MarketID: "m0", IsActive: false},
		activeEscrow(1, "m1"),
	}}
	markets := &fakeMarkets{markets: map[string]*model.Market{
		"m1": {ID: "m1", Question: "Will it rain?", Closed: true, Resolved: true, Outcome: "Yes"},
	}}
	submitter := &chainSubmitter{}
	sink := &reportSink{}
	resolver := newTestResolver(t, escrows, markets, submitter, &countingLimiter{}, sink)

	report, err := resolver.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Checked)
	require.Len(t, report.Resolved, 1)
	assert.Empty(t, report.Errors)
	assert.Equal(t, []submission{{id: 1, outcome: true}}, submitter.calls)

	got := report.Resolved[0]
	assert.Equal(t, uint64(1), got.EscrowID)
	assert.Equal(t, "Will it rain?", got.MarketQuestion)
	assert.Equal(t, "Yes", got.Outcome)
	assert.True(t, got.Success)
	assert.NotEmpty(t, got.TxHash)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	require.Len(t, sink.reports, 1)
}

func TestRunCycleSkipsUnsettledMarkets(t *testing.T) {
	escrows := &fakeEscrows{escrows: []model.Escrow{
		activeEscrow(0, "closed"),
		activeEscrow(1, "missing"),
		activeEscrow(2, "flaky"),
		activeEscrow(3, "open"),
	}}
	markets := &fakeMarkets{
		markets: map[string]*model.Market{
			"closed": {ID: "closed", Question: "Closed?", Closed: true, Resolved: false},
			"open":   {ID: "open", Question: "Open?"},
		},
		errs: map[string]error{"flaky": errors.New("timeout")},
	}
	submitter := &chainSubmitter{}
	limiter := &countingLimiter{}
	resolver := newTestResolver(t, escrows, markets, submitter, limiter, nil)

	report, err := resolver.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, report.Checked)
	assert.Empty(t, report.Resolved)
	assert.Empty(t, report.Errors)
	assert.Empty(t, submitter.calls)
	assert.Zero(t, limiter.waits)
}

func TestRunCycleRecordsRevertAndContinues(t *testing.T) {
	escrows := &fakeEscrows{escrows: []model.Escrow{
		activeEscrow(0, "m0"),
		activeEscrow(1, "m1"),
	}}
	markets := &fakeMarkets{markets: map[string]*model.Market{
		"m0": {ID: "m0", Question: "Q0", Resolved: true, Outcome: "no"},
		"m1": {ID: "m1", Question: "Q1", Resolved: true, Outcome: "YES"},
	}}
	submitter := &chainSubmitter{resolved: map[uint64]bool{0: true}}
	limiter := &countingLimiter{}
	resolver := newTestResolver(t, escrows, markets, submitter, limiter, nil)

	report, err := resolver.RunCycle(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Errors, 1)
	assert.Equal(t, uint64(0), report.Errors[0].EscrowID)
	assert.Contains(t, report.Errors[0].Error, model.ErrTransactionReverted.Error())
	assert.NotEmpty(t, report.Errors[0].TxHash)

	require.Len(t, report.Resolved, 1)
	assert.Equal(t, uint64(1), report.Resolved[0].EscrowID)
	assert.Equal(t, []submission{{id: 0, outcome: false}, {id: 1, outcome: true}}, submitter.calls)
	assert.Equal(t, 2, limiter.waits)
}

func TestRunCycleUnmappedOutcomeIsReportedWithoutSubmission(t *testing.T) {
	escrows := &fakeEscrows{escrows: []model.Escrow{activeEscrow(0, "m0")}}
	markets := &fakeMarkets{markets: map[string]*model.Market{
		"m0": {ID: "m0", Question: "Who wins?", Resolved: true, Outcome: "Trump"},
	}}
	submitter := &chainSubmitter{}
	resolver := newTestResolver(t, escrows, markets, submitter, &countingLimiter{}, nil)

	report, err := resolver.RunCycle(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0].Error, model.ErrUnmappedOutcome.Error())
	assert.Equal(t, "Trump", report.Errors[0].Outcome)
	assert.Empty(t, submitter.calls)
}

func TestOverlappingCyclesResolveOnce(t *testing.T) {
	// The reader keeps returning the escrow as active, as a stale read
	// racing the first confirmation would.
	escrows := &fakeEscrows{escrows: []model.Escrow{activeEscrow(0, "m0")}}
	markets := &fakeMarkets{markets: map[string]*model.Market{
		"m0": {ID: "m0", Question: "Q", Resolved: true, Outcome: "Yes"},
	}}
	submitter := &chainSubmitter{}
	resolver := newTestResolver(t, escrows, markets, submitter, &countingLimiter{}, nil)

	first, err := resolver.RunCycle(context.Background())
	require.NoError(t, err)
	second, err := resolver.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Len(t, first.Resolved, 1)
	assert.Empty(t, second.Resolved)
	require.Len(t, second.Errors, 1)
	assert.False(t, second.Errors[0].Success)
	assert.Len(t, submitter.calls, 2)
}

func TestRunCycleFailsWhenEnumerationFails(t *testing.T) {
	escrows := &fakeEscrows{countErr: errors.New("rpc down")}
	resolver := newTestResolver(t, escrows, &fakeMarkets{}, &chainSubmitter{}, &countingLimiter{}, nil)

	_, err := resolver.RunCycle(context.Background())
	require.Error(t, err)
}

func TestActiveEscrowsSkipsFailedReads(t *testing.T) {
	escrows := &fakeEscrows{
		escrows: []model.Escrow{
			activeEscrow(0, "m0"),
			activeEscrow(1, "m1"),
			{ID: 2, IsActive: true, IsClaimed: true},
		},
		readErr: map[uint64]error{0: errors.New("bad read")},
	}
	resolver := newTestResolver(t, escrows, &fakeMarkets{}, nil, nil, nil)

	active, err := resolver.ActiveEscrows(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, uint64(1), active[0].ID)
}

func TestResolvableSkipsUnsettledAndUnmappedMarkets(t *testing.T) {
	escrows := &fakeEscrows{escrows: []model.Escrow{
		activeEscrow(0, "m0"),
		activeEscrow(1, "m1"),
		activeEscrow(2, "m2"),
	}}
	markets := &fakeMarkets{markets: map[string]*model.Market{
		"m0": {ID: "m0", Question: "Q0", Resolved: true, Outcome: "No"},
		"m1": {ID: "m1", Question: "Q1", Closed: true},
		"m2": {ID: "m2", Question: "Q2", Closed: true, Resolved: true, Outcome: "Invalid"},
	}}
	resolver := newTestResolver(t, escrows, markets, nil, nil, nil)

	got, err := resolver.Resolvable(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(0), got[0].Escrow.ID)
	assert.Equal(t, "No", got[0].Outcome)
	assert.False(t, got[0].OutcomeYes)

	_, err = resolver.RunCycle(context.Background())
	require.Error(t, err, "a resolver without a submitter cannot run cycles")
}

func TestNewLimiterPacesSubmissions(t *testing.T) {
	limiter := NewLimiter(50*time.Millisecond, 1)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx))
	require.NoError(t, limiter.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)

	unlimited := NewLimiter(0, 1)
	start = time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, unlimited.Wait(ctx))
	}
	assert.Less(t, time.Since(start), 40*time.Millisecond)
}
