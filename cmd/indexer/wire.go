package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"escrowOracle/internal/chain"
	"escrowOracle/internal/config"
	"escrowOracle/internal/escrow"
	"escrowOracle/internal/indexer"
	"escrowOracle/internal/market"
	"escrowOracle/internal/observability"
	"escrowOracle/internal/oracle"
	"escrowOracle/internal/storage"
	"escrowOracle/internal/storage/postgres"
	"escrowOracle/internal/store"
)

const stateName = "escrow-indexer"

// app holds the collaborators shared by every command.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	chain    *chain.Client
	contract *escrow.Contract
	markets  *market.Client
	store    *store.Store
	metrics  *observability.Metrics
	closers  []func()
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	contractAddr, err := indexer.ParseAddress(cfg.Contract)
	if err != nil {
		return nil, err
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	contract, err := escrow.NewContract(contractAddr, chainClient)
	if err != nil {
		chainClient.Close()
		return nil, err
	}

	markets, err := market.NewClient(cfg.MarketURL, cfg.MarketTimeout)
	if err != nil {
		chainClient.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		chain:    chainClient,
		contract: contract,
		markets:  markets,
		store:    store.New(),
		metrics:  observability.NewMetrics(observability.DefaultNamespace),
		closers:  []func(){chainClient.Close},
	}, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) newRunner(ctx context.Context) (*indexer.Runner, error) {
	state, err := a.stateStore(ctx)
	if err != nil {
		return nil, err
	}

	deps := indexer.Deps{
		Chain:     a.chain,
		Usernames: a.contract,
		Markets:   a.markets,
		Store:     a.store,
		State:     state,
		Metrics:   a.metrics,
		Logger:    a.logger.With(zap.String("component", "indexer")),
	}
	if a.cfg.JournalOut != "" {
		deps.Sink = storage.NewJsonlStorage(a.cfg.JournalOut)
	}

	return indexer.NewRunner(indexer.RunConfig{
		Contract:            a.contract.Address(),
		Lookback:            a.cfg.Lookback,
		BatchSize:           a.cfg.BatchSize,
		MaxRetries:          a.cfg.MaxRetries,
		RetryBackoff:        a.cfg.RetryBackoff,
		UsernameConcurrency: a.cfg.UsernameConcurrency,
	}, deps)
}

// stateStore picks the warm-start store. Postgres wins when both are set.
func (a *app) stateStore(ctx context.Context) (indexer.StateStore, error) {
	switch {
	case a.cfg.StateDSN != "":
		if a.cfg.StateFile != "" {
			a.logger.Warn("both state-dsn and state-file set, using postgres", zap.String("state_file", a.cfg.StateFile))
		}
		db, err := postgres.NewStore(ctx, a.cfg.StateDSN)
		if err != nil {
			return nil, fmt.Errorf("connect state db %s: %w", redactDSN(a.cfg.StateDSN), err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return indexer.NewDBStateStore(db, stateName), nil
	case a.cfg.StateFile != "":
		return indexer.NewFileStateStore(a.cfg.StateFile), nil
	default:
		return nil, nil
	}
}

// newResolver builds a resolver. Without a signer it can only list
// resolvable escrows. The returned string is the oracle address, if any.
func (a *app) newResolver(ctx context.Context, withSigner bool) (*oracle.Resolver, string, error) {
	deps := oracle.Deps{
		Escrows: a.contract,
		Markets: a.markets,
		Limiter: oracle.NewLimiter(a.cfg.TxInterval, a.cfg.TxBurst),
		Metrics: a.metrics,
		Logger:  a.logger.With(zap.String("component", "resolver")),
	}
	if a.cfg.ReportOut != "" {
		deps.Reports = storage.NewJsonlStorage(a.cfg.ReportOut)
	}

	var signerAddr string
	if withSigner {
		chainID, err := a.chain.ChainID(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("chain id: %w", err)
		}
		signer, err := chain.NewSigner(a.cfg.PrivateKey, chainID)
		if err != nil {
			return nil, "", err
		}
		writer, err := escrow.NewWriter(a.contract.Address(), a.chain.Backend(), signer, a.cfg.ConfirmTimeout, deps.Logger)
		if err != nil {
			return nil, "", err
		}
		deps.Submitter = writer
		signerAddr = signer.Address().Hex()
	}

	resolver, err := oracle.NewResolver(deps)
	if err != nil {
		return nil, "", err
	}
	return resolver, signerAddr, nil
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
