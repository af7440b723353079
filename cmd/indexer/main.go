package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"escrowOracle/internal/config"
	"escrowOracle/internal/observability"
	"escrowOracle/internal/schedule"
)

func main() {
	root := &cobra.Command{
		Use:          "indexer",
		Short:        "Escrow event indexer and market oracle",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the indexer and resolver loops",
		RunE:  runService,
	}
	addChainFlags(runCmd.Flags())
	addIndexFlags(runCmd.Flags())
	addResolveFlags(runCmd.Flags())
	runCmd.Flags().Duration("index-interval", 60*time.Second, "indexer tick (min 10s)")
	runCmd.Flags().Duration("resolve-interval", 60*time.Second, "resolver tick (min 10s)")
	runCmd.Flags().String("metrics-addr", "", "ops HTTP listen address for /metrics and /status (empty disables)")
	root.AddCommand(runCmd)

	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Run one indexer cycle and print the store status",
		RunE:  runIndexOnce,
	}
	addChainFlags(indexCmd.Flags())
	addIndexFlags(indexCmd.Flags())
	root.AddCommand(indexCmd)

	resolveCmd := &cobra.Command{
		Use:   "resolve",
		Short: "Run one resolver cycle and print the report",
		RunE:  runResolveOnce,
	}
	addChainFlags(resolveCmd.Flags())
	addResolveFlags(resolveCmd.Flags())
	root.AddCommand(resolveCmd)

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "List active escrows whose market has settled, without submitting",
		RunE:  runCheck,
	}
	addChainFlags(checkCmd.Flags())
	checkCmd.Flags().String("market-url", config.DefaultMarketURL, "market source base URL")
	checkCmd.Flags().Duration("market-timeout", 12*time.Second, "market HTTP timeout")
	root.AddCommand(checkCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addChainFlags(fs *pflag.FlagSet) {
	fs.String("rpc", "", "JSON-RPC URL")
	fs.String("contract", "", "escrow contract address")
	fs.Int("max-retries", 3, "maximum retry attempts per RPC call")
	fs.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
}

func addIndexFlags(fs *pflag.FlagSet) {
	fs.Uint64("lookback", 10_000, "cold-start backfill window in blocks")
	fs.Uint64("batch-size", 2000, "blocks per eth_getLogs call")
	fs.Int("username-concurrency", 8, "parallel username lookups")
	fs.String("market-url", config.DefaultMarketURL, "market source base URL")
	fs.Duration("market-timeout", 12*time.Second, "market HTTP timeout")
	fs.String("state-file", "", "optional JSON warm-start state file")
	fs.String("state-dsn", "", "optional Postgres DSN for warm-start state")
	fs.String("journal-out", "", "optional JSONL journal of newly indexed events")
}

func addResolveFlags(fs *pflag.FlagSet) {
	fs.String("private-key", "", "oracle signing key (hex)")
	if fs.Lookup("market-url") == nil {
		fs.String("market-url", config.DefaultMarketURL, "market source base URL")
		fs.Duration("market-timeout", 12*time.Second, "market HTTP timeout")
	}
	fs.Duration("tx-interval", 3*time.Second, "minimum spacing between resolution transactions")
	fs.Int("tx-burst", 1, "resolution transaction burst")
	fs.Duration("confirm-timeout", 2*time.Minute, "maximum wait for a receipt")
	fs.String("report-out", "", "optional JSONL journal of resolver cycle reports")
}

// loadConfig loads and validates configuration for a command.
func loadConfig(cmd *cobra.Command, requireSigner bool) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := config.Validate(cfg, requireSigner); err != nil {
		return config.Config{}, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func runService(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	runner, err := a.newRunner(ctx)
	if err != nil {
		return err
	}
	resolver, signerAddr, err := a.newResolver(ctx, true)
	if err != nil {
		return err
	}

	indexLoop, err := schedule.NewLoop("indexer", cfg.IndexInterval, runner.SyncOnce, logger)
	if err != nil {
		return err
	}
	resolveLoop, err := schedule.NewLoop("resolver", cfg.ResolveInterval, func(ctx context.Context) error {
		_, err := resolver.RunCycle(ctx)
		return err
	}, logger)
	if err != nil {
		return err
	}

	logger.Info("service start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("contract", cfg.Contract),
		zap.String("oracle", signerAddr),
		zap.String("market_url", cfg.MarketURL),
		zap.Duration("index_interval", cfg.IndexInterval),
		zap.Duration("resolve_interval", cfg.ResolveInterval),
		zap.Uint64("lookback", cfg.Lookback),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Duration("tx_interval", cfg.TxInterval),
		zap.String("state_file", cfg.StateFile),
		zap.String("state_dsn", redactDSN(cfg.StateDSN)),
		zap.String("metrics_addr", cfg.MetricsAddr),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return indexLoop.Run(gctx) })
	g.Go(func() error { return resolveLoop.Run(gctx) })
	if cfg.MetricsAddr != "" {
		server := observability.NewServer(cfg.MetricsAddr, a.metrics, a.store, logger)
		g.Go(func() error {
			if err := server.Run(gctx); err != nil {
				return fmt.Errorf("ops server: %w", err)
			}
			return nil
		})
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("service stop")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
