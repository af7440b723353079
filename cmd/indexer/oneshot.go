package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"escrowOracle/internal/model"
)

func runIndexOnce(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd, false)
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
	if err := runner.SyncOnce(ctx); err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), a.store.Status(time.Now()))
}

func runResolveOnce(cmd *cobra.Command, _ []string) error {
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

	resolver, signerAddr, err := a.newResolver(ctx, true)
	if err != nil {
		return err
	}
	logger.Info("resolve once", zap.String("oracle", signerAddr), zap.String("contract", cfg.Contract))

	report, err := resolver.RunCycle(ctx)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), report)
}

type checkOutput struct {
	Active     []model.Escrow     `json:"active"`
	Resolvable []model.Resolvable `json:"resolvable"`
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd, false)
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

	resolver, _, err := a.newResolver(ctx, false)
	if err != nil {
		return err
	}

	active, err := resolver.ActiveEscrows(ctx)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), checkOutput{
		Active:     active,
		Resolvable: resolver.ResolvableAmong(ctx, active),
	})
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
