package config

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap/zapcore"
)

// ConfigurationError reports a missing or malformed setting. It is fatal at
// startup.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// Validate checks cfg. The signing key is only required when requireSigner
// is set.
func Validate(cfg Config, requireSigner bool) error {
	if cfg.RPCURL == "" {
		return &ConfigurationError{Field: "rpc", Reason: "is required"}
	}
	if cfg.Contract == "" {
		return &ConfigurationError{Field: "contract", Reason: "is required"}
	}
	if !common.IsHexAddress(cfg.Contract) {
		return &ConfigurationError{Field: "contract", Reason: fmt.Sprintf("invalid address %q", cfg.Contract)}
	}
	if requireSigner {
		if cfg.PrivateKey == "" {
			return &ConfigurationError{Field: "private-key", Reason: "is required"}
		}
		if !validPrivateKey(cfg.PrivateKey) {
			return &ConfigurationError{Field: "private-key", Reason: "must be 64 hex characters with optional 0x prefix"}
		}
	}
	if cfg.MarketURL == "" {
		return &ConfigurationError{Field: "market-url", Reason: "is required"}
	}
	if cfg.IndexInterval < MinInterval {
		return &ConfigurationError{Field: "index-interval", Reason: fmt.Sprintf("must be at least %s, got %s", MinInterval, cfg.IndexInterval)}
	}
	if cfg.ResolveInterval < MinInterval {
		return &ConfigurationError{Field: "resolve-interval", Reason: fmt.Sprintf("must be at least %s, got %s", MinInterval, cfg.ResolveInterval)}
	}
	if cfg.Lookback == 0 {
		return &ConfigurationError{Field: "lookback", Reason: "must be greater than zero"}
	}
	if cfg.BatchSize == 0 {
		return &ConfigurationError{Field: "batch-size", Reason: "must be greater than zero"}
	}
	if cfg.MaxRetries < 0 {
		return &ConfigurationError{Field: "max-retries", Reason: "must not be negative"}
	}
	if cfg.UsernameConcurrency < 1 {
		return &ConfigurationError{Field: "username-concurrency", Reason: "must be at least 1"}
	}
	if cfg.TxInterval < 0 {
		return &ConfigurationError{Field: "tx-interval", Reason: "must not be negative"}
	}
	if cfg.TxBurst < 1 {
		return &ConfigurationError{Field: "tx-burst", Reason: "must be at least 1"}
	}
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return &ConfigurationError{Field: "log-level", Reason: err.Error()}
	}
	return nil
}

func validPrivateKey(key string) bool {
	key = strings.TrimPrefix(strings.TrimPrefix(key, "0x"), "0X")
	if len(key) != 64 {
		return false
	}
	_, err := hex.DecodeString(key)
	return err == nil
}
