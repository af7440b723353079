package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultMarketURL = "https://gamma-api.polymarket.com"
	MinInterval      = 10 * time.Second
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL     string
	Contract   string
	PrivateKey string

	MarketURL     string
	MarketTimeout time.Duration

	IndexInterval   time.Duration
	ResolveInterval time.Duration

	Lookback            uint64
	BatchSize           uint64
	MaxRetries          int
	RetryBackoff        time.Duration
	UsernameConcurrency int

	TxInterval     time.Duration
	TxBurst        int
	ConfirmTimeout time.Duration

	StateFile   string
	StateDSN    string
	JournalOut  string
	ReportOut   string
	MetricsAddr string
	LogLevel    string
}

// envAliases maps keys to the environment names used by earlier deployments.
var envAliases = map[string]string{
	"rpc":         "BASE_SEPOLIA_RPC",
	"contract":    "ESCROW_ADDRESS",
	"private-key": "ORACLE_PRIVATE_KEY",
	"market-url":  "POLYMARKET_API_URL",
	"log-level":   "LOG_LEVEL",
}

// checkIntervalEnv holds the resolver interval in milliseconds.
const checkIntervalEnv = "CHECK_INTERVAL"

// Load merges .env, config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	// A missing .env is fine; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, alias := range envAliases {
		envName := "INDEXER_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
		if err := v.BindEnv(key, envName, alias); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	v.SetDefault("market-url", DefaultMarketURL)
	v.SetDefault("market-timeout", 12*time.Second)
	v.SetDefault("index-interval", 60*time.Second)
	v.SetDefault("resolve-interval", 60*time.Second)
	v.SetDefault("lookback", uint64(10_000))
	v.SetDefault("batch-size", uint64(2000))
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("username-concurrency", 8)
	v.SetDefault("tx-interval", 3*time.Second)
	v.SetDefault("tx-burst", 1)
	v.SetDefault("confirm-timeout", 2*time.Minute)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	resolveInterval := v.GetDuration("resolve-interval")
	if !isExplicit(v, flags, "resolve-interval") {
		interval, ok, err := checkIntervalFromEnv()
		if err != nil {
			return Config{}, err
		}
		if ok {
			resolveInterval = interval
		}
	}

	cfg := Config{
		RPCURL:              strings.TrimSpace(v.GetString("rpc")),
		Contract:            strings.TrimSpace(v.GetString("contract")),
		PrivateKey:          strings.TrimSpace(v.GetString("private-key")),
		MarketURL:           strings.TrimSpace(v.GetString("market-url")),
		MarketTimeout:       v.GetDuration("market-timeout"),
		IndexInterval:       v.GetDuration("index-interval"),
		ResolveInterval:     resolveInterval,
		Lookback:            v.GetUint64("lookback"),
		BatchSize:           v.GetUint64("batch-size"),
		MaxRetries:          v.GetInt("max-retries"),
		RetryBackoff:        v.GetDuration("retry-backoff"),
		UsernameConcurrency: v.GetInt("username-concurrency"),
		TxInterval:          v.GetDuration("tx-interval"),
		TxBurst:             v.GetInt("tx-burst"),
		ConfirmTimeout:      v.GetDuration("confirm-timeout"),
		StateFile:           strings.TrimSpace(v.GetString("state-file")),
		StateDSN:            strings.TrimSpace(v.GetString("state-dsn")),
		JournalOut:          strings.TrimSpace(v.GetString("journal-out")),
		ReportOut:           strings.TrimSpace(v.GetString("report-out")),
		MetricsAddr:         strings.TrimSpace(v.GetString("metrics-addr")),
		LogLevel:            v.GetString("log-level"),
	}

	return cfg, nil
}

// isExplicit reports whether key was set by a changed flag, the prefixed
// environment variable, or the config file rather than a default.
func isExplicit(v *viper.Viper, flags *pflag.FlagSet, key string) bool {
	if flags != nil {
		if f := flags.Lookup(key); f != nil && f.Changed {
			return true
		}
	}
	_, ok := os.LookupEnv("INDEXER_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_")))
	return ok || v.InConfig(key)
}

func checkIntervalFromEnv() (time.Duration, bool, error) {
	raw, ok := os.LookupEnv(checkIntervalEnv)
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, false, nil
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, false, &ConfigurationError{Field: checkIntervalEnv, Reason: fmt.Sprintf("must be an integer number of milliseconds, got %q", raw)}
	}
	return time.Duration(ms) * time.Millisecond, true, nil
}
