package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full engine configuration.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Params  ParamsConfig  `yaml:"params"`
	API     APIConfig     `yaml:"api"`
	Wallet  WalletConfig  `yaml:"wallet"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// EngineConfig controls the quoting engine.
type EngineConfig struct {
	PollIntervalSeconds   int     `yaml:"poll_interval_seconds"`   // snapshot reconcile cadence, clamped to [5, 30]
	DecideIntervalSeconds int     `yaml:"decide_interval_seconds"` // per-market fallback decision cadence
	RefreshMinutes        int     `yaml:"refresh_minutes"`         // hyperparameter refresh cadence
	DepthBandPct          float64 `yaml:"depth_band_pct"`          // near-touch depth band for book summaries
	MinBalanceUSDC        float64 `yaml:"min_balance_usdc"`        // startup preflight floor
	StopFile              string  `yaml:"stop_file"`               // touch this file to shut down
}

// ParamsConfig points at the remote tabular configuration sheets.
type ParamsConfig struct {
	MarketsURL     string `yaml:"markets_url"`
	HyperparamsURL string `yaml:"hyperparams_url"`
}

// APIConfig holds the Polymarket endpoints.
type APIConfig struct {
	CLOBBase string `yaml:"clob_base"`
	DataBase string `yaml:"data_base"`
	WSBase   string `yaml:"ws_base"`
	RPCURL   string `yaml:"rpc_url"`
}

// WalletConfig holds the signing key. The key itself only ever comes from
// the environment, never from the YAML file.
type WalletConfig struct {
	PrivateKey string `yaml:"-"`
}

// StorageConfig controls where engine state is persisted.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // SQLite file path, or ":memory:"
}

// LogConfig controls logging format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML file and the .env file if present. Environment
// values override YAML for the keys they cover.
func Load(path string) (*Config, error) {
	// Load .env if present (missing file is fine)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// PollInterval returns the reconcile cadence as a time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Engine.PollIntervalSeconds) * time.Second
}

// DecideInterval returns the fallback decision cadence.
func (c *Config) DecideInterval() time.Duration {
	return time.Duration(c.Engine.DecideIntervalSeconds) * time.Second
}

// RefreshInterval returns the hyperparameter refresh cadence.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Engine.RefreshMinutes) * time.Minute
}

func (c *Config) validate() error {
	if c.Params.MarketsURL == "" {
		return fmt.Errorf("params.markets_url is required")
	}
	if c.Params.HyperparamsURL == "" {
		return fmt.Errorf("params.hyperparams_url is required")
	}
	if c.Wallet.PrivateKey == "" {
		return fmt.Errorf("POLYMAKER_PRIVATE_KEY is required")
	}
	return nil
}

// applyEnvOverrides overrides values from environment variables when set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("POLYMAKER_PRIVATE_KEY"); v != "" {
		cfg.Wallet.PrivateKey = v
	}
	if v := os.Getenv("POLYMAKER_RPC_URL"); v != "" {
		cfg.API.RPCURL = v
	}
	if v := os.Getenv("POLYMAKER_MARKETS_URL"); v != "" {
		cfg.Params.MarketsURL = v
	}
	if v := os.Getenv("POLYMAKER_HYPERPARAMS_URL"); v != "" {
		cfg.Params.HyperparamsURL = v
	}
	if v := os.Getenv("POLYMAKER_STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("POLYMAKER_POLL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.PollIntervalSeconds = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults gives required values sensible defaults.
func setDefaults(cfg *Config) {
	if cfg.Engine.PollIntervalSeconds <= 0 {
		cfg.Engine.PollIntervalSeconds = 10
	}
	if cfg.Engine.PollIntervalSeconds < 5 {
		cfg.Engine.PollIntervalSeconds = 5
	}
	if cfg.Engine.PollIntervalSeconds > 30 {
		cfg.Engine.PollIntervalSeconds = 30
	}
	if cfg.Engine.DecideIntervalSeconds <= 0 {
		cfg.Engine.DecideIntervalSeconds = 2
	}
	if cfg.Engine.RefreshMinutes <= 0 {
		cfg.Engine.RefreshMinutes = 30
	}
	if cfg.Engine.DepthBandPct <= 0 {
		cfg.Engine.DepthBandPct = 0.02
	}
	if cfg.Engine.StopFile == "" {
		cfg.Engine.StopFile = "STOP"
	}
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.DataBase == "" {
		cfg.API.DataBase = "https://data-api.polymarket.com"
	}
	if cfg.API.WSBase == "" {
		cfg.API.WSBase = "wss://ws-subscriptions-clob.polymarket.com/ws"
	}
	if cfg.API.RPCURL == "" {
		cfg.API.RPCURL = "https://polygon-rpc.com"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "polymaker.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
