package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML can carry "60s"-style values.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the full detector configuration, loaded from YAML with
// credential overrides from the environment. Field defaults are applied
// in Load; validation failures are fatal at startup.
type Config struct {
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Batch      BatchConfig      `yaml:"batch"`
	Breaker    BreakerConfig    `yaml:"breaker"`
	SolBonding SolBondingConfig `yaml:"sol_bonding"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	API        APIConfig        `yaml:"api"`
	Database   DatabaseConfig   `yaml:"database"`
}

type AnalysisConfig struct {
	AlertScoreThreshold float64       `yaml:"alert_score_threshold"`
	CycleInterval       Duration      `yaml:"cycle_interval"`
	Scoring             ScoringConfig `yaml:"scoring"`
}

type ScoringConfig struct {
	EarlyGemHunting EarlyGemConfig `yaml:"early_gem_hunting"`
}

type EarlyGemConfig struct {
	HighConvictionThreshold float64 `yaml:"high_conviction_threshold"`
}

type BatchConfig struct {
	MaxOHLCVConcurrency int `yaml:"max_ohlcv_concurrency"`
}

type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	RecoveryTimeout  Duration `yaml:"recovery_timeout"`
}

// SolBondingConfig selects how bonding-curve progress is computed:
// "heuristic" estimates from feed market caps, "accurate" verifies pool
// reserves over RPC.
type SolBondingConfig struct {
	AnalysisMode string `yaml:"analysis_mode"`
}

type DiscoveryConfig struct {
	TrendingURL     string        `yaml:"trending_url"`
	GraduatedURL    string        `yaml:"graduated_url"`
	BondingURL      string        `yaml:"bonding_url"`
	SolanaRPCURL    string        `yaml:"solana_rpc_url"`
	BirdeyeAPIKey   string        `yaml:"birdeye_api_key"`
	MoralisAPIKey   string        `yaml:"moralis_api_key"`
	HTTPTimeout     Duration      `yaml:"http_timeout"`
	OnChainTimeout  Duration      `yaml:"onchain_timeout"`
	CurveCachePath  string        `yaml:"curve_cache_path"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

type APIConfig struct {
	Listen string `yaml:"listen"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// Load reads the YAML file at path, applies defaults and environment
// overrides, and validates. A missing required option is a startup error:
// the detector refuses to run half-configured.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets credentials come from the environment so the YAML
// file can be committed without secrets.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("BIRDEYE_API_KEY"); v != "" {
		c.Discovery.BirdeyeAPIKey = v
	}
	if v := os.Getenv("MORALIS_API_KEY"); v != "" {
		c.Discovery.MoralisAPIKey = v
	}
	if v := os.Getenv("SOLANA_RPC_URL"); v != "" {
		c.Discovery.SolanaRPCURL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
}

func (c *Config) applyDefaults() {
	if c.Analysis.AlertScoreThreshold == 0 {
		c.Analysis.AlertScoreThreshold = 60
	}
	if c.Analysis.Scoring.EarlyGemHunting.HighConvictionThreshold == 0 {
		c.Analysis.Scoring.EarlyGemHunting.HighConvictionThreshold = 35
	}
	if c.Analysis.CycleInterval == 0 {
		c.Analysis.CycleInterval = Duration(10 * time.Minute)
	}
	if c.Batch.MaxOHLCVConcurrency == 0 {
		c.Batch.MaxOHLCVConcurrency = 10
	}
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = 3
	}
	if c.Breaker.RecoveryTimeout == 0 {
		c.Breaker.RecoveryTimeout = Duration(60 * time.Second)
	}
	if c.SolBonding.AnalysisMode == "" {
		c.SolBonding.AnalysisMode = "heuristic"
	}
	if c.Discovery.HTTPTimeout == 0 {
		c.Discovery.HTTPTimeout = Duration(30 * time.Second)
	}
	if c.Discovery.OnChainTimeout == 0 {
		c.Discovery.OnChainTimeout = Duration(60 * time.Second)
	}
	if c.Discovery.SolanaRPCURL == "" {
		c.Discovery.SolanaRPCURL = "https://api.mainnet-beta.solana.com"
	}
	if c.API.Listen == "" {
		c.API.Listen = ":8080"
	}
}

func (c *Config) validate() error {
	switch c.SolBonding.AnalysisMode {
	case "heuristic", "accurate":
	default:
		return fmt.Errorf("sol_bonding.analysis_mode must be \"heuristic\" or \"accurate\", got %q", c.SolBonding.AnalysisMode)
	}
	if c.Batch.MaxOHLCVConcurrency < 1 || c.Batch.MaxOHLCVConcurrency > 10 {
		return fmt.Errorf("batch.max_ohlcv_concurrency must be in [1,10], got %d", c.Batch.MaxOHLCVConcurrency)
	}
	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("breaker.failure_threshold must be >= 1, got %d", c.Breaker.FailureThreshold)
	}
	if c.Discovery.TrendingURL == "" && c.Discovery.GraduatedURL == "" && c.Discovery.BondingURL == "" {
		return fmt.Errorf("discovery: at least one feed URL must be configured")
	}
	return nil
}
