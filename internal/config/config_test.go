package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalConfig = `
discovery:
  trending_url: https://example.com/trending
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Analysis.AlertScoreThreshold != 60 {
		t.Errorf("alert threshold = %v, want default 60", cfg.Analysis.AlertScoreThreshold)
	}
	if cfg.Analysis.Scoring.EarlyGemHunting.HighConvictionThreshold != 35 {
		t.Errorf("high conviction threshold = %v, want default 35", cfg.Analysis.Scoring.EarlyGemHunting.HighConvictionThreshold)
	}
	if cfg.Batch.MaxOHLCVConcurrency != 10 {
		t.Errorf("ohlcv concurrency = %d, want 10", cfg.Batch.MaxOHLCVConcurrency)
	}
	if cfg.Breaker.FailureThreshold != 3 {
		t.Errorf("failure threshold = %d, want 3", cfg.Breaker.FailureThreshold)
	}
	if cfg.Breaker.RecoveryTimeout.Std() != 60*time.Second {
		t.Errorf("recovery timeout = %v, want 60s", cfg.Breaker.RecoveryTimeout.Std())
	}
	if cfg.SolBonding.AnalysisMode != "heuristic" {
		t.Errorf("analysis mode = %s, want heuristic", cfg.SolBonding.AnalysisMode)
	}
	if cfg.Discovery.OnChainTimeout.Std() != 60*time.Second {
		t.Errorf("onchain timeout = %v, want 60s", cfg.Discovery.OnChainTimeout.Std())
	}
	if cfg.Discovery.HTTPTimeout.Std() != 30*time.Second {
		t.Errorf("http timeout = %v, want 30s", cfg.Discovery.HTTPTimeout.Std())
	}
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
analysis:
  alert_score_threshold: 70
  scoring:
    early_gem_hunting:
      high_conviction_threshold: 44
batch:
  max_ohlcv_concurrency: 4
breaker:
  failure_threshold: 5
  recovery_timeout: 90s
sol_bonding:
  analysis_mode: accurate
discovery:
  bonding_url: https://example.com/bonding
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Analysis.AlertScoreThreshold != 70 {
		t.Errorf("alert threshold = %v, want 70", cfg.Analysis.AlertScoreThreshold)
	}
	if cfg.Analysis.Scoring.EarlyGemHunting.HighConvictionThreshold != 44 {
		t.Errorf("high conviction = %v, want 44", cfg.Analysis.Scoring.EarlyGemHunting.HighConvictionThreshold)
	}
	if cfg.Batch.MaxOHLCVConcurrency != 4 {
		t.Errorf("concurrency = %d, want 4", cfg.Batch.MaxOHLCVConcurrency)
	}
	if cfg.Breaker.RecoveryTimeout.Std() != 90*time.Second {
		t.Errorf("recovery = %v, want 90s", cfg.Breaker.RecoveryTimeout.Std())
	}
	if cfg.SolBonding.AnalysisMode != "accurate" {
		t.Errorf("mode = %s, want accurate", cfg.SolBonding.AnalysisMode)
	}
}

func TestLoad_EnvOverridesCredentials(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok-from-env")
	t.Setenv("BIRDEYE_API_KEY", "key-from-env")

	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.BotToken != "tok-from-env" {
		t.Errorf("bot token = %s, want env override", cfg.Telegram.BotToken)
	}
	if cfg.Discovery.BirdeyeAPIKey != "key-from-env" {
		t.Errorf("api key = %s, want env override", cfg.Discovery.BirdeyeAPIKey)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad analysis mode", `
sol_bonding:
  analysis_mode: psychic
discovery:
  trending_url: https://example.com
`},
		{"concurrency over cap", `
batch:
  max_ohlcv_concurrency: 50
discovery:
  trending_url: https://example.com
`},
		{"no feeds at all", `
analysis:
  alert_score_threshold: 60
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestLoad_MissingFileFatal(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing config file must be an error")
	}
}
