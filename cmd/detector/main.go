package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/fil0s/virtuoso-gem-finder/internal/alerting"
	"github.com/fil0s/virtuoso-gem-finder/internal/api"
	"github.com/fil0s/virtuoso-gem-finder/internal/config"
	"github.com/fil0s/virtuoso-gem-finder/internal/curve"
	"github.com/fil0s/virtuoso-gem-finder/internal/db"
	"github.com/fil0s/virtuoso-gem-finder/internal/discovery"
	"github.com/fil0s/virtuoso-gem-finder/internal/enrich"
	"github.com/fil0s/virtuoso-gem-finder/internal/pipeline"
	"github.com/fil0s/virtuoso-gem-finder/internal/resilience"
	"github.com/fil0s/virtuoso-gem-finder/internal/solclient"
	"github.com/fil0s/virtuoso-gem-finder/internal/sources"
	"github.com/fil0s/virtuoso-gem-finder/internal/vendors"
	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

const solPriceURL = "https://api.coingecko.com/api/v3/simple/price?ids=solana&vs_currencies=usd"

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	oneShot := flag.Bool("once", false, "run a single detection cycle and exit")
	flag.Parse()

	// .env for local development; real deployments set the environment
	_ = godotenv.Load()

	logger := newLogger()
	logger.Info().Msg("starting virtuoso gem finder")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("configuration error, refusing to start")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─── Shared state: one ledger, one breaker ──────────────────────

	ledger := resilience.NewCostLedger()
	breaker := resilience.NewCircuitBreaker(cfg.Breaker.FailureThreshold, cfg.Breaker.RecoveryTimeout.Std())
	promRegistry := prometheus.NewRegistry()
	metrics := resilience.NewMetrics(promRegistry)

	// ─── Vendors and enrichment ─────────────────────────────────────

	birdeye := vendors.NewBirdeye(cfg.Discovery.BirdeyeAPIKey, cfg.Discovery.HTTPTimeout.Std(), logger)
	dexscreener := vendors.NewDexScreener(cfg.Discovery.HTTPTimeout.Std(), logger)

	ohlcvBatcher := enrich.NewOHLCVBatcher(birdeye, breaker, ledger, cfg.Batch.MaxOHLCVConcurrency, logger)
	enricher := enrich.NewEnricher(birdeye, dexscreener, nil, ohlcvBatcher, breaker, ledger, logger)

	// ─── Discovery sources ──────────────────────────────────────────

	curveCache := sources.NewCurveCache(cfg.Discovery.CurveCachePath)
	solClient := solclient.New(cfg.Discovery.SolanaRPCURL, logger)
	liveLaunch := sources.NewLiveLaunchAdapter(256, 10*time.Second, logger)

	// Registration order is dedupe precedence: launch-side feeds first so
	// the earliest source tag survives a cross-feed duplicate
	var adapters []sources.Adapter
	adapters = append(adapters, liveLaunch)
	if cfg.Discovery.BondingURL != "" {
		adapters = append(adapters, sources.NewBondingAdapter(cfg.Discovery.BondingURL, cfg.Discovery.MoralisAPIKey, cfg.Discovery.HTTPTimeout.Std(), logger))
	}
	adapters = append(adapters, sources.NewCurveDetectorAdapter(solClient, curveCache, cfg.SolBonding.AnalysisMode, cfg.Discovery.OnChainTimeout.Std(), logger))
	if cfg.Discovery.GraduatedURL != "" {
		adapters = append(adapters, sources.NewGraduatedAdapter(cfg.Discovery.GraduatedURL, cfg.Discovery.MoralisAPIKey, cfg.Discovery.HTTPTimeout.Std(), logger))
	}
	if cfg.Discovery.TrendingURL != "" {
		adapters = append(adapters, sources.NewTrendingAdapter(cfg.Discovery.TrendingURL, cfg.Discovery.BirdeyeAPIKey, cfg.Discovery.HTTPTimeout.Std(), logger))
	}
	orchestrator := discovery.NewOrchestrator(logger, adapters...)

	// ─── Persistence (optional) ─────────────────────────────────────

	var store *db.PostgresStore
	if cfg.Database.URL != "" {
		store, err = db.Connect(ctx, cfg.Database.URL, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("database unavailable, continuing without alert registry")
			store = nil
		} else {
			defer store.Close()
			if err := store.InitSchema(ctx); err != nil {
				logger.Warn().Err(err).Msg("schema init failed")
			}
		}
	}

	// ─── Alerting ───────────────────────────────────────────────────

	wsHub := api.NewHub(logger)
	go wsHub.Run()

	var telegram *alerting.TelegramAlerter
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		telegram = alerting.NewTelegramAlerter(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
	} else {
		logger.Warn().Msg("telegram not configured, alerts will not reach the channel")
	}

	var alertStore alerting.AlertStore
	if store != nil {
		alertStore = store
	}
	alertManager := alerting.NewManager(telegram, alertStore, func(a alerting.Alert) {
		payload, err := json.Marshal(map[string]any{"type": "gem_alert", "alert": a})
		if err != nil {
			logger.Error().Err(err).Msg("alert broadcast marshal failed")
			return
		}
		wsHub.Broadcast(payload)
	}, logger)

	// ─── Curve tracking and graduation signals ──────────────────────

	tracker := curve.NewTracker(logger)
	launchlab := curve.NewLaunchLabAnalyzer(solPriceURL, logger)
	tracker.OnGraduation(func(sig curve.GraduationSignal) {
		logger.Info().Str("mint", sig.Mint).Float64("mcap", sig.MarketCapUSD).
			Msg("graduation detected on watch list")
		if telegram != nil {
			msg := "🎓 <b>GRADUATION</b> " + sig.Symbol + "\n<code>" + sig.Mint + "</code>"
			if err := telegram.SendMessage(ctx, msg); err != nil {
				logger.Warn().Err(err).Msg("graduation signal delivery failed")
			}
		}
	})

	// ─── Pipeline ───────────────────────────────────────────────────

	coordinator := pipeline.NewCoordinator(
		orchestrator,
		pipeline.NewTriage(ledger, logger),
		pipeline.NewEnhancedFilter(enricher, ledger, logger),
		pipeline.NewMarketValidator(breaker, ledger, logger),
		pipeline.NewOHLCVAnalyzer(enricher, birdeye, breaker, ledger, logger),
		ledger,
		breaker,
		alertManager,
		cfg.Analysis.Scoring.EarlyGemHunting.HighConvictionThreshold,
		logger,
	)
	coordinator.SetPostDiscovery(func(candidates []models.Candidate) {
		for _, c := range candidates {
			if c.BondingCurveProgressPct <= 0 || c.GraduatedAt != nil {
				continue
			}
			tracker.Track(c.Address, c.Symbol, c.MarketCapUSD, c.BondingCurveProgressPct)
			curveCache.Put(sources.CachedCurve{
				Mint:         c.Address,
				Symbol:       c.Symbol,
				Name:         c.Name,
				ProgressPct:  c.BondingCurveProgressPct,
				SolRaised:    launchlab.SolRaised(ctx, c.MarketCapUSD),
				MarketCapUSD: c.MarketCapUSD,
			})
		}
		curveCache.Flush()
	})

	// ─── API ────────────────────────────────────────────────────────

	reports := api.NewReportBuffer(50)
	router := api.SetupRouter(wsHub, alertManager, ledger, breaker, tracker, reports, promRegistry)
	go func() {
		if err := router.Run(cfg.API.Listen); err != nil {
			logger.Error().Err(err).Msg("API server stopped")
		}
	}()

	// ─── Detection loop ─────────────────────────────────────────────

	runCycle := func() {
		report := coordinator.RunCycle(ctx)
		reports.Add(report)
		metrics.Observe(ledger, breaker, len(report.Finalists), report.CompletedAt.Sub(report.StartedAt).Seconds())
		if store != nil {
			if err := store.SaveCycle(ctx, report); err != nil {
				logger.Warn().Err(err).Msg("cycle persistence failed")
			}
		}
	}

	runCycle()
	if *oneShot {
		logger.Info().Msg("single cycle complete, exiting")
		return
	}

	ticker := time.NewTicker(cfg.Analysis.CycleInterval.Std())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down")
			curveCache.Flush()
			return
		case <-ticker.C:
			runCycle()
		}
	}
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = zerolog.DebugLevel
	}

	var logger zerolog.Logger
	if os.Getenv("LOG_FORMAT") == "json" {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return logger.Level(level).With().Timestamp().Logger()
}
