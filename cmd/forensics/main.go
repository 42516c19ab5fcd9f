package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lineage-agent/forensics/internal/bundle"
	"github.com/lineage-agent/forensics/internal/cartel"
	"github.com/lineage-agent/forensics/internal/config"
	"github.com/lineage-agent/forensics/internal/httpshell"
	"github.com/lineage-agent/forensics/internal/lineage"
	"github.com/lineage-agent/forensics/internal/market"
	"github.com/lineage-agent/forensics/internal/rpcclient"
	"github.com/lineage-agent/forensics/internal/service"
	"github.com/lineage-agent/forensics/internal/similarity"
	"github.com/lineage-agent/forensics/internal/solflow"
	"github.com/lineage-agent/forensics/internal/store"
	"github.com/lineage-agent/forensics/internal/sweep"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	applyLogLevel(cfg.LogLevel)
	log.Info().Msg("lineage forensics starting")

	st, err := store.New(cfg.CacheSQLitePath)
	if err != nil {
		log.Fatal().Err(err).Msg("event store init failed")
	}
	defer st.Close()

	rpcHTTP := httpshell.NewClient(httpshell.Settings{
		Name:               "solana_rpc",
		RateLimitPerSecond: 20,
		FailureThreshold:   uint32(cfg.CBFailureThreshold),
		RecoveryTimeout:    time.Duration(cfg.CBRecoveryTimeout * float64(time.Second)),
		SuccessThreshold:   uint32(cfg.CBSuccessThreshold),
		Timeout:            15 * time.Second,
	})
	dexHTTP := httpshell.NewClient(httpshell.Settings{
		Name:               "dexscreener",
		RateLimitPerSecond: 5,
		FailureThreshold:   uint32(cfg.CBFailureThreshold),
		RecoveryTimeout:    time.Duration(cfg.CBRecoveryTimeout * float64(time.Second)),
		SuccessThreshold:   uint32(cfg.CBSuccessThreshold),
		Timeout:            10 * time.Second,
	})
	priceHTTP := httpshell.NewClient(httpshell.Settings{
		Name:               "jupiter_price",
		RateLimitPerSecond: 10,
		FailureThreshold:   uint32(cfg.CBFailureThreshold),
		RecoveryTimeout:    time.Duration(cfg.CBRecoveryTimeout * float64(time.Second)),
		SuccessThreshold:   uint32(cfg.CBSuccessThreshold),
		Timeout:            10 * time.Second,
	})
	imagesHTTP := httpshell.NewClient(httpshell.Settings{
		Name:               "token_images",
		RateLimitPerSecond: 8,
		FailureThreshold:   uint32(cfg.CBFailureThreshold),
		RecoveryTimeout:    time.Duration(cfg.CBRecoveryTimeout * float64(time.Second)),
		SuccessThreshold:   uint32(cfg.CBSuccessThreshold),
		Timeout:            10 * time.Second,
	})
	metaHTTP := httpshell.NewClient(httpshell.Settings{
		Name:               "token_metadata",
		RateLimitPerSecond: 8,
		FailureThreshold:   uint32(cfg.CBFailureThreshold),
		RecoveryTimeout:    time.Duration(cfg.CBRecoveryTimeout * float64(time.Second)),
		SuccessThreshold:   uint32(cfg.CBSuccessThreshold),
		Timeout:            8 * time.Second,
	})
	bridgeHTTP := httpshell.NewClient(httpshell.Settings{
		Name:               "wormholescan",
		RateLimitPerSecond: 5,
		FailureThreshold:   uint32(cfg.CBFailureThreshold),
		RecoveryTimeout:    time.Duration(cfg.CBRecoveryTimeout * float64(time.Second)),
		SuccessThreshold:   uint32(cfg.CBSuccessThreshold),
		Timeout:            10 * time.Second,
	})

	rpcEndpoint := cfg.DASEndpoint
	if rpcEndpoint == "" {
		rpcEndpoint = cfg.SolanaRPCEndpoint
	}
	rpc := rpcclient.New(rpcEndpoint, rpcHTTP)
	mkt := market.New(dexHTTP, priceHTTP, cfg.DexscreenerBaseURL, cfg.JupiterBaseURL)

	lineageEngine := lineage.New(mkt, rpc, imagesHTTP, metaHTTP, st, lineage.Config{
		Weights: similarity.Weights{
			Name:     cfg.WeightName,
			Symbol:   cfg.WeightSymbol,
			Image:    cfg.WeightImage,
			Deployer: cfg.WeightDeployer,
			Temporal: cfg.WeightTemporal,
		},
		NameSimilarityThreshold: cfg.NameSimilarityThreshold,
	})
	bundleAnalyzer := bundle.New(rpc, st, bundle.Config{})
	tracer := solflow.New(rpc, st, mkt, bridgeHTTP, cfg.WormholescanBaseURL)
	cartelBuilder := cartel.New(rpc, st, cartel.DefaultConfig())

	svc := service.New(st, rpc, mkt, imagesHTTP, lineageEngine, bundleAnalyzer, tracer, cartelBuilder, service.DefaultConfig())

	var notifier sweep.Notifier
	if cfg.TelegramBotToken != "" {
		notifier = sweep.NewTelegramNotifier(bridgeHTTP, cfg.TelegramBotToken)
	}
	runner := sweep.New(st, mkt, tracer, cartelBuilder, notifier, sweep.DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() { <-sigCh; log.Info().Msg("shutting down"); cancel() }()

	if err := runner.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("sweep scheduler failed to start")
	}

	breakers := []*httpshell.Client{rpcHTTP, dexHTTP, priceHTTP, imagesHTTP, metaHTTP, bridgeHTTP}
	go logHealthPeriodically(ctx, svc, breakers)

	if mint := firstArg(); mint != "" {
		runOneShotAnalysis(ctx, svc, mint)
	}

	log.Info().Msg("forensic pipeline running, background sweeps scheduled")
	<-ctx.Done()
	log.Info().Msg("goodbye")
}

func firstArg() string {
	if len(os.Args) > 1 {
		return os.Args[1]
	}
	return ""
}

// runOneShotAnalysis drives a single analyze(mint) call from the command
// line, printing the resulting lineage report as JSON. The full subscriber
// and presentation surface lives outside this entrypoint.
func runOneShotAnalysis(ctx context.Context, svc *service.Service, mint string) {
	result, err := svc.Analyze(ctx, mint)
	if err != nil {
		log.Error().Err(err).Str("mint", mint).Msg("analyze failed")
		return
	}
	blob, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("marshal result")
		return
	}
	fmt.Println(string(blob))
}

func logHealthPeriodically(ctx context.Context, svc *service.Service, breakers []*httpshell.Client) {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			report := svc.Health(breakers...)
			for _, b := range report.Breakers {
				if b.State != "closed" {
					log.Warn().Str("backend", b.Name).Str("state", b.State).Msg("circuit breaker degraded")
				}
			}
		}
	}
}

func applyLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
