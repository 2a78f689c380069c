// Package app wires the scanner pipeline to the in-process treasury
// deployment and runs it as one daemon.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/atomx-labs/atomx/internal/chain"
	"github.com/atomx-labs/atomx/internal/config"
	"github.com/atomx-labs/atomx/internal/detector"
	"github.com/atomx-labs/atomx/internal/events"
	"github.com/atomx-labs/atomx/internal/executor"
	"github.com/atomx-labs/atomx/internal/quote"
	"github.com/atomx-labs/atomx/internal/router"
	"github.com/atomx-labs/atomx/internal/scanner"
	"github.com/atomx-labs/atomx/internal/storage"
	"github.com/atomx-labs/atomx/internal/storage/postgres"
	"github.com/atomx-labs/atomx/internal/vault"
)

// vaultProgramID scopes the treasury's derived signing authority.
var vaultProgramID = solana.MustPublicKeyFromBase58("J9L1xWf6Krkg7284UThzykxNZ133Sw7Kk2fLHJ2cpKSn")

// paperLiquidityLamports seeds the paper treasury so executions have a
// working balance.
const paperLiquidityLamports = 100 * solana.LAMPORTS_PER_SOL

// Runner assembles and runs the daemon.
type Runner struct {
	logger *zap.Logger
	cfg    *config.Config

	bus      *events.Bus
	world    *chain.World
	vault    *vault.Service
	scanner  *scanner.Service
	worker   *executor.Worker
	indexer  *storage.Indexer
	store    storage.Storage
	shutdown chan os.Signal
}

func NewRunner(logger *zap.Logger) *Runner {
	return &Runner{
		logger:   logger,
		shutdown: make(chan os.Signal, 1),
	}
}

// Initialize loads configuration and builds every component.
func (r *Runner) Initialize(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	r.cfg = cfg

	aggregatorProgram := solana.MustPublicKeyFromBase58(cfg.AggregatorProgramID)
	baseMint := solana.MustPublicKeyFromBase58(cfg.BaseMint)

	r.bus = events.NewBus(r.logger, 256)
	r.world = chain.NewWorld(r.logger)

	rtr, err := router.New(router.Config{
		Authority:  vaultProgramID,
		Aggregator: &paperAggregator{id: aggregatorProgram},
		FeeRateBPS: uint16(cfg.RouterFeeBPS),
		Logger:     r.logger,
	})
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}

	r.vault, err = vault.NewService(vault.Config{
		World:          r.world,
		Router:         rtr,
		Sink:           busSink{bus: r.bus},
		Logger:         r.logger,
		ProgramID:      vaultProgramID,
		BaseMint:       baseMint,
		ExecutorFeeBPS: uint64(cfg.ExecutorFeeBPS),
	})
	if err != nil {
		return fmt.Errorf("create vault: %w", err)
	}

	operator := solana.NewWallet()
	if err := r.vault.InitializeTreasury(operator.PublicKey(), vaultProgramID); err != nil {
		return fmt.Errorf("initialize treasury: %w", err)
	}
	executorToken, err := r.seedPaperLiquidity(operator.PublicKey(), baseMint)
	if err != nil {
		return fmt.Errorf("seed liquidity: %w", err)
	}

	gateway := quote.NewClient(quote.Config{
		BaseURL:       cfg.AggregatorURL,
		RatePerSecond: cfg.QuoteRatePerSecond,
		Venues:        cfg.Venues,
		Logger:        r.logger,
	})

	det := detector.New(detector.Config{
		MinProfitUSD:       cfg.MinProfitUSD,
		MinProfitPct:       cfg.MinProfitPercentage,
		MaxPriceImpactPct:  cfg.MaxPriceImpact,
		AggregatorFeeBPS:   30,
		PlatformFeeBPS:     float64(cfg.RouterFeeBPS),
		ExecutorShareBPS:   float64(cfg.ExecutorFeeBPS),
		NetworkFeePerTxSOL: cfg.NetworkFeePerTxSOL,
		SOLPriceUSD:        cfg.SOLPriceUSD,
		KnownVenues:        cfg.Venues,
	}, r.logger)

	r.scanner = scanner.NewService(gateway, det, r.bus, scanner.Config{
		Pairs:           cfg.Pairs,
		ScanInterval:    time.Duration(cfg.ScanIntervalMs) * time.Millisecond,
		PairDelay:       time.Duration(cfg.PairDelayMs) * time.Millisecond,
		TestVolumeUSD:   cfg.TestVolumeUSD,
		FreshnessWindow: time.Duration(cfg.FreshnessWindowSec) * time.Second,
	}, r.logger)

	r.worker = executor.NewWorker(executor.Config{
		Planner: &paperPlanner{
			aggregatorID: aggregatorProgram,
			vaultToken:   r.vault.VaultTokenAccount(),
			solPriceUSD:  cfg.SOLPriceUSD,
		},
		Engine:        r.vault,
		Bus:           r.bus,
		Executor:      operator.PublicKey(),
		ExecutorToken: executorToken,
		MinConfidence: detector.ConfidenceMedium,
		Logger:        r.logger,
	})

	if cfg.PostgresURL != "" {
		r.store, err = postgres.NewStorage(cfg.PostgresURL, r.logger)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		if err := r.store.RunMigrations(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		r.indexer = storage.NewIndexer(r.store, r.logger)
		r.indexer.Attach(r.bus)
	} else {
		r.logger.Warn("postgres_url not set, event indexing disabled")
	}

	return nil
}

// seedPaperLiquidity funds the operator, deposits into the treasury, and
// creates the executor's fee account.
func (r *Runner) seedPaperLiquidity(operator, baseMint solana.PublicKey) (solana.PublicKey, error) {
	operatorToken := solana.NewWallet().PublicKey()
	if _, err := r.world.CreateTokenAccount(operatorToken, baseMint, operator); err != nil {
		return solana.PublicKey{}, err
	}
	if err := r.world.MintTo(operatorToken, paperLiquidityLamports); err != nil {
		return solana.PublicKey{}, err
	}
	shares, err := r.vault.Deposit(operator, operatorToken, paperLiquidityLamports)
	if err != nil {
		return solana.PublicKey{}, err
	}
	r.logger.Info("paper liquidity deposited",
		zap.Uint64("amount", uint64(paperLiquidityLamports)),
		zap.Uint64("shares", shares))

	executorToken := solana.NewWallet().PublicKey()
	if _, err := r.world.CreateTokenAccount(executorToken, baseMint, operator); err != nil {
		return solana.PublicKey{}, err
	}
	return executorToken, nil
}

// Run starts the pipeline and blocks until a shutdown signal arrives.
func (r *Runner) Run(ctx context.Context) error {
	signal.Notify(r.shutdown, syscall.SIGINT, syscall.SIGTERM)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.worker.Start()
	if err := r.scanner.Start(runCtx); err != nil {
		return fmt.Errorf("start scanner: %w", err)
	}
	r.logger.Info("daemon running",
		zap.Int("pairs", len(r.cfg.Pairs)),
		zap.Int("scan_interval_ms", r.cfg.ScanIntervalMs))

	select {
	case sig := <-r.shutdown:
		r.logger.Info("signal received", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}

	return r.Shutdown()
}

// Shutdown stops every component in reverse dependency order.
func (r *Runner) Shutdown() error {
	if err := r.scanner.Stop(); err != nil && err != scanner.ErrNotRunning {
		r.logger.Warn("scanner stop failed", zap.Error(err))
	}
	r.worker.Stop()
	if r.indexer != nil {
		r.indexer.Detach()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.bus.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("event bus shutdown failed", zap.Error(err))
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Warn("storage close failed", zap.Error(err))
		}
	}
	r.logger.Info("daemon stopped")
	return nil
}
