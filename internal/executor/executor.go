// Package executor consumes detected opportunities and drives the treasury's
// arbitrage engine with a minimum-profit bound.
package executor

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/atomx-labs/atomx/internal/chain"
	"github.com/atomx-labs/atomx/internal/detector"
	"github.com/atomx-labs/atomx/internal/events"
	"github.com/atomx-labs/atomx/internal/vault"
)

// SwapPlanner turns an opportunity into an executable instruction blob and a
// minimum-profit bound in base-asset raw units. Implementations call the
// aggregator's swap endpoint; the blob stays opaque to everything here.
type SwapPlanner interface {
	Plan(ctx context.Context, opp detector.Opportunity) (chain.InstructionBlob, uint64, error)
}

// Engine is the slice of the vault service the worker needs.
type Engine interface {
	ExecuteArbitrage(executor, executorToken solana.PublicKey, blob chain.InstructionBlob, minProfit uint64) (vault.ArbitrageResult, error)
}

// Config configures a Worker.
type Config struct {
	Planner       SwapPlanner
	Engine        Engine
	Bus           *events.Bus
	Executor      solana.PublicKey
	ExecutorToken solana.PublicKey
	MinConfidence detector.Confidence
	Logger        *zap.Logger
}

// Worker subscribes to opportunity events and attempts execution. A profit
// shortfall is a frequent, expected outcome: the worker logs it and waits
// for the next scan instead of retrying the stale opportunity.
type Worker struct {
	cfg    Config
	logger *zap.Logger
	sub    events.Subscription
}

func NewWorker(cfg Config) *Worker {
	return &Worker{cfg: cfg, logger: cfg.Logger.Named("executor")}
}

// Start subscribes the worker to the bus.
func (w *Worker) Start() {
	w.sub = w.cfg.Bus.SubscribeFunc(events.OpportunityFound, w.handle)
	w.logger.Info("executor worker started",
		zap.String("executor", w.cfg.Executor.String()),
		zap.String("min_confidence", w.cfg.MinConfidence.String()))
}

// Stop unsubscribes the worker.
func (w *Worker) Stop() {
	if w.sub != nil {
		w.sub.Unsubscribe()
	}
}

func (w *Worker) handle(ctx context.Context, ev events.Event) error {
	found, ok := ev.(events.OpportunityFoundEvent)
	if !ok {
		return nil
	}
	opp, ok := found.Opportunity.(detector.Opportunity)
	if !ok {
		return nil
	}
	if opp.Confidence < w.cfg.MinConfidence {
		return nil
	}

	blob, minProfit, err := w.cfg.Planner.Plan(ctx, opp)
	if err != nil {
		w.logger.Warn("swap planning failed",
			zap.String("pair", opp.Pair.String()),
			zap.Error(err))
		return nil
	}

	result, err := w.cfg.Engine.ExecuteArbitrage(w.cfg.Executor, w.cfg.ExecutorToken, blob, minProfit)
	if err != nil {
		if errors.Is(err, vault.ErrInsufficientProfit) {
			w.logger.Info("opportunity evaporated before execution",
				zap.String("pair", opp.Pair.String()),
				zap.Uint64("min_profit", minProfit))
			return nil
		}
		w.logger.Error("arbitrage execution failed",
			zap.String("pair", opp.Pair.String()),
			zap.Error(err))
		return nil
	}

	w.logger.Info("arbitrage captured",
		zap.String("pair", opp.Pair.String()),
		zap.Uint64("profit", result.Profit),
		zap.Uint64("executor_fee", result.ExecutorFee))
	return nil
}
