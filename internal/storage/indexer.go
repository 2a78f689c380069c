package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/atomx-labs/atomx/internal/detector"
	"github.com/atomx-labs/atomx/internal/events"
	"github.com/atomx-labs/atomx/internal/storage/models"
)

// Indexer subscribes to the event bus and persists treasury events and
// detected opportunities. Persistence failures are logged and dropped; the
// indexer is a read-side collaborator and must never stall the hot path.
type Indexer struct {
	store  Storage
	logger *zap.Logger
	subs   []events.Subscription
}

func NewIndexer(store Storage, logger *zap.Logger) *Indexer {
	return &Indexer{store: store, logger: logger.Named("indexer")}
}

// Attach registers the indexer's handlers on the bus.
func (ix *Indexer) Attach(bus *events.Bus) {
	ix.subs = append(ix.subs,
		bus.SubscribeFunc(events.DepositRecorded, ix.handleTreasury),
		bus.SubscribeFunc(events.WithdrawalRecorded, ix.handleTreasury),
		bus.SubscribeFunc(events.ArbitrageRecorded, ix.handleTreasury),
		bus.SubscribeFunc(events.OpportunityFound, ix.handleOpportunity),
	)
}

// Detach removes the indexer's subscriptions.
func (ix *Indexer) Detach() {
	for _, sub := range ix.subs {
		sub.Unsubscribe()
	}
	ix.subs = nil
}

func (ix *Indexer) handleTreasury(ctx context.Context, ev events.Event) error {
	var record models.TreasuryEvent
	switch e := ev.(type) {
	case events.DepositRecordedEvent:
		record = models.TreasuryEvent{
			Kind: "deposited", Actor: e.User,
			Amount: e.Amount, Shares: e.Shares, OccurredAt: e.Timestamp(),
		}
	case events.WithdrawalRecordedEvent:
		record = models.TreasuryEvent{
			Kind: "withdrawn", Actor: e.User,
			Amount: e.Amount, Shares: e.Shares, OccurredAt: e.Timestamp(),
		}
	case events.ArbitrageRecordedEvent:
		record = models.TreasuryEvent{
			Kind: "arbitrage_executed", Actor: e.Executor,
			Profit: e.Profit, ExecutorFee: e.ExecutorFee,
			TreasuryProfit: e.TreasuryProfit, OccurredAt: e.Timestamp(),
		}
	default:
		return nil
	}

	if err := ix.store.SaveTreasuryEvent(ctx, &record); err != nil {
		ix.logger.Warn("failed to index treasury event",
			zap.String("kind", record.Kind),
			zap.Error(err))
	}
	return nil
}

func (ix *Indexer) handleOpportunity(ctx context.Context, ev events.Event) error {
	found, ok := ev.(events.OpportunityFoundEvent)
	if !ok {
		return nil
	}
	record := models.Opportunity{
		Pair:       found.Pair,
		ProfitUSD:  found.ProfitUSD,
		ProfitPct:  found.ProfitPct,
		Confidence: found.Confidence,
		DetectedAt: found.Timestamp(),
	}
	if opp, ok := found.Opportunity.(detector.Opportunity); ok {
		record.BuyVenue = opp.Buy.Venue
		record.SellVenue = opp.Sell.Venue
		record.VolumeUSD = opp.VolumeUSD
		record.DetectedAt = opp.DetectedAt
	}
	if err := ix.store.SaveOpportunity(ctx, &record); err != nil {
		ix.logger.Warn("failed to index opportunity",
			zap.String("pair", found.Pair),
			zap.Error(err))
	}
	return nil
}
