package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/atomx-labs/atomx/internal/detector"
	"github.com/atomx-labs/atomx/internal/events"
	"github.com/atomx-labs/atomx/internal/storage/models"
)

type memoryStore struct {
	mu            sync.Mutex
	treasury      []*models.TreasuryEvent
	opportunities []*models.Opportunity
	saveErr       error
}

func (m *memoryStore) SaveTreasuryEvent(_ context.Context, ev *models.TreasuryEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.treasury = append(m.treasury, ev)
	return nil
}

func (m *memoryStore) ListTreasuryEvents(_ context.Context, kind string, _, _ int) ([]*models.TreasuryEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.TreasuryEvent, 0, len(m.treasury))
	for _, ev := range m.treasury {
		if kind == "" || ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memoryStore) SaveOpportunity(_ context.Context, opp *models.Opportunity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.opportunities = append(m.opportunities, opp)
	return nil
}

func (m *memoryStore) ListOpportunities(_ context.Context, _ string, _, _ int) ([]*models.Opportunity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.Opportunity(nil), m.opportunities...), nil
}

func (m *memoryStore) RunMigrations() error { return nil }
func (m *memoryStore) Close() error         { return nil }

func newTestIndexer(t *testing.T, store Storage) *events.Bus {
	t.Helper()
	logger := zaptest.NewLogger(t)
	bus := events.NewBus(logger, 16)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = bus.Shutdown(ctx)
	})

	ix := NewIndexer(store, logger)
	ix.Attach(bus)
	t.Cleanup(ix.Detach)
	return bus
}

func TestIndexerPersistsTreasuryEvents(t *testing.T) {
	store := &memoryStore{}
	bus := newTestIndexer(t, store)

	ctx := context.Background()
	require.NoError(t, bus.PublishSync(ctx, events.DepositRecordedEvent{
		BaseEvent: events.NewBase(events.DepositRecorded),
		User:      "alice", Amount: 100, Shares: 100,
	}))
	require.NoError(t, bus.PublishSync(ctx, events.WithdrawalRecordedEvent{
		BaseEvent: events.NewBase(events.WithdrawalRecorded),
		User:      "alice", Amount: 40, Shares: 40,
	}))
	require.NoError(t, bus.PublishSync(ctx, events.ArbitrageRecordedEvent{
		BaseEvent: events.NewBase(events.ArbitrageRecorded),
		Executor:  "operator", Profit: 100, ExecutorFee: 10, TreasuryProfit: 90,
	}))

	all, err := store.ListTreasuryEvents(ctx, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "deposited", all[0].Kind)
	assert.Equal(t, "withdrawn", all[1].Kind)
	assert.Equal(t, "arbitrage_executed", all[2].Kind)
	assert.Equal(t, uint64(90), all[2].TreasuryProfit)
}

func TestIndexerPersistsOpportunityDetail(t *testing.T) {
	store := &memoryStore{}
	bus := newTestIndexer(t, store)

	opp := detector.Opportunity{
		ProfitUSD:  12.5,
		ProfitPct:  2.0,
		VolumeUSD:  1_000,
		Buy:        detector.Leg{Venue: "Raydium"},
		Sell:       detector.Leg{Venue: "Orca"},
		DetectedAt: time.Now(),
	}
	require.NoError(t, bus.PublishSync(context.Background(), events.OpportunityFoundEvent{
		BaseEvent:   events.NewBase(events.OpportunityFound),
		Pair:        "SOL/USDC",
		ProfitUSD:   opp.ProfitUSD,
		ProfitPct:   opp.ProfitPct,
		Confidence:  "HIGH",
		Opportunity: opp,
	}))

	saved, err := store.ListOpportunities(context.Background(), "", 0, 0)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "SOL/USDC", saved[0].Pair)
	assert.Equal(t, "Raydium", saved[0].BuyVenue)
	assert.Equal(t, "Orca", saved[0].SellVenue)
	assert.Equal(t, 1_000.0, saved[0].VolumeUSD)
}

func TestIndexerSwallowsPersistenceFailures(t *testing.T) {
	store := &memoryStore{saveErr: assert.AnError}
	bus := newTestIndexer(t, store)

	// A failing store must not surface as a handler error.
	err := bus.PublishSync(context.Background(), events.DepositRecordedEvent{
		BaseEvent: events.NewBase(events.DepositRecorded),
		User:      "alice", Amount: 1, Shares: 1,
	})
	assert.NoError(t, err)
}

func TestDetachStopsIndexing(t *testing.T) {
	store := &memoryStore{}
	logger := zaptest.NewLogger(t)
	bus := events.NewBus(logger, 16)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = bus.Shutdown(ctx)
	})

	ix := NewIndexer(store, logger)
	ix.Attach(bus)
	ix.Detach()

	require.NoError(t, bus.PublishSync(context.Background(), events.DepositRecordedEvent{
		BaseEvent: events.NewBase(events.DepositRecorded),
		User:      "alice", Amount: 1, Shares: 1,
	}))
	all, err := store.ListTreasuryEvents(context.Background(), "", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, all)
}
