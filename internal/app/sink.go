package app

import (
	"github.com/atomx-labs/atomx/internal/events"
	"github.com/atomx-labs/atomx/internal/vault"
)

// busSink forwards the vault's append-only event records onto the process
// event bus, where the indexer and any other read-side consumers pick them
// up.
type busSink struct {
	bus *events.Bus
}

func (s busSink) Append(ev vault.Event) {
	switch e := ev.(type) {
	case vault.Deposited:
		_ = s.bus.Publish(events.DepositRecordedEvent{
			BaseEvent: events.BaseEvent{EventType: events.DepositRecorded, EventTime: e.At},
			User:      e.User.String(),
			Amount:    e.Amount,
			Shares:    e.Shares,
		})
	case vault.Withdrawn:
		_ = s.bus.Publish(events.WithdrawalRecordedEvent{
			BaseEvent: events.BaseEvent{EventType: events.WithdrawalRecorded, EventTime: e.At},
			User:      e.User.String(),
			Amount:    e.Amount,
			Shares:    e.Shares,
		})
	case vault.ArbitrageExecuted:
		_ = s.bus.Publish(events.ArbitrageRecordedEvent{
			BaseEvent:      events.BaseEvent{EventType: events.ArbitrageRecorded, EventTime: e.At},
			Executor:       e.Executor.String(),
			Profit:         e.Profit,
			ExecutorFee:    e.ExecutorFee,
			TreasuryProfit: e.TreasuryProfit,
		})
	}
}
