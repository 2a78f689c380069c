package vault

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// Event is an append-only record emitted by a mutating treasury operation,
// intended for an external indexing collaborator. Events are appended only
// after the underlying transaction commits.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// Deposited records a completed deposit.
type Deposited struct {
	User   solana.PublicKey
	Amount uint64
	Shares uint64
	At     time.Time
}

func (Deposited) EventName() string       { return "deposited" }
func (e Deposited) OccurredAt() time.Time { return e.At }

// Withdrawn records a completed withdrawal.
type Withdrawn struct {
	User   solana.PublicKey
	Amount uint64
	Shares uint64
	At     time.Time
}

func (Withdrawn) EventName() string       { return "withdrawn" }
func (e Withdrawn) OccurredAt() time.Time { return e.At }

// ArbitrageExecuted records a completed arbitrage with its fee split.
type ArbitrageExecuted struct {
	Executor       solana.PublicKey
	Profit         uint64
	ExecutorFee    uint64
	TreasuryProfit uint64
	At             time.Time
}

func (ArbitrageExecuted) EventName() string       { return "arbitrage_executed" }
func (e ArbitrageExecuted) OccurredAt() time.Time { return e.At }

// EventSink consumes treasury events. Implementations must not assume
// delivery ordering beyond append order within one Service.
type EventSink interface {
	Append(Event)
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) Append(Event) {}
