package events

import (
	"time"
)

// EventType identifies a class of event on the bus.
type EventType string

const (
	// Scanner lifecycle
	ScanStarted      EventType = "scan.started"
	ScanCompleted    EventType = "scan.completed"
	OpportunityFound EventType = "opportunity.found"
	StatusChanged    EventType = "scanner.status_changed"

	// Treasury ledger
	DepositRecorded    EventType = "treasury.deposit"
	WithdrawalRecorded EventType = "treasury.withdrawal"
	ArbitrageRecorded  EventType = "treasury.arbitrage"
)

// Event is the base interface for all bus events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides the common fields.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.EventTime }

// NewBase stamps a base event with the current time.
func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now()}
}

// ScanStartedEvent is emitted at the top of each scan cycle.
type ScanStartedEvent struct {
	BaseEvent
	Cycle int64
	Pairs int
}

// ScanCompletedEvent is emitted when a cycle finishes, whether or not every
// pair succeeded.
type ScanCompletedEvent struct {
	BaseEvent
	Cycle         int64
	Opportunities int
	Errors        []string
	Duration      time.Duration
}

// OpportunityFoundEvent carries one detected opportunity. The payload is the
// detector's Opportunity value, typed loosely to keep the bus free of
// package cycles.
type OpportunityFoundEvent struct {
	BaseEvent
	Pair        string
	ProfitUSD   float64
	ProfitPct   float64
	Confidence  string
	Opportunity interface{}
}

// StatusChangedEvent reports scanner start/stop transitions.
type StatusChangedEvent struct {
	BaseEvent
	Running bool
	Reason  string
}

// DepositRecordedEvent mirrors a treasury Deposited ledger event.
type DepositRecordedEvent struct {
	BaseEvent
	User   string
	Amount uint64
	Shares uint64
}

// WithdrawalRecordedEvent mirrors a treasury Withdrawn ledger event.
type WithdrawalRecordedEvent struct {
	BaseEvent
	User   string
	Amount uint64
	Shares uint64
}

// ArbitrageRecordedEvent mirrors a treasury ArbitrageExecuted ledger event.
type ArbitrageRecordedEvent struct {
	BaseEvent
	Executor       string
	Profit         uint64
	ExecutorFee    uint64
	TreasuryProfit uint64
}
