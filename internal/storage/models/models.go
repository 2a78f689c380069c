package models

import "time"

// BaseModel replaces gorm.Model for tighter control over timestamps.
type BaseModel struct {
	ID        uint      `gorm:"primarykey"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// TreasuryEvent is one indexed ledger event. Kind is the event name emitted
// by the vault: deposited, withdrawn, arbitrage_executed.
type TreasuryEvent struct {
	BaseModel
	Kind           string    `gorm:"index;size:32"`
	Actor          string    `gorm:"index;size:64"`
	Amount         uint64
	Shares         uint64
	Profit         uint64
	ExecutorFee    uint64
	TreasuryProfit uint64
	OccurredAt     time.Time `gorm:"index"`
}

// Opportunity is one indexed detection result.
type Opportunity struct {
	BaseModel
	Pair       string    `gorm:"index;size:32"`
	BuyVenue   string    `gorm:"size:32"`
	SellVenue  string    `gorm:"size:32"`
	ProfitUSD  float64
	ProfitPct  float64
	VolumeUSD  float64
	Confidence string    `gorm:"size:16"`
	DetectedAt time.Time `gorm:"index"`
}
