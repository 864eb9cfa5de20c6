package storage

import "time"

// RaffleID is the primary key of the single raffle row.
const RaffleID uint = 1

// Raffle is the durable raffle aggregate. Amounts and random values are
// base-10 strings, addresses and hashes are 0x-prefixed hex; empty strings
// mean "not set".
type Raffle struct {
	ID               uint   `gorm:"primaryKey"`
	State            string `gorm:"not null"`
	Round            uint64
	RoundID          string
	PoolBalance      string `gorm:"not null"`
	PendingRequestID string
	DrawRequestID    string
	RecentWinner     string
	PendingWinner    string
	LastRandomness   string
	PayoutError      string
	OpenedAt         int64
	Entrants         []Entrant `gorm:"foreignKey:RaffleID"`
	UpdatedAt        time.Time
}

type Entrant struct {
	ID       int64  `gorm:"primaryKey"`
	RaffleID uint   `gorm:"uniqueIndex:idx_raffle_position"`
	Position int    `gorm:"uniqueIndex:idx_raffle_position"`
	Address  string `gorm:"not null"`
}

type RoundStatus = string

const (
	RoundStatusPaid         RoundStatus = "paid"
	RoundStatusPayoutFailed RoundStatus = "payout_failed"
)

// Round is the settlement record of one raffle round.
type Round struct {
	RoundID    string      `gorm:"primaryKey"`
	Round      uint64      `gorm:"index"`
	Status     RoundStatus `gorm:"not null"`
	Winner     string      `gorm:"not null"`
	Amount     string      `gorm:"not null"`
	RequestID  string      `gorm:"not null"`
	Randomness string      `gorm:"not null"`
	Entrants   int         `gorm:"not null"`
	Error      string
	OpenedAt   int64
	SettledAt  int64
}
