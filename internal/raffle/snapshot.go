package raffle

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Snapshot is an immutable copy of the raffle state. Optional fields are nil
// when unset.
type Snapshot struct {
	State            State
	Round            uint64
	RoundID          string
	Entrants         []common.Address
	PoolBalance      *big.Int
	PendingRequestID *common.Hash
	RecentWinner     *common.Address
	PendingWinner    *common.Address
	LastRandomness   *big.Int
	PayoutError      string
	OpenedAt         time.Time
	UpdatedAt        time.Time
}

func (a aggregate) snapshot(now time.Time) Snapshot {
	s := Snapshot{
		State:       a.state,
		Round:       a.round,
		RoundID:     a.roundID,
		Entrants:    a.pool.Entrants(),
		PoolBalance: a.pool.Balance(),
		PayoutError: a.payoutError,
		OpenedAt:    a.openedAt,
		UpdatedAt:   now,
	}

	if a.pendingRequest != nil {
		id := *a.pendingRequest
		s.PendingRequestID = &id
	}
	if a.recentWinner != nil {
		winner := *a.recentWinner
		s.RecentWinner = &winner
	}
	if a.pendingWinner != nil {
		winner := *a.pendingWinner
		s.PendingWinner = &winner
	}
	if a.lastRandomness != nil {
		s.LastRandomness = new(big.Int).Set(a.lastRandomness)
	}

	return s
}
