package raffle

import (
	"context"
	"math/big"

	"raffle/internal/randomness"
	"raffle/internal/storage"

	"github.com/ethereum/go-ethereum/common"
)

//go:generate mockgen -destination=mocks/mock_ports.go -package=mocks raffle/internal/raffle Transferrer,Store

type FeeQuoter interface {
	CurrentEntryFee(ctx context.Context) (*big.Int, error)
}

type RandomnessRequester interface {
	Request(ctx context.Context, fn randomness.FulfillFunc) (common.Hash, error)
	Subscribe(requestID common.Hash, fn randomness.FulfillFunc) error
	Cancel(requestID common.Hash)
}

// Transferrer pays native currency out of the raffle's custody.
type Transferrer interface {
	Transfer(ctx context.Context, to common.Address, amount *big.Int) error
}

type Store interface {
	LoadRaffle(ctx context.Context) (*storage.Raffle, error)
	SaveRaffle(ctx context.Context, raffle *storage.Raffle) error
	SaveRound(ctx context.Context, round *storage.Round) error
}
