package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

type Storage interface {
	// raffle aggregate
	LoadRaffle(ctx context.Context) (*Raffle, error)
	SaveRaffle(ctx context.Context, raffle *Raffle) error

	// round history
	SaveRound(ctx context.Context, round *Round) error
	ListRounds(ctx context.Context, limit int) ([]*Round, error)

	Close() error
}
