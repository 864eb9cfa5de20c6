// Package pool keeps the fund accounting of a raffle round: who entered, in
// which order, and how much native currency has been paid in. It is not safe
// for concurrent use; the owning state machine serializes access.
package pool

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var ErrNegativeAmount = errors.New("pool: negative amount")

type Pool struct {
	entrants []common.Address
	balance  *big.Int
}

func New() *Pool {
	return &Pool{balance: new(big.Int)}
}

// Restore rebuilds a pool from persisted state.
func Restore(entrants []common.Address, balance *big.Int) (*Pool, error) {
	if balance == nil {
		balance = new(big.Int)
	}
	if balance.Sign() < 0 {
		return nil, ErrNegativeAmount
	}

	return &Pool{
		entrants: append([]common.Address(nil), entrants...),
		balance:  new(big.Int).Set(balance),
	}, nil
}

func (p *Pool) Credit(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	p.balance.Add(p.balance, amount)
	return nil
}

// DebitAll returns the whole balance and zeroes it.
func (p *Pool) DebitAll() *big.Int {
	amount := p.balance
	p.balance = new(big.Int)
	return amount
}

func (p *Pool) AddEntrant(id common.Address) {
	p.entrants = append(p.entrants, id)
}

func (p *Pool) ClearEntrants() {
	p.entrants = nil
}

func (p *Pool) Balance() *big.Int {
	return new(big.Int).Set(p.balance)
}

func (p *Pool) Len() int {
	return len(p.entrants)
}

func (p *Pool) Entrant(i int) common.Address {
	return p.entrants[i]
}

func (p *Pool) Entrants() []common.Address {
	return append([]common.Address(nil), p.entrants...)
}

func (p *Pool) Clone() *Pool {
	return &Pool{
		entrants: p.Entrants(),
		balance:  p.Balance(),
	}
}
