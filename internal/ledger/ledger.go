package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"raffle/internal/logger"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrTransferRejected    = errors.New("transfer rejected by recipient")
)

// Transferrer pays native currency out of the raffle's custody.
type Transferrer interface {
	Transfer(ctx context.Context, to common.Address, amount *big.Int) error
}

// Memory is an in-process native-currency ledger for local networks. The
// custody account holds entry payments until they are paid out.
type Memory struct {
	mu       sync.Mutex
	custody  common.Address
	balances map[common.Address]*big.Int
	rejects  map[common.Address]bool
}

func NewMemory(custody common.Address) *Memory {
	return &Memory{
		custody:  custody,
		balances: make(map[common.Address]*big.Int),
		rejects:  make(map[common.Address]bool),
	}
}

func (m *Memory) Custody() common.Address {
	return m.custody
}

func (m *Memory) balance(account common.Address) *big.Int {
	balance, ok := m.balances[account]
	if !ok {
		balance = new(big.Int)
		m.balances[account] = balance
	}
	return balance
}

func (m *Memory) BalanceOf(account common.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return new(big.Int).Set(m.balance(account))
}

// Mint credits account out of thin air, for funding local test accounts.
func (m *Memory) Mint(account common.Address, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.balance(account).Add(m.balance(account), amount)
}

// Reject makes every transfer to account fail until Accept is called, the
// way a contract without a payable fallback refuses funds.
func (m *Memory) Reject(account common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rejects[account] = true
}

func (m *Memory) Accept(account common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.rejects, account)
}

// Deposit moves amount from account into custody.
func (m *Memory) Deposit(_ context.Context, from common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.move(from, m.custody, amount)
}

// Transfer moves amount from custody to account.
func (m *Memory) Transfer(_ context.Context, to common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rejects[to] {
		return fmt.Errorf("ledger: %s: %w", to.Hex(), ErrTransferRejected)
	}

	if err := m.move(m.custody, to, amount); err != nil {
		return err
	}

	logger.Debug("ledger: transfer... done", zap.String("to", to.Hex()), zap.String("amount", amount.String()))
	return nil
}

func (m *Memory) move(from common.Address, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("ledger: negative amount %s", amount)
	}

	source := m.balance(from)
	if source.Cmp(amount) < 0 {
		return fmt.Errorf("ledger: %s has %s, needs %s: %w", from.Hex(), source, amount, ErrInsufficientBalance)
	}

	source.Sub(source, amount)
	m.balance(to).Add(m.balance(to), amount)
	return nil
}
