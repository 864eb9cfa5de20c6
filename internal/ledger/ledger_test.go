package ledger

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	custody = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	player  = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

func TestMemory_DepositAndTransfer(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(custody)
	m.Mint(player, big.NewInt(100))

	require.NoError(t, m.Deposit(ctx, player, big.NewInt(60)))
	assert.Equal(t, "40", m.BalanceOf(player).String())
	assert.Equal(t, "60", m.BalanceOf(custody).String())

	require.NoError(t, m.Transfer(ctx, player, big.NewInt(60)))
	assert.Equal(t, "100", m.BalanceOf(player).String())
	assert.Equal(t, 0, m.BalanceOf(custody).Sign())
}

func TestMemory_InsufficientBalance(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(custody)

	require.ErrorIs(t, m.Deposit(ctx, player, big.NewInt(1)), ErrInsufficientBalance)
	require.ErrorIs(t, m.Transfer(ctx, player, big.NewInt(1)), ErrInsufficientBalance)
}

func TestMemory_RejectingRecipient(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(custody)
	m.Mint(custody, big.NewInt(10))
	m.Reject(player)

	require.ErrorIs(t, m.Transfer(ctx, player, big.NewInt(10)), ErrTransferRejected)
	assert.Equal(t, "10", m.BalanceOf(custody).String(), "rejected transfer must not move funds")

	m.Accept(player)
	require.NoError(t, m.Transfer(ctx, player, big.NewInt(10)))
	assert.Equal(t, "10", m.BalanceOf(player).String())
}
