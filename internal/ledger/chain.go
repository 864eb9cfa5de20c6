package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"raffle/internal/logger"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// receiptTimeout bounds the wait for a submitted transfer to be mined.
const receiptTimeout = 2 * time.Minute

var (
	// ErrTransferReverted is returned when the transfer was mined but failed.
	// No value moved, so it can be sent again.
	ErrTransferReverted = errors.New("transfer reverted")

	// ErrTransferUnconfirmed is returned when a transfer was submitted but its
	// receipt could not be read. It may still be mined, so sending it again
	// risks paying twice.
	ErrTransferUnconfirmed = errors.New("transfer unconfirmed")
)

// TxBackend is the part of an ethclient.Client needed to send value transfers
// and wait for them to be mined.
type TxBackend interface {
	bind.DeployBackend

	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Chain pays out of an externally owned custody account on an EVM network.
type Chain struct {
	backend TxBackend
	key     *ecdsa.PrivateKey
	custody common.Address
}

func NewChain(backend TxBackend, hexKey string) (*Chain, error) {
	if backend == nil {
		return nil, errors.New("ledger: transaction backend is required")
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("ledger: custody key: %w", err)
	}

	return &Chain{
		backend: backend,
		key:     key,
		custody: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

func (c *Chain) Custody() common.Address {
	return c.custody
}

// Transfer signs and submits a value transfer and waits for its receipt. It
// succeeds only once the transfer is mined with a successful status.
func (c *Chain) Transfer(ctx context.Context, to common.Address, amount *big.Int) error {
	nonce, err := c.backend.PendingNonceAt(ctx, c.custody)
	if err != nil {
		return fmt.Errorf("ledger: nonce: %w", err)
	}

	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("ledger: gas price: %w", err)
	}

	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("ledger: chain id: %w", err)
	}

	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:     c.custody,
		To:       &to,
		GasPrice: gasPrice,
		Value:    amount,
	})
	if err != nil {
		return fmt.Errorf("ledger: estimate gas to %s: %w", to.Hex(), err)
	}

	tx := types.NewTransaction(nonce, to, amount, gas, gasPrice, nil)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), c.key)
	if err != nil {
		return fmt.Errorf("ledger: sign: %w", err)
	}

	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("ledger: send %s: %w", signed.Hash().Hex(), err)
	}

	logger.Info("ledger: transfer submitted, waiting for receipt...",
		zap.String("tx", signed.Hash().Hex()),
		zap.String("to", to.Hex()),
		zap.String("amount", amount.String()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas", gas))

	waitCtx, cancel := context.WithTimeout(ctx, receiptTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, c.backend, signed)
	if err != nil {
		return fmt.Errorf("ledger: %s: %w: %w", signed.Hash().Hex(), ErrTransferUnconfirmed, err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("ledger: %s in block %s: %w", signed.Hash().Hex(), receipt.BlockNumber, ErrTransferReverted)
	}

	logger.Info("ledger: transfer submitted, waiting for receipt... done",
		zap.String("tx", signed.Hash().Hex()),
		zap.Uint64("gas used", receipt.GasUsed))
	return nil
}
