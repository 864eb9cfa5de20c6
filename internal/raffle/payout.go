package raffle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"raffle/internal/ledger"
	"raffle/internal/logger"
	"raffle/internal/metrics"
	"raffle/internal/storage"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var errSettlementNotRecorded = errors.New("raffle: settlement not recorded")

const payoutInterrupted = "payout interrupted before its outcome was recorded"

// settle pays the whole pool of next to its pending winner. The payout intent
// is persisted first, so a crash during the transfer restarts into
// PAYOUT_FAILED instead of losing the draw.
func (e *Engine) settle(ctx context.Context, next aggregate) error {
	winner := *next.pendingWinner
	amount := next.pool.Balance()

	intent := next.clone()
	intent.state = StatePayoutFailed
	intent.payoutError = payoutInterrupted
	if err := e.persist(ctx, intent); err != nil {
		return fmt.Errorf("%w: %w", errSettlementNotRecorded, err)
	}

	// the transfer and its outcome outlive the caller
	recordCtx := context.WithoutCancel(ctx)

	payCtx, cancel := context.WithTimeout(recordCtx, e.payoutTimeout)
	defer cancel()

	if err := e.pay(payCtx, winner, amount); err != nil {
		next.state = StatePayoutFailed
		next.payoutError = err.Error()
		e.commit(next)

		if persistErr := e.persist(recordCtx, next); persistErr != nil {
			logger.Error("raffle: failed payout not persisted", zap.Error(persistErr))
		}
		e.recordRound(recordCtx, e.roundRecord(next, amount, storage.RoundStatusPayoutFailed))

		if e.metrics != nil {
			e.metrics.IncrementPayouts(metrics.PayoutResultFailed)
		}

		logger.Error("raffle: payout failed, holding pool",
			zap.String("winner", winner.Hex()),
			zap.String("amount", amount.String()),
			zap.Error(err))
		return fmt.Errorf("%w: %s wei to %s: %w", ErrPayoutFailed, amount, winner.Hex(), err)
	}

	round := e.roundRecord(next, amount, storage.RoundStatusPaid)

	next.pool.DebitAll()
	next.pool.ClearEntrants()
	next.recentWinner = &winner
	next.pendingWinner = nil
	next.payoutError = ""
	next.state = StateClosed
	e.commit(next)

	if e.metrics != nil {
		e.metrics.IncrementPayouts(metrics.PayoutResultPaid)
	}

	logger.Info("raffle: winner paid",
		zap.Uint64("round", next.round),
		zap.String("winner", winner.Hex()),
		zap.String("amount", amount.String()))

	if err := e.persist(recordCtx, next); err != nil {
		logger.Error("raffle: paid round not persisted", zap.Error(err))
		return fmt.Errorf("raffle: winner paid but state not persisted: %w", err)
	}
	e.recordRound(recordCtx, round)
	return nil
}

func (e *Engine) pay(ctx context.Context, winner common.Address, amount *big.Int) error {
	operation := func() error {
		err := e.custody.Transfer(ctx, winner, amount)
		if errors.Is(err, ledger.ErrTransferUnconfirmed) {
			// sending again could pay twice
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		logger.Warn("raffle: payout attempt failed, retrying",
			zap.String("winner", winner.Hex()),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	return backoff.RetryNotify(operation, backoff.WithContext(e.newBackOff(), ctx), notify)
}

func (e *Engine) roundRecord(a aggregate, amount *big.Int, status storage.RoundStatus) *storage.Round {
	round := &storage.Round{
		RoundID:    a.roundID,
		Round:      a.round,
		Status:     status,
		Winner:     addressString(a.pendingWinner),
		Amount:     amount.String(),
		RequestID:  hashString(a.drawRequest),
		Randomness: bigString(a.lastRandomness),
		Entrants:   a.pool.Len(),
		Error:      a.payoutError,
		OpenedAt:   unixOrZero(a.openedAt),
	}

	if status == storage.RoundStatusPaid {
		round.SettledAt = e.now().Unix()
	}
	return round
}

// recordRound writes round history. Failures are only logged.
func (e *Engine) recordRound(ctx context.Context, round *storage.Round) {
	if err := e.store.SaveRound(ctx, round); err != nil {
		logger.Error("raffle: round history not saved", zap.String("round id", round.RoundID), zap.Error(err))
	}
}
