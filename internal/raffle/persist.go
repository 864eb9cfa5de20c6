package raffle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"raffle/internal/logger"
	"raffle/internal/pool"
	"raffle/internal/randomness"
	"raffle/internal/storage"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Restore replaces the in-memory state with the persisted one. With nothing
// persisted yet the initial CLOSED state is saved. A restored CALCULATING
// round is subscribed to its pending request again.
func (e *Engine) Restore(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	logger.Info("raffle: restoring state...")

	record, err := e.store.LoadRaffle(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		if err := e.persist(ctx, e.agg); err != nil {
			return err
		}
		logger.Info("raffle: restoring state... done, nothing persisted", zap.Stringer("state", e.agg.state))
		return nil
	}

	if err != nil {
		return fmt.Errorf("raffle: load: %w", err)
	}

	restored, err := fromRecord(record)
	if err != nil {
		return err
	}

	if restored.state == StateCalculating {
		err := e.randomness.Subscribe(*restored.pendingRequest, e.OnRandomnessFulfilled)
		if err != nil && !errors.Is(err, randomness.ErrAlreadySubscribed) {
			return err
		}
	}

	e.commit(restored)

	logger.Info("raffle: restoring state... done",
		zap.Stringer("state", restored.state),
		zap.Uint64("round", restored.round),
		zap.Int("entrants", restored.pool.Len()))

	if restored.state == StatePayoutFailed {
		logger.Warn("raffle: restored with an unsettled payout",
			zap.String("winner", addressString(restored.pendingWinner)),
			zap.String("error", restored.payoutError))
	}
	return nil
}

func (e *Engine) persist(ctx context.Context, a aggregate) error {
	if err := e.store.SaveRaffle(ctx, toRecord(a)); err != nil {
		return fmt.Errorf("raffle: persist: %w", err)
	}
	return nil
}

func toRecord(a aggregate) *storage.Raffle {
	entrants := a.pool.Entrants()
	records := make([]storage.Entrant, len(entrants))
	for i, entrant := range entrants {
		records[i] = storage.Entrant{
			Position: i,
			Address:  entrant.Hex(),
		}
	}

	return &storage.Raffle{
		ID:               storage.RaffleID,
		State:            a.state.String(),
		Round:            a.round,
		RoundID:          a.roundID,
		PoolBalance:      a.pool.Balance().String(),
		PendingRequestID: hashString(a.pendingRequest),
		DrawRequestID:    hashString(a.drawRequest),
		RecentWinner:     addressString(a.recentWinner),
		PendingWinner:    addressString(a.pendingWinner),
		LastRandomness:   bigString(a.lastRandomness),
		PayoutError:      a.payoutError,
		OpenedAt:         unixOrZero(a.openedAt),
		Entrants:         records,
	}
}

func fromRecord(record *storage.Raffle) (aggregate, error) {
	state, err := ParseState(record.State)
	if err != nil {
		return aggregate{}, fmt.Errorf("raffle: restore: %w", err)
	}

	balance, ok := new(big.Int).SetString(record.PoolBalance, 10)
	if !ok {
		return aggregate{}, fmt.Errorf("raffle: restore: invalid pool balance %q", record.PoolBalance)
	}

	entrants := make([]common.Address, len(record.Entrants))
	for i, entrant := range record.Entrants {
		if !common.IsHexAddress(entrant.Address) {
			return aggregate{}, fmt.Errorf("raffle: restore: invalid entrant address %q", entrant.Address)
		}
		entrants[i] = common.HexToAddress(entrant.Address)
	}

	p, err := pool.Restore(entrants, balance)
	if err != nil {
		return aggregate{}, fmt.Errorf("raffle: restore: %w", err)
	}

	a := aggregate{
		state:          state,
		pool:           p,
		pendingRequest: parseHash(record.PendingRequestID),
		drawRequest:    parseHash(record.DrawRequestID),
		recentWinner:   parseAddress(record.RecentWinner),
		pendingWinner:  parseAddress(record.PendingWinner),
		payoutError:    record.PayoutError,
		round:          record.Round,
		roundID:        record.RoundID,
	}

	if record.LastRandomness != "" {
		value, ok := new(big.Int).SetString(record.LastRandomness, 10)
		if !ok {
			return aggregate{}, fmt.Errorf("raffle: restore: invalid randomness %q", record.LastRandomness)
		}
		a.lastRandomness = value
	}

	if record.OpenedAt != 0 {
		a.openedAt = time.Unix(record.OpenedAt, 0)
	}

	switch {
	case state == StateCalculating && a.pendingRequest == nil:
		return aggregate{}, errors.New("raffle: restore: calculating without a pending request")
	case state == StateCalculating && p.Len() == 0:
		return aggregate{}, errors.New("raffle: restore: calculating without entrants")
	case state == StatePayoutFailed && a.pendingWinner == nil:
		return aggregate{}, errors.New("raffle: restore: payout failed without a winner")
	}

	return a, nil
}

func hashString(h *common.Hash) string {
	if h == nil {
		return ""
	}
	return h.Hex()
}

func parseHash(s string) *common.Hash {
	if s == "" {
		return nil
	}
	h := common.HexToHash(s)
	return &h
}

func addressString(a *common.Address) string {
	if a == nil {
		return ""
	}
	return a.Hex()
}

func parseAddress(s string) *common.Address {
	if s == "" {
		return nil
	}
	a := common.HexToAddress(s)
	return &a
}

func bigString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
