// Package raffle is the raffle state machine. It admits paid entries while a
// round is open, asks for verifiable randomness when the round is ended and
// pays the whole pool to the winner selected by the fulfilled random value.
//
// Every operation runs under a single lock and is all-or-nothing: a
// transition is applied to a copy of the aggregate, persisted and only then
// committed. Status reads a published snapshot and never blocks.
package raffle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"raffle/internal/logger"
	"raffle/internal/metrics"
	"raffle/internal/pool"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	rejectInvalidState       = "invalid_state"
	rejectInsufficientAmount = "insufficient_payment"
	rejectOracleUnavailable  = "oracle_unavailable"
)

type Dependencies struct {
	Fees       FeeQuoter
	Randomness RandomnessRequester
	Custody    Transferrer
	Store      Store

	// Metrics is optional.
	Metrics *metrics.Metrics
}

type Option func(*Engine)

// WithPayoutBackOff sets the retry policy of a single payout attempt.
func WithPayoutBackOff(newBackOff func() backoff.BackOff) Option {
	return func(e *Engine) {
		e.newBackOff = newBackOff
	}
}

// WithPayoutTimeout bounds a payout including its retries. The payout does
// not follow the caller's cancellation.
func WithPayoutTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		e.payoutTimeout = timeout
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

type Engine struct {
	fees       FeeQuoter
	randomness RandomnessRequester
	custody    Transferrer
	store      Store
	metrics    *metrics.Metrics

	now           func() time.Time
	newBackOff    func() backoff.BackOff
	payoutTimeout time.Duration

	mu  sync.Mutex
	agg aggregate

	snapshot atomic.Pointer[Snapshot]
}

// aggregate is the whole mutable state of the raffle.
type aggregate struct {
	state          State
	pool           *pool.Pool
	pendingRequest *common.Hash
	drawRequest    *common.Hash
	recentWinner   *common.Address
	pendingWinner  *common.Address
	lastRandomness *big.Int
	payoutError    string
	round          uint64
	roundID        string
	openedAt       time.Time
}

func (a aggregate) clone() aggregate {
	a.pool = a.pool.Clone()
	return a
}

// New builds an engine in the initial CLOSED state with an empty pool. Call
// Restore to pick up persisted state.
func New(deps Dependencies, opts ...Option) (*Engine, error) {
	switch {
	case deps.Fees == nil:
		return nil, errors.New("raffle: fee quoter is required")
	case deps.Randomness == nil:
		return nil, errors.New("raffle: randomness requester is required")
	case deps.Custody == nil:
		return nil, errors.New("raffle: custody transferrer is required")
	case deps.Store == nil:
		return nil, errors.New("raffle: store is required")
	}

	e := &Engine{
		fees:       deps.Fees,
		randomness: deps.Randomness,
		custody:    deps.Custody,
		store:      deps.Store,
		metrics:    deps.Metrics,
		now:           time.Now,
		newBackOff:    defaultPayoutBackOff,
		payoutTimeout: defaultPayoutTimeout,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.commit(aggregate{
		state: StateClosed,
		pool:  pool.New(),
	})

	return e, nil
}

const defaultPayoutTimeout = 5 * time.Minute

func defaultPayoutBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// Status returns the last committed state without waiting on a running
// operation.
func (e *Engine) Status() Snapshot {
	return *e.snapshot.Load()
}

// EntryFee quotes the current entry fee in wei.
func (e *Engine) EntryFee(ctx context.Context) (*big.Int, error) {
	return e.fees.CurrentEntryFee(ctx)
}

func (e *Engine) StartRaffle(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.agg.state != StateClosed {
		return invalidTransition("start", e.agg.state)
	}

	next := e.agg.clone()
	next.state = StateOpen
	next.round++
	next.roundID = uuid.NewString()
	next.openedAt = e.now()
	next.drawRequest = nil
	next.lastRandomness = nil

	if err := e.persist(ctx, next); err != nil {
		return err
	}
	e.commit(next)

	logger.Info("raffle: started", zap.Uint64("round", next.round), zap.String("round id", next.roundID))
	return nil
}

// Enter admits participant for payment wei. Any amount above the current
// entry fee stays in the pool.
func (e *Engine) Enter(ctx context.Context, participant common.Address, payment *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.agg.state != StateOpen {
		e.rejectEntry(rejectInvalidState)
		return invalidTransition("enter", e.agg.state)
	}

	if payment == nil || payment.Sign() <= 0 {
		e.rejectEntry(rejectInsufficientAmount)
		return fmt.Errorf("%w: no payment", ErrInsufficientPayment)
	}

	fee, err := e.fees.CurrentEntryFee(ctx)
	if err != nil {
		e.rejectEntry(rejectOracleUnavailable)
		logger.Warn("raffle: entry fee unavailable", zap.Error(err))
		return err
	}

	if payment.Cmp(fee) < 0 {
		e.rejectEntry(rejectInsufficientAmount)
		return fmt.Errorf("%w: paid %s wei, entry fee is %s wei", ErrInsufficientPayment, payment, fee)
	}

	next := e.agg.clone()
	next.pool.AddEntrant(participant)
	if err := next.pool.Credit(payment); err != nil {
		return err
	}

	if err := e.persist(ctx, next); err != nil {
		return err
	}
	e.commit(next)

	if e.metrics != nil {
		e.metrics.IncrementEntries()
	}

	logger.Info("raffle: entered",
		zap.String("participant", participant.Hex()),
		zap.String("payment", payment.String()),
		zap.String("fee", fee.String()),
		zap.Int("entrants", next.pool.Len()))
	return nil
}

// EndRaffle closes entries and requests randomness for the draw. It returns
// the request id the fulfillment has to carry.
func (e *Engine) EndRaffle(ctx context.Context) (common.Hash, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.agg.state != StateOpen {
		return common.Hash{}, invalidTransition("end", e.agg.state)
	}

	if e.agg.pool.Len() == 0 {
		return common.Hash{}, fmt.Errorf("%w: no entrants in round %d", ErrEmptyPool, e.agg.round)
	}

	requestID, err := e.randomness.Request(ctx, e.OnRandomnessFulfilled)
	if err != nil {
		if e.metrics != nil {
			e.metrics.IncrementRandomnessRequestErrors()
		}
		logger.Warn("raffle: randomness request failed, round stays open", zap.Error(err))
		return common.Hash{}, err
	}

	next := e.agg.clone()
	next.state = StateCalculating
	next.pendingRequest = &requestID

	if err := e.persist(ctx, next); err != nil {
		e.randomness.Cancel(requestID)
		return common.Hash{}, err
	}
	e.commit(next)

	if e.metrics != nil {
		e.metrics.IncrementDrawsRequested()
	}

	logger.Info("raffle: ended, waiting for randomness",
		zap.String("request id", requestID.Hex()),
		zap.Int("entrants", next.pool.Len()))
	return requestID, nil
}

// OnRandomnessFulfilled completes the draw for the pending request. Anything
// but the pending request is rejected without touching state.
func (e *Engine) OnRandomnessFulfilled(ctx context.Context, requestID common.Hash, randomness *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.agg.state != StateCalculating || e.agg.pendingRequest == nil || *e.agg.pendingRequest != requestID {
		if e.metrics != nil {
			e.metrics.IncrementRejectedCallbacks()
		}
		logger.Warn("raffle: fulfillment rejected",
			zap.String("request id", requestID.Hex()),
			zap.Stringer("state", e.agg.state))
		return fmt.Errorf("%w: %s", ErrUnknownRequest, requestID.Hex())
	}

	if randomness == nil || randomness.Sign() < 0 {
		// keep the request deliverable
		if err := e.randomness.Subscribe(requestID, e.OnRandomnessFulfilled); err != nil {
			logger.Warn("raffle: resubscribing request failed", zap.Error(err))
		}
		return fmt.Errorf("%w: %s", ErrMissingRandomness, requestID.Hex())
	}

	index := new(big.Int).Mod(randomness, big.NewInt(int64(e.agg.pool.Len())))
	winner := e.agg.pool.Entrant(int(index.Int64()))

	next := e.agg.clone()
	next.pendingRequest = nil
	next.drawRequest = &requestID
	next.pendingWinner = &winner
	next.lastRandomness = new(big.Int).Set(randomness)

	logger.Info("raffle: winner selected",
		zap.String("request id", requestID.Hex()),
		zap.String("winner", winner.Hex()),
		zap.Int64("index", index.Int64()),
		zap.Int("entrants", next.pool.Len()))

	if err := e.settle(ctx, next); err != nil {
		if errors.Is(err, errSettlementNotRecorded) {
			if subErr := e.randomness.Subscribe(requestID, e.OnRandomnessFulfilled); subErr != nil {
				logger.Warn("raffle: resubscribing request failed", zap.Error(subErr))
			}
		}
		return err
	}
	return nil
}

// RetryPayout pays the selected winner of a round held in PAYOUT_FAILED.
func (e *Engine) RetryPayout(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.agg.state != StatePayoutFailed || e.agg.pendingWinner == nil {
		return invalidTransition("retry payout", e.agg.state)
	}

	logger.Info("raffle: retrying payout", zap.String("winner", e.agg.pendingWinner.Hex()))
	return e.settle(ctx, e.agg.clone())
}

// commit makes next the current state and publishes it.
func (e *Engine) commit(next aggregate) {
	e.agg = next

	snapshot := next.snapshot(e.now())
	e.snapshot.Store(&snapshot)

	if e.metrics != nil {
		e.metrics.SetRound(int(next.state), next.pool.Len(), next.pool.Balance())
	}
}

func (e *Engine) rejectEntry(reason string) {
	if e.metrics != nil {
		e.metrics.IncrementRejectedEntries(reason)
	}
}

func invalidTransition(op string, state State) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidStateTransition, op, state)
}
