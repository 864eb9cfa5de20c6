package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"raffle/internal/logger"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// ErrUnavailable is returned when no usable rate can be read from the feed:
// the feed call failed, the answer is not positive, or it is older than the
// configured maximum age.
var ErrUnavailable = errors.New("oracle unavailable")

// RoundData mirrors the aggregator latestRoundData tuple.
type RoundData struct {
	RoundID         *big.Int
	Answer          *big.Int
	StartedAt       time.Time
	UpdatedAt       time.Time
	AnsweredInRound *big.Int
}

// Feed is an external price feed quoting native currency in fiat units.
type Feed interface {
	Decimals(ctx context.Context) (uint8, error)
	LatestRoundData(ctx context.Context) (RoundData, error)
}

// Rate is a fixed-point exchange rate: Value / 10^Decimals fiat units per
// one native unit.
type Rate struct {
	Value     *big.Int
	Decimals  uint8
	UpdatedAt time.Time
}

type Adapter struct {
	feed       Feed
	maxAge     time.Duration
	now        func() time.Time
	newBackOff func() backoff.BackOff
}

type Option func(*Adapter)

// WithClock overrides the time source used for the staleness check.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		a.now = now
	}
}

// WithBackOff overrides the retry policy applied to failing feed calls.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(a *Adapter) {
		a.newBackOff = newBackOff
	}
}

// NewAdapter wraps feed. A maxAge of zero disables the staleness check.
func NewAdapter(feed Feed, maxAge time.Duration, opts ...Option) *Adapter {
	a := &Adapter{
		feed:   feed,
		maxAge: maxAge,
		now:    time.Now,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			return backoff.WithMaxRetries(b, 3)
		},
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

func (a *Adapter) LatestRate(ctx context.Context) (Rate, error) {
	var rate Rate

	operation := func() error {
		decimals, err := a.feed.Decimals(ctx)
		if err != nil {
			return err
		}

		round, err := a.feed.LatestRoundData(ctx)
		if err != nil {
			return err
		}

		rate = Rate{Value: round.Answer, Decimals: decimals, UpdatedAt: round.UpdatedAt}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		logger.Warn("oracle: feed read failed, retrying", zap.Error(err), zap.Duration("wait", wait))
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(a.newBackOff(), ctx), notify); err != nil {
		return Rate{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if rate.Value == nil || rate.Value.Sign() <= 0 {
		return Rate{}, fmt.Errorf("%w: non-positive answer", ErrUnavailable)
	}

	if a.maxAge > 0 {
		age := a.now().Sub(rate.UpdatedAt)
		if age > a.maxAge {
			logger.Warn("oracle: stale answer rejected", zap.Duration("age", age), zap.Duration("max age", a.maxAge))
			return Rate{}, fmt.Errorf("%w: answer is %s old", ErrUnavailable, age.Truncate(time.Second))
		}
	}

	return rate, nil
}
