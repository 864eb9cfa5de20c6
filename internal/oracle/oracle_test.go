package oracle

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyFeed struct {
	*MockAggregator
	failures int
	calls    int
}

func (f *flakyFeed) LatestRoundData(ctx context.Context) (RoundData, error) {
	f.calls++
	if f.calls <= f.failures {
		return RoundData{}, errors.New("rpc: connection reset")
	}
	return f.MockAggregator.LatestRoundData(ctx)
}

func noWait() backoff.BackOff {
	return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
}

func TestAdapter_LatestRate(t *testing.T) {
	ctx := context.Background()

	t.Run("returns answer with feed decimals", func(t *testing.T) {
		adapter := NewAdapter(NewMockAggregator(DefaultMockDecimals, DefaultMockAnswer), time.Hour)

		rate, err := adapter.LatestRate(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint8(8), rate.Decimals)
		assert.Equal(t, 0, rate.Value.Cmp(big.NewInt(200_000_000_000)))
	})

	t.Run("stale answer is unavailable", func(t *testing.T) {
		feed := NewMockAggregator(DefaultMockDecimals, DefaultMockAnswer)
		updatedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
		feed.UpdateRoundData(big.NewInt(7), DefaultMockAnswer, updatedAt, updatedAt)

		adapter := NewAdapter(feed, time.Hour, WithClock(func() time.Time {
			return updatedAt.Add(2 * time.Hour)
		}))

		_, err := adapter.LatestRate(ctx)
		require.ErrorIs(t, err, ErrUnavailable)
		assert.Contains(t, err.Error(), "2h0m0s old")
	})

	t.Run("answer at the age limit is accepted", func(t *testing.T) {
		feed := NewMockAggregator(DefaultMockDecimals, DefaultMockAnswer)
		updatedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
		feed.UpdateRoundData(big.NewInt(7), DefaultMockAnswer, updatedAt, updatedAt)

		adapter := NewAdapter(feed, time.Hour, WithClock(func() time.Time {
			return updatedAt.Add(time.Hour)
		}))

		_, err := adapter.LatestRate(ctx)
		require.NoError(t, err)
	})

	t.Run("zero answer is unavailable", func(t *testing.T) {
		adapter := NewAdapter(NewMockAggregator(DefaultMockDecimals, big.NewInt(0)), time.Hour)

		_, err := adapter.LatestRate(ctx)
		require.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("negative answer is unavailable", func(t *testing.T) {
		adapter := NewAdapter(NewMockAggregator(DefaultMockDecimals, big.NewInt(-1)), time.Hour)

		_, err := adapter.LatestRate(ctx)
		require.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("transient feed errors are retried", func(t *testing.T) {
		feed := &flakyFeed{MockAggregator: NewMockAggregator(DefaultMockDecimals, DefaultMockAnswer), failures: 2}
		adapter := NewAdapter(feed, time.Hour, WithBackOff(noWait))

		_, err := adapter.LatestRate(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, feed.calls)
	})

	t.Run("persistent feed errors are unavailable", func(t *testing.T) {
		feed := &flakyFeed{MockAggregator: NewMockAggregator(DefaultMockDecimals, DefaultMockAnswer), failures: 10}
		adapter := NewAdapter(feed, time.Hour, WithBackOff(noWait))

		_, err := adapter.LatestRate(ctx)
		require.ErrorIs(t, err, ErrUnavailable)
		assert.Equal(t, 3, feed.calls)
	})
}

func TestMockAggregator_UpdateAnswer(t *testing.T) {
	feed := NewMockAggregator(DefaultMockDecimals, DefaultMockAnswer)

	first, err := feed.LatestRoundData(context.Background())
	require.NoError(t, err)

	feed.UpdateAnswer(big.NewInt(100_000_000_000))

	second, err := feed.LatestRoundData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.RoundID.Cmp(first.RoundID))
	assert.Equal(t, 0, second.Answer.Cmp(big.NewInt(100_000_000_000)))
	assert.Equal(t, 0, first.Answer.Cmp(DefaultMockAnswer))
}

type abiCaller struct {
	abi     abi.ABI
	updated time.Time
	to      *common.Address
}

func (c *abiCaller) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	c.to = call.To

	decimals := c.abi.Methods["decimals"]
	if bytes.Equal(call.Data[:4], decimals.ID) {
		return decimals.Outputs.Pack(uint8(8))
	}

	latest := c.abi.Methods["latestRoundData"]
	if bytes.Equal(call.Data[:4], latest.ID) {
		return latest.Outputs.Pack(
			big.NewInt(42),
			big.NewInt(200_000_000_000),
			big.NewInt(c.updated.Unix()),
			big.NewInt(c.updated.Unix()),
			big.NewInt(42),
		)
	}

	return nil, errors.New("execution reverted")
}

func TestAggregatorClient(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(aggregatorV3ABI))
	require.NoError(t, err)

	updated := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	caller := &abiCaller{abi: parsed, updated: updated}
	address := common.HexToAddress("0x8A753747A1Fa494EC906cE90E9f37563A8AF630e")

	client, err := NewAggregatorClient(caller, address)
	require.NoError(t, err)

	decimals, err := client.Decimals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint8(8), decimals)

	round, err := client.LatestRoundData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, round.Answer.Cmp(big.NewInt(200_000_000_000)))
	assert.Equal(t, 0, round.RoundID.Cmp(big.NewInt(42)))
	assert.True(t, round.UpdatedAt.Equal(updated))
	require.NotNil(t, caller.to)
	assert.Equal(t, address, *caller.to)

	adapter := NewAdapter(client, time.Hour, WithClock(func() time.Time { return updated.Add(time.Minute) }))
	rate, err := adapter.LatestRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint8(8), rate.Decimals)
}
