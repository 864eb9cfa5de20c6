package randomness

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	consumer = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	keyHash  = common.HexToHash("0x2ed0feb3e7fd2022120aa84fab1945545a9f2ffc9076fd6156fa96eaff4c1311")
	fee      = big.NewInt(100_000_000_000_000_000)
)

type delivery struct {
	mu    sync.Mutex
	calls []*big.Int
}

func (d *delivery) fn(_ context.Context, _ common.Hash, randomness *big.Int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, randomness)
	return nil
}

func (d *delivery) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func newFundedSetup(t *testing.T, opts ...MockOption) (*MockCoordinator, *Adapter) {
	t.Helper()

	coordinator := NewMockCoordinator(opts...)
	adapter := NewAdapter(coordinator, Config{Consumer: consumer, KeyHash: keyHash, Fee: fee})
	coordinator.Attach(consumer, adapter)
	coordinator.Fund(consumer, DefaultFundAmount)
	return coordinator, adapter
}

func TestAdapter_RequestAndFulfill(t *testing.T) {
	ctx := context.Background()
	coordinator, adapter := newFundedSetup(t)
	d := &delivery{}

	requestID, err := adapter.Request(ctx, d.fn)
	require.NoError(t, err)
	assert.NotEqual(t, common.Hash{}, requestID)
	assert.Equal(t, 0, coordinator.BalanceOf(consumer).Sign(), "fee must be charged")

	events := coordinator.Events()
	require.Len(t, events, 1)
	assert.Equal(t, requestID, events[0].RequestID)

	require.NoError(t, coordinator.CallBackWithRandomness(ctx, requestID, big.NewInt(3)))
	require.Equal(t, 1, d.count())
	assert.Equal(t, "3", d.calls[0].String())
}

func TestAdapter_FulfillmentIsDeliveredOnce(t *testing.T) {
	ctx := context.Background()
	_, adapter := newFundedSetup(t)
	d := &delivery{}

	requestID, err := adapter.Request(ctx, d.fn)
	require.NoError(t, err)

	require.NoError(t, adapter.Fulfill(ctx, requestID, big.NewInt(1)))
	require.ErrorIs(t, adapter.Fulfill(ctx, requestID, big.NewInt(2)), ErrUnknownRequest)
	assert.Equal(t, 1, d.count())
}

func TestAdapter_UnknownRequest(t *testing.T) {
	_, adapter := newFundedSetup(t)

	err := adapter.Fulfill(context.Background(), common.HexToHash("0xdead"), big.NewInt(1))
	require.ErrorIs(t, err, ErrUnknownRequest)
}

func TestAdapter_Cancel(t *testing.T) {
	ctx := context.Background()
	_, adapter := newFundedSetup(t)
	d := &delivery{}

	requestID, err := adapter.Request(ctx, d.fn)
	require.NoError(t, err)

	adapter.Cancel(requestID)
	require.ErrorIs(t, adapter.Fulfill(ctx, requestID, big.NewInt(1)), ErrUnknownRequest)
	assert.Equal(t, 0, d.count())
}

func TestAdapter_Subscribe(t *testing.T) {
	ctx := context.Background()
	_, adapter := newFundedSetup(t)
	d := &delivery{}
	requestID := common.HexToHash("0x01")

	require.NoError(t, adapter.Subscribe(requestID, d.fn))
	require.ErrorIs(t, adapter.Subscribe(requestID, d.fn), ErrAlreadySubscribed)

	require.NoError(t, adapter.Fulfill(ctx, requestID, big.NewInt(9)))
	assert.Equal(t, 1, d.count())
}

func TestAdapter_InsufficientFunding(t *testing.T) {
	coordinator := NewMockCoordinator()
	adapter := NewAdapter(coordinator, Config{Consumer: consumer, KeyHash: keyHash, Fee: fee})
	coordinator.Fund(consumer, big.NewInt(1))

	_, err := adapter.Request(context.Background(), (&delivery{}).fn)
	require.ErrorIs(t, err, ErrInsufficientFunding)
	assert.Equal(t, "1", coordinator.BalanceOf(consumer).String(), "failed request must not charge")
	assert.Empty(t, coordinator.Events())
}

func TestMockCoordinator_AutoFund(t *testing.T) {
	ctx := context.Background()
	coordinator := NewMockCoordinator(WithAutoFund(DefaultFundAmount))

	for round := 0; round < 3; round++ {
		_, err := coordinator.RequestRandomness(ctx, consumer, keyHash, fee)
		require.NoError(t, err, "round %d", round)
		assert.Equal(t, 0, coordinator.BalanceOf(consumer).Sign())
	}
	assert.Len(t, coordinator.Events(), 3)

	_, err := coordinator.RequestRandomness(ctx, consumer, keyHash, new(big.Int).Add(DefaultFundAmount, fee))
	require.ErrorIs(t, err, ErrInsufficientFunding)
}

func TestMockCoordinator_RequestIDsAreUnique(t *testing.T) {
	ctx := context.Background()
	coordinator, adapter := newFundedSetup(t)
	coordinator.Fund(consumer, DefaultFundAmount)

	first, err := adapter.Request(ctx, (&delivery{}).fn)
	require.NoError(t, err)
	second, err := adapter.Request(ctx, (&delivery{}).fn)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestMockCoordinator_CallBackTwice(t *testing.T) {
	ctx := context.Background()
	coordinator, adapter := newFundedSetup(t)

	requestID, err := adapter.Request(ctx, (&delivery{}).fn)
	require.NoError(t, err)

	require.NoError(t, coordinator.CallBackWithRandomness(ctx, requestID, big.NewInt(1)))
	require.ErrorIs(t, coordinator.CallBackWithRandomness(ctx, requestID, big.NewInt(1)), ErrUnknownRequest)
}

func TestMockCoordinator_AutoFulfill(t *testing.T) {
	_, adapter := newFundedSetup(t, WithAutoFulfill(10*time.Millisecond))
	d := &delivery{}

	_, err := adapter.Request(context.Background(), d.fn)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return d.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestHTTPCoordinator(t *testing.T) {
	t.Run("returns request id", func(t *testing.T) {
		var got requestBody
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/requests", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"request_id":"0x00000000000000000000000000000000000000000000000000000000000000ff"}`))
		}))
		defer server.Close()

		coordinator := NewHTTPCoordinator(server.URL, "http://raffle.local/randomness/callback")
		requestID, err := coordinator.RequestRandomness(context.Background(), consumer, keyHash, fee)
		require.NoError(t, err)
		assert.Equal(t, common.HexToHash("0xff"), requestID)
		assert.Equal(t, consumer.Hex(), got.Consumer)
		assert.Equal(t, fee.String(), got.Fee)
		assert.Equal(t, "http://raffle.local/randomness/callback", got.CallbackURL)
	})

	t.Run("payment required maps to insufficient funding", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
			_, _ = w.Write([]byte(`{"error":"balance too low"}`))
		}))
		defer server.Close()

		_, err := NewHTTPCoordinator(server.URL, "").RequestRandomness(context.Background(), consumer, keyHash, fee)
		require.ErrorIs(t, err, ErrInsufficientFunding)
	})

	t.Run("malformed body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>gateway</html>`))
		}))
		defer server.Close()

		_, err := NewHTTPCoordinator(server.URL, "").RequestRandomness(context.Background(), consumer, keyHash, fee)
		require.Error(t, err)
		var syntaxErr *json.SyntaxError
		assert.ErrorAs(t, err, &syntaxErr)
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		_, err := NewHTTPCoordinator(server.URL, "").RequestRandomness(context.Background(), consumer, keyHash, fee)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInsufficientFunding)
	})
}
