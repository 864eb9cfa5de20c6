package randomness

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"raffle/internal/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// DefaultFundAmount is 0.1 of an 18-decimal fee token.
var DefaultFundAmount = big.NewInt(100_000_000_000_000_000)

// Fulfiller receives fulfillments from a coordinator.
type Fulfiller interface {
	Fulfill(ctx context.Context, requestID common.Hash, randomness *big.Int) error
}

// RequestedEvent is emitted for every accepted request.
type RequestedEvent struct {
	RequestID common.Hash
	Consumer  common.Address
	KeyHash   common.Hash
	Fee       *big.Int
	Seed      common.Hash
}

type pendingRequest struct {
	consumer common.Address
}

// MockCoordinator is an in-process randomness coordinator for local
// networks. It keeps fee-token balances per consumer, charges the fee on
// every request and delivers fulfillments either on demand through
// CallBackWithRandomness or automatically after AutoFulfillDelay.
type MockCoordinator struct {
	mu         sync.Mutex
	balances   map[common.Address]*big.Int
	nonces     map[common.Hash]uint64
	pending    map[common.Hash]pendingRequest
	fulfillers map[common.Address]Fulfiller
	events     []RequestedEvent

	autoFulfillDelay time.Duration
	autoFund         *big.Int
}

type MockOption func(*MockCoordinator)

func WithAutoFulfill(delay time.Duration) MockOption {
	return func(m *MockCoordinator) {
		m.autoFulfillDelay = delay
	}
}

// WithAutoFund tops a consumer up by amount whenever its balance cannot pay
// for a request.
func WithAutoFund(amount *big.Int) MockOption {
	return func(m *MockCoordinator) {
		m.autoFund = new(big.Int).Set(amount)
	}
}

func NewMockCoordinator(opts ...MockOption) *MockCoordinator {
	m := &MockCoordinator{
		balances:   make(map[common.Address]*big.Int),
		nonces:     make(map[common.Hash]uint64),
		pending:    make(map[common.Hash]pendingRequest),
		fulfillers: make(map[common.Address]Fulfiller),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Fund credits fee token to consumer.
func (m *MockCoordinator) Fund(consumer common.Address, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	balance, ok := m.balances[consumer]
	if !ok {
		balance = new(big.Int)
		m.balances[consumer] = balance
	}
	balance.Add(balance, amount)

	logger.Debug("mock coordinator: funded consumer", zap.String("consumer", consumer.Hex()), zap.String("amount", amount.String()))
}

func (m *MockCoordinator) BalanceOf(consumer common.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if balance, ok := m.balances[consumer]; ok {
		return new(big.Int).Set(balance)
	}
	return new(big.Int)
}

// Attach registers where fulfillments for consumer are delivered.
func (m *MockCoordinator) Attach(consumer common.Address, fulfiller Fulfiller) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fulfillers[consumer] = fulfiller
}

func (m *MockCoordinator) Events() []RequestedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]RequestedEvent(nil), m.events...)
}

func (m *MockCoordinator) RequestRandomness(_ context.Context, consumer common.Address, keyHash common.Hash, fee *big.Int) (common.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	balance, ok := m.balances[consumer]
	if m.autoFund != nil && (!ok || balance.Cmp(fee) < 0) {
		if !ok {
			balance = new(big.Int)
			m.balances[consumer] = balance
			ok = true
		}
		balance.Add(balance, m.autoFund)
		logger.Debug("mock coordinator: topped up consumer", zap.String("consumer", consumer.Hex()), zap.String("balance", balance.String()))
	}
	if !ok || balance.Cmp(fee) < 0 {
		have := "0"
		if ok {
			have = balance.String()
		}
		return common.Hash{}, fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunding, have, fee.String())
	}
	balance.Sub(balance, fee)

	nonce := m.nonces[keyHash]
	m.nonces[keyHash] = nonce + 1

	seed := crypto.Keccak256Hash(
		keyHash.Bytes(),
		common.LeftPadBytes(consumer.Bytes(), 32),
		common.BigToHash(new(big.Int).SetUint64(nonce)).Bytes(),
	)
	requestID := crypto.Keccak256Hash(keyHash.Bytes(), seed.Bytes())

	m.pending[requestID] = pendingRequest{consumer: consumer}
	m.events = append(m.events, RequestedEvent{
		RequestID: requestID,
		Consumer:  consumer,
		KeyHash:   keyHash,
		Fee:       new(big.Int).Set(fee),
		Seed:      seed,
	})

	if m.autoFulfillDelay > 0 {
		go m.autoFulfill(requestID)
	}

	return requestID, nil
}

func (m *MockCoordinator) autoFulfill(requestID common.Hash) {
	time.Sleep(m.autoFulfillDelay)

	randomness, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 256))
	if err != nil {
		logger.Error("mock coordinator: cannot generate randomness", zap.Error(err))
		return
	}

	if err := m.CallBackWithRandomness(context.Background(), requestID, randomness); err != nil {
		logger.Error("mock coordinator: auto fulfillment failed", zap.String("request id", requestID.Hex()), zap.Error(err))
	}
}

// CallBackWithRandomness delivers randomness for a pending request. Each
// request can be delivered once.
func (m *MockCoordinator) CallBackWithRandomness(ctx context.Context, requestID common.Hash, randomness *big.Int) error {
	m.mu.Lock()
	request, ok := m.pending[requestID]
	if ok {
		delete(m.pending, requestID)
	}
	fulfiller := m.fulfillers[request.consumer]
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("mock coordinator: %s: %w", requestID.Hex(), ErrUnknownRequest)
	}

	if fulfiller == nil {
		return fmt.Errorf("mock coordinator: no fulfiller attached for %s", request.consumer.Hex())
	}

	logger.Debug("mock coordinator: calling back", zap.String("request id", requestID.Hex()), zap.String("randomness", randomness.String()))
	return fulfiller.Fulfill(ctx, requestID, randomness)
}
