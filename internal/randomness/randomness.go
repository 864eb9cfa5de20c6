package randomness

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
	// ErrInsufficientFunding is returned when the consumer cannot pay the
	// coordinator's fee-token price for a request.
	ErrInsufficientFunding = errors.New("insufficient randomness funding")
	ErrUnknownRequest      = errors.New("unknown randomness request")
	ErrAlreadySubscribed   = errors.New("randomness request already has a subscriber")
)

// Coordinator places randomness requests on behalf of a consumer. The
// fulfillment is delivered later through Adapter.Fulfill.
type Coordinator interface {
	RequestRandomness(ctx context.Context, consumer common.Address, keyHash common.Hash, fee *big.Int) (common.Hash, error)
}

// FulfillFunc receives the random value for a request it subscribed to.
type FulfillFunc func(ctx context.Context, requestID common.Hash, randomness *big.Int) error

type Config struct {
	Consumer common.Address
	KeyHash  common.Hash
	Fee      *big.Int
}

// Adapter correlates outbound requests with inbound fulfillments. Each
// request has at most one subscriber, and a subscriber is invoked at most once.
type Adapter struct {
	coordinator Coordinator
	config      Config

	mu          sync.Mutex
	subscribers map[common.Hash]FulfillFunc
}

func NewAdapter(coordinator Coordinator, config Config) *Adapter {
	if config.Fee == nil {
		config.Fee = new(big.Int)
	}

	return &Adapter{
		coordinator: coordinator,
		config:      config,
		subscribers: make(map[common.Hash]FulfillFunc),
	}
}

func (a *Adapter) Consumer() common.Address {
	return a.config.Consumer
}

// Request submits a request and subscribes fn to its fulfillment. The lock
// is held across the coordinator call so a fast fulfillment cannot arrive
// before the subscription exists.
func (a *Adapter) Request(ctx context.Context, fn FulfillFunc) (common.Hash, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	logger.Debug("randomness: requesting...", zap.String("consumer", a.config.Consumer.Hex()), zap.String("fee", a.config.Fee.String()))

	requestID, err := a.coordinator.RequestRandomness(ctx, a.config.Consumer, a.config.KeyHash, a.config.Fee)
	if err != nil {
		return common.Hash{}, fmt.Errorf("randomness: request failed: %w", err)
	}

	if _, exists := a.subscribers[requestID]; exists {
		return common.Hash{}, fmt.Errorf("randomness: %s: %w", requestID.Hex(), ErrAlreadySubscribed)
	}
	a.subscribers[requestID] = fn

	logger.Info("randomness: requested... done", zap.String("request id", requestID.Hex()))
	return requestID, nil
}

// Subscribe attaches fn to a request placed earlier, e.g. before a restart.
func (a *Adapter) Subscribe(requestID common.Hash, fn FulfillFunc) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.subscribers[requestID]; exists {
		return fmt.Errorf("randomness: %s: %w", requestID.Hex(), ErrAlreadySubscribed)
	}
	a.subscribers[requestID] = fn
	return nil
}

// Cancel drops the subscription; a later fulfillment is rejected as unknown.
func (a *Adapter) Cancel(requestID common.Hash) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.subscribers, requestID)
}

// Fulfill is the inbound entry point for the coordinator.
func (a *Adapter) Fulfill(ctx context.Context, requestID common.Hash, randomness *big.Int) error {
	a.mu.Lock()
	fn, ok := a.subscribers[requestID]
	delete(a.subscribers, requestID)
	a.mu.Unlock()

	if !ok {
		logger.Warn("randomness: fulfillment for unknown request rejected", zap.String("request id", requestID.Hex()))
		return fmt.Errorf("randomness: %s: %w", requestID.Hex(), ErrUnknownRequest)
	}

	logger.Debug("randomness: delivering fulfillment", zap.String("request id", requestID.Hex()))
	return fn(ctx, requestID, randomness)
}
