package oracle

import (
	"context"
	"math/big"
	"sync"
	"time"
)

const (
	DefaultMockDecimals = 8
)

// DefaultMockAnswer is 2000 fiat units per native unit at 8 decimals.
var DefaultMockAnswer = big.NewInt(200_000_000_000)

// MockAggregator is an in-process price feed for local networks. Every
// answer update starts a new round stamped with the current time.
type MockAggregator struct {
	mu       sync.RWMutex
	decimals uint8
	round    RoundData
	now      func() time.Time
}

func NewMockAggregator(decimals uint8, initialAnswer *big.Int) *MockAggregator {
	m := &MockAggregator{
		decimals: decimals,
		now:      time.Now,
		round:    RoundData{RoundID: big.NewInt(0)},
	}
	m.UpdateAnswer(initialAnswer)
	return m
}

func (m *MockAggregator) UpdateAnswer(answer *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	roundID := new(big.Int).Add(m.round.RoundID, big.NewInt(1))
	m.round = RoundData{
		RoundID:         roundID,
		Answer:          new(big.Int).Set(answer),
		StartedAt:       now,
		UpdatedAt:       now,
		AnsweredInRound: roundID,
	}
}

// UpdateRoundData sets the full round tuple, e.g. to simulate a feed that
// stopped updating.
func (m *MockAggregator) UpdateRoundData(roundID *big.Int, answer *big.Int, startedAt time.Time, updatedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.round = RoundData{
		RoundID:         new(big.Int).Set(roundID),
		Answer:          new(big.Int).Set(answer),
		StartedAt:       startedAt,
		UpdatedAt:       updatedAt,
		AnsweredInRound: new(big.Int).Set(roundID),
	}
}

func (m *MockAggregator) Decimals(_ context.Context) (uint8, error) {
	return m.decimals, nil
}

func (m *MockAggregator) LatestRoundData(_ context.Context) (RoundData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return RoundData{
		RoundID:         new(big.Int).Set(m.round.RoundID),
		Answer:          new(big.Int).Set(m.round.Answer),
		StartedAt:       m.round.StartedAt,
		UpdatedAt:       m.round.UpdatedAt,
		AnsweredInRound: new(big.Int).Set(m.round.AnsweredInRound),
	}, nil
}
