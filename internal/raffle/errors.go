package raffle

import (
	"errors"

	"raffle/internal/oracle"
	"raffle/internal/randomness"
)

var (
	// ErrInvalidStateTransition is returned when an operation is attempted
	// from a state that does not allow it.
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInsufficientPayment    = errors.New("insufficient payment")
	ErrEmptyPool              = errors.New("empty pool")
	ErrMissingRandomness      = errors.New("fulfillment without random value")

	// ErrPayoutFailed means the winner could not be paid. The engine holds
	// StatePayoutFailed with the pool intact until RetryPayout succeeds.
	ErrPayoutFailed = errors.New("payout failed")

	ErrOracleUnavailable             = oracle.ErrUnavailable
	ErrUnknownRequest                = randomness.ErrUnknownRequest
	ErrInsufficientRandomnessFunding = randomness.ErrInsufficientFunding
)
