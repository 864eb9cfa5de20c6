package raffle

import "fmt"

// State is the lifecycle state of the raffle. The first three values keep
// the numbering of the on-chain lottery enum.
type State int

const (
	StateOpen State = iota
	StateClosed
	StateCalculating
	StatePayoutFailed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	case StateCalculating:
		return "CALCULATING"
	case StatePayoutFailed:
		return "PAYOUT_FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func ParseState(s string) (State, error) {
	switch s {
	case "OPEN":
		return StateOpen, nil
	case "CLOSED":
		return StateClosed, nil
	case "CALCULATING":
		return StateCalculating, nil
	case "PAYOUT_FAILED":
		return StatePayoutFailed, nil
	default:
		return 0, fmt.Errorf("unknown raffle state %q", s)
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
