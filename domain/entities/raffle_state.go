package entities

import "fmt"

// RaffleState gates which raffle operations are legal
type RaffleState int16

const (
	RaffleStateOpen        RaffleState = 0
	RaffleStateCalculating RaffleState = 1
)

// String returns the string representation of the raffle state
func (s RaffleState) String() string {
	switch s {
	case RaffleStateOpen:
		return "open"
	case RaffleStateCalculating:
		return "calculating"
	default:
		return fmt.Sprintf("unknown(%d)", int16(s))
	}
}

// IsValid returns true if the state is one of the known states
func (s RaffleState) IsValid() bool {
	return s == RaffleStateOpen || s == RaffleStateCalculating
}
