package entities

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrRaffleNotFound is returned when the raffle row for an engine does not exist
	ErrRaffleNotFound = errors.New("raffle not found")

	// ErrConfigMismatch is returned when a persisted raffle was constructed with different settings
	ErrConfigMismatch = errors.New("raffle configuration is immutable after construction")

	// ErrTransferRejected is returned when the payout recipient refuses the transfer
	ErrTransferRejected = errors.New("transfer rejected by recipient")
)

// InsufficientValueError is returned when an entry pays less than the entrance fee
type InsufficientValueError struct {
	Sent     *big.Int
	Required *big.Int
}

func (e *InsufficientValueError) Error() string {
	return fmt.Sprintf("not enough value entered: sent %s, entrance fee %s", e.Sent, e.Required)
}

// RoundNotOpenError is returned when an entry is attempted while a draw is in flight
type RoundNotOpenError struct {
	State RaffleState
}

func (e *RoundNotOpenError) Error() string {
	return fmt.Sprintf("raffle is not open: state is %s", e.State)
}

// TriggerConditionsNotMetError carries the raffle snapshot that failed the upkeep check
type TriggerConditionsNotMetError struct {
	Balance    *big.Int
	NumPlayers int64
	State      RaffleState
}

func (e *TriggerConditionsNotMetError) Error() string {
	return fmt.Sprintf("upkeep not needed: balance %s, players %d, state %s", e.Balance, e.NumPlayers, e.State)
}

// InvalidRequestError is returned for a fulfillment that does not match the active request
type InvalidRequestError struct {
	RequestID *big.Int
	ActiveID  *big.Int // nil when no request is outstanding
	Reason    string
}

func (e *InvalidRequestError) Error() string {
	active := "none"
	if e.ActiveID != nil {
		active = e.ActiveID.String()
	}
	if e.Reason != "" {
		return fmt.Sprintf("invalid randomness fulfillment %s (active %s): %s", e.RequestID, active, e.Reason)
	}
	return fmt.Sprintf("invalid randomness fulfillment %s (active %s)", e.RequestID, active)
}

// PayoutFailedError marks a draw whose transfer to the winner failed.
// The draw is rolled back and stays CALCULATING until the fulfillment is redelivered.
type PayoutFailedError struct {
	Winner    common.Address
	Amount    *big.Int
	RequestID *big.Int
	Err       error
}

func (e *PayoutFailedError) Error() string {
	return fmt.Sprintf("payout of %s to %s for request %s failed: %v", e.Amount, e.Winner.Hex(), e.RequestID, e.Err)
}

func (e *PayoutFailedError) Unwrap() error {
	return e.Err
}

// PlayerIndexOutOfRangeError is returned by the per-index entrant lookup
type PlayerIndexOutOfRangeError struct {
	Index      int64
	NumPlayers int64
}

func (e *PlayerIndexOutOfRangeError) Error() string {
	return fmt.Sprintf("player index %d out of range (players: %d)", e.Index, e.NumPlayers)
}

// IsRejection returns true for errors that reject a call without any state change.
// Payout failures and infrastructure errors are not rejections.
func IsRejection(err error) bool {
	var (
		insufficient *InsufficientValueError
		notOpen      *RoundNotOpenError
		notMet       *TriggerConditionsNotMetError
		invalid      *InvalidRequestError
		outOfRange   *PlayerIndexOutOfRangeError
	)
	return errors.As(err, &insufficient) ||
		errors.As(err, &notOpen) ||
		errors.As(err, &notMet) ||
		errors.As(err, &invalid) ||
		errors.As(err, &outOfRange)
}
