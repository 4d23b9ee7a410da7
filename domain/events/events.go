package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeRaffleEnter           EventType = "raffle_enter"
	EventTypeRequestedRaffleWinner EventType = "requested_raffle_winner"
	EventTypeWinnerPicked          EventType = "winner_picked"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// RaffleEnterEvent is emitted for every accepted entry
type RaffleEnterEvent struct {
	RaffleID    int64          `json:"raffle_id"`
	RoundNumber int64          `json:"round_number"`
	Player      common.Address `json:"player"`
	Value       *big.Int       `json:"value"`
	Position    int64          `json:"position"`
}

func (e RaffleEnterEvent) Type() EventType {
	return EventTypeRaffleEnter
}

// RequestedRaffleWinnerEvent is emitted when a draw locks the round behind a randomness request
type RequestedRaffleWinnerEvent struct {
	RaffleID    int64    `json:"raffle_id"`
	RoundNumber int64    `json:"round_number"`
	RequestID   *big.Int `json:"request_id"`
	PoolBalance *big.Int `json:"pool_balance"`
	NumPlayers  int64    `json:"num_players"`
}

func (e RequestedRaffleWinnerEvent) Type() EventType {
	return EventTypeRequestedRaffleWinner
}

// WinnerPickedEvent is emitted once the winner has been paid and the raffle reset
type WinnerPickedEvent struct {
	RaffleID    int64          `json:"raffle_id"`
	RoundNumber int64          `json:"round_number"` // the round that was drawn
	RequestID   *big.Int       `json:"request_id"`
	Winner      common.Address `json:"winner"`
	WinnerIndex int64          `json:"winner_index"`
	Payout      *big.Int       `json:"payout"`
	NumPlayers  int64          `json:"num_players"`
}

func (e WinnerPickedEvent) Type() EventType {
	return EventTypeWinnerPicked
}
