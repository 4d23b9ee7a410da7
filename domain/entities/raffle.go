package entities

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Raffle is the round aggregate owned by a single engine instance.
// Entrants live in their own table and are scoped by RoundNumber, so
// bumping the round clears them atomically.
type Raffle struct {
	ID              int64           `db:"id"`
	RoundNumber     int64           `db:"round_number"`
	State           RaffleState     `db:"state"`
	EntranceFee     *big.Int        `db:"entrance_fee"`
	Interval        time.Duration   `db:"interval_seconds"`
	PoolBalance     *big.Int        `db:"pool_balance"`
	PlayerCount     int64           `db:"player_count"`
	LastTimestamp   time.Time       `db:"last_timestamp"`
	RecentWinner    *common.Address `db:"recent_winner"`     // NULL until the first draw completes
	ActiveRequestID *big.Int        `db:"active_request_id"` // NULL unless calculating
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

// NewRaffle constructs an open raffle with an empty first round
func NewRaffle(id int64, cfg RaffleConfig, now time.Time) *Raffle {
	return &Raffle{
		ID:            id,
		RoundNumber:   1,
		State:         RaffleStateOpen,
		EntranceFee:   new(big.Int).Set(cfg.EntranceFee),
		Interval:      cfg.Interval,
		PoolBalance:   new(big.Int),
		LastTimestamp: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsOpen returns true if the raffle accepts entries
func (r *Raffle) IsOpen() bool {
	return r.State == RaffleStateOpen
}

// IsCalculating returns true while a draw is in flight
func (r *Raffle) IsCalculating() bool {
	return r.State == RaffleStateCalculating
}

// MatchesConfig returns true if the raffle was constructed with the given fee and interval
func (r *Raffle) MatchesConfig(cfg RaffleConfig) bool {
	return r.EntranceFee.Cmp(cfg.EntranceFee) == 0 && r.Interval == cfg.Interval
}

// ValidateEntry checks that an entry with the given value is legal right now
func (r *Raffle) ValidateEntry(value *big.Int) error {
	if !r.IsOpen() {
		return &RoundNotOpenError{State: r.State}
	}
	if value == nil || value.Cmp(r.EntranceFee) < 0 {
		sent := new(big.Int)
		if value != nil {
			sent.Set(value)
		}
		return &InsufficientValueError{Sent: sent, Required: new(big.Int).Set(r.EntranceFee)}
	}
	return nil
}

// RecordEntry adds an already validated entry to the pool and returns the entrant's position
func (r *Raffle) RecordEntry(value *big.Int) int64 {
	position := r.PlayerCount
	r.PoolBalance = new(big.Int).Add(r.PoolBalance, value)
	r.PlayerCount++
	return position
}

// UpkeepStatus breaks the trigger predicate into its conditions
type UpkeepStatus struct {
	IsOpen     bool
	TimePassed bool
	HasPlayers bool
	HasBalance bool
	Elapsed    time.Duration
}

// UpkeepNeeded returns true when every condition holds
func (s UpkeepStatus) UpkeepNeeded() bool {
	return s.IsOpen && s.TimePassed && s.HasPlayers && s.HasBalance
}

// CheckUpkeep evaluates the draw trigger at the given time without side effects
func (r *Raffle) CheckUpkeep(now time.Time) UpkeepStatus {
	elapsed := now.Sub(r.LastTimestamp)
	return UpkeepStatus{
		IsOpen:     r.IsOpen(),
		TimePassed: elapsed >= r.Interval,
		HasPlayers: r.PlayerCount > 0,
		HasBalance: r.PoolBalance.Sign() > 0,
		Elapsed:    elapsed,
	}
}

// TriggerConditionsNotMet builds the diagnostic error for a failed upkeep
func (r *Raffle) TriggerConditionsNotMet() *TriggerConditionsNotMetError {
	return &TriggerConditionsNotMetError{
		Balance:    new(big.Int).Set(r.PoolBalance),
		NumPlayers: r.PlayerCount,
		State:      r.State,
	}
}

// BeginDraw locks the round behind the outstanding randomness request
func (r *Raffle) BeginDraw(requestID *big.Int, now time.Time) error {
	if !r.IsOpen() {
		return &RoundNotOpenError{State: r.State}
	}
	if requestID == nil {
		return errors.New("request id is required")
	}
	r.State = RaffleStateCalculating
	r.ActiveRequestID = new(big.Int).Set(requestID)
	r.UpdatedAt = now
	return nil
}

// ValidateFulfillment checks that a fulfillment belongs to the outstanding request
func (r *Raffle) ValidateFulfillment(requestID *big.Int, randomWords []*big.Int) error {
	if requestID == nil {
		return &InvalidRequestError{RequestID: new(big.Int), ActiveID: r.activeID(), Reason: "missing request id"}
	}
	if !r.IsCalculating() || r.ActiveRequestID == nil || r.ActiveRequestID.Cmp(requestID) != 0 {
		return &InvalidRequestError{RequestID: new(big.Int).Set(requestID), ActiveID: r.activeID()}
	}
	if len(randomWords) == 0 || randomWords[0] == nil {
		return &InvalidRequestError{RequestID: new(big.Int).Set(requestID), ActiveID: r.activeID(), Reason: "no random words"}
	}
	if r.PlayerCount == 0 {
		return &InvalidRequestError{RequestID: new(big.Int).Set(requestID), ActiveID: r.activeID(), Reason: "round has no entrants"}
	}
	return nil
}

// CompleteDraw resets the raffle for the next round and returns the pool owed to the winner
func (r *Raffle) CompleteDraw(winner common.Address, now time.Time) *big.Int {
	payout := new(big.Int).Set(r.PoolBalance)

	w := winner
	r.RecentWinner = &w
	r.RoundNumber++
	r.PlayerCount = 0
	r.State = RaffleStateOpen
	r.LastTimestamp = now
	r.ActiveRequestID = nil
	r.PoolBalance = new(big.Int)
	r.UpdatedAt = now

	return payout
}

// CheckInvariants verifies the state/request coupling and balance sanity
func (r *Raffle) CheckInvariants() error {
	if !r.State.IsValid() {
		return fmt.Errorf("invalid raffle state %d", r.State)
	}
	if r.IsCalculating() != (r.ActiveRequestID != nil) {
		return fmt.Errorf("raffle state %s inconsistent with active request %v", r.State, r.ActiveRequestID)
	}
	if r.PoolBalance == nil || r.PoolBalance.Sign() < 0 {
		return errors.New("pool balance cannot be negative")
	}
	if r.PlayerCount < 0 {
		return errors.New("player count cannot be negative")
	}
	return nil
}

// Clone returns a deep copy of the raffle
func (r *Raffle) Clone() *Raffle {
	c := *r
	c.EntranceFee = new(big.Int).Set(r.EntranceFee)
	c.PoolBalance = new(big.Int).Set(r.PoolBalance)
	if r.RecentWinner != nil {
		w := *r.RecentWinner
		c.RecentWinner = &w
	}
	if r.ActiveRequestID != nil {
		c.ActiveRequestID = new(big.Int).Set(r.ActiveRequestID)
	}
	return &c
}

func (r *Raffle) activeID() *big.Int {
	if r.ActiveRequestID == nil {
		return nil
	}
	return new(big.Int).Set(r.ActiveRequestID)
}

// SelectWinnerIndex maps a random word onto an entrant position.
// The word is reduced modulo the entrant count; for 256-bit words the bias is negligible.
func SelectWinnerIndex(randomWord *big.Int, playerCount int64) (int64, error) {
	if playerCount <= 0 {
		return 0, errors.New("cannot select a winner without entrants")
	}
	if randomWord == nil || randomWord.Sign() < 0 {
		return 0, errors.New("random word must be a non-negative integer")
	}
	idx := new(big.Int).Mod(randomWord, big.NewInt(playerCount))
	return idx.Int64(), nil
}
