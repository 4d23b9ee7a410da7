package entities

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DrawResult is the immutable record of a completed round
type DrawResult struct {
	ID           int64          `db:"id"`
	RaffleID     int64          `db:"raffle_id"`
	RoundNumber  int64          `db:"round_number"`
	RequestID    *big.Int       `db:"request_id"`
	RandomWord   *big.Int       `db:"random_word"`
	WinnerIndex  int64          `db:"winner_index"`
	Winner       common.Address `db:"winner_address"`
	Payout       *big.Int       `db:"payout"`
	EntrantCount int64          `db:"entrant_count"`
	CompletedAt  time.Time      `db:"completed_at"`
}

// Clone returns a deep copy of the draw
func (d *DrawResult) Clone() *DrawResult {
	c := *d
	c.RequestID = new(big.Int).Set(d.RequestID)
	c.RandomWord = new(big.Int).Set(d.RandomWord)
	c.Payout = new(big.Int).Set(d.Payout)
	return &c
}
