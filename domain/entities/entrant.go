package entities

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Entrant is one paid entry into a round. A player entering twice holds two positions.
type Entrant struct {
	ID          int64          `db:"id"`
	RaffleID    int64          `db:"raffle_id"`
	RoundNumber int64          `db:"round_number"`
	Position    int64          `db:"position"` // 0-based, dense within the round
	Player      common.Address `db:"player_address"`
	Value       *big.Int       `db:"value"`
	CreatedAt   time.Time      `db:"created_at"`
}

// Clone returns a deep copy of the entrant
func (e *Entrant) Clone() *Entrant {
	c := *e
	c.Value = new(big.Int).Set(e.Value)
	return &c
}
