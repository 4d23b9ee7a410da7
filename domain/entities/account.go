package entities

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Account is the payout ledger entry for an address
type Account struct {
	Address        common.Address `db:"address"`
	Balance        *big.Int       `db:"balance"`
	PayoutsBlocked bool           `db:"payouts_blocked"` // recipient refuses incoming transfers
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

// NewAccount creates an empty account for the address
func NewAccount(address common.Address, now time.Time) *Account {
	return &Account{
		Address:   address,
		Balance:   new(big.Int),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CanReceive returns true if transfers to this account are accepted
func (a *Account) CanReceive() bool {
	return !a.PayoutsBlocked
}

// HasPositiveBalance checks if the account holds any value
func (a *Account) HasPositiveBalance() bool {
	return a.Balance.Sign() > 0
}

// Clone returns a deep copy of the account
func (a *Account) Clone() *Account {
	c := *a
	c.Balance = new(big.Int).Set(a.Balance)
	return &c
}
