package entities

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// BalanceHistory represents a historical balance change
type BalanceHistory struct {
	ID                  int64           `db:"id"`
	Address             common.Address  `db:"address"`
	BalanceBefore       *big.Int        `db:"balance_before"`
	BalanceAfter        *big.Int        `db:"balance_after"`
	ChangeAmount        *big.Int        `db:"change_amount"`
	TransactionType     TransactionType `db:"transaction_type"`
	TransactionMetadata map[string]any  `db:"transaction_metadata"`
	RaffleID            *int64          `db:"raffle_id"`
	RoundNumber         *int64          `db:"round_number"`
	CreatedAt           time.Time       `db:"created_at"`
}

// ValidateTransaction performs basic validation on the transaction
func (bh *BalanceHistory) ValidateTransaction() error {
	if bh.ChangeAmount == nil || bh.ChangeAmount.Sign() == 0 {
		return errors.New("change amount cannot be zero")
	}
	if bh.BalanceBefore == nil || bh.BalanceAfter == nil {
		return errors.New("balances are required")
	}
	if new(big.Int).Add(bh.BalanceBefore, bh.ChangeAmount).Cmp(bh.BalanceAfter) != 0 {
		return errors.New("balance calculation is inconsistent")
	}
	return nil
}

// Clone returns a deep copy of the history entry
func (bh *BalanceHistory) Clone() *BalanceHistory {
	c := *bh
	c.BalanceBefore = new(big.Int).Set(bh.BalanceBefore)
	c.BalanceAfter = new(big.Int).Set(bh.BalanceAfter)
	c.ChangeAmount = new(big.Int).Set(bh.ChangeAmount)
	if bh.TransactionMetadata != nil {
		c.TransactionMetadata = make(map[string]any, len(bh.TransactionMetadata))
		for k, v := range bh.TransactionMetadata {
			c.TransactionMetadata[k] = v
		}
	}
	return &c
}
