package entities

// TransactionType represents the type of balance change
type TransactionType string

// TransactionTypeRafflePayout credits a winner with the round's pool
const TransactionTypeRafflePayout TransactionType = "raffle_payout"

func (tt TransactionType) String() string {
	return string(tt)
}
