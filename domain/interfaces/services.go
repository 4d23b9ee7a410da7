package interfaces

import (
	"context"
	"math/big"

	"raffle/domain/entities"

	"github.com/ethereum/go-ethereum/common"
)

// RandomnessRequester issues randomness requests to the oracle on behalf of the raffle
type RandomnessRequester interface {
	// RequestRandomness submits a request and returns the oracle-assigned id
	RequestRandomness(ctx context.Context, params entities.RandomnessParams) (*big.Int, error)

	// CancelRandomness withdraws a request whose draw was rolled back.
	// Oracles without cancellation return an error and the request is orphaned.
	CancelRandomness(ctx context.Context, requestID *big.Int) error
}

// UpkeepCheck is the result of the read-only trigger predicate
type UpkeepCheck struct {
	UpkeepNeeded bool
	PerformData  []byte
	Status       entities.UpkeepStatus
}

// RaffleService defines the round lifecycle operations.
// Implementations are bound to one unit of work.
type RaffleService interface {
	// Initialize creates the raffle if absent and rejects a persisted raffle with different settings
	Initialize(ctx context.Context) (*entities.Raffle, error)

	// Enter records a paid entry for the current round
	Enter(ctx context.Context, player common.Address, value *big.Int) (*entities.Entrant, error)

	// CheckUpkeep evaluates whether a draw may begin. checkData is ignored.
	CheckUpkeep(ctx context.Context, checkData []byte) (*UpkeepCheck, error)

	// PerformUpkeep locks the round and requests randomness. performData is ignored.
	PerformUpkeep(ctx context.Context, performData []byte) (*big.Int, error)

	// FulfillRandomWords completes the draw for the outstanding request
	FulfillRandomWords(ctx context.Context, requestID *big.Int, randomWords []*big.Int) (*entities.DrawResult, error)

	// GetRaffle returns the current raffle snapshot
	GetRaffle(ctx context.Context) (*entities.Raffle, error)

	// GetPlayer returns the entrant address at a position of the current round
	GetPlayer(ctx context.Context, index int64) (common.Address, error)

	// GetRecentDraws returns completed draws, newest first
	GetRecentDraws(ctx context.Context, limit int) ([]*entities.DrawResult, error)
}

// PayoutService moves value from the raffle pool into the recipient's account
type PayoutService interface {
	// Transfer credits amount to the recipient, failing with entities.ErrTransferRejected
	// when the recipient refuses transfers
	Transfer(ctx context.Context, to common.Address, amount *big.Int, metadata map[string]any) error

	// GetBalance returns the ledger balance of an address, zero if it has no account
	GetBalance(ctx context.Context, address common.Address) (*big.Int, error)
}
