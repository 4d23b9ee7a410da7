package interfaces

import (
	"context"
	"math/big"

	"raffle/domain/entities"
	"raffle/domain/events"

	"github.com/ethereum/go-ethereum/common"
)

// RaffleRepository defines the interface for the raffle row owned by one engine
type RaffleRepository interface {
	// Get retrieves the raffle without locking, returning nil if it does not exist
	Get(ctx context.Context) (*entities.Raffle, error)

	// GetForUpdate retrieves the raffle and holds its row lock until the unit of work ends
	GetForUpdate(ctx context.Context) (*entities.Raffle, error)

	// Create inserts the raffle row
	Create(ctx context.Context, raffle *entities.Raffle) error

	// Update persists every mutable field of the raffle
	Update(ctx context.Context, raffle *entities.Raffle) error
}

// EntrantRepository defines the interface for round entrants
type EntrantRepository interface {
	// Append stores an entrant at its position within the round
	Append(ctx context.Context, entrant *entities.Entrant) error

	// GetByPosition returns the entrant at a 0-based position, or nil if none exists
	GetByPosition(ctx context.Context, roundNumber, position int64) (*entities.Entrant, error)

	// ListByRound returns the entrants of a round ordered by position
	ListByRound(ctx context.Context, roundNumber int64) ([]*entities.Entrant, error)

	// CountByRound returns the number of entrants in a round
	CountByRound(ctx context.Context, roundNumber int64) (int64, error)
}

// RandomnessRequestRepository defines the interface for oracle request correlation
type RandomnessRequestRepository interface {
	// Create records a newly issued request
	Create(ctx context.Context, request *entities.RandomnessRequest) error

	// GetByID returns a request by its oracle id, or nil if unknown
	GetByID(ctx context.Context, requestID *big.Int) (*entities.RandomnessRequest, error)

	// Update persists status, words and fulfillment time
	Update(ctx context.Context, request *entities.RandomnessRequest) error

	// ListPending returns requests still awaiting fulfillment
	ListPending(ctx context.Context) ([]*entities.RandomnessRequest, error)

	// GetMaxRequestID returns the largest request id recorded by any raffle, nil if none
	GetMaxRequestID(ctx context.Context) (*big.Int, error)
}

// DrawRepository defines the interface for completed draw history
type DrawRepository interface {
	// Create records a completed draw
	Create(ctx context.Context, draw *entities.DrawResult) error

	// GetRecent returns the most recent draws, newest first
	GetRecent(ctx context.Context, limit int) ([]*entities.DrawResult, error)

	// GetByRound returns the draw of a round, or nil if it has not completed
	GetByRound(ctx context.Context, roundNumber int64) (*entities.DrawResult, error)
}

// AccountRepository defines the interface for the payout ledger
type AccountRepository interface {
	// Get retrieves an account, returning nil if it does not exist
	Get(ctx context.Context, address common.Address) (*entities.Account, error)

	// GetForUpdate retrieves an account and locks it for the rest of the unit of work
	GetForUpdate(ctx context.Context, address common.Address) (*entities.Account, error)

	// Create inserts a new account
	Create(ctx context.Context, account *entities.Account) error

	// UpdateBalance sets the balance of an account
	UpdateBalance(ctx context.Context, address common.Address, balance *big.Int) error

	// SetPayoutsBlocked marks whether the account refuses incoming transfers
	SetPayoutsBlocked(ctx context.Context, address common.Address, blocked bool) error
}

// BalanceHistoryRepository defines the interface for balance history tracking
type BalanceHistoryRepository interface {
	// Record creates a new balance history entry
	Record(ctx context.Context, history *entities.BalanceHistory) error

	// GetByAddress returns balance history for an address, newest first
	GetByAddress(ctx context.Context, address common.Address, limit int) ([]*entities.BalanceHistory, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event) error
}

// TransactionalEventPublisher holds events until the surrounding unit of work commits
type TransactionalEventPublisher interface {
	EventPublisher

	// Flush publishes every pending event
	Flush(ctx context.Context) error

	// Discard drops pending events without publishing them
	Discard()
}
