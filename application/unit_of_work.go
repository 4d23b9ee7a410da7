package application

import (
	"context"

	"raffle/domain/interfaces"
)

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// BeginReadOnly starts a unit of work that observes committed state without
	// taking locks. Commit fails; Rollback ends it.
	BeginReadOnly(ctx context.Context) error

	// Commit commits the transaction and flushes pending events
	Commit() error

	// Rollback rolls back the transaction and discards pending events
	Rollback() error

	// Repository getters
	RaffleRepository() interfaces.RaffleRepository
	EntrantRepository() interfaces.EntrantRepository
	RandomnessRequestRepository() interfaces.RandomnessRequestRepository
	DrawRepository() interfaces.DrawRepository
	AccountRepository() interfaces.AccountRepository
	BalanceHistoryRepository() interfaces.BalanceHistoryRepository
	EventBus() interfaces.EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	// CreateForRaffle creates a new UnitOfWork scoped to one raffle
	CreateForRaffle(raffleID int64) UnitOfWork
}
