package infrastructure

import (
	"context"

	"raffle/application"
	"raffle/domain/events"
	"raffle/domain/interfaces"
)

// RepositoryFactory builds store-specific units of work around a given publisher
type RepositoryFactory interface {
	CreateForRaffleWithPublisher(raffleID int64, transactionalPublisher interfaces.TransactionalEventPublisher) application.UnitOfWork
}

// UnitOfWorkFactory implements application.UnitOfWorkFactory.
// Each unit of work gets its own transactional publisher so events
// leave the process only after the store commits.
type UnitOfWorkFactory struct {
	repoFactory    RepositoryFactory
	eventPublisher interfaces.EventPublisher
}

// NewUnitOfWorkFactory wraps a Postgres or in-memory repository factory
func NewUnitOfWorkFactory(repoFactory RepositoryFactory, eventPublisher interfaces.EventPublisher) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{
		repoFactory:    repoFactory,
		eventPublisher: eventPublisher,
	}
}

// RegisterLocalHandler registers a handler invoked in-process after commit
func (f *UnitOfWorkFactory) RegisterLocalHandler(eventType events.EventType, handler func(context.Context, events.Event) error) {
	if natsPublisher, ok := f.eventPublisher.(*NATSEventPublisher); ok {
		natsPublisher.RegisterLocalHandler(eventType, handler)
	}
}

// CreateForRaffle creates a new UnitOfWork with a transactional event publisher
func (f *UnitOfWorkFactory) CreateForRaffle(raffleID int64) application.UnitOfWork {
	transactionalPublisher := NewNATSTransactionalPublisher(f.eventPublisher)
	return f.repoFactory.CreateForRaffleWithPublisher(raffleID, transactionalPublisher)
}
