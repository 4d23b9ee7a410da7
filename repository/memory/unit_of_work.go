package memory

import (
	"context"
	"fmt"

	"raffle/application"
	"raffle/domain/interfaces"
)

// UnitOfWorkFactory creates units of work over a shared Store
type UnitOfWorkFactory struct {
	store *Store
}

// NewUnitOfWorkFactory creates a new in-memory UnitOfWork factory
func NewUnitOfWorkFactory(store *Store) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{store: store}
}

// CreateForRaffleWithPublisher creates a new UnitOfWork with a specific transactional publisher
func (f *UnitOfWorkFactory) CreateForRaffleWithPublisher(raffleID int64, transactionalPublisher interfaces.TransactionalEventPublisher) application.UnitOfWork {
	return &unitOfWork{
		store:                  f.store,
		raffleID:               raffleID,
		transactionalPublisher: transactionalPublisher,
	}
}

type unitOfWork struct {
	store                  *Store
	raffleID               int64
	ctx                    context.Context
	working                *storeData
	readOnly               bool
	transactionalPublisher interfaces.TransactionalEventPublisher

	raffleRepo         interfaces.RaffleRepository
	entrantRepo        interfaces.EntrantRepository
	requestRepo        interfaces.RandomnessRequestRepository
	drawRepo           interfaces.DrawRepository
	accountRepo        interfaces.AccountRepository
	balanceHistoryRepo interfaces.BalanceHistoryRepository
}

// Begin takes the write lock and copies the committed state
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.working != nil {
		return fmt.Errorf("transaction already started")
	}

	u.store.writeMu.Lock()
	u.ctx = ctx
	u.readOnly = false
	u.bind(u.store.current.Load().clone())
	return nil
}

// BeginReadOnly observes the latest committed snapshot without locking or copying
func (u *unitOfWork) BeginReadOnly(ctx context.Context) error {
	if u.working != nil {
		return fmt.Errorf("transaction already started")
	}

	u.ctx = ctx
	u.readOnly = true
	u.bind(u.store.current.Load())
	return nil
}

func (u *unitOfWork) bind(data *storeData) {
	u.working = data
	u.raffleRepo = &raffleRepository{data: data, raffleID: u.raffleID}
	u.entrantRepo = &entrantRepository{data: data, raffleID: u.raffleID}
	u.requestRepo = &randomnessRequestRepository{data: data, raffleID: u.raffleID}
	u.drawRepo = &drawRepository{data: data, raffleID: u.raffleID}
	u.accountRepo = &accountRepository{data: data, now: u.store.now}
	u.balanceHistoryRepo = &balanceHistoryRepository{data: data, now: u.store.now}
}

// Commit freezes and publishes the copy, releases the lock and flushes pending events
func (u *unitOfWork) Commit() error {
	if u.working == nil {
		return fmt.Errorf("no transaction to commit")
	}
	if u.readOnly {
		return errReadOnly
	}

	u.working.frozen = true
	u.store.current.Store(u.working)
	u.working = nil
	u.store.writeMu.Unlock()

	if u.transactionalPublisher != nil {
		_ = u.transactionalPublisher.Flush(u.ctx)
	}
	return nil
}

// Rollback drops the copy and discards pending events
func (u *unitOfWork) Rollback() error {
	if u.working == nil {
		return nil
	}

	u.working = nil
	if !u.readOnly {
		u.store.writeMu.Unlock()
	}

	if u.transactionalPublisher != nil {
		u.transactionalPublisher.Discard()
	}
	return nil
}

func (u *unitOfWork) RaffleRepository() interfaces.RaffleRepository {
	if u.raffleRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.raffleRepo
}

func (u *unitOfWork) EntrantRepository() interfaces.EntrantRepository {
	if u.entrantRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.entrantRepo
}

func (u *unitOfWork) RandomnessRequestRepository() interfaces.RandomnessRequestRepository {
	if u.requestRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.requestRepo
}

func (u *unitOfWork) DrawRepository() interfaces.DrawRepository {
	if u.drawRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.drawRepo
}

func (u *unitOfWork) AccountRepository() interfaces.AccountRepository {
	if u.accountRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.accountRepo
}

func (u *unitOfWork) BalanceHistoryRepository() interfaces.BalanceHistoryRepository {
	if u.balanceHistoryRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.balanceHistoryRepo
}

func (u *unitOfWork) EventBus() interfaces.EventPublisher {
	if u.transactionalPublisher == nil {
		panic("transactional publisher not configured")
	}
	return u.transactionalPublisher
}
