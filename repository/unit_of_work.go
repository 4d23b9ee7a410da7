package repository

import (
	"context"
	"errors"
	"fmt"

	"raffle/application"
	"raffle/database"
	"raffle/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the UnitOfWork interface over one pgx transaction
type unitOfWork struct {
	db                     *database.DB
	tx                     pgx.Tx
	ctx                    context.Context
	readOnly               bool
	raffleID               int64
	transactionalPublisher interfaces.TransactionalEventPublisher
	raffleRepo             interfaces.RaffleRepository
	entrantRepo            interfaces.EntrantRepository
	requestRepo            interfaces.RandomnessRequestRepository
	drawRepo               interfaces.DrawRepository
	accountRepo            interfaces.AccountRepository
	balanceHistoryRepo     interfaces.BalanceHistoryRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{db: db}
}

// UnitOfWorkFactory creates Postgres-backed units of work
type UnitOfWorkFactory struct {
	db *database.DB
}

// CreateForRaffleWithPublisher creates a new UnitOfWork with a specific transactional publisher
func (f *UnitOfWorkFactory) CreateForRaffleWithPublisher(raffleID int64, transactionalPublisher interfaces.TransactionalEventPublisher) application.UnitOfWork {
	return &unitOfWork{
		db:                     f.db,
		raffleID:               raffleID,
		transactionalPublisher: transactionalPublisher,
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.readOnly = false
	u.bind(ctx, tx)
	return nil
}

// BeginReadOnly starts a read-only transaction. It takes no row locks and cannot commit.
func (u *unitOfWork) BeginReadOnly(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("failed to begin read-only transaction: %w", err)
	}

	u.readOnly = true
	u.bind(ctx, tx)
	return nil
}

func (u *unitOfWork) bind(ctx context.Context, tx pgx.Tx) {
	u.tx = tx
	u.ctx = ctx

	u.raffleRepo = NewRaffleRepositoryScoped(tx, u.raffleID)
	u.entrantRepo = NewEntrantRepositoryScoped(tx, u.raffleID)
	u.requestRepo = NewRandomnessRequestRepositoryScoped(tx, u.raffleID)
	u.drawRepo = NewDrawRepositoryScoped(tx, u.raffleID)
	u.accountRepo = newAccountRepositoryWithTx(tx) // accounts are not raffle-scoped
	u.balanceHistoryRepo = newBalanceHistoryRepositoryWithTx(tx)
}

// Commit commits the transaction
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}
	if u.readOnly {
		return fmt.Errorf("read-only transaction cannot commit")
	}

	if err := u.tx.Commit(u.ctx); err != nil {
		u.tx = nil
		if u.transactionalPublisher != nil {
			u.transactionalPublisher.Discard()
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.tx = nil

	// Events are best-effort once the transaction has committed
	if u.transactionalPublisher != nil {
		_ = u.transactionalPublisher.Flush(u.ctx)
	}

	return nil
}

// Rollback rolls back the transaction
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	u.tx = nil

	if u.transactionalPublisher != nil {
		u.transactionalPublisher.Discard()
	}

	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// RaffleRepository returns the raffle repository for this unit of work
func (u *unitOfWork) RaffleRepository() interfaces.RaffleRepository {
	if u.raffleRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.raffleRepo
}

// EntrantRepository returns the entrant repository for this unit of work
func (u *unitOfWork) EntrantRepository() interfaces.EntrantRepository {
	if u.entrantRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.entrantRepo
}

// RandomnessRequestRepository returns the request repository for this unit of work
func (u *unitOfWork) RandomnessRequestRepository() interfaces.RandomnessRequestRepository {
	if u.requestRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.requestRepo
}

// DrawRepository returns the draw repository for this unit of work
func (u *unitOfWork) DrawRepository() interfaces.DrawRepository {
	if u.drawRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.drawRepo
}

// AccountRepository returns the account repository for this unit of work
func (u *unitOfWork) AccountRepository() interfaces.AccountRepository {
	if u.accountRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.accountRepo
}

// BalanceHistoryRepository returns the balance history repository for this unit of work
func (u *unitOfWork) BalanceHistoryRepository() interfaces.BalanceHistoryRepository {
	if u.balanceHistoryRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.balanceHistoryRepo
}

// EventBus returns the transactional event publisher for this unit of work
func (u *unitOfWork) EventBus() interfaces.EventPublisher {
	if u.transactionalPublisher == nil {
		panic("transactional publisher not configured")
	}
	return u.transactionalPublisher
}
