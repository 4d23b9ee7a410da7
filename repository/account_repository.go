package repository

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"raffle/database"
	"raffle/domain/entities"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
)

// AccountRepository implements the AccountRepository interface.
// Accounts are global: a winner keeps one ledger entry across raffles.
type AccountRepository struct {
	q queryable
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{q: db.Pool}
}

// newAccountRepositoryWithTx creates a new account repository with a transaction
func newAccountRepositoryWithTx(tx queryable) *AccountRepository {
	return &AccountRepository{q: tx}
}

// Get retrieves an account by address
func (r *AccountRepository) Get(ctx context.Context, address common.Address) (*entities.Account, error) {
	return r.getOne(ctx, `
		SELECT address, balance::text, payouts_blocked, created_at, updated_at
		FROM accounts
		WHERE address = $1
	`, address)
}

// GetForUpdate retrieves an account and locks its row
func (r *AccountRepository) GetForUpdate(ctx context.Context, address common.Address) (*entities.Account, error) {
	return r.getOne(ctx, `
		SELECT address, balance::text, payouts_blocked, created_at, updated_at
		FROM accounts
		WHERE address = $1
		FOR UPDATE
	`, address)
}

func (r *AccountRepository) getOne(ctx context.Context, query string, address common.Address) (*entities.Account, error) {
	var (
		account entities.Account
		addr    string
		balance string
	)

	err := r.q.QueryRow(ctx, query, addressParam(address)).Scan(
		&addr,
		&balance,
		&account.PayoutsBlocked,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", address.Hex(), err)
	}

	account.Address = common.HexToAddress(addr)
	if account.Balance, err = parseNumeric(balance); err != nil {
		return nil, err
	}
	return &account, nil
}

// Create inserts a new account
func (r *AccountRepository) Create(ctx context.Context, account *entities.Account) error {
	query := `
		INSERT INTO accounts (address, balance, payouts_blocked)
		VALUES ($1, $2::numeric, $3)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		addressParam(account.Address),
		numericParam(account.Balance),
		account.PayoutsBlocked,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account %s: %w", account.Address.Hex(), err)
	}
	return nil
}

// UpdateBalance sets the balance of an account
func (r *AccountRepository) UpdateBalance(ctx context.Context, address common.Address, balance *big.Int) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE accounts
		SET balance = $2::numeric, updated_at = NOW()
		WHERE address = $1
	`, addressParam(address), numericParam(balance))
	if err != nil {
		return fmt.Errorf("failed to update balance of %s: %w", address.Hex(), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s not found", address.Hex())
	}
	return nil
}

// SetPayoutsBlocked marks whether the account refuses transfers, creating it if needed
func (r *AccountRepository) SetPayoutsBlocked(ctx context.Context, address common.Address, blocked bool) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO accounts (address, payouts_blocked)
		VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE
		SET payouts_blocked = EXCLUDED.payouts_blocked, updated_at = NOW()
	`, addressParam(address), blocked)
	if err != nil {
		return fmt.Errorf("failed to set payouts blocked for %s: %w", address.Hex(), err)
	}
	return nil
}
