package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"raffle/database"
	"raffle/domain/entities"

	"github.com/jackc/pgx/v5"
)

const raffleColumns = `
	id, round_number, state, entrance_fee::text, interval_seconds, pool_balance::text,
	player_count, last_timestamp, recent_winner, active_request_id::text, created_at, updated_at`

// RaffleRepository implements the RaffleRepository interface
type RaffleRepository struct {
	q        queryable
	raffleID int64
}

// NewRaffleRepository creates a new raffle repository outside of a unit of work
func NewRaffleRepository(db *database.DB, raffleID int64) *RaffleRepository {
	return &RaffleRepository{q: db.Pool, raffleID: raffleID}
}

// NewRaffleRepositoryScoped creates a new raffle repository with a transaction and raffle scope
func NewRaffleRepositoryScoped(tx queryable, raffleID int64) *RaffleRepository {
	return &RaffleRepository{q: tx, raffleID: raffleID}
}

// Get retrieves the raffle without locking
func (r *RaffleRepository) Get(ctx context.Context) (*entities.Raffle, error) {
	query := `SELECT` + raffleColumns + ` FROM raffles WHERE id = $1`
	return r.getOne(ctx, query)
}

// GetForUpdate retrieves the raffle and locks its row until the transaction ends
func (r *RaffleRepository) GetForUpdate(ctx context.Context) (*entities.Raffle, error) {
	query := `SELECT` + raffleColumns + ` FROM raffles WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query)
}

func (r *RaffleRepository) getOne(ctx context.Context, query string) (*entities.Raffle, error) {
	raffle, err := scanRaffle(r.q.QueryRow(ctx, query, r.raffleID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get raffle %d: %w", r.raffleID, err)
	}
	return raffle, nil
}

// Create inserts the raffle row
func (r *RaffleRepository) Create(ctx context.Context, raffle *entities.Raffle) error {
	query := `
		INSERT INTO raffles (id, round_number, state, entrance_fee, interval_seconds, pool_balance,
		                     player_count, last_timestamp, recent_winner, active_request_id)
		VALUES ($1, $2, $3, $4::numeric, $5, $6::numeric, $7, $8, $9, $10::numeric)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		r.raffleID,
		raffle.RoundNumber,
		int16(raffle.State),
		numericParam(raffle.EntranceFee),
		int64(raffle.Interval/time.Second),
		numericParam(raffle.PoolBalance),
		raffle.PlayerCount,
		raffle.LastTimestamp,
		nullableAddressParam(raffle.RecentWinner),
		nullableNumericParam(raffle.ActiveRequestID),
	).Scan(&raffle.CreatedAt, &raffle.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create raffle %d: %w", r.raffleID, err)
	}

	raffle.ID = r.raffleID
	return nil
}

// Update persists every mutable field of the raffle
func (r *RaffleRepository) Update(ctx context.Context, raffle *entities.Raffle) error {
	query := `
		UPDATE raffles
		SET round_number = $2,
		    state = $3,
		    pool_balance = $4::numeric,
		    player_count = $5,
		    last_timestamp = $6,
		    recent_winner = $7,
		    active_request_id = $8::numeric,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.q.QueryRow(ctx, query,
		r.raffleID,
		raffle.RoundNumber,
		int16(raffle.State),
		numericParam(raffle.PoolBalance),
		raffle.PlayerCount,
		raffle.LastTimestamp,
		nullableAddressParam(raffle.RecentWinner),
		nullableNumericParam(raffle.ActiveRequestID),
	).Scan(&raffle.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return entities.ErrRaffleNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update raffle %d: %w", r.raffleID, err)
	}
	return nil
}

func scanRaffle(row pgx.Row) (*entities.Raffle, error) {
	var (
		raffle          entities.Raffle
		state           int16
		entranceFee     string
		intervalSeconds int64
		poolBalance     string
		recentWinner    *string
		activeRequestID *string
	)

	err := row.Scan(
		&raffle.ID,
		&raffle.RoundNumber,
		&state,
		&entranceFee,
		&intervalSeconds,
		&poolBalance,
		&raffle.PlayerCount,
		&raffle.LastTimestamp,
		&recentWinner,
		&activeRequestID,
		&raffle.CreatedAt,
		&raffle.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	raffle.State = entities.RaffleState(state)
	raffle.Interval = time.Duration(intervalSeconds) * time.Second
	raffle.RecentWinner = parseNullableAddress(recentWinner)

	if raffle.EntranceFee, err = parseNumeric(entranceFee); err != nil {
		return nil, err
	}
	if raffle.PoolBalance, err = parseNumeric(poolBalance); err != nil {
		return nil, err
	}
	if raffle.ActiveRequestID, err = parseNullableNumeric(activeRequestID); err != nil {
		return nil, err
	}

	return &raffle, nil
}
