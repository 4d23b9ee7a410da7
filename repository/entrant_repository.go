package repository

import (
	"context"
	"errors"
	"fmt"

	"raffle/domain/entities"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
)

// EntrantRepository implements the EntrantRepository interface
type EntrantRepository struct {
	q        queryable
	raffleID int64
}

// NewEntrantRepositoryScoped creates a new entrant repository with a transaction and raffle scope
func NewEntrantRepositoryScoped(tx queryable, raffleID int64) *EntrantRepository {
	return &EntrantRepository{q: tx, raffleID: raffleID}
}

// Append stores an entrant at its position within the round
func (r *EntrantRepository) Append(ctx context.Context, entrant *entities.Entrant) error {
	query := `
		INSERT INTO raffle_entrants (raffle_id, round_number, position, player_address, value, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6)
		RETURNING id
	`

	err := r.q.QueryRow(ctx, query,
		r.raffleID,
		entrant.RoundNumber,
		entrant.Position,
		addressParam(entrant.Player),
		numericParam(entrant.Value),
		entrant.CreatedAt,
	).Scan(&entrant.ID)
	if err != nil {
		return fmt.Errorf("failed to append entrant %s at position %d: %w", entrant.Player.Hex(), entrant.Position, err)
	}

	entrant.RaffleID = r.raffleID
	return nil
}

// GetByPosition returns the entrant at a position of a round
func (r *EntrantRepository) GetByPosition(ctx context.Context, roundNumber, position int64) (*entities.Entrant, error) {
	query := `
		SELECT id, raffle_id, round_number, position, player_address, value::text, created_at
		FROM raffle_entrants
		WHERE raffle_id = $1 AND round_number = $2 AND position = $3
	`

	entrant, err := scanEntrant(r.q.QueryRow(ctx, query, r.raffleID, roundNumber, position))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entrant %d of round %d: %w", position, roundNumber, err)
	}
	return entrant, nil
}

// ListByRound returns the entrants of a round ordered by position
func (r *EntrantRepository) ListByRound(ctx context.Context, roundNumber int64) ([]*entities.Entrant, error) {
	query := `
		SELECT id, raffle_id, round_number, position, player_address, value::text, created_at
		FROM raffle_entrants
		WHERE raffle_id = $1 AND round_number = $2
		ORDER BY position
	`

	rows, err := r.q.Query(ctx, query, r.raffleID, roundNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list entrants of round %d: %w", roundNumber, err)
	}
	defer rows.Close()

	var entrants []*entities.Entrant
	for rows.Next() {
		entrant, err := scanEntrant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entrant: %w", err)
		}
		entrants = append(entrants, entrant)
	}

	return entrants, rows.Err()
}

// CountByRound returns the number of entrants in a round
func (r *EntrantRepository) CountByRound(ctx context.Context, roundNumber int64) (int64, error) {
	var count int64
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM raffle_entrants WHERE raffle_id = $1 AND round_number = $2`,
		r.raffleID, roundNumber,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entrants of round %d: %w", roundNumber, err)
	}
	return count, nil
}

func scanEntrant(row pgx.Row) (*entities.Entrant, error) {
	var (
		entrant entities.Entrant
		player  string
		value   string
	)

	if err := row.Scan(
		&entrant.ID,
		&entrant.RaffleID,
		&entrant.RoundNumber,
		&entrant.Position,
		&player,
		&value,
		&entrant.CreatedAt,
	); err != nil {
		return nil, err
	}

	entrant.Player = common.HexToAddress(player)
	v, err := parseNumeric(value)
	if err != nil {
		return nil, err
	}
	entrant.Value = v
	return &entrant, nil
}
