package repository

import (
	"context"
	"errors"
	"fmt"

	"raffle/domain/entities"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
)

const drawColumns = `
	id, raffle_id, round_number, request_id::text, random_word::text, winner_index,
	winner_address, payout::text, entrant_count, completed_at`

// DrawRepository implements the DrawRepository interface
type DrawRepository struct {
	q        queryable
	raffleID int64
}

// NewDrawRepositoryScoped creates a new draw repository with a transaction and raffle scope
func NewDrawRepositoryScoped(tx queryable, raffleID int64) *DrawRepository {
	return &DrawRepository{q: tx, raffleID: raffleID}
}

// Create records a completed draw
func (r *DrawRepository) Create(ctx context.Context, draw *entities.DrawResult) error {
	query := `
		INSERT INTO raffle_draws (raffle_id, round_number, request_id, random_word, winner_index,
		                          winner_address, payout, entrant_count, completed_at)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5, $6, $7::numeric, $8, $9)
		RETURNING id
	`

	err := r.q.QueryRow(ctx, query,
		r.raffleID,
		draw.RoundNumber,
		numericParam(draw.RequestID),
		numericParam(draw.RandomWord),
		draw.WinnerIndex,
		addressParam(draw.Winner),
		numericParam(draw.Payout),
		draw.EntrantCount,
		draw.CompletedAt,
	).Scan(&draw.ID)
	if err != nil {
		return fmt.Errorf("failed to record draw for round %d: %w", draw.RoundNumber, err)
	}

	draw.RaffleID = r.raffleID
	return nil
}

// GetRecent returns the most recent draws, newest first
func (r *DrawRepository) GetRecent(ctx context.Context, limit int) ([]*entities.DrawResult, error) {
	query := `SELECT` + drawColumns + `
		FROM raffle_draws
		WHERE raffle_id = $1
		ORDER BY round_number DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, r.raffleID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent draws: %w", err)
	}
	defer rows.Close()

	draws := make([]*entities.DrawResult, 0)
	for rows.Next() {
		draw, err := scanDraw(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan draw: %w", err)
		}
		draws = append(draws, draw)
	}

	return draws, rows.Err()
}

// GetByRound returns the draw of a round
func (r *DrawRepository) GetByRound(ctx context.Context, roundNumber int64) (*entities.DrawResult, error) {
	query := `SELECT` + drawColumns + `
		FROM raffle_draws
		WHERE raffle_id = $1 AND round_number = $2
	`

	draw, err := scanDraw(r.q.QueryRow(ctx, query, r.raffleID, roundNumber))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draw for round %d: %w", roundNumber, err)
	}
	return draw, nil
}

func scanDraw(row pgx.Row) (*entities.DrawResult, error) {
	var (
		draw       entities.DrawResult
		requestID  string
		randomWord string
		winner     string
		payout     string
	)

	if err := row.Scan(
		&draw.ID,
		&draw.RaffleID,
		&draw.RoundNumber,
		&requestID,
		&randomWord,
		&draw.WinnerIndex,
		&winner,
		&payout,
		&draw.EntrantCount,
		&draw.CompletedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if draw.RequestID, err = parseNumeric(requestID); err != nil {
		return nil, err
	}
	if draw.RandomWord, err = parseNumeric(randomWord); err != nil {
		return nil, err
	}
	if draw.Payout, err = parseNumeric(payout); err != nil {
		return nil, err
	}
	draw.Winner = common.HexToAddress(winner)

	return &draw, nil
}
