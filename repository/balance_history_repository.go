package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"raffle/database"
	"raffle/domain/entities"

	"github.com/ethereum/go-ethereum/common"
)

// BalanceHistoryRepository implements the BalanceHistoryRepository interface
type BalanceHistoryRepository struct {
	q queryable
}

// NewBalanceHistoryRepository creates a new balance history repository
func NewBalanceHistoryRepository(db *database.DB) *BalanceHistoryRepository {
	return &BalanceHistoryRepository{q: db.Pool}
}

// newBalanceHistoryRepositoryWithTx creates a new balance history repository with a transaction
func newBalanceHistoryRepositoryWithTx(tx queryable) *BalanceHistoryRepository {
	return &BalanceHistoryRepository{q: tx}
}

// Record creates a new balance history entry
func (r *BalanceHistoryRepository) Record(ctx context.Context, history *entities.BalanceHistory) error {
	metadataJSON, err := json.Marshal(history.TransactionMetadata)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction metadata: %w", err)
	}

	query := `
		INSERT INTO balance_history
		(address, balance_before, balance_after, change_amount, transaction_type, transaction_metadata, raffle_id, round_number)
		VALUES ($1, $2::numeric, $3::numeric, $4::numeric, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err = r.q.QueryRow(ctx, query,
		addressParam(history.Address),
		numericParam(history.BalanceBefore),
		numericParam(history.BalanceAfter),
		numericParam(history.ChangeAmount),
		string(history.TransactionType),
		metadataJSON,
		history.RaffleID,
		history.RoundNumber,
	).Scan(&history.ID, &history.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record balance history for %s: %w", history.Address.Hex(), err)
	}

	return nil
}

// GetByAddress returns balance history for an address, newest first
func (r *BalanceHistoryRepository) GetByAddress(ctx context.Context, address common.Address, limit int) ([]*entities.BalanceHistory, error) {
	query := `
		SELECT id, address, balance_before::text, balance_after::text, change_amount::text,
		       transaction_type, transaction_metadata, raffle_id, round_number, created_at
		FROM balance_history
		WHERE address = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, addressParam(address), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query balance history: %w", err)
	}
	defer rows.Close()

	var histories []*entities.BalanceHistory
	for rows.Next() {
		var (
			history      entities.BalanceHistory
			addr         string
			before       string
			after        string
			change       string
			txType       string
			metadataJSON []byte
		)

		if err := rows.Scan(
			&history.ID,
			&addr,
			&before,
			&after,
			&change,
			&txType,
			&metadataJSON,
			&history.RaffleID,
			&history.RoundNumber,
			&history.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan balance history: %w", err)
		}

		history.Address = common.HexToAddress(addr)
		history.TransactionType = entities.TransactionType(txType)
		if history.BalanceBefore, err = parseNumeric(before); err != nil {
			return nil, err
		}
		if history.BalanceAfter, err = parseNumeric(after); err != nil {
			return nil, err
		}
		if history.ChangeAmount, err = parseNumeric(change); err != nil {
			return nil, err
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &history.TransactionMetadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal transaction metadata: %w", err)
			}
		}

		histories = append(histories, &history)
	}

	return histories, rows.Err()
}
