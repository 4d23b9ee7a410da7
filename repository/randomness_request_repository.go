package repository

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"raffle/domain/entities"

	"github.com/jackc/pgx/v5"
)

const randomnessRequestColumns = `
	request_id::text, raffle_id, round_number, key_hash, subscription_id::text,
	request_confirmations, callback_gas_limit, num_words, status, random_words, requested_at, fulfilled_at`

// RandomnessRequestRepository implements the RandomnessRequestRepository interface
type RandomnessRequestRepository struct {
	q        queryable
	raffleID int64
}

// NewRandomnessRequestRepositoryScoped creates a new request repository with a transaction and raffle scope
func NewRandomnessRequestRepositoryScoped(tx queryable, raffleID int64) *RandomnessRequestRepository {
	return &RandomnessRequestRepository{q: tx, raffleID: raffleID}
}

// Create records a newly issued request
func (r *RandomnessRequestRepository) Create(ctx context.Context, request *entities.RandomnessRequest) error {
	query := `
		INSERT INTO randomness_requests (request_id, raffle_id, round_number, key_hash, subscription_id,
		                                 request_confirmations, callback_gas_limit, num_words, status,
		                                 random_words, requested_at, fulfilled_at)
		VALUES ($1::numeric, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.q.Exec(ctx, query,
		numericParam(request.RequestID),
		r.raffleID,
		request.RoundNumber,
		request.KeyHash,
		numericParam(request.SubscriptionID),
		int32(request.RequestConfirmations),
		int64(request.CallbackGasLimit),
		int32(request.NumWords),
		string(request.Status),
		wordsToText(request.RandomWords),
		request.RequestedAt,
		request.FulfilledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create randomness request %s: %w", request.RequestID, err)
	}

	request.RaffleID = r.raffleID
	return nil
}

// GetByID returns a request by its oracle id
func (r *RandomnessRequestRepository) GetByID(ctx context.Context, requestID *big.Int) (*entities.RandomnessRequest, error) {
	query := `SELECT` + randomnessRequestColumns + `
		FROM randomness_requests
		WHERE raffle_id = $1 AND request_id = $2::numeric
	`

	request, err := scanRandomnessRequest(r.q.QueryRow(ctx, query, r.raffleID, numericParam(requestID)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get randomness request %s: %w", requestID, err)
	}
	return request, nil
}

// Update persists status, words and fulfillment time
func (r *RandomnessRequestRepository) Update(ctx context.Context, request *entities.RandomnessRequest) error {
	query := `
		UPDATE randomness_requests
		SET status = $3, random_words = $4, fulfilled_at = $5
		WHERE raffle_id = $1 AND request_id = $2::numeric
	`

	tag, err := r.q.Exec(ctx, query,
		r.raffleID,
		numericParam(request.RequestID),
		string(request.Status),
		wordsToText(request.RandomWords),
		request.FulfilledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update randomness request %s: %w", request.RequestID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("randomness request %s not found", request.RequestID)
	}
	return nil
}

// ListPending returns requests still awaiting fulfillment, oldest first
func (r *RandomnessRequestRepository) ListPending(ctx context.Context) ([]*entities.RandomnessRequest, error) {
	query := `SELECT` + randomnessRequestColumns + `
		FROM randomness_requests
		WHERE raffle_id = $1 AND status = 'pending'
		ORDER BY requested_at
	`

	rows, err := r.q.Query(ctx, query, r.raffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending randomness requests: %w", err)
	}
	defer rows.Close()

	var requests []*entities.RandomnessRequest
	for rows.Next() {
		request, err := scanRandomnessRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan randomness request: %w", err)
		}
		requests = append(requests, request)
	}

	return requests, rows.Err()
}

// GetMaxRequestID returns the largest request id in the table. Request ids are
// unique across raffles, so the lookup is not scoped.
func (r *RandomnessRequestRepository) GetMaxRequestID(ctx context.Context) (*big.Int, error) {
	query := `SELECT MAX(request_id)::text FROM randomness_requests`

	var maxID *string
	if err := r.q.QueryRow(ctx, query).Scan(&maxID); err != nil {
		return nil, fmt.Errorf("failed to get max randomness request id: %w", err)
	}
	if maxID == nil {
		return nil, nil
	}
	return parseNumeric(*maxID)
}

func scanRandomnessRequest(row pgx.Row) (*entities.RandomnessRequest, error) {
	var (
		request        entities.RandomnessRequest
		requestID      string
		subscriptionID string
		confirmations  int32
		gasLimit       int64
		numWords       int32
		status         string
		words          []string
	)

	if err := row.Scan(
		&requestID,
		&request.RaffleID,
		&request.RoundNumber,
		&request.KeyHash,
		&subscriptionID,
		&confirmations,
		&gasLimit,
		&numWords,
		&status,
		&words,
		&request.RequestedAt,
		&request.FulfilledAt,
	); err != nil {
		return nil, err
	}

	var err error
	if request.RequestID, err = parseNumeric(requestID); err != nil {
		return nil, err
	}
	if request.SubscriptionID, err = parseNumeric(subscriptionID); err != nil {
		return nil, err
	}
	if request.RandomWords, err = textToWords(words); err != nil {
		return nil, err
	}
	request.RequestConfirmations = uint16(confirmations)
	request.CallbackGasLimit = uint32(gasLimit)
	request.NumWords = uint32(numWords)
	request.Status = entities.RandomnessRequestStatus(status)
	if !request.Status.IsValid() {
		return nil, fmt.Errorf("invalid randomness request status %q", status)
	}

	return &request, nil
}

func wordsToText(words []*big.Int) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = w.String()
	}
	return out
}

func textToWords(words []string) ([]*big.Int, error) {
	if len(words) == 0 {
		return nil, nil
	}
	out := make([]*big.Int, len(words))
	for i, w := range words {
		v, err := parseNumeric(w)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
