package entities

import (
	"math/big"
	"time"
)

// RandomnessRequestStatus tracks a request through the oracle handshake
type RandomnessRequestStatus string

// Rejected fulfillments roll back with their unit of work, so a request
// only ever moves from pending to fulfilled.
const (
	RandomnessRequestPending   RandomnessRequestStatus = "pending"
	RandomnessRequestFulfilled RandomnessRequestStatus = "fulfilled"
)

// IsValid returns true for the statuses a stored request may have
func (s RandomnessRequestStatus) IsValid() bool {
	return s == RandomnessRequestPending || s == RandomnessRequestFulfilled
}

// RandomnessRequest correlates an oracle request id with the round that issued it
type RandomnessRequest struct {
	RequestID            *big.Int                `db:"request_id"`
	RaffleID             int64                   `db:"raffle_id"`
	RoundNumber          int64                   `db:"round_number"`
	KeyHash              string                  `db:"key_hash"`
	SubscriptionID       *big.Int                `db:"subscription_id"`
	RequestConfirmations uint16                  `db:"request_confirmations"`
	CallbackGasLimit     uint32                  `db:"callback_gas_limit"`
	NumWords             uint32                  `db:"num_words"`
	Status               RandomnessRequestStatus `db:"status"`
	RandomWords          []*big.Int              `db:"random_words"` // empty until fulfilled
	RequestedAt          time.Time               `db:"requested_at"`
	FulfilledAt          *time.Time              `db:"fulfilled_at"`
}

// NewRandomnessRequest records a pending request issued with the given parameters
func NewRandomnessRequest(raffleID, roundNumber int64, requestID *big.Int, params RandomnessParams, now time.Time) *RandomnessRequest {
	return &RandomnessRequest{
		RequestID:            new(big.Int).Set(requestID),
		RaffleID:             raffleID,
		RoundNumber:          roundNumber,
		KeyHash:              params.KeyHash.Hex(),
		SubscriptionID:       new(big.Int).Set(params.SubscriptionID),
		RequestConfirmations: params.RequestConfirmations,
		CallbackGasLimit:     params.CallbackGasLimit,
		NumWords:             params.NumWords,
		Status:               RandomnessRequestPending,
		RequestedAt:          now,
	}
}

// IsPending returns true while the request awaits its fulfillment
func (r *RandomnessRequest) IsPending() bool {
	return r.Status == RandomnessRequestPending
}

// MarkFulfilled stores the delivered words
func (r *RandomnessRequest) MarkFulfilled(words []*big.Int, now time.Time) {
	r.Status = RandomnessRequestFulfilled
	r.RandomWords = cloneWords(words)
	r.FulfilledAt = &now
}

// Clone returns a deep copy of the request
func (r *RandomnessRequest) Clone() *RandomnessRequest {
	c := *r
	c.RequestID = new(big.Int).Set(r.RequestID)
	c.SubscriptionID = new(big.Int).Set(r.SubscriptionID)
	c.RandomWords = cloneWords(r.RandomWords)
	if r.FulfilledAt != nil {
		t := *r.FulfilledAt
		c.FulfilledAt = &t
	}
	return &c
}

func cloneWords(words []*big.Int) []*big.Int {
	if words == nil {
		return nil
	}
	out := make([]*big.Int, len(words))
	for i, w := range words {
		out[i] = new(big.Int).Set(w)
	}
	return out
}
