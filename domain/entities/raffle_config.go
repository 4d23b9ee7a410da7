package entities

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// DefaultRequestConfirmations is the number of blocks the oracle waits before responding
	DefaultRequestConfirmations uint16 = 3

	// DefaultNumWords is the number of random words requested per draw
	DefaultNumWords uint32 = 1

	// DefaultCallbackGasLimit bounds the gas the oracle spends delivering a fulfillment
	DefaultCallbackGasLimit uint32 = 100000

	// DefaultInterval is the minimum time between draws
	DefaultInterval = 30 * time.Second
)

// DefaultEntranceFee is 0.01 ether expressed in wei
var DefaultEntranceFee = big.NewInt(10_000_000_000_000_000)

// RandomnessParams are the oracle call parameters carried by every request
type RandomnessParams struct {
	KeyHash              common.Hash // gas lane / randomness source
	SubscriptionID       *big.Int
	RequestConfirmations uint16
	CallbackGasLimit     uint32
	NumWords             uint32
	NativePayment        bool
}

// RaffleConfig holds the settings fixed at raffle construction
type RaffleConfig struct {
	EntranceFee *big.Int
	Interval    time.Duration

	KeyHash              common.Hash
	SubscriptionID       *big.Int
	CallbackGasLimit     uint32
	RequestConfirmations uint16
	NumWords             uint32
	NativePayment        bool

	// RaffleAddress identifies this engine as an oracle consumer
	RaffleAddress common.Address
}

// Validate checks the configuration for values that can never produce a draw
func (c RaffleConfig) Validate() error {
	if c.EntranceFee == nil || c.EntranceFee.Sign() <= 0 {
		return errors.New("entrance fee must be positive")
	}
	if c.Interval < 0 {
		return errors.New("interval cannot be negative")
	}
	if c.SubscriptionID == nil || c.SubscriptionID.Sign() < 0 {
		return errors.New("subscription id must be set")
	}
	if c.CallbackGasLimit == 0 {
		return errors.New("callback gas limit must be positive")
	}
	if c.NumWords != DefaultNumWords {
		return fmt.Errorf("num words must be %d, got %d", DefaultNumWords, c.NumWords)
	}
	return nil
}

// RandomnessParams returns the oracle call parameters for this raffle
func (c RaffleConfig) RandomnessParams() RandomnessParams {
	return RandomnessParams{
		KeyHash:              c.KeyHash,
		SubscriptionID:       new(big.Int).Set(c.SubscriptionID),
		RequestConfirmations: c.RequestConfirmations,
		CallbackGasLimit:     c.CallbackGasLimit,
		NumWords:             c.NumWords,
		NativePayment:        c.NativePayment,
	}
}
