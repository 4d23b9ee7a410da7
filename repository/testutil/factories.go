package testutil

import (
	"math/big"
	"time"

	"raffle/domain/entities"

	"github.com/ethereum/go-ethereum/common"
)

// TestRaffleConfig returns the local-network raffle settings
func TestRaffleConfig() entities.RaffleConfig {
	return entities.RaffleConfig{
		EntranceFee:          new(big.Int).Set(entities.DefaultEntranceFee),
		Interval:             entities.DefaultInterval,
		KeyHash:              common.HexToHash("0x787d74caea10b2b357790d5b5247c2f63d1d91572a9846f780606e4d953677ae"),
		SubscriptionID:       big.NewInt(1),
		CallbackGasLimit:     entities.DefaultCallbackGasLimit,
		RequestConfirmations: entities.DefaultRequestConfirmations,
		NumWords:             entities.DefaultNumWords,
	}
}

// CreateTestRaffle creates an open raffle with default settings
func CreateTestRaffle(raffleID int64) *entities.Raffle {
	return entities.NewRaffle(raffleID, TestRaffleConfig(), time.Now().UTC().Truncate(time.Microsecond))
}

// CreateTestEntrant creates an entrant paying the default entrance fee
func CreateTestEntrant(roundNumber, position int64, player common.Address) *entities.Entrant {
	return &entities.Entrant{
		RoundNumber: roundNumber,
		Position:    position,
		Player:      player,
		Value:       new(big.Int).Set(entities.DefaultEntranceFee),
		CreatedAt:   time.Now().UTC(),
	}
}

// TestAddress returns a deterministic address for the given seed
func TestAddress(seed int64) common.Address {
	return common.BigToAddress(big.NewInt(0x1000 + seed))
}
