package vrf

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Coordinator accepts randomness requests on behalf of a consumer and
// later delivers the words to that consumer's RawFulfillRandomWords
type Coordinator interface {
	RequestRandomWords(ctx context.Context, consumer common.Address, req RandomWordsRequest) (*big.Int, error)
}

// Canceler is implemented by coordinators that can withdraw a pending request
type Canceler interface {
	CancelRequest(ctx context.Context, consumer common.Address, requestID *big.Int) error
}

// FulfillmentReceiver is the consumer side of the handshake
type FulfillmentReceiver interface {
	Address() common.Address
	RawFulfillRandomWords(ctx context.Context, caller common.Address, requestID *big.Int, randomWords []*big.Int) error
}

// OnlyCoordinatorCanFulfillError is returned when anyone but the configured coordinator delivers words
type OnlyCoordinatorCanFulfillError struct {
	Have common.Address
	Want common.Address
}

func (e *OnlyCoordinatorCanFulfillError) Error() string {
	return fmt.Sprintf("only coordinator can fulfill: have %s, want %s", e.Have.Hex(), e.Want.Hex())
}
