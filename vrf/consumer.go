package vrf

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"raffle/domain/entities"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

// ErrCancelUnsupported is returned when the coordinator has no way to withdraw a request
var ErrCancelUnsupported = errors.New("coordinator does not support cancelling requests")

// FulfillmentHandler receives verified randomness for a request
type FulfillmentHandler func(ctx context.Context, requestID *big.Int, randomWords []*big.Int) error

// Consumer adapts a raffle engine to a coordinator. It only translates
// parameters and checks the caller of fulfillments.
type Consumer struct {
	address            common.Address
	coordinatorAddress common.Address
	coordinator        Coordinator

	mu      sync.RWMutex
	handler FulfillmentHandler
}

// NewConsumer creates a consumer registered at address with the given coordinator
func NewConsumer(address, coordinatorAddress common.Address, coordinator Coordinator) *Consumer {
	return &Consumer{
		address:            address,
		coordinatorAddress: coordinatorAddress,
		coordinator:        coordinator,
	}
}

// SetFulfillmentHandler wires the engine entry point. It is set after
// construction because the engine itself needs the consumer as its requester.
func (c *Consumer) SetFulfillmentHandler(handler FulfillmentHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Address returns the consumer identity known to the coordinator
func (c *Consumer) Address() common.Address {
	return c.address
}

// CoordinatorAddress returns the only address allowed to fulfill
func (c *Consumer) CoordinatorAddress() common.Address {
	return c.coordinatorAddress
}

// RequestRandomness submits a request with the engine's configured parameters
func (c *Consumer) RequestRandomness(ctx context.Context, params entities.RandomnessParams) (*big.Int, error) {
	req := NewRandomWordsRequest(params)

	requestID, err := c.coordinator.RequestRandomWords(ctx, c.address, req)
	if err != nil {
		return nil, fmt.Errorf("failed to request random words: %w", err)
	}
	if requestID == nil {
		return nil, errors.New("coordinator returned no request id")
	}

	log.WithFields(log.Fields{
		"requestId": requestID.String(),
		"keyHash":   req.KeyHash.Hex(),
		"subId":     req.SubID.String(),
		"numWords":  req.NumWords,
	}).Debug("Requested random words")

	return requestID, nil
}

// CancelRandomness withdraws a request the engine no longer tracks
func (c *Consumer) CancelRandomness(ctx context.Context, requestID *big.Int) error {
	canceler, ok := c.coordinator.(Canceler)
	if !ok {
		return ErrCancelUnsupported
	}
	if err := canceler.CancelRequest(ctx, c.address, requestID); err != nil {
		return fmt.Errorf("failed to cancel request %s: %w", requestID, err)
	}
	return nil
}

// RawFulfillRandomWords is the coordinator callback
func (c *Consumer) RawFulfillRandomWords(ctx context.Context, caller common.Address, requestID *big.Int, randomWords []*big.Int) error {
	if caller != c.coordinatorAddress {
		return &OnlyCoordinatorCanFulfillError{Have: caller, Want: c.coordinatorAddress}
	}

	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()

	if handler == nil {
		return errors.New("no fulfillment handler registered")
	}
	return handler(ctx, requestID, randomWords)
}
