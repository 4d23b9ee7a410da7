package vrf

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrInvalidSubscription is returned for an unknown subscription id
	ErrInvalidSubscription = errors.New("invalid subscription")

	// ErrInvalidConsumer is returned when the consumer is not registered on the subscription
	ErrInvalidConsumer = errors.New("invalid consumer")

	// ErrInvalidRequest is returned when fulfilling an unknown or already fulfilled request
	ErrInvalidRequest = errors.New("nonexistent request")

	// ErrInvalidRandomWords is returned when override words do not match the requested count
	ErrInvalidRandomWords = errors.New("invalid random words")

	// ErrInsufficientBalance is returned when the subscription cannot pay for a fulfillment
	ErrInsufficientBalance = errors.New("insufficient balance")
)

var (
	// DefaultMockBaseFee is 0.001 in the payment token's smallest unit
	DefaultMockBaseFee = big.NewInt(1_000_000_000_000_000)

	// DefaultMockGasPrice is 50 gwei
	DefaultMockGasPrice = big.NewInt(50_000_000_000)
)

// Subscription is the funding account requests are charged to
type Subscription struct {
	ID        *big.Int
	Owner     common.Address
	Balance   *big.Int
	ReqCount  uint64
	Consumers []common.Address
}

// RandomWordsFulfilled records the outcome of one delivery
type RandomWordsFulfilled struct {
	RequestID     *big.Int
	SubID         *big.Int
	Payment       *big.Int
	NativePayment bool
	Success       bool
	Err           error // consumer error when Success is false
}

type mockRequest struct {
	subID            *big.Int
	consumer         common.Address
	callbackGasLimit uint32
	numWords         uint32
	extraArgs        []byte
}

// MockCoordinator is a local coordinator for development and tests.
// Requests are fulfilled only when FulfillRandomWords is called.
type MockCoordinator struct {
	address  common.Address
	baseFee  *big.Int
	gasPrice *big.Int

	mu            sync.Mutex
	nextSubID     int64
	nextRequestID *big.Int
	subscriptions map[string]*Subscription
	requests      map[string]*mockRequest
	fulfillments  []RandomWordsFulfilled
}

// NewMockCoordinator creates a mock coordinator living at address
func NewMockCoordinator(address common.Address, baseFee, gasPrice *big.Int) *MockCoordinator {
	if baseFee == nil {
		baseFee = DefaultMockBaseFee
	}
	if gasPrice == nil {
		gasPrice = DefaultMockGasPrice
	}
	return &MockCoordinator{
		address:       address,
		baseFee:       new(big.Int).Set(baseFee),
		gasPrice:      new(big.Int).Set(gasPrice),
		nextSubID:     1,
		nextRequestID: big.NewInt(1),
		subscriptions: make(map[string]*Subscription),
		requests:      make(map[string]*mockRequest),
	}
}

// Address returns the coordinator identity consumers check fulfillments against
func (m *MockCoordinator) Address() common.Address {
	return m.address
}

// CreateSubscription opens an empty subscription owned by owner
func (m *MockCoordinator) CreateSubscription(owner common.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()

	subID := big.NewInt(m.nextSubID)
	m.nextSubID++
	m.subscriptions[subID.String()] = &Subscription{
		ID:      subID,
		Owner:   owner,
		Balance: new(big.Int),
	}

	log.WithField("subId", subID.String()).Debug("Created mock subscription")
	return new(big.Int).Set(subID)
}

// FundSubscription adds amount to the subscription balance
func (m *MockCoordinator) FundSubscription(subID, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, err := m.subscription(subID)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid fund amount %v", amount)
	}
	sub.Balance = new(big.Int).Add(sub.Balance, amount)
	return nil
}

// AddConsumer registers a consumer on a subscription. Adding twice is a no-op.
func (m *MockCoordinator) AddConsumer(subID *big.Int, consumer common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, err := m.subscription(subID)
	if err != nil {
		return err
	}
	for _, c := range sub.Consumers {
		if c == consumer {
			return nil
		}
	}
	sub.Consumers = append(sub.Consumers, consumer)
	return nil
}

// RemoveConsumer unregisters a consumer
func (m *MockCoordinator) RemoveConsumer(subID *big.Int, consumer common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, err := m.subscription(subID)
	if err != nil {
		return err
	}
	for i, c := range sub.Consumers {
		if c == consumer {
			sub.Consumers = append(sub.Consumers[:i], sub.Consumers[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidConsumer, consumer.Hex())
}

// GetSubscription returns a copy of the subscription
func (m *MockCoordinator) GetSubscription(subID *big.Int) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, err := m.subscription(subID)
	if err != nil {
		return nil, err
	}
	consumers := make([]common.Address, len(sub.Consumers))
	copy(consumers, sub.Consumers)
	return &Subscription{
		ID:        new(big.Int).Set(sub.ID),
		Owner:     sub.Owner,
		Balance:   new(big.Int).Set(sub.Balance),
		ReqCount:  sub.ReqCount,
		Consumers: consumers,
	}, nil
}

// ResumeAfter makes the next request id follow lastID. Ids already ahead of lastID are kept.
func (m *MockCoordinator) ResumeAfter(lastID *big.Int) {
	if lastID == nil || lastID.Sign() < 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next := new(big.Int).Add(lastID, big.NewInt(1))
	if next.Cmp(m.nextRequestID) > 0 {
		m.nextRequestID = next
	}
}

// RequestRandomWords stores a pending request and returns its sequential id
func (m *MockCoordinator) RequestRandomWords(ctx context.Context, consumer common.Address, req RandomWordsRequest) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, err := m.subscription(req.SubID)
	if err != nil {
		return nil, err
	}
	if !sub.hasConsumer(consumer) {
		return nil, fmt.Errorf("%w: %s on subscription %s", ErrInvalidConsumer, consumer.Hex(), sub.ID)
	}
	if _, err := NativePayment(req.ExtraArgs); err != nil {
		return nil, err
	}

	requestID := new(big.Int).Set(m.nextRequestID)
	m.nextRequestID.Add(m.nextRequestID, big.NewInt(1))
	sub.ReqCount++

	m.requests[requestID.String()] = &mockRequest{
		subID:            new(big.Int).Set(sub.ID),
		consumer:         consumer,
		callbackGasLimit: req.CallbackGasLimit,
		numWords:         req.NumWords,
		extraArgs:        append([]byte(nil), req.ExtraArgs...),
	}

	log.WithFields(log.Fields{
		"requestId": requestID.String(),
		"subId":     sub.ID.String(),
		"consumer":  consumer.Hex(),
	}).Debug("Mock coordinator accepted randomness request")

	return new(big.Int).Set(requestID), nil
}

// FulfillRandomWords delivers words derived from the request id
func (m *MockCoordinator) FulfillRandomWords(ctx context.Context, requestID *big.Int, consumer FulfillmentReceiver) (*RandomWordsFulfilled, error) {
	return m.FulfillRandomWordsWithOverride(ctx, requestID, consumer, nil)
}

// FulfillRandomWordsWithOverride delivers the given words, or derived words when none are given.
// The request is removed before the callback and a consumer error does not fail the delivery.
func (m *MockCoordinator) FulfillRandomWordsWithOverride(ctx context.Context, requestID *big.Int, consumer FulfillmentReceiver, words []*big.Int) (*RandomWordsFulfilled, error) {
	if requestID == nil {
		return nil, ErrInvalidRequest
	}

	m.mu.Lock()
	req, ok := m.requests[requestID.String()]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, requestID)
	}

	if len(words) == 0 {
		words = make([]*big.Int, req.numWords)
		for i := range words {
			words[i] = DeriveRandomWord(requestID, i)
		}
	} else if len(words) != int(req.numWords) {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidRandomWords, len(words), req.numWords)
	}

	sub := m.subscriptions[req.subID.String()]
	payment := m.payment(req)
	if sub == nil || sub.Balance.Cmp(payment) < 0 {
		m.mu.Unlock()
		return nil, ErrInsufficientBalance
	}

	native, _ := NativePayment(req.extraArgs)
	delete(m.requests, requestID.String())
	sub.Balance = new(big.Int).Sub(sub.Balance, payment)
	m.mu.Unlock()

	// The callback runs without the coordinator lock so the consumer may
	// issue new requests from inside it.
	callbackErr := consumer.RawFulfillRandomWords(ctx, m.address, requestID, words)

	result := RandomWordsFulfilled{
		RequestID:     new(big.Int).Set(requestID),
		SubID:         new(big.Int).Set(req.subID),
		Payment:       payment,
		NativePayment: native,
		Success:       callbackErr == nil,
		Err:           callbackErr,
	}

	m.mu.Lock()
	m.fulfillments = append(m.fulfillments, result)
	m.mu.Unlock()

	fields := log.Fields{
		"requestId": requestID.String(),
		"consumer":  consumer.Address().Hex(),
		"payment":   payment.String(),
		"success":   result.Success,
	}
	if callbackErr != nil {
		log.WithFields(fields).WithError(callbackErr).Warn("Consumer rejected mock fulfillment")
	} else {
		log.WithFields(fields).Debug("Mock coordinator fulfilled request")
	}

	return &result, nil
}

// CancelRequest withdraws a pending request of consumer without charging the subscription
func (m *MockCoordinator) CancelRequest(ctx context.Context, consumer common.Address, requestID *big.Int) error {
	if requestID == nil {
		return ErrInvalidRequest
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[requestID.String()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, requestID)
	}
	if req.consumer != consumer {
		return fmt.Errorf("%w: %s does not own request %s", ErrInvalidConsumer, consumer.Hex(), requestID)
	}
	delete(m.requests, requestID.String())

	log.WithFields(log.Fields{
		"requestId": requestID.String(),
		"consumer":  consumer.Hex(),
	}).Debug("Mock coordinator cancelled request")
	return nil
}

// Pending returns true while the request awaits fulfillment
func (m *MockCoordinator) Pending(requestID *big.Int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.requests[requestID.String()]
	return ok
}

// Fulfillments returns every delivery made so far
func (m *MockCoordinator) Fulfillments() []RandomWordsFulfilled {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RandomWordsFulfilled, len(m.fulfillments))
	copy(out, m.fulfillments)
	return out
}

// payment charges the base fee plus the callback gas at the configured price
func (m *MockCoordinator) payment(req *mockRequest) *big.Int {
	gas := new(big.Int).Mul(m.gasPrice, new(big.Int).SetUint64(uint64(req.callbackGasLimit)))
	return gas.Add(gas, m.baseFee)
}

func (m *MockCoordinator) subscription(subID *big.Int) (*Subscription, error) {
	if subID == nil {
		return nil, ErrInvalidSubscription
	}
	sub, ok := m.subscriptions[subID.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSubscription, subID)
	}
	return sub, nil
}

func (s *Subscription) hasConsumer(consumer common.Address) bool {
	for _, c := range s.Consumers {
		if c == consumer {
			return true
		}
	}
	return false
}
