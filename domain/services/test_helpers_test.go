package services

import (
	"math/big"
	"testing"
	"time"

	"raffle/domain/entities"
	"raffle/domain/interfaces"
	"raffle/domain/testhelpers"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"
)

const testRaffleID = int64(1)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// TestMocks aggregates all mocks a raffle service needs
type TestMocks struct {
	RaffleRepo     *testhelpers.MockRaffleRepository
	EntrantRepo    *testhelpers.MockEntrantRepository
	RequestRepo    *testhelpers.MockRandomnessRequestRepository
	DrawRepo       *testhelpers.MockDrawRepository
	Payout         *testhelpers.MockPayoutService
	Requester      *testhelpers.MockRandomnessRequester
	EventPublisher *testhelpers.MockEventPublisher
}

// NewTestMocks creates a new set of mocks
func NewTestMocks() *TestMocks {
	return &TestMocks{
		RaffleRepo:     &testhelpers.MockRaffleRepository{},
		EntrantRepo:    &testhelpers.MockEntrantRepository{},
		RequestRepo:    &testhelpers.MockRandomnessRequestRepository{},
		DrawRepo:       &testhelpers.MockDrawRepository{},
		Payout:         &testhelpers.MockPayoutService{},
		Requester:      &testhelpers.MockRandomnessRequester{},
		EventPublisher: &testhelpers.MockEventPublisher{},
	}
}

// AssertAllExpectations verifies all mock expectations were met
func (m *TestMocks) AssertAllExpectations(t *testing.T) {
	m.RaffleRepo.AssertExpectations(t)
	m.EntrantRepo.AssertExpectations(t)
	m.RequestRepo.AssertExpectations(t)
	m.DrawRepo.AssertExpectations(t)
	m.Payout.AssertExpectations(t)
	m.Requester.AssertExpectations(t)
	m.EventPublisher.AssertExpectations(t)
}

func (m *TestMocks) service(now time.Time) interfaces.RaffleService {
	return NewRaffleService(
		testRaffleID,
		testRaffleConfig(),
		m.RaffleRepo,
		m.EntrantRepo,
		m.RequestRepo,
		m.DrawRepo,
		m.Payout,
		m.Requester,
		m.EventPublisher,
		func() time.Time { return now },
	)
}

func testRaffleConfig() entities.RaffleConfig {
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

// createTestRaffle builds an open raffle started at testNow with the given number of paid entrants
func createTestRaffle(players int64, opts ...func(*entities.Raffle)) *entities.Raffle {
	r := entities.NewRaffle(testRaffleID, testRaffleConfig(), testNow)
	for i := int64(0); i < players; i++ {
		r.RecordEntry(entities.DefaultEntranceFee)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func calculating(requestID int64) func(*entities.Raffle) {
	return func(r *entities.Raffle) {
		r.State = entities.RaffleStateCalculating
		r.ActiveRequestID = big.NewInt(requestID)
	}
}

func testAddress(n int) common.Address {
	return common.BigToAddress(big.NewInt(int64(0xa0 + n)))
}

func bigEq(want *big.Int) interface{} {
	return mock.MatchedBy(func(got *big.Int) bool { return got != nil && got.Cmp(want) == 0 })
}
