package testhelpers

import (
	"context"
	"math/big"

	"raffle/domain/entities"
	"raffle/domain/events"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"
)

// MockRaffleRepository is a mock implementation of RaffleRepository
type MockRaffleRepository struct {
	mock.Mock
}

func (m *MockRaffleRepository) Get(ctx context.Context) (*entities.Raffle, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Raffle), args.Error(1)
}

func (m *MockRaffleRepository) GetForUpdate(ctx context.Context) (*entities.Raffle, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Raffle), args.Error(1)
}

func (m *MockRaffleRepository) Create(ctx context.Context, raffle *entities.Raffle) error {
	args := m.Called(ctx, raffle)
	return args.Error(0)
}

func (m *MockRaffleRepository) Update(ctx context.Context, raffle *entities.Raffle) error {
	args := m.Called(ctx, raffle)
	return args.Error(0)
}

// MockEntrantRepository is a mock implementation of EntrantRepository
type MockEntrantRepository struct {
	mock.Mock
}

func (m *MockEntrantRepository) Append(ctx context.Context, entrant *entities.Entrant) error {
	args := m.Called(ctx, entrant)
	return args.Error(0)
}

func (m *MockEntrantRepository) GetByPosition(ctx context.Context, roundNumber, position int64) (*entities.Entrant, error) {
	args := m.Called(ctx, roundNumber, position)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Entrant), args.Error(1)
}

func (m *MockEntrantRepository) ListByRound(ctx context.Context, roundNumber int64) ([]*entities.Entrant, error) {
	args := m.Called(ctx, roundNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Entrant), args.Error(1)
}

func (m *MockEntrantRepository) CountByRound(ctx context.Context, roundNumber int64) (int64, error) {
	args := m.Called(ctx, roundNumber)
	return args.Get(0).(int64), args.Error(1)
}

// MockRandomnessRequestRepository is a mock implementation of RandomnessRequestRepository
type MockRandomnessRequestRepository struct {
	mock.Mock
}

func (m *MockRandomnessRequestRepository) Create(ctx context.Context, request *entities.RandomnessRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockRandomnessRequestRepository) GetByID(ctx context.Context, requestID *big.Int) (*entities.RandomnessRequest, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.RandomnessRequest), args.Error(1)
}

func (m *MockRandomnessRequestRepository) Update(ctx context.Context, request *entities.RandomnessRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockRandomnessRequestRepository) ListPending(ctx context.Context) ([]*entities.RandomnessRequest, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.RandomnessRequest), args.Error(1)
}

func (m *MockRandomnessRequestRepository) GetMaxRequestID(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

// MockDrawRepository is a mock implementation of DrawRepository
type MockDrawRepository struct {
	mock.Mock
}

func (m *MockDrawRepository) Create(ctx context.Context, draw *entities.DrawResult) error {
	args := m.Called(ctx, draw)
	return args.Error(0)
}

func (m *MockDrawRepository) GetRecent(ctx context.Context, limit int) ([]*entities.DrawResult, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.DrawResult), args.Error(1)
}

func (m *MockDrawRepository) GetByRound(ctx context.Context, roundNumber int64) (*entities.DrawResult, error) {
	args := m.Called(ctx, roundNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.DrawResult), args.Error(1)
}

// MockAccountRepository is a mock implementation of AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Get(ctx context.Context, address common.Address) (*entities.Account, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Account), args.Error(1)
}

func (m *MockAccountRepository) GetForUpdate(ctx context.Context, address common.Address) (*entities.Account, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Account), args.Error(1)
}

func (m *MockAccountRepository) Create(ctx context.Context, account *entities.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) UpdateBalance(ctx context.Context, address common.Address, balance *big.Int) error {
	args := m.Called(ctx, address, balance)
	return args.Error(0)
}

func (m *MockAccountRepository) SetPayoutsBlocked(ctx context.Context, address common.Address, blocked bool) error {
	args := m.Called(ctx, address, blocked)
	return args.Error(0)
}

// MockBalanceHistoryRepository is a mock implementation of BalanceHistoryRepository
type MockBalanceHistoryRepository struct {
	mock.Mock
}

func (m *MockBalanceHistoryRepository) Record(ctx context.Context, history *entities.BalanceHistory) error {
	args := m.Called(ctx, history)
	return args.Error(0)
}

func (m *MockBalanceHistoryRepository) GetByAddress(ctx context.Context, address common.Address, limit int) ([]*entities.BalanceHistory, error) {
	args := m.Called(ctx, address, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.BalanceHistory), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) error {
	args := m.Called(event)
	return args.Error(0)
}
