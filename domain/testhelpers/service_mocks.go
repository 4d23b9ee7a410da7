package testhelpers

import (
	"context"
	"math/big"

	"raffle/domain/entities"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"
)

// MockRandomnessRequester is a mock implementation of RandomnessRequester
type MockRandomnessRequester struct {
	mock.Mock
}

func (m *MockRandomnessRequester) RequestRandomness(ctx context.Context, params entities.RandomnessParams) (*big.Int, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *MockRandomnessRequester) CancelRandomness(ctx context.Context, requestID *big.Int) error {
	args := m.Called(ctx, requestID)
	return args.Error(0)
}

// MockPayoutService is a mock implementation of PayoutService
type MockPayoutService struct {
	mock.Mock
}

func (m *MockPayoutService) Transfer(ctx context.Context, to common.Address, amount *big.Int, metadata map[string]any) error {
	args := m.Called(ctx, to, amount, metadata)
	return args.Error(0)
}

func (m *MockPayoutService) GetBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}
