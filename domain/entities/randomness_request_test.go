package entities

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomnessRequestStatus_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status RandomnessRequestStatus
		want   bool
	}{
		{status: RandomnessRequestPending, want: true},
		{status: RandomnessRequestFulfilled, want: true},
		{status: "rejected", want: false},
		{status: "", want: false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.status.IsValid())
		})
	}
}

func TestRandomnessRequest_Lifecycle(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	params := RandomnessParams{
		KeyHash:              common.HexToHash("0x01"),
		SubscriptionID:       big.NewInt(1),
		RequestConfirmations: DefaultRequestConfirmations,
		CallbackGasLimit:     DefaultCallbackGasLimit,
		NumWords:             DefaultNumWords,
	}

	request := NewRandomnessRequest(1, 2, big.NewInt(5), params, now)
	assert.True(t, request.IsPending())
	assert.True(t, request.Status.IsValid())
	assert.Nil(t, request.FulfilledAt)

	request.MarkFulfilled([]*big.Int{big.NewInt(42)}, now.Add(time.Minute))
	assert.False(t, request.IsPending())
	assert.Equal(t, RandomnessRequestFulfilled, request.Status)
	require.NotNil(t, request.FulfilledAt)
	require.Len(t, request.RandomWords, 1)
	assert.Equal(t, int64(42), request.RandomWords[0].Int64())
}
