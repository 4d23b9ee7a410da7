package vrf

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingReceiver captures deliveries and can fail them
type recordingReceiver struct {
	address common.Address
	err     error
	during  func()
	ids     []*big.Int
	words   [][]*big.Int
}

func (r *recordingReceiver) Address() common.Address { return r.address }

func (r *recordingReceiver) RawFulfillRandomWords(ctx context.Context, caller common.Address, requestID *big.Int, words []*big.Int) error {
	if r.during != nil {
		r.during()
	}
	r.ids = append(r.ids, requestID)
	r.words = append(r.words, words)
	return r.err
}

func fundedMock(t *testing.T, fund *big.Int) (*MockCoordinator, *big.Int) {
	t.Helper()
	mock := NewMockCoordinator(coordinatorAddr, nil, nil)
	subID := mock.CreateSubscription(common.HexToAddress("0xde"))
	require.NoError(t, mock.FundSubscription(subID, fund))
	require.NoError(t, mock.AddConsumer(subID, consumerAddr))
	return mock, subID
}

func oneWordRequest(subID *big.Int) RandomWordsRequest {
	return RandomWordsRequest{
		SubID:            subID,
		CallbackGasLimit: 100000,
		NumWords:         1,
		ExtraArgs:        ExtraArgsV1(false),
	}
}

func TestMockCoordinator_Subscriptions(t *testing.T) {
	t.Parallel()
	mock, subID := fundedMock(t, big.NewInt(100))

	assert.Equal(t, int64(1), subID.Int64())
	require.NoError(t, mock.AddConsumer(subID, consumerAddr), "adding twice is a no-op")

	sub, err := mock.GetSubscription(subID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), sub.Balance.Int64())
	assert.Equal(t, []common.Address{consumerAddr}, sub.Consumers)

	require.NoError(t, mock.RemoveConsumer(subID, consumerAddr))
	assert.ErrorIs(t, mock.RemoveConsumer(subID, consumerAddr), ErrInvalidConsumer)

	_, err = mock.GetSubscription(big.NewInt(42))
	assert.ErrorIs(t, err, ErrInvalidSubscription)
	assert.ErrorIs(t, mock.FundSubscription(big.NewInt(42), big.NewInt(1)), ErrInvalidSubscription)
}

func TestMockCoordinator_RequestRandomWords(t *testing.T) {
	t.Parallel()
	fund := new(big.Int).Mul(big.NewInt(30), big.NewInt(1e18))

	tests := []struct {
		name     string
		consumer common.Address
		subID    *big.Int
		wantErr  error
	}{
		{name: "registered consumer", consumer: consumerAddr, subID: big.NewInt(1)},
		{name: "unknown subscription", consumer: consumerAddr, subID: big.NewInt(9), wantErr: ErrInvalidSubscription},
		{name: "unregistered consumer", consumer: strangerAddr, subID: big.NewInt(1), wantErr: ErrInvalidConsumer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mock, _ := fundedMock(t, fund)

			id, err := mock.RequestRandomWords(context.Background(), tt.consumer, oneWordRequest(tt.subID))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(1), id.Int64())
			assert.True(t, mock.Pending(id))

			second, err := mock.RequestRandomWords(context.Background(), tt.consumer, oneWordRequest(tt.subID))
			require.NoError(t, err)
			assert.Equal(t, int64(2), second.Int64())

			sub, err := mock.GetSubscription(tt.subID)
			require.NoError(t, err)
			assert.Equal(t, 0, sub.Balance.Cmp(fund), "requests are charged at fulfillment")
			assert.Equal(t, uint64(2), sub.ReqCount)
		})
	}
}

func TestMockCoordinator_FulfillRandomWords(t *testing.T) {
	t.Parallel()
	fund := new(big.Int).Mul(big.NewInt(30), big.NewInt(1e18))

	t.Run("delivers derived words and charges the subscription", func(t *testing.T) {
		t.Parallel()
		mock, subID := fundedMock(t, fund)
		id, err := mock.RequestRandomWords(context.Background(), consumerAddr, oneWordRequest(subID))
		require.NoError(t, err)

		receiver := &recordingReceiver{address: consumerAddr}
		receiver.during = func() {
			assert.False(t, mock.Pending(id), "request must be removed before the callback")
		}

		result, err := mock.FulfillRandomWords(context.Background(), id, receiver)
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.False(t, result.NativePayment)

		require.Len(t, receiver.words, 1)
		require.Len(t, receiver.words[0], 1)
		assert.Equal(t, 0, receiver.words[0][0].Cmp(DeriveRandomWord(id, 0)))

		// 0.001 base fee + 100000 gas * 50 gwei
		assert.Equal(t, "6000000000000000", result.Payment.String())
		sub, err := mock.GetSubscription(subID)
		require.NoError(t, err)
		assert.Equal(t, new(big.Int).Sub(fund, result.Payment).String(), sub.Balance.String())
	})

	t.Run("override words", func(t *testing.T) {
		t.Parallel()
		mock, subID := fundedMock(t, fund)
		id, err := mock.RequestRandomWords(context.Background(), consumerAddr, oneWordRequest(subID))
		require.NoError(t, err)
		receiver := &recordingReceiver{address: consumerAddr}

		_, err = mock.FulfillRandomWordsWithOverride(context.Background(), id, receiver, []*big.Int{big.NewInt(1), big.NewInt(2)})
		assert.ErrorIs(t, err, ErrInvalidRandomWords)
		assert.True(t, mock.Pending(id))

		_, err = mock.FulfillRandomWordsWithOverride(context.Background(), id, receiver, []*big.Int{big.NewInt(13)})
		require.NoError(t, err)
		assert.Equal(t, int64(13), receiver.words[0][0].Int64())
	})

	t.Run("consumer failure does not fail delivery", func(t *testing.T) {
		t.Parallel()
		mock, subID := fundedMock(t, fund)
		id, err := mock.RequestRandomWords(context.Background(), consumerAddr, oneWordRequest(subID))
		require.NoError(t, err)

		result, err := mock.FulfillRandomWords(context.Background(), id, &recordingReceiver{address: consumerAddr, err: errors.New("revert")})
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Error(t, result.Err)
		assert.False(t, mock.Pending(id))
		assert.Len(t, mock.Fulfillments(), 1)
	})

	t.Run("unknown or repeated request", func(t *testing.T) {
		t.Parallel()
		mock, subID := fundedMock(t, fund)
		receiver := &recordingReceiver{address: consumerAddr}

		_, err := mock.FulfillRandomWords(context.Background(), big.NewInt(1), receiver)
		assert.ErrorIs(t, err, ErrInvalidRequest)

		id, err := mock.RequestRandomWords(context.Background(), consumerAddr, oneWordRequest(subID))
		require.NoError(t, err)
		_, err = mock.FulfillRandomWords(context.Background(), id, receiver)
		require.NoError(t, err)
		_, err = mock.FulfillRandomWords(context.Background(), id, receiver)
		assert.ErrorIs(t, err, ErrInvalidRequest)
		assert.Len(t, receiver.ids, 1)
	})

	t.Run("insufficient balance", func(t *testing.T) {
		t.Parallel()
		mock, subID := fundedMock(t, big.NewInt(1))
		id, err := mock.RequestRandomWords(context.Background(), consumerAddr, oneWordRequest(subID))
		require.NoError(t, err)
		receiver := &recordingReceiver{address: consumerAddr}

		_, err = mock.FulfillRandomWords(context.Background(), id, receiver)
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.True(t, mock.Pending(id))
		assert.Empty(t, receiver.ids)
	})
}

func TestMockCoordinator_ResumeAfter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		lastID *big.Int
		want   int64
	}{
		{name: "continues after stored id", lastID: big.NewInt(7), want: 8},
		{name: "never moves backwards", lastID: big.NewInt(0), want: 1},
		{name: "nil keeps sequence", lastID: nil, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mock, subID := fundedMock(t, big.NewInt(100))

			mock.ResumeAfter(tt.lastID)
			id, err := mock.RequestRandomWords(context.Background(), consumerAddr, oneWordRequest(subID))
			require.NoError(t, err)
			assert.Equal(t, tt.want, id.Int64())
		})
	}
}

func TestMockCoordinator_CancelRequest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fund := big.NewInt(1_000_000_000_000_000_000)
	mock, subID := fundedMock(t, fund)

	id, err := mock.RequestRandomWords(ctx, consumerAddr, oneWordRequest(subID))
	require.NoError(t, err)

	err = mock.CancelRequest(ctx, strangerAddr, id)
	assert.ErrorIs(t, err, ErrInvalidConsumer)
	assert.True(t, mock.Pending(id))

	require.NoError(t, mock.CancelRequest(ctx, consumerAddr, id))
	assert.False(t, mock.Pending(id))

	err = mock.CancelRequest(ctx, consumerAddr, id)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = mock.FulfillRandomWords(ctx, id, &recordingReceiver{address: consumerAddr})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	sub, err := mock.GetSubscription(subID)
	require.NoError(t, err)
	assert.Equal(t, 0, fund.Cmp(sub.Balance), "cancelled requests are not charged")
}
