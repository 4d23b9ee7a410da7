package services

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"raffle/domain/entities"
	"raffle/domain/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRaffleService_Initialize(t *testing.T) {
	t.Parallel()

	t.Run("creates raffle when absent", func(t *testing.T) {
		t.Parallel()

		mocks := NewTestMocks()
		mocks.RaffleRepo.On("GetForUpdate", mock.Anything).Return(nil, nil)
		mocks.RaffleRepo.On("Create", mock.Anything, mock.MatchedBy(func(r *entities.Raffle) bool {
			return r.ID == testRaffleID && r.IsOpen() && r.RoundNumber == 1 && r.LastTimestamp.Equal(testNow)
		})).Return(nil)

		raffle, err := mocks.service(testNow).Initialize(context.Background())
		require.NoError(t, err)
		assert.Equal(t, entities.RaffleStateOpen, raffle.State)
		mocks.AssertAllExpectations(t)
	})

	t.Run("returns existing raffle with matching settings", func(t *testing.T) {
		t.Parallel()

		mocks := NewTestMocks()
		existing := createTestRaffle(2)
		mocks.RaffleRepo.On("GetForUpdate", mock.Anything).Return(existing, nil)

		raffle, err := mocks.service(testNow).Initialize(context.Background())
		require.NoError(t, err)
		assert.Same(t, existing, raffle)
		mocks.RaffleRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("rejects changed entrance fee", func(t *testing.T) {
		t.Parallel()

		mocks := NewTestMocks()
		existing := createTestRaffle(0, func(r *entities.Raffle) { r.EntranceFee = big.NewInt(1) })
		mocks.RaffleRepo.On("GetForUpdate", mock.Anything).Return(existing, nil)

		_, err := mocks.service(testNow).Initialize(context.Background())
		assert.ErrorIs(t, err, entities.ErrConfigMismatch)
	})
}

func TestRaffleService_Enter(t *testing.T) {
	t.Parallel()

	player := testAddress(1)

	tests := []struct {
		name        string
		raffle      *entities.Raffle
		value       *big.Int
		wantErrType any
	}{
		{
			name:   "accepts exact fee",
			raffle: createTestRaffle(0),
			value:  new(big.Int).Set(entities.DefaultEntranceFee),
		},
		{
			name:        "rejects insufficient value",
			raffle:      createTestRaffle(0),
			value:       big.NewInt(1),
			wantErrType: &entities.InsufficientValueError{},
		},
		{
			name:        "rejects entry while calculating",
			raffle:      createTestRaffle(1, calculating(1)),
			value:       new(big.Int).Set(entities.DefaultEntranceFee),
			wantErrType: &entities.RoundNotOpenError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mocks := NewTestMocks()
			mocks.RaffleRepo.On("GetForUpdate", mock.Anything).Return(tt.raffle, nil)

			if tt.wantErrType == nil {
				mocks.EntrantRepo.On("Append", mock.Anything, mock.MatchedBy(func(e *entities.Entrant) bool {
					return e.Position == 0 && e.Player == player && e.RoundNumber == 1
				})).Return(nil)
				mocks.RaffleRepo.On("Update", mock.Anything, mock.MatchedBy(func(r *entities.Raffle) bool {
					return r.PlayerCount == 1 && r.PoolBalance.Cmp(entities.DefaultEntranceFee) == 0
				})).Return(nil)
				mocks.EventPublisher.On("Publish", mock.MatchedBy(func(e events.RaffleEnterEvent) bool {
					return e.Player == player && e.Position == 0
				})).Return(nil)
			}

			entrant, err := mocks.service(testNow).Enter(context.Background(), player, tt.value)
			if tt.wantErrType != nil {
				require.Error(t, err)
				assert.IsType(t, tt.wantErrType, err)
				mocks.EntrantRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
				mocks.RaffleRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
				mocks.EventPublisher.AssertNotCalled(t, "Publish", mock.Anything)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, player, entrant.Player)
			mocks.AssertAllExpectations(t)
		})
	}
}

func TestRaffleService_Enter_RaffleMissing(t *testing.T) {
	t.Parallel()

	mocks := NewTestMocks()
	mocks.RaffleRepo.On("GetForUpdate", mock.Anything).Return(nil, nil)

	_, err := mocks.service(testNow).Enter(context.Background(), testAddress(1), entities.DefaultEntranceFee)
	assert.ErrorIs(t, err, entities.ErrRaffleNotFound)
}

func TestRaffleService_CheckUpkeep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		raffle *entities.Raffle
		now    time.Time
		want   bool
	}{
		{name: "no players", raffle: createTestRaffle(0), now: testNow.Add(time.Minute), want: false},
		{name: "too early", raffle: createTestRaffle(1), now: testNow.Add(10 * time.Second), want: false},
		{name: "calculating", raffle: createTestRaffle(1, calculating(1)), now: testNow.Add(time.Minute), want: false},
		{name: "ready", raffle: createTestRaffle(1), now: testNow.Add(31 * time.Second), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mocks := NewTestMocks()
			mocks.RaffleRepo.On("Get", mock.Anything).Return(tt.raffle, nil)

			check, err := mocks.service(tt.now).CheckUpkeep(context.Background(), []byte("ignored"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, check.UpkeepNeeded)
			assert.Empty(t, check.PerformData)
			mocks.RaffleRepo.AssertNotCalled(t, "GetForUpdate", mock.Anything)
		})
	}
}

func TestRaffleService_PerformUpkeep(t *testing.T) {
	t.Parallel()

	t.Run("locks round and requests randomness", func(t *testing.T) {
		t.Parallel()

		mocks := NewTestMocks()
		mocks.RaffleRepo.On("GetForUpdate", mock.Anything).Return(createTestRaffle(2), nil)
		mocks.Requester.On("RequestRandomness", mock.Anything, mock.MatchedBy(func(p entities.RandomnessParams) bool {
			return p.NumWords == 1 && p.RequestConfirmations == 3 && p.CallbackGasLimit == 100000 && p.SubscriptionID.Int64() == 1
		})).Return(big.NewInt(1), nil)
		mocks.RaffleRepo.On("Update", mock.Anything, mock.MatchedBy(func(r *entities.Raffle) bool {
			return r.IsCalculating() && r.ActiveRequestID.Int64() == 1
		})).Return(nil)
		mocks.RequestRepo.On("Create", mock.Anything, mock.MatchedBy(func(r *entities.RandomnessRequest) bool {
			return r.RequestID.Int64() == 1 && r.IsPending() && r.RoundNumber == 1
		})).Return(nil)
		mocks.EventPublisher.On("Publish", mock.MatchedBy(func(e events.RequestedRaffleWinnerEvent) bool {
			return e.RequestID.Int64() == 1 && e.NumPlayers == 2
		})).Return(nil)

		requestID, err := mocks.service(testNow.Add(time.Minute)).PerformUpkeep(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), requestID.Int64())
		mocks.AssertAllExpectations(t)
	})

	t.Run("fails when conditions not met", func(t *testing.T) {
		t.Parallel()

		mocks := NewTestMocks()
		mocks.RaffleRepo.On("GetForUpdate", mock.Anything).Return(createTestRaffle(0), nil)

		_, err := mocks.service(testNow.Add(time.Minute)).PerformUpkeep(context.Background(), nil)

		var notMet *entities.TriggerConditionsNotMetError
		require.ErrorAs(t, err, &notMet)
		assert.Equal(t, int64(0), notMet.NumPlayers)
		assert.Equal(t, 0, notMet.Balance.Sign())
		assert.Equal(t, entities.RaffleStateOpen, notMet.State)
		mocks.Requester.AssertNotCalled(t, "RequestRandomness", mock.Anything, mock.Anything)
		mocks.RaffleRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("fails while calculating", func(t *testing.T) {
		t.Parallel()

		mocks := NewTestMocks()
		mocks.RaffleRepo.On("GetForUpdate", mock.Anything).Return(createTestRaffle(1, calculating(1)), nil)

		_, err := mocks.service(testNow.Add(time.Minute)).PerformUpkeep(context.Background(), nil)

		var notMet *entities.TriggerConditionsNotMetError
		require.ErrorAs(t, err, &notMet)
		assert.Equal(t, entities.RaffleStateCalculating, notMet.State)
	})

	t.Run("propagates oracle failure", func(t *testing.T) {
		t.Parallel()

		mocks := NewTestMocks()
		mocks.RaffleRepo.On("GetForUpdate", mock.Anything).Return(createTestRaffle(1), nil)
		mocks.Requester.On("RequestRandomness", mock.Anything, mock.Anything).Return(nil, errors.New("consumer not registered"))

		_, err := mocks.service(testNow.Add(time.Minute)).PerformUpkeep(context.Background(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "consumer not registered")
		mocks.RaffleRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func TestRaffleService_FulfillRandomWords(t *testing.T) {
	t.Parallel()

	t.Run("pays second entrant when word mod four is one", func(t *testing.T) {
		t.Parallel()

		mocks := NewTestMocks()
		winner := testAddress(2)
		pool := new(big.Int).Mul(entities.DefaultEntranceFee, big.NewInt(4))
		done := testNow.Add(2 * time.Minute)

		mocks.RaffleRepo.On("GetForUpdate", mock.Anything).Return(createTestRaffle(4, calculating(1)), nil)
		mocks.EntrantRepo.On("GetByPosition", mock.Anything, int64(1), int64(1)).Return(&entities.Entrant{
			RoundNumber: 1, Position: 1, Player: winner, Value: entities.DefaultEntranceFee,
		}, nil)
		mocks.Payout.On("Transfer", mock.Anything, winner, bigEq(pool), mock.Anything).Return(nil)
		mocks.RaffleRepo.On("Update", mock.Anything, mock.MatchedBy(func(r *entities.Raffle) bool {
			return r.IsOpen() && r.ActiveRequestID == nil && r.PlayerCount == 0 &&
				r.PoolBalance.Sign() == 0 && r.RoundNumber == 2 && *r.RecentWinner == winner && r.LastTimestamp.Equal(done)
		})).Return(nil)
		pending := entities.NewRandomnessRequest(testRaffleID, 1, big.NewInt(1), testRaffleConfig().RandomnessParams(), testNow)
		mocks.RequestRepo.On("GetByID", mock.Anything, bigEq(big.NewInt(1))).Return(pending, nil)
		mocks.RequestRepo.On("Update", mock.Anything, mock.MatchedBy(func(r *entities.RandomnessRequest) bool {
			return r.Status == entities.RandomnessRequestFulfilled && len(r.RandomWords) == 1
		})).Return(nil)
		mocks.DrawRepo.On("Create", mock.Anything, mock.MatchedBy(func(d *entities.DrawResult) bool {
			return d.WinnerIndex == 1 && d.Winner == winner && d.RoundNumber == 1 && d.EntrantCount == 4
		})).Return(nil)
		mocks.EventPublisher.On("Publish", mock.MatchedBy(func(e events.WinnerPickedEvent) bool {
			return e.Winner == winner && e.Payout.Cmp(pool) == 0
		})).Return(nil)

		draw, err := mocks.service(done).FulfillRandomWords(context.Background(), big.NewInt(1), []*big.Int{big.NewInt(13)})
		require.NoError(t, err)
		assert.Equal(t, 0, draw.Payout.Cmp(pool))
		mocks.AssertAllExpectations(t)
	})

	t.Run("rejects unknown request id without state change", func(t *testing.T) {
		t.Parallel()

		mocks := NewTestMocks()
		mocks.RaffleRepo.On("GetForUpdate", mock.Anything).Return(createTestRaffle(1, calculating(1)), nil)

		_, err := mocks.service(testNow).FulfillRandomWords(context.Background(), big.NewInt(2), []*big.Int{big.NewInt(7)})

		var invalid *entities.InvalidRequestError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, int64(1), invalid.ActiveID.Int64())
		mocks.RaffleRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		mocks.Payout.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects fulfillment while open", func(t *testing.T) {
		t.Parallel()

		mocks := NewTestMocks()
		mocks.RaffleRepo.On("GetForUpdate", mock.Anything).Return(createTestRaffle(1), nil)

		_, err := mocks.service(testNow).FulfillRandomWords(context.Background(), big.NewInt(1), []*big.Int{big.NewInt(7)})

		var invalid *entities.InvalidRequestError
		require.ErrorAs(t, err, &invalid)
		assert.Nil(t, invalid.ActiveID)
	})

	t.Run("payout failure is fatal", func(t *testing.T) {
		t.Parallel()

		mocks := NewTestMocks()
		winner := testAddress(1)
		mocks.RaffleRepo.On("GetForUpdate", mock.Anything).Return(createTestRaffle(1, calculating(5)), nil)
		mocks.EntrantRepo.On("GetByPosition", mock.Anything, int64(1), int64(0)).Return(&entities.Entrant{
			RoundNumber: 1, Position: 0, Player: winner, Value: entities.DefaultEntranceFee,
		}, nil)
		mocks.Payout.On("Transfer", mock.Anything, winner, mock.Anything, mock.Anything).Return(entities.ErrTransferRejected)

		_, err := mocks.service(testNow).FulfillRandomWords(context.Background(), big.NewInt(5), []*big.Int{big.NewInt(99)})

		var payoutErr *entities.PayoutFailedError
		require.ErrorAs(t, err, &payoutErr)
		assert.Equal(t, winner, payoutErr.Winner)
		assert.ErrorIs(t, err, entities.ErrTransferRejected)
		assert.False(t, entities.IsRejection(err))
		mocks.RaffleRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		mocks.DrawRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		mocks.EventPublisher.AssertNotCalled(t, "Publish", mock.Anything)
	})
}

func TestRaffleService_GetPlayer(t *testing.T) {
	t.Parallel()

	mocks := NewTestMocks()
	mocks.RaffleRepo.On("Get", mock.Anything).Return(createTestRaffle(2), nil)
	mocks.EntrantRepo.On("GetByPosition", mock.Anything, int64(1), int64(1)).Return(&entities.Entrant{Player: testAddress(7)}, nil)

	svc := mocks.service(testNow)

	player, err := svc.GetPlayer(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, testAddress(7), player)

	for _, idx := range []int64{-1, 2, 100} {
		_, err := svc.GetPlayer(context.Background(), idx)
		var outOfRange *entities.PlayerIndexOutOfRangeError
		require.ErrorAs(t, err, &outOfRange)
		assert.Equal(t, idx, outOfRange.Index)
	}
}

func TestRaffleService_GetRecentDraws(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		limit     int
		wantLimit int
	}{
		{name: "default", limit: 0, wantLimit: 10},
		{name: "explicit", limit: 5, wantLimit: 5},
		{name: "clamped", limit: 1000, wantLimit: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mocks := NewTestMocks()
			mocks.DrawRepo.On("GetRecent", mock.Anything, tt.wantLimit).Return([]*entities.DrawResult{}, nil)

			_, err := mocks.service(testNow).GetRecentDraws(context.Background(), tt.limit)
			require.NoError(t, err)
			mocks.DrawRepo.AssertExpectations(t)
		})
	}
}
