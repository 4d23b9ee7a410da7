package repository

import (
	"context"
	"math/big"
	"testing"
	"time"

	"raffle/domain/entities"
	"raffle/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRaffleRepository_CreateGetUpdate(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()
	repo := NewRaffleRepository(testDB.DB, 1)

	t.Run("missing raffle returns nil", func(t *testing.T) {
		raffle, err := repo.Get(ctx)
		require.NoError(t, err)
		assert.Nil(t, raffle)
	})

	raffle := testutil.CreateTestRaffle(1)
	require.NoError(t, repo.Create(ctx, raffle))
	assert.False(t, raffle.CreatedAt.IsZero())

	t.Run("round trips uint256 fields", func(t *testing.T) {
		got, err := repo.Get(ctx)
		require.NoError(t, err)
		require.NotNil(t, got)

		assert.Equal(t, entities.RaffleStateOpen, got.State)
		assert.Equal(t, "10000000000000000", got.EntranceFee.String())
		assert.Equal(t, 30*time.Second, got.Interval)
		assert.Zero(t, got.PoolBalance.Sign())
		assert.Nil(t, got.RecentWinner)
		assert.Nil(t, got.ActiveRequestID)
		assert.WithinDuration(t, raffle.LastTimestamp, got.LastTimestamp, time.Millisecond)
	})

	t.Run("update persists draw state", func(t *testing.T) {
		huge, ok := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
		require.True(t, ok)

		raffle.RecordEntry(entities.DefaultEntranceFee)
		require.NoError(t, raffle.BeginDraw(huge, time.Now()))
		require.NoError(t, repo.Update(ctx, raffle))

		got, err := repo.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, entities.RaffleStateCalculating, got.State)
		assert.Equal(t, 0, got.ActiveRequestID.Cmp(huge))
		assert.Equal(t, int64(1), got.PlayerCount)
	})

	t.Run("database rejects calculating without request", func(t *testing.T) {
		broken := raffle.Clone()
		broken.ActiveRequestID = nil
		assert.Error(t, repo.Update(ctx, broken))
	})

	t.Run("update of missing raffle", func(t *testing.T) {
		other := NewRaffleRepository(testDB.DB, 99)
		err := other.Update(ctx, testutil.CreateTestRaffle(99))
		assert.ErrorIs(t, err, entities.ErrRaffleNotFound)
	})
}

func TestRaffleRepository_GetForUpdateSerializes(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()
	require.NoError(t, NewRaffleRepository(testDB.DB, 1).Create(ctx, testutil.CreateTestRaffle(1)))

	tx1, err := testDB.DB.Begin(ctx)
	require.NoError(t, err)
	defer tx1.Rollback(ctx)

	locked, err := NewRaffleRepositoryScoped(tx1, 1).GetForUpdate(ctx)
	require.NoError(t, err)
	locked.RecordEntry(entities.DefaultEntranceFee)
	require.NoError(t, NewRaffleRepositoryScoped(tx1, 1).Update(ctx, locked))

	acquired := make(chan int64, 1)
	go func() {
		tx2, err := testDB.DB.Begin(ctx)
		if err != nil {
			acquired <- -1
			return
		}
		defer tx2.Rollback(ctx)
		r, err := NewRaffleRepositoryScoped(tx2, 1).GetForUpdate(ctx)
		if err != nil {
			acquired <- -1
			return
		}
		acquired <- r.PlayerCount
	}()

	select {
	case <-acquired:
		t.Fatal("second transaction acquired the row lock while it was held")
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, tx1.Commit(ctx))

	select {
	case count := <-acquired:
		assert.Equal(t, int64(1), count)
	case <-time.After(5 * time.Second):
		t.Fatal("second transaction never acquired the row lock")
	}
}
