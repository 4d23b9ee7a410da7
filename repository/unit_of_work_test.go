package repository

import (
	"context"
	"math/big"
	"testing"

	"raffle/domain/entities"
	"raffle/domain/events"
	"raffle/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitOfWork(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()
	factory := NewUnitOfWorkFactory(testDB.DB)
	require.NoError(t, NewRaffleRepository(testDB.DB, 1).Create(ctx, testutil.CreateTestRaffle(1)))

	enter := func(t *testing.T, publisher *recordingPublisher, commit bool) {
		uow := factory.CreateForRaffleWithPublisher(1, publisher)
		require.NoError(t, uow.Begin(ctx))

		raffle, err := uow.RaffleRepository().GetForUpdate(ctx)
		require.NoError(t, err)
		position := raffle.RecordEntry(entities.DefaultEntranceFee)
		require.NoError(t, uow.EntrantRepository().Append(ctx, testutil.CreateTestEntrant(raffle.RoundNumber, position, testutil.TestAddress(position))))
		require.NoError(t, uow.RaffleRepository().Update(ctx, raffle))
		require.NoError(t, uow.EventBus().Publish(events.RaffleEnterEvent{
			RaffleID:    1,
			RoundNumber: raffle.RoundNumber,
			Player:      testutil.TestAddress(position),
			Value:       entities.DefaultEntranceFee,
			Position:    position,
		}))

		if commit {
			require.NoError(t, uow.Commit())
		} else {
			require.NoError(t, uow.Rollback())
		}
	}

	t.Run("commit persists and flushes events", func(t *testing.T) {
		publisher := &recordingPublisher{}
		enter(t, publisher, true)

		assert.Len(t, publisher.published, 1)
		assert.Zero(t, publisher.discarded)

		raffle, err := NewRaffleRepository(testDB.DB, 1).Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), raffle.PlayerCount)
	})

	t.Run("rollback discards state and events", func(t *testing.T) {
		publisher := &recordingPublisher{}
		enter(t, publisher, false)

		assert.Empty(t, publisher.published)
		assert.Equal(t, 1, publisher.discarded)

		raffle, err := NewRaffleRepository(testDB.DB, 1).Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), raffle.PlayerCount)
		assert.Equal(t, 0, raffle.PoolBalance.Cmp(entities.DefaultEntranceFee))
	})

	t.Run("rollback after commit is a no-op", func(t *testing.T) {
		uow := factory.CreateForRaffleWithPublisher(1, &recordingPublisher{})
		require.NoError(t, uow.Begin(ctx))
		require.NoError(t, uow.Commit())
		assert.NoError(t, uow.Rollback())
	})

	t.Run("begin twice fails", func(t *testing.T) {
		uow := factory.CreateForRaffleWithPublisher(1, &recordingPublisher{})
		require.NoError(t, uow.Begin(ctx))
		defer uow.Rollback()
		assert.Error(t, uow.Begin(ctx))
	})

	t.Run("payout and draw roll back together", func(t *testing.T) {
		uow := factory.CreateForRaffleWithPublisher(1, &recordingPublisher{})
		require.NoError(t, uow.Begin(ctx))

		winner := testutil.TestAddress(0)
		require.NoError(t, uow.AccountRepository().Create(ctx, entities.NewAccount(winner, testutil.CreateTestRaffle(1).CreatedAt)))
		require.NoError(t, uow.AccountRepository().UpdateBalance(ctx, winner, big.NewInt(1)))
		require.NoError(t, uow.Rollback())

		account, err := NewAccountRepository(testDB.DB).Get(ctx, winner)
		require.NoError(t, err)
		assert.Nil(t, account)
	})

	t.Run("read-only transaction cannot write or commit", func(t *testing.T) {
		uow := factory.CreateForRaffleWithPublisher(1, &recordingPublisher{})
		require.NoError(t, uow.BeginReadOnly(ctx))
		defer uow.Rollback()

		raffle, err := uow.RaffleRepository().Get(ctx)
		require.NoError(t, err)
		require.NotNil(t, raffle)

		assert.Error(t, uow.Commit())
		assert.Error(t, uow.RaffleRepository().Update(ctx, raffle))
	})

	t.Run("getters panic before begin", func(t *testing.T) {
		uow := factory.CreateForRaffleWithPublisher(1, &recordingPublisher{})
		assert.Panics(t, func() { uow.RaffleRepository() })
	})
}
