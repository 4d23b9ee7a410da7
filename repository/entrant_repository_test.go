package repository

import (
	"context"
	"testing"

	"raffle/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntrantRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()
	require.NoError(t, NewRaffleRepository(testDB.DB, 1).Create(ctx, testutil.CreateTestRaffle(1)))

	repo := NewEntrantRepositoryScoped(testDB.DB.Pool, 1)

	for i := int64(0); i < 3; i++ {
		entrant := testutil.CreateTestEntrant(1, i, testutil.TestAddress(i))
		require.NoError(t, repo.Append(ctx, entrant))
		assert.NotZero(t, entrant.ID)
	}
	// same player entering again holds a second position
	require.NoError(t, repo.Append(ctx, testutil.CreateTestEntrant(1, 3, testutil.TestAddress(0))))
	require.NoError(t, repo.Append(ctx, testutil.CreateTestEntrant(2, 0, testutil.TestAddress(9))))

	t.Run("positions are unique within a round", func(t *testing.T) {
		err := repo.Append(ctx, testutil.CreateTestEntrant(1, 1, testutil.TestAddress(5)))
		assert.Error(t, err)
	})

	t.Run("get by position", func(t *testing.T) {
		entrant, err := repo.GetByPosition(ctx, 1, 3)
		require.NoError(t, err)
		require.NotNil(t, entrant)
		assert.Equal(t, testutil.TestAddress(0), entrant.Player)

		missing, err := repo.GetByPosition(ctx, 1, 4)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("list and count are round scoped", func(t *testing.T) {
		entrants, err := repo.ListByRound(ctx, 1)
		require.NoError(t, err)
		require.Len(t, entrants, 4)
		for i, e := range entrants {
			assert.Equal(t, int64(i), e.Position)
		}

		count, err := repo.CountByRound(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}
