package application

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"raffle/domain/entities"
	"raffle/domain/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePerformer struct {
	mu          sync.Mutex
	check       *interfaces.UpkeepCheck
	checkErr    error
	performErr  error
	performs    int
	checks      int
	nextRequest int64
}

func (f *fakePerformer) CheckUpkeep(ctx context.Context, checkData []byte) (*interfaces.UpkeepCheck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return f.check, f.checkErr
}

func (f *fakePerformer) PerformUpkeep(ctx context.Context, performData []byte) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.performs++
	if f.performErr != nil {
		return nil, f.performErr
	}
	f.nextRequest++
	return big.NewInt(f.nextRequest), nil
}

func (f *fakePerformer) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks, f.performs
}

func TestUpkeepWorker_RunOnce(t *testing.T) {
	t.Parallel()

	needed := &interfaces.UpkeepCheck{UpkeepNeeded: true, PerformData: []byte{}}
	notNeeded := &interfaces.UpkeepCheck{
		UpkeepNeeded: false,
		Status:       entities.UpkeepStatus{IsOpen: true, TimePassed: false, HasPlayers: true, HasBalance: true},
	}
	infraErr := errors.New("database unavailable")

	tests := []struct {
		name          string
		performer     *fakePerformer
		wantRequestID *big.Int
		wantErr       error
		wantPerforms  int
	}{
		{
			name:          "performs when upkeep needed",
			performer:     &fakePerformer{check: needed},
			wantRequestID: big.NewInt(1),
			wantPerforms:  1,
		},
		{
			name:         "skips when upkeep not needed",
			performer:    &fakePerformer{check: notNeeded},
			wantPerforms: 0,
		},
		{
			name: "lost race is not an error",
			performer: &fakePerformer{
				check: needed,
				performErr: &entities.TriggerConditionsNotMetError{
					Balance:    big.NewInt(0),
					NumPlayers: 0,
					State:      entities.RaffleStateCalculating,
				},
			},
			wantPerforms: 1,
		},
		{
			name:         "check error is returned",
			performer:    &fakePerformer{checkErr: infraErr},
			wantErr:      infraErr,
			wantPerforms: 0,
		},
		{
			name:         "perform error is returned",
			performer:    &fakePerformer{check: needed, performErr: infraErr},
			wantErr:      infraErr,
			wantPerforms: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			worker := NewUpkeepWorker(tt.performer, time.Second)
			requestID, err := worker.RunOnce(context.Background())

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			if tt.wantRequestID == nil {
				assert.Nil(t, requestID)
			} else {
				assert.Equal(t, 0, tt.wantRequestID.Cmp(requestID))
			}

			_, performs := tt.performer.counts()
			assert.Equal(t, tt.wantPerforms, performs)
		})
	}
}

func TestUpkeepWorker_StartAndStop(t *testing.T) {
	t.Parallel()

	performer := &fakePerformer{check: &interfaces.UpkeepCheck{UpkeepNeeded: false}}
	worker := NewUpkeepWorker(performer, 10*time.Millisecond)

	stop := worker.Start(context.Background())
	assert.Eventually(t, func() bool {
		checks, _ := performer.counts()
		return checks >= 3
	}, time.Second, 5*time.Millisecond)
	stop()
}

func TestUpkeepWorker_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	performer := &fakePerformer{check: &interfaces.UpkeepCheck{UpkeepNeeded: false}}
	worker := NewUpkeepWorker(performer, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)
	assert.Eventually(t, func() bool {
		checks, _ := performer.counts()
		return checks >= 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	// Allow the loop to observe cancellation, then make sure it stopped polling
	time.Sleep(30 * time.Millisecond)
	before, _ := performer.counts()
	time.Sleep(50 * time.Millisecond)
	after, _ := performer.counts()
	assert.Equal(t, before, after)
}

func TestNewUpkeepWorker_DefaultInterval(t *testing.T) {
	t.Parallel()

	worker := NewUpkeepWorker(&fakePerformer{}, 0)
	assert.Equal(t, DefaultUpkeepPollInterval, worker.pollInterval)
}
