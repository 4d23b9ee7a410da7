package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"raffle/domain/events"
	"raffle/vrf"

	log "github.com/sirupsen/logrus"
)

// ResumeMockRequestIDs continues the mock coordinator's id sequence after the
// requests already stored, so a restarted process does not reuse fulfilled ids.
func ResumeMockRequestIDs(ctx context.Context, engine *RaffleEngine, coordinator *vrf.MockCoordinator) error {
	lastID, err := engine.LastRequestID(ctx)
	if err != nil {
		return fmt.Errorf("failed to load last randomness request id: %w", err)
	}
	if lastID == nil {
		return nil
	}

	coordinator.ResumeAfter(lastID)
	log.WithField("lastRequestId", lastID.String()).Info("Mock coordinator resumed request ids")
	return nil
}

// MockVRFFulfiller plays the off-chain oracle node in development:
// each committed randomness request is fulfilled through the mock coordinator after a delay.
type MockVRFFulfiller struct {
	coordinator *vrf.MockCoordinator
	receiver    vrf.FulfillmentReceiver
	delay       time.Duration

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewMockVRFFulfiller creates a new mock fulfiller
func NewMockVRFFulfiller(coordinator *vrf.MockCoordinator, receiver vrf.FulfillmentReceiver, delay time.Duration) *MockVRFFulfiller {
	return &MockVRFFulfiller{
		coordinator: coordinator,
		receiver:    receiver,
		delay:       delay,
		stopChan:    make(chan struct{}),
	}
}

// HandleRequestedRaffleWinner schedules the fulfillment of a new request.
// It is registered as a local event handler and runs after the request is committed.
func (f *MockVRFFulfiller) HandleRequestedRaffleWinner(ctx context.Context, event events.Event) error {
	requested, ok := event.(events.RequestedRaffleWinnerEvent)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	if requested.RequestID == nil {
		return fmt.Errorf("requested winner event without request id")
	}

	requestID := requested.RequestID
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()

		select {
		case <-f.stopChan:
			return
		case <-time.After(f.delay):
		}

		// The publishing context may already be gone
		result, err := f.coordinator.FulfillRandomWords(context.Background(), requestID, f.receiver)
		if err != nil {
			log.WithFields(log.Fields{
				"requestId": requestID.String(),
				"error":     err,
			}).Error("Mock fulfillment failed")
			return
		}
		if !result.Success {
			log.WithFields(log.Fields{
				"requestId": requestID.String(),
				"error":     result.Err,
			}).Warn("Mock fulfillment delivered but not accepted")
		}
	}()

	return nil
}

// Stop cancels pending fulfillments and waits for running ones
func (f *MockVRFFulfiller) Stop() {
	f.stopOnce.Do(func() {
		close(f.stopChan)
	})
	f.wg.Wait()
}
