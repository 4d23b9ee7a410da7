package application

import (
	"context"
	"errors"
	"math/big"
	"time"

	"raffle/domain/entities"
	"raffle/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// DefaultUpkeepPollInterval is how often the worker evaluates the draw trigger
const DefaultUpkeepPollInterval = 5 * time.Second

// UpkeepPerformer is the part of the engine the upkeep worker drives
type UpkeepPerformer interface {
	CheckUpkeep(ctx context.Context, checkData []byte) (*interfaces.UpkeepCheck, error)
	PerformUpkeep(ctx context.Context, performData []byte) (*big.Int, error)
}

// UpkeepWorker plays the automation keeper: it polls the trigger and starts draws
type UpkeepWorker struct {
	engine       UpkeepPerformer
	pollInterval time.Duration
}

// NewUpkeepWorker creates a new upkeep worker
func NewUpkeepWorker(engine UpkeepPerformer, pollInterval time.Duration) *UpkeepWorker {
	if pollInterval <= 0 {
		pollInterval = DefaultUpkeepPollInterval
	}
	return &UpkeepWorker{
		engine:       engine,
		pollInterval: pollInterval,
	}
}

// Start begins the upkeep worker and returns its stop function
func (w *UpkeepWorker) Start(ctx context.Context) func() {
	stopChan := make(chan struct{})

	go func() {
		log.WithField("pollInterval", w.pollInterval).Info("Upkeep worker started")

		for {
			if _, err := w.RunOnce(ctx); err != nil {
				log.Errorf("Error running upkeep: %v", err)
			}

			select {
			case <-ctx.Done():
				log.Info("Upkeep worker shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Upkeep worker shutting down (stop requested)...")
				return
			case <-time.After(w.pollInterval):
			}
		}
	}()

	return func() {
		close(stopChan)
	}
}

// RunOnce checks the trigger and performs upkeep when it holds.
// It returns the new request id, or nil when no draw was started.
func (w *UpkeepWorker) RunOnce(ctx context.Context) (*big.Int, error) {
	check, err := w.engine.CheckUpkeep(ctx, nil)
	if err != nil {
		return nil, err
	}
	if !check.UpkeepNeeded {
		log.WithFields(log.Fields{
			"isOpen":     check.Status.IsOpen,
			"timePassed": check.Status.TimePassed,
			"hasPlayers": check.Status.HasPlayers,
			"hasBalance": check.Status.HasBalance,
		}).Debug("Upkeep not needed")
		return nil, nil
	}

	requestID, err := w.engine.PerformUpkeep(ctx, check.PerformData)
	if err != nil {
		// Another keeper can win the race between check and perform
		var notMet *entities.TriggerConditionsNotMetError
		if errors.As(err, &notMet) {
			log.WithFields(log.Fields{
				"balance":    notMet.Balance.String(),
				"numPlayers": notMet.NumPlayers,
				"state":      notMet.State,
			}).Warn("Upkeep conditions changed before perform")
			return nil, nil
		}
		return nil, err
	}

	log.WithField("requestId", requestID.String()).Info("Draw started")
	return requestID, nil
}
