package cmd

import (
	"context"
	"fmt"

	"raffle/application"
	"raffle/config"

	log "github.com/sirupsen/logrus"
)

// RunUpkeepOnce performs a single check/perform pass. With the local coordinator mock
// the resulting request is fulfilled immediately, completing the draw.
func RunUpkeepOnce(ctx context.Context) error {
	cfg := config.Get()

	rt, err := setupEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.close(); err != nil {
			log.WithError(err).Warn("Failed to close resources")
		}
	}()

	requestID, err := application.NewUpkeepWorker(rt.engine, 0).RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("upkeep failed: %w", err)
	}
	if requestID == nil {
		log.Info("Upkeep not needed")
		return nil
	}

	if rt.mockCoordinator == nil {
		log.WithField("requestId", requestID.String()).Info("Randomness requested, awaiting fulfillment")
		return nil
	}

	result, err := rt.mockCoordinator.FulfillRandomWords(ctx, requestID, rt.consumer)
	if err != nil {
		return fmt.Errorf("mock fulfillment failed: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("mock fulfillment rejected: %w", result.Err)
	}

	winner, err := rt.engine.GetRecentWinner(ctx)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"requestId": requestID.String(),
		"winner":    winner.Hex(),
		"payment":   result.Payment.String(),
	}).Info("Draw completed")
	return nil
}
