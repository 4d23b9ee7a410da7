package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"raffle/api/routes"
	"raffle/application"
	"raffle/bot"
	"raffle/config"
	"raffle/domain/events"
	"raffle/infrastructure"
	"raffle/infrastructure/observability"
	"raffle/vrf"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the raffle service
func Run(ctx context.Context) error {
	log.Info("Starting raffle engine...")

	cfg := config.Get()

	if err := observability.InitializeGlobalMetrics(ctx, cfg); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	rt, err := setupEngine(ctx, cfg)
	if err != nil {
		return err
	}
	closed := false
	defer func() {
		if !closed {
			if err := rt.close(); err != nil {
				log.WithError(err).Warn("Failed to close resources")
			}
		}
	}()

	var fulfiller *application.MockVRFFulfiller
	if rt.mockCoordinator != nil {
		fulfiller = application.NewMockVRFFulfiller(rt.mockCoordinator, rt.consumer, cfg.VRFMockFulfillDelay)
		rt.uowFactory.RegisterLocalHandler(events.EventTypeRequestedRaffleWinner, fulfiller.HandleRequestedRaffleWinner)
		log.WithField("delay", cfg.VRFMockFulfillDelay).Info("Mock VRF fulfiller enabled")
	} else {
		listener := vrf.NewFulfillmentListener(rt.natsClient, rt.consumer)
		if err := listener.Start(); err != nil {
			return fmt.Errorf("failed to start fulfillment listener: %w", err)
		}
	}

	var discordBot *bot.Bot
	if cfg.DiscordToken != "" {
		log.Info("Initializing Discord bot...")
		discordBot, err = bot.New(bot.Config{
			Token:     cfg.DiscordToken,
			GuildID:   cfg.DiscordGuildID,
			ChannelID: cfg.DiscordChannelID,
		}, rt.engine)
		if err != nil {
			return fmt.Errorf("failed to initialize Discord bot: %w", err)
		}
		if cfg.DiscordChannelID != "" {
			announcer := application.NewWinnerAnnouncer(discordBot.Session(), cfg.DiscordChannelID)
			rt.uowFactory.RegisterLocalHandler(events.EventTypeWinnerPicked, announcer.HandleWinnerPicked)
			log.WithField("channelId", cfg.DiscordChannelID).Info("Discord winner announcer enabled")
		}
	}

	healthServer := infrastructure.NewGRPCHealthServer(cfg.GRPCHealthAddr, 10*time.Second, rt.healthChecks()...)
	if err := healthServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start gRPC health server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           routes.SetupRouter(rt.engine, healthServer),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("HTTP server stopped")
		}
	}()

	stopWorker := application.NewUpkeepWorker(rt.engine, cfg.UpkeepPollInterval).Start(ctx)

	log.Infof("Raffle engine is running in %s mode...", cfg.Environment)
	<-ctx.Done()

	log.Info("Shutting down raffle engine...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var result *multierror.Error

	stopWorker()
	if fulfiller != nil {
		fulfiller.Stop()
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to shut down HTTP server: %w", err))
	}
	healthServer.Stop()

	if discordBot != nil {
		if err := discordBot.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close Discord bot: %w", err))
		}
	}

	closed = true
	if err := rt.close(); err != nil {
		result = multierror.Append(result, err)
	}

	if err := observability.ShutdownGlobalMetrics(shutdownCtx); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to shut down metrics: %w", err))
	}

	if err := result.ErrorOrNil(); err != nil {
		return err
	}

	log.Info("Shutdown completed")
	return nil
}
