package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"raffle/application"
	"raffle/config"
	"raffle/database"
	"raffle/infrastructure"
	"raffle/repository"
	"raffle/repository/memory"
	"raffle/vrf"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
)

// engineRuntime holds the engine and the connections it was built on
type engineRuntime struct {
	cfg        *config.Config
	engine     *application.RaffleEngine
	uowFactory *infrastructure.UnitOfWorkFactory
	consumer   *vrf.Consumer

	db              *database.DB               // nil with the in-memory store
	natsClient      *infrastructure.NATSClient // nil unless VRF_MODE=nats
	mockCoordinator *vrf.MockCoordinator       // nil unless VRF_MODE=mock
}

// setupEngine connects storage and the randomness oracle and initializes the raffle
func setupEngine(ctx context.Context, cfg *config.Config) (_ *engineRuntime, err error) {
	rt := &engineRuntime{cfg: cfg}
	defer func() {
		if err != nil {
			if closeErr := rt.close(); closeErr != nil {
				log.WithError(closeErr).Warn("Failed to release resources after setup error")
			}
		}
	}()

	var repoFactory infrastructure.RepositoryFactory
	if cfg.UseInMemoryStore() {
		log.Warn("DATABASE_URL not set, using the in-memory store; state is lost on exit")
		repoFactory = memory.NewUnitOfWorkFactory(memory.NewStore())
	} else {
		log.Info("Connecting to database...")
		if !cfg.IsProduction() {
			if err := database.RunMigrationsWithURL(cfg.GetDatabaseURL()); err != nil {
				return nil, err
			}
		}
		rt.db, err = database.NewConnection(ctx, cfg.GetDatabaseURL())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Info("Database connection established successfully")
		repoFactory = repository.NewUnitOfWorkFactory(rt.db)
	}

	var publisher *infrastructure.NATSEventPublisher
	if cfg.VRFMode == config.VRFModeNATS {
		log.WithField("servers", cfg.NATSServers).Info("Connecting to NATS...")
		rt.natsClient = infrastructure.NewNATSClient(cfg.NATSServers)
		if err := rt.natsClient.Connect(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		mapper := infrastructure.NewEventSubjectMapper()
		if err := infrastructure.EnsureDomainEventStream(rt.natsClient, mapper); err != nil {
			return nil, err
		}
		publisher = infrastructure.NewNATSEventPublisher(rt.natsClient, mapper)
	} else {
		publisher = infrastructure.NewLocalEventPublisher()
	}
	rt.uowFactory = infrastructure.NewUnitOfWorkFactory(repoFactory, publisher)

	raffleCfg := cfg.RaffleConfig()

	var coordinator vrf.Coordinator
	switch cfg.VRFMode {
	case config.VRFModeNATS:
		coordinator = vrf.NewNATSCoordinator(rt.natsClient)
	default:
		rt.mockCoordinator = vrf.NewMockCoordinator(cfg.VRFCoordinatorAddress, nil, nil)
		subID := rt.mockCoordinator.CreateSubscription(cfg.RaffleAddress)
		if err := rt.mockCoordinator.FundSubscription(subID, cfg.VRFMockFundAmount); err != nil {
			return nil, fmt.Errorf("failed to fund mock subscription: %w", err)
		}
		if err := rt.mockCoordinator.AddConsumer(subID, cfg.RaffleAddress); err != nil {
			return nil, fmt.Errorf("failed to add mock consumer: %w", err)
		}
		raffleCfg.SubscriptionID = subID
		coordinator = rt.mockCoordinator
		log.WithFields(log.Fields{
			"subId":  subID.String(),
			"funded": cfg.VRFMockFundAmount.String(),
		}).Info("Local VRF coordinator mock ready")
	}

	rt.consumer = vrf.NewConsumer(cfg.RaffleAddress, cfg.VRFCoordinatorAddress, coordinator)
	rt.engine = application.NewRaffleEngine(cfg.RaffleID, raffleCfg, rt.uowFactory, rt.consumer, time.Now)
	rt.consumer.SetFulfillmentHandler(rt.engine.HandleFulfillment)

	if _, err := rt.engine.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize raffle: %w", err)
	}
	if rt.mockCoordinator != nil {
		if err := application.ResumeMockRequestIDs(ctx, rt.engine, rt.mockCoordinator); err != nil {
			return nil, err
		}
	}

	return rt, nil
}

// healthChecks returns the dependency checks of the runtime's connections
func (rt *engineRuntime) healthChecks() []infrastructure.HealthCheck {
	var checks []infrastructure.HealthCheck
	if rt.db != nil {
		checks = append(checks, infrastructure.HealthCheck{
			Name: "database",
			Check: func(ctx context.Context) error {
				if !rt.db.Healthy(ctx) {
					return errors.New("database ping failed")
				}
				return nil
			},
		})
	}
	if rt.natsClient != nil {
		checks = append(checks, infrastructure.HealthCheck{
			Name: "nats",
			Check: func(ctx context.Context) error {
				if !rt.natsClient.IsConnected() {
					return errors.New("nats disconnected")
				}
				return nil
			},
		})
	}
	return checks
}

// close releases the connections, collecting every failure
func (rt *engineRuntime) close() error {
	var result *multierror.Error
	if rt.natsClient != nil {
		if err := rt.natsClient.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close NATS: %w", err))
		}
	}
	if rt.db != nil {
		log.Info("Closing database connection...")
		rt.db.Close()
	}
	return result.ErrorOrNil()
}
