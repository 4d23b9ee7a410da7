package application

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"raffle/domain/entities"
	"raffle/domain/interfaces"
	"raffle/domain/services"
	"raffle/infrastructure/observability"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

// RaffleEngine runs every raffle operation in its own unit of work
type RaffleEngine struct {
	raffleID   int64
	config     entities.RaffleConfig
	uowFactory UnitOfWorkFactory
	requester  interfaces.RandomnessRequester
	now        func() time.Time
}

// NewRaffleEngine creates the engine for one raffle
func NewRaffleEngine(
	raffleID int64,
	config entities.RaffleConfig,
	uowFactory UnitOfWorkFactory,
	requester interfaces.RandomnessRequester,
	now func() time.Time,
) *RaffleEngine {
	if now == nil {
		now = time.Now
	}
	return &RaffleEngine{
		raffleID:   raffleID,
		config:     config,
		uowFactory: uowFactory,
		requester:  requester,
		now:        now,
	}
}

// RaffleID returns the raffle this engine drives
func (e *RaffleEngine) RaffleID() int64 {
	return e.raffleID
}

// Initialize creates the raffle on first start and verifies its settings afterwards
func (e *RaffleEngine) Initialize(ctx context.Context) (*entities.Raffle, error) {
	var raffle *entities.Raffle
	err := e.write(ctx, func(uow UnitOfWork, svc interfaces.RaffleService) error {
		var err error
		raffle, err = svc.Initialize(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"raffleId":    e.raffleID,
		"round":       raffle.RoundNumber,
		"state":       raffle.State,
		"entranceFee": raffle.EntranceFee.String(),
		"interval":    raffle.Interval,
	}).Info("Raffle initialized")
	return raffle, nil
}

// Enter records a paid entry
func (e *RaffleEngine) Enter(ctx context.Context, player common.Address, value *big.Int) (*entities.Entrant, error) {
	result := observability.ResultSuccess
	defer observability.GetMetrics().MeasureOperation("enter")(&result)

	var entrant *entities.Entrant
	var raffle *entities.Raffle
	err := e.write(ctx, func(uow UnitOfWork, svc interfaces.RaffleService) error {
		var err error
		if entrant, err = svc.Enter(ctx, player, value); err != nil {
			return err
		}
		raffle, err = svc.GetRaffle(ctx)
		return err
	})
	if err != nil {
		result = resultOf(err)
		return nil, err
	}

	observability.GetMetrics().RecordEntry(raffle.PlayerCount, raffle.PoolBalance)
	return entrant, nil
}

// CheckUpkeep evaluates the draw trigger without locking the raffle
func (e *RaffleEngine) CheckUpkeep(ctx context.Context, checkData []byte) (*interfaces.UpkeepCheck, error) {
	var check *interfaces.UpkeepCheck
	err := e.read(ctx, func(uow UnitOfWork, svc interfaces.RaffleService) error {
		var err error
		check, err = svc.CheckUpkeep(ctx, checkData)
		return err
	})
	if err != nil {
		return nil, err
	}

	observability.GetMetrics().RecordUpkeepCheck(check.UpkeepNeeded)
	return check, nil
}

// PerformUpkeep starts a draw if the trigger holds
func (e *RaffleEngine) PerformUpkeep(ctx context.Context, performData []byte) (*big.Int, error) {
	result := observability.ResultSuccess
	defer observability.GetMetrics().MeasureOperation("perform_upkeep")(&result)

	tracker := &issuedRequestTracker{RandomnessRequester: e.requester}
	var requestID *big.Int
	err := e.writeWith(ctx, tracker, func(uow UnitOfWork, svc interfaces.RaffleService) error {
		var err error
		requestID, err = svc.PerformUpkeep(ctx, performData)
		return err
	})
	if err != nil {
		result = resultOf(err)
		if tracker.issued != nil {
			e.cancelUntracked(ctx, tracker.issued, err)
		}
		return nil, err
	}

	observability.GetMetrics().RecordDrawRequested()
	return requestID, nil
}

// cancelUntracked withdraws a request whose unit of work rolled back. When the
// oracle cannot cancel, the request is orphaned and will later be rejected as stale.
func (e *RaffleEngine) cancelUntracked(ctx context.Context, requestID *big.Int, cause error) {
	fields := log.Fields{
		"raffleId":  e.raffleID,
		"requestId": requestID.String(),
		"cause":     cause,
	}

	if err := e.requester.CancelRandomness(context.WithoutCancel(ctx), requestID); err != nil {
		observability.GetMetrics().RecordOrphanedRequest()
		log.WithFields(fields).WithError(err).Error("Randomness request orphaned after failed upkeep")
		return
	}
	log.WithFields(fields).Warn("Cancelled randomness request after failed upkeep")
}

// LastRequestID returns the largest randomness request id in the store, nil before the first draw
func (e *RaffleEngine) LastRequestID(ctx context.Context) (*big.Int, error) {
	var requestID *big.Int
	err := e.read(ctx, func(uow UnitOfWork, svc interfaces.RaffleService) error {
		var err error
		requestID, err = uow.RandomnessRequestRepository().GetMaxRequestID(ctx)
		return err
	})
	return requestID, err
}

// FulfillRandomWords completes the draw. It is only reachable through the oracle adapter.
func (e *RaffleEngine) FulfillRandomWords(ctx context.Context, requestID *big.Int, randomWords []*big.Int) (*entities.DrawResult, error) {
	result := observability.ResultSuccess
	defer observability.GetMetrics().MeasureOperation("fulfill_random_words")(&result)

	var draw *entities.DrawResult
	err := e.write(ctx, func(uow UnitOfWork, svc interfaces.RaffleService) error {
		var err error
		draw, err = svc.FulfillRandomWords(ctx, requestID, randomWords)
		return err
	})
	if err != nil {
		result = resultOf(err)
		e.reportFulfillmentError(requestID, err)
		return nil, err
	}

	observability.GetMetrics().RecordDrawCompleted()
	return draw, nil
}

// HandleFulfillment adapts FulfillRandomWords to the oracle consumer callback
func (e *RaffleEngine) HandleFulfillment(ctx context.Context, requestID *big.Int, randomWords []*big.Int) error {
	_, err := e.FulfillRandomWords(ctx, requestID, randomWords)
	return err
}

func (e *RaffleEngine) reportFulfillmentError(requestID *big.Int, err error) {
	var (
		payoutFailed *entities.PayoutFailedError
		invalid      *entities.InvalidRequestError
	)
	switch {
	case errors.As(err, &payoutFailed):
		observability.GetMetrics().RecordPayoutFailure()
		log.WithFields(log.Fields{
			"raffleId":  e.raffleID,
			"requestId": requestID,
			"winner":    payoutFailed.Winner.Hex(),
			"amount":    payoutFailed.Amount.String(),
			"error":     payoutFailed.Err,
		}).Error("Winner payout failed, draw rolled back")
	case errors.As(err, &invalid):
		reason := invalid.Reason
		if reason == "" {
			reason = "request mismatch"
		}
		observability.GetMetrics().RecordFulfillmentRejected(reason)
	}
}

// GetRaffle returns the current raffle snapshot
func (e *RaffleEngine) GetRaffle(ctx context.Context) (*entities.Raffle, error) {
	var raffle *entities.Raffle
	err := e.read(ctx, func(uow UnitOfWork, svc interfaces.RaffleService) error {
		var err error
		raffle, err = svc.GetRaffle(ctx)
		return err
	})
	return raffle, err
}

// GetRaffleState returns OPEN or CALCULATING
func (e *RaffleEngine) GetRaffleState(ctx context.Context) (entities.RaffleState, error) {
	raffle, err := e.GetRaffle(ctx)
	if err != nil {
		return 0, err
	}
	return raffle.State, nil
}

// GetRecentWinner returns the last winner, the zero address before the first draw
func (e *RaffleEngine) GetRecentWinner(ctx context.Context) (common.Address, error) {
	raffle, err := e.GetRaffle(ctx)
	if err != nil {
		return common.Address{}, err
	}
	if raffle.RecentWinner == nil {
		return common.Address{}, nil
	}
	return *raffle.RecentWinner, nil
}

// GetPlayer returns the entrant at index in the current round
func (e *RaffleEngine) GetPlayer(ctx context.Context, index int64) (common.Address, error) {
	var player common.Address
	err := e.read(ctx, func(uow UnitOfWork, svc interfaces.RaffleService) error {
		var err error
		player, err = svc.GetPlayer(ctx, index)
		return err
	})
	return player, err
}

// GetEntranceFee returns the minimum entry value in wei
func (e *RaffleEngine) GetEntranceFee(ctx context.Context) (*big.Int, error) {
	raffle, err := e.GetRaffle(ctx)
	if err != nil {
		return nil, err
	}
	return raffle.EntranceFee, nil
}

// GetInterval returns the minimum time between draws
func (e *RaffleEngine) GetInterval(ctx context.Context) (time.Duration, error) {
	raffle, err := e.GetRaffle(ctx)
	if err != nil {
		return 0, err
	}
	return raffle.Interval, nil
}

// GetLastTimestamp returns the start of the current round
func (e *RaffleEngine) GetLastTimestamp(ctx context.Context) (time.Time, error) {
	raffle, err := e.GetRaffle(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return raffle.LastTimestamp, nil
}

// GetNumberOfPlayers returns the entrant count of the current round
func (e *RaffleEngine) GetNumberOfPlayers(ctx context.Context) (int64, error) {
	raffle, err := e.GetRaffle(ctx)
	if err != nil {
		return 0, err
	}
	return raffle.PlayerCount, nil
}

// GetPoolBalance returns the prize pool of the current round
func (e *RaffleEngine) GetPoolBalance(ctx context.Context) (*big.Int, error) {
	raffle, err := e.GetRaffle(ctx)
	if err != nil {
		return nil, err
	}
	return raffle.PoolBalance, nil
}

// GetRequestConfirmations returns the configured oracle confirmations
func (e *RaffleEngine) GetRequestConfirmations() uint16 {
	return e.config.RequestConfirmations
}

// GetNumWords returns the number of random words requested per draw
func (e *RaffleEngine) GetNumWords() uint32 {
	return e.config.NumWords
}

// GetRecentDraws returns completed draws, newest first
func (e *RaffleEngine) GetRecentDraws(ctx context.Context, limit int) ([]*entities.DrawResult, error) {
	var draws []*entities.DrawResult
	err := e.read(ctx, func(uow UnitOfWork, svc interfaces.RaffleService) error {
		var err error
		draws, err = svc.GetRecentDraws(ctx, limit)
		return err
	})
	return draws, err
}

// GetBalance returns the payout ledger balance of an address
func (e *RaffleEngine) GetBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	var balance *big.Int
	err := e.read(ctx, func(uow UnitOfWork, svc interfaces.RaffleService) error {
		var err error
		balance, err = e.payoutService(uow).GetBalance(ctx, address)
		return err
	})
	return balance, err
}

// SetPayoutsBlocked makes an address refuse or accept payouts
func (e *RaffleEngine) SetPayoutsBlocked(ctx context.Context, address common.Address, blocked bool) error {
	return e.write(ctx, func(uow UnitOfWork, svc interfaces.RaffleService) error {
		return uow.AccountRepository().SetPayoutsBlocked(ctx, address, blocked)
	})
}

func (e *RaffleEngine) payoutService(uow UnitOfWork) interfaces.PayoutService {
	return services.NewPayoutService(uow.AccountRepository(), uow.BalanceHistoryRepository(), e.now)
}

func (e *RaffleEngine) newService(uow UnitOfWork, requester interfaces.RandomnessRequester) interfaces.RaffleService {
	return services.NewRaffleService(
		e.raffleID,
		e.config,
		uow.RaffleRepository(),
		uow.EntrantRepository(),
		uow.RandomnessRequestRepository(),
		uow.DrawRepository(),
		e.payoutService(uow),
		requester,
		uow.EventBus(),
		e.now,
	)
}

// write runs fn in a unit of work, committing on success and rolling back on any error
func (e *RaffleEngine) write(ctx context.Context, fn func(uow UnitOfWork, svc interfaces.RaffleService) error) error {
	return e.writeWith(ctx, e.requester, fn)
}

func (e *RaffleEngine) writeWith(ctx context.Context, requester interfaces.RandomnessRequester, fn func(uow UnitOfWork, svc interfaces.RaffleService) error) error {
	uow := e.uowFactory.CreateForRaffle(e.raffleID)
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := fn(uow, e.newService(uow, requester)); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// read runs fn in a read-only unit of work
func (e *RaffleEngine) read(ctx context.Context, fn func(uow UnitOfWork, svc interfaces.RaffleService) error) error {
	uow := e.uowFactory.CreateForRaffle(e.raffleID)
	if err := uow.BeginReadOnly(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return fn(uow, e.newService(uow, e.requester))
}

// issuedRequestTracker remembers the request id handed out inside one unit of work
type issuedRequestTracker struct {
	interfaces.RandomnessRequester
	issued *big.Int
}

func (t *issuedRequestTracker) RequestRandomness(ctx context.Context, params entities.RandomnessParams) (*big.Int, error) {
	requestID, err := t.RandomnessRequester.RequestRandomness(ctx, params)
	if err == nil {
		t.issued = requestID
	}
	return requestID, err
}

func resultOf(err error) string {
	if entities.IsRejection(err) {
		return observability.ResultRejected
	}
	return observability.ResultError
}
