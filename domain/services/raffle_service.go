package services

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"raffle/domain/entities"
	"raffle/domain/events"
	"raffle/domain/interfaces"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

const (
	defaultRecentDrawsLimit = 10
	maxRecentDrawsLimit     = 100
)

// raffleService implements the round lifecycle on top of one unit of work
type raffleService struct {
	raffleID       int64
	config         entities.RaffleConfig
	raffleRepo     interfaces.RaffleRepository
	entrantRepo    interfaces.EntrantRepository
	requestRepo    interfaces.RandomnessRequestRepository
	drawRepo       interfaces.DrawRepository
	payoutService  interfaces.PayoutService
	requester      interfaces.RandomnessRequester
	eventPublisher interfaces.EventPublisher
	now            func() time.Time
}

// NewRaffleService creates a new raffle service
func NewRaffleService(
	raffleID int64,
	config entities.RaffleConfig,
	raffleRepo interfaces.RaffleRepository,
	entrantRepo interfaces.EntrantRepository,
	requestRepo interfaces.RandomnessRequestRepository,
	drawRepo interfaces.DrawRepository,
	payoutService interfaces.PayoutService,
	requester interfaces.RandomnessRequester,
	eventPublisher interfaces.EventPublisher,
	now func() time.Time,
) interfaces.RaffleService {
	if now == nil {
		now = time.Now
	}
	return &raffleService{
		raffleID:       raffleID,
		config:         config,
		raffleRepo:     raffleRepo,
		entrantRepo:    entrantRepo,
		requestRepo:    requestRepo,
		drawRepo:       drawRepo,
		payoutService:  payoutService,
		requester:      requester,
		eventPublisher: eventPublisher,
		now:            now,
	}
}

// Initialize creates the raffle on first start. Settings are immutable afterwards.
func (s *raffleService) Initialize(ctx context.Context) (*entities.Raffle, error) {
	if err := s.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid raffle configuration: %w", err)
	}

	raffle, err := s.raffleRepo.GetForUpdate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get raffle: %w", err)
	}
	if raffle != nil {
		if !raffle.MatchesConfig(s.config) {
			return nil, fmt.Errorf("%w: persisted fee %s interval %s, configured fee %s interval %s",
				entities.ErrConfigMismatch, raffle.EntranceFee, raffle.Interval, s.config.EntranceFee, s.config.Interval)
		}
		return raffle, nil
	}

	raffle = entities.NewRaffle(s.raffleID, s.config, s.now())
	if err := s.raffleRepo.Create(ctx, raffle); err != nil {
		return nil, fmt.Errorf("failed to create raffle: %w", err)
	}

	log.WithFields(log.Fields{
		"raffleID":    s.raffleID,
		"entranceFee": raffle.EntranceFee.String(),
		"interval":    raffle.Interval,
	}).Info("Created raffle")

	return raffle, nil
}

// Enter records a paid entry for the current round
func (s *raffleService) Enter(ctx context.Context, player common.Address, value *big.Int) (*entities.Entrant, error) {
	raffle, err := s.loadForUpdate(ctx)
	if err != nil {
		return nil, err
	}

	if err := raffle.ValidateEntry(value); err != nil {
		log.WithFields(log.Fields{
			"raffleID": s.raffleID,
			"player":   player.Hex(),
			"value":    value,
			"state":    raffle.State,
		}).Debug("Rejected raffle entry")
		return nil, err
	}

	now := s.now()
	position := raffle.RecordEntry(value)
	raffle.UpdatedAt = now

	entrant := &entities.Entrant{
		RaffleID:    s.raffleID,
		RoundNumber: raffle.RoundNumber,
		Position:    position,
		Player:      player,
		Value:       new(big.Int).Set(value),
		CreatedAt:   now,
	}
	if err := s.entrantRepo.Append(ctx, entrant); err != nil {
		return nil, fmt.Errorf("failed to append entrant: %w", err)
	}
	if err := s.raffleRepo.Update(ctx, raffle); err != nil {
		return nil, fmt.Errorf("failed to update raffle: %w", err)
	}

	s.publish(events.RaffleEnterEvent{
		RaffleID:    s.raffleID,
		RoundNumber: raffle.RoundNumber,
		Player:      player,
		Value:       new(big.Int).Set(value),
		Position:    position,
	})

	log.WithFields(log.Fields{
		"raffleID": s.raffleID,
		"round":    raffle.RoundNumber,
		"player":   player.Hex(),
		"position": position,
		"pool":     raffle.PoolBalance.String(),
	}).Debug("Recorded raffle entry")

	return entrant, nil
}

// CheckUpkeep evaluates the draw trigger without taking the row lock
func (s *raffleService) CheckUpkeep(ctx context.Context, _ []byte) (*interfaces.UpkeepCheck, error) {
	raffle, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	status := raffle.CheckUpkeep(s.now())
	return &interfaces.UpkeepCheck{
		UpkeepNeeded: status.UpkeepNeeded(),
		PerformData:  []byte{},
		Status:       status,
	}, nil
}

// PerformUpkeep re-validates the trigger under the row lock and requests randomness
func (s *raffleService) PerformUpkeep(ctx context.Context, _ []byte) (*big.Int, error) {
	raffle, err := s.loadForUpdate(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if status := raffle.CheckUpkeep(now); !status.UpkeepNeeded() {
		return nil, raffle.TriggerConditionsNotMet()
	}

	params := s.config.RandomnessParams()
	requestID, err := s.requester.RequestRandomness(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to request randomness: %w", err)
	}

	if err := raffle.BeginDraw(requestID, now); err != nil {
		return nil, err
	}
	if err := raffle.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("raffle invariant violated: %w", err)
	}
	if err := s.raffleRepo.Update(ctx, raffle); err != nil {
		return nil, fmt.Errorf("failed to update raffle: %w", err)
	}

	request := entities.NewRandomnessRequest(s.raffleID, raffle.RoundNumber, requestID, params, now)
	if err := s.requestRepo.Create(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to record randomness request: %w", err)
	}

	s.publish(events.RequestedRaffleWinnerEvent{
		RaffleID:    s.raffleID,
		RoundNumber: raffle.RoundNumber,
		RequestID:   new(big.Int).Set(requestID),
		PoolBalance: new(big.Int).Set(raffle.PoolBalance),
		NumPlayers:  raffle.PlayerCount,
	})

	log.WithFields(log.Fields{
		"raffleID":  s.raffleID,
		"round":     raffle.RoundNumber,
		"requestID": requestID.String(),
		"players":   raffle.PlayerCount,
		"pool":      raffle.PoolBalance.String(),
	}).Info("Requested raffle winner")

	return requestID, nil
}

// FulfillRandomWords picks the winner, pays out the pool and resets the raffle
func (s *raffleService) FulfillRandomWords(ctx context.Context, requestID *big.Int, randomWords []*big.Int) (*entities.DrawResult, error) {
	raffle, err := s.loadForUpdate(ctx)
	if err != nil {
		return nil, err
	}

	if err := raffle.ValidateFulfillment(requestID, randomWords); err != nil {
		return nil, err
	}

	randomWord := new(big.Int).Set(randomWords[0])
	winnerIndex, err := entities.SelectWinnerIndex(randomWord, raffle.PlayerCount)
	if err != nil {
		return nil, fmt.Errorf("failed to select winner: %w", err)
	}

	entrant, err := s.entrantRepo.GetByPosition(ctx, raffle.RoundNumber, winnerIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to get winning entrant: %w", err)
	}
	if entrant == nil {
		return nil, fmt.Errorf("no entrant at position %d of round %d", winnerIndex, raffle.RoundNumber)
	}

	now := s.now()
	drawnRound := raffle.RoundNumber
	numPlayers := raffle.PlayerCount
	payout := raffle.CompleteDraw(entrant.Player, now)

	if err := s.payoutService.Transfer(ctx, entrant.Player, payout, map[string]any{
		"raffle_id":    s.raffleID,
		"round_number": drawnRound,
		"request_id":   requestID.String(),
	}); err != nil {
		return nil, &entities.PayoutFailedError{
			Winner:    entrant.Player,
			Amount:    payout,
			RequestID: new(big.Int).Set(requestID),
			Err:       err,
		}
	}

	if err := raffle.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("raffle invariant violated: %w", err)
	}
	if err := s.raffleRepo.Update(ctx, raffle); err != nil {
		return nil, fmt.Errorf("failed to update raffle: %w", err)
	}

	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get randomness request: %w", err)
	}
	if request != nil {
		request.MarkFulfilled(randomWords, now)
		if err := s.requestRepo.Update(ctx, request); err != nil {
			return nil, fmt.Errorf("failed to update randomness request: %w", err)
		}
	} else {
		log.WithField("requestID", requestID.String()).Warn("Fulfilled request has no correlation record")
	}

	draw := &entities.DrawResult{
		RaffleID:     s.raffleID,
		RoundNumber:  drawnRound,
		RequestID:    new(big.Int).Set(requestID),
		RandomWord:   randomWord,
		WinnerIndex:  winnerIndex,
		Winner:       entrant.Player,
		Payout:       payout,
		EntrantCount: numPlayers,
		CompletedAt:  now,
	}
	if err := s.drawRepo.Create(ctx, draw); err != nil {
		return nil, fmt.Errorf("failed to record draw: %w", err)
	}

	s.publish(events.WinnerPickedEvent{
		RaffleID:    s.raffleID,
		RoundNumber: drawnRound,
		RequestID:   new(big.Int).Set(requestID),
		Winner:      entrant.Player,
		WinnerIndex: winnerIndex,
		Payout:      new(big.Int).Set(payout),
		NumPlayers:  numPlayers,
	})

	log.WithFields(log.Fields{
		"raffleID":    s.raffleID,
		"round":       drawnRound,
		"requestID":   requestID.String(),
		"winner":      entrant.Player.Hex(),
		"winnerIndex": winnerIndex,
		"payout":      payout.String(),
	}).Info("Winner picked")

	return draw, nil
}

// GetRaffle returns the current raffle snapshot
func (s *raffleService) GetRaffle(ctx context.Context) (*entities.Raffle, error) {
	return s.load(ctx)
}

// GetPlayer returns the entrant address at a position of the current round
func (s *raffleService) GetPlayer(ctx context.Context, index int64) (common.Address, error) {
	raffle, err := s.load(ctx)
	if err != nil {
		return common.Address{}, err
	}
	if index < 0 || index >= raffle.PlayerCount {
		return common.Address{}, &entities.PlayerIndexOutOfRangeError{Index: index, NumPlayers: raffle.PlayerCount}
	}

	entrant, err := s.entrantRepo.GetByPosition(ctx, raffle.RoundNumber, index)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to get entrant: %w", err)
	}
	if entrant == nil {
		return common.Address{}, &entities.PlayerIndexOutOfRangeError{Index: index, NumPlayers: raffle.PlayerCount}
	}
	return entrant.Player, nil
}

// GetRecentDraws returns completed draws, newest first
func (s *raffleService) GetRecentDraws(ctx context.Context, limit int) ([]*entities.DrawResult, error) {
	if limit <= 0 {
		limit = defaultRecentDrawsLimit
	}
	if limit > maxRecentDrawsLimit {
		limit = maxRecentDrawsLimit
	}

	draws, err := s.drawRepo.GetRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent draws: %w", err)
	}
	return draws, nil
}

func (s *raffleService) load(ctx context.Context) (*entities.Raffle, error) {
	raffle, err := s.raffleRepo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get raffle: %w", err)
	}
	if raffle == nil {
		return nil, entities.ErrRaffleNotFound
	}
	return raffle, nil
}

func (s *raffleService) loadForUpdate(ctx context.Context) (*entities.Raffle, error) {
	raffle, err := s.raffleRepo.GetForUpdate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to lock raffle: %w", err)
	}
	if raffle == nil {
		return nil, entities.ErrRaffleNotFound
	}
	return raffle, nil
}

func (s *raffleService) publish(event events.Event) {
	if err := s.eventPublisher.Publish(event); err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"error":     err,
		}).Error("Failed to publish raffle event")
	}
}
