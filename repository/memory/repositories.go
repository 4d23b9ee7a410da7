package memory

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"raffle/domain/entities"

	"github.com/ethereum/go-ethereum/common"
)

type raffleRepository struct {
	data     *storeData
	raffleID int64
}

func (r *raffleRepository) Get(ctx context.Context) (*entities.Raffle, error) {
	raffle, ok := r.data.raffles[r.raffleID]
	if !ok {
		return nil, nil
	}
	return raffle.Clone(), nil
}

// GetForUpdate is Get: the unit of work already holds the store lock
func (r *raffleRepository) GetForUpdate(ctx context.Context) (*entities.Raffle, error) {
	return r.Get(ctx)
}

func (r *raffleRepository) Create(ctx context.Context, raffle *entities.Raffle) error {
	if err := r.data.checkWritable(); err != nil {
		return err
	}
	if _, exists := r.data.raffles[r.raffleID]; exists {
		return fmt.Errorf("raffle %d already exists", r.raffleID)
	}
	if err := checkRaffleRow(raffle); err != nil {
		return err
	}
	raffle.ID = r.raffleID
	r.data.raffles[r.raffleID] = raffle.Clone()
	return nil
}

func (r *raffleRepository) Update(ctx context.Context, raffle *entities.Raffle) error {
	if err := r.data.checkWritable(); err != nil {
		return err
	}
	if _, exists := r.data.raffles[r.raffleID]; !exists {
		return entities.ErrRaffleNotFound
	}
	if err := checkRaffleRow(raffle); err != nil {
		return err
	}
	r.data.raffles[r.raffleID] = raffle.Clone()
	return nil
}

// checkRaffleRow mirrors the raffles table constraints
func checkRaffleRow(raffle *entities.Raffle) error {
	if raffle.IsCalculating() != (raffle.ActiveRequestID != nil) {
		return fmt.Errorf("failed to save raffle %d: state %s requires matching active request", raffle.ID, raffle.State)
	}
	if raffle.PoolBalance.Sign() < 0 || raffle.EntranceFee.Sign() <= 0 {
		return fmt.Errorf("failed to save raffle %d: invalid amounts", raffle.ID)
	}
	return nil
}

type entrantRepository struct {
	data     *storeData
	raffleID int64
}

func (r *entrantRepository) Append(ctx context.Context, entrant *entities.Entrant) error {
	if err := r.data.checkWritable(); err != nil {
		return err
	}
	for _, e := range r.data.entrants[r.raffleID] {
		if e.RoundNumber == entrant.RoundNumber && e.Position == entrant.Position {
			return fmt.Errorf("failed to append entrant %s: position %d already taken", entrant.Player.Hex(), entrant.Position)
		}
	}

	entrant.ID = r.data.nextEntrantID
	entrant.RaffleID = r.raffleID
	r.data.nextEntrantID++
	r.data.entrants[r.raffleID] = append(r.data.entrants[r.raffleID], entrant.Clone())
	return nil
}

func (r *entrantRepository) GetByPosition(ctx context.Context, roundNumber, position int64) (*entities.Entrant, error) {
	for _, e := range r.data.entrants[r.raffleID] {
		if e.RoundNumber == roundNumber && e.Position == position {
			return e.Clone(), nil
		}
	}
	return nil, nil
}

func (r *entrantRepository) ListByRound(ctx context.Context, roundNumber int64) ([]*entities.Entrant, error) {
	entrants := make([]*entities.Entrant, 0)
	for _, e := range r.data.entrants[r.raffleID] {
		if e.RoundNumber == roundNumber {
			entrants = append(entrants, e.Clone())
		}
	}
	sort.Slice(entrants, func(i, j int) bool { return entrants[i].Position < entrants[j].Position })
	return entrants, nil
}

func (r *entrantRepository) CountByRound(ctx context.Context, roundNumber int64) (int64, error) {
	var count int64
	for _, e := range r.data.entrants[r.raffleID] {
		if e.RoundNumber == roundNumber {
			count++
		}
	}
	return count, nil
}

type randomnessRequestRepository struct {
	data     *storeData
	raffleID int64
}

func (r *randomnessRequestRepository) requests() map[string]*entities.RandomnessRequest {
	byID, ok := r.data.requests[r.raffleID]
	if !ok {
		byID = make(map[string]*entities.RandomnessRequest)
		r.data.requests[r.raffleID] = byID
	}
	return byID
}

func (r *randomnessRequestRepository) Create(ctx context.Context, request *entities.RandomnessRequest) error {
	if err := r.data.checkWritable(); err != nil {
		return err
	}
	key := request.RequestID.String()
	if _, exists := r.requests()[key]; exists {
		return fmt.Errorf("randomness request %s already exists", key)
	}
	request.RaffleID = r.raffleID
	r.requests()[key] = request.Clone()
	return nil
}

func (r *randomnessRequestRepository) GetByID(ctx context.Context, requestID *big.Int) (*entities.RandomnessRequest, error) {
	request, ok := r.data.requests[r.raffleID][requestID.String()]
	if !ok {
		return nil, nil
	}
	return request.Clone(), nil
}

func (r *randomnessRequestRepository) Update(ctx context.Context, request *entities.RandomnessRequest) error {
	if err := r.data.checkWritable(); err != nil {
		return err
	}
	key := request.RequestID.String()
	if _, exists := r.requests()[key]; !exists {
		return fmt.Errorf("randomness request %s not found", key)
	}
	r.requests()[key] = request.Clone()
	return nil
}

func (r *randomnessRequestRepository) ListPending(ctx context.Context) ([]*entities.RandomnessRequest, error) {
	pending := make([]*entities.RandomnessRequest, 0)
	for _, request := range r.data.requests[r.raffleID] {
		if request.IsPending() {
			pending = append(pending, request.Clone())
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].RequestedAt.Before(pending[j].RequestedAt) })
	return pending, nil
}

func (r *randomnessRequestRepository) GetMaxRequestID(ctx context.Context) (*big.Int, error) {
	var maxID *big.Int
	for _, byID := range r.data.requests {
		for _, request := range byID {
			if maxID == nil || request.RequestID.Cmp(maxID) > 0 {
				maxID = request.RequestID
			}
		}
	}
	if maxID == nil {
		return nil, nil
	}
	return new(big.Int).Set(maxID), nil
}

type drawRepository struct {
	data     *storeData
	raffleID int64
}

func (r *drawRepository) Create(ctx context.Context, draw *entities.DrawResult) error {
	if err := r.data.checkWritable(); err != nil {
		return err
	}
	if existing, _ := r.GetByRound(ctx, draw.RoundNumber); existing != nil {
		return fmt.Errorf("draw for round %d already recorded", draw.RoundNumber)
	}
	draw.ID = r.data.nextDrawID
	draw.RaffleID = r.raffleID
	r.data.nextDrawID++
	r.data.draws[r.raffleID] = append(r.data.draws[r.raffleID], draw.Clone())
	return nil
}

func (r *drawRepository) GetRecent(ctx context.Context, limit int) ([]*entities.DrawResult, error) {
	all := r.data.draws[r.raffleID]
	draws := make([]*entities.DrawResult, 0, len(all))
	for _, d := range all {
		draws = append(draws, d.Clone())
	}
	sort.Slice(draws, func(i, j int) bool { return draws[i].RoundNumber > draws[j].RoundNumber })
	if limit >= 0 && len(draws) > limit {
		draws = draws[:limit]
	}
	return draws, nil
}

func (r *drawRepository) GetByRound(ctx context.Context, roundNumber int64) (*entities.DrawResult, error) {
	for _, d := range r.data.draws[r.raffleID] {
		if d.RoundNumber == roundNumber {
			return d.Clone(), nil
		}
	}
	return nil, nil
}

type accountRepository struct {
	data *storeData
	now  func() time.Time
}

func (r *accountRepository) Get(ctx context.Context, address common.Address) (*entities.Account, error) {
	account, ok := r.data.accounts[address]
	if !ok {
		return nil, nil
	}
	return account.Clone(), nil
}

func (r *accountRepository) GetForUpdate(ctx context.Context, address common.Address) (*entities.Account, error) {
	return r.Get(ctx, address)
}

func (r *accountRepository) Create(ctx context.Context, account *entities.Account) error {
	if err := r.data.checkWritable(); err != nil {
		return err
	}
	if _, exists := r.data.accounts[account.Address]; exists {
		return fmt.Errorf("account %s already exists", account.Address.Hex())
	}
	r.data.accounts[account.Address] = account.Clone()
	return nil
}

func (r *accountRepository) UpdateBalance(ctx context.Context, address common.Address, balance *big.Int) error {
	if err := r.data.checkWritable(); err != nil {
		return err
	}
	account, ok := r.data.accounts[address]
	if !ok {
		return fmt.Errorf("account %s not found", address.Hex())
	}
	account.Balance = new(big.Int).Set(balance)
	account.UpdatedAt = r.now()
	return nil
}

func (r *accountRepository) SetPayoutsBlocked(ctx context.Context, address common.Address, blocked bool) error {
	if err := r.data.checkWritable(); err != nil {
		return err
	}
	account, ok := r.data.accounts[address]
	if !ok {
		account = entities.NewAccount(address, r.now())
		r.data.accounts[address] = account
	}
	account.PayoutsBlocked = blocked
	account.UpdatedAt = r.now()
	return nil
}

type balanceHistoryRepository struct {
	data *storeData
	now  func() time.Time
}

func (r *balanceHistoryRepository) Record(ctx context.Context, history *entities.BalanceHistory) error {
	if err := r.data.checkWritable(); err != nil {
		return err
	}
	history.ID = r.data.nextHistoryID
	if history.CreatedAt.IsZero() {
		history.CreatedAt = r.now()
	}
	r.data.nextHistoryID++
	r.data.history = append(r.data.history, history.Clone())
	return nil
}

func (r *balanceHistoryRepository) GetByAddress(ctx context.Context, address common.Address, limit int) ([]*entities.BalanceHistory, error) {
	histories := make([]*entities.BalanceHistory, 0)
	for i := len(r.data.history) - 1; i >= 0 && len(histories) < limit; i-- {
		if r.data.history[i].Address == address {
			histories = append(histories, r.data.history[i].Clone())
		}
	}
	return histories, nil
}
