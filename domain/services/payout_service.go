package services

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"raffle/domain/entities"
	"raffle/domain/interfaces"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

// payoutService credits winners on the account ledger
type payoutService struct {
	accountRepo        interfaces.AccountRepository
	balanceHistoryRepo interfaces.BalanceHistoryRepository
	now                func() time.Time
}

// NewPayoutService creates a new payout service
func NewPayoutService(
	accountRepo interfaces.AccountRepository,
	balanceHistoryRepo interfaces.BalanceHistoryRepository,
	now func() time.Time,
) interfaces.PayoutService {
	if now == nil {
		now = time.Now
	}
	return &payoutService{
		accountRepo:        accountRepo,
		balanceHistoryRepo: balanceHistoryRepo,
		now:                now,
	}
}

// Transfer credits amount to the recipient's account, creating the account on first payout
func (s *payoutService) Transfer(ctx context.Context, to common.Address, amount *big.Int, metadata map[string]any) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid transfer amount %v", amount)
	}
	if amount.Sign() == 0 {
		return nil
	}

	account, err := s.accountRepo.GetForUpdate(ctx, to)
	if err != nil {
		return fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		account = entities.NewAccount(to, s.now())
		if err := s.accountRepo.Create(ctx, account); err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
	}

	if !account.CanReceive() {
		return fmt.Errorf("%w: %s", entities.ErrTransferRejected, to.Hex())
	}

	newBalance := new(big.Int).Add(account.Balance, amount)
	if err := s.accountRepo.UpdateBalance(ctx, to, newBalance); err != nil {
		return fmt.Errorf("failed to update account balance: %w", err)
	}

	history := &entities.BalanceHistory{
		Address:             to,
		BalanceBefore:       new(big.Int).Set(account.Balance),
		BalanceAfter:        newBalance,
		ChangeAmount:        new(big.Int).Set(amount),
		TransactionType:     entities.TransactionTypeRafflePayout,
		TransactionMetadata: metadata,
		CreatedAt:           s.now(),
	}
	if raffleID, ok := metadata["raffle_id"].(int64); ok {
		history.RaffleID = &raffleID
	}
	if round, ok := metadata["round_number"].(int64); ok {
		history.RoundNumber = &round
	}
	if err := history.ValidateTransaction(); err != nil {
		return fmt.Errorf("invalid balance change: %w", err)
	}
	if err := s.balanceHistoryRepo.Record(ctx, history); err != nil {
		return fmt.Errorf("failed to record balance history: %w", err)
	}

	log.WithFields(log.Fields{
		"address":    to.Hex(),
		"amount":     amount.String(),
		"oldBalance": account.Balance.String(),
		"newBalance": newBalance.String(),
	}).Debug("Credited payout")

	return nil
}

// GetBalance returns the ledger balance of an address
func (s *payoutService) GetBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	account, err := s.accountRepo.Get(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return new(big.Int), nil
	}
	return new(big.Int).Set(account.Balance), nil
}
