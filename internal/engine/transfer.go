package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/conebot/conebot-go/internal/domain"
	"github.com/conebot/conebot-go/internal/logger"
)

// Transfer moves amount of one currency from one user to another. Both
// balance rows commit together or not at all.
func (s *service) Transfer(ctx context.Context, guildID, fromUser, toUser, currName string, amount float64) (*TransferResult, error) {
	return s.transfer(ctx, OpTransfer, guildID, fromUser, toUser, currName, amount, false)
}

// Pay is the member-facing transfer; it additionally requires the currency
// to be configured as payable.
func (s *service) Pay(ctx context.Context, guildID, fromUser, toUser, currName string, amount float64) (*TransferResult, error) {
	return s.transfer(ctx, OpPay, guildID, fromUser, toUser, currName, amount, true)
}

func (s *service) transfer(ctx context.Context, op, guildID, fromUser, toUser, currName string, amount float64, requirePayable bool) (*TransferResult, error) {
	log := logger.FromContext(ctx)
	log.Info(LogMsgTransferCalled, "guild", guildID, "from", fromUser, "to", toUser, "currency", currName, "amount", amount)

	// Validation happens before any lock is taken.
	if amount <= 0 {
		return nil, domain.NewValidationError("amount", "must be positive")
	}
	if fromUser == toUser {
		return nil, domain.NewValidationError("toUser", "cannot transfer to self")
	}

	currency, err := s.currency(ctx, guildID, currName)
	if err != nil {
		return nil, err
	}
	if requirePayable && !currency.Pay {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotPayable, currName)
	}

	fromKey := domain.BalanceKey(guildID, fromUser, currName)
	toKey := domain.BalanceKey(guildID, toUser, currName)

	var result *TransferResult
	err = s.withRetry(ctx, op, func(ctx context.Context) error {
		release, err := s.acquire(ctx, fromKey, toKey)
		if err != nil {
			return err
		}
		defer release()

		from, err := s.balance(ctx, guildID, fromUser, currName)
		if err != nil {
			return err
		}
		to, err := s.balance(ctx, guildID, toUser, currName)
		if err != nil {
			return err
		}

		if from.Amount < amount {
			return fmt.Errorf("%w: have %v, need %v", domain.ErrInsufficientBalance, from.Amount, amount)
		}
		from.Amount -= amount
		to.Amount += amount

		err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
			if err := s.commitBalance(ctx, from); err != nil {
				return err
			}
			return s.commitBalance(ctx, to)
		})
		if err != nil {
			s.invalidateOnConflict(err, fromKey, toKey)
			return err
		}

		s.putBalance(from)
		s.putBalance(to)
		result = &TransferResult{FromBalance: from.Amount, ToBalance: to.Amount}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Deposit credits a single balance. Used by the chat-earn path and by
// admin grants; a negative amount is rejected, so it can never drive a
// balance below zero.
func (s *service) Deposit(ctx context.Context, guildID, userID, currName string, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, domain.NewValidationError("amount", "must be positive")
	}
	if _, err := s.currency(ctx, guildID, currName); err != nil {
		return 0, err
	}

	key := domain.BalanceKey(guildID, userID, currName)
	var newAmount float64
	err := s.withRetry(ctx, OpDeposit, func(ctx context.Context) error {
		release, err := s.acquire(ctx, key)
		if err != nil {
			return err
		}
		defer release()

		b, err := s.balance(ctx, guildID, userID, currName)
		if err != nil {
			return err
		}
		b.Amount += amount

		err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
			return s.commitBalance(ctx, b)
		})
		if err != nil {
			s.invalidateOnConflict(err, key)
			return err
		}
		s.putBalance(b)
		newAmount = b.Amount
		return nil
	})
	return newAmount, err
}

// invalidateOnConflict drops the stale cached copies that fed the failed
// compare-and-swap so the retry rereads the store.
func (s *service) invalidateOnConflict(err error, keys ...domain.Key) {
	if !errors.Is(err, domain.ErrConflict) {
		return
	}
	for _, key := range keys {
		s.cache.Invalidate(key)
	}
}
