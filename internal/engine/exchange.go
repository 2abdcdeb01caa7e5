package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/conebot/conebot-go/internal/domain"
	"github.com/conebot/conebot-go/internal/logger"
)

// Exchange converts amount of one currency into another for the same user,
// through their configured rates relative to the guild's base currency.
// The received amount rounds down to hundredths - the smallest unit
// balances are kept in - so the operation never manufactures value; the
// sub-unit remainder is forfeited, not refunded. Debit and credit commit
// together or not at all.
func (s *service) Exchange(ctx context.Context, guildID, userID, fromCurr, toCurr string, amount float64) (*ExchangeResult, error) {
	log := logger.FromContext(ctx)
	log.Info(LogMsgExchangeCalled, "guild", guildID, "user", userID, "from", fromCurr, "to", toCurr, "amount", amount)

	if amount <= 0 {
		return nil, domain.NewValidationError("amount", "must be positive")
	}
	if fromCurr == toCurr {
		return nil, domain.NewValidationError("toCurrency", "cannot exchange a currency with itself")
	}

	from, err := s.currency(ctx, guildID, fromCurr)
	if err != nil {
		return nil, err
	}
	to, err := s.currency(ctx, guildID, toCurr)
	if err != nil {
		return nil, err
	}
	if !from.Exchangeable() {
		return nil, domain.NewValidationError("fromCurrency", "has no exchange rate configured")
	}
	if !to.Exchangeable() {
		return nil, domain.NewValidationError("toCurrency", "has no exchange rate configured")
	}

	received := math.Floor(amount*from.Rate()/to.Rate()*100) / 100
	if received < 0.01 {
		return nil, domain.NewValidationError("amount", "too small to yield the target currency's smallest unit")
	}

	fromKey := domain.BalanceKey(guildID, userID, fromCurr)
	toKey := domain.BalanceKey(guildID, userID, toCurr)

	var result *ExchangeResult
	err = s.withRetry(ctx, OpExchange, func(ctx context.Context) error {
		release, err := s.acquire(ctx, fromKey, toKey)
		if err != nil {
			return err
		}
		defer release()

		source, err := s.balance(ctx, guildID, userID, fromCurr)
		if err != nil {
			return err
		}
		dest, err := s.balance(ctx, guildID, userID, toCurr)
		if err != nil {
			return err
		}

		if source.Amount < amount {
			return fmt.Errorf("%w: have %v, need %v", domain.ErrInsufficientBalance, source.Amount, amount)
		}
		source.Amount -= amount
		dest.Amount += received

		err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
			if err := s.commitBalance(ctx, source); err != nil {
				return err
			}
			return s.commitBalance(ctx, dest)
		})
		if err != nil {
			s.invalidateOnConflict(err, fromKey, toKey)
			return err
		}

		s.putBalance(source)
		s.putBalance(dest)
		result = &ExchangeResult{
			Debited:     amount,
			Credited:    received,
			FromBalance: source.Amount,
			ToBalance:   dest.Amount,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
