package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/conebot/conebot-go/internal/domain"
	"github.com/conebot/conebot-go/internal/logger"
	"github.com/conebot/conebot-go/internal/metrics"
)

// withRetry runs one attempt of an operation's locked critical section and
// retries it on transient failures - store write conflicts and lock
// acquisition timeouts - with capped exponential backoff. Anything else
// returns immediately. Exhausting the attempt cap surfaces
// ErrConcurrentModification for conflicts and ErrLockTimeout when the last
// attempt never got its locks.
func (s *service) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	log := logger.FromContext(ctx)
	start := time.Now()
	backoff := s.retryBackoff

	var err error
	for attempt := 0; attempt < s.retryAttempts; attempt++ {
		if attempt > 0 {
			metrics.OperationRetries.WithLabelValues(op).Inc()
			log.Warn(LogMsgCommitConflict, "operation", op, "attempt", attempt)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return fmt.Errorf("%s: %w", op, ctx.Err())
			}
			backoff *= 2
			if backoff > MaxRetryBackoff {
				backoff = MaxRetryBackoff
			}
		}

		err = fn(ctx)
		if err == nil {
			s.observe(op, start, nil)
			return nil
		}
		if !errors.Is(err, domain.ErrConflict) && !errors.Is(err, domain.ErrLockTimeout) {
			s.observe(op, start, err)
			return err
		}
	}

	log.Error(LogMsgRetriesExhausted, "operation", op, "attempts", s.retryAttempts, "error", err)
	if errors.Is(err, domain.ErrLockTimeout) {
		err = fmt.Errorf("%s: %w", op, domain.ErrLockTimeout)
	} else {
		err = fmt.Errorf("%s: %w", op, domain.ErrConcurrentModification)
	}
	s.observe(op, start, err)
	return err
}

func (s *service) observe(op string, start time.Time, err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
	}
	metrics.OperationsTotal.WithLabelValues(op, outcome).Inc()
	metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
