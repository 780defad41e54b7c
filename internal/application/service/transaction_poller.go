package service

import (
	"context"
	"time"

	"github.com/turtacn/mfagate/internal/domain/models"
	"github.com/turtacn/mfagate/internal/domain/repository"
	domainService "github.com/turtacn/mfagate/internal/domain/service"
	"github.com/turtacn/mfagate/pkg/constants"
	"github.com/turtacn/mfagate/pkg/logger"
)

// PollResult is how a wait for push approval ended.
type PollResult int

const (
	// PollTimedOut means the attempt budget was spent and the stored transaction is now timed-out.
	PollTimedOut PollResult = iota
	// PollApproved means the remote service reported approval.
	PollApproved
	// PollSuperseded means the stored transaction no longer matched the polled one when the budget ran out,
	// or there was nothing pending to poll.
	PollSuperseded
)

func (r PollResult) String() string {
	switch r {
	case PollApproved:
		return "approved"
	case PollSuperseded:
		return "superseded"
	default:
		return "timed-out"
	}
}

// TransactionPoller waits for out-of-band approval of a pending push transaction
type TransactionPoller interface {
	// PollForCompletion polls until the transaction is approved or the attempt budget is spent.
	// On exhaustion the stored transaction is marked timed-out, unless another attempt changed it first.
	// Cancelling ctx stops the wait and returns ctx.Err() without touching the stored state.
	PollForCompletion(ctx context.Context, username string, tx models.TransactionState) (PollResult, error)
}

type transactionPollerImpl struct {
	remote      domainService.RemoteVerifier
	store       repository.SecretStore
	interval    time.Duration
	maxAttempts int
	logger      logger.Logger
	metrics     domainService.Metrics
}

// NewTransactionPoller creates a poller issuing at most maxAttempts polls spaced interval apart.
func NewTransactionPoller(
	remote domainService.RemoteVerifier,
	store repository.SecretStore,
	interval time.Duration,
	maxAttempts int,
	log logger.Logger,
	metrics domainService.Metrics,
) TransactionPoller {
	if interval <= 0 {
		interval = constants.DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = constants.DefaultPollMaxAttempts
	}
	if metrics == nil {
		metrics = domainService.NoopMetrics{}
	}
	return &transactionPollerImpl{
		remote:      remote,
		store:       store,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      log.WithComponent("transaction_poller"),
		metrics:     metrics,
	}
}

// PollForCompletion implements TransactionPoller
func (p *transactionPollerImpl) PollForCompletion(ctx context.Context, username string, tx models.TransactionState) (PollResult, error) {
	if !tx.IsPending() {
		return PollSuperseded, nil
	}

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			p.metrics.RecordPoll(attempt-1, false)
			return PollTimedOut, ctx.Err()
		case <-timer.C:
		}

		approved, err := p.remote.PollTransaction(ctx, tx.ID)
		if err != nil {
			p.logger.Debug(ctx, "Transaction poll failed", logger.Int("attempt", attempt), logger.Any("error", err.Error()))
		}
		if err == nil && approved {
			p.metrics.RecordPoll(attempt, true)
			p.logger.Info(ctx, "Push transaction approved",
				logger.String("username", username), logger.Int("attempts", attempt))
			return PollApproved, nil
		}
		timer.Reset(p.interval)
	}
	p.metrics.RecordPoll(p.maxAttempts, false)

	// 超时只覆盖仍是本次轮询的那笔事务
	swapped, err := p.store.CompareAndSwapTransaction(ctx, username, tx, models.TimedOutTransaction())
	switch {
	case err != nil:
		p.logger.Error(ctx, "Failed to mark push transaction timed out", err, logger.String("username", username))
	case !swapped:
		p.logger.Info(ctx, "Push transaction changed while polling", logger.String("username", username))
		return PollSuperseded, nil
	default:
		p.logger.Warn(ctx, "Push transaction timed out",
			logger.String("username", username), logger.Int("attempts", p.maxAttempts))
	}
	return PollTimedOut, nil
}

//Personal.AI order the ending
