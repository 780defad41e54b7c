package service

import (
	"context"

	"github.com/turtacn/mfagate/internal/application/dto"
	"github.com/turtacn/mfagate/internal/domain/models"
	"github.com/turtacn/mfagate/internal/domain/repository"
	domainService "github.com/turtacn/mfagate/internal/domain/service"
	"github.com/turtacn/mfagate/pkg/constants"
	"github.com/turtacn/mfagate/pkg/errors"
	"github.com/turtacn/mfagate/pkg/logger"
)

// AdminService exposes operator actions on stored second-factor attributes.
type AdminService interface {
	// Status reports what is stored for username.
	Status(ctx context.Context, username string) (*dto.UserStatus, error)
	// ResetEnrollment deletes the secret and confirmation so the next attempt enrolls afresh.
	// The code attempt budget of username is restored as well.
	ResetEnrollment(ctx context.Context, username string) error
	// ClearTransaction drops a stored push transaction. It reports false when none was stored.
	ClearTransaction(ctx context.Context, username string) (bool, error)
}

type adminServiceImpl struct {
	store   repository.SecretStore
	limiter domainService.CodeAttemptLimiter
	audit   domainService.AuditSink
	logger  logger.Logger
}

// NewAdminService creates a new AdminService. limiter may be nil.
func NewAdminService(store repository.SecretStore, limiter domainService.CodeAttemptLimiter, audit domainService.AuditSink, log logger.Logger) AdminService {
	return &adminServiceImpl{
		store:   store,
		limiter: limiter,
		audit:   audit,
		logger:  log.WithComponent("admin"),
	}
}

// Status implements AdminService
func (s *adminServiceImpl) Status(ctx context.Context, username string) (*dto.UserStatus, error) {
	if username == "" {
		return nil, errors.ErrMissingRequiredParameter("username")
	}
	attrs, err := s.store.Get(ctx, username)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrServiceUnavailable)
	}
	return &dto.UserStatus{
		Username:    username,
		HasSecret:   attrs.HasSecret(),
		Confirmed:   attrs.Confirmed,
		Transaction: attrs.Transaction.String(),
	}, nil
}

// ResetEnrollment implements AdminService
func (s *adminServiceImpl) ResetEnrollment(ctx context.Context, username string) error {
	if username == "" {
		return errors.ErrMissingRequiredParameter("username")
	}
	if err := s.store.Delete(ctx, username); err != nil {
		if errors.Is(err, errors.ErrAttributeStorageUnsupported) {
			return err
		}
		return errors.Wrap(err, errors.ErrServiceUnavailable)
	}
	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, username); err != nil {
			s.logger.Warn(ctx, "Failed to reset code attempt limit", logger.String("username", username))
		}
	}

	s.logger.Info(ctx, "Enrollment reset", logger.String("username", username))
	s.publish(ctx, constants.AuditEventEnrollmentReset, username)
	return nil
}

// ClearTransaction implements AdminService
func (s *adminServiceImpl) ClearTransaction(ctx context.Context, username string) (bool, error) {
	if username == "" {
		return false, errors.ErrMissingRequiredParameter("username")
	}
	attrs, err := s.store.Get(ctx, username)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrServiceUnavailable)
	}
	if !attrs.Transaction.IsActive() {
		return false, nil
	}

	swapped, err := s.store.CompareAndSwapTransaction(ctx, username, attrs.Transaction, models.NoTransaction())
	if err != nil {
		if errors.Is(err, errors.ErrAttributeStorageUnsupported) {
			return false, err
		}
		return false, errors.Wrap(err, errors.ErrServiceUnavailable)
	}
	if swapped {
		s.logger.Info(ctx, "Push transaction cleared",
			logger.String("username", username), logger.String("transaction", attrs.Transaction.String()))
		s.publish(ctx, constants.AuditEventTransactionCleared, username)
	}
	return swapped, nil
}

func (s *adminServiceImpl) publish(ctx context.Context, eventType constants.AuditEventType, username string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Publish(ctx, models.NewAuditEvent(eventType, username, "", "admin")); err != nil {
		s.logger.Warn(ctx, "Failed to publish audit event", logger.String("username", username))
	}
}

//Personal.AI order the ending
