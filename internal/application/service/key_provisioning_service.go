// Package service provides application-level services that orchestrate domain services and repositories
package service

import (
	"context"

	"github.com/turtacn/mfagate/internal/domain/models"
	"github.com/turtacn/mfagate/internal/domain/repository"
	domainService "github.com/turtacn/mfagate/internal/domain/service"
	"github.com/turtacn/mfagate/pkg/constants"
	"github.com/turtacn/mfagate/pkg/errors"
	"github.com/turtacn/mfagate/pkg/logger"
)

// KeyProvisioningService defines the interface for obtaining the one-time-code secret of a user
type KeyProvisioningService interface {
	// ObtainSecret returns the secret of username together with the stored transaction marker.
	// A nil secret means the feature is unsupported for this user and the login should proceed unmodified.
	ObtainSecret(ctx context.Context, username string, enrollment models.EnrollmentStatus) (*models.OneTimeSecret, models.TransactionState, error)
}

// keyProvisioningServiceImpl is the concrete implementation of KeyProvisioningService
type keyProvisioningServiceImpl struct {
	store     repository.SecretStore
	remote    domainService.RemoteVerifier
	keyLength int
	logger    logger.Logger
	metrics   domainService.Metrics
}

// NewKeyProvisioningService creates a new instance of KeyProvisioningService
func NewKeyProvisioningService(
	store repository.SecretStore,
	remote domainService.RemoteVerifier,
	keyLength int,
	log logger.Logger,
	metrics domainService.Metrics,
) KeyProvisioningService {
	if keyLength <= 0 {
		keyLength = constants.DefaultKeyLength
	}
	if metrics == nil {
		metrics = domainService.NoopMetrics{}
	}
	return &keyProvisioningServiceImpl{
		store:     store,
		remote:    remote,
		keyLength: keyLength,
		logger:    log.WithComponent("key_provisioning"),
		metrics:   metrics,
	}
}

// ObtainSecret implements KeyProvisioningService
func (s *keyProvisioningServiceImpl) ObtainSecret(ctx context.Context, username string, enrollment models.EnrollmentStatus) (*models.OneTimeSecret, models.TransactionState, error) {
	// 1. Read the stored attributes
	attrs, err := s.store.Get(ctx, username)
	if err != nil {
		s.logger.Error(ctx, "Failed to read user attributes", err, logger.String("username", username))
		return nil, models.NoTransaction(), err
	}
	tx := attrs.Transaction

	// 2. Let the remote side roll out a fresh secret while enrollment is unfinished
	if enrollment.NeedsEnrollment() && s.remote != nil && s.remote.Enabled() {
		secret := s.rollout(ctx, username, attrs)
		if secret == nil {
			if !attrs.HasSecret() {
				return s.generate(ctx, username)
			}
			secret, err = attrs.Secret(username)
			if err != nil {
				s.logger.Warn(ctx, "Stored secret is not valid base32", logger.String("username", username))
				return nil, models.NoTransaction(), nil
			}
		}
		if ok, err := s.persist(ctx, secret, tx); err != nil || !ok {
			return nil, models.NoTransaction(), err
		}
		return secret, tx, nil
	}

	// 3. Generate a secret for first-time users
	if !attrs.HasSecret() {
		return s.generate(ctx, username)
	}

	// 4. Decode the stored secret; malformed values disable the feature for this user
	secret, err := attrs.Secret(username)
	if err != nil {
		s.logger.Warn(ctx, "Stored secret is not valid base32", logger.String("username", username))
		s.logger.Debug(ctx, "Secret decode failure", logger.Any("error", err.Error()))
		return nil, models.NoTransaction(), nil
	}
	return secret, tx, nil
}

// rollout asks the remote side for secret material. nil means nothing usable came back.
func (s *keyProvisioningServiceImpl) rollout(ctx context.Context, username string, attrs *models.UserAttributes) *models.OneTimeSecret {
	material, err := s.remote.RolloutSecret(ctx, username, constants.TokenTypeTOTP)
	if err != nil {
		s.logger.Warn(ctx, "Remote token rollout failed, falling back to local secret", logger.String("username", username))
		return nil
	}
	if material == "" {
		return nil
	}
	raw, err := models.DecodeSecret(material)
	if err != nil {
		s.logger.Warn(ctx, "Remote token rollout returned malformed secret", logger.String("username", username))
		return nil
	}
	s.metrics.RecordSecretProvisioned("remote")
	return &models.OneTimeSecret{Username: username, Secret: raw, Confirmed: attrs.Confirmed}
}

func (s *keyProvisioningServiceImpl) generate(ctx context.Context, username string) (*models.OneTimeSecret, models.TransactionState, error) {
	secret, err := models.NewOneTimeSecret(username, s.keyLength)
	if err != nil {
		return nil, models.NoTransaction(), errors.Wrap(err, errors.ErrServiceUnavailable)
	}
	ok, err := s.persist(ctx, secret, models.NoTransaction())
	if err != nil || !ok {
		return nil, models.NoTransaction(), err
	}
	s.metrics.RecordSecretProvisioned("local")
	s.logger.Info(ctx, "Generated one-time-code secret", logger.String("username", username))
	return secret, models.NoTransaction(), nil
}

// persist writes secret and tx together. It reports false without error when the store cannot
// hold attributes for this user.
func (s *keyProvisioningServiceImpl) persist(ctx context.Context, secret *models.OneTimeSecret, tx models.TransactionState) (bool, error) {
	err := s.store.Set(ctx, secret.Username, models.NewUserAttributes(secret, tx))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, errors.ErrAttributeStorageUnsupported) {
		s.logger.Info(ctx, "User attributes cannot be stored, second factor disabled for user",
			logger.String("username", secret.Username))
		return false, nil
	}
	s.logger.Error(ctx, "Failed to store user attributes", err, logger.String("username", secret.Username))
	return false, err
}

//Personal.AI order the ending
