package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/mfagate/internal/application/dto"
	"github.com/turtacn/mfagate/internal/domain/models"
	"github.com/turtacn/mfagate/internal/domain/repository"
	domainService "github.com/turtacn/mfagate/internal/domain/service"
	"github.com/turtacn/mfagate/pkg/constants"
	"github.com/turtacn/mfagate/pkg/errors"
	"github.com/turtacn/mfagate/pkg/logger"
)

// Reasons attached to verification outcomes.
const (
	ReasonAnonymous          = "anonymous"
	ReasonUnsupported        = "unsupported"
	ReasonEnrollmentRequired = "enrollment-required"
	ReasonPushApproved       = "push-approved"
	ReasonPushTimedOut       = "push-timed-out"
	ReasonPushConsumed       = "push-consumed"
	ReasonRemoteCodeAccepted = "remote-code-accepted"
	ReasonLocalCodeAccepted  = "local-code-accepted"
	ReasonCodeReplayed       = "code-replayed"
	ReasonConfirmationNeeded = "confirmation-required"
	ReasonCodeNeeded         = "code-required"
	ReasonInvalidCode        = "invalid-code"
	ReasonTooManyAttempts    = "too-many-attempts"
)

var tracer = otel.Tracer("mfagate/application")

// VerificationService defines the interface of the second-factor decision engine
type VerificationService interface {
	// Verify decides a single verification attempt for an already authenticated user.
	// Only infrastructure faults are returned as errors; every expected condition is an outcome.
	Verify(ctx context.Context, user *dto.AuthenticatedUser) (*dto.VerificationOutcome, error)
}

// verificationServiceImpl holds no per-user state; the transaction marker is threaded through each call.
type verificationServiceImpl struct {
	store     repository.SecretStore
	remote    domainService.RemoteVerifier
	keys      KeyProvisioningService
	poller    TransactionPoller
	validator domainService.CodeValidator
	usage     domainService.CodeUsageTracker
	limiter   domainService.CodeAttemptLimiter
	fields    *dto.ChallengeFieldFactory
	audit     domainService.AuditSink
	logger    logger.Logger
	metrics   domainService.Metrics
	now       func() time.Time
}

// NewVerificationService creates a new instance of VerificationService
func NewVerificationService(
	store repository.SecretStore,
	remote domainService.RemoteVerifier,
	keys KeyProvisioningService,
	poller TransactionPoller,
	validator domainService.CodeValidator,
	usage domainService.CodeUsageTracker,
	limiter domainService.CodeAttemptLimiter,
	fields *dto.ChallengeFieldFactory,
	audit domainService.AuditSink,
	log logger.Logger,
	metrics domainService.Metrics,
) VerificationService {
	if metrics == nil {
		metrics = domainService.NoopMetrics{}
	}
	return &verificationServiceImpl{
		store:     store,
		remote:    remote,
		keys:      keys,
		poller:    poller,
		validator: validator,
		usage:     usage,
		limiter:   limiter,
		fields:    fields,
		audit:     audit,
		logger:    log.WithComponent("verification"),
		metrics:   metrics,
		now:       time.Now,
	}
}

// Verify implements VerificationService
func (s *verificationServiceImpl) Verify(ctx context.Context, user *dto.AuthenticatedUser) (*dto.VerificationOutcome, error) {
	start := s.now()
	ctx, span := tracer.Start(ctx, "mfa.verify")
	defer span.End()

	outcome, err := s.verify(ctx, user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.RecordVerification("error", "infrastructure", time.Since(start))
		return nil, err
	}

	span.SetAttributes(
		attribute.String("mfa.decision", string(outcome.Decision)),
		attribute.String("mfa.reason", outcome.Reason),
	)
	s.metrics.RecordVerification(string(outcome.Decision), outcome.Reason, time.Since(start))
	if outcome.Reason != ReasonAnonymous {
		s.publish(ctx, user.Identifier, outcome)
	}
	return outcome, nil
}

func (s *verificationServiceImpl) verify(ctx context.Context, user *dto.AuthenticatedUser) (*dto.VerificationOutcome, error) {
	// 1. Anonymous identities pass through
	if user.IsAnonymous() {
		return dto.Accepted(ReasonAnonymous), nil
	}
	username := user.Identifier
	log := s.logger.WithFields(logger.Fields{"username": username})

	// 2. Derive the enrollment status for this attempt
	enrollment := s.enrollmentStatus(ctx, username)
	remoteEnabled := enrollment.RemoteEnabled()

	// 3. Obtain the secret; none means the feature is a no-op for this user
	secret, tx, err := s.keys.ObtainSecret(ctx, username, enrollment)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrServiceUnavailable)
	}
	if secret == nil {
		return dto.Accepted(ReasonUnsupported), nil
	}

	// 4. Extract the submitted code
	code := user.Code()

	// 5. Unfinished enrollment is handled before any code is evaluated
	if enrollment.NeedsEnrollment() {
		field, err := s.fields.EnrollmentField(secret)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrServiceUnavailable)
		}
		return dto.NeedMoreInput(ReasonEnrollmentRequired, field), nil
	}

	// 6. Every submitted code is charged against the attempt budget
	if code != "" && !s.allowAttempt(ctx, username) {
		log.Warn(ctx, "Code attempt limit exceeded")
		return dto.Rejected(ReasonTooManyAttempts), nil
	}

	// 7. Remote branch
	if remoteEnabled {
		// 7a. Synchronous push resolution
		if code == "" && tx.IsPending() {
			return s.resolvePush(ctx, secret, tx)
		}

		// 7b. Timed-out carry-over
		freshInput := false
		if tx.IsTimedOut() {
			tx = models.NoTransaction()
			if err := s.persist(ctx, secret, tx); err != nil {
				return nil, err
			}
			freshInput = code == ""
		}

		// 7c. Remote validation, possibly triggering a new push
		if !freshInput {
			result, err := s.remote.Validate(ctx, username, code)
			if err != nil {
				// 远程校验失败时旧的推送事务不再可信
				log.Warn(ctx, "Remote validation unavailable, falling back to local validation")
				remoteEnabled = false
				tx = models.NoTransaction()
				if err := s.persist(ctx, secret, tx); err != nil {
					return nil, err
				}
			} else {
				switch {
				case result.TypeMatchedLocally:
					tx = models.ResolvedTransaction()
				case result.TriggeredPush && result.TransactionID != "":
					tx = models.PendingTransaction(result.TransactionID)
				default:
					tx = models.NoTransaction()
				}

				// 7d. Resolved in this pass
				if tx.IsResolved() {
					return s.accept(ctx, secret, models.NoTransaction(), ReasonRemoteCodeAccepted)
				}
				if err := s.persist(ctx, secret, tx); err != nil {
					return nil, err
				}
			}
		}
	}

	// 8. No code: ask for confirmation of a pending push or for a code
	if code == "" {
		if remoteEnabled && tx.IsPending() {
			return dto.NeedMoreInput(ReasonConfirmationNeeded, s.fields.ConfirmationField()), nil
		}
		return dto.NeedMoreInput(ReasonCodeNeeded, s.fields.CodeField()), nil
	}

	// Local validation runs only when no remote validator answered this attempt.
	if !remoteEnabled {
		return s.validateLocally(ctx, secret, code)
	}

	// 9. The submitted code was not accepted
	log.Info(ctx, "Submitted code rejected by remote validator")
	return dto.Rejected(ReasonInvalidCode), nil
}

// allowAttempt reports true when no limiter is configured or the limiter fails.
func (s *verificationServiceImpl) allowAttempt(ctx context.Context, username string) bool {
	if s.limiter == nil {
		return true
	}
	ok, err := s.limiter.Allow(ctx, username)
	if err != nil {
		s.logger.Warn(ctx, "Attempt limiter failed, allowing code", logger.String("username", username))
		return true
	}
	return ok
}

func (s *verificationServiceImpl) enrollmentStatus(ctx context.Context, username string) models.EnrollmentStatus {
	if s.remote == nil || !s.remote.Enabled() {
		return models.NoRemoteService()
	}
	n, err := s.remote.EnrollmentTokenCount(ctx, username)
	if errors.Is(err, errors.ErrNoServiceAccount) {
		// codes and push still go to the remote service, only token management is unavailable
		return models.NoServiceAccount()
	}
	if err != nil {
		s.logger.Warn(ctx, "Token lookup failed, remote verification disabled for this attempt",
			logger.String("username", username))
		return models.RemoteUnreachable()
	}
	return models.EnrollmentFromTokenCount(n)
}

// resolvePush polls the stored pending transaction. Approval is consumed with a compare-and-swap so
// that only one attempt can accept it.
func (s *verificationServiceImpl) resolvePush(ctx context.Context, secret *models.OneTimeSecret, tx models.TransactionState) (*dto.VerificationOutcome, error) {
	result, err := s.poller.PollForCompletion(ctx, secret.Username, tx)
	if err != nil {
		return nil, err
	}
	switch result {
	case PollTimedOut:
		return dto.Rejected(ReasonPushTimedOut), nil
	case PollSuperseded:
		s.logger.Info(ctx, "Push transaction was replaced by another attempt", logger.String("username", secret.Username))
		return dto.NeedMoreInput(ReasonPushConsumed, s.fields.CodeField()), nil
	}

	swapped, err := s.store.CompareAndSwapTransaction(ctx, secret.Username, tx, models.NoTransaction())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrServiceUnavailable)
	}
	if !swapped {
		s.logger.Warn(ctx, "Approved push transaction was already consumed", logger.String("username", secret.Username))
		return dto.NeedMoreInput(ReasonPushConsumed, s.fields.CodeField()), nil
	}
	return s.accept(ctx, secret, models.NoTransaction(), ReasonPushApproved)
}

// validateLocally checks code against the stored secret. Acceptance clears any transaction marker.
func (s *verificationServiceImpl) validateLocally(ctx context.Context, secret *models.OneTimeSecret, code string) (*dto.VerificationOutcome, error) {
	if s.validator == nil {
		return dto.Rejected(ReasonInvalidCode), nil
	}
	ok, err := s.validator.Validate(code, secret.Secret, s.now())
	if err != nil || !ok {
		return dto.Rejected(ReasonInvalidCode), nil
	}

	if s.usage != nil {
		fresh, err := s.usage.MarkUsed(ctx, secret.Username, code, s.validator.ValidityWindow())
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrServiceUnavailable)
		}
		if !fresh {
			s.logger.Warn(ctx, "Replayed one-time code", logger.String("username", secret.Username))
			return dto.Rejected(ReasonCodeReplayed), nil
		}
	}
	return s.accept(ctx, secret, models.NoTransaction(), ReasonLocalCodeAccepted)
}

// accept marks the secret confirmed and persists it together with tx.
func (s *verificationServiceImpl) accept(ctx context.Context, secret *models.OneTimeSecret, tx models.TransactionState, reason string) (*dto.VerificationOutcome, error) {
	if secret.Confirm() {
		s.logger.Info(ctx, "One-time-code secret confirmed", logger.String("username", secret.Username))
	}
	if err := s.persist(ctx, secret, tx); err != nil {
		return nil, err
	}
	return dto.Accepted(reason), nil
}

// persist writes secret and tx. A store that cannot hold attributes is not an error here.
func (s *verificationServiceImpl) persist(ctx context.Context, secret *models.OneTimeSecret, tx models.TransactionState) error {
	err := s.store.Set(ctx, secret.Username, models.NewUserAttributes(secret, tx))
	if err == nil {
		return nil
	}
	if errors.Is(err, errors.ErrAttributeStorageUnsupported) {
		s.logger.Info(ctx, "User attributes are read-only, state not persisted", logger.String("username", secret.Username))
		return nil
	}
	s.logger.Error(ctx, "Failed to store user attributes", err, logger.String("username", secret.Username))
	return errors.Wrap(err, errors.ErrServiceUnavailable)
}

func (s *verificationServiceImpl) publish(ctx context.Context, username string, outcome *dto.VerificationOutcome) {
	if s.audit == nil {
		return
	}
	eventType := constants.AuditEventChallengeIssued
	switch outcome.Decision {
	case models.DecisionAccept:
		eventType = constants.AuditEventVerificationAccepted
	case models.DecisionReject:
		eventType = constants.AuditEventVerificationRejected
	}

	event := models.NewAuditEvent(eventType, username, outcome.Decision, outcome.Reason)
	requestID, _ := ctx.Value(constants.ContextKeyRequestID).(string)
	event.WithContextInfo(requestID, traceID(ctx))
	if err := s.audit.Publish(ctx, event); err != nil {
		s.logger.Warn(ctx, "Failed to publish audit event", logger.String("username", username))
	}
}

func traceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

//Personal.AI order the ending
