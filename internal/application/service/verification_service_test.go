package service

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/mfagate/internal/application/dto"
	"github.com/turtacn/mfagate/internal/config"
	"github.com/turtacn/mfagate/internal/domain/models"
	domainservice "github.com/turtacn/mfagate/internal/domain/service"
	"github.com/turtacn/mfagate/internal/domain/service/mocks"
	"github.com/turtacn/mfagate/internal/infrastructure/memory"
	totpvalidator "github.com/turtacn/mfagate/internal/infrastructure/totp"
	"github.com/turtacn/mfagate/pkg/constants"
	"github.com/turtacn/mfagate/pkg/errors"
	"github.com/turtacn/mfagate/pkg/logger"
)

var (
	testSecret = []byte("12345678901234567890")
	testNow    = time.Unix(1700000000, 0)
	totpConfig = config.TOTPConfig{Issuer: "mfagate", Digits: 6, Period: 30 * time.Second, Skew: 1, KeyLength: 20}
)

type verificationFixture struct {
	store  *memory.SecretStore
	remote *mocks.MockRemoteVerifier
	audit  *mocks.MockAuditSink
	svc    *verificationServiceImpl
}

func newFixture(t *testing.T, remoteEnabled bool, maxPolls int) *verificationFixture {
	t.Helper()
	store := memory.NewSecretStore()
	remote := new(mocks.MockRemoteVerifier)
	remote.On("Enabled").Return(remoteEnabled)
	audit := new(mocks.MockAuditSink)
	audit.On("Publish", mock.Anything, mock.Anything).Return(nil)

	log := logger.NewNoopLogger()
	validator := totpvalidator.NewValidator(totpConfig)
	keys := NewKeyProvisioningService(store, remote, totpConfig.KeyLength, log, nil)
	poller := NewTransactionPoller(remote, store, time.Millisecond, maxPolls, log, nil)
	svc := NewVerificationService(store, remote, keys, poller, validator,
		memory.NewCodeUsageTracker(time.Minute), nil, dto.NewChallengeFieldFactory(totpConfig, validator),
		audit, log, nil).(*verificationServiceImpl)
	svc.now = func() time.Time { return testNow }

	return &verificationFixture{store: store, remote: remote, audit: audit, svc: svc}
}

func (f *verificationFixture) seed(t *testing.T, confirmed bool, tx models.TransactionState) {
	t.Helper()
	secret := &models.OneTimeSecret{Username: "alice", Secret: testSecret, Confirmed: confirmed}
	require.NoError(t, f.store.Set(context.Background(), "alice", models.NewUserAttributes(secret, tx)))
}

func (f *verificationFixture) stored(t *testing.T) *models.UserAttributes {
	t.Helper()
	attrs, err := f.store.Get(context.Background(), "alice")
	require.NoError(t, err)
	return attrs
}

func user(code string) *dto.AuthenticatedUser {
	creds := url.Values{}
	if code != "" {
		creds.Set(constants.CodeParameterName, code)
	}
	return &dto.AuthenticatedUser{Identifier: "alice", Credentials: creds}
}

func validCode(t *testing.T) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(models.EncodeSecret(testSecret), testNow, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

func TestVerify_AnonymousPassesThrough(t *testing.T) {
	f := newFixture(t, true, 120)

	for _, id := range []string{"", constants.AnonymousIdentifier} {
		outcome, err := f.svc.Verify(context.Background(), &dto.AuthenticatedUser{Identifier: id})
		require.NoError(t, err)
		assert.Equal(t, models.DecisionAccept, outcome.Decision)
		assert.Equal(t, ReasonAnonymous, outcome.Reason)
	}
	f.remote.AssertNotCalled(t, "EnrollmentTokenCount", mock.Anything, mock.Anything)
	f.audit.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestVerify_NewUserWithoutRemote(t *testing.T) {
	f := newFixture(t, false, 120)

	outcome, err := f.svc.Verify(context.Background(), user(""))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionNeedMoreInput, outcome.Decision)
	assert.Equal(t, constants.MessageCodeRequired, outcome.Message)
	assert.False(t, outcome.Challenge.IsEnrollment())
	assert.Equal(t, constants.CodeParameterName, outcome.Challenge.Name)

	attrs := f.stored(t)
	require.True(t, attrs.HasSecret())
	secret, err := attrs.Secret("alice")
	require.NoError(t, err)
	assert.Len(t, secret.Secret, 20)
	assert.False(t, attrs.Confirmed)
}

func TestVerify_ValidLocalCode(t *testing.T) {
	f := newFixture(t, false, 120)
	f.seed(t, true, models.NoTransaction())

	outcome, err := f.svc.Verify(context.Background(), user(validCode(t)))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionAccept, outcome.Decision)
	assert.Equal(t, ReasonLocalCodeAccepted, outcome.Reason)
	assert.True(t, f.stored(t).Confirmed)
}

func TestVerify_LocalCodeConfirmsSecret(t *testing.T) {
	f := newFixture(t, false, 120)
	f.seed(t, false, models.NoTransaction())

	outcome, err := f.svc.Verify(context.Background(), user(validCode(t)))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionAccept, outcome.Decision)
	assert.True(t, f.stored(t).Confirmed)
}

func TestVerify_ReplayedLocalCodeRejected(t *testing.T) {
	f := newFixture(t, false, 120)
	f.seed(t, true, models.NoTransaction())
	code := validCode(t)

	first, err := f.svc.Verify(context.Background(), user(code))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionAccept, first.Decision)

	second, err := f.svc.Verify(context.Background(), user(code))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionReject, second.Decision)
	assert.Equal(t, ReasonCodeReplayed, second.Reason)
}

func TestVerify_InvalidLocalCode(t *testing.T) {
	f := newFixture(t, false, 120)
	f.seed(t, true, models.NoTransaction())

	outcome, err := f.svc.Verify(context.Background(), user("000000"))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionReject, outcome.Decision)
	assert.Equal(t, constants.MessageVerificationFailed, outcome.Message)
}

func TestVerify_EnrollmentRequiredBeforeCodeCheck(t *testing.T) {
	f := newFixture(t, true, 120)
	f.remote.On("EnrollmentTokenCount", mock.Anything, "alice").Return(0, nil)
	f.remote.On("RolloutSecret", mock.Anything, "alice", constants.TokenTypeTOTP).Return("", nil)

	outcome, err := f.svc.Verify(context.Background(), user("123456"))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionNeedMoreInput, outcome.Decision)
	assert.Equal(t, constants.MessageEnrollRequired, outcome.Message)
	require.True(t, outcome.Challenge.IsEnrollment())

	attrs := f.stored(t)
	assert.Equal(t, attrs.EncodedSecret, outcome.Challenge.Enrollment.Secret)
	assert.Contains(t, outcome.Challenge.Enrollment.URI, "otpauth://totp/")
	assert.Equal(t, 6, outcome.Challenge.Enrollment.Digits)
	assert.Equal(t, 30, outcome.Challenge.Enrollment.Period)
	f.remote.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerify_EnrollmentUsesRemoteRollout(t *testing.T) {
	f := newFixture(t, true, 120)
	f.seed(t, false, models.NoTransaction())
	f.remote.On("EnrollmentTokenCount", mock.Anything, "alice").Return(0, nil)
	f.remote.On("RolloutSecret", mock.Anything, "alice", constants.TokenTypeTOTP).Return("GEZDGNBVGY3TQOJQ", nil)

	outcome, err := f.svc.Verify(context.Background(), user(""))
	require.NoError(t, err)
	require.True(t, outcome.Challenge.IsEnrollment())
	assert.Equal(t, "GEZDGNBVGY3TQOJQ", outcome.Challenge.Enrollment.Secret)
	assert.Equal(t, "GEZDGNBVGY3TQOJQ", f.stored(t).EncodedSecret)
}

func TestVerify_PushTriggeredThenApproved(t *testing.T) {
	f := newFixture(t, true, 120)
	f.seed(t, false, models.NoTransaction())
	f.remote.On("EnrollmentTokenCount", mock.Anything, "alice").Return(1, nil)
	f.remote.On("Validate", mock.Anything, "alice", "").
		Return(&domainservice.ValidationResult{TriggeredPush: true, TransactionID: "tx-1"}, nil).Once()

	// first attempt triggers the push and asks for confirmation
	outcome, err := f.svc.Verify(context.Background(), user(""))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionNeedMoreInput, outcome.Decision)
	assert.Equal(t, constants.MessageConfirmationRequired, outcome.Message)
	assert.True(t, f.stored(t).Transaction.Equal(models.PendingTransaction("tx-1")))

	// second attempt polls until the push is approved
	f.remote.On("PollTransaction", mock.Anything, "tx-1").Return(false, nil).Twice()
	f.remote.On("PollTransaction", mock.Anything, "tx-1").Return(true, nil).Once()

	outcome, err = f.svc.Verify(context.Background(), user(""))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionAccept, outcome.Decision)
	assert.Equal(t, ReasonPushApproved, outcome.Reason)

	attrs := f.stored(t)
	assert.True(t, attrs.Confirmed)
	assert.Equal(t, models.TransactionAbsent, attrs.Transaction.Status)
	f.remote.AssertNumberOfCalls(t, "PollTransaction", 3)
	f.remote.AssertNumberOfCalls(t, "Validate", 1)
}

func TestVerify_PushTimesOutThenFreshCodeRequested(t *testing.T) {
	f := newFixture(t, true, 120)
	f.seed(t, true, models.PendingTransaction("tx-1"))
	f.remote.On("EnrollmentTokenCount", mock.Anything, "alice").Return(1, nil)
	f.remote.On("PollTransaction", mock.Anything, "tx-1").Return(false, nil)

	outcome, err := f.svc.Verify(context.Background(), user(""))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionReject, outcome.Decision)
	assert.Equal(t, ReasonPushTimedOut, outcome.Reason)
	assert.True(t, f.stored(t).Transaction.IsTimedOut())
	f.remote.AssertNumberOfCalls(t, "PollTransaction", 120)

	outcome, err = f.svc.Verify(context.Background(), user(""))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionNeedMoreInput, outcome.Decision)
	assert.Equal(t, constants.MessageCodeRequired, outcome.Message)
	assert.Equal(t, models.TransactionAbsent, f.stored(t).Transaction.Status)
	f.remote.AssertNumberOfCalls(t, "PollTransaction", 120)
	f.remote.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerify_TimedOutTransactionWithCodeIsValidatedRemotely(t *testing.T) {
	f := newFixture(t, true, 120)
	f.seed(t, true, models.TimedOutTransaction())
	f.remote.On("EnrollmentTokenCount", mock.Anything, "alice").Return(1, nil)
	f.remote.On("Validate", mock.Anything, "alice", "654321").
		Return(&domainservice.ValidationResult{TypeMatchedLocally: true, TokenType: "totp"}, nil)

	outcome, err := f.svc.Verify(context.Background(), user("654321"))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionAccept, outcome.Decision)
	assert.Equal(t, ReasonRemoteCodeAccepted, outcome.Reason)
	assert.Equal(t, models.TransactionAbsent, f.stored(t).Transaction.Status)
}

func TestVerify_CodeDuringPendingPushGoesToRemote(t *testing.T) {
	f := newFixture(t, true, 120)
	f.seed(t, true, models.PendingTransaction("tx-1"))
	f.remote.On("EnrollmentTokenCount", mock.Anything, "alice").Return(1, nil)
	f.remote.On("Validate", mock.Anything, "alice", "111111").Return(&domainservice.ValidationResult{}, nil)

	outcome, err := f.svc.Verify(context.Background(), user("111111"))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionReject, outcome.Decision)
	assert.Equal(t, ReasonInvalidCode, outcome.Reason)
	assert.Equal(t, models.TransactionAbsent, f.stored(t).Transaction.Status)
	f.remote.AssertNotCalled(t, "PollTransaction", mock.Anything, mock.Anything)
}

func TestVerify_ValidLocalCodeRejectedWhileRemoteAnswers(t *testing.T) {
	f := newFixture(t, true, 120)
	f.seed(t, true, models.NoTransaction())
	code := validCode(t)
	f.remote.On("EnrollmentTokenCount", mock.Anything, "alice").Return(1, nil)
	f.remote.On("Validate", mock.Anything, "alice", code).Return(&domainservice.ValidationResult{}, nil)

	outcome, err := f.svc.Verify(context.Background(), user(code))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionReject, outcome.Decision)
}

func TestVerify_RemoteValidateFailureFallsBackToLocal(t *testing.T) {
	f := newFixture(t, true, 120)
	f.seed(t, true, models.NoTransaction())
	code := validCode(t)
	f.remote.On("EnrollmentTokenCount", mock.Anything, "alice").Return(1, nil)
	f.remote.On("Validate", mock.Anything, "alice", code).Return(nil, errors.ErrRemoteUnavailable)

	outcome, err := f.svc.Verify(context.Background(), user(code))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionAccept, outcome.Decision)
	assert.Equal(t, ReasonLocalCodeAccepted, outcome.Reason)
}

func TestVerify_RemoteValidateFailureClearsStalePush(t *testing.T) {
	f := newFixture(t, true, 120)
	f.seed(t, true, models.PendingTransaction("tx-old"))
	code := validCode(t)
	f.remote.On("EnrollmentTokenCount", mock.Anything, "alice").Return(1, nil)
	f.remote.On("Validate", mock.Anything, "alice", code).Return(nil, errors.ErrRemoteUnavailable).Once()

	outcome, err := f.svc.Verify(context.Background(), user(code))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionAccept, outcome.Decision)
	assert.Equal(t, ReasonLocalCodeAccepted, outcome.Reason)
	assert.Equal(t, models.TransactionAbsent, f.stored(t).Transaction.Status)

	// the next code-less attempt starts over instead of polling the old transaction
	f.remote.On("Validate", mock.Anything, "alice", "").Return(&domainservice.ValidationResult{}, nil).Once()
	outcome, err = f.svc.Verify(context.Background(), user(""))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionNeedMoreInput, outcome.Decision)
	assert.Equal(t, ReasonCodeNeeded, outcome.Reason)
	f.remote.AssertNotCalled(t, "PollTransaction", mock.Anything, mock.Anything)
}

func TestVerify_RemoteValidateFailureWithBadCodeClearsStalePush(t *testing.T) {
	f := newFixture(t, true, 120)
	f.seed(t, true, models.PendingTransaction("tx-old"))
	f.remote.On("EnrollmentTokenCount", mock.Anything, "alice").Return(1, nil)
	f.remote.On("Validate", mock.Anything, "alice", "000000").Return(nil, errors.ErrRemoteUnavailable)

	outcome, err := f.svc.Verify(context.Background(), user("000000"))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionReject, outcome.Decision)
	assert.Equal(t, models.TransactionAbsent, f.stored(t).Transaction.Status)
}

func TestVerify_NoServiceAccountStillUsesRemoteValidation(t *testing.T) {
	f := newFixture(t, true, 120)
	f.remote.On("EnrollmentTokenCount", mock.Anything, "alice").Return(0, errors.ErrNoServiceAccount)
	f.remote.On("Validate", mock.Anything, "alice", "").
		Return(&domainservice.ValidationResult{TriggeredPush: true, TransactionID: "tx-1"}, nil).Once()

	outcome, err := f.svc.Verify(context.Background(), user(""))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionNeedMoreInput, outcome.Decision)
	assert.Equal(t, ReasonConfirmationNeeded, outcome.Reason)
	assert.False(t, outcome.Challenge.IsEnrollment())
	assert.True(t, f.stored(t).Transaction.Equal(models.PendingTransaction("tx-1")))
	f.remote.AssertNotCalled(t, "RolloutSecret", mock.Anything, mock.Anything, mock.Anything)

	f.remote.On("Validate", mock.Anything, "alice", "654321").
		Return(&domainservice.ValidationResult{TypeMatchedLocally: true, TokenType: "totp"}, nil).Once()
	outcome, err = f.svc.Verify(context.Background(), user("654321"))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionAccept, outcome.Decision)
	assert.Equal(t, ReasonRemoteCodeAccepted, outcome.Reason)
}

func TestVerify_PushReplacedWhilePollingAsksForCode(t *testing.T) {
	f := newFixture(t, true, 3)
	f.seed(t, true, models.PendingTransaction("tx-1"))
	f.remote.On("EnrollmentTokenCount", mock.Anything, "alice").Return(1, nil)
	// another attempt stores a new push transaction during the wait
	f.remote.On("PollTransaction", mock.Anything, "tx-1").Return(false, nil).Run(func(mock.Arguments) {
		f.seed(t, true, models.PendingTransaction("tx-2"))
	})

	outcome, err := f.svc.Verify(context.Background(), user(""))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionNeedMoreInput, outcome.Decision)
	assert.Equal(t, ReasonPushConsumed, outcome.Reason)
	assert.True(t, f.stored(t).Transaction.Equal(models.PendingTransaction("tx-2")))
	f.remote.AssertNumberOfCalls(t, "PollTransaction", 3)
}

func TestVerify_TokenLookupFailureDisablesRemote(t *testing.T) {
	f := newFixture(t, true, 120)
	f.seed(t, true, models.PendingTransaction("tx-1"))
	f.remote.On("EnrollmentTokenCount", mock.Anything, "alice").Return(0, errors.ErrRemoteUnavailable)

	outcome, err := f.svc.Verify(context.Background(), user(""))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionNeedMoreInput, outcome.Decision)
	assert.Equal(t, constants.MessageCodeRequired, outcome.Message)
	f.remote.AssertNotCalled(t, "PollTransaction", mock.Anything, mock.Anything)
	f.remote.AssertNotCalled(t, "RolloutSecret", mock.Anything, mock.Anything, mock.Anything)

	outcome, err = f.svc.Verify(context.Background(), user(validCode(t)))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionAccept, outcome.Decision)
}

func TestVerify_ApprovedPushConsumedOnce(t *testing.T) {
	f := newFixture(t, true, 120)
	f.seed(t, false, models.PendingTransaction("tx-1"))
	f.remote.On("EnrollmentTokenCount", mock.Anything, "alice").Return(1, nil)

	// both attempts are held inside the poll until each has read the pending marker
	var barrier sync.WaitGroup
	barrier.Add(2)
	f.remote.On("PollTransaction", mock.Anything, "tx-1").Return(true, nil).Run(func(mock.Arguments) {
		barrier.Done()
		barrier.Wait()
	}).Twice()

	outcomes := make([]*dto.VerificationOutcome, 2)
	var wg sync.WaitGroup
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome, err := f.svc.Verify(context.Background(), user(""))
			assert.NoError(t, err)
			outcomes[i] = outcome
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, o := range outcomes {
		require.NotNil(t, o)
		if o.Decision == models.DecisionAccept {
			accepted++
			continue
		}
		assert.Equal(t, ReasonPushConsumed, o.Reason)
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, models.TransactionAbsent, f.stored(t).Transaction.Status)
}

func TestVerify_ReadOnlyStoreAcceptsUnmodified(t *testing.T) {
	f := newFixture(t, false, 120)
	f.store.SetReadOnly(true)

	outcome, err := f.svc.Verify(context.Background(), user(""))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionAccept, outcome.Decision)
	assert.Equal(t, ReasonUnsupported, outcome.Reason)
}

func TestVerify_MalformedSecretTreatedAsAbsent(t *testing.T) {
	f := newFixture(t, false, 120)
	require.NoError(t, f.store.Set(context.Background(), "alice", &models.UserAttributes{EncodedSecret: "not*base32!"}))

	outcome, err := f.svc.Verify(context.Background(), user("123456"))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionAccept, outcome.Decision)
	assert.Equal(t, ReasonUnsupported, outcome.Reason)
}

func TestVerify_StoreReadFailureIsServiceUnavailable(t *testing.T) {
	store := new(mocks.MockSecretStore)
	store.On("Get", mock.Anything, "alice").Return(nil, errors.ErrServiceUnavailable)
	remote := new(mocks.MockRemoteVerifier)
	remote.On("Enabled").Return(false)

	log := logger.NewNoopLogger()
	keys := NewKeyProvisioningService(store, remote, 20, log, nil)
	svc := NewVerificationService(store, remote, keys, nil, nil, nil, nil, nil, nil, log, nil)

	_, err := svc.Verify(context.Background(), user(""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrServiceUnavailable))
}

func TestVerify_PublishesAuditEvent(t *testing.T) {
	f := newFixture(t, false, 120)
	f.seed(t, true, models.NoTransaction())

	_, err := f.svc.Verify(context.Background(), user("000000"))
	require.NoError(t, err)

	f.audit.AssertCalled(t, "Publish", mock.Anything, mock.MatchedBy(func(e *models.AuditEvent) bool {
		return e.Username == "alice" &&
			e.EventType == constants.AuditEventVerificationRejected &&
			e.Decision == models.DecisionReject
	}))
}

func TestVerify_AttemptLimitRejectsBeforeValidation(t *testing.T) {
	f := newFixture(t, false, 120)
	f.seed(t, true, models.NoTransaction())
	limiter := new(mocks.MockCodeAttemptLimiter)
	limiter.On("Allow", mock.Anything, "alice").Return(false, nil)
	f.svc.limiter = limiter

	outcome, err := f.svc.Verify(context.Background(), user(validCode(t)))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionReject, outcome.Decision)
	assert.Equal(t, ReasonTooManyAttempts, outcome.Reason)
	assert.True(t, f.stored(t).Transaction.Equal(models.NoTransaction()))
}

func TestVerify_AttemptLimitIgnoresEmptyCode(t *testing.T) {
	f := newFixture(t, false, 120)
	f.seed(t, true, models.NoTransaction())
	limiter := new(mocks.MockCodeAttemptLimiter)
	f.svc.limiter = limiter

	outcome, err := f.svc.Verify(context.Background(), user(""))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionNeedMoreInput, outcome.Decision)
	limiter.AssertNotCalled(t, "Allow", mock.Anything, mock.Anything)
}

func TestVerify_AttemptLimiterFailureAllowsCode(t *testing.T) {
	f := newFixture(t, false, 120)
	f.seed(t, true, models.NoTransaction())
	limiter := new(mocks.MockCodeAttemptLimiter)
	limiter.On("Allow", mock.Anything, "alice").Return(false, errors.ErrServiceUnavailable)
	f.svc.limiter = limiter

	outcome, err := f.svc.Verify(context.Background(), user(validCode(t)))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionAccept, outcome.Decision)
	assert.Equal(t, ReasonLocalCodeAccepted, outcome.Reason)
}
