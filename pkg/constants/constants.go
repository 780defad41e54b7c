// Package constants defines system-wide constants for the mfagate verification service.
// This package provides type-safe constant definitions used across all modules.
package constants

import "time"

// ================================================================================
// Log Level Constants
// ================================================================================

// LogLevel represents the severity of a log entry
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelFatal
)

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey is the type used for values stored in a context.Context
type ContextKey string

const (
	// ContextKeyRequestID carries the inbound request id
	ContextKeyRequestID ContextKey = "request_id"

	// ContextKeyTraceID carries the OpenTelemetry trace id as a string
	ContextKeyTraceID ContextKey = "trace_id"

	// ContextKeyLogger carries a request-scoped logger
	ContextKeyLogger ContextKey = "logger"

	// ContextKeyUsername carries the authenticated username under verification
	ContextKeyUsername ContextKey = "username"
)

// ================================================================================
// User Attribute Names
// ================================================================================

const (
	// AttributeSecret holds the base32-encoded one-time-code secret
	AttributeSecret = "mfa-totp-key-secret"

	// AttributeConfirmed holds "true" once a code derived from the secret was accepted
	AttributeConfirmed = "mfa-totp-key-confirmed"

	// AttributeTransactionState holds the push transaction status name
	AttributeTransactionState = "mfa-transaction-state"

	// AttributeTransactionID holds the opaque push transaction id
	AttributeTransactionID = "mfa-transaction-id"
)

// AnonymousIdentifier is the identifier carried by unauthenticated users
const AnonymousIdentifier = "ANONYMOUS"

// ================================================================================
// Challenge Field Constants
// ================================================================================

const (
	// CodeParameterName is the credential parameter carrying a submitted one-time code
	CodeParameterName = "mfa-totp-code"

	// CodeFieldType is the declarative type of the challenge field
	CodeFieldType = "MFA_TOTP_CODE"

	// AuthenticatedUserHeader is the trusted header naming the first-factor identity
	AuthenticatedUserHeader = "X-Authenticated-User"
)

// Translatable message keys surfaced with verification outcomes
const (
	MessageEnrollRequired       = "MFA.INFO_ENROLL_REQUIRED"
	MessageConfirmationRequired = "MFA.INFO_CONFIRMATION_REQUIRED"
	MessageCodeRequired         = "MFA.INFO_CODE_REQUIRED"
	MessageVerificationFailed   = "MFA.INFO_VERIFICATION_FAILED"
)

// ================================================================================
// TOTP / Push Defaults
// ================================================================================

const (
	// DefaultKeyLength is the number of random bytes in a generated secret
	DefaultKeyLength = 20

	// DefaultTOTPDigits is the number of digits in a generated code
	DefaultTOTPDigits = 6

	// DefaultTOTPPeriod is the validity window of a single code
	DefaultTOTPPeriod = 30 * time.Second

	// DefaultTOTPSkew is the number of periods accepted on either side of now
	DefaultTOTPSkew = 1

	// DefaultTOTPIssuer is shown by authenticator apps next to the account name
	DefaultTOTPIssuer = "mfagate"

	// DefaultPollInterval is the spacing between two transaction polls
	DefaultPollInterval = 250 * time.Millisecond

	// DefaultPollMaxAttempts bounds the number of polls for one push transaction
	DefaultPollMaxAttempts = 120

	// TokenTypeTOTP is the remote token type requested on rollout and matched on validate
	TokenTypeTOTP = "totp"

	// TokenTypePush is the remote token type that triggers an out-of-band challenge
	TokenTypePush = "push"

	// RemoteUserAgent identifies this service to the remote verification service
	RemoteUserAgent = "mfagate"
)

// ================================================================================
// Audit Event Constants
// ================================================================================

// AuditEventType classifies audit events
type AuditEventType string

const (
	AuditEventVerificationAccepted AuditEventType = "mfa.verification.accepted"
	AuditEventVerificationRejected AuditEventType = "mfa.verification.rejected"
	AuditEventChallengeIssued      AuditEventType = "mfa.challenge.issued"
	AuditEventEnrollmentReset      AuditEventType = "mfa.enrollment.reset"
	AuditEventTransactionCleared   AuditEventType = "mfa.transaction.cleared"
)

//Personal.AI order the ending
