package service

import (
	"context"
	"time"

	"github.com/turtacn/mfagate/internal/domain/models"
)

// ValidationResult is the outcome of a remote code validation or push trigger.
// ValidationResult 表示远程验证码校验或推送触发的结果。
type ValidationResult struct {
	// TypeMatchedLocally is true when a one-time-code token of the requested type accepted the code.
	// TypeMatchedLocally 为 true 表示请求类型的一次性码令牌已接受该验证码。
	TypeMatchedLocally bool
	// TriggeredPush is true when the remote side started an out-of-band challenge.
	// TriggeredPush 为 true 表示远程端已发起带外挑战。
	TriggeredPush bool
	// TransactionID correlates the triggered challenge with later polls.
	// TransactionID 用于将已触发的挑战与后续轮询关联。
	TransactionID string
	// TokenType is the remote token type that answered.
	TokenType string
}

//go:generate mockery --name RemoteVerifier --output mocks --outpkg mocks
// RemoteVerifier defines the interface to a remote push-capable verification service.
// RemoteVerifier 定义了远程推送验证服务的接口。
type RemoteVerifier interface {
	// Enabled reports whether a remote service is configured. When false every other method is skipped.
	// Enabled 报告是否配置了远程服务。
	Enabled() bool

	// EnrollmentTokenCount returns how many tokens the remote side holds for username.
	// EnrollmentTokenCount 返回远程端为用户持有的令牌数量。
	EnrollmentTokenCount(ctx context.Context, username string) (int, error)

	// RolloutSecret asks the remote side to generate a token of tokenType and returns its base32 secret.
	// An empty secret means the rollout produced no usable material.
	// RolloutSecret 请求远程端生成指定类型的令牌并返回其 base32 密钥。
	RolloutSecret(ctx context.Context, username, tokenType string) (string, error)

	// Validate submits code (possibly empty) for username, which may trigger a push challenge.
	// Validate 为用户提交验证码（可能为空），可能触发推送挑战。
	Validate(ctx context.Context, username, code string) (*ValidationResult, error)

	// PollTransaction reports whether the challenge identified by transactionID has been approved.
	// PollTransaction 报告由 transactionID 标识的挑战是否已获批准。
	PollTransaction(ctx context.Context, transactionID string) (bool, error)
}

//go:generate mockery --name CodeValidator --output mocks --outpkg mocks
// CodeValidator validates one-time codes locally and renders enrollment URIs.
// CodeValidator 在本地校验一次性码并生成注册 URI。
type CodeValidator interface {
	// Validate reports whether code is valid for secret at time at.
	Validate(code string, secret []byte, at time.Time) (bool, error)

	// KeyURI renders the otpauth URI for account and secret.
	KeyURI(account string, secret []byte) (string, error)

	// ValidityWindow is how long an accepted code stays acceptable, used to size replay records.
	ValidityWindow() time.Duration
}

//go:generate mockery --name CodeUsageTracker --output mocks --outpkg mocks
// CodeUsageTracker records locally accepted codes so they cannot be replayed.
// CodeUsageTracker 记录已在本地接受的验证码以防止重放。
type CodeUsageTracker interface {
	// MarkUsed records code for username. It returns false when the code was already recorded.
	// MarkUsed 记录用户的验证码；若该验证码已被记录则返回 false。
	MarkUsed(ctx context.Context, username, code string, ttl time.Duration) (bool, error)
}

//go:generate mockery --name CodeAttemptLimiter --output mocks --outpkg mocks
// CodeAttemptLimiter bounds how many codes a user may submit within a window.
type CodeAttemptLimiter interface {
	// Allow consumes one attempt for username and reports whether it was within the limit.
	Allow(ctx context.Context, username string) (bool, error)
	// Reset restores the full attempt budget of username.
	Reset(ctx context.Context, username string) error
}

//go:generate mockery --name AuditSink --output mocks --outpkg mocks
// AuditSink defines the interface for publishing verification audit events.
// AuditSink 定义了用于发布验证审计事件的接口。
type AuditSink interface {
	// Publish records an audit event.
	// Publish 记录审计事件。
	Publish(ctx context.Context, event *models.AuditEvent) error
}
