package dto

import (
	"net/url"
	"strings"

	"github.com/turtacn/mfagate/internal/domain/models"
	"github.com/turtacn/mfagate/pkg/constants"
)

// AuthenticatedUser 已通过第一因素认证的用户及其提交的凭据
type AuthenticatedUser struct {
	Identifier  string
	Credentials url.Values
}

// IsAnonymous reports whether the identity is unauthenticated.
func (u *AuthenticatedUser) IsAnonymous() bool {
	return u.Identifier == "" || u.Identifier == constants.AnonymousIdentifier
}

// Code returns the submitted one-time code, or "" when none was sent.
func (u *AuthenticatedUser) Code() string {
	if u.Credentials == nil {
		return ""
	}
	return strings.TrimSpace(u.Credentials.Get(constants.CodeParameterName))
}

// VerificationOutcome 单次验证尝试的结果
type VerificationOutcome struct {
	Decision models.Decision
	// Reason is a short machine-readable cause, recorded in audit events and metrics.
	Reason string
	// Message is the translatable key shown to the user.
	Message   string
	Challenge *ChallengeField
}

// Accepted 通过
func Accepted(reason string) *VerificationOutcome {
	return &VerificationOutcome{Decision: models.DecisionAccept, Reason: reason}
}

// Rejected 拒绝（验证码无效）
func Rejected(reason string) *VerificationOutcome {
	return &VerificationOutcome{
		Decision: models.DecisionReject,
		Reason:   reason,
		Message:  constants.MessageVerificationFailed,
	}
}

// NeedMoreInput 需要更多输入
func NeedMoreInput(reason string, field *ChallengeField) *VerificationOutcome {
	return &VerificationOutcome{
		Decision:  models.DecisionNeedMoreInput,
		Reason:    reason,
		Message:   field.Message,
		Challenge: field,
	}
}

// VerifyRequest 验证请求
type VerifyRequest struct {
	Username string `json:"username" form:"username"`
	Code     string `json:"mfa-totp-code" form:"mfa-totp-code"`
}

// VerifyResponse 验证响应
type VerifyResponse struct {
	Decision models.Decision `json:"decision"`
	Message  string          `json:"message,omitempty"`
	Expected *ChallengeField `json:"expected,omitempty"`
	TraceID  string          `json:"trace_id,omitempty"`
}

// NewVerifyResponse converts an outcome into its wire form.
func NewVerifyResponse(outcome *VerificationOutcome, traceID string) *VerifyResponse {
	return &VerifyResponse{
		Decision: outcome.Decision,
		Message:  outcome.Message,
		Expected: outcome.Challenge,
		TraceID:  traceID,
	}
}

// UserStatus 管理命令展示的用户状态
type UserStatus struct {
	Username    string `json:"username"`
	HasSecret   bool   `json:"has_secret"`
	Confirmed   bool   `json:"confirmed"`
	Transaction string `json:"transaction"`
}

//Personal.AI order the ending
