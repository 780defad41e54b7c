package dto

import (
	"github.com/turtacn/mfagate/internal/config"
	"github.com/turtacn/mfagate/internal/domain/models"
	"github.com/turtacn/mfagate/internal/domain/service"
	"github.com/turtacn/mfagate/pkg/constants"
)

// EnrollmentMaterial 注册材料，用于在认证器应用中扫描或手动录入密钥
type EnrollmentMaterial struct {
	Secret    string `json:"secret"`
	URI       string `json:"uri"`
	Issuer    string `json:"issuer"`
	Account   string `json:"account"`
	Algorithm string `json:"algorithm"`
	Digits    int    `json:"digits"`
	Period    int    `json:"period"`
}

// ChallengeField 挑战字段：需要更多输入时返回给调用方的声明式字段描述
type ChallengeField struct {
	Name       string              `json:"name"`
	Type       string              `json:"type"`
	Message    string              `json:"message"`
	Enrollment *EnrollmentMaterial `json:"enrollment,omitempty"`
}

// IsEnrollment reports whether the field exposes a secret for onboarding.
func (f *ChallengeField) IsEnrollment() bool {
	return f != nil && f.Enrollment != nil
}

// ChallengeFieldFactory builds the fields surfaced with need-more-input outcomes.
type ChallengeFieldFactory struct {
	totp config.TOTPConfig
	uris service.CodeValidator
}

// NewChallengeFieldFactory creates a factory rendering enrollment URIs through uris.
func NewChallengeFieldFactory(cfg config.TOTPConfig, uris service.CodeValidator) *ChallengeFieldFactory {
	return &ChallengeFieldFactory{totp: cfg, uris: uris}
}

// CodeField asks for an initial one-time code.
func (f *ChallengeFieldFactory) CodeField() *ChallengeField {
	return f.field(constants.MessageCodeRequired)
}

// ConfirmationField asks the user to confirm a pending push, or to type a code instead.
func (f *ChallengeFieldFactory) ConfirmationField() *ChallengeField {
	return f.field(constants.MessageConfirmationRequired)
}

// EnrollmentField exposes secret so the user can complete enrollment.
func (f *ChallengeFieldFactory) EnrollmentField(secret *models.OneTimeSecret) (*ChallengeField, error) {
	uri, err := f.uris.KeyURI(secret.Username, secret.Secret)
	if err != nil {
		return nil, err
	}

	field := f.field(constants.MessageEnrollRequired)
	field.Enrollment = &EnrollmentMaterial{
		Secret:    secret.Encoded(),
		URI:       uri,
		Issuer:    f.totp.Issuer,
		Account:   secret.Username,
		Algorithm: "SHA1",
		Digits:    f.totp.Digits,
		Period:    int(f.totp.Period.Seconds()),
	}
	return field, nil
}

func (f *ChallengeFieldFactory) field(message string) *ChallengeField {
	return &ChallengeField{
		Name:    constants.CodeParameterName,
		Type:    constants.CodeFieldType,
		Message: message,
	}
}

//Personal.AI order the ending
