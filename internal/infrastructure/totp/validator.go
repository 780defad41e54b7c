// Package totp validates RFC 6238 one-time codes locally and renders otpauth enrollment URIs.
//
// Dependencies:
//   - github.com/pquerna/otp: TOTP code generation and verification
//
// Thread Safety:
//   - Validator is immutable after construction and safe for concurrent use
package totp

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/turtacn/mfagate/internal/config"
	"github.com/turtacn/mfagate/internal/domain/models"
	"github.com/turtacn/mfagate/internal/domain/service"
)

// Validator checks codes with SHA1 and the configured digits, period and skew.
type Validator struct {
	issuer string
	digits otp.Digits
	period time.Duration
	skew   uint
}

var _ service.CodeValidator = (*Validator)(nil)

// NewValidator creates a Validator from configuration.
func NewValidator(cfg config.TOTPConfig) *Validator {
	return &Validator{
		issuer: cfg.Issuer,
		digits: otp.Digits(cfg.Digits),
		period: cfg.Period,
		skew:   cfg.Skew,
	}
}

func (v *Validator) opts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    uint(v.period / time.Second),
		Skew:      v.skew,
		Digits:    v.digits,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// Validate reports whether code matches secret within the skew window around at.
// Malformed input (wrong length, non-digits) is a mismatch, not an error.
func (v *Validator) Validate(code string, secret []byte, at time.Time) (bool, error) {
	code = strings.TrimSpace(code)
	if code == "" || len(secret) == 0 {
		return false, nil
	}

	ok, err := totp.ValidateCustom(code, models.EncodeSecret(secret), at, v.opts())
	if err != nil {
		if errors.Is(err, otp.ErrValidateInputInvalidLength) {
			return false, nil
		}
		return false, fmt.Errorf("validate code: %w", err)
	}
	return ok, nil
}

// KeyURI renders the otpauth:// URI an authenticator app scans during enrollment.
func (v *Validator) KeyURI(account string, secret []byte) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      v.issuer,
		AccountName: account,
		Period:      uint(v.period / time.Second),
		Secret:      secret,
		Digits:      v.digits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("generate key uri: %w", err)
	}
	return key.URL(), nil
}

// ValidityWindow is the span during which one code is accepted: the current period plus skew on both sides.
func (v *Validator) ValidityWindow() time.Duration {
	return v.period * time.Duration(2*v.skew+1)
}

// Issuer returns the issuer shown by authenticator apps.
func (v *Validator) Issuer() string {
	return v.issuer
}

// Digits returns the code length.
func (v *Validator) Digits() int {
	return int(v.digits)
}

// Period returns the validity of one code.
func (v *Validator) Period() time.Duration {
	return v.period
}
