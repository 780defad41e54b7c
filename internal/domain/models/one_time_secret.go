package models

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
)

// SecretEncoding is the encoding of persisted secrets: RFC 4648 base32, standard alphabet, padded.
var SecretEncoding = base32.StdEncoding

// OneTimeSecret is the enrollment material used to derive one-time codes for a user.
type OneTimeSecret struct {
	// Username is the stable identifier of the owning user.
	Username string
	// Secret is the raw binary key.
	Secret []byte
	// Confirmed becomes true the first time a code derived from Secret, or a remote push, is accepted.
	Confirmed bool
}

// NewOneTimeSecret creates an unconfirmed secret of length random bytes.
func NewOneTimeSecret(username string, length int) (*OneTimeSecret, error) {
	if length <= 0 {
		return nil, fmt.Errorf("invalid secret length %d", length)
	}
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}
	return &OneTimeSecret{Username: username, Secret: b}, nil
}

// Encoded returns the persisted representation of the secret.
func (s *OneTimeSecret) Encoded() string {
	return EncodeSecret(s.Secret)
}

// Confirm marks the secret as confirmed. It reports whether the flag changed.
func (s *OneTimeSecret) Confirm() bool {
	if s.Confirmed {
		return false
	}
	s.Confirmed = true
	return true
}

// EncodeSecret encodes raw key material for storage.
func EncodeSecret(secret []byte) string {
	return SecretEncoding.EncodeToString(secret)
}

// DecodeSecret decodes a stored secret. Lower-case input and missing padding are tolerated, since
// remote rollouts hand back unpadded values.
func DecodeSecret(encoded string) ([]byte, error) {
	s := strings.ToUpper(strings.TrimSpace(encoded))
	if n := len(s) % 8; n != 0 {
		s += strings.Repeat("=", 8-n)
	}
	b, err := SecretEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("empty secret")
	}
	return b, nil
}
