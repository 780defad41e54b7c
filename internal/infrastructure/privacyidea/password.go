package privacyidea

import "context"

// PasswordSource yields the service-account password used to obtain an auth token.
type PasswordSource interface {
	Password(ctx context.Context) (string, error)
}

// StaticPassword is a password taken verbatim from configuration.
type StaticPassword string

func (p StaticPassword) Password(context.Context) (string, error) {
	return string(p), nil
}
