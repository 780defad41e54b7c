package models

import (
	"strconv"

	"github.com/turtacn/mfagate/pkg/constants"
)

// UserAttributes is the second-factor portion of a user record as persisted by a secret store.
// The secret, its confirmation flag and the transaction marker are always written together.
type UserAttributes struct {
	// EncodedSecret is the base32 secret; empty when the user has no secret yet.
	EncodedSecret string
	Confirmed     bool
	Transaction   TransactionState
}

// HasSecret reports whether a secret is stored.
func (a *UserAttributes) HasSecret() bool {
	return a != nil && a.EncodedSecret != ""
}

// ToMap flattens the attributes into the named key/value pairs stored on the user record.
func (a *UserAttributes) ToMap() map[string]string {
	return map[string]string{
		constants.AttributeSecret:           a.EncodedSecret,
		constants.AttributeConfirmed:        strconv.FormatBool(a.Confirmed),
		constants.AttributeTransactionState: a.Transaction.Status.String(),
		constants.AttributeTransactionID:    a.Transaction.ID,
	}
}

// UserAttributesFromMap rebuilds attributes from stored key/value pairs. Missing keys read as zero values.
func UserAttributesFromMap(m map[string]string) *UserAttributes {
	confirmed, _ := strconv.ParseBool(m[constants.AttributeConfirmed])
	status := ParseTransactionStatus(m[constants.AttributeTransactionState])
	tx := TransactionState{Status: status}
	if status == TransactionPending {
		tx.ID = m[constants.AttributeTransactionID]
	}
	return &UserAttributes{
		EncodedSecret: m[constants.AttributeSecret],
		Confirmed:     confirmed,
		Transaction:   tx,
	}
}

// Secret decodes the stored secret into a OneTimeSecret for username.
func (a *UserAttributes) Secret(username string) (*OneTimeSecret, error) {
	raw, err := DecodeSecret(a.EncodedSecret)
	if err != nil {
		return nil, err
	}
	return &OneTimeSecret{Username: username, Secret: raw, Confirmed: a.Confirmed}, nil
}

// NewUserAttributes builds the attribute set written for secret and tx.
func NewUserAttributes(secret *OneTimeSecret, tx TransactionState) *UserAttributes {
	return &UserAttributes{
		EncodedSecret: secret.Encoded(),
		Confirmed:     secret.Confirmed,
		Transaction:   tx,
	}
}
