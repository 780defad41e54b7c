package privacyidea

import (
	"encoding/json"
	"fmt"
)

// response is the envelope of every privacyIDEA reply.
type response struct {
	Result struct {
		Status bool            `json:"status"`
		Value  json.RawMessage `json:"value"`
		Error  *apiError       `json:"error,omitempty"`
	} `json:"result"`
	Detail json.RawMessage `json:"detail"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("privacyidea error %d: %s", e.Code, e.Message)
}

type authValue struct {
	Token string `json:"token"`
}

type tokenListValue struct {
	Count  int               `json:"count"`
	Tokens []json.RawMessage `json:"tokens"`
}

type initDetail struct {
	Serial string `json:"serial"`
	OTPKey struct {
		Value    string `json:"value"`
		ValueB32 string `json:"value_b32"`
	} `json:"otpkey"`
}

type challenge struct {
	Type          string `json:"type"`
	TransactionID string `json:"transaction_id"`
	Serial        string `json:"serial"`
}

type validateDetail struct {
	Type           string      `json:"type"`
	TransactionID  string      `json:"transaction_id"`
	Message        string      `json:"message"`
	MultiChallenge []challenge `json:"multi_challenge"`
}

// triggeredTypes lists the token types that raised a challenge.
func (d *validateDetail) triggeredTypes() []string {
	types := make([]string, 0, len(d.MultiChallenge))
	for _, c := range d.MultiChallenge {
		types = append(types, c.Type)
	}
	return types
}

// statusError carries a non-2xx HTTP status.
type statusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}
