// Package errors defines custom error types and error handling utilities for the mfagate service.
// This package provides structured error types that map to stable error codes and HTTP status codes.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Code is a stable, machine-readable error code
type Code string

const (
	CodeInvalidRequest          Code = "invalid_request"
	CodeInvalidCode             Code = "invalid_code"
	CodeInsufficientCredentials Code = "insufficient_credentials"
	CodeUnsupported             Code = "unsupported"
	CodeMalformedSecret         Code = "malformed_secret"
	CodeRemoteUnavailable       Code = "remote_unavailable"
	CodeNotFound                Code = "not_found"
	CodeNoServiceAccount        Code = "no_service_account"
	CodeServiceUnavailable      Code = "service_unavailable"
	CodeInternal                Code = "internal_error"
)

// ================================================================================
// Base Error Interface
// ================================================================================

// MFAError represents a structured error with additional metadata
type MFAError interface {
	error

	// Code returns the stable error code
	Code() Code

	// HTTPStatus returns the HTTP status code
	HTTPStatus() int

	// Description returns a human-readable description
	Description() string

	// Unwrap returns the underlying error for error chain support
	Unwrap() error

	// WithCause adds a cause error to the error chain
	WithCause(cause error) MFAError

	// WithMetadata adds additional context metadata
	WithMetadata(key string, value interface{}) MFAError

	// Metadata returns all metadata
	Metadata() map[string]interface{}
}

// ================================================================================
// Base Error Implementation
// ================================================================================

type baseError struct {
	code        Code
	httpStatus  int
	description string
	message     string
	cause       error
	metadata    map[string]interface{}
}

// Error implements the error interface
func (e *baseError) Error() string {
	msg := e.message
	if msg == "" {
		msg = e.description
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

func (e *baseError) Code() Code {
	return e.code
}

func (e *baseError) HTTPStatus() int {
	return e.httpStatus
}

func (e *baseError) Description() string {
	return e.description
}

func (e *baseError) Unwrap() error {
	return e.cause
}

// Is matches any MFAError carrying the same code, so errors.Is works against the sentinels below.
func (e *baseError) Is(target error) bool {
	t, ok := target.(*baseError)
	if !ok {
		return false
	}
	return t.code == e.code
}

// WithCause returns a copy of the error with cause attached; sentinels are never mutated.
func (e *baseError) WithCause(cause error) MFAError {
	cp := e.clone()
	cp.cause = cause
	return cp
}

// WithMetadata returns a copy of the error with key set in its metadata.
func (e *baseError) WithMetadata(key string, value interface{}) MFAError {
	cp := e.clone()
	cp.metadata[key] = value
	return cp
}

func (e *baseError) Metadata() map[string]interface{} {
	return e.metadata
}

func (e *baseError) clone() *baseError {
	md := make(map[string]interface{}, len(e.metadata)+1)
	for k, v := range e.metadata {
		md[k] = v
	}
	return &baseError{
		code:        e.code,
		httpStatus:  e.httpStatus,
		description: e.description,
		message:     e.message,
		cause:       e.cause,
		metadata:    md,
	}
}

// ================================================================================
// Error Constructor
// ================================================================================

// NewError creates a new MFAError with the specified parameters
func NewError(code Code, httpStatus int, description string, message string) MFAError {
	return &baseError{
		code:        code,
		httpStatus:  httpStatus,
		description: description,
		message:     message,
		metadata:    make(map[string]interface{}),
	}
}

// ================================================================================
// Sentinels
// ================================================================================

var (
	// ErrAttributeStorageUnsupported is returned by secret stores that cannot persist attributes
	// because the backing store is read-only or the caller lacks permission.
	ErrAttributeStorageUnsupported = NewError(CodeUnsupported, http.StatusNotImplemented,
		"The identity store cannot persist second-factor attributes for this user.", "")

	// ErrMalformedSecret marks a stored secret that cannot be decoded.
	ErrMalformedSecret = NewError(CodeMalformedSecret, http.StatusInternalServerError,
		"The stored one-time-code secret is not valid base32.", "")

	// ErrInvalidCode is the terminal rejection of a submitted code.
	ErrInvalidCode = NewError(CodeInvalidCode, http.StatusForbidden,
		"The provided one-time code is not valid.", "")

	// ErrInsufficientCredentials signals that more input is needed before login can continue.
	ErrInsufficientCredentials = NewError(CodeInsufficientCredentials, http.StatusUnauthorized,
		"Additional credentials are required before login can continue.", "")

	// ErrRemoteUnavailable marks a failed call to the remote verification service.
	ErrRemoteUnavailable = NewError(CodeRemoteUnavailable, http.StatusBadGateway,
		"The remote verification service is unavailable.", "")

	// ErrNoServiceAccount is returned for token management calls when no service account is configured.
	ErrNoServiceAccount = NewError(CodeNoServiceAccount, http.StatusNotImplemented,
		"No service account is configured for remote token management.", "")

	// ErrNotFound marks a missing record.
	ErrNotFound = NewError(CodeNotFound, http.StatusNotFound, "The requested resource was not found.", "")

	// ErrServiceUnavailable marks an infrastructure fault that prevents a decision.
	ErrServiceUnavailable = NewError(CodeServiceUnavailable, http.StatusServiceUnavailable,
		"The verification service is temporarily unable to decide this attempt.", "")

	// ErrInvalidConfig marks a configuration that failed validation.
	ErrInvalidConfig = NewError(CodeInvalidRequest, http.StatusInternalServerError, "Invalid configuration.", "")
)

// ErrInvalidRequest creates an invalid_request error
func ErrInvalidRequest(message string) MFAError {
	return NewError(CodeInvalidRequest, http.StatusBadRequest,
		"The request is missing a required parameter or is otherwise malformed.", message)
}

// ErrMissingRequiredParameter creates a missing required parameter error
func ErrMissingRequiredParameter(paramName string) MFAError {
	return ErrInvalidRequest(fmt.Sprintf("Missing required parameter: %s", paramName)).
		WithMetadata("parameter", paramName)
}

// Wrap attaches cause to a copy of target
func Wrap(cause error, target MFAError) MFAError {
	return target.WithCause(cause)
}

// ================================================================================
// Error Validation Utilities
// ================================================================================

// AsMFAError attempts to extract an MFAError from the chain
func AsMFAError(err error) (MFAError, bool) {
	var mfaErr MFAError
	if stderrors.As(err, &mfaErr) {
		return mfaErr, true
	}
	return nil, false
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// New returns a plain error; kept so callers need a single errors import
func New(text string) error {
	return stderrors.New(text)
}

// ================================================================================
// Error Response Builder
// ================================================================================

// ErrorResponse represents the JSON structure for error responses
type ErrorResponse struct {
	Error            string                 `json:"error"`
	ErrorDescription string                 `json:"error_description"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// ToErrorResponse converts any error to an ErrorResponse and its HTTP status
func ToErrorResponse(err error) (*ErrorResponse, int) {
	if mfaErr, ok := AsMFAError(err); ok {
		return &ErrorResponse{
			Error:            string(mfaErr.Code()),
			ErrorDescription: mfaErr.Description(),
			Metadata:         mfaErr.Metadata(),
		}, mfaErr.HTTPStatus()
	}
	return &ErrorResponse{
		Error:            string(CodeInternal),
		ErrorDescription: "An unexpected error occurred",
	}, http.StatusInternalServerError
}

//Personal.AI order the ending
