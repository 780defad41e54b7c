// Package logger provides structured logging capabilities for the mfagate service.
// The zap-backed implementation lives in internal/infrastructure/monitoring; this package
// holds the interface, field helpers, and a global instance.
package logger

import (
	"context"
	"strings"
	"time"
)

// ================================================================================
// Logger Interface
// ================================================================================

// Fields is a set of key-value pairs attached to a log entry
type Fields map[string]interface{}

// Logger defines the interface for structured logging
type Logger interface {
	// Debug logs a debug message
	Debug(ctx context.Context, msg string, fields ...Fields)

	// Info logs an informational message
	Info(ctx context.Context, msg string, fields ...Fields)

	// Warn logs a warning message
	Warn(ctx context.Context, msg string, fields ...Fields)

	// Error logs an error message
	Error(ctx context.Context, msg string, err error, fields ...Fields)

	// Fatal logs a fatal message and exits the application
	Fatal(ctx context.Context, msg string, err error, fields ...Fields)

	// WithFields creates a new logger with additional fields
	WithFields(fields Fields) Logger

	// WithComponent creates a new logger for a specific component
	WithComponent(component string) Logger

	// ForContext returns the request-scoped logger stored in ctx, or the receiver
	ForContext(ctx context.Context) Logger
}

// ================================================================================
// Field Helpers
// ================================================================================

// String creates a single-entry string field set
func String(key, value string) Fields {
	return Fields{key: value}
}

// Int creates a single-entry integer field set
func Int(key string, value int) Fields {
	return Fields{key: value}
}

// Bool creates a single-entry boolean field set
func Bool(key string, value bool) Fields {
	return Fields{key: value}
}

// Duration creates a single-entry duration field set
func Duration(key string, value time.Duration) Fields {
	return Fields{key: value.String()}
}

// Any creates a single-entry field set with any value
func Any(key string, value interface{}) Fields {
	return Fields{key: value}
}

// ================================================================================
// Sanitization
// ================================================================================

var sensitiveKeys = []string{
	"password",
	"secret",
	"token",
	"otp",
	"authorization",
}

// Sanitize masks values whose key names sensitive material
func Sanitize(key string, value interface{}) interface{} {
	keyLower := strings.ToLower(key)
	for _, sensitiveKey := range sensitiveKeys {
		if strings.Contains(keyLower, sensitiveKey) {
			if str, ok := value.(string); ok && len(str) > 0 {
				return maskString(str)
			}
			if value == nil {
				return nil
			}
			return "***REDACTED***"
		}
	}
	return value
}

// maskString partially masks a string value
func maskString(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:2] + "***" + s[len(s)-2:]
}

// ================================================================================
// Global Logger Instance
// ================================================================================

var globalLogger Logger = NewNoopLogger()

// SetGlobalLogger sets the global logger instance
func SetGlobalLogger(l Logger) {
	globalLogger = l
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() Logger {
	return globalLogger
}

//Personal.AI order the ending
