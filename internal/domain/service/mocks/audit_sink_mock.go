package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/turtacn/mfagate/internal/domain/models"
)

type MockAuditSink struct {
	mock.Mock
}

func (m *MockAuditSink) Publish(ctx context.Context, event *models.AuditEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockCodeUsageTracker struct {
	mock.Mock
}

func (m *MockCodeUsageTracker) MarkUsed(ctx context.Context, username, code string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, username, code, ttl)
	return args.Bool(0), args.Error(1)
}

type MockCodeAttemptLimiter struct {
	mock.Mock
}

func (m *MockCodeAttemptLimiter) Allow(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockCodeAttemptLimiter) Reset(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}

type MockCodeValidator struct {
	mock.Mock
}

func (m *MockCodeValidator) Validate(code string, secret []byte, at time.Time) (bool, error) {
	args := m.Called(code, secret, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockCodeValidator) KeyURI(account string, secret []byte) (string, error) {
	args := m.Called(account, secret)
	return args.String(0), args.Error(1)
}

func (m *MockCodeValidator) ValidityWindow() time.Duration {
	args := m.Called()
	return args.Get(0).(time.Duration)
}
