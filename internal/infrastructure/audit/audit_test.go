package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/turtacn/mfagate/internal/domain/models"
	"github.com/turtacn/mfagate/internal/domain/service/mocks"
	"github.com/turtacn/mfagate/pkg/constants"
	"github.com/turtacn/mfagate/pkg/logger"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func newEvent() *models.AuditEvent {
	return models.NewAuditEvent(constants.AuditEventVerificationAccepted, "alice", models.DecisionAccept, "push-approved").
		WithContextInfo("req-1", "trace-1")
}

func TestKafkaProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaProducer(w, "audit-key", logger.NewNoopLogger())

	event := newEvent()
	require.NoError(t, p.Publish(context.Background(), event))
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "alice", string(msg.Key))

	var decoded models.AuditEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.EventID, decoded.EventID)
	assert.Equal(t, models.DecisionAccept, decoded.Decision)

	require.Len(t, msg.Headers, 1)
	assert.Equal(t, signatureHeader, msg.Headers[0].Key)
	assert.True(t, Verify(msg.Value, string(msg.Headers[0].Value), "audit-key"))
	assert.False(t, Verify(msg.Value, string(msg.Headers[0].Value), "other-key"))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaProducer_Unsigned(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaProducer(w, "", logger.NewNoopLogger())

	require.NoError(t, p.Publish(context.Background(), newEvent()))
	assert.Empty(t, w.messages[0].Headers)
}

func TestKafkaProducer_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newKafkaProducer(w, "", logger.NewNoopLogger())

	assert.Error(t, p.Publish(context.Background(), newEvent()))
}

func TestGormSink_Publish(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sink := NewGormSink(db)
	require.NoError(t, sink.AutoMigrate())

	require.NoError(t, sink.Publish(context.Background(), newEvent()))
	require.NoError(t, sink.Publish(context.Background(), newEvent().WithMetadata(map[string]int{"polls": 3})))

	n, err := sink.CountByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestMultiSink_PublishesToAll(t *testing.T) {
	first := new(mocks.MockAuditSink)
	second := new(mocks.MockAuditSink)
	first.On("Publish", mock.Anything, mock.Anything).Return(errors.New("unavailable"))
	second.On("Publish", mock.Anything, mock.Anything).Return(nil)

	err := NewMultiSink(first, second, NewLoggerSink(logger.NewNoopLogger())).Publish(context.Background(), newEvent())
	assert.Error(t, err)
	first.AssertExpectations(t)
	second.AssertExpectations(t)
}
