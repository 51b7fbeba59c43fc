package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

type publisherMock struct {
	mock.Mock
}

func (m *publisherMock) Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	args := m.Called(ctx, routingKey, event, headers)
	return args.Error(0)
}

func TestAuditEmitterEmit(t *testing.T) {
	pub := &publisherMock{}
	pub.On("Publish", mock.Anything, "audit.chat-core", mock.AnythingOfType("telemetry.AuditEnvelope"), map[string]string{"x-request-id": "req-1"}).Return(nil).Once()

	NewAuditEmitter(pub, "audit.chat-core", "chat-core", "test").Emit(context.Background(), "INFO", "room.delete", "room deleted", "req-1", 12)

	pub.AssertExpectations(t)
	env := pub.Calls[0].Arguments.Get(2).(AuditEnvelope)
	require.NotNil(t, env.UserID)
	assert.Equal(t, "12", *env.UserID)
	assert.Equal(t, "room.delete", env.Payload.Action)
	assert.Equal(t, "chat-core", env.Service)
}

func TestAuditEmitterNilSafe(t *testing.T) {
	var e *AuditEmitter
	e.Emit(context.Background(), "INFO", "noop", "nothing", "", 0)
}

func TestAuditEnvelopeCarriesTraceID(t *testing.T) {
	pub := &publisherMock{}
	pub.On("Publish", mock.Anything, "audit", mock.Anything, mock.Anything).Return(nil).Once()

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID}))

	NewAuditEmitter(pub, "audit", "chat-core", "test").Emit(ctx, "INFO", "message.create", "Message sent", "", 0)

	env := pub.Calls[0].Arguments.Get(2).(AuditEnvelope)
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", env.TraceID)
	assert.Nil(t, env.UserID)
}
