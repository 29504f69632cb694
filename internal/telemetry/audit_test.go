package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type publisherMock struct {
	mock.Mock
}

func (m *publisherMock) Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	args := m.Called(ctx, routingKey, event, headers)
	return args.Error(0)
}

func TestEmitPublishesEnvelope(t *testing.T) {
	pub := new(publisherMock)
	emitter := NewAuditEmitter(pub, "audit.matchmaking", "matchmaking-service", "test")
	emitter.now = func() time.Time { return time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC) }
	userID := int64(7)

	var captured AuditEnvelope
	pub.On("Publish", mock.Anything, "audit.matchmaking", mock.AnythingOfType("telemetry.AuditEnvelope"), map[string]string{"x-request-id": "req-1"}).
		Run(func(args mock.Arguments) { captured = args.Get(2).(AuditEnvelope) }).
		Return(nil).Once()

	emitter.Emit(context.Background(), "INFO", "book_call", "matched", "req-1", &userID)

	pub.AssertExpectations(t)
	require.NotNil(t, captured.UserID)
	assert.Equal(t, int64(7), *captured.UserID)
	assert.Equal(t, "2025-01-10T10:00:00Z", captured.OccurredAt)
	assert.Equal(t, "book_call", captured.Payload.Operation)
}

func TestEmitOnNilEmitterIsSafe(t *testing.T) {
	var emitter *AuditEmitter
	emitter.Emit(context.Background(), "INFO", "op", "text", "req", nil)
}

func TestEmitSwallowsPublishError(t *testing.T) {
	pub := new(publisherMock)
	emitter := NewAuditEmitter(pub, "audit", "svc", "test")
	pub.On("Publish", mock.Anything, "audit", mock.Anything, mock.Anything).Return(assert.AnError).Once()

	emitter.Emit(context.Background(), "ERROR", "op", "boom", "req", nil)
	pub.AssertExpectations(t)
}
