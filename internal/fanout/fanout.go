// Package fanout delivers matchmaking events to the channels of their participants.
//
// Delivery is best-effort: callers log failures and never roll back store state
// because an event was lost.
package fanout

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"matchmaking-service/internal/models"
	"matchmaking-service/internal/observability"
	"matchmaking-service/internal/rabbitmq"
)

// Publisher hands one event to the channels of participants.
type Publisher interface {
	Publish(ctx context.Context, participants []int64, event models.EventName, payload any) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, participants []int64, event models.EventName, payload any) error

func (f PublisherFunc) Publish(ctx context.Context, participants []int64, event models.EventName, payload any) error {
	return f(ctx, participants, event, payload)
}

// Multi publishes to every target and combines their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, participants []int64, event models.EventName, payload any) error {
	observability.IncFanoutEvent(string(event))
	var err error
	for _, p := range m {
		if p == nil {
			continue
		}
		err = multierr.Append(err, p.Publish(ctx, participants, event, payload))
	}
	return err
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, []int64, models.EventName, any) error { return nil }

// AMQP forwards events to the topic exchange under "<prefix>.<event>".
type AMQP struct {
	publisher rabbitmq.Publisher
	prefix    string
	now       func() time.Time
}

// NewAMQP wraps a bus publisher.
func NewAMQP(publisher rabbitmq.Publisher, prefix string) *AMQP {
	return &AMQP{publisher: publisher, prefix: prefix, now: time.Now}
}

func (a *AMQP) Publish(ctx context.Context, participants []int64, event models.EventName, payload any) error {
	return a.publisher.Publish(ctx, a.prefix+"."+string(event), models.Event{
		Name:         event,
		Participants: participants,
		Payload:      payload,
		OccurredAt:   a.now().UTC(),
	}, nil)
}
