// Package relay shares fan-out events between service replicas over Redis pub/sub,
// so a participant connected to any replica receives them.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"matchmaking-service/internal/fanout"
	"matchmaking-service/internal/models"
)

type wireEvent struct {
	Name         models.EventName `json:"event"`
	Participants []int64          `json:"participants"`
	Payload      json.RawMessage  `json:"payload,omitempty"`
	OccurredAt   time.Time        `json:"occurred_at"`
}

// RedisRelay publishes events on a Redis channel and delivers the channel's traffic
// to a replica-local publisher.
type RedisRelay struct {
	client  *redis.Client
	channel string
	local   fanout.Publisher
}

// NewRedisRelay constructs a relay delivering to local.
func NewRedisRelay(client *redis.Client, channel string, local fanout.Publisher) *RedisRelay {
	return &RedisRelay{client: client, channel: channel, local: local}
}

// Publish sends the event to every replica, this one included.
func (r *RedisRelay) Publish(ctx context.Context, participants []int64, event models.EventName, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	body, err := json.Marshal(wireEvent{
		Name:         event,
		Participants: participants,
		Payload:      raw,
		OccurredAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return r.client.Publish(ctx, r.channel, body).Err()
}

// Run forwards channel messages to the local publisher until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	log.Printf("redis relay subscribed channel=%s", r.channel)

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			r.deliver(ctx, msg.Payload)
		}
	}
}

func (r *RedisRelay) deliver(ctx context.Context, body string) {
	var evt wireEvent
	if err := json.Unmarshal([]byte(body), &evt); err != nil {
		log.Printf("redis relay dropped malformed event: %v", err)
		return
	}
	var payload any
	if len(evt.Payload) > 0 {
		payload = evt.Payload
	}
	if err := r.local.Publish(ctx, evt.Participants, evt.Name, payload); err != nil {
		log.Printf("redis relay local delivery failed: event=%s err=%v", evt.Name, err)
	}
}
