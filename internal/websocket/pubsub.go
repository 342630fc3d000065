package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"presence-service/internal/presence"
)

// Subscriber relays presence events published by other instances to the
// connections on this one.
type Subscriber struct {
	client     *redis.Client
	hub        *Hub
	instanceID string
	logger     *zap.Logger
}

func NewSubscriber(client *redis.Client, hub *Hub, instanceID string, logger *zap.Logger) *Subscriber {
	return &Subscriber{
		client:     client,
		hub:        hub,
		instanceID: instanceID,
		logger:     logger,
	}
}

// Run consumes the per-workspace presence channels until ctx is cancelled,
// re-subscribing when the subscription drops. Call in a goroutine.
func (s *Subscriber) Run(ctx context.Context) {
	if s.client == nil {
		s.logger.Warn("redis not available, cross-instance presence fan-out disabled")
		return
	}

	for ctx.Err() == nil {
		s.consume(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (s *Subscriber) consume(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("recovered from panic in presence subscriber", zap.Any("panic", r))
		}
	}()

	pubsub := s.client.PSubscribe(ctx, presence.ChannelFor("*"))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.handle(msg.Payload)
		}
	}
}

// handle relays one published envelope. A panic while delivering one message
// is contained here so the subscription keeps serving the rest.
func (s *Subscriber) handle(payload string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("recovered from panic relaying presence event", zap.Any("panic", r))
		}
	}()

	var env presence.Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		s.logger.Warn("failed to parse presence envelope", zap.Error(err))
		return
	}
	// Local delivery already happened when this instance published.
	if env.Origin == s.instanceID {
		return
	}

	data, err := json.Marshal(env.Event)
	if err != nil {
		return
	}
	s.hub.deliver(env.Event.WorkspaceID, data)
}
