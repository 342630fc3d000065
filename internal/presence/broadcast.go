package presence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"presence-service/internal/domain"
)

// Broadcaster fans a presence transition out to every connection currently
// joined to the workspace. Implementations must not block the caller.
type Broadcaster interface {
	BroadcastPresence(ctx context.Context, evt domain.PresenceUpdate)
}

// RedisBroadcaster publishes presence transitions on a per-workspace channel
// so instances behind a load balancer see each other's events. Messages carry
// the publishing instance's ID; subscribers skip their own to avoid double
// delivery, since local delivery already happened through the hub.
type RedisBroadcaster struct {
	client     *redis.Client
	instanceID string
	logger     *zap.Logger
}

// Envelope wraps a presence update on the wire between instances.
type Envelope struct {
	Origin string                `json:"origin"`
	Event  domain.PresenceUpdate `json:"event"`
}

func NewRedisBroadcaster(client *redis.Client, instanceID string, logger *zap.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, instanceID: instanceID, logger: logger}
}

// ChannelFor returns the pub/sub channel carrying a workspace's presence events.
func ChannelFor(workspaceID string) string {
	return fmt.Sprintf("presence:workspace:%s", workspaceID)
}

func (b *RedisBroadcaster) BroadcastPresence(ctx context.Context, evt domain.PresenceUpdate) {
	if b.client == nil {
		return
	}

	data, err := json.Marshal(Envelope{Origin: b.instanceID, Event: evt})
	if err != nil {
		b.logger.Error("failed to marshal presence update", zap.Error(err))
		return
	}

	channel := ChannelFor(evt.WorkspaceID.String())
	if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("failed to publish presence update",
			zap.String("channel", channel),
			zap.Error(err))
	}
}

// MultiBroadcaster delivers to several broadcasters in order; typically the
// local hub plus the Redis fan-out.
type MultiBroadcaster []Broadcaster

func (m MultiBroadcaster) BroadcastPresence(ctx context.Context, evt domain.PresenceUpdate) {
	for _, b := range m {
		b.BroadcastPresence(ctx, evt)
	}
}
