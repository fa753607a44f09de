package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"jadwa/internal/pkg/id"
)

const (
	roomChannelPrefix = "jadwa:room:"
	roomLockPrefix    = "jadwa:room-lock:"
	roomLockTTL       = 10 * time.Second
)

var releaseRoomLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRegistry fans room payloads out across processes. Membership stays in
// a local MemoryRegistry; Broadcast publishes to the room's channel and every
// process, this one included, delivers what it receives to its own members.
// LockRoom serialises sends to a room across processes, so publish order
// matches commit order.
type RedisRegistry struct {
	client *redis.Client
	local  *MemoryRegistry
	logger *slog.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

func NewRedisRegistry(client *redis.Client, logger *slog.Logger) *RedisRegistry {
	return &RedisRegistry{
		client: client,
		local:  NewMemoryRegistry(),
		logger: logger,
	}
}

// Start opens the pattern subscription and runs the receive loop until ctx
// ends or Close is called.
func (r *RedisRegistry) Start(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, roomChannelPrefix+"*")
	// Wait for the subscription confirmation so no publish is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe room channels: %w", err)
	}

	r.mu.Lock()
	r.pubsub = pubsub
	r.done = make(chan struct{})
	r.mu.Unlock()

	go r.receive(ctx, pubsub)
	return nil
}

func (r *RedisRegistry) receive(ctx context.Context, pubsub *redis.PubSub) {
	defer close(r.done)
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			roomID := strings.TrimPrefix(msg.Channel, roomChannelPrefix)
			if err := r.local.Broadcast(ctx, roomID, []byte(msg.Payload)); err != nil {
				r.logger.Warn("local room delivery failed", "room", roomID, "error", err)
			}
		}
	}
}

func (r *RedisRegistry) Close() error {
	r.mu.Lock()
	pubsub, done := r.pubsub, r.done
	r.pubsub = nil
	r.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	err := pubsub.Close()
	<-done
	return err
}

func (r *RedisRegistry) Subscribe(roomID string, sub Subscriber) { r.local.Subscribe(roomID, sub) }

func (r *RedisRegistry) Unsubscribe(roomID string, sub Subscriber) { r.local.Unsubscribe(roomID, sub) }

func (r *RedisRegistry) UnsubscribeAll(sub Subscriber) { r.local.UnsubscribeAll(sub) }

func (r *RedisRegistry) OnSlowConsumer(fn func(Subscriber)) { r.local.OnSlowConsumer(fn) }

func (r *RedisRegistry) Broadcast(ctx context.Context, roomID string, payload []byte) error {
	if err := r.client.Publish(ctx, roomChannelPrefix+roomID, payload).Err(); err != nil {
		return fmt.Errorf("publish to room %s: %w", roomID, err)
	}
	return nil
}

// LockRoom takes the cluster-wide lock for roomID with SET NX PX, polling
// until it is free or ctx ends. The lock expires after roomLockTTL if the
// holder dies.
func (r *RedisRegistry) LockRoom(ctx context.Context, roomID string) (func(), error) {
	key := roomLockPrefix + roomID
	token := id.New()
	wait := 2 * time.Millisecond
	for {
		ok, err := r.client.SetNX(ctx, key, token, roomLockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("lock room %s: %w", roomID, err)
		}
		if ok {
			break
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("lock room %s: %w", roomID, ctx.Err())
		case <-timer.C:
		}
		if wait < 50*time.Millisecond {
			wait *= 2
		}
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := releaseRoomLock.Run(ctx, r.client, []string{key}, token).Err(); err != nil {
			r.logger.Warn("room lock release failed", "room", roomID, "error", err)
		}
	}, nil
}
