package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisPublishTimeout = 3 * time.Second

// Redis is a same-device bus built on pub/sub: agents and tools running in
// other processes publish to collabedge:room:<id> and every subscriber sees
// the frame. A subscriber also sees its own publishes; the session's
// content-equality check is the loop breaker, the same one used for
// network echoes.
type Redis struct {
	client *redis.Client
	log    zerolog.Logger
}

var _ Transport = (*Redis)(nil)

// NewRedis pings addr and returns nil when redis is not reachable, so the
// caller can run without the bus.
func NewRedis(addr string, log zerolog.Logger) *Redis {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		log.Warn().Str("addr", addr).Msg("Redis not available. Running without local bus.")
		return nil
	}
	log.Info().Str("addr", addr).Msg("Redis connected successfully.")
	return &Redis{client: client, log: log.With().Str("component", "redis-bus").Logger()}
}

func channelFor(roomID string) string {
	return fmt.Sprintf("collabedge:room:%s", roomID)
}

func (r *Redis) Connect(ctx context.Context, roomID string) (Conn, error) {
	pubsub := r.client.Subscribe(ctx, channelFor(roomID))
	// Force the subscription to be established before reporting CONNECTED.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to room bus: %w", err)
	}

	c := &redisConn{
		client:  r.client,
		pubsub:  pubsub,
		channel: channelFor(roomID),
		in:      make(chan Envelope, 64),
		done:    make(chan struct{}),
		log:     r.log.With().Str("room", roomID).Logger(),
	}
	c.in <- Envelope{Type: KindConnected}
	go c.readPump()
	return c, nil
}

type redisConn struct {
	client    *redis.Client
	pubsub    *redis.PubSub
	channel   string
	in        chan Envelope
	done      chan struct{}
	closeOnce sync.Once
	log       zerolog.Logger
}

func (c *redisConn) Send(e Envelope) error {
	data, err := e.Encode()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisPublishTimeout)
	defer cancel()
	if err := c.client.Publish(ctx, c.channel, data).Err(); err != nil {
		// Best effort, same as a dead websocket.
		c.log.Debug().Err(err).Msg("bus publish failed")
	}
	return nil
}

func (c *redisConn) Receive() <-chan Envelope {
	return c.in
}

func (c *redisConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.pubsub.Close()
	})
	return nil
}

func (c *redisConn) readPump() {
	defer close(c.in)
	for msg := range c.pubsub.Channel() {
		e, err := Decode([]byte(msg.Payload))
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed bus frame")
			continue
		}
		select {
		case c.in <- e:
		case <-c.done:
			return
		}
	}
}
