package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gakusta-org/gakusta-backend/internal/logger"
)

type envelope struct {
	Origin  string  `json:"origin"`
	Message Message `json:"message"`
}

type RedisPubSub struct {
	log         *logger.Logger
	client      *redis.Client
	channel     string
	origin      string
	cancelFunc  context.CancelFunc
	mu          sync.Mutex
}

// NewRedisPubSub shares an existing client; the caller owns its lifecycle.
func NewRedisPubSub(log *logger.Logger, client *redis.Client, channel string) *RedisPubSub {
	return &RedisPubSub{
		log:      log.With("component", "RedisPubSub"),
		client:   client,
		channel:  channel,
		origin:   uuid.NewString(),
	}
}

func (rp *RedisPubSub) StartSubscriber(hub *Hub) error {
	ctx, cancel := context.WithCancel(context.Background())
	rp.mu.Lock()
	rp.cancelFunc = cancel
	rp.mu.Unlock()

	pubsub := rp.client.Subscribe(ctx, rp.channel)

	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to redis channel: %w", err)
	}
	rp.log.Info("RedisPubSub subscribed successfully", "channel", rp.channel)

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				rp.log.Debug("Redis pubsub context done, stopping subscription goroutine")
				return
			case msg, ok := <-ch:
				if !ok {
					rp.log.Debug("PubSub channel closed, stopping subscription goroutine")
					return
				}
				env, err := decodePubSubMessage(msg.Payload)
				if err != nil {
					rp.log.Warn("Failed to decode pubsub message", "error", err)
					continue
				}
				if env.Origin == rp.origin {
					continue
				}
				hub.localBroadcast(env.Message)
			}
		}
	}()
	return nil
}

func (rp *RedisPubSub) Publish(ctx context.Context, msg Message) error {
	payload, err := encodePubSubMessage(envelope{Origin: rp.origin, Message: msg})
	if err != nil {
		rp.log.Warn("failed to encode message for redis", "error", err)
		return err
	}
	return rp.client.Publish(ctx, rp.channel, payload).Err()
}

func (rp *RedisPubSub) Stop() {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	if rp.cancelFunc != nil {
		rp.cancelFunc()
		rp.cancelFunc = nil
	}
}

func encodePubSubMessage(e envelope) (string, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodePubSubMessage(payload string) (envelope, error) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return env, fmt.Errorf("json unmarshal failed: %w", err)
	}
	return env, nil
}
