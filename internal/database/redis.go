package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connection names as shown by CLIENT LIST.
const (
	webhookQueueClientName = "studybuddy-webhook-queue"
	eventsClientName       = "studybuddy-events"
)

// RedisClients keeps the webhook queue apart from event pub/sub. A BLPOP
// holds its connection for the whole wait.
type RedisClients struct {
	Queue  *redis.Client
	PubSub *redis.Client
}

func NewRedisClients(ctx context.Context, redisURL string) (*RedisClients, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	queue, err := dialRedis(ctx, opt, webhookQueueClientName)
	if err != nil {
		return nil, err
	}
	pubsub, err := dialRedis(ctx, opt, eventsClientName)
	if err != nil {
		queue.Close()
		return nil, err
	}

	return &RedisClients{Queue: queue, PubSub: pubsub}, nil
}

// dialRedis opens a named client on a copy of opt and checks it with PING.
func dialRedis(ctx context.Context, opt *redis.Options, name string) (*redis.Client, error) {
	named := *opt
	named.ClientName = name

	client := redis.NewClient(&named)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis (%s): %w", name, err)
	}
	return client, nil
}

func (r *RedisClients) Close() error {
	return errors.Join(r.Queue.Close(), r.PubSub.Close())
}
