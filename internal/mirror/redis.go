package mirror

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/classpoll/pollsession/internal/protocol"
)

// RedisPublisher publishes each event to the channel <prefix><session code>.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// NewRedisPublisher connects and verifies the server answers PING.
func NewRedisPublisher(ctx context.Context, addr, password string, db int, prefix string, log *zap.Logger) (*RedisPublisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info("redis mirror connected", zap.String("addr", addr), zap.String("prefix", prefix))
	return &RedisPublisher{client: rdb, prefix: prefix}, nil
}

func (r *RedisPublisher) Name() string { return "redis" }

func (r *RedisPublisher) Channel(code string) string { return r.prefix + code }

func (r *RedisPublisher) Publish(ctx context.Context, code string, _ protocol.EventType, body []byte) error {
	return r.client.Publish(ctx, r.Channel(code), body).Err()
}

func (r *RedisPublisher) Close() error { return r.client.Close() }
