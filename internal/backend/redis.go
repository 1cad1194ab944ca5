package backend

import (
	"context"
	"errors"
	"fmt"

	rediscommon "temp-dashboard/common/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisBackend 以 Redis 作为实时存储
// 路径的当前值保存在 <keyPrefix><path>，变更通过 <channelPrefix><path> 广播
type RedisBackend struct {
	client        *redis.Client
	keyPrefix     string
	channelPrefix string
	logger        *zap.Logger
}

// NewRedisBackend 创建 Redis 后端
func NewRedisBackend(client *redis.Client, keyPrefix, channelPrefix string, logger *zap.Logger) *RedisBackend {
	return &RedisBackend{
		client:        client,
		keyPrefix:     keyPrefix,
		channelPrefix: channelPrefix,
		logger:        logger,
	}
}

func (b *RedisBackend) key(path string) string {
	return b.keyPrefix + path
}

func (b *RedisBackend) channel(path string) string {
	return b.channelPrefix + path
}

// FetchOnce 读取路径当前值
func (b *RedisBackend) FetchOnce(ctx context.Context, path string) ([]byte, error) {
	val, err := b.client.Get(ctx, b.key(path)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrAbsentValue
		}
		return nil, fmt.Errorf("failed to get %s: %w", b.key(path), err)
	}
	return val, nil
}

// Subscribe 先订阅通道再读当前值，避免两者之间的变更丢失
func (b *RedisBackend) Subscribe(ctx context.Context, path string, handler ValueHandler) (Subscription, error) {
	pubsub, err := rediscommon.SubscribeChannel(ctx, b.client, b.channel(path))
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		current, err := b.FetchOnce(subCtx, path)
		switch {
		case err == nil:
			handler(path, current)
		case errors.Is(err, ErrAbsentValue):
		default:
			b.logger.Warn("Failed to read current value",
				zap.String("path", path),
				zap.Error(err),
			)
		}

		messages := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				handler(path, []byte(msg.Payload))
			}
		}
	}()

	return newSubscription(func() error {
		cancel()
		err := pubsub.Close()
		<-done
		return err
	}), nil
}

// Close 关闭 Redis 连接
func (b *RedisBackend) Close() error {
	return rediscommon.Close(b.client)
}
