package redis

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// PublishValue 写入键值并在通道上广播同一个值
// SET 先于 PUBLISH 发出，订阅方收到通知时 GET 已能读到新值
func PublishValue(ctx context.Context, client *redis.Client, key, channel, value string) error {
	_, err := client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, value, 0)
		pipe.Publish(ctx, channel, value)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish value to %s: %w", key, err)
	}
	return nil
}

// SubscribeChannel 订阅通道，确认订阅成功后返回
// 调用方负责关闭返回的 PubSub
func SubscribeChannel(ctx context.Context, client *redis.Client, channel string) (*redis.PubSub, error) {
	pubsub := client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to channel %s: %w", channel, err)
	}
	return pubsub, nil
}
