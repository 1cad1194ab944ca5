package backend

import (
	"context"
	"fmt"
	"time"

	mqttcommon "temp-dashboard/common/mqtt"

	"go.uber.org/zap"
)

// MQTTSubscriber MQTT 客户端中后端用到的部分
type MQTTSubscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
	Disconnect()
}

// MQTTBackend 以 MQTT broker 作为实时存储
// 路径即主题，保留消息即当前值
type MQTTBackend struct {
	client    MQTTSubscriber
	qos       byte
	fetchWait time.Duration
	logger    *zap.Logger
}

// NewMQTTBackend 创建 MQTT 后端
// fetchWait 为单次读取等待保留消息的时长，超时视为无数据
func NewMQTTBackend(client MQTTSubscriber, qos byte, fetchWait time.Duration, logger *zap.Logger) *MQTTBackend {
	if fetchWait <= 0 {
		fetchWait = 2 * time.Second
	}
	return &MQTTBackend{
		client:    client,
		qos:       qos,
		fetchWait: fetchWait,
		logger:    logger,
	}
}

// Subscribe 订阅主题，broker 先回放保留消息，之后推送每次发布
func (b *MQTTBackend) Subscribe(ctx context.Context, path string, handler ValueHandler) (Subscription, error) {
	err := b.client.Subscribe(path, b.qos, func(topic string, payload []byte, retained bool) error {
		handler(path, payload)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return newSubscription(func() error {
		return b.client.Unsubscribe(path)
	}), nil
}

// FetchOnce 临时订阅主题，等待保留消息
// 同一主题的订阅会被替换，只能在实时订阅建立之前调用
func (b *MQTTBackend) FetchOnce(ctx context.Context, path string) ([]byte, error) {
	values := make(chan []byte, 1)
	err := b.client.Subscribe(path, b.qos, func(topic string, payload []byte, retained bool) error {
		if !retained {
			return nil
		}
		select {
		case values <- append([]byte(nil), payload...):
		default:
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := b.client.Unsubscribe(path); err != nil {
			b.logger.Warn("Failed to release fetch subscription",
				zap.String("path", path),
				zap.Error(err),
			)
		}
	}()

	timer := time.NewTimer(b.fetchWait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch %s: %w", path, ctx.Err())
	case <-timer.C:
		return nil, ErrAbsentValue
	case payload := <-values:
		// 空的保留消息表示已被清除
		if len(payload) == 0 {
			return nil, ErrAbsentValue
		}
		return payload, nil
	}
}

// Close 断开 broker 连接
func (b *MQTTBackend) Close() error {
	b.client.Disconnect()
	return nil
}
