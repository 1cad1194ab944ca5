package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"temp-dashboard/internal/backend"
	"temp-dashboard/internal/models"

	"go.uber.org/zap"
)

// DuplicatePolicy 多个通道承载同一逻辑信号时的处理策略
type DuplicatePolicy string

// LastWriteWins 两个实际值通道都无条件转发，不按值去重
// 同一物理事件若同时出现在两个通道上，会记录两个点
const LastWriteWins DuplicatePolicy = "last_write_wins"

// Channels 上游路径
type Channels struct {
	CanonicalActual string // <namespace>/actual
	LegacyActual    string // 拼错的旧路径（设备固件仍在写）
	Prediction      string // <namespace>/prediction
}

// NewChannels 按命名空间构建路径
func NewChannels(namespace, legacyNamespace string) Channels {
	return Channels{
		CanonicalActual: namespace + "/actual",
		LegacyActual:    legacyNamespace + "/actual",
		Prediction:      namespace + "/prediction",
	}
}

// channelBinding 单个订阅
type channelBinding struct {
	path string
	kind models.Kind
}

func (c Channels) bindings() []channelBinding {
	bindings := make([]channelBinding, 0, 3)
	if c.LegacyActual != "" && c.LegacyActual != c.CanonicalActual {
		bindings = append(bindings, channelBinding{path: c.LegacyActual, kind: models.KindActual})
	}
	bindings = append(bindings,
		channelBinding{path: c.CanonicalActual, kind: models.KindActual},
		channelBinding{path: c.Prediction, kind: models.KindPredicted},
	)
	return bindings
}

// Update 一条来自后端的原始推送
type Update struct {
	Path string
	Kind models.Kind
	Raw  []byte
}

// ChannelReconciler 把三个上游订阅合并为一个实际值信号和一个预测值信号
// 所有推送进入同一个有序队列，按到达顺序串行应用
type ChannelReconciler struct {
	backend  backend.Backend
	recorder Recorder
	channels Channels
	policy   DuplicatePolicy
	logger   *zap.Logger

	updates chan Update

	mu   sync.Mutex
	subs []backend.Subscription
}

// NewChannelReconciler 创建通道合并器
func NewChannelReconciler(
	b backend.Backend,
	recorder Recorder,
	channels Channels,
	queueSize int,
	logger *zap.Logger,
) *ChannelReconciler {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &ChannelReconciler{
		backend:  b,
		recorder: recorder,
		channels: channels,
		policy:   LastWriteWins,
		logger:   logger,
		updates:  make(chan Update, queueSize),
	}
}

// Policy 返回重复通道策略
func (r *ChannelReconciler) Policy() DuplicatePolicy {
	return r.policy
}

// Channels 返回订阅的路径
func (r *ChannelReconciler) Channels() Channels {
	return r.channels
}

// Apply 应用一条更新
// 返回 false, nil 表示空值被忽略；解析失败返回 ErrInvalidReading
func (r *ChannelReconciler) Apply(u Update) (bool, error) {
	value, present, err := models.ParseReading(u.Raw)
	if err != nil {
		return false, fmt.Errorf("path %s: %w", u.Path, err)
	}
	if !present {
		return false, nil
	}

	switch u.Kind {
	case models.KindActual:
		r.recorder.RecordActual(value)
	case models.KindPredicted:
		r.recorder.RecordPredicted(value)
	default:
		return false, fmt.Errorf("path %s: unknown reading kind %q", u.Path, u.Kind)
	}
	return true, nil
}

// Start 订阅所有通道并串行处理推送，阻塞直到 ctx 取消
func (r *ChannelReconciler) Start(ctx context.Context) error {
	for _, b := range r.channels.bindings() {
		b := b
		sub, err := r.backend.Subscribe(ctx, b.path, func(path string, raw []byte) {
			r.enqueue(ctx, Update{Path: path, Kind: b.kind, Raw: append([]byte(nil), raw...)})
		})
		if err != nil {
			r.Stop()
			return fmt.Errorf("failed to subscribe to %s: %w", b.path, err)
		}

		r.mu.Lock()
		r.subs = append(r.subs, sub)
		r.mu.Unlock()

		r.logger.Info("Subscribed to channel",
			zap.String("path", b.path),
			zap.String("kind", string(b.kind)),
		)
	}

	r.logger.Info("Channel reconciler started",
		zap.String("duplicate_policy", string(r.policy)),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case u := <-r.updates:
			r.handle(u)
		}
	}
}

// Stop 释放所有订阅句柄
func (r *ChannelReconciler) Stop() error {
	r.mu.Lock()
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *ChannelReconciler) enqueue(ctx context.Context, u Update) {
	select {
	case r.updates <- u:
	case <-ctx.Done():
	}
}

func (r *ChannelReconciler) handle(u Update) {
	accepted, err := r.Apply(u)
	if err != nil {
		r.logger.Warn("Dropped invalid reading",
			zap.String("path", u.Path),
			zap.Error(err),
		)
		return
	}
	if !accepted {
		r.logger.Debug("Ignored absent value", zap.String("path", u.Path))
		return
	}
	r.logger.Debug("Applied update",
		zap.String("path", u.Path),
		zap.String("kind", string(u.Kind)),
	)
}
