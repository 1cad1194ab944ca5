package aggregator

import (
	"sync"
	"temp-dashboard/internal/models"

	"go.uber.org/zap"
)

// Listener 快照变更回调
type Listener func(snapshot *models.Snapshot)

// SnapshotPublisher 展示层的唯一接入点
// 每次被接受的更新同步通知一次所有监听者，按订阅顺序调用，不做合并
type SnapshotPublisher struct {
	store  *TimeSeriesStore
	logger *zap.Logger

	mu        sync.Mutex
	nextID    uint64
	listeners []listenerEntry
}

type listenerEntry struct {
	id uint64
	fn Listener
}

// NewSnapshotPublisher 创建发布器
func NewSnapshotPublisher(store *TimeSeriesStore, logger *zap.Logger) *SnapshotPublisher {
	return &SnapshotPublisher{
		store:  store,
		logger: logger,
	}
}

// GetSnapshot 返回最新快照
func (p *SnapshotPublisher) GetSnapshot() *models.Snapshot {
	return p.store.CurrentSnapshot()
}

// Subscribe 注册监听者，返回取消订阅函数（可重复调用）
func (p *SnapshotPublisher) Subscribe(listener Listener) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	id := p.nextID
	p.listeners = append(p.listeners, listenerEntry{id: id, fn: listener})

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, l := range p.listeners {
			if l.id == id {
				p.listeners = append(p.listeners[:i:i], p.listeners[i+1:]...)
				return
			}
		}
	}
}

// RecordActual 写入实际读数并通知
func (p *SnapshotPublisher) RecordActual(value float64) {
	p.store.RecordActual(value)
	p.notify()
}

// RecordPredicted 写入预测值并通知
func (p *SnapshotPublisher) RecordPredicted(value float64) {
	p.store.RecordPredicted(value)
	p.notify()
}

func (p *SnapshotPublisher) notify() {
	snap := p.store.CurrentSnapshot()

	// 复制一份监听者列表，回调中允许订阅/取消订阅
	p.mu.Lock()
	listeners := make([]listenerEntry, len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.Unlock()

	for _, l := range listeners {
		p.invoke(l, snap)
	}
}

func (p *SnapshotPublisher) invoke(l listenerEntry, snap *models.Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Snapshot listener panicked",
				zap.Uint64("listener_id", l.id),
				zap.Any("panic", r),
			)
		}
	}()
	l.fn(snap)
}
