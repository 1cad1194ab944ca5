package backend

import (
	"context"
	"errors"
	"sync"
)

// ErrAbsentValue 路径存在但没有数据，不是错误条件
var ErrAbsentValue = errors.New("absent value")

// ValueHandler 推送回调，raw 为后端中该路径的原始值
type ValueHandler func(path string, raw []byte)

// Subscription 订阅句柄，Close 后不再回调
type Subscription interface {
	Close() error
}

// Backend 实时数据存储
type Backend interface {
	// Subscribe 注册长期监听：先回调一次当前值，之后每次变更再回调
	Subscribe(ctx context.Context, path string, handler ValueHandler) (Subscription, error)

	// FetchOnce 单次读取，无数据时返回 ErrAbsentValue
	FetchOnce(ctx context.Context, path string) ([]byte, error)

	// Close 释放连接
	Close() error
}

// subscriptionFunc 把关闭函数包装成只执行一次的 Subscription
type subscriptionFunc struct {
	once sync.Once
	fn   func() error
	err  error
}

func newSubscription(fn func() error) *subscriptionFunc {
	return &subscriptionFunc{fn: fn}
}

func (s *subscriptionFunc) Close() error {
	s.once.Do(func() {
		s.err = s.fn()
	})
	return s.err
}
