package aggregator_test

import (
	"context"
	"errors"
	"sync"

	"temp-dashboard/internal/backend"
)

// fakeBackend 仅用于单元测试（内存路径 + 手动推送）
type fakeBackend struct {
	mu       sync.Mutex
	values   map[string][]byte
	fetchErr map[string]error
	handlers map[string][]backend.ValueHandler
	fetched  []string
	closed   int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		values:   make(map[string][]byte),
		fetchErr: make(map[string]error),
		handlers: make(map[string][]backend.ValueHandler),
	}
}

func (f *fakeBackend) set(path, raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[path] = []byte(raw)
}

// push 模拟后端推送（同步回调）
func (f *fakeBackend) push(path, raw string) {
	f.mu.Lock()
	f.values[path] = []byte(raw)
	handlers := append([]backend.ValueHandler(nil), f.handlers[path]...)
	f.mu.Unlock()

	for _, h := range handlers {
		h(path, []byte(raw))
	}
}

func (f *fakeBackend) Subscribe(ctx context.Context, path string, handler backend.ValueHandler) (backend.Subscription, error) {
	f.mu.Lock()
	f.handlers[path] = append(f.handlers[path], handler)
	raw, ok := f.values[path]
	f.mu.Unlock()

	if ok {
		handler(path, raw)
	}
	return &fakeSubscription{backend: f}, nil
}

func (f *fakeBackend) FetchOnce(ctx context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetched = append(f.fetched, path)
	if err, ok := f.fetchErr[path]; ok {
		return nil, err
	}
	raw, ok := f.values[path]
	if !ok {
		return nil, backend.ErrAbsentValue
	}
	return raw, nil
}

func (f *fakeBackend) Close() error {
	return nil
}

func (f *fakeBackend) fetchedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

func (f *fakeBackend) closedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeSubscription struct {
	backend *fakeBackend
}

func (s *fakeSubscription) Close() error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	s.backend.closed++
	return nil
}

var errNetwork = errors.New("network unreachable")
