package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"temp-dashboard/common/config"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"
	"gopkg.in/cenkalti/backoff.v1"
)

var (
	// errStreamCancelled 服务端发出 cancel（通常是权限被撤销），该通道停止推送
	errStreamCancelled = errors.New("stream cancelled by server")
	// errAuthRevoked 服务端发出 auth_revoked，令牌失效
	errAuthRevoked = errors.New("stream auth revoked")
)

// FirebaseBackend 通过 REST 流式接口访问 Firebase Realtime Database
// 单次读取走 resty，订阅走 r3labs/sse 事件流
type FirebaseBackend struct {
	client     *resty.Client
	baseURL    string
	authToken  string
	timeout    time.Duration
	minBackoff time.Duration
	maxBackoff time.Duration
	logger     *zap.Logger
}

// NewFirebaseBackend 创建 Firebase 后端
// 不设置客户端级超时，流式连接需要长期保持；单次读取使用 cfg.Timeout
func NewFirebaseBackend(cfg *config.FirebaseConfig, logger *zap.Logger) *FirebaseBackend {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.DatabaseURL, "/")).
		SetHeader("User-Agent", "temp-dashboard")

	return &FirebaseBackend{
		client:     client,
		baseURL:    strings.TrimRight(cfg.DatabaseURL, "/"),
		authToken:  cfg.AuthToken,
		timeout:    cfg.Timeout,
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
		logger:     logger,
	}
}

func (b *FirebaseBackend) request(ctx context.Context) *resty.Request {
	req := b.client.R().SetContext(ctx)
	if b.authToken != "" {
		req.SetQueryParam("auth", b.authToken)
	}
	return req
}

func resourcePath(path string) string {
	return "/" + strings.Trim(path, "/") + ".json"
}

// streamURL 事件流地址，令牌放在 auth 查询参数里
func (b *FirebaseBackend) streamURL(path string) string {
	u := b.baseURL + resourcePath(path)
	if b.authToken != "" {
		u += "?" + url.Values{"auth": {b.authToken}}.Encode()
	}
	return u
}

// FetchOnce 读取路径当前值，JSON null 视为无数据
func (b *FirebaseBackend) FetchOnce(ctx context.Context, path string) ([]byte, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	resp, err := b.request(ctx).Get(resourcePath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", path, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to fetch %s: unexpected status %s", path, resp.Status())
	}

	body := bytes.TrimSpace(resp.Body())
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, ErrAbsentValue
	}
	return body, nil
}

// Subscribe 打开流式连接，断线后按指数退避重连
func (b *FirebaseBackend) Subscribe(ctx context.Context, path string, handler ValueHandler) (Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		b.run(subCtx, path, handler)
	}()

	return newSubscription(func() error {
		cancel()
		<-done
		return nil
	}), nil
}

func (b *FirebaseBackend) run(ctx context.Context, path string, handler ValueHandler) {
	delay := b.minBackoff

	for {
		connected, err := b.stream(ctx, path, handler)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, errStreamCancelled) || errors.Is(err, errAuthRevoked) {
			b.logger.Error("Stream closed by server, channel stops delivering",
				zap.String("path", path),
				zap.Error(err),
			)
			return
		}
		if connected {
			delay = b.minBackoff
		}

		b.logger.Warn("Stream disconnected",
			zap.String("path", path),
			zap.Error(err),
			zap.Duration("backoff", delay),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
			delay *= 2
			if delay > b.maxBackoff {
				delay = b.maxBackoff
			}
		}
	}
}

// streamEvent 服务端事件负载
type streamEvent struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

// stream 读取一条流式连接直到断开
// connected 表示连接曾经收到过事件；重连由 run 负责，sse 客户端自身不重试
func (b *FirebaseBackend) stream(ctx context.Context, path string, handler ValueHandler) (connected bool, err error) {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	client := sse.NewClient(b.streamURL(path))
	client.Connection = b.client.GetClient()
	client.Headers["User-Agent"] = "temp-dashboard"
	client.ReconnectStrategy = &backoff.StopBackOff{}
	client.OnConnect(func(*sse.Client) {
		connected = true
		b.logger.Debug("Stream connected", zap.String("path", path))
	})

	var stopErr error
	err = client.SubscribeRawWithContext(streamCtx, func(msg *sse.Event) {
		if stopErr != nil {
			return
		}
		if err := b.dispatch(path, string(msg.Event), msg.Data, handler); err != nil {
			stopErr = err
			cancel()
		}
	})
	if stopErr != nil {
		return connected, stopErr
	}
	if err != nil {
		return connected, fmt.Errorf("stream failed: %w", err)
	}
	return connected, io.EOF
}

func (b *FirebaseBackend) dispatch(path, event string, data []byte, handler ValueHandler) error {
	switch event {
	case "put", "patch":
		var ev streamEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			b.logger.Warn("Malformed stream event",
				zap.String("path", path),
				zap.String("event", event),
				zap.Error(err),
			)
			return nil
		}
		// 订阅的是标量路径，只关心根节点的整体替换
		if ev.Path != "/" || event == "patch" {
			b.logger.Debug("Ignored non-root stream event",
				zap.String("path", path),
				zap.String("event", event),
				zap.String("event_path", ev.Path),
			)
			return nil
		}
		handler(path, ev.Data)
	case "keep-alive":
	case "cancel":
		return errStreamCancelled
	case "auth_revoked":
		return errAuthRevoked
	default:
		b.logger.Debug("Unknown stream event", zap.String("event", event))
	}
	return nil
}

// Close 无需释放资源，流式连接随订阅关闭
func (b *FirebaseBackend) Close() error {
	return nil
}
