package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresBackend 以 PostgreSQL 表作为实时存储
// 当前值保存在 <table>(path, value)，变更由触发器通过 pg_notify 广播
type PostgresBackend struct {
	db      *sql.DB
	dsn     string
	table   string
	channel string
	logger  *zap.Logger
}

// NewPostgresBackend 创建 PostgreSQL 后端
func NewPostgresBackend(db *sql.DB, dsn, table, channel string, logger *zap.Logger) *PostgresBackend {
	return &PostgresBackend{
		db:      db,
		dsn:     dsn,
		table:   table,
		channel: channel,
		logger:  logger,
	}
}

// EnsureSchema 创建数据表和通知触发器（幂等）
func (b *PostgresBackend) EnsureSchema(ctx context.Context) error {
	table := pq.QuoteIdentifier(b.table)
	fn := pq.QuoteIdentifier(b.table + "_notify")
	trigger := pq.QuoteIdentifier(b.table + "_notify_trg")

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			path       TEXT PRIMARY KEY,
			value      TEXT,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, table),
		fmt.Sprintf(`CREATE OR REPLACE FUNCTION %s() RETURNS trigger AS $$
		BEGIN
			PERFORM pg_notify(%s, json_build_object('path', NEW.path, 'value', NEW.value)::text);
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql`, fn, pq.QuoteLiteral(b.channel)),
		fmt.Sprintf(`DROP TRIGGER IF EXISTS %s ON %s`, trigger, table),
		fmt.Sprintf(`CREATE TRIGGER %s AFTER INSERT OR UPDATE ON %s FOR EACH ROW EXECUTE FUNCTION %s()`,
			trigger, table, fn),
	}

	for _, stmt := range statements {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// FetchOnce 读取路径当前值
func (b *PostgresBackend) FetchOnce(ctx context.Context, path string) ([]byte, error) {
	query := fmt.Sprintf(`SELECT value FROM %s WHERE path = $1`, pq.QuoteIdentifier(b.table))

	var value sql.NullString
	if err := b.db.QueryRowContext(ctx, query, path).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAbsentValue
		}
		return nil, fmt.Errorf("failed to query %s: %w", path, err)
	}
	if !value.Valid {
		return nil, ErrAbsentValue
	}
	return []byte(value.String), nil
}

// Subscribe LISTEN 通知通道，只转发本路径的变更
// 重连后重新读取当前值，补上断线期间丢失的通知
func (b *PostgresBackend) Subscribe(ctx context.Context, path string, handler ValueHandler) (Subscription, error) {
	listener := pq.NewListener(b.dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			b.logger.Warn("Postgres listener event",
				zap.Int("event", int(ev)),
				zap.Error(err),
			)
		}
	})
	if err := listener.Listen(b.channel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", b.channel, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		b.deliverCurrent(subCtx, path, handler)

		for {
			select {
			case <-subCtx.Done():
				return
			case n, ok := <-listener.Notify:
				if !ok {
					return
				}
				if n == nil {
					b.deliverCurrent(subCtx, path, handler)
					continue
				}
				raw, matched, err := decodeNotification(n.Extra, path)
				if err != nil {
					b.logger.Warn("Malformed notification",
						zap.String("channel", n.Channel),
						zap.Error(err),
					)
					continue
				}
				if matched {
					handler(path, raw)
				}
			case <-time.After(90 * time.Second):
				go listener.Ping()
			}
		}
	}()

	return newSubscription(func() error {
		cancel()
		<-done
		return listener.Close()
	}), nil
}

func (b *PostgresBackend) deliverCurrent(ctx context.Context, path string, handler ValueHandler) {
	raw, err := b.FetchOnce(ctx, path)
	switch {
	case err == nil:
		handler(path, raw)
	case errors.Is(err, ErrAbsentValue):
	default:
		b.logger.Warn("Failed to read current value",
			zap.String("path", path),
			zap.Error(err),
		)
	}
}

// notification pg_notify 负载
type notification struct {
	Path  string  `json:"path"`
	Value *string `json:"value"`
}

// decodeNotification 解析通知，matched=false 表示不是本路径的变更
func decodeNotification(payload, path string) ([]byte, bool, error) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return nil, false, err
	}
	if n.Path != path {
		return nil, false, nil
	}
	if n.Value == nil {
		return []byte("null"), true, nil
	}
	return []byte(*n.Value), true, nil
}

// Close 关闭数据库连接
func (b *PostgresBackend) Close() error {
	return b.db.Close()
}
