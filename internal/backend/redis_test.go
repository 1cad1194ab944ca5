package backend

import (
	"context"
	"testing"
	"time"

	rediscommon "temp-dashboard/common/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client, *RedisBackend) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := NewRedisBackend(client, "dashboard:", "dashboard:changes:", zap.NewNop())
	t.Cleanup(func() { b.Close() })
	return mr, client, b
}

type received struct {
	path string
	raw  string
}

func collect(ch chan received) ValueHandler {
	return func(path string, raw []byte) {
		ch <- received{path: path, raw: string(raw)}
	}
}

func waitValue(t *testing.T, ch <-chan received) received {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for value")
		return received{}
	}
}

func TestRedisBackend_FetchOnce(t *testing.T) {
	mr, _, b := setupTestRedis(t)
	ctx := context.Background()

	_, err := b.FetchOnce(ctx, "Temp/actual")
	assert.ErrorIs(t, err, ErrAbsentValue)

	require.NoError(t, mr.Set("dashboard:Temp/actual", "22.5"))
	raw, err := b.FetchOnce(ctx, "Temp/actual")
	require.NoError(t, err)
	assert.Equal(t, "22.5", string(raw))
}

func TestRedisBackend_FetchOnce_ConnectionError(t *testing.T) {
	mr, _, b := setupTestRedis(t)
	mr.Close()

	_, err := b.FetchOnce(context.Background(), "Temp/actual")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAbsentValue)
}

func TestRedisBackend_Subscribe_DeliversCurrentThenChanges(t *testing.T) {
	mr, client, b := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, mr.Set("dashboard:Temp/actual", "20"))

	values := make(chan received, 4)
	sub, err := b.Subscribe(ctx, "Temp/actual", collect(values))
	require.NoError(t, err)

	assert.Equal(t, received{path: "Temp/actual", raw: "20"}, waitValue(t, values))

	require.NoError(t, rediscommon.PublishValue(ctx, client, "dashboard:Temp/actual", "dashboard:changes:Temp/actual", "21.5"))
	assert.Equal(t, received{path: "Temp/actual", raw: "21.5"}, waitValue(t, values))

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	require.NoError(t, rediscommon.PublishValue(ctx, client, "dashboard:Temp/actual", "dashboard:changes:Temp/actual", "30"))
	select {
	case v := <-values:
		t.Fatalf("unexpected value after close: %+v", v)
	case <-time.After(100 * time.Millisecond):
	}
}

// 路径无数据时不回调当前值
func TestRedisBackend_Subscribe_AbsentCurrentValue(t *testing.T) {
	_, client, b := setupTestRedis(t)
	ctx := context.Background()

	values := make(chan received, 4)
	sub, err := b.Subscribe(ctx, "Temp/prediction", collect(values))
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, rediscommon.PublishValue(ctx, client, "dashboard:Temp/prediction", "dashboard:changes:Temp/prediction", "19"))
	assert.Equal(t, "19", waitValue(t, values).raw)
}
