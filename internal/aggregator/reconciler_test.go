package aggregator_test

import (
	"context"
	"testing"
	"time"

	agg "temp-dashboard/internal/aggregator"
	"temp-dashboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockRecorder 是 Recorder 的 mock 实现
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordActual(value float64) {
	m.Called(value)
}

func (m *MockRecorder) RecordPredicted(value float64) {
	m.Called(value)
}

var testChannels = agg.NewChannels("Temp", "Temo")

func TestNewChannels(t *testing.T) {
	assert.Equal(t, "Temp/actual", testChannels.CanonicalActual)
	assert.Equal(t, "Temo/actual", testChannels.LegacyActual)
	assert.Equal(t, "Temp/prediction", testChannels.Prediction)
}

func TestChannelReconciler_Apply_ForwardsByKind(t *testing.T) {
	rec := new(MockRecorder)
	rec.On("RecordActual", 21.5).Return().Once()
	rec.On("RecordPredicted", 22.0).Return().Once()

	r := agg.NewChannelReconciler(newFakeBackend(), rec, testChannels, 0, zap.NewNop())
	assert.Equal(t, agg.LastWriteWins, r.Policy())

	ok, err := r.Apply(agg.Update{Path: "Temp/actual", Kind: models.KindActual, Raw: []byte("21.5")})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Apply(agg.Update{Path: "Temp/prediction", Kind: models.KindPredicted, Raw: []byte(`"22"`)})
	require.NoError(t, err)
	assert.True(t, ok)

	rec.AssertExpectations(t)
}

// null 值被忽略，不记为 0
func TestChannelReconciler_Apply_IgnoresAbsentValue(t *testing.T) {
	rec := new(MockRecorder)
	r := agg.NewChannelReconciler(newFakeBackend(), rec, testChannels, 0, zap.NewNop())

	ok, err := r.Apply(agg.Update{Path: "Temp/actual", Kind: models.KindActual, Raw: []byte("null")})
	require.NoError(t, err)
	assert.False(t, ok)

	rec.AssertNotCalled(t, "RecordActual", mock.Anything)
}

func TestChannelReconciler_Apply_RejectsInvalidReading(t *testing.T) {
	rec := new(MockRecorder)
	r := agg.NewChannelReconciler(newFakeBackend(), rec, testChannels, 0, zap.NewNop())

	ok, err := r.Apply(agg.Update{Path: "Temo/actual", Kind: models.KindActual, Raw: []byte("warm")})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidReading)
	assert.Contains(t, err.Error(), "Temo/actual")
	assert.False(t, ok)

	rec.AssertNotCalled(t, "RecordActual", mock.Anything)
}

// 启动后订阅三个通道；两个实际值通道的同一事件记录两次
func TestChannelReconciler_Start_MergesChannels(t *testing.T) {
	b := newFakeBackend()
	b.set("Temp/actual", "20.0")

	store := agg.NewTimeSeriesStore(20, fixedClock())
	pub := agg.NewSnapshotPublisher(store, zap.NewNop())

	notified := make(chan *models.Snapshot, 16)
	pub.Subscribe(func(s *models.Snapshot) { notified <- s })

	r := agg.NewChannelReconciler(b, pub, testChannels, 8, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()

	// 订阅时立即回放当前值
	waitSnapshot(t, notified)

	b.push("Temo/actual", "21.0")
	b.push("Temp/actual", "21.0")
	b.push("Temp/prediction", "22.0")
	b.push("Temp/prediction", "null")

	var last *models.Snapshot
	for i := 0; i < 3; i++ {
		last = waitSnapshot(t, notified)
	}

	assert.Equal(t, []float64{20.0, 21.0, 21.0}, last.History.Actual)
	assert.Equal(t, []float64{22.0}, last.History.Predicted)
	assert.InDelta(t, 1.0, *last.Stats.PredictionDiff, 1e-9)

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, r.Stop())
	assert.Equal(t, 3, b.closedCount())

	select {
	case s := <-notified:
		t.Fatalf("unexpected notification: %+v", s)
	default:
	}
}

func waitSnapshot(t *testing.T, ch <-chan *models.Snapshot) *models.Snapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}
