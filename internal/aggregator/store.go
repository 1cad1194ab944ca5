package aggregator

import (
	"math"
	"sync"
	"temp-dashboard/internal/models"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultCapacity 历史窗口默认点数
const DefaultCapacity = 20

// TimestampLayout 历史时间戳格式（时:分）
const TimestampLayout = "15:04"

// Recorder 接收已解析读数的一方（TimeSeriesStore 或 SnapshotPublisher）
type Recorder interface {
	RecordActual(value float64)
	RecordPredicted(value float64)
}

// TimeSeriesStore 有界的实际值/预测值双序列
// 每次变更后重建快照，读方拿到的快照永远不会被修改
type TimeSeriesStore struct {
	mu       sync.Mutex
	capacity int
	clock    func() time.Time

	timestamps []string
	actual     []float64
	predicted  []float64

	currentTemp   *float64
	predictedTemp *float64
	lastUpdated   *time.Time

	snapshot *models.Snapshot
}

// NewTimeSeriesStore 创建存储
// capacity <= 0 时使用 DefaultCapacity；clock 为 nil 时使用 time.Now
func NewTimeSeriesStore(capacity int, clock func() time.Time) *TimeSeriesStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if clock == nil {
		clock = time.Now
	}
	return &TimeSeriesStore{
		capacity:   capacity,
		clock:      clock,
		timestamps: make([]string, 0, capacity+1),
		actual:     make([]float64, 0, capacity+1),
		predicted:  make([]float64, 0, capacity+1),
		snapshot:   models.EmptySnapshot(),
	}
}

// Capacity 返回窗口容量
func (s *TimeSeriesStore) Capacity() int {
	return s.capacity
}

// RecordActual 追加一个实际读数
func (s *TimeSeriesStore) RecordActual(value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	s.lastUpdated = &now
	s.currentTemp = models.Float64Ptr(value)

	s.timestamps = append(s.timestamps, now.Format(TimestampLayout))
	s.actual = append(s.actual, value)

	if len(s.actual) > s.capacity {
		s.timestamps = s.timestamps[1:]
		s.actual = s.actual[1:]
	}

	s.rebuildLocked()
}

// RecordPredicted 记录一个预测值
// 预测序列短于实际序列时追加，否则视为对最后一个预测点的修正
// 尚无实际读数时只更新当前预测值，不写入历史
func (s *TimeSeriesStore) RecordPredicted(value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	s.lastUpdated = &now
	s.predictedTemp = models.Float64Ptr(value)

	switch {
	case len(s.actual) == 0:
	case len(s.predicted) < len(s.actual):
		s.predicted = append(s.predicted, value)
	default:
		s.predicted[len(s.predicted)-1] = value
	}

	// 预测序列只在自身超出容量时淘汰
	if len(s.predicted) > s.capacity {
		s.predicted = s.predicted[1:]
	}

	s.rebuildLocked()
}

// CurrentSnapshot 返回最新快照
func (s *TimeSeriesStore) CurrentSnapshot() *models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

func (s *TimeSeriesStore) rebuildLocked() {
	snap := &models.Snapshot{
		CurrentTemp:   copyFloat(s.currentTemp),
		PredictedTemp: copyFloat(s.predictedTemp),
		History: models.TimeSeries{
			Timestamps: append([]string(nil), s.timestamps...),
			Actual:     append([]float64(nil), s.actual...),
			Predicted:  append([]float64(nil), s.predicted...),
		},
	}
	if snap.History.Timestamps == nil {
		snap.History.Timestamps = []string{}
	}
	if snap.History.Actual == nil {
		snap.History.Actual = []float64{}
	}
	if snap.History.Predicted == nil {
		snap.History.Predicted = []float64{}
	}
	if s.lastUpdated != nil {
		t := *s.lastUpdated
		snap.LastUpdated = &t
	}

	if len(s.actual) > 0 {
		snap.Stats.Min = models.Float64Ptr(floats.Min(s.actual))
		snap.Stats.Max = models.Float64Ptr(floats.Max(s.actual))
		snap.Stats.Average = models.Float64Ptr(stat.Mean(s.actual, nil))
	}
	if len(s.actual) > 0 && len(s.predicted) > 0 {
		diff := math.Abs(s.predicted[len(s.predicted)-1] - s.actual[len(s.actual)-1])
		snap.Stats.PredictionDiff = &diff
	}

	s.snapshot = snap
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return models.Float64Ptr(*v)
}
