package aggregator

import (
	"context"
	"errors"
	"fmt"
	"temp-dashboard/internal/backend"
	"temp-dashboard/internal/models"
	"time"

	"go.uber.org/zap"
)

// SnapshotReader 读取当前快照
type SnapshotReader interface {
	GetSnapshot() *models.Snapshot
}

// InitialLoader 启动时的一次性数据加载，让界面不至于空白
type InitialLoader struct {
	backend    backend.Backend
	reconciler *ChannelReconciler
	snapshots  SnapshotReader
	timeout    time.Duration
	logger     *zap.Logger
}

// NewInitialLoader 创建加载器，timeout 为 0 表示不设超时
func NewInitialLoader(
	b backend.Backend,
	reconciler *ChannelReconciler,
	snapshots SnapshotReader,
	timeout time.Duration,
	logger *zap.Logger,
) *InitialLoader {
	return &InitialLoader{
		backend:    b,
		reconciler: reconciler,
		snapshots:  snapshots,
		timeout:    timeout,
		logger:     logger,
	}
}

// Load 读取最近的实际值和预测值，按实时更新的方式写入存储
// 实际值先读旧路径，旧路径无数据才读规范路径；预测值独立读取
// 任一读取失败时返回 ErrFetchFailure，且不写入任何值
func (l *InitialLoader) Load(ctx context.Context) (*models.Snapshot, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	channels := l.reconciler.Channels()

	actualPath := channels.LegacyActual
	actualRaw, found, err := l.fetch(ctx, actualPath)
	if err != nil {
		return nil, err
	}
	if !found && channels.CanonicalActual != channels.LegacyActual {
		actualPath = channels.CanonicalActual
		actualRaw, found, err = l.fetch(ctx, actualPath)
		if err != nil {
			return nil, err
		}
	}

	predictionRaw, predictionFound, err := l.fetch(ctx, channels.Prediction)
	if err != nil {
		return nil, err
	}

	if found {
		l.apply(Update{Path: actualPath, Kind: models.KindActual, Raw: actualRaw})
	}
	if predictionFound {
		l.apply(Update{Path: channels.Prediction, Kind: models.KindPredicted, Raw: predictionRaw})
	}

	snap := l.snapshots.GetSnapshot()
	l.logger.Info("Initial data loaded",
		zap.Bool("has_actual", snap.CurrentTemp != nil),
		zap.Bool("has_prediction", snap.PredictedTemp != nil),
		zap.String("actual_path", actualPath),
	)
	return snap, nil
}

// fetch 读取单个路径，空值与 ErrAbsentValue 同样视为无数据
func (l *InitialLoader) fetch(ctx context.Context, path string) ([]byte, bool, error) {
	raw, err := l.backend.FetchOnce(ctx, path)
	if err != nil {
		if errors.Is(err, backend.ErrAbsentValue) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %s: %v", models.ErrFetchFailure, path, err)
	}
	if _, present, perr := models.ParseReading(raw); perr == nil && !present {
		return nil, false, nil
	}
	return raw, true, nil
}

func (l *InitialLoader) apply(u Update) {
	if _, err := l.reconciler.Apply(u); err != nil {
		l.logger.Warn("Ignored invalid initial value",
			zap.String("path", u.Path),
			zap.Error(err),
		)
	}
}
