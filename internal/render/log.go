package render

import (
	"temp-dashboard/internal/models"

	"go.uber.org/zap"
)

// LogRenderer 以结构化日志输出读数（无界面运行时使用）
type LogRenderer struct {
	logger *zap.Logger
}

func NewLogRenderer(logger *zap.Logger) *LogRenderer {
	return &LogRenderer{logger: logger}
}

func (r *LogRenderer) Listener() func(*models.Snapshot) {
	return func(snap *models.Snapshot) {
		readout := BuildReadout(snap)
		r.logger.Info("Dashboard updated",
			zap.String("current", readout.Current),
			zap.String("current_band", string(readout.CurrentBand)),
			zap.String("predicted", readout.Predicted),
			zap.String("accuracy", readout.Accuracy),
			zap.String("min", readout.Min),
			zap.String("max", readout.Max),
			zap.String("average", readout.Average),
			zap.String("prediction_diff", readout.PredictionDiff),
			zap.Int("points", len(snap.History.Actual)),
		)
	}
}
