package render

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"temp-dashboard/internal/models"
	"temp-dashboard/internal/preference"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"go.uber.org/zap"
)

// ThemeSource 提供当前主题
type ThemeSource interface {
	Current() preference.Theme
}

// SnapshotSource 提供最新快照
type SnapshotSource interface {
	GetSnapshot() *models.Snapshot
}

// PageRenderer 把快照渲染成 HTML 看板
type PageRenderer struct {
	mu     sync.Mutex
	path   string
	themes ThemeSource
	logger *zap.Logger
}

// NewPageRenderer 创建页面渲染器，path 为输出文件
func NewPageRenderer(path string, themes ThemeSource, logger *zap.Logger) *PageRenderer {
	return &PageRenderer{
		path:   path,
		themes: themes,
		logger: logger,
	}
}

func chartTheme(theme preference.Theme) string {
	if theme.IsDark() {
		return types.ThemeChalk
	}
	return types.ThemeWesteros
}

// Render 渲染整页：当前/预测仪表盘 + 趋势图
func (r *PageRenderer) Render(w io.Writer, snap *models.Snapshot) error {
	if snap == nil {
		snap = models.EmptySnapshot()
	}
	readout := BuildReadout(snap)
	theme := chartTheme(r.themes.Current())

	page := components.NewPage()
	page.AddCharts(
		gauge("Current Temperature", readout.Current, readout.CurrentBand, readout.CurrentPercent, snap.CurrentTemp != nil, theme),
		gauge("Predicted Temperature", readout.Predicted, readout.PredictedBand, readout.PredictedPercent, snap.PredictedTemp != nil, theme),
		trend(snap, readout, theme),
	)
	return page.Render(w)
}

// WriteFile 渲染到临时文件后原子替换
func (r *PageRenderer) WriteFile(snap *models.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeLocked(snap)
}

// Refresh 在写锁内读取最新快照并重写页面，用于主题切换等非快照触发的重绘
func (r *PageRenderer) Refresh(snapshots SnapshotSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeLocked(snapshots.GetSnapshot())
}

func (r *PageRenderer) writeLocked(snap *models.Snapshot) error {
	var buf bytes.Buffer
	if err := r.Render(&buf, snap); err != nil {
		return fmt.Errorf("failed to render page: %w", err)
	}

	if dir := filepath.Dir(r.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write page: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to replace page: %w", err)
	}
	return nil
}

// Listener 每次快照变更重写页面
func (r *PageRenderer) Listener() func(*models.Snapshot) {
	return func(snap *models.Snapshot) {
		if err := r.WriteFile(snap); err != nil {
			r.logger.Error("Failed to render dashboard page",
				zap.String("path", r.path),
				zap.Error(err),
			)
		}
	}
}

// gauge 指针颜色随温度色带变化
func gauge(title, value string, band Band, percent float64, present bool, theme string) *charts.Gauge {
	g := charts.NewGauge()
	subtitle := Placeholder
	if present {
		subtitle = fmt.Sprintf("%s (%s)", value, band)
	}
	g.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: theme}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
	)

	if !present {
		g.AddSeries(title, []opts.GaugeData{})
		return g
	}
	g.AddSeries(title,
		[]opts.GaugeData{{Name: value, Value: fmt.Sprintf("%.0f", percent)}},
		charts.WithItemStyleOpts(opts.ItemStyle{Color: band.Color()}),
	)
	return g
}

func trend(snap *models.Snapshot, readout Readout, theme string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: theme}),
		charts.WithTitleOpts(opts.Title{
			Title: "Temperature Trend",
			Subtitle: fmt.Sprintf("Min %s | Max %s | Avg %s | Diff %s | Accuracy %s | Updated %s",
				readout.Min, readout.Max, readout.Average, readout.PredictionDiff, readout.Accuracy, readout.LastUpdated),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Top: "bottom"}),
	)

	actual := make([]opts.LineData, 0, len(snap.History.Actual))
	for _, v := range snap.History.Actual {
		actual = append(actual, opts.LineData{Value: v})
	}
	predicted := make([]opts.LineData, 0, len(snap.History.Predicted))
	for _, v := range snap.History.Predicted {
		predicted = append(predicted, opts.LineData{Value: v})
	}

	line.SetXAxis(snap.History.Timestamps).
		AddSeries("Actual Temperature", actual).
		AddSeries("Predicted Temperature", predicted)
	return line
}
