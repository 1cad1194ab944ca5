package render

import (
	"fmt"
	"math"
	"temp-dashboard/internal/models"
)

// 仪表盘量程（°C）
const (
	GaugeMin = 0.0
	GaugeMax = 40.0
)

// Placeholder 无数据时的显示
const Placeholder = "--"

// LastUpdatedLayout 最后更新时间精确到秒
const LastUpdatedLayout = "15:04:05"

// Band 温度色带
type Band string

const (
	BandCold Band = "cold"
	BandMild Band = "mild"
	BandWarm Band = "warm"
	BandHot  Band = "hot"
)

// Color 色带对应的颜色
func (b Band) Color() string {
	switch b {
	case BandCold:
		return "#4cc9f0"
	case BandMild:
		return "#4caf50"
	case BandWarm:
		return "#ff9800"
	default:
		return "#f44336"
	}
}

// FormatTemp 一位小数加单位
func FormatTemp(v float64) string {
	return fmt.Sprintf("%.1f°C", v)
}

// Accuracy 预测准确率（%），每差 1°C 扣 10%，最低 0
func Accuracy(diff float64) float64 {
	return math.Max(0, 100-diff*10)
}

// GaugePercent 把温度映射到仪表盘百分比，截断到 0-100
func GaugePercent(t float64) float64 {
	p := (t - GaugeMin) / (GaugeMax - GaugeMin) * 100
	return math.Min(math.Max(p, 0), 100)
}

// GaugeBand 温度所在色带
func GaugeBand(t float64) Band {
	switch {
	case t < 15:
		return BandCold
	case t < 25:
		return BandMild
	case t < 35:
		return BandWarm
	default:
		return BandHot
	}
}

// Readout 快照的文本读数
type Readout struct {
	Current        string
	Predicted      string
	LastUpdated    string
	Accuracy       string
	Min            string
	Max            string
	Average        string
	PredictionDiff string

	CurrentBand      Band
	PredictedBand    Band
	CurrentPercent   float64
	PredictedPercent float64
}

// BuildReadout 由快照生成读数，未设置的值显示占位符
func BuildReadout(snap *models.Snapshot) Readout {
	r := Readout{
		Current:        Placeholder,
		Predicted:      Placeholder,
		LastUpdated:    Placeholder,
		Accuracy:       Placeholder,
		Min:            Placeholder,
		Max:            Placeholder,
		Average:        Placeholder,
		PredictionDiff: Placeholder,
	}
	if snap == nil {
		return r
	}

	if snap.CurrentTemp != nil {
		r.Current = FormatTemp(*snap.CurrentTemp)
		r.CurrentBand = GaugeBand(*snap.CurrentTemp)
		r.CurrentPercent = GaugePercent(*snap.CurrentTemp)
	}
	if snap.PredictedTemp != nil {
		r.Predicted = FormatTemp(*snap.PredictedTemp)
		r.PredictedBand = GaugeBand(*snap.PredictedTemp)
		r.PredictedPercent = GaugePercent(*snap.PredictedTemp)
	}
	if snap.LastUpdated != nil {
		r.LastUpdated = snap.LastUpdated.Format(LastUpdatedLayout)
	}
	r.Min = formatOptional(snap.Stats.Min)
	r.Max = formatOptional(snap.Stats.Max)
	r.Average = formatOptional(snap.Stats.Average)
	if d := snap.Stats.PredictionDiff; d != nil {
		r.PredictionDiff = FormatTemp(*d)
		r.Accuracy = fmt.Sprintf("%.1f%%", Accuracy(*d))
	}
	return r
}

func formatOptional(v *float64) string {
	if v == nil {
		return Placeholder
	}
	return FormatTemp(*v)
}
