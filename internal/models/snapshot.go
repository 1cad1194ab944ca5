package models

import "time"

// Stats 派生统计，未初始化的字段为 nil
type Stats struct {
	Min            *float64 `json:"min,omitempty"`
	Max            *float64 `json:"max,omitempty"`
	Average        *float64 `json:"average,omitempty"`
	PredictionDiff *float64 `json:"prediction_diff,omitempty"`
}

// TimeSeries 有界的双序列
// Timestamps 与 Actual 等长；Predicted 可能滞后，但不会比 Actual 长
// Predicted[i] 对应 Actual[i]
type TimeSeries struct {
	Timestamps []string  `json:"timestamps"`
	Actual     []float64 `json:"actual"`
	Predicted  []float64 `json:"predicted"`
}

// Snapshot 某一时刻的只读视图
// 每次更新整体替换，发布后不再修改
type Snapshot struct {
	CurrentTemp   *float64   `json:"current_temp,omitempty"`
	PredictedTemp *float64   `json:"predicted_temp,omitempty"`
	LastUpdated   *time.Time `json:"last_updated,omitempty"`
	Stats         Stats      `json:"stats"`
	History       TimeSeries `json:"history"`
}

// IsEmpty 是否尚未收到任何读数
func (s *Snapshot) IsEmpty() bool {
	return s == nil || (s.CurrentTemp == nil && s.PredictedTemp == nil)
}

// EmptySnapshot 返回空快照（序列为非 nil 的空切片，便于前端直接渲染）
func EmptySnapshot() *Snapshot {
	return &Snapshot{
		History: TimeSeries{
			Timestamps: []string{},
			Actual:     []float64{},
			Predicted:  []float64{},
		},
	}
}

// Float64Ptr 返回 v 的指针
func Float64Ptr(v float64) *float64 {
	return &v
}
