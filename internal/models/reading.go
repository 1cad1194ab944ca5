package models

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

var (
	// ErrInvalidReading 上游值不是有限数字
	ErrInvalidReading = errors.New("invalid reading")

	// ErrFetchFailure 启动时一次性读取失败（网络、权限或存储错误）
	ErrFetchFailure = errors.New("fetch failure")
)

// Kind 读数所属的逻辑信号
type Kind string

const (
	KindActual    Kind = "actual"
	KindPredicted Kind = "predicted"
)

// ParseReading 解析后端推送的原始值
// 返回 present=false 表示值为空（null 或无数据），调用方应忽略而不是记为 0
// 支持 JSON 数字和数字字符串（部分固件以字符串上报）
func ParseReading(raw []byte) (value float64, present bool, err error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0, false, nil
	}

	var decoded interface{}
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return 0, false, fmt.Errorf("%w: %q", ErrInvalidReading, truncate(trimmed))
	}

	switch v := decoded.(type) {
	case nil:
		return 0, false, nil
	case float64:
		value = v
	case string:
		f, perr := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if perr != nil {
			return 0, false, fmt.Errorf("%w: %q", ErrInvalidReading, v)
		}
		value = f
	default:
		return 0, false, fmt.Errorf("%w: unsupported type %T", ErrInvalidReading, decoded)
	}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false, fmt.Errorf("%w: non-finite value", ErrInvalidReading)
	}
	return value, true, nil
}

func truncate(b []byte) string {
	const max = 64
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
