package preference

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ThemeKey 主题偏好的固定键
const ThemeKey = "theme"

// Theme 界面主题
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// IsDark 是否深色主题
func (t Theme) IsDark() bool {
	return t == ThemeDark
}

// ThemeManager 主题偏好：启动时读取一次，每次切换时写入
type ThemeManager struct {
	kv     KVStore
	logger *zap.Logger

	mu      sync.RWMutex
	current Theme
}

// NewThemeManager 创建主题管理器，初始为浅色
func NewThemeManager(kv KVStore, logger *zap.Logger) *ThemeManager {
	return &ThemeManager{
		kv:      kv,
		logger:  logger,
		current: ThemeLight,
	}
}

// Init 读取保存的主题
// 没有保存值时按时间决定：18:00 到次日 06:00 使用深色并保存；白天使用浅色，不保存
func (m *ThemeManager) Init(ctx context.Context, now time.Time) (Theme, error) {
	saved, err := m.kv.Get(ctx, ThemeKey)
	switch {
	case err == nil:
		theme := ThemeLight
		if Theme(saved) == ThemeDark {
			theme = ThemeDark
		}
		m.set(theme)
		return theme, nil
	case !errors.Is(err, ErrCacheMiss):
		m.logger.Warn("Failed to read theme preference, using default", zap.Error(err))
	}

	hour := now.Hour()
	if hour < 6 || hour >= 18 {
		m.set(ThemeDark)
		if err := m.kv.Set(ctx, ThemeKey, string(ThemeDark), 0); err != nil {
			return ThemeDark, fmt.Errorf("failed to save theme: %w", err)
		}
		return ThemeDark, nil
	}

	m.set(ThemeLight)
	return ThemeLight, nil
}

// Toggle 切换主题并保存
func (m *ThemeManager) Toggle(ctx context.Context) (Theme, error) {
	m.mu.Lock()
	if m.current == ThemeDark {
		m.current = ThemeLight
	} else {
		m.current = ThemeDark
	}
	theme := m.current
	m.mu.Unlock()

	if err := m.kv.Set(ctx, ThemeKey, string(theme), 0); err != nil {
		return theme, fmt.Errorf("failed to save theme: %w", err)
	}
	m.logger.Info("Theme toggled", zap.String("theme", string(theme)))
	return theme, nil
}

// Current 当前主题
func (m *ThemeManager) Current() Theme {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *ThemeManager) set(t Theme) {
	m.mu.Lock()
	m.current = t
	m.mu.Unlock()
}
