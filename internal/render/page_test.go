package render

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"temp-dashboard/internal/models"
	"temp-dashboard/internal/preference"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticTheme preference.Theme

func (s staticTheme) Current() preference.Theme {
	return preference.Theme(s)
}

func sampleSnapshot() *models.Snapshot {
	return &models.Snapshot{
		CurrentTemp:   models.Float64Ptr(21.5),
		PredictedTemp: models.Float64Ptr(22.0),
		Stats: models.Stats{
			Min:            models.Float64Ptr(20.0),
			Max:            models.Float64Ptr(21.5),
			Average:        models.Float64Ptr(20.75),
			PredictionDiff: models.Float64Ptr(0.5),
		},
		History: models.TimeSeries{
			Timestamps: []string{"09:01", "09:02"},
			Actual:     []float64{20.0, 21.5},
			Predicted:  []float64{20.4, 22.0},
		},
	}
}

func TestPageRenderer_Render(t *testing.T) {
	r := NewPageRenderer("", staticTheme(preference.ThemeDark), zap.NewNop())

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, sampleSnapshot()))

	html := buf.String()
	assert.Contains(t, html, "Temperature Trend")
	assert.Contains(t, html, "Actual Temperature")
	assert.Contains(t, html, "Predicted Temperature")
	assert.Contains(t, html, "09:02")
	assert.Contains(t, html, "chalk")
}

func TestPageRenderer_RenderEmpty(t *testing.T) {
	r := NewPageRenderer("", staticTheme(preference.ThemeLight), zap.NewNop())

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, nil))
	assert.Contains(t, buf.String(), "Current Temperature")
}

func TestPageRenderer_ListenerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "dashboard.html")
	r := NewPageRenderer(path, staticTheme(preference.ThemeLight), zap.NewNop())

	r.Listener()(sampleSnapshot())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Temperature Trend")

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestPageRenderer_GaugeUsesBandColor(t *testing.T) {
	r := NewPageRenderer("", staticTheme(preference.ThemeLight), zap.NewNop())
	snap := &models.Snapshot{
		CurrentTemp:   models.Float64Ptr(38),
		PredictedTemp: models.Float64Ptr(5),
	}

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, snap))

	html := buf.String()
	assert.Contains(t, html, BandHot.Color())
	assert.Contains(t, html, BandCold.Color())
	assert.NotContains(t, html, BandMild.Color())
}

type snapshotFunc func() *models.Snapshot

func (f snapshotFunc) GetSnapshot() *models.Snapshot {
	return f()
}

func TestPageRenderer_RefreshReadsLatestSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.html")
	r := NewPageRenderer(path, staticTheme(preference.ThemeDark), zap.NewNop())

	stale := sampleSnapshot()
	require.NoError(t, r.WriteFile(stale))

	latest := sampleSnapshot()
	latest.History.Timestamps = append(latest.History.Timestamps, "09:03")
	latest.History.Actual = append(latest.History.Actual, 23.0)
	require.NoError(t, r.Refresh(snapshotFunc(func() *models.Snapshot { return latest })))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "09:03")
}
