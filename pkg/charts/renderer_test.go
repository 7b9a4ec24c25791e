package charts

import (
	"errors"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lirany1/synth-report/pkg/config"
	"github.com/lirany1/synth-report/pkg/evaluator"
	"github.com/lirany1/synth-report/pkg/models"
	"github.com/lirany1/synth-report/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	cfg := config.NewConfig()
	cfg.PlotsDir = filepath.Join(t.TempDir(), "plots")
	cfg.ChartWidth = 640
	cfg.ChartHeight = 320
	return NewRenderer(cfg)
}

func sampleRecord() models.MetricsRecord {
	return models.MetricsRecord{
		Module: "alu",
		Slack:  models.Float(-0.25),
		Delay:  models.Float(7.112),
		Power:  models.Float(0.009),
		LUTs:   models.Int(120),
		FFs:    models.Int(64),
		DSPs:   models.Int(4),
		BRAM:   models.Int(2),
		IO:     models.Int(35),
	}
}

func assertPNG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	_, err = png.Decode(f)
	assert.NoError(t, err, path)
}

func TestRender_AllCharts(t *testing.T) {
	r := newTestRenderer(t)
	spec := evaluator.ThresholdSpec{
		models.MetricSlack: 0,
		models.MetricLUTs:  200,
	}

	res := r.Render(sampleRecord(), spec)
	require.True(t, res.OK(), "warnings: %v", res.Warnings)
	assert.Empty(t, res.Skipped)

	want := []string{DistributionFile, PercentFile, HeatmapFile}
	for _, m := range models.Metrics {
		want = append(want, MetricFile(m))
	}
	want = append(want, "compare_alu_slack.png", "compare_alu_luts.png")

	require.Len(t, res.Written, len(want))
	for i, name := range want {
		assert.Equal(t, filepath.Join(r.Dir(), name), res.Written[i])
		assertPNG(t, res.Written[i])
	}
}

func TestRender_ZeroSumSkipsPercent(t *testing.T) {
	r := newTestRenderer(t)
	rec := models.NewRecord("idle")
	rec.LUTs = models.Int(0)

	res := r.Render(rec, nil)
	require.True(t, res.OK(), "warnings: %v", res.Warnings)
	assert.Contains(t, res.Skipped, PercentFile)
	assert.Contains(t, res.Written, filepath.Join(r.Dir(), DistributionFile))
	assert.Contains(t, res.Written, filepath.Join(r.Dir(), HeatmapFile))
	assert.Contains(t, res.Written, filepath.Join(r.Dir(), MetricFile(models.MetricLUTs)))
	assert.Contains(t, res.Skipped, MetricFile(models.MetricSlack))

	_, err := os.Stat(filepath.Join(r.Dir(), PercentFile))
	assert.True(t, os.IsNotExist(err))
}

func TestRender_UnknownVerdictSkipsComparison(t *testing.T) {
	r := newTestRenderer(t)
	rec := models.NewRecord("alu")
	rec.FFs = models.Int(10)

	res := r.Render(rec, evaluator.ThresholdSpec{models.MetricSlack: 0, models.MetricFFs: 5})
	require.True(t, res.OK())
	assert.Contains(t, res.Skipped, "compare_alu_slack.png")
	assert.Contains(t, res.Written, filepath.Join(r.Dir(), "compare_alu_ffs.png"))
}

func TestRender_NonNumericValueIsContained(t *testing.T) {
	r := newTestRenderer(t)
	rec := sampleRecord()
	rec.Power = models.Float(math.NaN())

	res := r.Render(rec, nil)
	require.False(t, res.OK())
	for _, w := range res.Warnings {
		assert.True(t, errors.Is(w, models.ErrNonNumericMetric), "%v", w)
	}
	assert.Contains(t, res.Written, filepath.Join(r.Dir(), MetricFile(models.MetricLUTs)))
	assert.NotContains(t, res.Written, filepath.Join(r.Dir(), MetricFile(models.MetricPower)))
}

func TestRender_UnwritableDirectory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	cfg := config.NewConfig()
	cfg.PlotsDir = filepath.Join(blocker, "plots")
	r := NewRenderer(cfg)

	res := r.Render(sampleRecord(), nil)
	assert.Empty(t, res.Written)
	// every chart is attempted and reported on its own
	assert.Len(t, res.Warnings, 3+len(models.Metrics))
	for _, w := range res.Warnings {
		assert.True(t, errors.Is(w, ErrChartWrite), "%v", w)
	}
}

func TestRender_Overwrites(t *testing.T) {
	r := newTestRenderer(t)
	first := r.Render(sampleRecord(), nil)
	second := r.Render(sampleRecord(), nil)
	assert.Equal(t, first.Written, second.Written)

	entries, err := os.ReadDir(r.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, len(first.Written))
}

func TestRenderTrends(t *testing.T) {
	r := newTestRenderer(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var entries []storage.Entry
	for i, slack := range []float64{-0.5, 0.1, 0.4} {
		rec := models.NewRecord("alu")
		rec.Slack = models.Float(slack)
		entries = append(entries, storage.Entry{ID: "e", RecordedAt: now.Add(time.Duration(i) * time.Hour), Record: rec})
	}

	res := r.RenderTrends(entries)
	require.True(t, res.OK(), "warnings: %v", res.Warnings)
	assert.Equal(t, []string{filepath.Join(r.Dir(), TrendFile(models.MetricSlack))}, res.Written)
	assert.Len(t, res.Skipped, len(models.Metrics)-1)
	assertPNG(t, res.Written[0])

	path, err := r.RenderTrend(models.MetricSlack, entries[:1])
	require.NoError(t, err)
	assertPNG(t, path)

	_, err = r.RenderTrend(models.MetricLUTs, entries)
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestFileNames(t *testing.T) {
	assert.Equal(t, "metric_luts.png", MetricFile(models.MetricLUTs))
	assert.Equal(t, "compare_alu_slack.png", CompareFile("alu", models.MetricSlack))
	assert.Equal(t, "compare_top_core_io.png", CompareFile("top/core", models.MetricIO))
	assert.Equal(t, "compare_unnamed_bram.png", CompareFile(" ", models.MetricBRAM))
	assert.Equal(t, "trend_delay.png", TrendFile(models.MetricDelay))
}
