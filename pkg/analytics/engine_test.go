package analytics

import (
	"testing"

	"github.com/lirany1/synth-report/pkg/models"
	"github.com/lirany1/synth-report/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(module string, slack float64, luts int) models.MetricsRecord {
	rec := models.NewRecord(module)
	rec.Slack = models.Float(slack)
	rec.LUTs = models.Int(luts)
	return rec
}

func TestEngine_Analyze(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Append(run("alu", -0.5, 140)))
	require.NoError(t, store.Append(run("fifo", 3.0, 10)))
	require.NoError(t, store.Append(run("alu", 0.2, 150)))

	report, err := NewEngine(store).Analyze("alu", 0)
	require.NoError(t, err)
	assert.Equal(t, "alu", report.Module)
	assert.Equal(t, 2, report.Runs)
	require.Len(t, report.Trends, len(models.Metrics))

	slack, ok := report.Trend(models.MetricSlack)
	require.True(t, ok)
	assert.Equal(t, 2, slack.Samples)
	assert.Equal(t, Improving, slack.Direction)
	assert.InDelta(t, 0.7, *slack.Delta, 1e-9)
	assert.Equal(t, -0.5, *slack.First)
	assert.Equal(t, 0.2, *slack.Latest)
	assert.InDelta(t, -0.15, slack.Mean, 1e-9)

	luts, ok := report.Trend(models.MetricLUTs)
	require.True(t, ok)
	assert.Equal(t, Degrading, luts.Direction)
	assert.Equal(t, 140.0, luts.Min)
	assert.Equal(t, 150.0, luts.Max)

	power, ok := report.Trend(models.MetricPower)
	require.True(t, ok)
	assert.Equal(t, NoData, power.Direction)
	assert.Zero(t, power.Samples)
	assert.Nil(t, power.Latest)

	assert.Equal(t, []models.MetricName{models.MetricLUTs}, report.Degrading())
}

func TestEngine_AnalyzeLimit(t *testing.T) {
	store := storage.NewMemoryStore()
	for _, luts := range []int{100, 200, 300, 301} {
		require.NoError(t, store.Append(run("alu", 1, luts)))
	}

	report, err := NewEngine(store).Analyze("", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Runs)

	luts, _ := report.Trend(models.MetricLUTs)
	assert.Equal(t, 300.0, *luts.First)
	assert.Equal(t, Stable, luts.Direction, "1 LUT on 300 is within tolerance")

	report, err = NewEngine(store).WithTolerance(0).Analyze("", 2)
	require.NoError(t, err)
	luts, _ = report.Trend(models.MetricLUTs)
	assert.Equal(t, Degrading, luts.Direction)
}

func TestEngine_EmptyHistory(t *testing.T) {
	report, err := NewEngine(storage.NewMemoryStore()).Analyze("", 0)
	require.NoError(t, err)
	assert.Zero(t, report.Runs)
	assert.True(t, report.From.IsZero())
	for _, trend := range report.Trends {
		assert.Equal(t, NoData, trend.Direction)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		metric   models.MetricName
		previous float64
		delta    float64
		want     Direction
	}{
		{"slack up", models.MetricSlack, 0.1, 0.5, Improving},
		{"slack down", models.MetricSlack, 0.1, -0.5, Degrading},
		{"delay down", models.MetricDelay, 8, -1, Improving},
		{"power up", models.MetricPower, 0.2, 0.1, Degrading},
		{"tiny change", models.MetricFFs, 1000, 5, Stable},
		{"from zero", models.MetricDSPs, 0, 1, Degrading},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.metric, tt.previous, tt.delta, DefaultTolerance))
		})
	}
}
