// Package charts turns metrics records into PNG artifacts.
package charts

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/lirany1/synth-report/pkg/config"
	"github.com/lirany1/synth-report/pkg/evaluator"
	"github.com/lirany1/synth-report/pkg/logger"
	"github.com/lirany1/synth-report/pkg/models"
	"github.com/sirupsen/logrus"
)

var (
	// ErrChartWrite wraps any failure to render or write one chart
	ErrChartWrite = errors.New("chart write failed")
	// ErrNoData marks a chart that was skipped because there was nothing to draw
	ErrNoData = errors.New("nothing to plot")
)

// Fixed artifact names. Reruns overwrite them.
const (
	DistributionFile = "synthesis_plot.png"
	PercentFile      = "synthesis_percent.png"
	HeatmapFile      = "synthesis_heatmap.png"
)

// MetricFile is the name of the single-bar chart for one metric
func MetricFile(m models.MetricName) string {
	return "metric_" + strings.ToLower(string(m)) + ".png"
}

// CompareFile is the name of the actual-vs-goal chart for one metric
func CompareFile(module string, m models.MetricName) string {
	return "compare_" + models.SafeName(module) + "_" + strings.ToLower(string(m)) + ".png"
}

// TrendFile is the name of the history line chart for one metric
func TrendFile(m models.MetricName) string {
	return "trend_" + strings.ToLower(string(m)) + ".png"
}

// Renderer writes charts into a plots directory
type Renderer struct {
	dir    string
	width  int
	height int
}

// NewRenderer creates a renderer from the plots settings in cfg
func NewRenderer(cfg *config.Config) *Renderer {
	return &Renderer{
		dir:    cfg.PlotsDir,
		width:  cfg.ChartWidth,
		height: cfg.ChartHeight,
	}
}

// Dir returns the output directory
func (r *Renderer) Dir() string {
	return r.dir
}

// Result lists what a render pass produced. Warnings never stop the pass.
type Result struct {
	Written  []string `json:"written" yaml:"written"`
	Skipped  []string `json:"skipped" yaml:"skipped"`
	Warnings []error  `json:"-" yaml:"-"`
}

// OK reports whether every attempted chart was written or deliberately skipped
func (res *Result) OK() bool {
	return len(res.Warnings) == 0
}

func (res *Result) merge(other *Result) {
	res.Written = append(res.Written, other.Written...)
	res.Skipped = append(res.Skipped, other.Skipped...)
	res.Warnings = append(res.Warnings, other.Warnings...)
}

// Render draws every chart for rec. Comparison charts are drawn only for
// metrics with a goal in spec; spec may be nil.
func (r *Renderer) Render(rec models.MetricsRecord, spec evaluator.ThresholdSpec) *Result {
	res := &Result{}

	r.attempt(res, DistributionFile, func(path string) error {
		return r.renderDistribution(path, rec)
	})
	r.attempt(res, PercentFile, func(path string) error {
		return r.renderPercent(path, rec)
	})
	r.attempt(res, HeatmapFile, func(path string) error {
		return r.renderHeatmap(path, rec)
	})
	for _, m := range models.Metrics {
		r.attempt(res, MetricFile(m), func(path string) error {
			return r.renderMetric(path, rec, m)
		})
	}

	if len(spec) > 0 {
		verdicts := evaluator.Evaluate(rec, spec)
		for _, m := range models.Metrics {
			goal, ok := spec[m]
			if !ok {
				continue
			}
			r.attempt(res, CompareFile(rec.Module, m), func(path string) error {
				return r.renderCompare(path, rec, m, goal, verdicts)
			})
		}
	}

	logger.Infof("Charts for %s: %d written, %d skipped, %d failed",
		rec.Module, len(res.Written), len(res.Skipped), len(res.Warnings))
	return res
}

// attempt runs one chart step and files its outcome
func (r *Renderer) attempt(res *Result, name string, draw func(path string) error) {
	path := filepath.Join(r.dir, name)
	err := draw(path)
	switch {
	case err == nil:
		res.Written = append(res.Written, path)
	case errors.Is(err, ErrNoData):
		logger.Debugf("Skipping %s: %v", name, err)
		res.Skipped = append(res.Skipped, name)
	default:
		logger.WithFields(logrus.Fields{"chart": name}).Warnf("chart not produced: %v", err)
		res.Warnings = append(res.Warnings, fmt.Errorf("%s: %w", name, err))
	}
}

// writePNG stores encoded image bytes at path
func writePNG(path string, buf *bytes.Buffer) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrChartWrite, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrChartWrite, err)
	}
	return nil
}

// plotValues returns every metric value in column order, missing as 0
func plotValues(rec models.MetricsRecord) ([]float64, error) {
	values := make([]float64, len(models.Metrics))
	for i, m := range models.Metrics {
		v := rec.PlotValue(m)
		if err := checkFinite(m, v); err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func checkFinite(m models.MetricName, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s=%v", models.ErrNonNumericMetric, m, v)
	}
	return nil
}
