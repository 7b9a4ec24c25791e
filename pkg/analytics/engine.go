// Package analytics derives metric trends from the stored history.
package analytics

import (
	"fmt"
	"math"
	"time"

	"github.com/lirany1/synth-report/pkg/models"
	"github.com/lirany1/synth-report/pkg/storage"
)

// Direction classifies the latest change of a metric
type Direction string

const (
	Improving Direction = "improving"
	Degrading Direction = "degrading"
	Stable    Direction = "stable"
	// NoData means fewer than two runs reported the metric
	NoData Direction = "unknown"
)

// DefaultTolerance is the relative change below which a metric is stable
const DefaultTolerance = 0.01

// MetricTrend summarizes one metric across the analyzed runs
type MetricTrend struct {
	Metric    models.MetricName `json:"metric" yaml:"metric"`
	Samples   int               `json:"samples" yaml:"samples"`
	First     *float64          `json:"first,omitempty" yaml:"first,omitempty"`
	Previous  *float64          `json:"previous,omitempty" yaml:"previous,omitempty"`
	Latest    *float64          `json:"latest,omitempty" yaml:"latest,omitempty"`
	Delta     *float64          `json:"delta,omitempty" yaml:"delta,omitempty"`
	Min       float64           `json:"min" yaml:"min"`
	Max       float64           `json:"max" yaml:"max"`
	Mean      float64           `json:"mean" yaml:"mean"`
	Direction Direction         `json:"direction" yaml:"direction"`
}

// Report is the trend analysis of a run history
type Report struct {
	Module string        `json:"module,omitempty" yaml:"module,omitempty"`
	Runs   int           `json:"runs" yaml:"runs"`
	From   time.Time     `json:"from" yaml:"from"`
	To     time.Time     `json:"to" yaml:"to"`
	Trends []MetricTrend `json:"trends" yaml:"trends"`
}

// Trend returns the trend of one metric
func (r *Report) Trend(m models.MetricName) (MetricTrend, bool) {
	for _, t := range r.Trends {
		if t.Metric == m {
			return t, true
		}
	}
	return MetricTrend{}, false
}

// Degrading lists the metrics whose latest change made them worse
func (r *Report) Degrading() []models.MetricName {
	var out []models.MetricName
	for _, t := range r.Trends {
		if t.Direction == Degrading {
			out = append(out, t.Metric)
		}
	}
	return out
}

// Engine handles analytics over a metrics store
type Engine struct {
	store     storage.Store
	tolerance float64
}

// NewEngine creates an analytics engine reading from store
func NewEngine(store storage.Store) *Engine {
	return &Engine{
		store:     store,
		tolerance: DefaultTolerance,
	}
}

// WithTolerance sets the relative change treated as stable
func (e *Engine) WithTolerance(tolerance float64) *Engine {
	e.tolerance = tolerance
	return e
}

// Analyze reads the last limit runs of module (all runs and modules when
// empty or <= 0) and summarizes them
func (e *Engine) Analyze(module string, limit int) (*Report, error) {
	var entries []storage.Entry
	for entry, err := range e.store.History() {
		if err != nil {
			return nil, fmt.Errorf("failed to read history: %w", err)
		}
		if module != "" && entry.Record.Module != module {
			continue
		}
		entries = append(entries, entry)
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	report := Summarize(entries, e.tolerance)
	report.Module = module
	return report, nil
}

// Summarize computes per-metric trends over entries in run order
func Summarize(entries []storage.Entry, tolerance float64) *Report {
	report := &Report{
		Runs:   len(entries),
		Trends: make([]MetricTrend, 0, len(models.Metrics)),
	}
	if len(entries) > 0 {
		report.From = entries[0].RecordedAt
		report.To = entries[len(entries)-1].RecordedAt
	}

	for _, m := range models.Metrics {
		report.Trends = append(report.Trends, metricTrend(m, entries, tolerance))
	}
	return report
}

func metricTrend(m models.MetricName, entries []storage.Entry, tolerance float64) MetricTrend {
	trend := MetricTrend{Metric: m, Direction: NoData}

	sum := 0.0
	for _, e := range entries {
		v, ok := e.Record.Value(m)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if trend.Samples == 0 {
			trend.First = models.Float(v)
			trend.Min, trend.Max = v, v
		}
		trend.Previous = trend.Latest
		trend.Latest = models.Float(v)
		trend.Min = min(trend.Min, v)
		trend.Max = max(trend.Max, v)
		sum += v
		trend.Samples++
	}
	if trend.Samples == 0 {
		return trend
	}
	trend.Mean = sum / float64(trend.Samples)

	if trend.Previous != nil {
		delta := *trend.Latest - *trend.Previous
		trend.Delta = models.Float(delta)
		trend.Direction = classify(m, *trend.Previous, delta, tolerance)
	}
	return trend
}

// classify decides the direction of a change given which way is better
func classify(m models.MetricName, previous, delta, tolerance float64) Direction {
	scale := math.Abs(previous)
	if scale == 0 {
		scale = 1
	}
	if math.Abs(delta) <= tolerance*scale {
		return Stable
	}
	better := delta < 0
	if m.HigherIsBetter() {
		better = delta > 0
	}
	if better {
		return Improving
	}
	return Degrading
}
