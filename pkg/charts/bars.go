package charts

import (
	"bytes"
	"fmt"

	"github.com/lirany1/synth-report/pkg/evaluator"
	"github.com/lirany1/synth-report/pkg/models"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var (
	barColor  = drawing.ColorFromHex("3b7dd8")
	goalColor = drawing.ColorFromHex("9e9e9e")
	passColor = chart.ColorGreen
	failColor = chart.ColorRed
)

func barStyle(c drawing.Color) chart.Style {
	return chart.Style{
		FillColor:   c,
		StrokeColor: c,
		StrokeWidth: 1,
	}
}

// newBarChart builds a bar chart whose y range always includes zero, so
// negative values (violated slack) grow downward from the base line
func (r *Renderer) newBarChart(title string, bars []chart.Value) chart.BarChart {
	lo, hi := 0.0, 0.0
	for _, b := range bars {
		lo = min(lo, b.Value)
		hi = max(hi, b.Value)
	}
	if lo == hi {
		hi = 1
	}
	pad := (hi - lo) * 0.1
	if lo < 0 {
		lo -= pad
	}
	hi += pad

	width := max(min(r.width/(2*max(len(bars), 1)), 120), 1)
	return chart.BarChart{
		Title:  title,
		Width:  r.width,
		Height: r.height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 10, Bottom: 10},
		},
		BarWidth:     width,
		BarSpacing:   width,
		UseBaseValue: true,
		BaseValue:    0,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
		Bars: bars,
	}
}

func (r *Renderer) renderBars(path, title string, bars []chart.Value) error {
	if len(bars) == 0 {
		return ErrNoData
	}
	bc := r.newBarChart(title, bars)
	var buf bytes.Buffer
	if err := bc.Render(chart.PNG, &buf); err != nil {
		return fmt.Errorf("%w: render: %v", ErrChartWrite, err)
	}
	return writePNG(path, &buf)
}

// renderDistribution draws one bar per metric. Missing metrics plot as 0.
func (r *Renderer) renderDistribution(path string, rec models.MetricsRecord) error {
	values, err := plotValues(rec)
	if err != nil {
		return err
	}
	bars := make([]chart.Value, len(values))
	for i, m := range models.Metrics {
		bars[i] = chart.Value{Label: string(m), Value: values[i], Style: barStyle(barColor)}
	}
	return r.renderBars(path, "Synthesis Metrics for "+rec.Module, bars)
}

// renderPercent draws each metric's share of the total. A total that is
// not positive has no meaningful shares and the chart is skipped.
func (r *Renderer) renderPercent(path string, rec models.MetricsRecord) error {
	values, err := plotValues(rec)
	if err != nil {
		return err
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	if total <= 0 {
		return fmt.Errorf("%w: metric total is %v", ErrNoData, total)
	}
	bars := make([]chart.Value, len(values))
	for i, m := range models.Metrics {
		share := values[i] / total * 100
		bars[i] = chart.Value{
			Label: fmt.Sprintf("%s %.1f%%", m, share),
			Value: share,
			Style: barStyle(barColor),
		}
	}
	return r.renderBars(path, "Metric Distribution (%) - "+rec.Module, bars)
}

// renderMetric draws a single bar for one present metric
func (r *Renderer) renderMetric(path string, rec models.MetricsRecord, m models.MetricName) error {
	v, ok := rec.Value(m)
	if !ok {
		return fmt.Errorf("%w: %s is missing", ErrNoData, m)
	}
	if err := checkFinite(m, v); err != nil {
		return err
	}
	bars := []chart.Value{{Label: string(m), Value: v, Style: barStyle(barColor)}}
	return r.renderBars(path, fmt.Sprintf("%s for %s", m, rec.Module), bars)
}

// renderCompare draws the actual value next to its goal, green when the
// goal is met and red when it is not. Unknown verdicts are skipped.
func (r *Renderer) renderCompare(path string, rec models.MetricsRecord, m models.MetricName, goal float64, verdicts evaluator.Verdicts) error {
	if err := checkFinite(m, goal); err != nil {
		return err
	}
	verdict, ok := verdicts[m]
	if !ok || verdict == evaluator.Unknown {
		return fmt.Errorf("%w: %s has no verdict", ErrNoData, m)
	}
	actual, _ := rec.Value(m)
	if err := checkFinite(m, actual); err != nil {
		return err
	}

	color := passColor
	if verdict == evaluator.Fail {
		color = failColor
	}
	bars := []chart.Value{
		{Label: "actual", Value: actual, Style: barStyle(color)},
		{Label: "threshold", Value: goal, Style: barStyle(goalColor)},
	}
	title := fmt.Sprintf("%s %s vs threshold (%s)", rec.Module, m, verdict)
	return r.renderBars(path, title, bars)
}
