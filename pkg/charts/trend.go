package charts

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/lirany1/synth-report/pkg/models"
	"github.com/lirany1/synth-report/pkg/storage"
	"github.com/wcharczuk/go-chart/v2"
)

// RenderTrends draws one trend chart per metric across the history entries
func (r *Renderer) RenderTrends(entries []storage.Entry) *Result {
	res := &Result{}
	for _, m := range models.Metrics {
		r.attempt(res, TrendFile(m), func(path string) error {
			return r.renderTrend(path, m, entries)
		})
	}
	return res
}

// RenderTrend draws a single metric's trend and returns the written path
func (r *Renderer) RenderTrend(m models.MetricName, entries []storage.Entry) (string, error) {
	path := filepath.Join(r.dir, TrendFile(m))
	if err := r.renderTrend(path, m, entries); err != nil {
		return "", err
	}
	return path, nil
}

// renderTrend plots the metric against the run number. Runs where the
// metric is missing leave a gap in the numbering rather than a zero.
func (r *Renderer) renderTrend(path string, m models.MetricName, entries []storage.Entry) error {
	var xs, ys []float64
	for i, e := range entries {
		v, ok := e.Record.Value(m)
		if !ok {
			continue
		}
		if err := checkFinite(m, v); err != nil {
			return err
		}
		xs = append(xs, float64(i+1))
		ys = append(ys, v)
	}
	if len(ys) == 0 {
		return fmt.Errorf("%w: no %s values in history", ErrNoData, m)
	}

	xlo, xhi := xs[0], xs[len(xs)-1]
	if xlo == xhi {
		xlo, xhi = xlo-1, xhi+1
	}
	ylo, yhi := ys[0], ys[0]
	for _, v := range ys {
		ylo = min(ylo, v)
		yhi = max(yhi, v)
	}
	pad := (yhi - ylo) * 0.1
	if pad == 0 {
		pad = 1
	}

	yName := string(m)
	if unit := m.Unit(); unit != "" {
		yName = fmt.Sprintf("%s (%s)", m, unit)
	}

	ch := chart.Chart{
		Title:  fmt.Sprintf("%s trend", m),
		Width:  r.width,
		Height: r.height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 10},
		},
		XAxis: chart.XAxis{
			Name:  "Run",
			Range: &chart.ContinuousRange{Min: xlo, Max: xhi},
		},
		YAxis: chart.YAxis{
			Name:  yName,
			Range: &chart.ContinuousRange{Min: ylo - pad, Max: yhi + pad},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    string(m),
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: barColor,
					StrokeWidth: 2,
					DotColor:    barColor,
					DotWidth:    3,
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return fmt.Errorf("%w: render: %v", ErrChartWrite, err)
	}
	return writePNG(path, &buf)
}
