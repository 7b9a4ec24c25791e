package charts

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"

	"github.com/lirany1/synth-report/pkg/models"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	heatmapBand   = 22
	heatmapMargin = 8
)

var (
	coolColor = color.RGBA{R: 59, G: 76, B: 192, A: 255}
	warmColor = color.RGBA{R: 180, G: 4, B: 38, A: 255}
	inkColor  = color.RGBA{A: 255}
)

// renderHeatmap draws a single-row heatmap with one annotated cell per
// metric. Cell colour runs from cool (lowest value) to warm (highest).
func (r *Renderer) renderHeatmap(path string, rec models.MetricsRecord) error {
	values, err := plotValues(rec)
	if err != nil {
		return err
	}

	height := max(r.height/3, 3*heatmapBand+2*heatmapMargin)
	img := image.NewRGBA(image.Rect(0, 0, r.width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	face := basicfont.Face7x13
	drawText(img, face, "Metric Heatmap - "+rec.Module, r.width/2, heatmapMargin+face.Ascent, inkColor)

	top := heatmapMargin + heatmapBand
	bottom := height - heatmapMargin - heatmapBand
	cellWidth := (r.width - 2*heatmapMargin) / len(values)
	for i, v := range values {
		x0 := heatmapMargin + i*cellWidth
		cell := image.Rect(x0, top, x0+cellWidth-1, bottom)
		draw.Draw(img, cell, image.NewUniform(heat(v, lo, hi)), image.Point{}, draw.Src)

		mid := x0 + cellWidth/2
		drawText(img, face, strconv.FormatFloat(v, 'f', 2, 64), mid, (top+bottom)/2+face.Ascent/2, color.White)
		drawText(img, face, string(models.Metrics[i]), mid, bottom+heatmapMargin+face.Ascent, inkColor)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("%w: encode: %v", ErrChartWrite, err)
	}
	return writePNG(path, &buf)
}

// heat interpolates between the cool and warm colours
func heat(v, lo, hi float64) color.RGBA {
	t := 0.5
	if hi > lo {
		t = (v - lo) / (hi - lo)
	}
	mix := func(a, b uint8) uint8 {
		return uint8(float64(a) + (float64(b)-float64(a))*t)
	}
	return color.RGBA{
		R: mix(coolColor.R, warmColor.R),
		G: mix(coolColor.G, warmColor.G),
		B: mix(coolColor.B, warmColor.B),
		A: 255,
	}
}

// drawText centres s horizontally on x with its baseline at y
func drawText(dst draw.Image, face font.Face, s string, x, y int, c color.Color) {
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(c), Face: face}
	w := d.MeasureString(s).Ceil()
	d.Dot = fixed.Point26_6{X: fixed.I(x - w/2), Y: fixed.I(y)}
	d.DrawString(s)
}
