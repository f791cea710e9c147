package render

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// pie draws wedges proportional to values, starting at twelve o'clock and
// running clockwise.
type pie struct {
	values []float64
	total  float64
}

func newPie(values []float64) *pie {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return &pie{values: values, total: total}
}

// Plot implements plot.Plotter.
func (pc *pie) Plot(c draw.Canvas, _ *plot.Plot) {
	center := c.Center()
	size := c.Rectangle.Size()
	radius := vg.Length(math.Min(float64(size.X), float64(size.Y))) * 0.45

	start := math.Pi / 2
	for i, v := range pc.values {
		if v == 0 {
			continue
		}
		sweep := -2 * math.Pi * v / pc.total
		var path vg.Path
		path.Move(center)
		path.Line(vg.Point{
			X: center.X + radius*vg.Length(math.Cos(start)),
			Y: center.Y + radius*vg.Length(math.Sin(start)),
		})
		path.Arc(center, radius, start, sweep)
		path.Close()
		c.SetColor(plotutil.Color(i))
		c.Fill(path)
		start += sweep
	}
}

// legend adds one entry per wedge with its share.
func (pc *pie) legend(p *plot.Plot, labels []string) {
	for i, v := range pc.values {
		name := fmt.Sprintf("#%d", i+1)
		if i < len(labels) {
			name = labels[i]
		}
		p.Legend.Add(fmt.Sprintf("%s (%.1f%%)", name, 100*v/pc.total), swatch{plotutil.Color(i)})
	}
	p.Legend.Top = true
}

type swatch struct{ color.Color }

// Thumbnail implements plot.Thumbnailer.
func (s swatch) Thumbnail(c *draw.Canvas) {
	pts := []vg.Point{
		{X: c.Min.X, Y: c.Min.Y},
		{X: c.Min.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Min.Y},
	}
	c.FillPolygon(s.Color, pts)
}
