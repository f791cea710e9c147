package render

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Renderer draws a Chart and hands the image to dst.
type Renderer interface {
	Render(c Chart, dst Destination) (string, error)
}

// Options configures a PlotRenderer.
type Options struct {
	// Format is "png" or "svg".
	Format string
	Width  vg.Length
	Height vg.Length
	Logger *zap.Logger
}

// DefaultOptions returns a 16×10 cm PNG.
func DefaultOptions() Options {
	return Options{Format: "png", Width: 16 * vg.Centimeter, Height: 10 * vg.Centimeter}
}

// PlotRenderer renders charts with gonum/plot.
type PlotRenderer struct {
	opt Options
	log *zap.Logger
}

// NewPlotRenderer validates opt and returns a renderer.
func NewPlotRenderer(opt Options) (*PlotRenderer, error) {
	def := DefaultOptions()
	opt.Format = strings.ToLower(strings.TrimSpace(opt.Format))
	if opt.Format == "" {
		opt.Format = def.Format
	}
	if opt.Format != "png" && opt.Format != "svg" {
		return nil, fmt.Errorf("unsupported chart format %q (use png|svg)", opt.Format)
	}
	if opt.Width <= 0 {
		opt.Width = def.Width
	}
	if opt.Height <= 0 {
		opt.Height = def.Height
	}
	log := opt.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &PlotRenderer{opt: opt, log: log}, nil
}

// Format returns the image format produced.
func (r *PlotRenderer) Format() string { return r.opt.Format }

// Render draws c and passes the encoded image to dst, returning the location
// dst reports.
func (r *PlotRenderer) Render(c Chart, dst Destination) (string, error) {
	data, err := r.Encode(c)
	if err != nil {
		return "", err
	}
	loc, err := dst.Put(c.FileName(), r.opt.Format, data)
	if err != nil {
		return "", err
	}
	r.log.Debug("chart rendered", zap.String("chart", c.FileName()), zap.String("kind", string(c.Kind)), zap.String("location", loc), zap.Int("bytes", len(data)))
	return loc, nil
}

// Encode draws c and returns the image bytes.
func (r *PlotRenderer) Encode(c Chart) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	p, err := build(c)
	if err != nil {
		return nil, fmt.Errorf("chart %q: %w", c.Title, err)
	}
	wt, err := p.WriterTo(r.opt.Width, r.opt.Height, r.opt.Format)
	if err != nil {
		return nil, fmt.Errorf("chart %q: %w", c.Title, err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("chart %q: encode %s: %w", c.Title, r.opt.Format, err)
	}
	return buf.Bytes(), nil
}

func build(c Chart) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = c.Title
	p.X.Label.Text = c.XLabel
	p.Y.Label.Text = c.YLabel

	switch c.Kind {
	case KindBar:
		bars, err := plotter.NewBarChart(plotter.Values(c.Values), vg.Points(12))
		if err != nil {
			return nil, err
		}
		bars.Horizontal = c.Horizontal
		bars.LineStyle.Width = 0
		bars.Color = plotutil.Color(0)
		p.Add(bars)
		if len(c.Labels) > 0 {
			if c.Horizontal {
				p.NominalY(c.Labels...)
			} else {
				p.NominalX(c.Labels...)
			}
		}
	case KindHistogram:
		h, err := plotter.NewHist(plotter.Values(c.Values), histBins(c))
		if err != nil {
			return nil, err
		}
		if c.Normalize {
			h.Normalize(1)
		}
		h.FillColor = plotutil.Color(0)
		p.Add(h)
	case KindScatter:
		xys := make(plotter.XYs, len(c.X))
		for i := range c.X {
			xys[i].X, xys[i].Y = c.X[i], c.Y[i]
		}
		s, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, err
		}
		s.GlyphStyle.Radius = vg.Points(1)
		s.GlyphStyle.Color = plotutil.Color(0)
		p.Add(s)
	case KindPie:
		pie := newPie(c.Values)
		p.Add(pie)
		pie.legend(p, c.Labels)
		p.HideAxes()
	case KindHeatmap:
		hm := plotter.NewHeatMap(c.Grid, palette.Heat(12, 1))
		hm.Min, hm.Max = gridRange(c.Grid)
		p.Add(hm)
	}
	return p, nil
}

// gridRange returns the Z range of g, widened when every cell is equal.
func gridRange(g plotter.GridXYZ) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	cols, rows := g.Dims()
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			z := g.Z(c, r)
			if math.IsNaN(z) {
				continue
			}
			lo = math.Min(lo, z)
			hi = math.Max(hi, z)
		}
	}
	if math.IsInf(lo, 1) {
		return 0, 1
	}
	if hi == lo {
		hi = lo + 1
	}
	return lo, hi
}

// histBins returns c.Bins, or the square-root rule when it is unset.
func histBins(c Chart) int {
	if c.Bins > 0 {
		return c.Bins
	}
	return max(1, int(math.Ceil(math.Sqrt(float64(len(c.Values))))))
}
