// Package render turns chart descriptions into PNG or SVG images and hands
// the encoded bytes to a Destination.
package render

import (
	"fmt"
	"math"

	"gonum.org/v1/plot/plotter"

	"github.com/KaramelBytes/crashscope/internal/dataset"
	"github.com/KaramelBytes/crashscope/internal/utils"
)

// Kind is the chart type.
type Kind string

const (
	KindBar       Kind = "bar"
	KindHistogram Kind = "histogram"
	KindScatter   Kind = "scatter"
	KindPie       Kind = "pie"
	KindHeatmap   Kind = "heatmap"
)

// Chart describes one figure. Which data fields are read depends on Kind:
//
//	bar, pie   Labels + Values
//	histogram  Values (+ Bins)
//	scatter    X + Y
//	heatmap    Grid
type Chart struct {
	// Name is the output file stem; derived from Title when empty.
	Name   string
	Kind   Kind
	Title  string
	XLabel string
	YLabel string

	Labels []string
	Values []float64
	// Horizontal draws bars along the X axis with labels on Y.
	Horizontal bool
	// Bins for histograms; 0 uses the square root of the value count.
	Bins int
	// Normalize scales histograms to unit area.
	Normalize bool

	X, Y []float64
	Grid plotter.GridXYZ
}

// FileName returns the output stem for the chart.
func (c Chart) FileName() string {
	if c.Name != "" {
		return c.Name
	}
	return utils.Slug(c.Title)
}

// Validate checks that the chart has data to draw. A chart without data is an
// *dataset.EmptyResultError; inconsistent data is a plain error.
func (c Chart) Validate() error {
	empty := &dataset.EmptyResultError{What: fmt.Sprintf("%s chart %q has no data", c.Kind, c.Title)}
	switch c.Kind {
	case KindBar, KindPie:
		if len(c.Values) == 0 {
			return empty
		}
		if len(c.Labels) != 0 && len(c.Labels) != len(c.Values) {
			return fmt.Errorf("chart %q: %d labels for %d values", c.Title, len(c.Labels), len(c.Values))
		}
		if c.Kind == KindPie {
			sum := 0.0
			for _, v := range c.Values {
				if v < 0 || math.IsNaN(v) {
					return fmt.Errorf("chart %q: pie values must be non-negative", c.Title)
				}
				sum += v
			}
			if sum == 0 {
				return empty
			}
		}
	case KindHistogram:
		if len(c.Values) == 0 {
			return empty
		}
	case KindScatter:
		if len(c.X) == 0 {
			return empty
		}
		if len(c.X) != len(c.Y) {
			return fmt.Errorf("chart %q: %d x values for %d y values", c.Title, len(c.X), len(c.Y))
		}
	case KindHeatmap:
		if c.Grid == nil {
			return empty
		}
		if cols, rows := c.Grid.Dims(); cols == 0 || rows == 0 {
			return empty
		}
	default:
		return fmt.Errorf("unknown chart kind %q", c.Kind)
	}
	return nil
}
