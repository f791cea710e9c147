package geo

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Grid bins points into cols×rows cells over their bounding box. It satisfies
// gonum.org/v1/plot/plotter.GridXYZ; Z is the cell count divided by the
// busiest cell's count, so intensities lie in [0,1].
type Grid struct {
	cols, rows int
	minLng     float64
	minLat     float64
	dLng, dLat float64
	counts     []int
	max        int
}

// NewGrid bins points. Longitude runs along columns, latitude along rows.
func NewGrid(points []Point, cols, rows int) (*Grid, error) {
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("grid dimensions must be positive, got %dx%d", cols, rows)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("no points to bin")
	}
	lats := make([]float64, len(points))
	lngs := make([]float64, len(points))
	for i, p := range points {
		lats[i], lngs[i] = p.Lat, p.Lng
	}
	minLat, maxLat := floats.Min(lats), floats.Max(lats)
	minLng, maxLng := floats.Min(lngs), floats.Max(lngs)
	if maxLat == minLat {
		minLat, maxLat = minLat-0.5, maxLat+0.5
	}
	if maxLng == minLng {
		minLng, maxLng = minLng-0.5, maxLng+0.5
	}
	g := &Grid{
		cols:   cols,
		rows:   rows,
		minLng: minLng,
		minLat: minLat,
		dLng:   (maxLng - minLng) / float64(cols),
		dLat:   (maxLat - minLat) / float64(rows),
		counts: make([]int, cols*rows),
	}
	for _, p := range points {
		c := clampIndex(int((p.Lng-minLng)/g.dLng), cols)
		r := clampIndex(int((p.Lat-minLat)/g.dLat), rows)
		g.counts[r*cols+c]++
		if n := g.counts[r*cols+c]; n > g.max {
			g.max = n
		}
	}
	return g, nil
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Dims returns the grid dimensions.
func (g *Grid) Dims() (c, r int) { return g.cols, g.rows }

// Z returns the normalized intensity of cell (c, r).
func (g *Grid) Z(c, r int) float64 {
	return float64(g.counts[r*g.cols+c]) / float64(g.max)
}

// X returns the longitude at the centre of column c.
func (g *Grid) X(c int) float64 { return g.minLng + (float64(c)+0.5)*g.dLng }

// Y returns the latitude at the centre of row r.
func (g *Grid) Y(r int) float64 { return g.minLat + (float64(r)+0.5)*g.dLat }

// Count returns the raw number of points in cell (c, r).
func (g *Grid) Count(c, r int) int { return g.counts[r*g.cols+c] }

// Max is the count of the busiest cell.
func (g *Grid) Max() int { return g.max }
