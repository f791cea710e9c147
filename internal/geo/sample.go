// Package geo samples rows and bins accident coordinates for maps.
package geo

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"

	"github.com/KaramelBytes/crashscope/internal/dataset"
)

// SampleSize is round(f×n), halves rounded away from zero.
func SampleSize(n int, f float64) int {
	return int(math.Round(f * float64(n)))
}

// Sample draws round(f×|ds|) rows uniformly without replacement. The same seed
// yields the same rows, and the sample keeps the rows in their original order.
func Sample(ds *dataset.Dataset, f float64, seed uint64) (*dataset.Dataset, error) {
	if math.IsNaN(f) || f <= 0 || f > 1 {
		return nil, fmt.Errorf("sample fraction must be in (0,1], got %v", f)
	}
	n := ds.Len()
	k := SampleSize(n, f)
	if k == 0 {
		return nil, &dataset.EmptyResultError{What: fmt.Sprintf("sample of %v from %d rows", f, n)}
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return ds.Select(sampleIndices(rng, n, k)), nil
}

// sampleIndices picks k distinct indices of [0,n) with the first k steps of a
// Fisher-Yates shuffle, tracking only the displaced slots. The result is sorted.
func sampleIndices(rng *rand.Rand, n, k int) []int {
	moved := make(map[int]int, k)
	at := func(i int) int {
		if v, ok := moved[i]; ok {
			return v
		}
		return i
	}
	out := make([]int, k)
	for i := 0; i < k; i++ {
		j := i + rng.IntN(n-i)
		out[i] = at(j)
		moved[j] = at(i)
	}
	sort.Ints(out)
	return out
}

// Point is one coordinate pair; Row refers to the dataset it came from.
type Point struct {
	Row int64   `json:"row" parquet:"name=row, type=INT64"`
	Lat float64 `json:"lat" parquet:"name=lat, type=DOUBLE"`
	Lng float64 `json:"lng" parquet:"name=lng, type=DOUBLE"`
}

// PointSet is the result of Points.
type PointSet struct {
	Points []Point
	// Excluded counts rows with a missing, unparsable or out-of-range coordinate.
	Excluded int
	Errors   []*dataset.ParseError
}

const maxErrors = 20

// Points extracts coordinates from latCol and lngCol.
func Points(ds *dataset.Dataset, latCol, lngCol string) (*PointSet, error) {
	lats, err := ds.Column(latCol)
	if err != nil {
		return nil, err
	}
	lngs, err := ds.Column(lngCol)
	if err != nil {
		return nil, err
	}
	ps := &PointSet{Points: make([]Point, 0, len(lats))}
	for r := range lats {
		lat, lerr := coord(lats[r], 90)
		lng, gerr := coord(lngs[r], 180)
		if lerr == nil && gerr == nil {
			ps.Points = append(ps.Points, Point{Row: int64(r), Lat: lat, Lng: lng})
			continue
		}
		ps.Excluded++
		if len(ps.Errors) >= maxErrors {
			continue
		}
		if lerr != nil {
			ps.Errors = append(ps.Errors, &dataset.ParseError{Row: r, Column: latCol, Value: lats[r], Err: lerr})
		} else {
			ps.Errors = append(ps.Errors, &dataset.ParseError{Row: r, Column: lngCol, Value: lngs[r], Err: gerr})
		}
	}
	if len(ps.Points) == 0 {
		return ps, &dataset.EmptyResultError{What: fmt.Sprintf("no valid coordinates in %s/%s", latCol, lngCol)}
	}
	return ps, nil
}

func coord(s string, limit float64) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("missing coordinate")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.Abs(v) > limit {
		return 0, fmt.Errorf("coordinate %v outside ±%v", v, limit)
	}
	return v, nil
}

// Lats returns the latitudes in order.
func (ps *PointSet) Lats() []float64 {
	out := make([]float64, len(ps.Points))
	for i, p := range ps.Points {
		out[i] = p.Lat
	}
	return out
}

// Lngs returns the longitudes in order.
func (ps *PointSet) Lngs() []float64 {
	out := make([]float64, len(ps.Points))
	for i, p := range ps.Points {
		out[i] = p.Lng
	}
	return out
}
