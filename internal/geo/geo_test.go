package geo

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/KaramelBytes/crashscope/internal/dataset"
)

func numbered(t *testing.T, n int) *dataset.Dataset {
	t.Helper()
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = []string{fmt.Sprintf("A-%d", i), fmt.Sprintf("%.2f", 30+float64(i)/100), fmt.Sprintf("%.2f", -97-float64(i)/100)}
	}
	ds, err := dataset.New("points.csv", []string{"ID", "Start_Lat", "Start_Lng"}, rows)
	require.NoError(t, err)
	return ds
}

func ids(t *testing.T, ds *dataset.Dataset) []string {
	t.Helper()
	v, err := ds.Column("ID")
	require.NoError(t, err)
	return v
}

func TestSampleSize(t *testing.T) {
	assert.Equal(t, 10, SampleSize(100, 0.1))
	assert.Equal(t, 3, SampleSize(5, 0.5))  // 2.5 rounds away from zero
	assert.Equal(t, 2, SampleSize(3, 0.5))  // 1.5 rounds up
	assert.Equal(t, 0, SampleSize(3, 0.1))  // 0.3
	assert.Equal(t, 7, SampleSize(7, 1.0))
}

func TestSampleIsSubsetReproducibleAndOrdered(t *testing.T) {
	ds := numbered(t, 200)
	a, err := Sample(ds, 0.1, 42)
	require.NoError(t, err)
	b, err := Sample(ds, 0.1, 42)
	require.NoError(t, err)
	require.Equal(t, 20, a.Len())
	assert.Equal(t, ids(t, a), ids(t, b))

	seen := map[string]bool{}
	var pos []int
	for _, id := range ids(t, a) {
		assert.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
		var n int
		_, err := fmt.Sscanf(id, "A-%d", &n)
		require.NoError(t, err)
		pos = append(pos, n)
	}
	assert.True(t, sort.IntsAreSorted(pos), "sample must keep source order")

	c, err := Sample(ds, 0.1, 7)
	require.NoError(t, err)
	assert.NotEqual(t, ids(t, a), ids(t, c))

	all, err := Sample(ds, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, ids(t, ds), ids(t, all))
}

func TestSampleIndicesOnLargeRange(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 1))
	got := sampleIndices(rng, 1_000_000_000, 5)
	require.Len(t, got, 5)
	assert.True(t, sort.IntsAreSorted(got))
	for i, v := range got {
		assert.True(t, v >= 0 && v < 1_000_000_000, "index %d out of range", v)
		if i > 0 {
			assert.NotEqual(t, got[i-1], v, "duplicate index")
		}
	}

	assert.Equal(t, []int{0, 1, 2, 3}, sampleIndices(rng, 4, 4))

	hits := make([]int, 10)
	for s := uint64(0); s < 2000; s++ {
		for _, v := range sampleIndices(rand.New(rand.NewPCG(s, s)), 10, 3) {
			hits[v]++
		}
	}
	for i, h := range hits {
		assert.InDelta(t, 600, h, 150, "index %d drawn %d times", i, h)
	}
}

func TestSampleRejectsBadFraction(t *testing.T) {
	ds := numbered(t, 10)
	for _, f := range []float64{0, -0.1, 1.5} {
		_, err := Sample(ds, f, 1)
		assert.Error(t, err, "fraction %v", f)
	}
	_, err := Sample(ds, 0.01, 1)
	var empty *dataset.EmptyResultError
	assert.True(t, errors.As(err, &empty))
}

func TestPointsExcludesInvalid(t *testing.T) {
	ds, err := dataset.New("p.csv", []string{"Start_Lat", "Start_Lng"}, [][]string{
		{"39.86", "-84.05"},
		{"", "-84.0"},
		{"abc", "-84.0"},
		{"95", "-84.0"},
		{"39.1", "-200"},
		{"39.0", "-84.5"},
	})
	require.NoError(t, err)
	ps, err := Points(ds, "Start_Lat", "Start_Lng")
	require.NoError(t, err)
	assert.Len(t, ps.Points, 2)
	assert.Equal(t, 4, ps.Excluded)
	require.Len(t, ps.Errors, 4)
	assert.Equal(t, "Start_Lng", ps.Errors[3].Column)
	assert.Equal(t, []float64{39.86, 39.0}, ps.Lats())
	assert.Equal(t, []float64{-84.05, -84.5}, ps.Lngs())
	assert.Equal(t, int64(5), ps.Points[1].Row)

	_, err = Points(ds, "Lat", "Start_Lng")
	assert.ErrorContains(t, err, "unknown column")
}

func TestPointsAllInvalid(t *testing.T) {
	ds, err := dataset.New("p.csv", []string{"Start_Lat", "Start_Lng"}, [][]string{{"", ""}})
	require.NoError(t, err)
	ps, err := Points(ds, "Start_Lat", "Start_Lng")
	var empty *dataset.EmptyResultError
	require.True(t, errors.As(err, &empty))
	assert.Equal(t, 1, ps.Excluded)
}

func TestGrid(t *testing.T) {
	pts := []Point{
		{Lat: 0, Lng: 0},
		{Lat: 0.1, Lng: 0.1},
		{Lat: 10, Lng: 10},
		{Lat: 0.2, Lng: 0.2},
	}
	g, err := NewGrid(pts, 2, 2)
	require.NoError(t, err)
	c, r := g.Dims()
	assert.Equal(t, 2, c)
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, g.Count(0, 0))
	assert.Equal(t, 1, g.Count(1, 1))
	assert.Equal(t, 3, g.Max())
	assert.InDelta(t, 1.0, g.Z(0, 0), 1e-12)
	assert.InDelta(t, 1.0/3, g.Z(1, 1), 1e-12)
	assert.Zero(t, g.Z(1, 0))
	assert.InDelta(t, 2.5, g.X(0), 1e-12)
	assert.InDelta(t, 7.5, g.Y(1), 1e-12)

	total := 0
	for ci := 0; ci < c; ci++ {
		for ri := 0; ri < r; ri++ {
			total += g.Count(ci, ri)
		}
	}
	assert.Equal(t, len(pts), total)

	_, err = NewGrid(nil, 2, 2)
	assert.Error(t, err)
	_, err = NewGrid(pts, 0, 2)
	assert.Error(t, err)
}

func TestGridSinglePoint(t *testing.T) {
	g, err := NewGrid([]Point{{Lat: 40, Lng: -74}}, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, g.Count(1, 1))
}

func TestWriteParquetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.parquet")
	pts := []Point{{Row: 0, Lat: 39.86, Lng: -84.05}, {Row: 3, Lat: 39.93, Lng: -82.83}}
	require.NoError(t, WriteParquet(path, pts))

	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(Point), 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	require.Equal(t, int64(2), pr.GetNumRows())
	got := make([]Point, 2)
	require.NoError(t, pr.Read(&got))
	assert.Equal(t, pts, got)

	var empty *dataset.EmptyResultError
	assert.True(t, errors.As(WriteParquet(path, nil), &empty))
}
