package aggregate

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/crashscope/internal/dataset"
)

func cityDataset(t *testing.T, cities ...string) *dataset.Dataset {
	t.Helper()
	rows := make([][]string, len(cities))
	for i, c := range cities {
		rows[i] = []string{c, "TX"}
	}
	ds, err := dataset.New("cities.csv", []string{"City", "State"}, rows)
	require.NoError(t, err)
	return ds
}

func TestFrequencyCities(t *testing.T) {
	ds := cityDataset(t, "Austin", "Austin", "Dallas")
	tbl, err := Frequency(ds, "City", Options{})
	require.NoError(t, err)
	want := []Entry{{"Austin", 2}, {"Dallas", 1}}
	if diff := cmp.Diff(want, tbl.Entries); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, tbl.Total)
	assert.Equal(t, 2, tbl.Unique)
	assert.Zero(t, tbl.Excluded)
}

func TestFrequencyTiesKeepFirstSeenOrder(t *testing.T) {
	ds := cityDataset(t, "Houston", "Dallas", "Austin", "Dallas", "Austin", "Houston", "El Paso")
	tbl, err := Frequency(ds, "City", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Houston", "Dallas", "Austin", "El Paso"}, tbl.Labels())
	assert.Equal(t, []float64{2, 2, 2, 1}, tbl.Values())
}

func TestFrequencyCountsSumToRowsMinusExcluded(t *testing.T) {
	ds := cityDataset(t, "Austin", "", "Dallas", "  ", "Austin", "Waco")
	tbl, err := Frequency(ds, "City", Options{TopN: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Excluded)

	sum := 0
	for _, c := range tbl.Counts() {
		sum += int(c)
	}
	assert.Equal(t, ds.Len()-tbl.Excluded, sum)
	assert.Equal(t, sum, tbl.Total)
	// TopN narrows entries but not the totals
	require.Len(t, tbl.Entries, 1)
	assert.Equal(t, 3, tbl.Unique)
}

func TestFrequencyHelpers(t *testing.T) {
	ds := cityDataset(t, "Austin", "Austin", "Dallas", "Waco", "Austin")
	tbl, err := Frequency(ds, "City", Options{TopN: 1})
	require.NoError(t, err)

	assert.True(t, tbl.Contains("Waco"), "Contains must see past TopN")
	assert.False(t, tbl.Contains("NY"))
	assert.Equal(t, []string{"Dallas", "Waco"}, tbl.WithCount(1))

	top2 := tbl.Top(2)
	assert.Equal(t, []string{"Austin", "Dallas"}, top2.Labels())
	assert.InDeltaSlice(t, []float64{0.6, 0.2}, top2.Fractions(), 1e-12)
	assert.Len(t, tbl.Entries, 1, "Top must not modify the receiver")

	md := top2.Markdown()
	assert.Contains(t, md, "[CITY BY COUNT]")
	assert.Contains(t, md, "1. Austin: 3 (60.00%)")
}

func TestFrequencyEmptyColumn(t *testing.T) {
	ds := cityDataset(t, "", "")
	_, err := Frequency(ds, "City", Options{})
	var empty *dataset.EmptyResultError
	assert.True(t, errors.As(err, &empty))

	_, err = Frequency(ds, "County", Options{})
	assert.ErrorContains(t, err, "unknown column")
}

func TestCountIgnoresWhitespace(t *testing.T) {
	tbl, err := Count("Source", []string{" Source1", "Source1 ", "Source2"}, Options{})
	require.NoError(t, err)
	if diff := cmp.Diff([]Entry{{"Source1", 2}, {"Source2", 1}}, tbl.Entries, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}
