package analysis

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/KaramelBytes/crashscope/internal/dataset"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Column kinds.
const (
	KindNumeric     = "numeric"
	KindBoolean     = "boolean"
	KindDatetime    = "datetime"
	KindCategorical = "categorical"
	KindText        = "text"
	KindUnknown     = "unknown"
)

// maxDistinct caps distinct values tracked per column.
const maxDistinct = 50000

// Options controls profiling behavior.
type Options struct {
	// SampleRows determines how many head rows to include in the report.
	SampleRows int
	// TopValues is the number of most frequent values kept per categorical column.
	TopValues int
	// Correlations computes Pearson correlations among numeric columns.
	Correlations bool
	// Outlier detection via robust Z-score (MAD). If Outliers is true, counts |z|>threshold.
	Outliers         bool
	OutlierThreshold float64
}

// DefaultOptions returns reasonable defaults for dataset profiling.
func DefaultOptions() Options {
	return Options{
		SampleRows:       5,
		TopValues:        8,
		Outliers:         true,
		OutlierThreshold: 3.5,
	}
}

// Report is a profile of a Dataset.
type Report struct {
	Name     string          `json:"name" yaml:"name"`
	Rows     int             `json:"rows" yaml:"rows"`
	Skipped  int             `json:"skipped_rows,omitempty" yaml:"skipped_rows,omitempty"`
	Cols     []ColumnSummary `json:"columns" yaml:"columns"`
	Samples  [][]string      `json:"samples,omitempty" yaml:"samples,omitempty"`
	Warnings []string        `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Corr     *CorrMatrix     `json:"correlations,omitempty" yaml:"correlations,omitempty"`
}

// ColumnSummary captures inferred type and statistics per column.
type ColumnSummary struct {
	Name            string  `json:"name" yaml:"name"`
	Label           string  `json:"label" yaml:"label"`
	Unit            string  `json:"unit,omitempty" yaml:"unit,omitempty"`
	Kind            string  `json:"kind" yaml:"kind"`
	NonNull         int     `json:"non_null" yaml:"non_null"`
	Missing         int     `json:"missing" yaml:"missing"`
	MissingFraction float64 `json:"missing_fraction" yaml:"missing_fraction"`
	// Invalid counts non-empty cells that do not parse as the column kind.
	Invalid int `json:"invalid,omitempty" yaml:"invalid,omitempty"`
	Unique  int `json:"unique,omitempty" yaml:"unique,omitempty"`
	// UniqueCapped means Unique is a lower bound.
	UniqueCapped bool `json:"unique_capped,omitempty" yaml:"unique_capped,omitempty"`

	Stats *NumStats `json:"stats,omitempty" yaml:"stats,omitempty"`

	// Datetime range
	First string `json:"first,omitempty" yaml:"first,omitempty"`
	Last  string `json:"last,omitempty" yaml:"last,omitempty"`

	TopValues    []CategoryCount `json:"top_values,omitempty" yaml:"top_values,omitempty"`
	ExampleTexts []string        `json:"examples,omitempty" yaml:"examples,omitempty"`
}

// NumStats mirrors a describe() row: count, mean, std and the five-number summary.
type NumStats struct {
	Count  int     `json:"count" yaml:"count"`
	Mean   float64 `json:"mean" yaml:"mean"`
	Std    float64 `json:"std" yaml:"std"`
	Min    float64 `json:"min" yaml:"min"`
	Q1     float64 `json:"q1" yaml:"q1"`
	Median float64 `json:"median" yaml:"median"`
	Q3     float64 `json:"q3" yaml:"q3"`
	Max    float64 `json:"max" yaml:"max"`
	// Outliers (robust Z via MAD)
	OutliersCount    int     `json:"outliers,omitempty" yaml:"outliers,omitempty"`
	OutliersMaxAbsZ  float64 `json:"outliers_max_abs_z,omitempty" yaml:"outliers_max_abs_z,omitempty"`
	OutlierThreshold float64 `json:"outlier_threshold,omitempty" yaml:"outlier_threshold,omitempty"`
}

type CategoryCount struct {
	Value string `json:"value" yaml:"value"`
	Count int    `json:"count" yaml:"count"`
}

// CorrMatrix holds a symmetric Pearson correlation matrix across numeric columns.
type CorrMatrix struct {
	Columns []string    `json:"columns" yaml:"columns"`
	Values  [][]float64 `json:"values" yaml:"values"` // row-major, Values[i][j]
}

// Profile computes per-column type, missingness and statistics. It does not
// modify the dataset.
func Profile(ds *dataset.Dataset, opt Options) *Report {
	rep := &Report{Name: ds.Name, Rows: ds.Len(), Skipped: ds.Skipped}
	rep.Warnings = append(rep.Warnings, ds.Warnings...)
	sampleRows := opt.SampleRows
	if sampleRows < 0 {
		sampleRows = 0
	}
	for r := 0; r < ds.Len() && r < sampleRows; r++ {
		rep.Samples = append(rep.Samples, ds.Row(r))
	}

	numeric := map[string][]float64{}
	var numCols []string
	rep.Cols = make([]ColumnSummary, 0, len(ds.Columns))
	for ci, name := range ds.Columns {
		s, vals := profileColumn(ds, ci, name, opt)
		if s.Kind == KindNumeric {
			numCols = append(numCols, name)
			numeric[name] = vals
		}
		if s.Invalid > 0 {
			rep.Warnings = append(rep.Warnings, invalidNote(s))
		}
		rep.Cols = append(rep.Cols, s)
	}
	if opt.Correlations && len(numCols) >= 2 {
		rep.Corr = correlations(numCols, numeric)
	}
	return rep
}

type colAcc struct {
	numCnt, boolCnt, dtCnt, txtCnt int
	cats                           map[string]int
	order                          []string
	capped                         bool
	exText                         []string
}

func profileColumn(ds *dataset.Dataset, ci int, name string, opt Options) (ColumnSummary, []float64) {
	label, unit := splitUnits(name)
	s := ColumnSummary{Name: name, Label: label, Unit: unit}
	acc := colAcc{cats: make(map[string]int)}
	n := ds.Len()

	// First pass: classify and count categories.
	for r := 0; r < n; r++ {
		v := strings.TrimSpace(ds.Value(r, ci))
		if v == "" {
			s.Missing++
			continue
		}
		s.NonNull++
		switch {
		case isNumeric(v):
			acc.numCnt++
		case isBool(v):
			acc.boolCnt++
		case isTime(v):
			acc.dtCnt++
		default:
			acc.txtCnt++
			if len(acc.exText) < 3 {
				acc.exText = append(acc.exText, v)
			}
		}
		if _, ok := acc.cats[v]; ok {
			acc.cats[v]++
		} else if len(acc.cats) < maxDistinct {
			acc.cats[v] = 1
			acc.order = append(acc.order, v)
		} else {
			acc.capped = true
		}
	}
	if n > 0 {
		s.MissingFraction = float64(s.Missing) / float64(n)
	}

	// Decide kind by predominant parsed type
	switch {
	case acc.numCnt > 0 && acc.numCnt >= acc.boolCnt && acc.numCnt >= acc.dtCnt && acc.numCnt >= acc.txtCnt:
		s.Kind = KindNumeric
		s.Invalid = s.NonNull - acc.numCnt
		vals := numericValues(ds, ci)
		s.Stats = describe(vals, opt)
		return s, vals
	case acc.boolCnt > 0 && acc.boolCnt >= acc.dtCnt && acc.boolCnt >= acc.txtCnt:
		s.Kind = KindBoolean
		s.Invalid = s.NonNull - acc.boolCnt
		s.Unique = len(acc.cats)
		s.TopValues = topValues(acc, opt.TopValues)
	case acc.dtCnt > 0 && acc.dtCnt >= acc.txtCnt:
		s.Kind = KindDatetime
		s.Invalid = s.NonNull - acc.dtCnt
		s.First, s.Last = timeRange(ds, ci)
	case acc.txtCnt > 0:
		s.Unique = len(acc.cats)
		s.UniqueCapped = acc.capped
		if !acc.capped && (s.Unique <= 50 || s.Unique*2 <= s.NonNull) {
			s.Kind = KindCategorical
			s.TopValues = topValues(acc, opt.TopValues)
		} else {
			s.Kind = KindText
			s.ExampleTexts = acc.exText
		}
	default:
		s.Kind = KindUnknown
	}
	return s, nil
}

// topValues orders categories by count, ties by first appearance.
func topValues(acc colAcc, limit int) []CategoryCount {
	tops := make([]CategoryCount, 0, len(acc.order))
	for _, k := range acc.order {
		tops = append(tops, CategoryCount{Value: k, Count: acc.cats[k]})
	}
	sort.SliceStable(tops, func(i, j int) bool { return tops[i].Count > tops[j].Count })
	if limit <= 0 {
		limit = 8
	}
	if len(tops) > limit {
		tops = tops[:limit]
	}
	return tops
}

// numericValues returns the column as floats with NaN for missing or invalid cells.
func numericValues(ds *dataset.Dataset, ci int) []float64 {
	out := make([]float64, ds.Len())
	for r := range out {
		x, ok := parseNumeric(ds.Value(r, ci))
		if !ok {
			x = math.NaN()
		}
		out[r] = x
	}
	return out
}

func describe(all []float64, opt Options) *NumStats {
	vals := make([]float64, 0, len(all))
	for _, v := range all {
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	st := &NumStats{Count: len(vals)}
	if len(vals) == 0 {
		return st
	}
	st.Min = floats.Min(vals)
	st.Max = floats.Max(vals)
	if len(vals) > 1 {
		st.Mean, st.Std = stat.MeanStdDev(vals, nil)
	} else {
		st.Mean = vals[0]
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	st.Q1 = quantile(sorted, 0.25)
	st.Median = quantile(sorted, 0.5)
	st.Q3 = quantile(sorted, 0.75)

	if opt.Outliers && len(vals) >= 8 {
		median, mad := medianMAD(sorted)
		thr := opt.OutlierThreshold
		if thr <= 0 {
			thr = 3.5
		}
		var cnt int
		maxAbsZ := 0.0
		if mad > 0 {
			for _, v := range vals {
				az := math.Abs(0.6745 * (v - median) / mad)
				if az > thr {
					cnt++
				}
				if az > maxAbsZ {
					maxAbsZ = az
				}
			}
		}
		st.OutliersCount = cnt
		st.OutliersMaxAbsZ = maxAbsZ
		st.OutlierThreshold = thr
	}
	return st
}

func timeRange(ds *dataset.Dataset, ci int) (first, last string) {
	var lo, hi string
	var loT, hiT int64
	seen := false
	for r := 0; r < ds.Len(); r++ {
		v := strings.TrimSpace(ds.Value(r, ci))
		t, err := dataset.ParseTime(v)
		if err != nil {
			continue
		}
		u := t.UnixNano()
		if !seen || u < loT {
			loT, lo = u, v
		}
		if !seen || u > hiT {
			hiT, hi = u, v
		}
		seen = true
	}
	return lo, hi
}

// correlations computes pairwise-complete Pearson coefficients.
func correlations(cols []string, vals map[string][]float64) *CorrMatrix {
	n := len(cols)
	mat := make([][]float64, n)
	for i := range mat {
		mat[i] = make([]float64, n)
		mat[i][i] = 1
	}
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			xa, xb := vals[cols[a]], vals[cols[b]]
			var x, y []float64
			for i := range xa {
				if math.IsNaN(xa[i]) || math.IsNaN(xb[i]) {
					continue
				}
				x = append(x, xa[i])
				y = append(y, xb[i])
			}
			r := 0.0
			if len(x) >= 2 {
				r = stat.Correlation(x, y, nil)
			}
			if math.IsNaN(r) || math.IsInf(r, 0) {
				r = 0
			}
			mat[a][b], mat[b][a] = r, r
		}
	}
	return &CorrMatrix{Columns: cols, Values: mat}
}

// MissingRanking returns columns ordered by missing fraction, highest first.
// Columns with equal fractions keep header order.
func (r *Report) MissingRanking() []ColumnSummary {
	out := append([]ColumnSummary(nil), r.Cols...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].MissingFraction > out[j].MissingFraction })
	return out
}

// NumericColumns returns the names of columns inferred as numeric.
func (r *Report) NumericColumns() []string {
	var out []string
	for _, c := range r.Cols {
		if c.Kind == KindNumeric {
			out = append(out, c.Name)
		}
	}
	return out
}

// Column looks up a column summary by name.
func (r *Report) Column(name string) (ColumnSummary, bool) {
	for _, c := range r.Cols {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSummary{}, false
}

func isNumeric(s string) bool {
	_, ok := parseNumeric(s)
	return ok
}

func parseNumeric(s string) (float64, bool) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimSuffix(raw, "%")
	if raw == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func isBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "false":
		return true
	}
	return false
}

func isTime(s string) bool {
	_, err := dataset.ParseTime(s)
	return err == nil
}

var unitPatterns = []struct {
	re   *regexp.Regexp
	pick int
}{
	{regexp.MustCompile(`^(.*?)\s*\(([^)]+)\)\s*$`), 2},  // e.g., Temperature(F)
	{regexp.MustCompile(`^(.*?)\s*\[([^\]]+)\]\s*$`), 2}, // e.g., Distance [mi]
}

func splitUnits(name string) (clean string, unit string) {
	s := strings.TrimSpace(name)
	for _, p := range unitPatterns {
		if m := p.re.FindStringSubmatch(s); len(m) >= 3 {
			base := strings.TrimSpace(m[1])
			u := strings.TrimSpace(m[p.pick])
			if base != "" && u != "" {
				return base, u
			}
		}
	}
	return s, ""
}

// medianMAD computes median and MAD (median absolute deviation) of sorted values.
func medianMAD(sorted []float64) (median, mad float64) {
	if len(sorted) == 0 {
		return 0, 0
	}
	median = quantile(sorted, 0.5)
	dev := make([]float64, len(sorted))
	for i, v := range sorted {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = quantile(dev, 0.5)
	return
}

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
