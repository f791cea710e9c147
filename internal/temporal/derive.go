// Package temporal derives calendar parts from timestamp columns.
package temporal

import (
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/crashscope/internal/dataset"
)

// maxErrors bounds how many parse errors a Result retains.
const maxErrors = 20

// Field selects a derived calendar part.
type Field string

const (
	Hour    Field = "hour"
	Weekday Field = "weekday"
	Month   Field = "month"
	Year    Field = "year"
)

// WeekdayNames are indexed Monday=0 … Sunday=6.
var WeekdayNames = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// MonthNames are indexed January=0.
var MonthNames = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// ParseField accepts the CLI spellings of a Field.
func ParseField(s string) (Field, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hour", "h":
		return Hour, nil
	case "weekday", "dayofweek", "day", "dow":
		return Weekday, nil
	case "month", "m":
		return Month, nil
	case "year", "y":
		return Year, nil
	}
	return "", fmt.Errorf("unknown time field %q (use hour|weekday|month|year)", s)
}

// Parts are the calendar components of one parsed timestamp.
type Parts struct {
	Row     int
	Time    time.Time
	Hour    int // 0–23
	Weekday int // Monday=0 … Sunday=6
	Month   int // 1–12
	Year    int
}

// Get returns the value of field f.
func (p Parts) Get(f Field) int {
	switch f {
	case Hour:
		return p.Hour
	case Weekday:
		return p.Weekday
	case Month:
		return p.Month
	default:
		return p.Year
	}
}

// Split derives Parts from t.
func Split(row int, t time.Time) Parts {
	return Parts{
		Row:     row,
		Time:    t,
		Hour:    t.Hour(),
		Weekday: (int(t.Weekday()) + 6) % 7,
		Month:   int(t.Month()),
		Year:    t.Year(),
	}
}

// Options controls derivation.
type Options struct {
	// Strict turns any excluded value into an error.
	Strict bool
}

// Result holds the parsed timestamps of one column. Values that are missing
// or unparsable are excluded; Excluded counts them and Errors keeps the first few.
type Result struct {
	Column   string
	Parts    []Parts
	Excluded int
	Missing  int
	Errors   []*dataset.ParseError
}

// Derive parses every value of column in ds.
func Derive(ds *dataset.Dataset, column string, opt Options) (*Result, error) {
	vals, err := ds.Column(column)
	if err != nil {
		return nil, err
	}
	return DeriveValues(column, vals, opt)
}

// DeriveValues parses raw timestamp strings. In strict mode the first excluded
// value is returned as a *dataset.ParseError.
func DeriveValues(column string, vals []string, opt Options) (*Result, error) {
	res := &Result{Column: column, Parts: make([]Parts, 0, len(vals))}
	for row, v := range vals {
		v = strings.TrimSpace(v)
		var perr *dataset.ParseError
		if v == "" {
			res.Missing++
			perr = &dataset.ParseError{Row: row, Column: column, Err: fmt.Errorf("missing timestamp")}
		} else if t, err := dataset.ParseTime(v); err != nil {
			perr = &dataset.ParseError{Row: row, Column: column, Value: v, Err: err}
		} else {
			res.Parts = append(res.Parts, Split(row, t))
			continue
		}
		if opt.Strict {
			return nil, perr
		}
		res.Excluded++
		if len(res.Errors) < maxErrors {
			res.Errors = append(res.Errors, perr)
		}
	}
	return res, nil
}

// Where returns a Result holding only the parts for which keep reports true.
// Exclusion counts carry over unchanged.
func (r *Result) Where(keep func(Parts) bool) *Result {
	out := &Result{Column: r.Column, Excluded: r.Excluded, Missing: r.Missing, Errors: r.Errors}
	for _, p := range r.Parts {
		if keep(p) {
			out.Parts = append(out.Parts, p)
		}
	}
	return out
}

// Rows returns the dataset row index of every parsed value.
func (r *Result) Rows() []int {
	out := make([]int, len(r.Parts))
	for i, p := range r.Parts {
		out[i] = p.Row
	}
	return out
}

// Values returns field f of every parsed value as floats.
func (r *Result) Values(f Field) []float64 {
	out := make([]float64, len(r.Parts))
	for i, p := range r.Parts {
		out[i] = float64(p.Get(f))
	}
	return out
}

// FilterYear keeps the rows of ds whose timestamp in column falls in year.
// Rows with unparsable timestamps never match.
func FilterYear(ds *dataset.Dataset, column string, year int) (*dataset.Dataset, error) {
	res, err := Derive(ds, column, Options{})
	if err != nil {
		return nil, err
	}
	sub := res.Where(func(p Parts) bool { return p.Year == year })
	if len(sub.Parts) == 0 {
		return nil, &dataset.EmptyResultError{What: fmt.Sprintf("%s year=%d", column, year)}
	}
	return ds.Select(sub.Rows()), nil
}
