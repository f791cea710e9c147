package dataset

import (
	"fmt"
	"strings"
	"time"
)

// Column names used by the US accidents export.
const (
	ColID               = "ID"
	ColSource           = "Source"
	ColSeverity         = "Severity"
	ColStartTime        = "Start_Time"
	ColEndTime          = "End_Time"
	ColStartLat         = "Start_Lat"
	ColStartLng         = "Start_Lng"
	ColEndLat           = "End_Lat"
	ColEndLng           = "End_Lng"
	ColCity             = "City"
	ColState            = "State"
	ColTemperature      = "Temperature(F)"
	ColHumidity         = "Humidity(%)"
	ColVisibility       = "Visibility(mi)"
	ColWeatherCondition = "Weather_Condition"
)

// Dataset is an immutable, ordered collection of rows sharing one header.
// Filters and samples return new Datasets that share the underlying rows.
type Dataset struct {
	Name    string
	Columns []string
	// Skipped counts malformed rows dropped by the loader (SkipMalformed only).
	Skipped int
	// RowErrors keeps the first few loader errors behind Skipped.
	RowErrors []*ParseError
	Warnings  []string

	rows  [][]string
	index map[string]int
}

// New builds a Dataset from a header and rows. Short rows are padded with
// empty cells; duplicate column names are rejected.
func New(name string, columns []string, rows [][]string) (*Dataset, error) {
	idx := make(map[string]int, len(columns))
	cols := make([]string, len(columns))
	for i, c := range columns {
		c = strings.TrimSpace(strings.TrimPrefix(c, "\ufeff"))
		if _, dup := idx[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		idx[c] = i
		cols[i] = c
	}
	for i, r := range rows {
		if len(r) < len(cols) {
			tmp := make([]string, len(cols))
			copy(tmp, r)
			rows[i] = tmp
		}
	}
	return &Dataset{Name: name, Columns: cols, rows: rows, index: idx}, nil
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.rows) }

// ColumnIndex returns the position of a column, matching case-insensitively
// when there is no exact match.
func (d *Dataset) ColumnIndex(name string) (int, bool) {
	if i, ok := d.index[name]; ok {
		return i, true
	}
	want := strings.ToLower(strings.TrimSpace(name))
	for c, i := range d.index {
		if strings.ToLower(c) == want {
			return i, true
		}
	}
	return -1, false
}

// HasColumn reports whether the dataset has the named column.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.ColumnIndex(name)
	return ok
}

// Column returns the raw values of a column in row order.
func (d *Dataset) Column(name string) ([]string, error) {
	i, ok := d.ColumnIndex(name)
	if !ok {
		return nil, fmt.Errorf("unknown column %q", name)
	}
	out := make([]string, len(d.rows))
	for r, row := range d.rows {
		out[r] = row[i]
	}
	return out, nil
}

// Value returns the raw cell at row r, column c.
func (d *Dataset) Value(r, c int) string { return d.rows[r][c] }

// Row returns a copy of row r.
func (d *Dataset) Row(r int) []string {
	out := make([]string, len(d.rows[r]))
	copy(out, d.rows[r])
	return out
}

// Select returns a new Dataset with the given rows, in the given order.
func (d *Dataset) Select(rows []int) *Dataset {
	sel := make([][]string, len(rows))
	for i, r := range rows {
		sel[i] = d.rows[r]
	}
	return &Dataset{Name: d.Name, Columns: d.Columns, rows: sel, index: d.index}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
}

// ParseTime parses the timestamp layouts found in accident exports. Values
// without a zone are read as UTC wall-clock time.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
