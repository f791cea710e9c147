// Package aggregate builds frequency tables over categorical columns.
package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/crashscope/internal/dataset"
)

// Options controls frequency table construction.
type Options struct {
	// TopN keeps only the N most frequent entries; 0 keeps all.
	TopN int
}

// Entry is one category and its count.
type Entry struct {
	Value string `json:"value" yaml:"value"`
	Count int    `json:"count" yaml:"count"`
}

// Table is a category → count mapping sorted by count, highest first. Ties
// keep the order in which categories first appeared.
type Table struct {
	Column  string  `json:"column" yaml:"column"`
	Entries []Entry `json:"entries" yaml:"entries"`
	// Total is the number of counted rows (all entries, before TopN).
	Total int `json:"total" yaml:"total"`
	// Excluded counts rows with a missing value in Column.
	Excluded int `json:"excluded" yaml:"excluded"`
	// Unique is the number of distinct categories (before TopN).
	Unique int `json:"unique" yaml:"unique"`

	all []Entry
}

// Frequency counts the values of column in ds. Missing cells are excluded and
// counted, so the counts sum to ds.Len() minus Excluded. A column with no
// values yields an *dataset.EmptyResultError.
func Frequency(ds *dataset.Dataset, column string, opt Options) (*Table, error) {
	vals, err := ds.Column(column)
	if err != nil {
		return nil, err
	}
	return Count(column, vals, opt)
}

// Count builds a Table from raw values.
func Count(column string, vals []string, opt Options) (*Table, error) {
	counts := make(map[string]int)
	var order []string
	t := &Table{Column: column}
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v == "" {
			t.Excluded++
			continue
		}
		if _, ok := counts[v]; !ok {
			order = append(order, v)
		}
		counts[v]++
		t.Total++
	}
	if t.Total == 0 {
		return nil, &dataset.EmptyResultError{What: fmt.Sprintf("no values in column %s", column)}
	}
	entries := make([]Entry, len(order))
	for i, v := range order {
		entries[i] = Entry{Value: v, Count: counts[v]}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Count > entries[j].Count })
	t.all = entries
	t.Unique = len(entries)
	t.Entries = entries
	if opt.TopN > 0 && len(entries) > opt.TopN {
		t.Entries = entries[:opt.TopN]
	}
	return t, nil
}

// Top returns a copy of the table limited to n entries.
func (t *Table) Top(n int) *Table {
	out := *t
	src := t.source()
	if n > 0 && len(src) > n {
		out.Entries = src[:n]
	} else {
		out.Entries = src
	}
	return &out
}

// Contains reports whether value occurs in the column.
func (t *Table) Contains(value string) bool {
	for _, e := range t.source() {
		if e.Value == value {
			return true
		}
	}
	return false
}

// WithCount returns the categories that occur exactly n times, in table order.
func (t *Table) WithCount(n int) []string {
	var out []string
	for _, e := range t.source() {
		if e.Count == n {
			out = append(out, e.Value)
		}
	}
	return out
}

// Counts returns the counts of every category (ignoring TopN) in table order.
func (t *Table) Counts() []float64 {
	src := t.source()
	out := make([]float64, len(src))
	for i, e := range src {
		out[i] = float64(e.Count)
	}
	return out
}

// Fractions returns each entry's share of Total.
func (t *Table) Fractions() []float64 {
	out := make([]float64, len(t.Entries))
	for i, e := range t.Entries {
		out[i] = float64(e.Count) / float64(t.Total)
	}
	return out
}

// Labels returns entry values in table order.
func (t *Table) Labels() []string {
	out := make([]string, len(t.Entries))
	for i, e := range t.Entries {
		out[i] = e.Value
	}
	return out
}

// Values returns entry counts as floats in table order.
func (t *Table) Values() []float64 {
	out := make([]float64, len(t.Entries))
	for i, e := range t.Entries {
		out[i] = float64(e.Count)
	}
	return out
}

func (t *Table) source() []Entry {
	if t.all != nil {
		return t.all
	}
	return t.Entries
}

// Markdown renders the table as a list.
func (t *Table) Markdown() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s BY COUNT]\n", strings.ToUpper(t.Column)))
	b.WriteString(fmt.Sprintf("Counted: %d, excluded (missing): %d, unique: %d\n", t.Total, t.Excluded, t.Unique))
	for i, e := range t.Entries {
		b.WriteString(fmt.Sprintf("%d. %s: %d (%.2f%%)\n", i+1, e.Value, e.Count, float64(e.Count)*100/float64(t.Total)))
	}
	return b.String()
}
