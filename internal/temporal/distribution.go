package temporal

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/KaramelBytes/crashscope/internal/dataset"
)

// Bucket is one value of a calendar field with its count and share.
type Bucket struct {
	Value    int     `json:"value" yaml:"value"`
	Label    string  `json:"label" yaml:"label"`
	Count    int     `json:"count" yaml:"count"`
	Fraction float64 `json:"fraction" yaml:"fraction"`
}

// Distribution counts parsed timestamps per value of a field, covering the
// field's full range so empty buckets show up as zero.
type Distribution struct {
	Column   string   `json:"column" yaml:"column"`
	Field    Field    `json:"field" yaml:"field"`
	Buckets  []Bucket `json:"buckets" yaml:"buckets"`
	Total    int      `json:"total" yaml:"total"`
	Excluded int      `json:"excluded" yaml:"excluded"`
}

// Distribution counts the parts per value of f. It is an
// *dataset.EmptyResultError when no timestamp parsed.
func (r *Result) Distribution(f Field) (*Distribution, error) {
	if len(r.Parts) == 0 {
		return nil, &dataset.EmptyResultError{What: fmt.Sprintf("no parsable timestamps in %s", r.Column)}
	}
	lo, hi := bounds(f, r.Parts)
	d := &Distribution{Column: r.Column, Field: f, Total: len(r.Parts), Excluded: r.Excluded}
	d.Buckets = make([]Bucket, hi-lo+1)
	for i := range d.Buckets {
		d.Buckets[i] = Bucket{Value: lo + i, Label: label(f, lo+i)}
	}
	for _, p := range r.Parts {
		d.Buckets[p.Get(f)-lo].Count++
	}
	for i := range d.Buckets {
		d.Buckets[i].Fraction = float64(d.Buckets[i].Count) / float64(d.Total)
	}
	return d, nil
}

func bounds(f Field, parts []Parts) (lo, hi int) {
	switch f {
	case Hour:
		return 0, 23
	case Weekday:
		return 0, 6
	case Month:
		return 1, 12
	}
	lo, hi = parts[0].Year, parts[0].Year
	for _, p := range parts[1:] {
		if p.Year < lo {
			lo = p.Year
		}
		if p.Year > hi {
			hi = p.Year
		}
	}
	return lo, hi
}

func label(f Field, v int) string {
	switch f {
	case Weekday:
		return WeekdayNames[v]
	case Month:
		return MonthNames[v-1]
	case Hour:
		return fmt.Sprintf("%02d", v)
	}
	return strconv.Itoa(v)
}

// Labels returns bucket labels in order.
func (d *Distribution) Labels() []string {
	out := make([]string, len(d.Buckets))
	for i, b := range d.Buckets {
		out[i] = b.Label
	}
	return out
}

// Fractions returns bucket shares in order.
func (d *Distribution) Fractions() []float64 {
	out := make([]float64, len(d.Buckets))
	for i, b := range d.Buckets {
		out[i] = b.Fraction
	}
	return out
}

// Peak returns the bucket with the highest count; the earliest wins ties.
func (d *Distribution) Peak() Bucket {
	best := d.Buckets[0]
	for _, b := range d.Buckets[1:] {
		if b.Count > best.Count {
			best = b
		}
	}
	return best
}

// Markdown renders the distribution as a list with percentages.
func (d *Distribution) Markdown() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s BY %s]\n", strings.ToUpper(d.Column), strings.ToUpper(string(d.Field))))
	b.WriteString(fmt.Sprintf("Parsed: %d, excluded (missing or unparsable): %d\n", d.Total, d.Excluded))
	for _, bk := range d.Buckets {
		b.WriteString(fmt.Sprintf("- %s: %d (%.2f%%)\n", bk.Label, bk.Count, bk.Fraction*100))
	}
	return b.String()
}
