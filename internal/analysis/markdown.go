package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

var printer = message.NewPrinter(language.English)

// Markdown renders a compact report suitable for terminals or standalone docs.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	b.WriteString(printer.Sprintf("Rows: %d\n", r.Rows))
	if r.Skipped > 0 {
		b.WriteString(printer.Sprintf("Skipped malformed rows: %d\n", r.Skipped))
	}
	b.WriteString(fmt.Sprintf("Columns: %d (numeric %d)\n\n", len(r.Cols), len(r.NumericColumns())))

	b.WriteString("[SCHEMA]\n")
	for _, c := range r.Cols {
		name := safeName(c.Label)
		if c.Unit != "" {
			name = fmt.Sprintf("%s [%s]", name, c.Unit)
		}
		b.WriteString(printer.Sprintf("- %s: %s (non-null %d, missing %.1f%%)", name, c.Kind, c.NonNull, c.MissingFraction*100))
		switch c.Kind {
		case KindNumeric:
			if st := c.Stats; st != nil && st.Count > 0 {
				b.WriteString(fmt.Sprintf(" — mean %.4g, std %.4g, min %.4g, 25%% %.4g, 50%% %.4g, 75%% %.4g, max %.4g",
					st.Mean, st.Std, st.Min, st.Q1, st.Median, st.Q3, st.Max))
				if st.OutlierThreshold > 0 {
					b.WriteString(fmt.Sprintf("; outliers: %d above |z|>%.1f", st.OutliersCount, st.OutlierThreshold))
					if st.OutliersMaxAbsZ > 0 {
						b.WriteString(fmt.Sprintf(" (max |z|≈%.2f)", st.OutliersMaxAbsZ))
					}
				}
			}
		case KindDatetime:
			if c.First != "" {
				b.WriteString(fmt.Sprintf(" — from %s to %s", c.First, c.Last))
			}
		case KindCategorical, KindBoolean:
			if len(c.TopValues) > 0 {
				b.WriteString(" — top: ")
				for i, kv := range c.TopValues {
					if i > 0 {
						b.WriteString(", ")
					}
					b.WriteString(printer.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
				}
				if c.Unique > len(c.TopValues) {
					b.WriteString(fmt.Sprintf("; unique=%d", c.Unique))
				}
			}
		case KindText:
			if c.Unique > 0 {
				op := "="
				if c.UniqueCapped {
					op = "≥"
				}
				b.WriteString(fmt.Sprintf(" — unique%s%d", op, c.Unique))
			}
			if len(c.ExampleTexts) > 0 {
				b.WriteString(", e.g., ")
				for i, ex := range c.ExampleTexts {
					if i > 0 {
						b.WriteString(" | ")
					}
					b.WriteString(safeVal(ex))
				}
			}
		}
		b.WriteString("\n")
	}

	ranked := r.MissingRanking()
	if len(ranked) > 0 && ranked[0].Missing > 0 {
		b.WriteString("\n[MISSING VALUES]\n")
		for _, c := range ranked {
			if c.Missing == 0 {
				break
			}
			b.WriteString(printer.Sprintf("- %s: %.2f%% (%d)\n", safeName(c.Name), c.MissingFraction*100, c.Missing))
		}
	}

	if r.Corr != nil && len(r.Corr.Columns) >= 2 {
		b.WriteString("\n[CORRELATIONS]\n")
		// list top pairs by |r|
		type pr struct {
			A, B string
			R    float64
		}
		var pairs []pr
		n := len(r.Corr.Columns)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				pairs = append(pairs, pr{A: r.Corr.Columns[i], B: r.Corr.Columns[j], R: r.Corr.Values[i][j]})
			}
		}
		sort.SliceStable(pairs, func(i, j int) bool {
			return math.Abs(pairs[i].R) > math.Abs(pairs[j].R)
		})
		if len(pairs) > 10 {
			pairs = pairs[:10]
		}
		for _, p := range pairs {
			b.WriteString(fmt.Sprintf("- %s ~ %s: r=%.3f\n", p.A, p.B, p.R))
		}
	}

	if len(r.Samples) > 0 {
		b.WriteString("\n[HEAD]\n")
		b.WriteString("| ")
		for i, c := range r.Cols {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeName(c.Name))
		}
		b.WriteString(" |\n| ")
		for i := range r.Cols {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString("---")
		}
		b.WriteString(" |\n")
		for _, row := range r.Samples {
			b.WriteString("| ")
			for i := range r.Cols {
				if i > 0 {
					b.WriteString(" | ")
				}
				val := ""
				if i < len(row) {
					val = row[i]
				}
				if len(val) > 80 {
					val = val[:77] + "..."
				}
				b.WriteString(safeVal(val))
			}
			b.WriteString(" |\n")
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Encode renders the report as "md", "yaml" or "json".
func (r *Report) Encode(format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", "md", "markdown":
		return []byte(r.Markdown()), nil
	case "yaml", "yml":
		b, err := yaml.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("marshal yaml: %w", err)
		}
		return b, nil
	case "json":
		b, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal json: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (use md|yaml|json)", format)
	}
}

func invalidNote(c ColumnSummary) string {
	return printer.Sprintf("%s: %d non-empty values did not parse as %s and were left out of its statistics", c.Name, c.Invalid, c.Kind)
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
