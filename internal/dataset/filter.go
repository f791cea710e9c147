package dataset

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Op is a comparison operator in a filter condition.
type Op string

const (
	OpEq  Op = "="
	OpNeq Op = "!="
	OpGt  Op = ">"
	OpLt  Op = "<"
	OpGte Op = ">="
	OpLte Op = "<="
)

// Condition restricts rows by comparing a column against a value. Ordering
// operators compare numerically; equality compares the trimmed text.
type Condition struct {
	Column string
	Op     Op
	Value  string
}

func (c Condition) String() string { return c.Column + string(c.Op) + c.Value }

func (c Condition) ordered() bool { return c.Op != OpEq && c.Op != OpNeq }

func (c Condition) comparator() series.Comparator {
	switch c.Op {
	case OpNeq:
		return series.Neq
	case OpGt:
		return series.Greater
	case OpLt:
		return series.Less
	case OpGte:
		return series.GreaterEq
	case OpLte:
		return series.LessEq
	default:
		return series.Eq
	}
}

// ParseCondition parses "column<op>value", e.g. "State=NY" or "Severity>=3".
func ParseCondition(s string) (Condition, error) {
	pos, op := -1, Op("")
	for _, cand := range []Op{OpNeq, OpGte, OpLte, OpEq, OpGt, OpLt} {
		i := strings.Index(s, string(cand))
		if i < 0 {
			continue
		}
		if pos < 0 || i < pos || (i == pos && len(cand) > len(op)) {
			pos, op = i, cand
		}
	}
	if pos <= 0 {
		return Condition{}, fmt.Errorf("invalid condition %q (want column=value)", s)
	}
	c := Condition{
		Column: strings.TrimSpace(s[:pos]),
		Op:     op,
		Value:  strings.TrimSpace(s[pos+len(op):]),
	}
	if c.ordered() {
		if _, err := strconv.ParseFloat(c.Value, 64); err != nil {
			return Condition{}, fmt.Errorf("condition %q: %s needs a numeric value", s, op)
		}
	}
	return c, nil
}

// ParseConditions parses each expression with ParseCondition.
func ParseConditions(exprs []string) ([]Condition, error) {
	out := make([]Condition, 0, len(exprs))
	for _, e := range exprs {
		c, err := ParseCondition(e)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

const rowKey = "__row"

// textMark prefixes equality cells and values so that no text, "NaN"
// included, is read back as a missing element.
const textMark = "'"

// Where keeps the rows matching every condition. The conditions are evaluated
// on a projected dataframe holding only the referenced columns. No match is
// reported as an *EmptyResultError naming the conditions.
func (d *Dataset) Where(conds ...Condition) (*Dataset, error) {
	if len(conds) == 0 {
		return d, nil
	}
	what := describe(conds)
	idx := make([]int, len(conds))
	for i, c := range conds {
		j, ok := d.ColumnIndex(c.Column)
		if !ok {
			return nil, fmt.Errorf("filter %s: unknown column %q", what, c.Column)
		}
		idx[i] = j
	}
	if d.Len() == 0 {
		return nil, &EmptyResultError{What: what}
	}

	header := make([]string, len(conds)+1)
	header[0] = rowKey
	types := map[string]series.Type{rowKey: series.Int}
	for i, c := range conds {
		name := fmt.Sprintf("c%d", i)
		header[i+1] = name
		if c.ordered() {
			types[name] = series.Float
		}
	}
	records := make([][]string, 0, d.Len()+1)
	records = append(records, header)
	for r, row := range d.rows {
		rec := make([]string, len(conds)+1)
		rec[0] = strconv.Itoa(r)
		for i, j := range idx {
			v := strings.TrimSpace(row[j])
			switch {
			case !conds[i].ordered():
				v = textMark + v
			case v == "":
				v = "NaN"
			}
			rec[i+1] = v
		}
		records = append(records, rec)
	}
	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithTypes(types),
		dataframe.NaNValues(nil),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("filter %s: %w", what, df.Err)
	}

	filters := make([]dataframe.F, len(conds))
	for i, c := range conds {
		var comparando interface{} = textMark + c.Value
		if c.ordered() {
			f, _ := strconv.ParseFloat(c.Value, 64)
			comparando = f
		}
		filters[i] = dataframe.F{Colname: header[i+1], Comparator: c.comparator(), Comparando: comparando}
	}
	res := df.FilterAggregation(dataframe.And, filters...)
	if res.Err != nil {
		return nil, fmt.Errorf("filter %s: %w", what, res.Err)
	}
	if res.Nrow() == 0 {
		return nil, &EmptyResultError{What: what}
	}
	rows, err := res.Col(rowKey).Int()
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", what, err)
	}
	return d.Select(rows), nil
}

func describe(conds []Condition) string {
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = c.String()
	}
	return strings.Join(parts, " AND ")
}
