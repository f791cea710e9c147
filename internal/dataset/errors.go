package dataset

import (
	"fmt"
)

// IOError indicates the input file is missing or unreadable.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ParseError reports a malformed row or value. Line is 1-based and counts the
// header; Row is the 0-based data row index. Either may be zero when unknown.
type ParseError struct {
	Line   int
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	switch {
	case e.Column != "":
		return fmt.Sprintf("parse %s at row %d: %q: %v", e.Column, e.Row, e.Value, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("parse line %d: %v", e.Line, e.Err)
	default:
		return fmt.Sprintf("parse: %v", e.Err)
	}
}

func (e *ParseError) Unwrap() error { return e.Err }

// EmptyResultError indicates a filter or aggregation produced no rows.
type EmptyResultError struct {
	What string
}

func (e *EmptyResultError) Error() string {
	if e.What == "" {
		return "empty result"
	}
	return fmt.Sprintf("empty result: %s", e.What)
}
