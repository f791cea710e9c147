package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// maxRowErrors bounds how many skipped-row errors are retained.
const maxRowErrors = 20

// Options controls how a file is loaded.
type Options struct {
	// Delimiter for CSV. If 0, '\t' for .tsv files and ',' otherwise.
	Delimiter rune
	// MaxRows limits rows loaded; 0 means unlimited.
	MaxRows int
	// SkipMalformed drops rows whose field count differs from the header
	// instead of failing. Dropped rows are counted in Dataset.Skipped.
	SkipMalformed bool
	// XLSX sheet selection: by name, else 1-based index (default first sheet).
	SheetName  string
	SheetIndex int
	// Progress, when set, receives a byte progress bar while reading CSV.
	Progress io.Writer
	Logger   *zap.Logger
}

// DefaultOptions returns the strict loading policy.
func DefaultOptions() Options {
	return Options{SheetIndex: 1}
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Load reads a dataset, choosing the format from the file extension.
func Load(path string, opt Options) (*Dataset, error) {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return LoadXLSX(path, opt)
	}
	return LoadCSV(path, opt)
}

// LoadCSV reads a delimited file with a header row.
func LoadCSV(path string, opt Options) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}
	defer f.Close()

	var src io.Reader = f
	if opt.Progress != nil {
		var size int64 = -1
		if st, err := f.Stat(); err == nil {
			size = st.Size()
		}
		bar := progressbar.NewOptions64(size,
			progressbar.OptionSetWriter(opt.Progress),
			progressbar.OptionSetDescription("loading "+filepath.Base(path)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
		src = io.TeeReader(f, bar)
	}

	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(path)
	}
	r := csv.NewReader(src)
	r.Comma = delim
	r.FieldsPerRecord = 0
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Line: 1, Err: errors.New("missing header row")}
		}
		return nil, wrapReadErr(path, err)
	}

	log := opt.logger()
	var (
		rows      [][]string
		skipped   int
		rowErrs   []*ParseError
		truncated bool
	)
	for {
		if opt.MaxRows > 0 && len(rows) >= opt.MaxRows {
			// Anything left after the cap, even a malformed line, only marks truncation.
			if _, err := r.Read(); !errors.Is(err, io.EOF) {
				truncated = true
			}
			break
		}
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			var pe *csv.ParseError
			if opt.SkipMalformed && errors.As(err, &pe) && errors.Is(err, csv.ErrFieldCount) {
				skipped++
				if len(rowErrs) < maxRowErrors {
					rowErrs = append(rowErrs, &ParseError{Line: pe.Line, Row: len(rows), Err: pe.Err})
				}
				log.Debug("skipping malformed row", zap.Int("line", pe.Line), zap.Error(pe.Err))
				continue
			}
			return nil, wrapReadErr(path, err)
		}
		rows = append(rows, rec)
	}

	ds, err := New(filepath.Base(path), header, rows)
	if err != nil {
		return nil, &ParseError{Line: 1, Err: err}
	}
	ds.Skipped = skipped
	ds.RowErrors = rowErrs
	if skipped > 0 {
		ds.Warnings = append(ds.Warnings, fmt.Sprintf("skipped %d malformed rows", skipped))
		log.Warn("malformed rows skipped", zap.String("file", ds.Name), zap.Int("skipped", skipped))
	}
	if truncated {
		ds.Warnings = append(ds.Warnings, fmt.Sprintf("loaded only the first %d rows due to MaxRows", opt.MaxRows))
	}
	log.Debug("dataset loaded", zap.String("file", ds.Name), zap.Int("rows", ds.Len()), zap.Int("columns", len(ds.Columns)))
	return ds, nil
}

// LoadXLSX reads the selected worksheet; the first row is the header.
func LoadXLSX(path string, opt Options) (*Dataset, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &IOError{Path: path, Err: err}
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("open xlsx: %w", err)}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	sheet := ""
	if opt.SheetName != "" {
		for _, s := range sheets {
			if strings.EqualFold(s, opt.SheetName) {
				sheet = s
				break
			}
		}
		if sheet == "" {
			return nil, fmt.Errorf("sheet '%s' not found in workbook '%s'.\nAvailable sheets: %s",
				opt.SheetName, filepath.Base(path), strings.Join(sheets, ", "))
		}
	} else {
		idx := opt.SheetIndex
		if idx <= 0 {
			idx = 1
		}
		if idx > len(sheets) {
			return nil, fmt.Errorf("sheet index %d out of range (workbook has %d sheets)", idx, len(sheets))
		}
		sheet = sheets[idx-1]
	}

	all, err := f.GetRows(sheet)
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("read sheet %s: %w", sheet, err)}
	}
	if len(all) == 0 {
		return nil, &ParseError{Line: 1, Err: errors.New("missing header row")}
	}
	header := all[0]
	var (
		rows    [][]string
		skipped int
		rowErrs []*ParseError
	)
	for i, rec := range all[1:] {
		if opt.MaxRows > 0 && len(rows) >= opt.MaxRows {
			break
		}
		line := i + 2
		if len(rec) > len(header) {
			perr := &ParseError{Line: line, Row: len(rows), Err: csv.ErrFieldCount}
			if !opt.SkipMalformed {
				return nil, perr
			}
			skipped++
			if len(rowErrs) < maxRowErrors {
				rowErrs = append(rowErrs, perr)
			}
			continue
		}
		rows = append(rows, rec)
	}
	ds, err := New(filepath.Base(path), header, rows)
	if err != nil {
		return nil, &ParseError{Line: 1, Err: err}
	}
	ds.Skipped = skipped
	ds.RowErrors = rowErrs
	if skipped > 0 {
		ds.Warnings = append(ds.Warnings, fmt.Sprintf("skipped %d malformed rows", skipped))
	}
	return ds, nil
}

func wrapReadErr(path string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ParseError{Line: pe.Line, Err: pe.Err}
	}
	return &IOError{Path: path, Err: err}
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}
