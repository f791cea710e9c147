package dataset

import (
	"bytes"
	"encoding/csv"
	"io"

	"github.com/KaramelBytes/crashscope/internal/utils"
)

// WriteCSV writes the header and every row to w.
func (d *Dataset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(d.Columns); err != nil {
		return err
	}
	for _, row := range d.rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the dataset to path, creating parent directories.
func (d *Dataset) SaveCSV(path string) error {
	var buf bytes.Buffer
	if err := d.WriteCSV(&buf); err != nil {
		return err
	}
	if err := utils.SafeWriteFile(path, buf.Bytes()); err != nil {
		return &IOError{Path: path, Err: err}
	}
	return nil
}
