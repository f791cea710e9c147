package geo

import (
	"fmt"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/KaramelBytes/crashscope/internal/dataset"
)

// WriteParquet writes points to a snappy-compressed parquet file at path.
func WriteParquet(path string, points []Point) (err error) {
	if len(points) == 0 {
		return &dataset.EmptyResultError{What: "no points to export"}
	}
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return &dataset.IOError{Path: path, Err: err}
	}
	defer func() {
		if cerr := fw.Close(); cerr != nil && err == nil {
			err = &dataset.IOError{Path: path, Err: cerr}
		}
	}()

	pw, err := writer.NewParquetWriter(fw, new(Point), 4)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for i := range points {
		if err := pw.Write(points[i]); err != nil {
			return fmt.Errorf("failed to write point %d: %w", i, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return nil
}
