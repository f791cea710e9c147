package fetch

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/crashscope/internal/dataset"
)

var zipMagic = []byte("PK\x03\x04")

// isZip sniffs the local file header signature.
func isZip(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, &dataset.IOError{Path: path, Err: err}
	}
	defer f.Close()
	head := make([]byte, len(zipMagic))
	n, err := io.ReadFull(f, head)
	if err != nil && n < len(head) {
		return false, nil
	}
	return bytes.Equal(head, zipMagic), nil
}

func isTabular(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".tsv":
		return true
	}
	return false
}

// extractCSV unpacks the CSV/TSV entries of the archive into dir, flattening
// any directories, and returns the extracted paths in archive order.
// Entries that already exist are kept unless force is set.
func extractCSV(archive, dir string, force bool) ([]string, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", archive, err)
	}
	defer zr.Close()

	var out []string
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !isTabular(f.Name) {
			continue
		}
		name := filepath.Base(filepath.FromSlash(f.Name))
		if name == "." || name == ".." || strings.HasPrefix(name, ".") {
			continue
		}
		dst := filepath.Join(dir, name)
		out = append(out, dst)
		if !force {
			if st, err := os.Stat(dst); err == nil && st.Size() == int64(f.UncompressedSize64) {
				continue
			}
		}
		if err := extractEntry(f, dst); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func extractEntry(f *zip.File, dst string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open archive entry %s: %w", f.Name, err)
	}
	defer rc.Close()
	tmp := dst + ".part"
	w, err := os.Create(tmp)
	if err != nil {
		return &dataset.IOError{Path: tmp, Err: err}
	}
	if _, err := io.Copy(w, rc); err != nil {
		w.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	if err := w.Close(); err != nil {
		_ = os.Remove(tmp)
		return &dataset.IOError{Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return &dataset.IOError{Path: dst, Err: err}
	}
	return nil
}
