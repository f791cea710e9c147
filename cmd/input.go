package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/crashscope/internal/dataset"
	"github.com/KaramelBytes/crashscope/internal/fetch"
	"github.com/KaramelBytes/crashscope/internal/utils"
)

// loadFlags are the dataset loading flags shared by every analysis command.
type loadFlags struct {
	delimiter     string
	maxRows       int
	skipMalformed bool
	sheetName     string
	sheetIndex    int
	where         []string
	quiet         bool
}

func (lf *loadFlags) register(c *cobra.Command) {
	c.Flags().StringVar(&lf.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (auto-detect if omitted)")
	c.Flags().IntVar(&lf.maxRows, "max-rows", 0, "maximum rows to load (0 = max_rows from config)")
	c.Flags().BoolVar(&lf.skipMalformed, "skip-malformed", false, "drop rows with the wrong field count instead of failing")
	c.Flags().StringVar(&lf.sheetName, "sheet-name", "", "XLSX: sheet name to load")
	c.Flags().IntVar(&lf.sheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	c.Flags().StringArrayVarP(&lf.where, "where", "w", nil, "row filter such as State=NY or Severity>=3 (repeatable, AND-ed)")
	c.Flags().BoolVarP(&lf.quiet, "quiet", "q", false, "suppress progress output")
}

func (lf *loadFlags) options(cmd *cobra.Command) (dataset.Options, error) {
	opt := dataset.DefaultOptions()
	opt.Logger = logger
	opt.MaxRows = cfg.MaxRows
	if lf.maxRows > 0 {
		opt.MaxRows = lf.maxRows
	}
	opt.SkipMalformed = cfg.SkipMalformedRows
	if cmd.Flags().Changed("skip-malformed") {
		opt.SkipMalformed = lf.skipMalformed
	}
	switch lf.delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", lf.delimiter)
	}
	opt.SheetName = lf.sheetName
	if lf.sheetIndex > 0 {
		opt.SheetIndex = lf.sheetIndex
	}
	if !lf.quiet {
		opt.Progress = cmd.ErrOrStderr()
	}
	return opt, nil
}

// load reads the dataset named by args, or the configured dataset when args
// is empty, then applies any --where filters.
func (lf *loadFlags) load(cmd *cobra.Command, args []string) (*dataset.Dataset, error) {
	opt, err := lf.options(cmd)
	if err != nil {
		return nil, err
	}
	conds, err := dataset.ParseConditions(lf.where)
	if err != nil {
		return nil, err
	}
	path := ""
	if len(args) > 0 {
		path = args[0]
	} else {
		res, err := fetchDataset(cmd.Context(), opt.Progress, false)
		if err != nil {
			return nil, err
		}
		path = res.Path
	}
	start := time.Now()
	ds, err := dataset.Load(path, opt)
	if err != nil {
		return nil, err
	}
	logger.Info("dataset loaded",
		zap.String("path", path),
		zap.Int("rows", ds.Len()),
		zap.Int("skipped", ds.Skipped),
		zap.Duration("elapsed", time.Since(start)))
	if ds.Skipped > 0 && !lf.quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Skipped %d malformed rows\n", ds.Skipped)
	}
	if len(conds) == 0 {
		return ds, nil
	}
	return ds.Where(conds...)
}

// newFetcher builds a Fetcher from the loaded configuration.
func newFetcher(progress io.Writer) *fetch.Fetcher {
	return fetch.New(fetch.Options{
		HTTPTimeout:      time.Duration(cfg.HTTPTimeoutSec) * time.Second,
		RetryMaxAttempts: cfg.RetryMaxAttempts,
		RetryBaseDelay:   time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond,
		RetryMaxDelay:    time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond,
		KaggleUsername:   cfg.KaggleUsername,
		KaggleKey:        cfg.KaggleKey,
		S3Region:         cfg.S3Region,
		Progress:         progress,
		Logger:           logger,
	})
}

// fetchDataset makes the configured dataset available locally.
func fetchDataset(ctx context.Context, progress io.Writer, force bool) (*fetch.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return newFetcher(progress).Fetch(ctx, fetch.Request{
		Source:  cfg.DatasetSource,
		DataDir: cfg.DataDir,
		File:    cfg.DatasetFile,
		Force:   force,
	})
}

// expandInputs resolves globs into a sorted, de-duplicated file list.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}

// uniquePath returns dir/base+ext, or dir/base__N+ext when that already exists.
func uniquePath(dir, base, ext string) string {
	out := filepath.Join(dir, base+ext)
	for idx := 2; utils.FileExists(out); idx++ {
		out = filepath.Join(dir, fmt.Sprintf("%s__%d%s", base, idx, ext))
	}
	return out
}

// writeOutput writes data to path, or to stdout when path is empty.
func writeOutput(cmd *cobra.Command, path string, data []byte, what string) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := utils.SafeWriteFile(path, data); err != nil {
		return fmt.Errorf("write %s: %w", what, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s to %s\n", what, path)
	return nil
}

func baseName(path string) string {
	b := filepath.Base(path)
	return strings.TrimSuffix(b, filepath.Ext(b))
}
