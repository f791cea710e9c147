package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/crashscope/internal/analysis"
)

var (
	prfLoad       loadFlags
	prfOutputPath string
	prfOutputDir  string
	prfFormat     string
	prfSampleRows int
	prfTopValues  int
	prfCorr       bool
	prfOutliers   bool
	prfOutlierThr float64
)

var profileCmd = &cobra.Command{
	Use:   "profile [files...]",
	Short: "Profile one or more CSV/TSV/XLSX files (the configured dataset if none given)",
	Long: `Profile reports per-column kind, missing counts, numeric statistics,
outliers and top values, plus a missing-value ranking.

With several files (globs allowed) each report is written to --output-dir as
<name>.profile.<format>; same-named inputs get a __N suffix instead of
overwriting each other.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opt := analysis.DefaultOptions()
		if prfSampleRows >= 0 {
			opt.SampleRows = prfSampleRows
		}
		if prfTopValues > 0 {
			opt.TopValues = prfTopValues
		}
		opt.Correlations = prfCorr
		if cmd.Flags().Changed("outliers") {
			opt.Outliers = prfOutliers
		}
		if prfOutlierThr > 0 {
			opt.OutlierThreshold = prfOutlierThr
		}
		format := strings.ToLower(strings.TrimSpace(prfFormat))
		ext, err := reportExt(format)
		if err != nil {
			return err
		}

		if len(args) == 1 {
			// A quoted pattern is expanded here; an unmatched path is left for the loader to report.
			if files, err := expandInputs(args); err == nil {
				args = files
			}
		}
		if len(args) <= 1 {
			ds, err := prfLoad.load(cmd, args)
			if err != nil {
				return err
			}
			out, err := analysis.Profile(ds, opt).Encode(format)
			if err != nil {
				return err
			}
			return writeOutput(cmd, prfOutputPath, out, "profile")
		}

		if prfOutputPath != "" {
			return fmt.Errorf("--output takes a single input; use --output-dir for several")
		}
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		dir := prfOutputDir
		if dir == "" {
			dir = cfg.OutputDir
		}
		total := len(files)
		for i, path := range files {
			if !prfLoad.quiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] Processing %s...\n", i+1, total, path)
			}
			ds, err := prfLoad.load(cmd, []string{path})
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			out, err := analysis.Profile(ds, opt).Encode(format)
			if err != nil {
				return err
			}
			if err := writeOutput(cmd, uniquePath(dir, baseName(path), ".profile"+ext), out, "profile"); err != nil {
				return err
			}
			logger.Debug("profile written", zap.String("input", path))
		}
		return nil
	},
}

func reportExt(format string) (string, error) {
	switch format {
	case "", "md", "markdown":
		return ".md", nil
	case "yaml", "yml":
		return ".yaml", nil
	case "json":
		return ".json", nil
	}
	return "", fmt.Errorf("unsupported --format: %s (use md|yaml|json)", format)
}

func init() {
	rootCmd.AddCommand(profileCmd)
	prfLoad.register(profileCmd)
	profileCmd.Flags().StringVarP(&prfOutputPath, "output", "o", "", "path to write the report (single input; stdout if omitted)")
	profileCmd.Flags().StringVar(&prfOutputDir, "output-dir", "", "directory for reports when profiling several files (default output_dir)")
	profileCmd.Flags().StringVarP(&prfFormat, "format", "f", "md", "report format: md|yaml|json")
	profileCmd.Flags().IntVar(&prfSampleRows, "sample-rows", 5, "number of head rows to include (0 disables samples)")
	profileCmd.Flags().IntVar(&prfTopValues, "top-values", 8, "most frequent values kept per categorical column")
	profileCmd.Flags().BoolVar(&prfCorr, "correlations", false, "compute Pearson correlations among numeric columns")
	profileCmd.Flags().BoolVar(&prfOutliers, "outliers", true, "compute robust outlier counts (MAD)")
	profileCmd.Flags().Float64Var(&prfOutlierThr, "outlier-threshold", 3.5, "robust |z| threshold for outliers (MAD-based)")
}
