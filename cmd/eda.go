package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/crashscope/internal/eda"
	"github.com/KaramelBytes/crashscope/internal/render"
	"github.com/KaramelBytes/crashscope/internal/utils"
)

var (
	edaLoad       loadFlags
	edaOutputDir  string
	edaFormat     string
	edaTopN       int
	edaFraction   float64
	edaSeed       uint64
	edaYear       int
	edaYearSource string
	edaState      string
	edaStrict     bool
	edaCorr       bool
	edaSummary    bool
)

var edaCmd = &cobra.Command{
	Use:   "eda [file]",
	Short: "Run the full exploratory pass and render every chart",
	Long: `EDA profiles the dataset, ranks cities and sources, derives hour, weekday
and month distributions (including Sundays only and one year for one source),
samples coordinates for a scatter plot and a density heatmap, and writes every
chart plus a manifest.json into --output-dir. Charts with no data are listed as
skipped instead of failing the run.

Without a file argument the configured dataset is fetched first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := edaLoad.load(cmd, args)
		if err != nil {
			return err
		}
		opt := eda.DefaultOptions()
		opt.TimeColumn = cfg.TimeColumn
		opt.LatColumn = cfg.LatColumn
		opt.LngColumn = cfg.LngColumn
		opt.TopN = cfg.TopN
		opt.SampleFraction = cfg.SampleFraction
		opt.SampleSeed = cfg.SampleSeed
		f := cmd.Flags()
		if f.Changed("top") {
			opt.TopN = edaTopN
		}
		if f.Changed("fraction") {
			opt.SampleFraction = edaFraction
		}
		if f.Changed("seed") {
			opt.SampleSeed = edaSeed
		}
		opt.Year = edaYear
		opt.YearSource = edaYearSource
		opt.CheckState = edaState
		opt.StrictTime = edaStrict
		opt.Profile.Correlations = edaCorr
		opt.Logger = logger

		dir := edaOutputDir
		if dir == "" {
			dir = cfg.OutputDir
		}
		r, err := newRenderer(edaFormat)
		if err != nil {
			return err
		}
		sum, err := eda.Run(cmd.Context(), ds, opt, r, render.DirDestination{Dir: dir})
		if err != nil {
			return err
		}
		md := sum.Markdown()
		fmt.Fprint(cmd.OutOrStdout(), md)
		if edaSummary {
			path := filepath.Join(dir, "summary.md")
			if err := utils.SafeWriteFile(path, []byte(md)); err != nil {
				return fmt.Errorf("write summary: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote summary to %s\n", path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(edaCmd)
	edaLoad.register(edaCmd)
	def := eda.DefaultOptions()
	edaCmd.Flags().StringVarP(&edaOutputDir, "output-dir", "o", "", "chart directory (default output_dir)")
	edaCmd.Flags().StringVarP(&edaFormat, "format", "f", "", "chart format: png|svg (default chart_format)")
	edaCmd.Flags().IntVar(&edaTopN, "top", def.TopN, "cities in the top chart (default top_n)")
	edaCmd.Flags().Float64Var(&edaFraction, "fraction", def.SampleFraction, "sample fraction for coordinate charts (default sample_fraction)")
	edaCmd.Flags().Uint64Var(&edaSeed, "seed", def.SampleSeed, "sample seed (default sample_seed)")
	edaCmd.Flags().IntVar(&edaYear, "year", def.Year, "year of the per-source monthly chart")
	edaCmd.Flags().StringVar(&edaYearSource, "year-source", def.YearSource, "source of the per-source monthly chart")
	edaCmd.Flags().StringVar(&edaState, "state", def.CheckState, "state code to check for in the State column")
	edaCmd.Flags().BoolVar(&edaStrict, "strict-time", false, "fail on missing or unparsable timestamps")
	edaCmd.Flags().BoolVar(&edaCorr, "correlations", false, "compute Pearson correlations in the profile")
	edaCmd.Flags().BoolVar(&edaSummary, "write-summary", true, "also write summary.md into the output directory")
}
