package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/crashscope/internal/geo"
)

var (
	smpLoad     loadFlags
	smpFraction float64
	smpSeed     uint64
	smpOutput   string
	smpLat      string
	smpLng      string
)

var sampleCmd = &cobra.Command{
	Use:   "sample [file]",
	Short: "Draw a reproducible random sample of rows",
	Long: `Sample draws round(fraction × rows) rows without replacement using a
seeded generator, keeping the original row order. The sample is written as CSV,
or as a parquet file of row/lat/lng points when --output ends in .parquet.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cfg.SampleFraction
		if cmd.Flags().Changed("fraction") {
			f = smpFraction
		}
		seed := cfg.SampleSeed
		if cmd.Flags().Changed("seed") {
			seed = smpSeed
		}
		ds, err := smpLoad.load(cmd, args)
		if err != nil {
			return err
		}
		sample, err := geo.Sample(ds, f, seed)
		if err != nil {
			return err
		}
		logger.Info("sample drawn", zap.Int("rows", sample.Len()), zap.Float64("fraction", f), zap.Uint64("seed", seed))

		out := cmd.OutOrStdout()
		switch {
		case smpOutput == "":
			return sample.WriteCSV(out)
		case strings.EqualFold(filepath.Ext(smpOutput), ".parquet"):
			lat, lng := smpLat, smpLng
			if lat == "" {
				lat = cfg.LatColumn
			}
			if lng == "" {
				lng = cfg.LngColumn
			}
			pts, err := geo.Points(sample, lat, lng)
			if err != nil {
				return err
			}
			if err := geo.WriteParquet(smpOutput, pts.Points); err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Wrote %d points to %s (%d rows without valid coordinates)\n", len(pts.Points), smpOutput, pts.Excluded)
		default:
			if err := sample.SaveCSV(smpOutput); err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Wrote %d of %d rows to %s\n", sample.Len(), ds.Len(), smpOutput)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sampleCmd)
	smpLoad.register(sampleCmd)
	sampleCmd.Flags().Float64Var(&smpFraction, "fraction", 0.1, "fraction of rows in (0,1] (default sample_fraction from config)")
	sampleCmd.Flags().Uint64Var(&smpSeed, "seed", 42, "random seed (default sample_seed from config)")
	sampleCmd.Flags().StringVarP(&smpOutput, "output", "o", "", "output file (.csv or .parquet); CSV to stdout if omitted")
	sampleCmd.Flags().StringVar(&smpLat, "lat-column", "", "latitude column for parquet output (default lat_column)")
	sampleCmd.Flags().StringVar(&smpLng, "lng-column", "", "longitude column for parquet output (default lng_column)")
}
