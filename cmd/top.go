package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/crashscope/internal/aggregate"
	"github.com/KaramelBytes/crashscope/internal/render"
	"github.com/KaramelBytes/crashscope/internal/utils"
)

var (
	topLoad      loadFlags
	topColumn    string
	topN         int
	topWithCount int
	topContains  string
	topChart     bool
	topOutputDir string
)

var topCmd = &cobra.Command{
	Use:   "top [file]",
	Short: "Rank the values of a column by number of accidents",
	Long: `Top counts how often each value of --column occurs and prints the N most
frequent. Rows with an empty cell are excluded and counted. Ties keep the order
in which values first appear.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := topLoad.load(cmd, args)
		if err != nil {
			return err
		}
		tbl, err := aggregate.Frequency(ds, topColumn, aggregate.Options{})
		if err != nil {
			return err
		}
		n := topN
		if !cmd.Flags().Changed("top") {
			n = cfg.TopN
		}
		top := tbl.Top(n)
		out := cmd.OutOrStdout()
		fmt.Fprint(out, top.Markdown())
		if cmd.Flags().Changed("with-count") {
			vals := tbl.WithCount(topWithCount)
			fmt.Fprintf(out, "Values with exactly %d rows: %d\n", topWithCount, len(vals))
		}
		if topContains != "" {
			verdict := "absent"
			if tbl.Contains(topContains) {
				verdict = "present"
			}
			fmt.Fprintf(out, "%s %s: %s\n", topColumn, topContains, verdict)
		}
		if !topChart {
			return nil
		}
		labels, vals := top.Labels(), top.Values()
		// Horizontal bars are drawn bottom-up; reverse so the largest is on top.
		slices.Reverse(labels)
		slices.Reverse(vals)
		return renderOne(cmd, topOutputDir, render.Chart{
			Name: utils.Slug("top_" + topColumn), Kind: render.KindBar, Horizontal: true,
			Title:  fmt.Sprintf("Top %d %s values by number of accidents", len(labels), topColumn),
			XLabel: "accidents", Labels: labels, Values: vals,
		})
	},
}

func init() {
	rootCmd.AddCommand(topCmd)
	topLoad.register(topCmd)
	topCmd.Flags().StringVarP(&topColumn, "column", "c", "City", "column to rank")
	topCmd.Flags().IntVarP(&topN, "top", "n", 20, "number of values to show (default top_n from config)")
	topCmd.Flags().IntVar(&topWithCount, "with-count", 1, "also count values occurring exactly this many times")
	topCmd.Flags().StringVar(&topContains, "contains", "", "report whether this value occurs in the column")
	topCmd.Flags().BoolVar(&topChart, "chart", false, "render a bar chart into --output-dir")
	topCmd.Flags().StringVar(&topOutputDir, "output-dir", "", "chart directory (default output_dir)")
}
