package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/crashscope/internal/dataset"
	"github.com/KaramelBytes/crashscope/internal/render"
	"github.com/KaramelBytes/crashscope/internal/temporal"
	"github.com/KaramelBytes/crashscope/internal/utils"
)

var (
	tmpLoad      loadFlags
	tmpColumn    string
	tmpField     string
	tmpWeekday   string
	tmpYear      int
	tmpStrict    bool
	tmpChart     bool
	tmpOutputDir string
)

var temporalCmd = &cobra.Command{
	Use:   "temporal [file]",
	Short: "Distribution of accidents by hour, weekday, month or year",
	Long: `Temporal parses a timestamp column and prints the share of rows per hour
(0-23), weekday (Monday first), month or year. Missing and unparsable
timestamps are excluded and counted unless --strict turns them into errors.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		field, err := temporal.ParseField(tmpField)
		if err != nil {
			return err
		}
		weekday := -1
		if tmpWeekday != "" {
			if weekday, err = parseWeekday(tmpWeekday); err != nil {
				return err
			}
		}
		column := tmpColumn
		if column == "" {
			column = cfg.TimeColumn
		}

		ds, err := tmpLoad.load(cmd, args)
		if err != nil {
			return err
		}
		res, err := temporal.Derive(ds, column, temporal.Options{Strict: tmpStrict})
		if err != nil {
			return err
		}
		if res.Excluded > 0 {
			logger.Warn("timestamps excluded", zap.String("column", column), zap.Int("excluded", res.Excluded), zap.Int("missing", res.Missing))
		}
		var what []string
		if tmpYear != 0 {
			res = res.Where(func(p temporal.Parts) bool { return p.Year == tmpYear })
			what = append(what, fmt.Sprintf("year=%d", tmpYear))
		}
		if weekday >= 0 {
			res = res.Where(func(p temporal.Parts) bool { return p.Weekday == weekday })
			what = append(what, "weekday="+temporal.WeekdayNames[weekday])
		}
		if len(what) > 0 && len(res.Parts) == 0 {
			return &dataset.EmptyResultError{What: column + " " + strings.Join(what, " AND ")}
		}
		dist, err := res.Distribution(field)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), dist.Markdown())
		peak := dist.Peak()
		fmt.Fprintf(cmd.OutOrStdout(), "Peak: %s (%.2f%%)\n", peak.Label, peak.Fraction*100)
		if !tmpChart {
			return nil
		}
		title := fmt.Sprintf("Accidents by %s", field)
		if len(what) > 0 {
			title += " (" + strings.Join(what, ", ") + ")"
		}
		return renderOne(cmd, tmpOutputDir, render.Chart{
			Name: utils.Slug(title), Kind: render.KindBar,
			Title: title, XLabel: string(field), YLabel: "share of accidents",
			Labels: dist.Labels(), Values: dist.Fractions(),
		})
	},
}

// parseWeekday accepts a weekday name or any prefix of at least three letters.
func parseWeekday(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) >= 3 {
		for i, name := range temporal.WeekdayNames {
			if strings.HasPrefix(strings.ToLower(name), s) {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

func init() {
	rootCmd.AddCommand(temporalCmd)
	tmpLoad.register(temporalCmd)
	temporalCmd.Flags().StringVarP(&tmpColumn, "column", "c", "", "timestamp column (default time_column from config)")
	temporalCmd.Flags().StringVar(&tmpField, "field", "hour", "calendar part: hour|weekday|month|year")
	temporalCmd.Flags().StringVar(&tmpWeekday, "weekday", "", "only rows on this weekday, e.g. sunday")
	temporalCmd.Flags().IntVar(&tmpYear, "year", 0, "only rows in this year")
	temporalCmd.Flags().BoolVar(&tmpStrict, "strict", false, "fail on missing or unparsable timestamps")
	temporalCmd.Flags().BoolVar(&tmpChart, "chart", false, "render a bar chart into --output-dir")
	temporalCmd.Flags().StringVar(&tmpOutputDir, "output-dir", "", "chart directory (default output_dir)")
}
