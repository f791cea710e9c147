package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gonum.org/v1/plot/vg"

	"github.com/KaramelBytes/crashscope/internal/render"
)

// newRenderer builds a chart renderer from chart_* config, with format
// overriding chart_format when set.
func newRenderer(format string) (*render.PlotRenderer, error) {
	if format == "" {
		format = cfg.ChartFormat
	}
	return render.NewPlotRenderer(render.Options{
		Format: format,
		Width:  vg.Length(cfg.ChartWidthCm) * vg.Centimeter,
		Height: vg.Length(cfg.ChartHeightCm) * vg.Centimeter,
		Logger: logger,
	})
}

// renderOne draws a single chart into dir (output_dir when empty).
func renderOne(cmd *cobra.Command, dir string, c render.Chart) error {
	if dir == "" {
		dir = cfg.OutputDir
	}
	r, err := newRenderer("")
	if err != nil {
		return err
	}
	loc, err := r.Render(c, render.DirDestination{Dir: dir})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote chart to %s\n", loc)
	return nil
}
