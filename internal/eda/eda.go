// Package eda runs the full exploratory pass over an accidents dataset:
// profile, rank cities, derive time distributions, sample coordinates and
// render every chart.
package eda

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/crashscope/internal/aggregate"
	"github.com/KaramelBytes/crashscope/internal/analysis"
	"github.com/KaramelBytes/crashscope/internal/dataset"
	"github.com/KaramelBytes/crashscope/internal/geo"
	"github.com/KaramelBytes/crashscope/internal/render"
	"github.com/KaramelBytes/crashscope/internal/temporal"
)

// Options configures a run. Zero values fall back to DefaultOptions.
type Options struct {
	TimeColumn   string
	LatColumn    string
	LngColumn    string
	CityColumn   string
	StateColumn  string
	SourceColumn string

	TopN int
	// SampleFraction of rows used for the scatter and heatmap.
	SampleFraction float64
	SampleSeed     uint64
	GridCols       int
	GridRows       int

	// Year and YearSource select the restricted monthly distribution.
	Year       int
	YearSource string
	// CheckState is looked up in the state column.
	CheckState string
	// StrictTime fails the run on any unparsable timestamp.
	StrictTime bool

	Profile analysis.Options
	Logger  *zap.Logger
}

// DefaultOptions mirrors the usual US accidents walkthrough.
func DefaultOptions() Options {
	return Options{
		TimeColumn:     dataset.ColStartTime,
		LatColumn:      dataset.ColStartLat,
		LngColumn:      dataset.ColStartLng,
		CityColumn:     dataset.ColCity,
		StateColumn:    dataset.ColState,
		SourceColumn:   dataset.ColSource,
		TopN:           20,
		SampleFraction: 0.1,
		SampleSeed:     42,
		GridCols:       60,
		GridRows:       30,
		Year:           2016,
		YearSource:     "Source2",
		CheckState:     "NY",
		Profile:        analysis.DefaultOptions(),
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	str := func(v *string, d string) {
		if *v == "" {
			*v = d
		}
	}
	str(&o.TimeColumn, def.TimeColumn)
	str(&o.LatColumn, def.LatColumn)
	str(&o.LngColumn, def.LngColumn)
	str(&o.CityColumn, def.CityColumn)
	str(&o.StateColumn, def.StateColumn)
	str(&o.SourceColumn, def.SourceColumn)
	str(&o.YearSource, def.YearSource)
	str(&o.CheckState, def.CheckState)
	if o.TopN <= 0 {
		o.TopN = def.TopN
	}
	if o.SampleFraction == 0 {
		o.SampleFraction = def.SampleFraction
	}
	if o.GridCols <= 0 {
		o.GridCols = def.GridCols
	}
	if o.GridRows <= 0 {
		o.GridRows = def.GridRows
	}
	if o.Year == 0 {
		o.Year = def.Year
	}
	if o.Profile == (analysis.Options{}) {
		o.Profile = def.Profile
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// run carries per-run state between steps.
type run struct {
	ds  *dataset.Dataset
	opt Options
	r   render.Renderer
	dst render.Destination
	log *zap.Logger
	sum *Summary
}

// Run executes every step over ds, rendering charts with r into dst. Steps that
// produce no data are recorded in Summary.Skipped rather than failing the run;
// any other error stops it. The returned Summary is populated up to the failing
// step. Run checks ctx between steps.
func Run(ctx context.Context, ds *dataset.Dataset, opt Options, r render.Renderer, dst render.Destination) (*Summary, error) {
	opt = opt.withDefaults()
	s := &Summary{
		RunID:     uuid.NewString(),
		Dataset:   ds.Name,
		Rows:      ds.Len(),
		StartedAt: time.Now().UTC(),
	}
	ru := &run{ds: ds, opt: opt, r: r, dst: dst, sum: s,
		log: opt.Logger.With(zap.String("run_id", s.RunID))}
	ru.log.Info("eda run started", zap.String("dataset", ds.Name), zap.Int("rows", ds.Len()))

	steps := []struct {
		name string
		fn   func() error
	}{
		{"profile", ru.profile},
		{"cities", ru.cities},
		{"time", ru.timeParts},
		{"sources", ru.sources},
		{"year-source", ru.yearSource},
		{"coordinates", ru.coordinates},
		{"manifest", ru.manifest},
	}
	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		if err := st.fn(); err != nil {
			ru.log.Error("eda step failed", zap.String("step", st.name), zap.Error(err))
			return s, fmt.Errorf("%s: %w", st.name, err)
		}
	}
	ru.log.Info("eda run finished", zap.Int("charts", len(s.Charts)), zap.Int("skipped", len(s.Skipped)))
	return s, nil
}

// draw renders c. Empty charts are recorded as skipped.
func (ru *run) draw(c render.Chart) error {
	loc, err := ru.r.Render(c, ru.dst)
	if err != nil {
		return ru.skipOr(c.FileName(), err)
	}
	ru.sum.Charts = append(ru.sum.Charts, ChartRef{Name: c.FileName(), Title: c.Title, Kind: string(c.Kind), Location: loc})
	return nil
}

// skipOr records err as a skipped chart when it is an EmptyResultError and
// returns any other error unchanged.
func (ru *run) skipOr(chart string, err error) error {
	var empty *dataset.EmptyResultError
	if errors.As(err, &empty) {
		ru.log.Warn("chart skipped", zap.String("chart", chart), zap.String("reason", empty.Error()))
		ru.sum.Skipped = append(ru.sum.Skipped, SkippedChart{Chart: chart, Reason: empty.Error()})
		return nil
	}
	return err
}

func (ru *run) profile() error {
	rep := analysis.Profile(ru.ds, ru.opt.Profile)
	ru.sum.Report = rep
	ru.sum.NumericColumns = len(rep.NumericColumns())

	var labels []string
	var vals []float64
	for _, c := range rep.MissingRanking() {
		if c.MissingFraction > 0 {
			labels = append(labels, c.Name)
			vals = append(vals, c.MissingFraction*100)
		}
	}
	// Horizontal bars are drawn bottom-up; reverse so the worst column is on top.
	slices.Reverse(labels)
	slices.Reverse(vals)
	return ru.draw(render.Chart{
		Name: "missing_values", Kind: render.KindBar, Horizontal: true,
		Title: "Missing values per column", XLabel: "% missing",
		Labels: labels, Values: vals,
	})
}

func (ru *run) cities() error {
	tbl, err := aggregate.Frequency(ru.ds, ru.opt.CityColumn, aggregate.Options{})
	if err != nil {
		return ru.skipOr("top_cities", err)
	}
	ru.sum.UniqueCities = tbl.Unique
	ru.sum.CityExcluded = tbl.Excluded
	ru.sum.SingleAccidentCities = len(tbl.WithCount(1))
	top := tbl.Top(ru.opt.TopN)
	ru.sum.TopCities = top

	labels, vals := top.Labels(), top.Values()
	slices.Reverse(labels)
	slices.Reverse(vals)
	if err := ru.draw(render.Chart{
		Name: "top_cities", Kind: render.KindBar, Horizontal: true,
		Title:  fmt.Sprintf("Top %d cities by number of accidents", len(labels)),
		XLabel: "accidents", Labels: labels, Values: vals,
	}); err != nil {
		return err
	}

	counts := tbl.Counts()
	logs := make([]float64, len(counts))
	for i, c := range counts {
		logs[i] = math.Log10(c)
	}
	if err := ru.draw(render.Chart{
		Name: "accidents_per_city", Kind: render.KindHistogram, Normalize: true, Bins: 50,
		Title: "Accidents per city", XLabel: "log10(accidents)", YLabel: "density",
		Values: logs,
	}); err != nil {
		return err
	}

	if ru.ds.HasColumn(ru.opt.StateColumn) {
		states, err := aggregate.Frequency(ru.ds, ru.opt.StateColumn, aggregate.Options{})
		var empty *dataset.EmptyResultError
		switch {
		case err == nil:
			ru.sum.StateCheck = &StateCheck{State: ru.opt.CheckState, Present: states.Contains(ru.opt.CheckState)}
		case !errors.As(err, &empty):
			return err
		}
	}
	return nil
}

func (ru *run) timeParts() error {
	res, err := temporal.Derive(ru.ds, ru.opt.TimeColumn, temporal.Options{Strict: ru.opt.StrictTime})
	if err != nil {
		return err
	}
	ru.sum.TimeExcluded = res.Excluded
	if res.Excluded > 0 {
		ru.log.Warn("timestamps excluded", zap.String("column", res.Column), zap.Int("excluded", res.Excluded), zap.Int("missing", res.Missing))
	}

	for _, d := range []struct {
		name  string
		field temporal.Field
		title string
		xl    string
		into  **temporal.Distribution
		parts *temporal.Result
	}{
		{"hour_of_day", temporal.Hour, "Accidents by hour of day", "hour", &ru.sum.Hours, res},
		{"day_of_week", temporal.Weekday, "Accidents by day of week", "", &ru.sum.Weekdays, res},
		{"month_of_year", temporal.Month, "Accidents by month", "", &ru.sum.Months, res},
		{"sunday_hour_of_day", temporal.Hour, "Accidents by hour of day on Sundays", "hour", &ru.sum.SundayHours,
			res.Where(func(p temporal.Parts) bool { return p.Weekday == 6 })},
	} {
		if err := ru.distribution(d.name, d.title, d.xl, d.field, d.parts, d.into); err != nil {
			return err
		}
	}
	return nil
}

func (ru *run) distribution(name, title, xlabel string, f temporal.Field, res *temporal.Result, into **temporal.Distribution) error {
	dist, err := res.Distribution(f)
	if err != nil {
		return ru.skipOr(name, err)
	}
	*into = dist
	return ru.draw(render.Chart{
		Name: name, Kind: render.KindBar, Title: title, XLabel: xlabel, YLabel: "share of accidents",
		Labels: dist.Labels(), Values: dist.Fractions(),
	})
}

func (ru *run) sources() error {
	tbl, err := aggregate.Frequency(ru.ds, ru.opt.SourceColumn, aggregate.Options{})
	if err != nil {
		return ru.skipOr("sources", err)
	}
	ru.sum.Sources = tbl
	return ru.draw(render.Chart{
		Name: "sources", Kind: render.KindPie, Title: "Accidents by source",
		Labels: tbl.Labels(), Values: tbl.Values(),
	})
}

func (ru *run) yearSource() error {
	name := fmt.Sprintf("month_of_year_%d_%s", ru.opt.Year, ru.opt.YearSource)
	inYear, err := temporal.FilterYear(ru.ds, ru.opt.TimeColumn, ru.opt.Year)
	if err != nil {
		return ru.skipOr(name, err)
	}
	sub, err := inYear.Where(dataset.Condition{Column: ru.opt.SourceColumn, Op: dataset.OpEq, Value: ru.opt.YearSource})
	if err != nil {
		return ru.skipOr(name, err)
	}
	res, err := temporal.Derive(sub, ru.opt.TimeColumn, temporal.Options{})
	if err != nil {
		return err
	}
	return ru.distribution(name,
		fmt.Sprintf("Accidents by month in %d (%s)", ru.opt.Year, ru.opt.YearSource), "",
		temporal.Month, res, &ru.sum.YearSourceMonths)
}

func (ru *run) coordinates() error {
	sample, err := geo.Sample(ru.ds, ru.opt.SampleFraction, ru.opt.SampleSeed)
	if err != nil {
		var empty *dataset.EmptyResultError
		if errors.As(err, &empty) {
			_ = ru.skipOr("coordinates", err)
			_ = ru.skipOr("density", err)
			return nil
		}
		return err
	}
	ru.sum.SampleRows = sample.Len()
	pts, err := geo.Points(sample, ru.opt.LatColumn, ru.opt.LngColumn)
	if pts != nil {
		ru.sum.CoordinatesExcluded = pts.Excluded
	}
	if err != nil {
		var empty *dataset.EmptyResultError
		if errors.As(err, &empty) {
			_ = ru.skipOr("coordinates", err)
			_ = ru.skipOr("density", err)
			return nil
		}
		return err
	}
	if err := ru.draw(render.Chart{
		Name: "coordinates", Kind: render.KindScatter,
		Title:  fmt.Sprintf("%s vs %s (%d sampled rows)", ru.opt.LatColumn, ru.opt.LngColumn, sample.Len()),
		XLabel: ru.opt.LngColumn, YLabel: ru.opt.LatColumn,
		X: pts.Lngs(), Y: pts.Lats(),
	}); err != nil {
		return err
	}
	grid, err := geo.NewGrid(pts.Points, ru.opt.GridCols, ru.opt.GridRows)
	if err != nil {
		return err
	}
	return ru.draw(render.Chart{
		Name: "density", Kind: render.KindHeatmap,
		Title:  "Accident density (sample)",
		XLabel: ru.opt.LngColumn, YLabel: ru.opt.LatColumn,
		Grid: grid,
	})
}

func (ru *run) manifest() error {
	b, err := ru.sum.Manifest()
	if err != nil {
		return err
	}
	loc, err := ru.dst.Put("manifest", "json", b)
	if err != nil {
		return err
	}
	ru.sum.ManifestLocation = loc
	return nil
}
