package eda

import (
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/KaramelBytes/crashscope/internal/aggregate"
	"github.com/KaramelBytes/crashscope/internal/analysis"
	"github.com/KaramelBytes/crashscope/internal/temporal"
)

var printer = message.NewPrinter(language.English)

// ChartRef points at a rendered chart.
type ChartRef struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	Kind     string `json:"kind"`
	Location string `json:"location"`
}

// SkippedChart is a chart that had no data to draw.
type SkippedChart struct {
	Chart  string `json:"chart"`
	Reason string `json:"reason"`
}

// StateCheck records whether a state code occurs in the data.
type StateCheck struct {
	State   string `json:"state"`
	Present bool   `json:"present"`
}

// Summary collects everything a run computed.
type Summary struct {
	RunID     string    `json:"run_id"`
	Dataset   string    `json:"dataset"`
	Rows      int       `json:"rows"`
	StartedAt time.Time `json:"started_at"`

	Report         *analysis.Report `json:"-"`
	NumericColumns int              `json:"numeric_columns"`

	TopCities            *aggregate.Table `json:"top_cities,omitempty"`
	UniqueCities         int              `json:"unique_cities"`
	SingleAccidentCities int              `json:"single_accident_cities"`
	CityExcluded         int              `json:"city_excluded"`
	StateCheck           *StateCheck      `json:"state_check,omitempty"`
	Sources              *aggregate.Table `json:"sources,omitempty"`

	Hours            *temporal.Distribution `json:"hours,omitempty"`
	Weekdays         *temporal.Distribution `json:"weekdays,omitempty"`
	Months           *temporal.Distribution `json:"months,omitempty"`
	SundayHours      *temporal.Distribution `json:"sunday_hours,omitempty"`
	YearSourceMonths *temporal.Distribution `json:"year_source_months,omitempty"`
	TimeExcluded     int                    `json:"time_excluded"`

	SampleRows          int `json:"sample_rows"`
	CoordinatesExcluded int `json:"coordinates_excluded"`

	Charts           []ChartRef     `json:"charts"`
	Skipped          []SkippedChart `json:"skipped,omitempty"`
	ManifestLocation string         `json:"-"`
}

// Manifest encodes the run ID, counts and chart list as JSON.
func (s *Summary) Manifest() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// Markdown renders the summary in the same bracketed-section style as the
// profile report.
func (s *Summary) Markdown() string {
	var b strings.Builder
	b.WriteString("[EDA SUMMARY]\n")
	b.WriteString(printer.Sprintf("Run: %s\nDataset: %s\nRows: %d\n", s.RunID, s.Dataset, s.Rows))
	b.WriteString(printer.Sprintf("Numeric columns: %d\n", s.NumericColumns))
	if s.TopCities != nil {
		b.WriteString(printer.Sprintf("Cities: %d unique, %d with exactly one accident, %d rows without a city\n",
			s.UniqueCities, s.SingleAccidentCities, s.CityExcluded))
	}
	if s.StateCheck != nil {
		verdict := "absent"
		if s.StateCheck.Present {
			verdict = "present"
		}
		b.WriteString(printer.Sprintf("State %s: %s\n", s.StateCheck.State, verdict))
	}
	b.WriteString(printer.Sprintf("Timestamps excluded (missing or unparsable): %d\n", s.TimeExcluded))
	b.WriteString(printer.Sprintf("Sampled rows: %d, coordinates excluded: %d\n", s.SampleRows, s.CoordinatesExcluded))
	b.WriteString("\n")

	if s.TopCities != nil {
		b.WriteString(s.TopCities.Markdown())
		b.WriteString("\n")
	}
	if s.Sources != nil {
		b.WriteString(s.Sources.Markdown())
		b.WriteString("\n")
	}
	for _, d := range []*temporal.Distribution{s.Hours, s.Weekdays, s.Months, s.SundayHours, s.YearSourceMonths} {
		if d == nil {
			continue
		}
		b.WriteString(printer.Sprintf("Peak %s: %s (%.2f%%)\n", d.Field, d.Peak().Label, d.Peak().Fraction*100))
	}

	b.WriteString("\n[CHARTS]\n")
	for _, c := range s.Charts {
		b.WriteString(printer.Sprintf("- %s (%s): %s\n", c.Title, c.Kind, c.Location))
	}
	if len(s.Skipped) > 0 {
		b.WriteString("\n[SKIPPED]\n")
		for _, sk := range s.Skipped {
			b.WriteString(printer.Sprintf("- %s: %s\n", sk.Chart, sk.Reason))
		}
	}
	return b.String()
}
