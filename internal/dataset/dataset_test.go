package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var accidentRows = []string{
	"ID,Source,Severity,Start_Time,Start_Lat,Start_Lng,City,State,Temperature(F)",
	"A-1,Source2,3,2016-02-08 05:46:00,39.865147,-84.058723,Dayton,OH,36.9",
	"A-2,Source2,2,2016-02-08 06:07:59,39.928059,-82.831184,Reynoldsburg,OH,37.9",
	"A-3,Source1,2,2021-01-04T08:00:00,30.2672,-97.7431,Austin,TX,",
	"A-4,Source1,4,2021-01-10T15:30:00,30.2672,-97.7431,Austin,TX,55",
	"A-5,Source3,2,not-a-time,32.7767,-96.7970,Dallas,TX,61.2",
}

func writeFile(t *testing.T, name string, lines []string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return p
}

func TestLoadCSV(t *testing.T) {
	ds, err := Load(writeFile(t, "accidents.csv", accidentRows), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "accidents.csv", ds.Name)
	assert.Equal(t, 5, ds.Len())
	assert.Len(t, ds.Columns, 9)
	assert.Zero(t, ds.Skipped)

	cities, err := ds.Column("city")
	require.NoError(t, err)
	assert.Equal(t, []string{"Dayton", "Reynoldsburg", "Austin", "Austin", "Dallas"}, cities)

	_, err = ds.Column("Nope")
	assert.Error(t, err)
}

func TestLoadMissingFileIsIOError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.csv"), DefaultOptions())
	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr), "got %T: %v", err, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadMalformedRowFailsByDefault(t *testing.T) {
	lines := append([]string{}, accidentRows[:3]...)
	lines = append(lines, "A-9,Source1,2")
	_, err := Load(writeFile(t, "bad.csv", lines), DefaultOptions())
	var pe *ParseError
	require.True(t, errors.As(err, &pe), "got %T: %v", err, err)
	assert.Equal(t, 4, pe.Line)
}

func TestLoadSkipMalformedCountsRows(t *testing.T) {
	lines := append([]string{}, accidentRows...)
	lines = append(lines, "A-9,Source1,2", "A-10,Source1")
	opt := DefaultOptions()
	opt.SkipMalformed = true
	ds, err := Load(writeFile(t, "bad.csv", lines), opt)
	require.NoError(t, err)
	assert.Equal(t, 5, ds.Len())
	assert.Equal(t, 2, ds.Skipped)
	require.Len(t, ds.RowErrors, 2)
	assert.Equal(t, 7, ds.RowErrors[0].Line)
	assert.Contains(t, ds.Warnings, "skipped 2 malformed rows")
}

func TestLoadEmptyFileIsParseError(t *testing.T) {
	p := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(p, nil, 0o644))
	_, err := Load(p, DefaultOptions())
	var pe *ParseError
	assert.True(t, errors.As(err, &pe))
}

func TestLoadMaxRows(t *testing.T) {
	opt := DefaultOptions()
	opt.MaxRows = 2
	ds, err := Load(writeFile(t, "accidents.csv", accidentRows), opt)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, []string{"loaded only the first 2 rows due to MaxRows"}, ds.Warnings)
}

func TestLoadMaxRowsStopsBeforeMalformedTail(t *testing.T) {
	opt := DefaultOptions()
	opt.MaxRows = 2
	ds, err := Load(writeFile(t, "tail.csv", []string{"City,State", "Austin,TX", "Dallas,TX", "broken"}), opt)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, 0, ds.Skipped)
	assert.Equal(t, []string{"loaded only the first 2 rows due to MaxRows"}, ds.Warnings)

	ds, err = Load(writeFile(t, "exact.csv", []string{"City,State", "Austin,TX", "Dallas,TX"}), opt)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
	assert.Empty(t, ds.Warnings)

	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"City", "State"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"Austin", "TX"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{"Dallas", "TX"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A4", &[]interface{}{"Waco", "TX", "extra"}))
	p := filepath.Join(t.TempDir(), "tail.xlsx")
	require.NoError(t, f.SaveAs(p))
	ds, err = Load(p, opt)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
}

func TestLoadTSV(t *testing.T) {
	lines := make([]string, len(accidentRows))
	for i, l := range accidentRows {
		lines[i] = strings.ReplaceAll(l, ",", "\t")
	}
	ds, err := Load(writeFile(t, "accidents.tsv", lines), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 5, ds.Len())
	assert.Equal(t, "Dayton", ds.Value(0, 6))
}

func TestLoadDuplicateHeader(t *testing.T) {
	_, err := Load(writeFile(t, "dup.csv", []string{"City,City", "a,b"}), DefaultOptions())
	var pe *ParseError
	assert.True(t, errors.As(err, &pe))
}

func TestLoadXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"City", "State", "Severity"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"Austin", "TX", 2}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{"Dallas", "TX", 3}))
	_, err := f.NewSheet("Other")
	require.NoError(t, err)
	p := filepath.Join(t.TempDir(), "accidents.xlsx")
	require.NoError(t, f.SaveAs(p))

	ds, err := Load(p, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"City", "State", "Severity"}, ds.Columns)
	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, "3", ds.Value(1, 2))

	opt := DefaultOptions()
	opt.SheetName = "missing"
	_, err = Load(p, opt)
	assert.ErrorContains(t, err, "Available sheets: Sheet1, Other")
}

func TestParseTimeLayouts(t *testing.T) {
	for _, s := range []string{
		"2016-02-08 05:46:00",
		"2016-02-08 05:46:00.000000000",
		"2016-02-08T05:46:00",
		"2016-02-08T05:46:00Z",
		"2016-02-08 05:46",
	} {
		ts, err := ParseTime(s)
		require.NoError(t, err, s)
		assert.Equal(t, 5, ts.Hour(), s)
		assert.Equal(t, 46, ts.Minute(), s)
	}
	_, err := ParseTime("yesterday")
	assert.Error(t, err)
}
