package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "kaggle://sobhanmoosavi/us-accidents", c.DatasetSource)
	assert.Equal(t, filepath.Join(home, ".crashscope", "data"), c.DataDir)
	assert.Equal(t, 0.1, c.SampleFraction)
	assert.Equal(t, uint64(42), c.SampleSeed)
	assert.Equal(t, 20, c.TopN)
	assert.Equal(t, "png", c.ChartFormat)
	assert.Equal(t, 3, c.RetryMaxAttempts)
	assert.False(t, c.SkipMalformedRows)
}

func TestLoadFileAndEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("top_n: 5\nchart_format: svg\nsample_fraction: 0.25\n"), 0o644))
	t.Setenv("CRASHSCOPE_TOP_N", "7")
	t.Setenv("CRASHSCOPE_KAGGLE_USERNAME", "alice")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, c.TopN, "env overrides file")
	assert.Equal(t, "svg", c.ChartFormat)
	assert.Equal(t, 0.25, c.SampleFraction)
	assert.Equal(t, "alice", c.KaggleUsername)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sample_fraction: 1.5\n"), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "sample_fraction")

	require.NoError(t, os.WriteFile(path, []byte("top_n: [oops\n"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "read config")
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, c.Set("dataset_file", "US_Accidents_Dec21_updated.csv"))
	require.NoError(t, c.Set("sample_seed", "7"))
	require.NoError(t, c.Set("chart_format", "SVG"))
	require.NoError(t, Save(c, path))

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "US_Accidents_Dec21_updated.csv", again.DatasetFile)
	assert.Equal(t, uint64(7), again.SampleSeed)
	assert.Equal(t, "svg", again.ChartFormat)
}

func TestSetAndGet(t *testing.T) {
	c := &Global{}
	for _, k := range Keys() {
		_, err := c.Get(k)
		require.NoError(t, err, k)
	}
	require.NoError(t, c.Set("kaggle_key", "abcdef123456"))
	got, err := c.Get("kaggle_key")
	require.NoError(t, err)
	assert.Equal(t, "abc****456", got)

	require.NoError(t, c.Set("skip_malformed_rows", "true"))
	assert.True(t, c.SkipMalformedRows)

	for key, val := range map[string]string{
		"sample_fraction":    "0",
		"top_n":              "zero",
		"chart_format":       "gif",
		"chart_width_cm":     "-1",
		"retry_max_attempts": "0",
		"nope":               "1",
	} {
		assert.Error(t, c.Set(key, val), key)
	}
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", Mask(""))
	assert.Equal(t, "******", Mask("short"))
	assert.Equal(t, "sec****key", Mask("secret-key"))
}
