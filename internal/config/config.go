package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const appDir = ".crashscope"

// Global configuration structure.
type Global struct {
	// Acquisition
	DataDir        string `mapstructure:"data_dir" yaml:"data_dir"`
	DatasetSource  string `mapstructure:"dataset_source" yaml:"dataset_source"`
	DatasetFile    string `mapstructure:"dataset_file" yaml:"dataset_file"`
	KaggleUsername string `mapstructure:"kaggle_username" yaml:"kaggle_username"`
	KaggleKey      string `mapstructure:"kaggle_key" yaml:"kaggle_key"`
	S3Region       string `mapstructure:"s3_region" yaml:"s3_region"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Charts
	OutputDir     string  `mapstructure:"output_dir" yaml:"output_dir"`
	ChartFormat   string  `mapstructure:"chart_format" yaml:"chart_format"`
	ChartWidthCm  float64 `mapstructure:"chart_width_cm" yaml:"chart_width_cm"`
	ChartHeightCm float64 `mapstructure:"chart_height_cm" yaml:"chart_height_cm"`

	// Analysis
	SampleFraction float64 `mapstructure:"sample_fraction" yaml:"sample_fraction"`
	SampleSeed     uint64  `mapstructure:"sample_seed" yaml:"sample_seed"`
	TopN           int     `mapstructure:"top_n" yaml:"top_n"`
	TimeColumn     string  `mapstructure:"time_column" yaml:"time_column"`
	LatColumn      string  `mapstructure:"lat_column" yaml:"lat_column"`
	LngColumn      string  `mapstructure:"lng_column" yaml:"lng_column"`

	// Loading
	SkipMalformedRows bool `mapstructure:"skip_malformed_rows" yaml:"skip_malformed_rows"`
	MaxRows           int  `mapstructure:"max_rows" yaml:"max_rows"`
}

// DefaultPath returns ~/.crashscope/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, appDir, "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.crashscope/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults; command flags are applied on top
// by the caller.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("CRASHSCOPE")
	v.AutomaticEnv()

	// Every key needs a default so AutomaticEnv can see it during Unmarshal.
	v.SetDefault("data_dir", "")
	v.SetDefault("dataset_source", "kaggle://sobhanmoosavi/us-accidents")
	v.SetDefault("dataset_file", "US_Accidents_March23.csv")
	v.SetDefault("kaggle_username", "")
	v.SetDefault("kaggle_key", "")
	v.SetDefault("s3_region", "")
	v.SetDefault("http_timeout_sec", 600)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("output_dir", "eda_output")
	v.SetDefault("chart_format", "png")
	v.SetDefault("chart_width_cm", 16.0)
	v.SetDefault("chart_height_cm", 10.0)
	v.SetDefault("sample_fraction", 0.1)
	v.SetDefault("sample_seed", 42)
	v.SetDefault("top_n", 20)
	v.SetDefault("time_column", "Start_Time")
	v.SetDefault("lat_column", "Start_Lat")
	v.SetDefault("lng_column", "Start_Lng")
	v.SetDefault("skip_malformed_rows", false)
	v.SetDefault("max_rows", 0)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		v.AddConfigPath(filepath.Join(home, appDir))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		c.DataDir = filepath.Join(home, appDir, "data")
	}
	return &c, c.Validate()
}

// Validate checks value ranges.
func (c *Global) Validate() error {
	if c.SampleFraction <= 0 || c.SampleFraction > 1 {
		return fmt.Errorf("sample_fraction must be in (0,1], got %v", c.SampleFraction)
	}
	switch c.ChartFormat {
	case "png", "svg":
	default:
		return fmt.Errorf("chart_format must be png or svg, got %q", c.ChartFormat)
	}
	if c.TopN < 0 || c.MaxRows < 0 {
		return fmt.Errorf("top_n and max_rows must not be negative")
	}
	return nil
}

// Keys lists the settable configuration keys in display order.
func Keys() []string {
	return []string{
		"data_dir", "dataset_source", "dataset_file", "kaggle_username", "kaggle_key", "s3_region",
		"http_timeout_sec", "retry_max_attempts", "retry_base_delay_ms", "retry_max_delay_ms",
		"output_dir", "chart_format", "chart_width_cm", "chart_height_cm",
		"sample_fraction", "sample_seed", "top_n", "time_column", "lat_column", "lng_column",
		"skip_malformed_rows", "max_rows",
	}
}

// Get returns the string form of a key. Secrets are masked.
func (c *Global) Get(key string) (string, error) {
	switch key {
	case "data_dir":
		return c.DataDir, nil
	case "dataset_source":
		return c.DatasetSource, nil
	case "dataset_file":
		return c.DatasetFile, nil
	case "kaggle_username":
		return c.KaggleUsername, nil
	case "kaggle_key":
		return Mask(c.KaggleKey), nil
	case "s3_region":
		return c.S3Region, nil
	case "http_timeout_sec":
		return strconv.Itoa(c.HTTPTimeoutSec), nil
	case "retry_max_attempts":
		return strconv.Itoa(c.RetryMaxAttempts), nil
	case "retry_base_delay_ms":
		return strconv.Itoa(c.RetryBaseDelayMs), nil
	case "retry_max_delay_ms":
		return strconv.Itoa(c.RetryMaxDelayMs), nil
	case "output_dir":
		return c.OutputDir, nil
	case "chart_format":
		return c.ChartFormat, nil
	case "chart_width_cm":
		return strconv.FormatFloat(c.ChartWidthCm, 'g', -1, 64), nil
	case "chart_height_cm":
		return strconv.FormatFloat(c.ChartHeightCm, 'g', -1, 64), nil
	case "sample_fraction":
		return strconv.FormatFloat(c.SampleFraction, 'g', -1, 64), nil
	case "sample_seed":
		return strconv.FormatUint(c.SampleSeed, 10), nil
	case "top_n":
		return strconv.Itoa(c.TopN), nil
	case "time_column":
		return c.TimeColumn, nil
	case "lat_column":
		return c.LatColumn, nil
	case "lng_column":
		return c.LngColumn, nil
	case "skip_malformed_rows":
		return strconv.FormatBool(c.SkipMalformedRows), nil
	case "max_rows":
		return strconv.Itoa(c.MaxRows), nil
	}
	return "", fmt.Errorf("unknown key: %s", key)
}

// Set parses val and assigns it to key.
func (c *Global) Set(key, val string) error {
	atoi := func(min int) (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil || i < min {
			return 0, fmt.Errorf("invalid int for %s: %v", key, val)
		}
		return i, nil
	}
	posFloat := func() (float64, error) {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f <= 0 {
			return 0, fmt.Errorf("invalid positive number for %s: %v", key, val)
		}
		return f, nil
	}
	var err error
	switch key {
	case "data_dir":
		c.DataDir = val
	case "dataset_source":
		c.DatasetSource = val
	case "dataset_file":
		c.DatasetFile = val
	case "kaggle_username":
		c.KaggleUsername = val
	case "kaggle_key":
		c.KaggleKey = val
	case "s3_region":
		c.S3Region = val
	case "http_timeout_sec":
		c.HTTPTimeoutSec, err = atoi(1)
	case "retry_max_attempts":
		c.RetryMaxAttempts, err = atoi(1)
	case "retry_base_delay_ms":
		c.RetryBaseDelayMs, err = atoi(0)
	case "retry_max_delay_ms":
		c.RetryMaxDelayMs, err = atoi(0)
	case "output_dir":
		c.OutputDir = val
	case "chart_format":
		switch strings.ToLower(val) {
		case "png", "svg":
			c.ChartFormat = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid chart_format: %s (use png or svg)", val)
		}
	case "chart_width_cm":
		c.ChartWidthCm, err = posFloat()
	case "chart_height_cm":
		c.ChartHeightCm, err = posFloat()
	case "sample_fraction":
		f, perr := strconv.ParseFloat(val, 64)
		if perr != nil || f <= 0 || f > 1 {
			return fmt.Errorf("invalid sample_fraction: %v (must be in (0,1])", val)
		}
		c.SampleFraction = f
	case "sample_seed":
		u, perr := strconv.ParseUint(val, 10, 64)
		if perr != nil {
			return fmt.Errorf("invalid seed for sample_seed: %v", val)
		}
		c.SampleSeed = u
	case "top_n":
		c.TopN, err = atoi(1)
	case "time_column":
		c.TimeColumn = val
	case "lat_column":
		c.LatColumn = val
	case "lng_column":
		c.LngColumn = val
	case "skip_malformed_rows":
		b, perr := strconv.ParseBool(val)
		if perr != nil {
			return fmt.Errorf("invalid bool for skip_malformed_rows: %v", val)
		}
		c.SkipMalformedRows = b
	case "max_rows":
		c.MaxRows, err = atoi(0)
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}

// Mask hides all but the ends of a secret.
func Mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
