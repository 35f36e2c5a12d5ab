// Package config is for run wide settings that are unmarshalled
// from Viper (see: /cmd/diakey/cmd)
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/ChrisMcGann/DIAKey/pkg/match"
	"github.com/ChrisMcGann/DIAKey/pkg/quant"
)

// EnvPrefix is prepended to every environment override, e.g. DIAKEY_TOLERANCE.
const EnvPrefix = "DIAKEY"

// Correction values with a special meaning.
const (
	CorrectionNone      = -1
	CorrectionHistogram = 0
)

// Config is the root-level settings struct and is a mix of settings
// available in a settings file, the environment and the command line.
type Config struct {
	// spectral library path
	Library string `mapstructure:"library"`
	// query files, or full-output tables for scoring
	Input []string `mapstructure:"input"`
	// output directory
	Output string `mapstructure:"output"`

	// initial fragment tolerance in ppm
	Tolerance float64 `mapstructure:"tolerance"`
	// -1 skips recalibration, 0 uses the histogram estimator, k > 0 uses k
	// standard deviations
	Correction    float64 `mapstructure:"correction"`
	HistogramBins int     `mapstructure:"histogram-bins"`

	// library peaks kept per entry
	MaxPeaks int `mapstructure:"max-peaks"`
	// minimum matched peaks for a library/query pair to be reported
	MinShared int `mapstructure:"min-shared"`
	// isolation or dia-wide
	PrecursorWindow string `mapstructure:"precursor-window"`
	Threads         int    `mapstructure:"threads"`

	FDR float64 `mapstructure:"fdr"`

	// average or maxlfq
	QuantMethod       string `mapstructure:"quant-method"`
	MinSharedPeptides int    `mapstructure:"min-shared-peptides"`

	Quiet bool `mapstructure:"quiet"`
}

// SetDefaults registers the built-in default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("output", ".")
	v.SetDefault("tolerance", 30.0)
	v.SetDefault("correction", float64(CorrectionHistogram))
	v.SetDefault("histogram-bins", 200)
	v.SetDefault("max-peaks", 10)
	v.SetDefault("min-shared", 1)
	v.SetDefault("precursor-window", match.Isolation.String())
	v.SetDefault("threads", 1)
	v.SetDefault("fdr", 0.01)
	v.SetDefault("quant-method", string(quant.MethodAverage))
	v.SetDefault("min-shared-peptides", 1)
	v.SetDefault("quiet", false)
}

// New returns a Viper instance with defaults and DIAKEY_* environment
// overrides in place.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional settings file and decodes v into a validated
// Config.
func Load(v *viper.Viper, settings string) (*Config, error) {
	if settings != "" {
		v.SetConfigFile(settings)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read settings %s: %w", settings, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to decode settings: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	switch {
	case c.Tolerance <= 0:
		return fmt.Errorf("tolerance must be positive, got %v", c.Tolerance)
	case c.Correction < 0 && c.Correction != CorrectionNone:
		return fmt.Errorf("correction must be -1, 0 or a positive number of standard deviations, got %v", c.Correction)
	case c.HistogramBins < 1:
		return fmt.Errorf("histogram-bins must be at least 1, got %d", c.HistogramBins)
	case c.MaxPeaks < 1:
		return fmt.Errorf("max-peaks must be at least 1, got %d", c.MaxPeaks)
	case c.MinShared < 1:
		return fmt.Errorf("min-shared must be at least 1, got %d", c.MinShared)
	case c.Threads < 0:
		return fmt.Errorf("threads must not be negative, got %d", c.Threads)
	case c.FDR <= 0 || c.FDR >= 1:
		return fmt.Errorf("fdr must be between 0 and 1, got %v", c.FDR)
	case c.MinSharedPeptides < 1:
		return fmt.Errorf("min-shared-peptides must be at least 1, got %d", c.MinSharedPeptides)
	}
	if _, err := match.ParseWindowMode(c.PrecursorWindow); err != nil {
		return fmt.Errorf("precursor-window: %w", err)
	}
	if _, err := quant.ParseMethod(c.QuantMethod); err != nil {
		return fmt.Errorf("quant-method: %w", err)
	}
	return nil
}

// Window returns the parsed precursor window mode.
func (c *Config) Window() match.WindowMode {
	m, _ := match.ParseWindowMode(c.PrecursorWindow)
	return m
}

// Method returns the parsed quantification method.
func (c *Config) Method() quant.Method {
	m, _ := quant.ParseMethod(c.QuantMethod)
	return m
}
