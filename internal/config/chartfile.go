package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"pfinance/internal/chart"
)

// chartFile mirrors the YAML chart configuration. Decimals are kept as
// strings so they never pass through a float.
type chartFile struct {
	MaxSlices     *int     `yaml:"max_slices,omitempty"`
	MinPercentage string   `yaml:"min_percentage,omitempty"`
	Palette       []string `yaml:"palette,omitempty"`
}

// LoadChartFile applies the YAML file named by ChartConfigFile on top of the
// environment values. Keys missing from the file leave the current value.
func (c *Config) LoadChartFile() error {
	if c.ChartConfigFile == "" {
		return nil
	}

	raw, err := os.ReadFile(c.ChartConfigFile)
	if err != nil {
		return fmt.Errorf("read chart config: %w", err)
	}

	var f chartFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse chart config %s: %w", c.ChartConfigFile, err)
	}

	if f.MaxSlices != nil {
		c.ChartMaxSlices = *f.MaxSlices
	}
	if f.MinPercentage != "" {
		pct, err := decimal.NewFromString(f.MinPercentage)
		if err != nil {
			return fmt.Errorf("incorrect 'min_percentage' in chart config (must be a decimal): %w", err)
		}
		c.ChartMinPercentage = pct
	}
	if len(f.Palette) > 0 {
		c.ChartPalette = chart.Palette(f.Palette)
	}
	return nil
}
