package tax

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// CategoryRate maps one sale category to its GST rate in percent.
type CategoryRate struct {
	Category string          `yaml:"category"`
	Rate     decimal.Decimal `yaml:"rate"`
}

type categoryRatesFile struct {
	Rates []CategoryRate `yaml:"rates"`
}

// LoadCategoryRates reads the category rate table from a YAML file. A
// relative path is resolved against the working directory.
func LoadCategoryRates(ratesFile string) ([]CategoryRate, error) {
	var ratesPath string
	if filepath.IsAbs(ratesFile) {
		ratesPath = ratesFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		ratesPath = filepath.Join(wd, ratesFile)
	}

	data, err := os.ReadFile(ratesPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", ratesFile, err)
	}

	var config categoryRatesFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", ratesFile, err)
	}

	for i, rate := range config.Rates {
		if rate.Category == "" {
			return nil, fmt.Errorf("rate at index %d missing category", i)
		}
		if rate.Rate.IsNegative() || rate.Rate.GreaterThan(hundred) {
			return nil, fmt.Errorf("rate at index %d out of range: %s", i, rate.Rate.String())
		}
	}

	return config.Rates, nil
}

// RateForCategory returns the configured rate for a category, or the
// fallback when the category is not listed. Matching ignores case.
func RateForCategory(rates []CategoryRate, category string, fallback decimal.Decimal) decimal.Decimal {
	for _, r := range rates {
		if strings.EqualFold(r.Category, category) {
			return r.Rate
		}
	}
	return fallback
}
