// Package config loads the engine configuration: evaluator and cache
// limits, safety thresholds, denylist seed and the bootstrap rule set.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/cockroachdb/apd/v3"
	"gopkg.in/yaml.v3"

	"github.com/hebuildapps/paykg/pkg/paykg/internalerr"
	"github.com/hebuildapps/paykg/pkg/paykg/safety"
)

// Duration wraps time.Duration with "1h30m" YAML syntax.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", internalerr.ErrInvalidConfig, value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config is the engine configuration.
type Config struct {
	MaxDepth  int      `yaml:"max_depth"`
	CacheTTL  Duration `yaml:"cache_ttl"`
	CacheSize int      `yaml:"cache_size"`
	Retention Duration `yaml:"retention"`

	Safety SafetySection `yaml:"safety"`

	// Denylist seeds (denylisted X) facts at bootstrap.
	Denylist []string `yaml:"denylist"`

	// RulesPath points at a bootstrap rules file; empty keeps the built-in
	// rule set.
	RulesPath string `yaml:"rules_path"`
}

// SafetySection holds detector thresholds. MaxAmount is decimal text so the
// ceiling never passes through a binary float.
type SafetySection struct {
	MaxAmount        string   `yaml:"max_amount"`
	VelocityWindow   Duration `yaml:"velocity_window"`
	VelocityLimit    int      `yaml:"velocity_limit"`
	RepetitionWindow Duration `yaml:"repetition_window"`
	RepetitionLimit  int      `yaml:"repetition_limit"`
}

// Default returns the production defaults.
func Default() Config {
	return Config{
		MaxDepth:  64,
		CacheTTL:  Duration(5 * time.Minute),
		CacheSize: 1024,
		Retention: Duration(24 * time.Hour),
		Safety: SafetySection{
			MaxAmount:        "10000",
			VelocityWindow:   Duration(time.Hour),
			VelocityLimit:    5,
			RepetitionWindow: Duration(10 * time.Minute),
			RepetitionLimit:  3,
		},
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}
	return cfg, nil
}

// SafetyConfig converts the section to the detector's config, validating
// the decimal ceiling.
func (c Config) SafetyConfig() (safety.Config, error) {
	out := safety.Config{
		VelocityWindow:   time.Duration(c.Safety.VelocityWindow),
		VelocityLimit:    c.Safety.VelocityLimit,
		RepetitionWindow: time.Duration(c.Safety.RepetitionWindow),
		RepetitionLimit:  c.Safety.RepetitionLimit,
	}
	if c.Safety.MaxAmount != "" {
		max, _, err := apd.NewFromString(c.Safety.MaxAmount)
		if err != nil {
			return out, fmt.Errorf("%w: max_amount %q: %v", internalerr.ErrInvalidConfig, c.Safety.MaxAmount, err)
		}
		out.MaxAmount = max
	}
	return out, nil
}
