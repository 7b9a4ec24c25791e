package evaluator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lirany1/synth-report/pkg/logger"
	"github.com/lirany1/synth-report/pkg/models"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// thresholdsKey is an optional root key; goals may also sit at the top level
const thresholdsKey = "thresholds"

// LoadThresholds reads a metric -> goal document (YAML, JSON or TOML).
// A missing file is not an error and yields an empty spec. Unknown metric
// names and non-numeric goals are skipped with a warning.
func LoadThresholds(path string) (ThresholdSpec, error) {
	spec := ThresholdSpec{}
	if path == "" {
		return spec, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debugf("No thresholds file at %s, skipping evaluation", path)
			return spec, nil
		}
		return nil, fmt.Errorf("failed to stat thresholds file: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read thresholds %s: %w", path, err)
	}

	settings := v.AllSettings()
	if nested, ok := settings[thresholdsKey]; ok {
		m, err := cast.ToStringMapE(nested)
		if err != nil {
			return nil, fmt.Errorf("%s: %q must be a mapping: %w", path, thresholdsKey, err)
		}
		settings = m
	}

	for key, raw := range settings {
		name, ok := models.ParseMetricName(key)
		if !ok {
			logger.Warnf("%s: unknown metric %q ignored", path, key)
			continue
		}
		goal, err := parseGoal(raw)
		if err != nil {
			logger.Warnf("%s: %v", path, fmt.Errorf("%w: %s=%v", models.ErrNonNumericMetric, name, raw))
			continue
		}
		spec[name] = goal
	}
	return spec, nil
}

func parseGoal(raw any) (float64, error) {
	switch v := raw.(type) {
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return 0, errors.New("empty goal")
		}
		raw = v
	case bool, nil, map[string]any, []any:
		return 0, errors.New("not a number")
	}
	return cast.ToFloat64E(raw)
}

// Goals returns the thresholds as plain metric name -> goal, the shape used
// when they are written back out
func (s ThresholdSpec) Goals() map[string]float64 {
	out := make(map[string]float64, len(s))
	for name, goal := range s {
		out[string(name)] = goal
	}
	return out
}
