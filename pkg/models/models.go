package models

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrNonNumericMetric is returned when a stored or supplied metric value
// cannot be used as a number.
var ErrNonNumericMetric = errors.New("non-numeric metric")

// MissingValue is how a missing metric is written in tabular output
const MissingValue = "N/A"

// MetricName identifies one column of a MetricsRecord
type MetricName string

const (
	MetricSlack MetricName = "Slack"
	MetricDelay MetricName = "Delay"
	MetricPower MetricName = "Power"
	MetricLUTs  MetricName = "LUTs"
	MetricFFs   MetricName = "FFs"
	MetricDSPs  MetricName = "DSPs"
	MetricBRAM  MetricName = "BRAM"
	MetricIO    MetricName = "IO"
)

// ModuleColumn is the header of the first summary column
const ModuleColumn = "Module"

// Metrics lists every metric in summary column order.
var Metrics = []MetricName{
	MetricSlack,
	MetricDelay,
	MetricPower,
	MetricLUTs,
	MetricFFs,
	MetricDSPs,
	MetricBRAM,
	MetricIO,
}

// Columns returns the summary header: Module followed by every metric
func Columns() []string {
	cols := make([]string, 0, len(Metrics)+1)
	cols = append(cols, ModuleColumn)
	for _, m := range Metrics {
		cols = append(cols, string(m))
	}
	return cols
}

// ParseMetricName resolves a metric name case-insensitively.
func ParseMetricName(s string) (MetricName, bool) {
	s = strings.TrimSpace(s)
	for _, m := range Metrics {
		if strings.EqualFold(string(m), s) {
			return m, true
		}
	}
	return "", false
}

// IsInteger reports whether the metric is a resource count
func (m MetricName) IsInteger() bool {
	switch m {
	case MetricSlack, MetricDelay, MetricPower:
		return false
	}
	return true
}

// HigherIsBetter reports the comparison direction used for thresholds
func (m MetricName) HigherIsBetter() bool {
	return m == MetricSlack
}

// Unit returns the display unit of the metric
func (m MetricName) Unit() string {
	switch m {
	case MetricSlack, MetricDelay:
		return "ns"
	case MetricPower:
		return "W"
	}
	return ""
}

// MetricsRecord holds the metrics extracted for one synthesized module.
// A nil field means the value was not found; it is never the same as zero.
type MetricsRecord struct {
	Module string   `json:"module" yaml:"module"`
	Slack  *float64 `json:"slack" yaml:"slack"`
	Delay  *float64 `json:"delay" yaml:"delay"`
	Power  *float64 `json:"power" yaml:"power"`
	LUTs   *int     `json:"luts" yaml:"luts"`
	FFs    *int     `json:"ffs" yaml:"ffs"`
	DSPs   *int     `json:"dsps" yaml:"dsps"`
	BRAM   *int     `json:"bram" yaml:"bram"`
	IO     *int     `json:"io" yaml:"io"`
}

// NewRecord returns a record for module with every metric missing
func NewRecord(module string) MetricsRecord {
	return MetricsRecord{Module: module}
}

// Float returns a pointer to v
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v
func Int(v int) *int { return &v }

// Clone returns a deep copy so stored records cannot be changed through
// pointers held by the caller
func (r MetricsRecord) Clone() MetricsRecord {
	out := MetricsRecord{Module: r.Module}
	for _, m := range Metrics {
		if v, ok := r.Value(m); ok {
			_ = out.SetFloat(m, v)
		}
	}
	return out
}

// Value returns the metric as a float and whether it is present
func (r *MetricsRecord) Value(name MetricName) (float64, bool) {
	if f := r.floatField(name); f != nil {
		if *f == nil {
			return 0, false
		}
		return **f, true
	}
	if i := r.intField(name); i != nil {
		if *i == nil {
			return 0, false
		}
		return float64(**i), true
	}
	return 0, false
}

// Has reports whether the metric is present
func (r *MetricsRecord) Has(name MetricName) bool {
	_, ok := r.Value(name)
	return ok
}

// PlotValue returns the metric value, or 0 when missing.
// Only charts may use this; evaluation must go through Value.
func (r *MetricsRecord) PlotValue(name MetricName) float64 {
	v, _ := r.Value(name)
	return v
}

// Present counts the metrics that are not missing
func (r *MetricsRecord) Present() int {
	n := 0
	for _, m := range Metrics {
		if r.Has(m) {
			n++
		}
	}
	return n
}

// SetFloat stores v into a float metric.
func (r *MetricsRecord) SetFloat(name MetricName, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s=%v", ErrNonNumericMetric, name, v)
	}
	if f := r.floatField(name); f != nil {
		*f = Float(v)
		return nil
	}
	if i := r.intField(name); i != nil {
		if v != math.Trunc(v) {
			return fmt.Errorf("%w: %s=%v is not an integer", ErrNonNumericMetric, name, v)
		}
		*i = Int(int(v))
		return nil
	}
	return fmt.Errorf("unknown metric %q", name)
}

// Clear marks the metric as missing
func (r *MetricsRecord) Clear(name MetricName) {
	if f := r.floatField(name); f != nil {
		*f = nil
	}
	if i := r.intField(name); i != nil {
		*i = nil
	}
}

// SetString parses raw and stores it. Empty strings and N/A clear the metric.
func (r *MetricsRecord) SetString(name MetricName, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, MissingValue) {
		r.Clear(name)
		return nil
	}
	if name.IsInteger() {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrNonNumericMetric, name, raw)
		}
		return r.SetFloat(name, float64(n))
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("%w: %s=%q", ErrNonNumericMetric, name, raw)
	}
	return r.SetFloat(name, f)
}

// Format renders the metric for tabular output, N/A when missing
func (r *MetricsRecord) Format(name MetricName) string {
	v, ok := r.Value(name)
	if !ok {
		return MissingValue
	}
	if name.IsInteger() {
		return strconv.Itoa(int(v))
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Row renders the record in summary column order
func (r *MetricsRecord) Row() []string {
	row := make([]string, 0, len(Metrics)+1)
	row = append(row, r.Module)
	for _, m := range Metrics {
		row = append(row, r.Format(m))
	}
	return row
}

// String returns a one-line human readable summary
func (r MetricsRecord) String() string {
	parts := make([]string, 0, len(Metrics))
	for _, m := range Metrics {
		parts = append(parts, fmt.Sprintf("%s=%s", m, r.Format(m)))
	}
	return fmt.Sprintf("%s: %s", r.Module, strings.Join(parts, " "))
}

func (r *MetricsRecord) floatField(name MetricName) **float64 {
	switch name {
	case MetricSlack:
		return &r.Slack
	case MetricDelay:
		return &r.Delay
	case MetricPower:
		return &r.Power
	}
	return nil
}

func (r *MetricsRecord) intField(name MetricName) **int {
	switch name {
	case MetricLUTs:
		return &r.LUTs
	case MetricFFs:
		return &r.FFs
	case MetricDSPs:
		return &r.DSPs
	case MetricBRAM:
		return &r.BRAM
	case MetricIO:
		return &r.IO
	}
	return nil
}

// SafeName keeps a module name usable as a single path element. Anything
// outside [A-Za-z0-9._-] becomes '_', so names never contain separators.
func SafeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unnamed"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, s)
}
