// Package evaluator judges a metrics record against pass/fail goals.
package evaluator

import (
	"fmt"
	"math"
	"strings"

	"github.com/lirany1/synth-report/pkg/logger"
	"github.com/lirany1/synth-report/pkg/models"
	"github.com/sirupsen/logrus"
)

// Verdict is the outcome of comparing one metric against its goal
type Verdict int

const (
	// Unknown means the metric has a goal but was missing from the record
	Unknown Verdict = iota
	Pass
	Fail
)

func (v Verdict) String() string {
	switch v {
	case Pass:
		return "pass"
	case Fail:
		return "fail"
	}
	return "unknown"
}

// MarshalText encodes the verdict as its lower-case name
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText
func (v *Verdict) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "pass":
		*v = Pass
	case "fail":
		*v = Fail
	case "unknown", "":
		*v = Unknown
	default:
		return fmt.Errorf("invalid verdict %q", string(b))
	}
	return nil
}

// ThresholdSpec maps a metric to its goal. Metrics not in the map are not
// evaluated.
type ThresholdSpec map[models.MetricName]float64

// Verdicts holds one verdict per evaluated metric
type Verdicts map[models.MetricName]Verdict

// Summary counts verdicts by outcome
type Summary struct {
	Pass    int `json:"pass" yaml:"pass"`
	Fail    int `json:"fail" yaml:"fail"`
	Unknown int `json:"unknown" yaml:"unknown"`
}

// OK reports whether nothing failed
func (s Summary) OK() bool {
	return s.Fail == 0
}

func (s Summary) String() string {
	return fmt.Sprintf("%d passed, %d failed, %d unknown", s.Pass, s.Fail, s.Unknown)
}

// Summary tallies the verdicts
func (v Verdicts) Summary() Summary {
	var s Summary
	for _, verdict := range v {
		switch verdict {
		case Pass:
			s.Pass++
		case Fail:
			s.Fail++
		default:
			s.Unknown++
		}
	}
	return s
}

// Metrics returns the evaluated metrics in summary column order
func (v Verdicts) Metrics() []models.MetricName {
	out := make([]models.MetricName, 0, len(v))
	for _, m := range models.Metrics {
		if _, ok := v[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Meets reports whether actual satisfies goal for the metric's direction.
// Both bounds are inclusive.
func Meets(name models.MetricName, actual, goal float64) bool {
	if name.HigherIsBetter() {
		return actual >= goal
	}
	return actual <= goal
}

// Evaluate compares rec against every goal in spec. A goal whose metric is
// missing from rec yields Unknown rather than a pass or fail.
func Evaluate(rec models.MetricsRecord, spec ThresholdSpec) Verdicts {
	verdicts := make(Verdicts, len(spec))
	for name, goal := range spec {
		if math.IsNaN(goal) || math.IsInf(goal, 0) {
			logger.WithFields(logrus.Fields{
				"module": rec.Module,
				"metric": name,
			}).Warnf("skipping goal: %v", fmt.Errorf("%w: %v", models.ErrNonNumericMetric, goal))
			continue
		}
		actual, ok := rec.Value(name)
		if !ok {
			verdicts[name] = Unknown
			continue
		}
		if Meets(name, actual, goal) {
			verdicts[name] = Pass
		} else {
			verdicts[name] = Fail
		}
	}
	return verdicts
}

// SlackVerdict returns a one-line message about the sign of the slack
func SlackVerdict(rec models.MetricsRecord) string {
	slack, ok := rec.Value(models.MetricSlack)
	switch {
	case !ok:
		return "Slack: unable to evaluate"
	case slack >= 0:
		return "Slack is positive, timing is met"
	default:
		return "Slack is negative, optimization needed"
	}
}
