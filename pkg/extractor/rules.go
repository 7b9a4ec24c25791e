package extractor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lirany1/synth-report/pkg/config"
	"github.com/lirany1/synth-report/pkg/models"
)

// Rule maps report lines to one metric. A line is claimed by the first rule
// (in table order) that has a trigger occurring in it. The value is taken
// from the first capture group of Pattern, or from the |-delimited cell at
// index Cell when Pattern is empty (cell 0 is the row label).
type Rule struct {
	Field    models.MetricName
	Triggers []string
	Pattern  string
	Cell     int
}

// DefaultRules returns the built-in table for Vivado timing, power and
// utilization summaries.
func DefaultRules() []Rule {
	return []Rule{
		{Field: models.MetricSlack, Triggers: []string{"Worst Slack"}, Pattern: `(-?\d+(?:\.\d+)?)ns`},
		{Field: models.MetricDelay, Triggers: []string{"Data Path Delay"}, Pattern: `(\d+\.\d+)`},
		{Field: models.MetricPower, Triggers: []string{"Dynamic (W)"}, Pattern: `Dynamic \(W\)\s*\|\s*([\d.]+)`},
		{Field: models.MetricLUTs, Triggers: []string{"Slice LUTs"}, Cell: 1},
		{Field: models.MetricFFs, Triggers: []string{"Slice Registers"}, Cell: 1},
		{Field: models.MetricDSPs, Triggers: []string{"DSPs"}, Cell: 1},
		{Field: models.MetricBRAM, Triggers: []string{"RAMB", "BRAM"}, Cell: 1},
		{Field: models.MetricIO, Triggers: []string{"IO Buffers"}, Cell: 1},
	}
}

type compiledRule struct {
	Rule
	re *regexp.Regexp
}

func compileRule(r Rule) (compiledRule, error) {
	if _, ok := models.ParseMetricName(string(r.Field)); !ok {
		return compiledRule{}, fmt.Errorf("unknown field %q", r.Field)
	}
	triggers := make([]string, 0, len(r.Triggers))
	for _, t := range r.Triggers {
		if t != "" {
			triggers = append(triggers, t)
		}
	}
	if len(triggers) == 0 {
		return compiledRule{}, fmt.Errorf("rule for %s has no triggers", r.Field)
	}
	r.Triggers = triggers

	cr := compiledRule{Rule: r}
	if r.Pattern != "" {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return compiledRule{}, fmt.Errorf("rule for %s: %w", r.Field, err)
		}
		cr.re = re
	} else if r.Cell < 1 {
		return compiledRule{}, fmt.Errorf("rule for %s needs a pattern or a cell index >= 1", r.Field)
	}
	return cr, nil
}

func (r compiledRule) matches(line string) bool {
	for _, t := range r.Triggers {
		if strings.Contains(line, t) {
			return true
		}
	}
	return false
}

// value extracts the raw numeric text, or "" when the line does not carry one
func (r compiledRule) value(line string) string {
	if r.re != nil {
		m := r.re.FindStringSubmatch(line)
		switch {
		case m == nil:
			return ""
		case len(m) > 1:
			return m[1]
		default:
			return m[0]
		}
	}

	cells := splitCells(line)
	if r.Cell >= len(cells) {
		return ""
	}
	cell := cells[r.Cell]
	if r.Field.IsInteger() {
		if _, err := strconv.Atoi(cell); err != nil {
			return ""
		}
	} else if _, err := strconv.ParseFloat(cell, 64); err != nil {
		return ""
	}
	return cell
}

// splitCells splits a table row such as "| Slice LUTs | 120 | 0 |" into
// trimmed cells: ["Slice LUTs", "120", "0"].
func splitCells(line string) []string {
	s := strings.TrimSpace(line)
	s = strings.TrimPrefix(s, "|")
	s = strings.TrimSuffix(s, "|")
	parts := strings.Split(s, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// RulesFromConfig converts configured rules into a rule table
func RulesFromConfig(rcs []config.RuleConfig) ([]Rule, error) {
	rules := make([]Rule, 0, len(rcs))
	for i, rc := range rcs {
		field, ok := models.ParseMetricName(rc.Field)
		if !ok {
			return nil, fmt.Errorf("rule %d: unknown field %q", i, rc.Field)
		}
		rules = append(rules, Rule{
			Field:    field,
			Triggers: rc.Triggers,
			Pattern:  rc.Pattern,
			Cell:     rc.Cell,
		})
	}
	return rules, nil
}
