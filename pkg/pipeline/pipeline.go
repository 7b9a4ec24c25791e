// Package pipeline runs extraction, storage, evaluation and charting as
// one sequential pass.
package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/lirany1/synth-report/pkg/charts"
	"github.com/lirany1/synth-report/pkg/config"
	"github.com/lirany1/synth-report/pkg/evaluator"
	"github.com/lirany1/synth-report/pkg/extractor"
	"github.com/lirany1/synth-report/pkg/logger"
	"github.com/lirany1/synth-report/pkg/models"
	"github.com/lirany1/synth-report/pkg/storage"
)

// Pipeline wires the components of one run around an injected store
type Pipeline struct {
	config    *config.Config
	extractor *extractor.Extractor
	store     storage.Store
	charts    *charts.Renderer
}

// New creates a pipeline. The extraction rules come from cfg.Rules, or the
// built-in table when none are configured.
func New(cfg *config.Config, store storage.Store) (*Pipeline, error) {
	rules, err := extractor.RulesFromConfig(cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("invalid extraction rules: %w", err)
	}
	ex, err := extractor.New(rules)
	if err != nil {
		return nil, fmt.Errorf("invalid extraction rules: %w", err)
	}
	return &Pipeline{
		config:    cfg,
		extractor: ex,
		store:     store,
		charts:    charts.NewRenderer(cfg),
	}, nil
}

// Store returns the store the pipeline writes to
func (p *Pipeline) Store() storage.Store {
	return p.store
}

// Result is what a run produced. Partial results are kept even when Err
// is set.
type Result struct {
	Module   string
	Source   string
	Record   *models.MetricsRecord
	Verdicts evaluator.Verdicts
	Charts   *charts.Result
	Warnings []error
	Err      error
	Duration time.Duration
}

// Status returns a one-line message: the first fatal error, or a summary
// of what was produced
func (r *Result) Status() string {
	if r.Err != nil {
		msg := "Failed: " + r.Err.Error()
		if r.Record != nil {
			msg += fmt.Sprintf(" (%d/%d metrics extracted)", r.Record.Present(), len(models.Metrics))
		}
		return msg
	}
	if r.Record == nil {
		return "Nothing to report"
	}

	parts := []string{fmt.Sprintf("%s: %d/%d metrics", r.Module, r.Record.Present(), len(models.Metrics))}
	if len(r.Verdicts) > 0 {
		parts = append(parts, "thresholds "+r.Verdicts.Summary().String())
	}
	if r.Charts != nil {
		parts = append(parts, fmt.Sprintf("%d charts written", len(r.Charts.Written)))
	}
	msg := "Done: " + strings.Join(parts, ", ")
	if n := len(r.Warnings); n > 0 {
		msg += fmt.Sprintf(" with %d warning(s)", n)
	}
	return msg
}

// OK reports whether the run finished without a fatal error and no
// threshold failed
func (r *Result) OK() bool {
	return r.Err == nil && r.Verdicts.Summary().OK()
}

// Run locates and extracts the report for module, stores the record,
// evaluates it against the configured thresholds and draws its charts.
// A missing report or a store failure stops the run; everything after
// that degrades to warnings.
func (p *Pipeline) Run(module string) *Result {
	start := time.Now()
	res := &Result{Module: module}
	defer func() {
		res.Duration = time.Since(start)
		if res.Err != nil {
			logger.Errorf("Pipeline for %s failed: %v", module, res.Err)
		} else {
			logger.Infof("✓ Pipeline for %s finished in %v", module, res.Duration)
		}
	}()

	// Extract and persist
	extracted, err := p.Extract(module)
	if extracted != nil {
		res.Source = extracted.Source
		rec := extracted.Record
		res.Record = &rec
		res.Warnings = append(res.Warnings, extracted.Warnings...)
	}
	if err != nil {
		res.Err = err
		return res
	}

	// Evaluate
	spec, warn := p.thresholds()
	if warn != nil {
		res.Warnings = append(res.Warnings, warn)
	}
	res.Verdicts = evaluator.Evaluate(*res.Record, spec)
	logger.Infof("Thresholds: %s", res.Verdicts.Summary())
	logger.Info(evaluator.SlackVerdict(*res.Record))

	// Visualize
	res.Charts = p.charts.Render(*res.Record, spec)
	res.Warnings = append(res.Warnings, res.Charts.Warnings...)

	return res
}

// Extract parses the first existing candidate report and appends the record
// to the store. The extraction result is returned even when storing fails.
func (p *Pipeline) Extract(module string) (*extractor.Result, error) {
	extracted, err := p.extractor.ParseFirst(p.config.Candidates(), module)
	if err != nil {
		return nil, err
	}
	logger.Infof("Extracted %d/%d metrics for %s from %s",
		extracted.Record.Present(), len(models.Metrics), module, extracted.Source)

	if err := p.store.Append(extracted.Record); err != nil {
		return extracted, fmt.Errorf("failed to store metrics: %w", err)
	}
	return extracted, nil
}

// Evaluate judges the latest stored record against the configured thresholds
func (p *Pipeline) Evaluate() (models.MetricsRecord, evaluator.Verdicts, error) {
	rec, err := p.store.Latest()
	if err != nil {
		return models.MetricsRecord{}, nil, err
	}
	spec, err := evaluator.LoadThresholds(p.config.ThresholdsFile)
	if err != nil {
		return rec, nil, err
	}
	return rec, evaluator.Evaluate(rec, spec), nil
}

// Charts draws the charts of the latest stored record
func (p *Pipeline) Charts() (*charts.Result, error) {
	rec, err := p.store.Latest()
	if err != nil {
		return nil, err
	}
	spec, warn := p.thresholds()
	out := p.charts.Render(rec, spec)
	if warn != nil {
		out.Warnings = append(out.Warnings, warn)
	}
	return out, nil
}

// Trends draws history trend charts from the last limit runs
func (p *Pipeline) Trends(limit int) (*charts.Result, error) {
	entries, err := storage.Collect(p.store.History(), limit)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, storage.ErrEmptyStore
	}
	return p.charts.RenderTrends(entries), nil
}

// thresholds loads the goals. An unreadable file is returned as a warning
// and evaluation proceeds without goals.
func (p *Pipeline) thresholds() (evaluator.ThresholdSpec, error) {
	spec, err := evaluator.LoadThresholds(p.config.ThresholdsFile)
	if err != nil {
		logger.Warnf("Ignoring thresholds: %v", err)
		return evaluator.ThresholdSpec{}, err
	}
	return spec, nil
}
