// Package export writes evaluated results in machine-readable formats.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lirany1/synth-report/pkg/analytics"
	"github.com/lirany1/synth-report/pkg/config"
	"github.com/lirany1/synth-report/pkg/evaluator"
	"github.com/lirany1/synth-report/pkg/logger"
	"github.com/lirany1/synth-report/pkg/models"
	"gopkg.in/yaml.v3"
)

// Supported formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCSV  = "csv"
)

// Formats lists every supported format
var Formats = []string{FormatJSON, FormatYAML, FormatCSV}

// Bundle is everything known about one evaluated record
type Bundle struct {
	GeneratedAt  time.Time            `json:"generatedAt" yaml:"generatedAt"`
	Record       models.MetricsRecord `json:"record" yaml:"record"`
	Thresholds   map[string]float64   `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
	Verdicts     evaluator.Verdicts   `json:"verdicts,omitempty" yaml:"verdicts,omitempty"`
	Summary      evaluator.Summary    `json:"summary" yaml:"summary"`
	SlackVerdict string               `json:"slackVerdict" yaml:"slackVerdict"`
	Trends       *analytics.Report    `json:"trends,omitempty" yaml:"trends,omitempty"`
}

// NewBundle evaluates rec against spec and packs the results
func NewBundle(rec models.MetricsRecord, spec evaluator.ThresholdSpec) *Bundle {
	verdicts := evaluator.Evaluate(rec, spec)
	return &Bundle{
		GeneratedAt:  time.Now().UTC().Truncate(time.Second),
		Record:       rec,
		Thresholds:   spec.Goals(),
		Verdicts:     verdicts,
		Summary:      verdicts.Summary(),
		SlackVerdict: evaluator.SlackVerdict(rec),
	}
}

// Exporter handles exporting results to various formats
type Exporter struct {
	config *config.Config
}

// NewExporter creates a new exporter
func NewExporter(cfg *config.Config) *Exporter {
	return &Exporter{config: cfg}
}

// FileName is the artifact name for a module and format. The module is
// sanitized so the file always lands directly in the output directory.
func FileName(module, format string) string {
	return fmt.Sprintf("%s_summary.%s", models.SafeName(module), format)
}

// Export writes the bundle to outputDir (the reports directory when empty)
// and returns the written path
func (e *Exporter) Export(b *Bundle, outputDir, format string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "yml" {
		format = FormatYAML
	}
	if outputDir == "" {
		outputDir = e.config.ReportsDir
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(outputDir, FileName(b.Record.Module, format))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	if err := Write(f, b, format); err != nil {
		os.Remove(path)
		return "", err
	}
	logger.Infof("Exported %s summary to %s", format, path)
	return path, nil
}

// Write encodes the bundle to w
func Write(w io.Writer, b *Bundle, format string) error {
	switch format {
	case FormatJSON:
		return exportJSON(w, b)
	case FormatYAML:
		return exportYAML(w, b)
	case FormatCSV:
		return exportCSV(w, b)
	default:
		return fmt.Errorf("unsupported export format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
}

func exportJSON(w io.Writer, b *Bundle) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}

func exportYAML(w io.Writer, b *Bundle) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}

// exportCSV writes one row per metric: value, goal and verdict
func exportCSV(w io.Writer, b *Bundle) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{models.ModuleColumn, "Metric", "Value", "Goal", "Verdict"})
	for _, m := range models.Metrics {
		goal, verdict := "", ""
		if g, ok := b.Thresholds[string(m)]; ok {
			goal = strconv.FormatFloat(g, 'f', -1, 64)
		}
		if v, ok := b.Verdicts[m]; ok {
			verdict = v.String()
		}
		_ = cw.Write([]string{b.Record.Module, string(m), b.Record.Format(m), goal, verdict})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}
