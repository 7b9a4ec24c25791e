package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/lirany1/synth-report/pkg/config"
	"github.com/lirany1/synth-report/pkg/evaluator"
	"github.com/lirany1/synth-report/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleBundle() *Bundle {
	rec := models.NewRecord("alu")
	rec.Slack = models.Float(-0.2)
	rec.LUTs = models.Int(120)
	return NewBundle(rec, evaluator.ThresholdSpec{
		models.MetricSlack: 0,
		models.MetricLUTs:  200,
		models.MetricPower: 1.5,
	})
}

func TestNewBundle(t *testing.T) {
	b := sampleBundle()
	assert.Equal(t, evaluator.Summary{Pass: 1, Fail: 1, Unknown: 1}, b.Summary)
	assert.Equal(t, evaluator.Fail, b.Verdicts[models.MetricSlack])
	assert.Contains(t, b.SlackVerdict, "negative")
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleBundle(), FormatJSON))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	record := got["record"].(map[string]any)
	assert.Equal(t, "alu", record["module"])
	assert.Nil(t, record["power"])
	assert.Equal(t, 120.0, record["luts"])
	assert.Equal(t, map[string]any{"Slack": "fail", "LUTs": "pass", "Power": "unknown"}, got["verdicts"])
}

func TestWrite_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleBundle(), FormatYAML))

	var got struct {
		Record struct {
			Module string   `yaml:"module"`
			Slack  *float64 `yaml:"slack"`
			Delay  *float64 `yaml:"delay"`
		} `yaml:"record"`
		Verdicts map[string]string `yaml:"verdicts"`
		Summary  evaluator.Summary `yaml:"summary"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "alu", got.Record.Module)
	require.NotNil(t, got.Record.Slack)
	assert.Equal(t, -0.2, *got.Record.Slack)
	assert.Nil(t, got.Record.Delay)
	assert.Equal(t, "unknown", got.Verdicts["Power"])
	assert.Equal(t, 1, got.Summary.Fail)
}

func TestWrite_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleBundle(), FormatCSV))

	want := "Module,Metric,Value,Goal,Verdict\n" +
		"alu,Slack,-0.2,0,fail\n" +
		"alu,Delay,N/A,,\n" +
		"alu,Power,N/A,1.5,unknown\n" +
		"alu,LUTs,120,200,pass\n" +
		"alu,FFs,N/A,,\n" +
		"alu,DSPs,N/A,,\n" +
		"alu,BRAM,N/A,,\n" +
		"alu,IO,N/A,,\n"
	assert.Equal(t, want, buf.String())
}

func TestWrite_UnknownFormat(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, sampleBundle(), "pdf"))
}

func TestExporter_Export(t *testing.T) {
	cfg := config.NewConfig()
	cfg.ReportsDir = t.TempDir()
	e := NewExporter(cfg)

	path, err := e.Export(sampleBundle(), "", "YML")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.ReportsDir, "alu_summary.yaml"), path)
	_, err = os.Stat(path)
	assert.NoError(t, err)

	out := filepath.Join(t.TempDir(), "nested")
	path, err = e.Export(sampleBundle(), out, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "alu_summary.json"), path)

	_, err = e.Export(sampleBundle(), out, "xml")
	assert.Error(t, err)
	_, err = os.Stat(filepath.Join(out, "alu_summary.xml"))
	assert.True(t, os.IsNotExist(err))
}

func TestExporter_ExportStaysInOutputDir(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "out")
	e := NewExporter(config.NewConfig())

	tests := []struct {
		module string
		want   string
	}{
		{"../escape", ".._escape_summary.json"},
		{"top/alu", "top_alu_summary.json"},
		{`top\fifo`, "top_fifo_summary.json"},
		{"  ", "unnamed_summary.json"},
	}
	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			b := sampleBundle()
			b.Record.Module = tt.module

			path, err := e.Export(b, out, FormatJSON)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(out, tt.want), path)
			assert.Equal(t, out, filepath.Dir(path))
		})
	}

	_, err := os.Stat(filepath.Join(root, "escape_summary.json"))
	assert.True(t, os.IsNotExist(err))
}
