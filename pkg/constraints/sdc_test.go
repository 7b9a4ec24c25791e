package constraints

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/lirany1/synth-report/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_Default(t *testing.T) {
	r, err := NewRenderer("")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, ParamsFromConfig(config.NewConfig().Constraints)))

	out := buf.String()
	assert.Contains(t, out, "create_clock -name clk -period 10.0 [get_ports clk]")
	assert.Contains(t, out, "set_input_delay -clock clk 5.0 [all_inputs]")
	assert.Contains(t, out, "set_output_delay -clock clk 5.0 [all_outputs]")
}

func TestRender_Validation(t *testing.T) {
	r, err := NewRenderer("")
	require.NoError(t, err)

	good := Params{ClockName: "sys", ClockPeriod: 8, ClockPort: "sys_clk", InputDelay: 1, OutputDelay: 1}
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"no clock name", func(p *Params) { p.ClockName = " " }},
		{"no port", func(p *Params) { p.ClockPort = "" }},
		{"zero period", func(p *Params) { p.ClockPeriod = 0 }},
		{"negative delay", func(p *Params) { p.OutputDelay = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := good
			tt.mutate(&p)
			assert.Error(t, r.Render(&bytes.Buffer{}, p))
		})
	}
}

func TestRender_CustomTemplate(t *testing.T) {
	dir := t.TempDir()
	tplPath := filepath.Join(dir, "custom.sdc")
	require.NoError(t, os.WriteFile(tplPath, []byte("clock {{ .ClockName }} {{ num .ClockPeriod }}\n"), 0o644))

	cfg := config.NewConfig().Constraints
	cfg.TemplateFile = tplPath
	cfg.ClockName = "core"
	cfg.ClockPeriod = 4.25
	cfg.OutFile = filepath.Join(dir, "out", "generated.sdc")

	path, err := Generate(cfg)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "clock core 4.25\n", string(data))
}

func TestNewRenderer_BadTemplate(t *testing.T) {
	_, err := NewRenderer(filepath.Join(t.TempDir(), "missing.sdc"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.sdc")
	require.NoError(t, os.WriteFile(bad, []byte("{{ .ClockName "), 0o644))
	_, err = NewRenderer(bad)
	assert.Error(t, err)
}

func TestWriteFile_NoPartialOutput(t *testing.T) {
	r, err := NewRenderer("")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "generated.sdc")
	assert.Error(t, r.WriteFile(path, Params{}))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "10.0", formatNumber(10))
	assert.Equal(t, "2.5", formatNumber(2.5))
	assert.Equal(t, "0.0", formatNumber(0))
}
