// Package constraints renders timing-constraint (SDC) files.
package constraints

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"github.com/lirany1/synth-report/pkg/config"
	"github.com/lirany1/synth-report/pkg/logger"
)

var funcs = template.FuncMap{
	"num": formatNumber,
}

// The built-in SDC template
var sdcTpl = template.Must(template.New("sdc").Funcs(funcs).Parse(
	`# GENERATED FILE, DO NOT EDIT
# Timing constraints
# Clock:  "{{ .ClockName }}" on port "{{ .ClockPort }}"

create_clock -name {{ .ClockName }} -period {{ num .ClockPeriod }} [get_ports {{ .ClockPort }}]

set_input_delay -clock {{ .ClockName }} {{ num .InputDelay }} [all_inputs]
set_output_delay -clock {{ .ClockName }} {{ num .OutputDelay }} [all_outputs]

# end
`))

// Params are the values available to a constraint template
type Params struct {
	ClockName   string
	ClockPeriod float64
	ClockPort   string
	InputDelay  float64
	OutputDelay float64
}

// ParamsFromConfig copies the template parameters out of cfg
func ParamsFromConfig(cfg config.ConstraintsConfig) Params {
	return Params{
		ClockName:   cfg.ClockName,
		ClockPeriod: cfg.ClockPeriod,
		ClockPort:   cfg.ClockPort,
		InputDelay:  cfg.InputDelay,
		OutputDelay: cfg.OutputDelay,
	}
}

// Validate checks that the parameters describe a usable clock
func (p Params) Validate() error {
	if strings.TrimSpace(p.ClockName) == "" {
		return fmt.Errorf("clock name is required")
	}
	if strings.TrimSpace(p.ClockPort) == "" {
		return fmt.Errorf("clock port is required")
	}
	if p.ClockPeriod <= 0 {
		return fmt.Errorf("clock period must be positive, got %v", p.ClockPeriod)
	}
	if p.InputDelay < 0 || p.OutputDelay < 0 {
		return fmt.Errorf("IO delays must not be negative")
	}
	return nil
}

// Renderer fills an SDC template
type Renderer struct {
	tpl *template.Template
}

// NewRenderer uses templateFile when set, otherwise the built-in template.
// Custom templates use text/template syntax and may call num to format
// a float.
func NewRenderer(templateFile string) (*Renderer, error) {
	if templateFile == "" {
		return &Renderer{tpl: sdcTpl}, nil
	}
	tpl, err := template.New(filepath.Base(templateFile)).Funcs(funcs).ParseFiles(templateFile)
	if err != nil {
		return nil, fmt.Errorf("failed to parse constraint template: %w", err)
	}
	return &Renderer{tpl: tpl}, nil
}

// Render writes the filled template to w
func (r *Renderer) Render(w io.Writer, p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := r.tpl.Execute(w, p); err != nil {
		return fmt.Errorf("failed to render constraints: %w", err)
	}
	return nil
}

// WriteFile renders into path, creating parent directories. The file is
// only written when rendering succeeds.
func (r *Renderer) WriteFile(path string, p Params) error {
	var buf bytes.Buffer
	if err := r.Render(&buf, p); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create constraints directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write constraints: %w", err)
	}
	logger.Infof("Wrote constraints to %s", path)
	return nil
}

// Generate renders the constraints described by cfg into cfg.OutFile
func Generate(cfg config.ConstraintsConfig) (string, error) {
	r, err := NewRenderer(cfg.TemplateFile)
	if err != nil {
		return "", err
	}
	if err := r.WriteFile(cfg.OutFile, ParamsFromConfig(cfg)); err != nil {
		return "", err
	}
	return cfg.OutFile, nil
}

// formatNumber prints a float without trailing zeros but always with a
// decimal point, as timing tools expect
func formatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
