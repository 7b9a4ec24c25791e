package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/lirany1/synth-report/pkg/models"
	"github.com/spf13/viper"
)

// Store backends
const (
	StoreCSV    = "csv"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Config holds the configuration for the synthesis report pipeline
type Config struct {
	// Locations
	ReportsDir       string   `mapstructure:"reports_dir"`
	PlotsDir         string   `mapstructure:"plots_dir"`
	ReportCandidates []string `mapstructure:"report_candidates"`

	// Summary store
	Store        string `mapstructure:"store"`
	SummaryFile  string `mapstructure:"summary_file"`
	HistoryFile  string `mapstructure:"history_file"`
	DatabaseFile string `mapstructure:"database_file"`

	// Evaluation
	ThresholdsFile string `mapstructure:"thresholds_file"`

	// Charts
	ChartWidth  int `mapstructure:"chart_width"`
	ChartHeight int `mapstructure:"chart_height"`

	LogLevel string `mapstructure:"log_level"`

	// Rules replaces the built-in extraction table when non-empty
	Rules []RuleConfig `mapstructure:"rules"`

	Constraints ConstraintsConfig `mapstructure:"constraints"`
	Server      ServerConfig      `mapstructure:"server"`
}

// RuleConfig describes one report extraction rule.
// Either Pattern (first capture group) or Cell (|-delimited cell index) is used.
type RuleConfig struct {
	Field    string   `mapstructure:"field"`
	Triggers []string `mapstructure:"triggers"`
	Pattern  string   `mapstructure:"pattern"`
	Cell     int      `mapstructure:"cell"`
}

// ConstraintsConfig holds the SDC template parameters
type ConstraintsConfig struct {
	ClockName    string  `mapstructure:"clock_name"`
	ClockPeriod  float64 `mapstructure:"clock_period"`
	ClockPort    string  `mapstructure:"clock_port"`
	InputDelay   float64 `mapstructure:"input_delay"`
	OutputDelay  float64 `mapstructure:"output_delay"`
	TemplateFile string  `mapstructure:"template_file"`
	OutFile      string  `mapstructure:"out_file"`
}

// ServerConfig holds the HTTP server settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		ReportsDir:     "reports",
		PlotsDir:       "plots",
		Store:          StoreCSV,
		SummaryFile:    "util_summary.csv",
		HistoryFile:    "history.csv",
		DatabaseFile:   filepath.Join(".synth-history", "history.db"),
		ThresholdsFile: "thresholds.yml",
		ChartWidth:     1000,
		ChartHeight:    500,
		LogLevel:       "info",
		Constraints: ConstraintsConfig{
			ClockName:   "clk",
			ClockPeriod: 10.0,
			ClockPort:   "clk",
			InputDelay:  5.0,
			OutputDelay: 5.0,
			OutFile:     filepath.Join("constraints", "generated.sdc"),
		},
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return NewConfig()
}

// configPaths are searched in order by LoadConfig
var configPaths = []string{
	"synth-report.yml",
	"synth-report.yaml",
	"synth-report.json",
	"synth-report.toml",
}

// LoadConfig loads configuration from the first config file found, then
// applies environment overrides
func LoadConfig() (*Config, error) {
	cfg := NewConfig()

	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			if err := cfg.LoadFromFile(path); err != nil {
				return nil, err
			}
			break
		}
	}

	cfg.LoadFromEnv()
	return cfg, nil
}

// LoadFromFile loads configuration from a file (YAML, JSON, or TOML).
// Keys absent from the file keep their current values.
func (c *Config) LoadFromFile(path string) error {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.StringToTimeDurationHookFunc(),
	))
	if err := v.Unmarshal(c, hook); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() {
	if dir := os.Getenv("SYNTH_REPORTS_DIR"); dir != "" {
		c.ReportsDir = dir
	}

	if dir := os.Getenv("SYNTH_PLOTS_DIR"); dir != "" {
		c.PlotsDir = dir
	}

	if report := os.Getenv("SYNTH_REPORT"); report != "" {
		c.ReportCandidates = splitList(report)
	}

	if store := os.Getenv("SYNTH_STORE"); store != "" {
		c.Store = strings.ToLower(store)
	}

	if thresholds := os.Getenv("SYNTH_THRESHOLDS"); thresholds != "" {
		c.ThresholdsFile = thresholds
	}

	if level := os.Getenv("SYNTH_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}

	if period := os.Getenv("SYNTH_CLOCK_PERIOD"); period != "" {
		if p, err := strconv.ParseFloat(period, 64); err == nil {
			c.Constraints.ClockPeriod = p
		}
	}
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigFile(path)

	v.Set("reports_dir", c.ReportsDir)
	v.Set("plots_dir", c.PlotsDir)
	if len(c.ReportCandidates) > 0 {
		v.Set("report_candidates", c.ReportCandidates)
	}
	v.Set("store", c.Store)
	v.Set("summary_file", c.SummaryFile)
	v.Set("history_file", c.HistoryFile)
	v.Set("database_file", c.DatabaseFile)
	v.Set("thresholds_file", c.ThresholdsFile)
	v.Set("chart_width", c.ChartWidth)
	v.Set("chart_height", c.ChartHeight)
	v.Set("log_level", c.LogLevel)
	v.Set("constraints.clock_name", c.Constraints.ClockName)
	v.Set("constraints.clock_period", c.Constraints.ClockPeriod)
	v.Set("constraints.clock_port", c.Constraints.ClockPort)
	v.Set("constraints.input_delay", c.Constraints.InputDelay)
	v.Set("constraints.output_delay", c.Constraints.OutputDelay)
	v.Set("constraints.out_file", c.Constraints.OutFile)
	v.Set("server.host", c.Server.Host)
	v.Set("server.port", c.Server.Port)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return v.WriteConfig()
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Store {
	case StoreCSV, StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("unknown store %q (want csv, sqlite or memory)", c.Store)
	}

	if c.ChartWidth <= 0 || c.ChartHeight <= 0 {
		return fmt.Errorf("chart size must be positive, got %dx%d", c.ChartWidth, c.ChartHeight)
	}

	if c.Constraints.ClockPeriod <= 0 {
		return fmt.Errorf("clock period must be positive, got %v", c.Constraints.ClockPeriod)
	}
	if c.Constraints.InputDelay < 0 || c.Constraints.OutputDelay < 0 {
		return fmt.Errorf("io delays must not be negative")
	}

	for i, r := range c.Rules {
		if _, ok := models.ParseMetricName(r.Field); !ok {
			return fmt.Errorf("rule %d: unknown field %q", i, r.Field)
		}
		if len(r.Triggers) == 0 {
			return fmt.Errorf("rule %d (%s): no triggers", i, r.Field)
		}
	}
	return nil
}

// SummaryPath returns the latest-summary file location
func (c *Config) SummaryPath() string {
	return c.inReports(c.SummaryFile)
}

// HistoryPath returns the history file location
func (c *Config) HistoryPath() string {
	return c.inReports(c.HistoryFile)
}

// Candidates returns the report paths to try in order. Without an explicit
// list they are derived from the reports directory.
func (c *Config) Candidates() []string {
	if len(c.ReportCandidates) > 0 {
		return c.ReportCandidates
	}
	return []string{
		filepath.Join(c.ReportsDir, "synthesis_summary.txt"),
		"synthesis_summary.txt",
	}
}

// DatabasePath returns the SQLite history database location
func (c *Config) DatabasePath() string {
	return c.inReports(c.DatabaseFile)
}

func (c *Config) inReports(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.ReportsDir, name)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
