package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/lirany1/synth-report/pkg/analytics"
	"github.com/lirany1/synth-report/pkg/config"
	"github.com/lirany1/synth-report/pkg/constraints"
	"github.com/lirany1/synth-report/pkg/evaluator"
	"github.com/lirany1/synth-report/pkg/export"
	"github.com/lirany1/synth-report/pkg/logger"
	"github.com/lirany1/synth-report/pkg/models"
	"github.com/lirany1/synth-report/pkg/pipeline"
	"github.com/lirany1/synth-report/pkg/server"
	"github.com/lirany1/synth-report/pkg/storage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version = "1.0.0"
	commit  = "dev"
	date    = "unknown"
)

// errThresholdsFailed makes --strict runs exit non-zero
var errThresholdsFailed = errors.New("one or more thresholds failed")

func main() {
	// A missing .env file is fine
	_ = godotenv.Load()

	var rootCmd = &cobra.Command{
		Use:   "synth-report",
		Short: "Synthesis report extraction, evaluation and charting",
		Long: `synth-report reads the timing and utilization summary written by an FPGA
synthesis run, keeps a history of the extracted metrics, checks them against
pass/fail thresholds and draws charts of the results.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("store", "", "Summary store: csv, sqlite or memory")

	// Parse command
	var parseCmd = &cobra.Command{
		Use:   "parse",
		Short: "Extract metrics from a synthesis report",
		Long:  "Extract metrics from the first existing report candidate and append them to the summary store.",
		RunE:  runParse,
	}

	// Evaluate command
	var evaluateCmd = &cobra.Command{
		Use:   "evaluate",
		Short: "Check the latest metrics against thresholds",
		RunE:  runEvaluate,
	}

	// Charts command
	var chartsCmd = &cobra.Command{
		Use:   "charts",
		Short: "Draw charts for the latest metrics",
		RunE:  runCharts,
	}

	// Run command - the whole pipeline
	var runCmd = &cobra.Command{
		Use:   "run",
		Short: "Extract, store, evaluate and chart in one pass",
		RunE:  runPipeline,
	}

	// History command
	var historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Show stored metrics history",
		RunE:  runHistory,
	}

	// Export command
	var exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Export the latest metrics and verdicts",
		RunE:  runExport,
	}

	// SDC command
	var sdcCmd = &cobra.Command{
		Use:   "sdc",
		Short: "Generate a timing-constraint file",
		RunE:  runSDC,
	}

	// Server command
	var serverCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve results over HTTP",
		Long:  "Start a local server exposing the stored metrics, verdicts, trends and charts as JSON.",
		RunE:  runServer,
	}

	// Config command
	var configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	var initConfigCmd = &cobra.Command{
		Use:   "init [path]",
		Short: "Write the effective configuration to a file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConfigInit,
	}

	// Flags for parse command
	parseCmd.Flags().StringP("module", "m", "", "Module name (required)")
	parseCmd.Flags().StringSliceP("report", "r", nil, "Report path(s) tried before the configured candidates")

	// Flags for evaluate command
	evaluateCmd.Flags().StringP("thresholds", "t", "", "Thresholds file")
	evaluateCmd.Flags().Bool("strict", false, "Exit non-zero when a threshold fails")

	// Flags for charts command
	chartsCmd.Flags().StringP("output", "o", "", "Plots directory")
	chartsCmd.Flags().Bool("trends", false, "Also draw history trend charts")
	chartsCmd.Flags().Int("limit", 0, "Number of history runs in trend charts (0 = all)")

	// Flags for run command
	runCmd.Flags().StringP("module", "m", "", "Module name (required)")
	runCmd.Flags().StringSliceP("report", "r", nil, "Report path(s) tried before the configured candidates")
	runCmd.Flags().StringP("thresholds", "t", "", "Thresholds file")
	runCmd.Flags().StringP("output", "o", "", "Plots directory")
	runCmd.Flags().Bool("strict", false, "Exit non-zero when a threshold fails")

	// Flags for history command
	historyCmd.Flags().IntP("limit", "n", 20, "Number of most recent runs to show (0 = all)")
	historyCmd.Flags().StringP("module", "m", "", "Only show this module")
	historyCmd.Flags().Bool("trend", false, "Show per-metric trends instead of rows")

	// Flags for export command
	exportCmd.Flags().StringSliceP("formats", "f", []string{export.FormatJSON}, "Export formats (json, yaml, csv)")
	exportCmd.Flags().StringP("output", "o", "", "Output directory (defaults to the reports directory)")
	exportCmd.Flags().Bool("trends", false, "Include history trends")

	// Flags for sdc command
	sdcCmd.Flags().String("clock-name", "", "Clock name")
	sdcCmd.Flags().Float64("period", 0, "Clock period in ns")
	sdcCmd.Flags().String("clock-port", "", "Clock port")
	sdcCmd.Flags().Float64("input-delay", -1, "Input delay in ns")
	sdcCmd.Flags().Float64("output-delay", -1, "Output delay in ns")
	sdcCmd.Flags().String("template", "", "Custom template file (text/template syntax)")
	sdcCmd.Flags().StringP("output", "o", "", "Output file")

	// Flags for server command
	serverCmd.Flags().IntP("port", "p", 0, "Port to run server on")
	serverCmd.Flags().StringP("host", "H", "", "Host to bind server to")

	// Build command tree
	configCmd.AddCommand(initConfigCmd)
	rootCmd.AddCommand(parseCmd, evaluateCmd, chartsCmd, runCmd, historyCmd, exportCmd, sdcCmd, serverCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

// loadConfig builds the effective configuration: defaults, then the config
// file, then SYNTH_* variables, then global flags
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	logLevel, _ := cmd.Flags().GetString("log-level")
	store, _ := cmd.Flags().GetString("store")

	var cfg *config.Config
	if configFile != "" {
		cfg = config.NewConfig()
		if err := cfg.LoadFromFile(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg.LoadFromEnv()
	} else {
		var err error
		if cfg, err = config.LoadConfig(); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if store != "" {
		cfg.Store = strings.ToLower(store)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger.SetLevel(cfg.LogLevel)
	return cfg, nil
}

// applyRunFlags folds the per-command path flags into cfg
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if f := cmd.Flags().Lookup("report"); f != nil {
		reports, _ := cmd.Flags().GetStringSlice("report")
		if len(reports) > 0 {
			cfg.ReportCandidates = append(reports, cfg.Candidates()...)
		}
	}
	if f := cmd.Flags().Lookup("thresholds"); f != nil {
		if thresholds, _ := cmd.Flags().GetString("thresholds"); thresholds != "" {
			cfg.ThresholdsFile = thresholds
		}
	}
	if f := cmd.Flags().Lookup("output"); f != nil {
		if output, _ := cmd.Flags().GetString("output"); output != "" {
			cfg.PlotsDir = output
		}
	}
}

// openPipeline loads configuration and opens the configured store
func openPipeline(cmd *cobra.Command) (*config.Config, *pipeline.Pipeline, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	applyRunFlags(cmd, cfg)

	store, err := storage.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open summary store: %w", err)
	}
	p, err := pipeline.New(cfg, store)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return cfg, p, nil
}

func requireModule(cmd *cobra.Command) (string, error) {
	module, _ := cmd.Flags().GetString("module")
	if strings.TrimSpace(module) == "" {
		return "", fmt.Errorf("--module is required")
	}
	return module, nil
}

func runParse(cmd *cobra.Command, args []string) error {
	module, err := requireModule(cmd)
	if err != nil {
		return err
	}
	_, p, err := openPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Store().Close()

	res, err := p.Extract(module)
	if res != nil {
		printRecord(res.Record)
		for _, w := range res.Warnings {
			logger.Warnf("%v", w)
		}
	}
	if err != nil {
		return err
	}
	logger.Infof("✓ Metrics for %s stored", module)
	return nil
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	strict, _ := cmd.Flags().GetBool("strict")
	_, p, err := openPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Store().Close()

	rec, verdicts, err := p.Evaluate()
	if err != nil {
		return err
	}
	printVerdicts(rec, verdicts)
	fmt.Println(evaluator.SlackVerdict(rec))

	if strict && !verdicts.Summary().OK() {
		return errThresholdsFailed
	}
	return nil
}

func runCharts(cmd *cobra.Command, args []string) error {
	trends, _ := cmd.Flags().GetBool("trends")
	limit, _ := cmd.Flags().GetInt("limit")
	_, p, err := openPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Store().Close()

	res, err := p.Charts()
	if err != nil {
		return err
	}
	if trends {
		tr, err := p.Trends(limit)
		if err != nil {
			return err
		}
		res.Written = append(res.Written, tr.Written...)
		res.Skipped = append(res.Skipped, tr.Skipped...)
		res.Warnings = append(res.Warnings, tr.Warnings...)
	}

	for _, path := range res.Written {
		fmt.Printf("  • %s\n", path)
	}
	for _, w := range res.Warnings {
		logger.Warnf("%v", w)
	}
	logger.Infof("✓ %d charts written, %d skipped, %d failed", len(res.Written), len(res.Skipped), len(res.Warnings))
	return nil
}

func runPipeline(cmd *cobra.Command, args []string) error {
	module, err := requireModule(cmd)
	if err != nil {
		return err
	}
	strict, _ := cmd.Flags().GetBool("strict")
	_, p, err := openPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Store().Close()

	res := p.Run(module)
	if res.Record != nil {
		printRecord(*res.Record)
	}
	if len(res.Verdicts) > 0 {
		printVerdicts(*res.Record, res.Verdicts)
	}
	fmt.Println(res.Status())

	if res.Err != nil {
		return res.Err
	}
	if strict && !res.OK() {
		return errThresholdsFailed
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	module, _ := cmd.Flags().GetString("module")
	trend, _ := cmd.Flags().GetBool("trend")
	_, p, err := openPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Store().Close()

	if trend {
		report, err := analytics.NewEngine(p.Store()).Analyze(module, limit)
		if err != nil {
			return err
		}
		printTrends(report)
		return nil
	}

	entries, err := storage.Collect(p.Store().History(), 0)
	if err != nil {
		return err
	}
	if module != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if e.Record.Module == module {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	if len(entries) == 0 {
		logger.Info("No history recorded yet")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Recorded\t"+strings.Join(models.Columns(), "\t"))
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\n", e.RecordedAt.Local().Format("2006-01-02 15:04:05"), strings.Join(e.Record.Row(), "\t"))
	}
	return tw.Flush()
}

func runExport(cmd *cobra.Command, args []string) error {
	formats, _ := cmd.Flags().GetStringSlice("formats")
	outputDir, _ := cmd.Flags().GetString("output")
	withTrends, _ := cmd.Flags().GetBool("trends")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := storage.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open summary store: %w", err)
	}
	defer store.Close()

	rec, err := store.Latest()
	if err != nil {
		return err
	}
	spec, err := evaluator.LoadThresholds(cfg.ThresholdsFile)
	if err != nil {
		return err
	}
	bundle := export.NewBundle(rec, spec)
	if withTrends {
		if bundle.Trends, err = analytics.NewEngine(store).Analyze(rec.Module, 0); err != nil {
			return err
		}
	}

	exporter := export.NewExporter(cfg)
	for _, format := range formats {
		path, err := exporter.Export(bundle, outputDir, format)
		if err != nil {
			return fmt.Errorf("failed to export %s: %w", format, err)
		}
		fmt.Printf("  • %s\n", path)
	}
	return nil
}

func runSDC(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	c := cfg.Constraints

	if v, _ := cmd.Flags().GetString("clock-name"); v != "" {
		c.ClockName = v
	}
	if v, _ := cmd.Flags().GetFloat64("period"); v > 0 {
		c.ClockPeriod = v
	}
	if v, _ := cmd.Flags().GetString("clock-port"); v != "" {
		c.ClockPort = v
	}
	if v, _ := cmd.Flags().GetFloat64("input-delay"); v >= 0 {
		c.InputDelay = v
	}
	if v, _ := cmd.Flags().GetFloat64("output-delay"); v >= 0 {
		c.OutputDelay = v
	}
	if v, _ := cmd.Flags().GetString("template"); v != "" {
		c.TemplateFile = v
	}
	if v, _ := cmd.Flags().GetString("output"); v != "" {
		c.OutFile = v
	}

	path, err := constraints.Generate(c)
	if err != nil {
		return err
	}
	logger.Infof("✓ Constraints generated: %s", path)
	return nil
}

func runServer(cmd *cobra.Command, args []string) error {
	port, _ := cmd.Flags().GetInt("port")
	host, _ := cmd.Flags().GetString("host")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port == 0 {
		port = cfg.Server.Port
	}
	if host == "" {
		host = cfg.Server.Host
	}

	store, err := storage.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open summary store: %w", err)
	}
	defer store.Close()

	logger.Infof("Starting report server on %s:%d", host, port)
	logger.Infof("Serving charts from: %s", cfg.PlotsDir)

	srv := server.NewServer(&server.Config{
		Host:           host,
		Port:           port,
		PlotsDir:       cfg.PlotsDir,
		ThresholdsFile: cfg.ThresholdsFile,
	}, store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Server shutdown: %v", err)
		}
	}()

	return srv.Start()
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := "synth-report.yml"
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Save(path); err != nil {
		return err
	}
	logger.Infof("✓ Configuration written to %s", path)
	return nil
}

func printRecord(rec models.MetricsRecord) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(models.Columns(), "\t"))
	fmt.Fprintln(tw, strings.Join(rec.Row(), "\t"))
	_ = tw.Flush()
}

func printVerdicts(rec models.MetricsRecord, verdicts evaluator.Verdicts) {
	if len(verdicts) == 0 {
		fmt.Println("No thresholds configured")
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Metric\tActual\tVerdict")
	for _, m := range verdicts.Metrics() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m, rec.Format(m), strings.ToUpper(verdicts[m].String()))
	}
	_ = tw.Flush()
	fmt.Println(verdicts.Summary())
}

func printTrends(report *analytics.Report) {
	if report.Runs == 0 {
		fmt.Println("No history recorded yet")
		return
	}
	fmt.Printf("%d runs from %s to %s\n", report.Runs,
		report.From.Local().Format("2006-01-02 15:04"), report.To.Local().Format("2006-01-02 15:04"))
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Metric\tLatest\tDelta\tMin\tMax\tTrend")
	for _, t := range report.Trends {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t%g\t%s\n", t.Metric, optional(t.Latest), optional(t.Delta), t.Min, t.Max, t.Direction)
	}
	_ = tw.Flush()
}

func optional(v *float64) string {
	if v == nil {
		return models.MissingValue
	}
	return fmt.Sprintf("%g", *v)
}

func init() {
	// Initialize logger
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logrus.SetLevel(logrus.InfoLevel)
}
