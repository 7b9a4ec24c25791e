package main

import (
	"testing"

	"github.com/lirany1/synth-report/pkg/config"
	"github.com/lirany1/synth-report/pkg/models"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "run"}
	cmd.Flags().StringP("module", "m", "", "")
	cmd.Flags().StringSliceP("report", "r", nil, "")
	cmd.Flags().StringP("thresholds", "t", "", "")
	cmd.Flags().StringP("output", "o", "", "")
	return cmd
}

func TestApplyRunFlags(t *testing.T) {
	cmd := newRunCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"-r", "a.txt,b.txt", "-t", "goals.yml", "-o", "out"}))

	cfg := config.NewConfig()
	defaults := cfg.Candidates()
	applyRunFlags(cmd, cfg)

	assert.Equal(t, append([]string{"a.txt", "b.txt"}, defaults...), cfg.ReportCandidates)
	assert.Equal(t, "goals.yml", cfg.ThresholdsFile)
	assert.Equal(t, "out", cfg.PlotsDir)
}

func TestApplyRunFlags_UnsetKeepsConfig(t *testing.T) {
	cmd := newRunCmd()
	require.NoError(t, cmd.Flags().Parse(nil))

	cfg := config.NewConfig()
	want := *cfg
	applyRunFlags(cmd, cfg)

	assert.Equal(t, want.ReportCandidates, cfg.ReportCandidates)
	assert.Equal(t, want.ThresholdsFile, cfg.ThresholdsFile)
	assert.Equal(t, want.PlotsDir, cfg.PlotsDir)
}

func TestApplyRunFlags_CommandWithoutFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "history"}
	cfg := config.NewConfig()
	want := cfg.PlotsDir
	applyRunFlags(cmd, cfg)
	assert.Equal(t, want, cfg.PlotsDir)
}

func TestRequireModule(t *testing.T) {
	cmd := newRunCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"-m", "  "}))
	_, err := requireModule(cmd)
	assert.Error(t, err)

	cmd = newRunCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--module", "alu"}))
	module, err := requireModule(cmd)
	require.NoError(t, err)
	assert.Equal(t, "alu", module)
}

func TestOptional(t *testing.T) {
	assert.Equal(t, models.MissingValue, optional(nil))
	assert.Equal(t, "-0.25", optional(models.Float(-0.25)))
}
