package models

import (
	"errors"
	"testing"
)

func TestColumns(t *testing.T) {
	expected := []string{"Module", "Slack", "Delay", "Power", "LUTs", "FFs", "DSPs", "BRAM", "IO"}
	cols := Columns()
	if len(cols) != len(expected) {
		t.Fatalf("Columns() length = %v, want %v", len(cols), len(expected))
	}
	for i := range expected {
		if cols[i] != expected[i] {
			t.Errorf("Columns()[%d] = %v, want %v", i, cols[i], expected[i])
		}
	}
}

func TestNewRecord_AllMissing(t *testing.T) {
	rec := NewRecord("alu")
	if rec.Module != "alu" {
		t.Errorf("Module = %v, want %v", rec.Module, "alu")
	}
	for _, m := range Metrics {
		if rec.Has(m) {
			t.Errorf("metric %s should be missing", m)
		}
		if got := rec.Format(m); got != MissingValue {
			t.Errorf("Format(%s) = %v, want %v", m, got, MissingValue)
		}
	}
	if rec.Present() != 0 {
		t.Errorf("Present() = %v, want 0", rec.Present())
	}
}

func TestMetricsRecord_ZeroIsNotMissing(t *testing.T) {
	rec := NewRecord("alu")
	if err := rec.SetFloat(MetricDSPs, 0); err != nil {
		t.Fatalf("SetFloat() error = %v", err)
	}
	v, ok := rec.Value(MetricDSPs)
	if !ok || v != 0 {
		t.Errorf("Value(DSPs) = %v, %v, want 0, true", v, ok)
	}
	if rec.Format(MetricDSPs) != "0" {
		t.Errorf("Format(DSPs) = %v, want 0", rec.Format(MetricDSPs))
	}
}

func TestMetricsRecord_SetString(t *testing.T) {
	tests := []struct {
		name    string
		metric  MetricName
		raw     string
		want    string
		wantErr bool
	}{
		{name: "negative slack", metric: MetricSlack, raw: "-1.23", want: "-1.23"},
		{name: "integer luts", metric: MetricLUTs, raw: " 120 ", want: "120"},
		{name: "N/A clears", metric: MetricPower, raw: "N/A", want: MissingValue},
		{name: "empty clears", metric: MetricIO, raw: "", want: MissingValue},
		{name: "fractional count rejected", metric: MetricBRAM, raw: "4.5", want: MissingValue, wantErr: true},
		{name: "garbage rejected", metric: MetricDelay, raw: "fast", want: MissingValue, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := NewRecord("m")
			err := rec.SetString(tt.metric, tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrNonNumericMetric) {
					t.Errorf("SetString() error = %v, want ErrNonNumericMetric", err)
				}
			} else if err != nil {
				t.Errorf("SetString() unexpected error = %v", err)
			}
			if got := rec.Format(tt.metric); got != tt.want {
				t.Errorf("Format() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMetricsRecord_Row(t *testing.T) {
	rec := NewRecord("alu")
	rec.LUTs = Int(120)
	rec.FFs = Int(64)
	rec.Slack = Float(0.5)

	row := rec.Row()
	expected := []string{"alu", "0.5", "N/A", "N/A", "120", "64", "N/A", "N/A", "N/A"}
	for i := range expected {
		if row[i] != expected[i] {
			t.Errorf("Row()[%d] = %v, want %v", i, row[i], expected[i])
		}
	}
}

func TestParseMetricName(t *testing.T) {
	tests := []struct {
		in   string
		want MetricName
		ok   bool
	}{
		{"slack", MetricSlack, true},
		{"LUTS", MetricLUTs, true},
		{" bram ", MetricBRAM, true},
		{"frequency", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseMetricName(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseMetricName(%q) = %v, %v, want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMetricName_Direction(t *testing.T) {
	if !MetricSlack.HigherIsBetter() {
		t.Error("Slack should be higher-is-better")
	}
	for _, m := range Metrics[1:] {
		if m.HigherIsBetter() {
			t.Errorf("%s should be lower-is-better", m)
		}
	}
}

func TestSafeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alu", "alu"},
		{"fifo_v2-rev.1", "fifo_v2-rev.1"},
		{"top/alu", "top_alu"},
		{"../escape", ".._escape"},
		{" core 0 ", "core_0"},
		{"", "unnamed"},
	}
	for _, tt := range tests {
		if got := SafeName(tt.in); got != tt.want {
			t.Errorf("SafeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
