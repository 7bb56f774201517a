package qc

import (
	"math"
	"testing"
)

func TestFlagValue(t *testing.T) {
	tests := []struct {
		name     string
		variable string
		value    float64
		want     []string
	}{
		{"valid temp", "TMP_2m", 25.0, nil},
		{"temp at cold boundary", "TMP_2m", -62.0, nil},
		{"temp too cold", "TMP_2m", -70.0, []string{FlagOutOfRange}},
		{"temp too hot", "TMP_2m", 60.0, []string{FlagOutOfRange}},
		{"negative precip", "APCP_6h", -1.0, []string{FlagOutOfRange}},
		{"NaN", "TMP_2m", math.NaN(), []string{FlagNonFinite}},
		{"infinity", "WIND_10m", math.Inf(1), []string{FlagNonFinite}},
		{"unknown variable passes range", "XYZ_0m", 1e6, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FlagValue(tt.variable, tt.value)
			if len(got) != len(tt.want) {
				t.Fatalf("FlagValue = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("FlagValue = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestCheckBatchAndCompleteness(t *testing.T) {
	values := []float64{20, 21, math.NaN(), 200, 19, 18, math.Inf(-1), 22}
	r := CheckBatch("TMP_2m", values)

	if r.Total != 8 || r.NonFinite != 2 || r.OutOfRange != 1 {
		t.Errorf("report = %+v, want total=8 non_finite=2 out_of_range=1", r)
	}
	if c := r.Completeness(); math.Abs(c-5.0/8.0) > 1e-12 {
		t.Errorf("Completeness = %v, want 0.625", c)
	}
}

func TestWarnings(t *testing.T) {
	r := BatchReport{Variable: "TMP_2m", Total: 10, NonFinite: 4, OutOfRange: 1}

	warnings := r.Warnings(0.8)
	if len(warnings) != 2 {
		t.Fatalf("len(warnings) = %d, want 2: %v", len(warnings), warnings)
	}

	clean := BatchReport{Variable: "TMP_2m", Total: 10}
	if w := clean.Warnings(0.8); len(w) != 0 {
		t.Errorf("clean warnings = %v, want none", w)
	}
}

func TestEmptyBatchCompleteness(t *testing.T) {
	r := CheckBatch("TMP_2m", nil)
	if c := r.Completeness(); c != 0 {
		t.Errorf("Completeness = %v, want 0", c)
	}
}
