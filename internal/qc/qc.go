// Package qc flags physically implausible field values and incomplete batches
// before they reach the accumulators. Flagged values are diagnostics, not
// errors: the accumulator's own missing-value handling decides what is
// excluded.
package qc

import (
	"fmt"
	"math"
)

const (
	FlagNonFinite  = "non_finite"
	FlagOutOfRange = "out_of_range"
)

// Range is the plausible physical envelope for a variable, in the units the
// grids carry.
type Range struct {
	Min, Max float64
}

var variableRanges = map[string]Range{
	"TMP_2m":   {Min: -62, Max: 57},   // degC
	"DPT_2m":   {Min: -62, Max: 40},   // degC
	"WIND_10m": {Min: 0, Max: 115},    // m/s
	"GUST_10m": {Min: 0, Max: 130},    // m/s
	"APCP_6h":  {Min: 0, Max: 500},    // mm
	"APCP_24h": {Min: 0, Max: 1000},   // mm
	"PRES_sfc": {Min: 870, Max: 1085}, // hPa
	"RH_2m":    {Min: 0, Max: 100},    // percent
}

// FlagValue returns the quality flags for a single value of a variable. An
// unknown variable only gets the finiteness check.
func FlagValue(variable string, v float64) []string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []string{FlagNonFinite}
	}
	if r, ok := variableRanges[variable]; ok {
		if v < r.Min || v > r.Max {
			return []string{FlagOutOfRange}
		}
	}
	return nil
}

// BatchReport summarises the quality of one batch of values.
type BatchReport struct {
	Variable   string
	Total      int
	NonFinite  int
	OutOfRange int
}

// CheckBatch flags every value in a batch.
func CheckBatch(variable string, values []float64) BatchReport {
	r := BatchReport{Variable: variable, Total: len(values)}
	for _, v := range values {
		for _, f := range FlagValue(variable, v) {
			switch f {
			case FlagNonFinite:
				r.NonFinite++
			case FlagOutOfRange:
				r.OutOfRange++
			}
		}
	}
	return r
}

// Completeness is the fraction of values that passed all checks. An empty
// batch counts as fully incomplete.
func (r BatchReport) Completeness() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Total-r.NonFinite-r.OutOfRange) / float64(r.Total)
}

// Warnings renders human-readable warnings when the batch falls below the
// minimum completeness or carries implausible values.
func (r BatchReport) Warnings(minCompleteness float64) []string {
	var warnings []string
	if c := r.Completeness(); c < minCompleteness {
		warnings = append(warnings, fmt.Sprintf("%s: completeness %.1f%% below minimum %.1f%%", r.Variable, c*100, minCompleteness*100))
	}
	if r.OutOfRange > 0 {
		warnings = append(warnings, fmt.Sprintf("%s: %d of %d values outside plausible range", r.Variable, r.OutOfRange, r.Total))
	}
	return warnings
}
