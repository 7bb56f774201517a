package verify

import "math"

// meanObsEpsilon guards the bias ratio against near-zero mean observations.
const meanObsEpsilon = 1e-10

// Value is a metric result that may be undefined. It mirrors the
// sql.NullFloat64 shape so output writers map it straight to nullable columns.
// Undefined distinguishes "no data" from "no skill"; it is never an error and
// never silently zero.
type Value struct {
	Float64 float64 `json:"value"`
	Valid   bool    `json:"valid"`
}

// Defined wraps a concrete metric value.
func Defined(v float64) Value {
	return Value{Float64: v, Valid: true}
}

// Undefined is the sentinel for zero-denominator ratios and unimplemented
// metric slots.
var Undefined = Value{}

func ratio(num, den float64) Value {
	if den == 0 {
		return Undefined
	}
	return Defined(num / den)
}

// ThresholdMetrics are the categorical scores at one threshold, with the raw
// tallies kept for audit.
type ThresholdMetrics struct {
	Threshold float64          `json:"threshold"`
	Table     ContingencyTable `json:"table"`
	HitRate   Value            `json:"hit_rate"`
	FAR       Value            `json:"far"`
	CSI       Value            `json:"csi"`
}

// ReliabilityPoint is one (mean forecast probability, observed frequency)
// point of the reliability diagram.
type ReliabilityPoint struct {
	BinCenter    float64 `json:"bin_center"`
	ForecastProb Value   `json:"forecast_prob"`
	ObservedFreq Value   `json:"observed_freq"`
	Count        int64   `json:"count"`
}

// Metrics is the full derived output for one accumulator, including raw
// sufficient-statistic counts for auditability.
type Metrics struct {
	SampleCount  int64 `json:"sample_count"`
	MissingCount int64 `json:"missing_count"`

	MAE          Value `json:"mae"`
	Bias         Value `json:"bias"`
	RMSE         Value `json:"rmse"`
	BiasRatio    Value `json:"bias_ratio"`
	MeanForecast Value `json:"mean_forecast"`
	MeanObs      Value `json:"mean_obs"`

	Thresholds []ThresholdMetrics `json:"thresholds,omitempty"`

	BrierScore      Value              `json:"brier_score"`
	BrierSkillScore Value              `json:"brier_skill_score"`
	Reliability     []ReliabilityPoint `json:"reliability,omitempty"`

	// CRPSS is a reserved slot; no derivation is implemented and it is always
	// undefined.
	CRPSS Value `json:"crpss"`
}

// ComputeMetrics derives all reportable metrics from the current state. It is
// pure: callable any number of times, always computed fresh, never mutating.
// An accumulator with zero valid samples yields undefined for every ratio.
func (a *Accumulator) ComputeMetrics() Metrics {
	s := &a.State
	n := float64(s.SampleCount)

	m := Metrics{
		SampleCount:  s.SampleCount,
		MissingCount: s.MissingCount,
		MAE:          ratio(s.SumAbsErr, n),
		Bias:         ratio(s.SumErr, n),
		MeanForecast: ratio(s.SumFcst, n),
		MeanObs:      ratio(s.SumObs, n),
		CRPSS:        Undefined,
	}

	if n > 0 {
		m.RMSE = Defined(math.Sqrt(s.SumSqErr / n))
	}
	if m.MeanForecast.Valid && m.MeanObs.Valid && math.Abs(m.MeanObs.Float64) > meanObsEpsilon {
		m.BiasRatio = Defined(m.MeanForecast.Float64 / m.MeanObs.Float64)
	}

	for i, t := range a.Config.Thresholds {
		ct := s.Tables[i]
		m.Thresholds = append(m.Thresholds, ThresholdMetrics{
			Threshold: t,
			Table:     ct,
			HitRate:   ratio(float64(ct.Hits), float64(ct.Hits+ct.Misses)),
			FAR:       ratio(float64(ct.FalseAlarms), float64(ct.Hits+ct.FalseAlarms)),
			CSI:       ratio(float64(ct.Hits), float64(ct.Hits+ct.Misses+ct.FalseAlarms)),
		})
	}

	if a.Config.probabilistic() {
		m.BrierScore, m.BrierSkillScore = a.brierScores()
		m.Reliability = a.reliability()
	}
	return m
}

func (a *Accumulator) brierScores() (bs, bss Value) {
	s := &a.State
	pn := float64(s.probSamples())
	bs = ratio(s.SumSqProbErr, pn)
	if !bs.Valid {
		return bs, Undefined
	}

	// Reference forecast is the in-state climatological event frequency c;
	// for binary observations its Brier score reduces to c*(1-c).
	clim := float64(s.probEvents()) / pn
	ref := clim * (1 - clim)
	if ref == 0 {
		return bs, Undefined
	}
	return bs, Defined(1 - bs.Float64/ref)
}

func (a *Accumulator) reliability() []ReliabilityPoint {
	s := &a.State
	width := 1.0 / float64(a.Config.ProbBins)
	points := make([]ReliabilityPoint, len(s.Bins))
	for i, b := range s.Bins {
		points[i] = ReliabilityPoint{
			BinCenter:    (float64(i) + 0.5) * width,
			ForecastProb: ratio(b.ProbSum, float64(b.Count)),
			ObservedFreq: ratio(float64(b.EventCount), float64(b.Count)),
			Count:        b.Count,
		}
	}
	return points
}
