package verify

import "math"

// Statistic kernels: pure functions that fold one valid forecast/observation
// pair into a State. They carry no state of their own; the accumulator drives
// them over a batch after missing-value filtering.

// validValue reports whether v is a usable sample. Non-finite values and the
// batch's declared missing sentinel are excluded, never treated as zero.
func validValue(v, missing float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	if !math.IsNaN(missing) && v == missing {
		return false
	}
	return true
}

// continuousKernel adds the continuous sufficient-statistic contributions for
// one pair.
func continuousKernel(s *State, fcst, obs float64) {
	err := fcst - obs
	s.SumFcst += fcst
	s.SumObs += obs
	s.SumAbsErr += math.Abs(err)
	s.SumErr += err
	s.SumSqErr += err * err
	s.SumFcstSq += fcst * fcst
	s.SumObsSq += obs * obs
}

// categoricalKernel tallies the 2x2 contingency table for each threshold.
// Event predicate is value >= threshold on forecast and observation
// independently.
func categoricalKernel(s *State, thresholds []float64, fcst, obs float64) {
	for i, t := range thresholds {
		fcstEvent := fcst >= t
		obsEvent := obs >= t
		switch {
		case fcstEvent && obsEvent:
			s.Tables[i].Hits++
		case !fcstEvent && obsEvent:
			s.Tables[i].Misses++
		case fcstEvent && !obsEvent:
			s.Tables[i].FalseAlarms++
		default:
			s.Tables[i].CorrectNegatives++
		}
	}
}

// probabilisticKernel folds a forecast probability and the binarized
// observation (obs >= event threshold) into the reliability bins and the
// Brier sum. Probabilities outside [0,1] are rejected; the caller counts the
// rejection as a missing sample.
func probabilisticKernel(s *State, cfg Config, prob, obs float64) bool {
	if prob < 0 || prob > 1 {
		return false
	}
	event := 0.0
	if obs >= cfg.EventThreshold {
		event = 1.0
	}

	idx := int(prob * float64(cfg.ProbBins))
	if idx >= cfg.ProbBins {
		idx = cfg.ProbBins - 1 // prob == 1.0 lands in the top bin
	}
	s.Bins[idx].ProbSum += prob
	s.Bins[idx].EventCount += int64(event)
	s.Bins[idx].Count++

	d := prob - event
	s.SumSqProbErr += d * d
	return true
}
