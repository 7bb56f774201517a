package verify

// Config is the frozen threshold/bin setup an accumulator is built with. It is
// passed explicitly at construction and never read from ambient state, so many
// accumulators with different configurations can be built concurrently.
type Config struct {
	// Thresholds for categorical contingency tables, in the variable's units.
	// Event predicate is value >= threshold on each side independently.
	Thresholds []float64 `json:"thresholds,omitempty"`

	// ProbBins is the number of equal-width reliability bins over [0,1].
	// Zero disables the probabilistic block.
	ProbBins int `json:"prob_bins,omitempty"`

	// EventThreshold binarizes observations for the probabilistic block
	// (event = obs >= EventThreshold). Only meaningful when ProbBins > 0.
	EventThreshold float64 `json:"event_threshold,omitempty"`
}

// Equal reports whether two configurations match exactly. Merge compatibility
// requires this in addition to identity equality.
func (c Config) Equal(o Config) bool {
	if len(c.Thresholds) != len(o.Thresholds) {
		return false
	}
	for i := range c.Thresholds {
		if c.Thresholds[i] != o.Thresholds[i] {
			return false
		}
	}
	return c.ProbBins == o.ProbBins && c.EventThreshold == o.EventThreshold
}

func (c Config) probabilistic() bool {
	return c.ProbBins > 0
}
