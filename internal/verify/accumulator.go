package verify

import "fmt"

// Accumulator is the atomic mergeable unit: one entity (gridpoint, region, or
// station), one variable, a frozen Config, and the running sufficient
// statistics. It is created once per (entity, variable) at the start of a run
// or restored from a checkpoint, mutated only through Update and Merge, and
// discarded after its metrics are persisted.
//
// An Accumulator is not safe for concurrent use; workers own private sets and
// combine them only at the merge boundary.
type Accumulator struct {
	ID     Identity `json:"identity"`
	Config Config   `json:"config"`
	State  State    `json:"state"`
}

// New builds an empty accumulator for the given identity and configuration.
func New(id Identity, cfg Config) *Accumulator {
	return &Accumulator{ID: id, Config: cfg, State: newState(cfg)}
}

// Update folds a batch of forecast/observation pairs into the running state.
// prob may be nil when the accumulator has no probabilistic block; missing is
// the batch's sentinel value (pass NaN when the convention is NaN-only).
//
// A pair is accepted only when forecast, observation, and (if supplied)
// probability are all usable; otherwise it increments MissingCount and touches
// no sums. Returns the accepted and rejected pair counts for diagnostics.
func (a *Accumulator) Update(fcst, obs, prob []float64, missing float64) (accepted, rejected int, err error) {
	if len(fcst) != len(obs) {
		return 0, 0, fmt.Errorf("%w: forecast %d vs observation %d", ErrShapeMismatch, len(fcst), len(obs))
	}
	if prob != nil {
		if !a.Config.probabilistic() {
			return 0, 0, fmt.Errorf("%w: probability batch supplied but no bins configured", ErrConfiguration)
		}
		if len(prob) != len(fcst) {
			return 0, 0, fmt.Errorf("%w: probability %d vs forecast %d", ErrShapeMismatch, len(prob), len(fcst))
		}
	}

	for i := range fcst {
		f, o := fcst[i], obs[i]
		if !validValue(f, missing) || !validValue(o, missing) {
			a.State.MissingCount++
			rejected++
			continue
		}
		if prob != nil {
			p := prob[i]
			if !validValue(p, missing) || !probabilisticKernel(&a.State, a.Config, p, o) {
				a.State.MissingCount++
				rejected++
				continue
			}
		}
		continuousKernel(&a.State, f, o)
		categoricalKernel(&a.State, a.Config.Thresholds, f, o)
		a.State.SampleCount++
		accepted++
	}
	return accepted, rejected, nil
}

// Merge folds other's state into a. Identity and configuration must match
// exactly; a mismatch indicates a corrupted run and aborts the merge.
func (a *Accumulator) Merge(other *Accumulator) error {
	if a.ID != other.ID {
		return fmt.Errorf("%w: identity %v vs %v", ErrIncompatibleAccumulator, a.ID, other.ID)
	}
	if !a.Config.Equal(other.Config) {
		return fmt.Errorf("%w: configuration mismatch for %s %s", ErrIncompatibleAccumulator, a.ID.Kind, a.ID.EntityKey())
	}
	a.State.merge(&other.State)
	return nil
}

// Clone returns a deep copy, used to snapshot live accumulators without
// disturbing them.
func (a *Accumulator) Clone() *Accumulator {
	return &Accumulator{ID: a.ID, Config: a.Config, State: a.State.clone()}
}
