package verify

// ContingencyTable is the 2x2 event tally for one threshold.
type ContingencyTable struct {
	Hits             int64 `json:"hits"`
	Misses           int64 `json:"misses"`
	FalseAlarms      int64 `json:"false_alarms"`
	CorrectNegatives int64 `json:"correct_negatives"`
}

func (t *ContingencyTable) add(o ContingencyTable) {
	t.Hits += o.Hits
	t.Misses += o.Misses
	t.FalseAlarms += o.FalseAlarms
	t.CorrectNegatives += o.CorrectNegatives
}

// ProbBin holds the reliability tallies for one probability bin.
type ProbBin struct {
	ProbSum    float64 `json:"prob_sum"`
	EventCount int64   `json:"event_count"`
	Count      int64   `json:"count"`
}

// State is the sufficient-statistics record for one accumulator. The zero
// value (with Tables/Bins sized to the configuration) is the monoid identity:
// merging it into any state is a no-op, and merge is associative and
// commutative, so metrics never depend on accumulation order or chunk
// boundaries.
type State struct {
	SampleCount  int64 `json:"sample_count"`
	MissingCount int64 `json:"missing_count"`

	SumFcst   float64 `json:"sum_fcst"`
	SumObs    float64 `json:"sum_obs"`
	SumAbsErr float64 `json:"sum_abs_error"`
	SumErr    float64 `json:"sum_error"`
	SumSqErr  float64 `json:"sum_squared_error"`

	// Squared sums are not needed for the reported metrics but are carried so
	// variance-based diagnostics can be derived from snapshots later.
	SumFcstSq float64 `json:"sum_fcst_sq"`
	SumObsSq  float64 `json:"sum_obs_sq"`

	// Tables is parallel to the configuration's threshold list.
	Tables []ContingencyTable `json:"tables,omitempty"`

	// Probabilistic block, present only when bins are configured.
	Bins         []ProbBin `json:"bins,omitempty"`
	SumSqProbErr float64   `json:"sum_squared_prob_error,omitempty"`
}

func newState(cfg Config) State {
	st := State{}
	if len(cfg.Thresholds) > 0 {
		st.Tables = make([]ContingencyTable, len(cfg.Thresholds))
	}
	if cfg.probabilistic() {
		st.Bins = make([]ProbBin, cfg.ProbBins)
	}
	return st
}

// merge folds other into s field-wise. Shape agreement is the caller's
// responsibility (checked via Config.Equal before reaching here).
func (s *State) merge(o *State) {
	s.SampleCount += o.SampleCount
	s.MissingCount += o.MissingCount
	s.SumFcst += o.SumFcst
	s.SumObs += o.SumObs
	s.SumAbsErr += o.SumAbsErr
	s.SumErr += o.SumErr
	s.SumSqErr += o.SumSqErr
	s.SumFcstSq += o.SumFcstSq
	s.SumObsSq += o.SumObsSq
	for i := range o.Tables {
		s.Tables[i].add(o.Tables[i])
	}
	for i := range o.Bins {
		s.Bins[i].ProbSum += o.Bins[i].ProbSum
		s.Bins[i].EventCount += o.Bins[i].EventCount
		s.Bins[i].Count += o.Bins[i].Count
	}
	s.SumSqProbErr += o.SumSqProbErr
}

// probSamples is the number of pairs that contributed to the probabilistic
// block. It can be smaller than SampleCount when some updates carried no
// probability batch.
func (s *State) probSamples() int64 {
	var n int64
	for i := range s.Bins {
		n += s.Bins[i].Count
	}
	return n
}

// probEvents is the observed event count across all bins, used for the
// in-state climatology of the Brier skill score.
func (s *State) probEvents() int64 {
	var n int64
	for i := range s.Bins {
		n += s.Bins[i].EventCount
	}
	return n
}

func (s *State) clone() State {
	out := *s
	out.Tables = append([]ContingencyTable(nil), s.Tables...)
	out.Bins = append([]ProbBin(nil), s.Bins...)
	return out
}
