package verify

// Set is a keyed collection of accumulators, the unit a worker owns privately
// during chunk processing.
type Set map[Identity]*Accumulator

// Get returns the accumulator for id, creating it with cfg on first use.
func (s Set) Get(id Identity, cfg Config) *Accumulator {
	acc, ok := s[id]
	if !ok {
		acc = New(id, cfg)
		s[id] = acc
	}
	return acc
}

// MergeAll combines accumulators keyed by identity using pairwise Merge,
// folding into the first accumulator seen per key. The monoid laws make the
// result independent of grouping and order. Any configuration mismatch under
// a shared key aborts the whole merge: that indicates a corrupted run.
func MergeAll(accs []*Accumulator) (Set, error) {
	out := make(Set, len(accs))
	for _, acc := range accs {
		cur, ok := out[acc.ID]
		if !ok {
			out[acc.ID] = acc
			continue
		}
		if err := cur.Merge(acc); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// MergeSets reduces worker sets into one, cloning so the inputs stay usable
// (checkpoint snapshots merge live worker sets without quiescing them for
// longer than the copy).
func MergeSets(sets ...Set) (Set, error) {
	var all []*Accumulator
	for _, set := range sets {
		for _, acc := range set {
			all = append(all, acc.Clone())
		}
	}
	return MergeAll(all)
}
