package verify

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestMergeScenario(t *testing.T) {
	id := testIdentity()
	a := New(id, Config{})
	a.State.SampleCount = 3
	a.State.SumAbsErr = 6

	b := New(id, Config{})
	b.State.SampleCount = 1
	b.State.SumAbsErr = 2

	if err := a.Merge(b); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if a.State.SampleCount != 4 || a.State.SumAbsErr != 8 {
		t.Errorf("state = %d/%v, want 4/8", a.State.SampleCount, a.State.SumAbsErr)
	}
	if m := a.ComputeMetrics(); !m.MAE.Valid || !almostEqual(m.MAE.Float64, 2.0) {
		t.Errorf("MAE = %+v, want 2.0", m.MAE)
	}
}

func TestMergeIncompatible(t *testing.T) {
	id := testIdentity()
	tests := []struct {
		name string
		a, b *Accumulator
	}{
		{
			name: "different identity",
			a:    New(id, Config{}),
			b:    New(GridpointIdentity("TMP_2m", 11, 20, 40.0, -100.0), Config{}),
		},
		{
			name: "different thresholds",
			a:    New(id, Config{Thresholds: []float64{1, 2}}),
			b:    New(id, Config{Thresholds: []float64{1, 3}}),
		},
		{
			name: "different bin count",
			a:    New(id, Config{ProbBins: 10}),
			b:    New(id, Config{ProbBins: 20}),
		},
		{
			name: "different event threshold",
			a:    New(id, Config{ProbBins: 10, EventThreshold: 1}),
			b:    New(id, Config{ProbBins: 10, EventThreshold: 2}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.a.Merge(tt.b); !errors.Is(err, ErrIncompatibleAccumulator) {
				t.Errorf("err = %v, want ErrIncompatibleAccumulator", err)
			}
		})
	}
}

// TestMergeOrderInvariance partitions one sample set into random chunks,
// accumulates each chunk independently, and merges in shuffled order. The
// final metrics must match the single-pass result regardless of chunk
// boundaries or merge order.
func TestMergeOrderInvariance(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	cfg := Config{Thresholds: []float64{0.5}, ProbBins: 5, EventThreshold: 0.5}
	id := testIdentity()

	n := 200
	fcst := make([]float64, n)
	obs := make([]float64, n)
	prob := make([]float64, n)
	for i := range fcst {
		fcst[i] = rng.Float64() * 2
		obs[i] = rng.Float64() * 2
		prob[i] = rng.Float64()
	}

	single := New(id, cfg)
	if _, _, err := single.Update(fcst, obs, prob, math.NaN()); err != nil {
		t.Fatalf("Update: %v", err)
	}
	want := single.ComputeMetrics()

	for trial := 0; trial < 5; trial++ {
		var parts []*Accumulator
		for start := 0; start < n; {
			end := start + 1 + rng.Intn(40)
			if end > n {
				end = n
			}
			acc := New(id, cfg)
			if _, _, err := acc.Update(fcst[start:end], obs[start:end], prob[start:end], math.NaN()); err != nil {
				t.Fatalf("Update part: %v", err)
			}
			parts = append(parts, acc)
			start = end
		}
		rng.Shuffle(len(parts), func(i, j int) { parts[i], parts[j] = parts[j], parts[i] })

		merged, err := MergeAll(parts)
		if err != nil {
			t.Fatalf("MergeAll: %v", err)
		}
		got := merged[id].ComputeMetrics()

		if got.SampleCount != want.SampleCount {
			t.Errorf("trial %d: SampleCount = %d, want %d", trial, got.SampleCount, want.SampleCount)
		}
		if !almostEqual(got.MAE.Float64, want.MAE.Float64) ||
			!almostEqual(got.RMSE.Float64, want.RMSE.Float64) ||
			!almostEqual(got.BrierScore.Float64, want.BrierScore.Float64) {
			t.Errorf("trial %d: metrics diverge: got %+v want %+v", trial, got, want)
		}
		if got.Thresholds[0].Table != want.Thresholds[0].Table {
			t.Errorf("trial %d: table = %+v, want %+v", trial, got.Thresholds[0].Table, want.Thresholds[0].Table)
		}
	}
}

func TestMergeAllFailsFastOnMismatchedKey(t *testing.T) {
	id := testIdentity()
	accs := []*Accumulator{
		New(id, Config{Thresholds: []float64{1}}),
		New(id, Config{Thresholds: []float64{2}}),
	}
	if _, err := MergeAll(accs); !errors.Is(err, ErrIncompatibleAccumulator) {
		t.Errorf("err = %v, want ErrIncompatibleAccumulator", err)
	}
}

func TestMergeSetsLeavesInputsIntact(t *testing.T) {
	id := testIdentity()
	cfg := Config{}

	set1 := Set{}
	if _, _, err := set1.Get(id, cfg).Update([]float64{1}, []float64{2}, nil, math.NaN()); err != nil {
		t.Fatalf("Update: %v", err)
	}
	set2 := Set{}
	if _, _, err := set2.Get(id, cfg).Update([]float64{3}, []float64{3}, nil, math.NaN()); err != nil {
		t.Fatalf("Update: %v", err)
	}

	merged, err := MergeSets(set1, set2)
	if err != nil {
		t.Fatalf("MergeSets: %v", err)
	}
	if merged[id].State.SampleCount != 2 {
		t.Errorf("merged SampleCount = %d, want 2", merged[id].State.SampleCount)
	}
	if set1[id].State.SampleCount != 1 || set2[id].State.SampleCount != 1 {
		t.Errorf("inputs mutated: %d/%d, want 1/1", set1[id].State.SampleCount, set2[id].State.SampleCount)
	}
}

func TestSetGetCreatesOnce(t *testing.T) {
	set := Set{}
	id := testIdentity()
	a := set.Get(id, Config{})
	b := set.Get(id, Config{})
	if a != b {
		t.Error("Get returned distinct accumulators for the same identity")
	}
}
